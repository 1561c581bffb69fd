// Package document implements the tagged-value representation documents are
// stored and queried as, and the codec that round-trips it through JSON.
package document

import (
	"bytes"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind tags the concrete JSON type a Value carries.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// NumberKind distinguishes the three numeric representations the spec
// requires: signed 64-bit, unsigned 64-bit, and double.
type NumberKind int

const (
	NumInt64 NumberKind = iota
	NumUint64
	NumFloat64
)

// Number is a tagged numeric value. Only the field matching Kind is valid.
type Number struct {
	Kind NumberKind
	I64  int64
	U64  uint64
	F64  float64
}

// Float64 returns the number widened to float64, losslessly for the ranges
// this store deals with (index keys and comparisons always compare as
// float64 once integer/double coercion is in play).
func (n Number) Float64() float64 {
	switch n.Kind {
	case NumInt64:
		return float64(n.I64)
	case NumUint64:
		return float64(n.U64)
	default:
		return n.F64
	}
}

func (n Number) String() string {
	switch n.Kind {
	case NumInt64:
		return strconv.FormatInt(n.I64, 10)
	case NumUint64:
		return strconv.FormatUint(n.U64, 10)
	default:
		return strconv.FormatFloat(n.F64, 'g', -1, 64)
	}
}

// Equal reports numeric equality across representations (2 == 2.0 == uint64(2)).
func (n Number) Equal(o Number) bool {
	if n.Kind == o.Kind {
		switch n.Kind {
		case NumInt64:
			return n.I64 == o.I64
		case NumUint64:
			return n.U64 == o.U64
		default:
			return n.F64 == o.F64
		}
	}
	return n.Float64() == o.Float64()
}

// Less reports numeric ordering across representations.
func (n Number) Less(o Number) bool {
	return n.Float64() < o.Float64()
}

// NumberFromInt64 wraps a signed integer as a Number.
func NumberFromInt64(v int64) Number { return Number{Kind: NumInt64, I64: v} }

// NumberFromFloat64 wraps a double as a Number.
func NumberFromFloat64(v float64) Number { return Number{Kind: NumFloat64, F64: v} }

// Object is the ordered string-keyed map backing document/object values.
// Field order is preserved across decode/re-encode, per the data model's
// retrieval guarantee.
type Object = orderedmap.OrderedMap[string, Value]

// NewObject returns an empty, ready-to-populate Object.
func NewObject() *Object {
	return orderedmap.New[string, Value]()
}

// Value is the sum type every JSON document and every query literal is built
// from: exactly one JSON kind, tagged so extractors and comparators never
// need to type-switch on interface{}.
type Value struct {
	Kind Kind
	Bool bool
	Num  Number
	Str  string
	Arr  []Value
	Obj  *Object
}

// Null is the shared null value.
var Null = Value{Kind: KindNull}

// NewBool wraps a bool as a Value.
func NewBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NewString wraps a string as a Value.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewNumber wraps a Number as a Value.
func NewNumber(n Number) Value { return Value{Kind: KindNumber, Num: n} }

// NewInt wraps an int64 as a numeric Value.
func NewInt(v int64) Value { return NewNumber(NumberFromInt64(v)) }

// NewFloat wraps a float64 as a numeric Value.
func NewFloat(v float64) Value { return NewNumber(NumberFromFloat64(v)) }

// NewArray wraps a slice of Values as an array Value.
func NewArray(items []Value) Value { return Value{Kind: KindArray, Arr: items} }

// NewObjectValue wraps an Object as an object Value.
func NewObjectValue(o *Object) Value { return Value{Kind: KindObject, Obj: o} }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal reports deep structural equality, with numeric cross-representation
// coercion (see Number.Equal). Object field order does not affect equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Num.Equal(o.Num)
	case KindString:
		return v.Str == o.Str
	case KindArray:
		if len(v.Arr) != len(o.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(o.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if v.Obj == nil || o.Obj == nil {
			return v.Obj == o.Obj
		}
		if v.Obj.Len() != o.Obj.Len() {
			return false
		}
		for pair := v.Obj.Oldest(); pair != nil; pair = pair.Next() {
			ov, ok := o.Obj.Get(pair.Key)
			if !ok || !pair.Value.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// GeoPoint reports whether an object Value carries numeric lat/lon fields in
// the valid WGS84 ranges, and returns them if so. Any object shape (not just
// a dedicated "point" type) qualifies, per the data model.
func (v Value) GeoPoint() (lat, lon float64, ok bool) {
	if v.Kind != KindObject || v.Obj == nil {
		return 0, 0, false
	}
	latV, hasLat := v.Obj.Get("lat")
	lonV, hasLon := v.Obj.Get("lon")
	if !hasLat || !hasLon || latV.Kind != KindNumber || lonV.Kind != KindNumber {
		return 0, 0, false
	}
	lat, lon = latV.Num.Float64(), lonV.Num.Float64()
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// String renders a compact debug form; use Marshal for the wire format.
func (v Value) String() string {
	b, err := Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unencodable %s>", v.Kind)
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler so a Value serializes directly as
// the HTTP response body the boundary layer hands back to clients.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler so a Value can be the target of
// request-body decoding at the HTTP boundary.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
