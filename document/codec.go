package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Marshal encodes v to its canonical JSON byte form, preserving object field
// order exactly as stored.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes JSON bytes into a Value, tagging every scalar with its
// concrete type and preserving object field order.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("document: %w", err)
	}
	v, err := decodeToken(dec, tok)
	if err != nil {
		return Value{}, fmt.Errorf("document: %w", err)
	}
	return v, nil
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null, nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return NewNumber(parseNumber(t)), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '[':
			var arr []Value
			for dec.More() {
				elemTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				elem, err := decodeToken(dec, elemTok)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, elem)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return NewArray(arr), nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				valTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				val, err := decodeToken(dec, valTok)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return NewObjectValue(obj), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

// parseNumber picks the narrowest representation that holds the literal
// without loss: signed, then unsigned, then double.
func parseNumber(n json.Number) Number {
	if i, err := n.Int64(); err == nil {
		return NumberFromInt64(i)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return Number{Kind: NumUint64, U64: u}
	}
	f, _ := n.Float64()
	return NumberFromFloat64(f)
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.Num.String())
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		if v.Obj != nil {
			i := 0
			for pair := v.Obj.Oldest(); pair != nil; pair = pair.Next() {
				if i > 0 {
					buf.WriteByte(',')
				}
				keyBytes, err := json.Marshal(pair.Key)
				if err != nil {
					return err
				}
				buf.Write(keyBytes)
				buf.WriteByte(':')
				if err := writeValue(buf, pair.Value); err != nil {
					return err
				}
				i++
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("document: unknown value kind %d", v.Kind)
	}
	return nil
}
