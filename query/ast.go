// Package query implements the AST for boolean/comparison/geo predicates,
// the planner that pushes leaf predicates down to index probes, and the
// verification evaluator that re-checks a candidate document against the
// full AST before it is returned.
package query

import (
	"encoding/json"
	"fmt"

	"docdb/document"
	"docdb/enginerr"
)

// Op names an AST node variant, matching the wire encoding's "op" field.
type Op string

const (
	OpEq              Op = "eq"
	OpNe              Op = "ne"
	OpGt              Op = "gt"
	OpLt              Op = "lt"
	OpGte             Op = "gte"
	OpLte             Op = "lte"
	OpIncludes        Op = "includes"
	OpAnd             Op = "and"
	OpOr              Op = "or"
	OpNot             Op = "not"
	OpGeoWithinRadius Op = "geo_within_radius"
	OpGeoInBox        Op = "geo_in_box"
)

// Literal is a query constant tagged with its comparison type, so the wire
// format can distinguish e.g. int64 from float64 from a numeric string, and
// so a mismatched tag (Type "int64" but Value a JSON string) is caught as a
// malformed request rather than silently coerced.
type Literal struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"value"`
}

// Value decodes the literal into a tagged document.Value, validating that
// Raw's JSON shape actually matches the declared Type.
func (l Literal) Value() (document.Value, error) {
	if l.Raw == nil {
		return document.Value{}, enginerr.Malformed("literal missing value")
	}
	switch l.Type {
	case "null":
		var v any
		if err := json.Unmarshal(l.Raw, &v); err != nil || v != nil {
			return document.Value{}, enginerr.Malformed("literal tagged null must carry JSON null")
		}
		return document.Null, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(l.Raw, &b); err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged bool must carry a JSON boolean")
		}
		return document.NewBool(b), nil
	case "int64":
		var n json.Number
		if err := json.Unmarshal(l.Raw, &n); err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged int64 must carry a JSON number")
		}
		i, err := n.Int64()
		if err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged int64 does not fit a signed 64-bit integer")
		}
		return document.NewInt(i), nil
	case "uint64":
		var n json.Number
		if err := json.Unmarshal(l.Raw, &n); err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged uint64 must carry a JSON number")
		}
		v, err := parseUint64(n.String())
		if err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged uint64 does not fit an unsigned 64-bit integer")
		}
		return document.NewNumber(document.Number{Kind: document.NumUint64, U64: v}), nil
	case "float64":
		var n json.Number
		if err := json.Unmarshal(l.Raw, &n); err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged float64 must carry a JSON number")
		}
		f, err := n.Float64()
		if err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged float64 is not a valid number")
		}
		return document.NewFloat(f), nil
	case "string":
		var s string
		if err := json.Unmarshal(l.Raw, &s); err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged string must carry a JSON string")
		}
		return document.NewString(s), nil
	case "array", "object":
		v, err := document.Unmarshal(l.Raw)
		if err != nil {
			return document.Value{}, enginerr.Malformed("literal tagged %s is not valid JSON: %v", l.Type, err)
		}
		wantKind := document.KindArray
		if l.Type == "object" {
			wantKind = document.KindObject
		}
		if v.Kind != wantKind {
			return document.Value{}, enginerr.Malformed("literal tagged %s carries a %s", l.Type, v.Kind)
		}
		return v, nil
	default:
		return document.Value{}, enginerr.Malformed("unrecognized literal type %q", l.Type)
	}
}

func parseUint64(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// Node is an AST node. Only the fields relevant to Op are populated; the
// comments on each field group below name the Ops that read it.
type Node struct {
	Op Op `json:"op"`

	// Eq, Ne, Gt, Lt, Gte, Lte, Includes
	Path    string   `json:"path,omitempty"`
	Literal *Literal `json:"literal,omitempty"`

	// And, Or
	Args []*Node `json:"args,omitempty"`
	// Not
	Arg *Node `json:"arg,omitempty"`

	// GeoWithinRadius, GeoInBox
	Field  string  `json:"field,omitempty"`
	Lat    float64 `json:"lat,omitempty"`
	Lon    float64 `json:"lon,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	MinLat float64 `json:"min_lat,omitempty"`
	MinLon float64 `json:"min_lon,omitempty"`
	MaxLat float64 `json:"max_lat,omitempty"`
	MaxLon float64 `json:"max_lon,omitempty"`
}

// Validate checks structural well-formedness (required fields present for
// the given Op, sub-nodes recursively valid, every literal decodable as its
// declared type) without evaluating the query against any document.
func (n *Node) Validate() error {
	if n == nil {
		return enginerr.Malformed("nil AST node")
	}
	switch n.Op {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte, OpIncludes:
		if n.Path == "" {
			return enginerr.Malformed("%s requires a path", n.Op)
		}
		if n.Literal == nil {
			return enginerr.Malformed("%s requires a literal", n.Op)
		}
		if _, err := n.Literal.Value(); err != nil {
			return err
		}
		return nil
	case OpAnd, OpOr:
		if len(n.Args) == 0 {
			return enginerr.Malformed("%s requires at least one argument", n.Op)
		}
		for _, a := range n.Args {
			if err := a.Validate(); err != nil {
				return err
			}
		}
		return nil
	case OpNot:
		if n.Arg == nil {
			return enginerr.Malformed("not requires an argument")
		}
		return n.Arg.Validate()
	case OpGeoWithinRadius:
		if n.Field == "" {
			return enginerr.Malformed("geo_within_radius requires a field")
		}
		if n.Lat < -90 || n.Lat > 90 || n.Lon < -180 || n.Lon > 180 {
			return enginerr.Malformed("geo_within_radius centre out of range")
		}
		if n.Radius < 0 {
			return enginerr.Malformed("geo_within_radius radius must be non-negative")
		}
		return nil
	case OpGeoInBox:
		if n.Field == "" {
			return enginerr.Malformed("geo_in_box requires a field")
		}
		if n.MinLat < -90 || n.MaxLat > 90 || n.MinLon < -180 || n.MaxLon > 180 {
			return enginerr.Malformed("geo_in_box bounds out of range")
		}
		if n.MinLat > n.MaxLat || n.MinLon > n.MaxLon {
			return enginerr.Malformed("geo_in_box bounds inverted")
		}
		return nil
	default:
		return enginerr.Malformed("unrecognized AST node %q", n.Op)
	}
}
