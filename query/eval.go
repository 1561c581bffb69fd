package query

import (
	"strings"

	"docdb/document"
	"docdb/enginerr"
	"docdb/field"
	"docdb/geo"
)

// Eval fully re-evaluates n against doc, ignoring any index state: this is
// the verification step every index-derived candidate must pass before it
// is returned, and the only evaluation path for predicates the planner
// could not push down.
func Eval(n *Node, doc document.Value) (bool, error) {
	switch n.Op {
	case OpEq:
		lit, err := n.Literal.Value()
		if err != nil {
			return false, err
		}
		for _, leaf := range field.Extract(doc, n.Path) {
			if leaf.Equal(lit) {
				return true, nil
			}
		}
		return false, nil

	case OpNe:
		lit, err := n.Literal.Value()
		if err != nil {
			return false, err
		}
		leaves := field.Extract(doc, n.Path)
		if len(leaves) == 0 {
			// Decided semantics: Ne is false over an absent path, not
			// vacuously true.
			return false, nil
		}
		for _, leaf := range leaves {
			if leaf.Equal(lit) {
				return false, nil
			}
		}
		return true, nil

	case OpGt, OpLt, OpGte, OpLte:
		lit, err := n.Literal.Value()
		if err != nil {
			return false, err
		}
		for _, leaf := range field.Extract(doc, n.Path) {
			cmp, ok := compare(leaf, lit)
			if !ok {
				continue
			}
			switch n.Op {
			case OpGt:
				if cmp > 0 {
					return true, nil
				}
			case OpGte:
				if cmp >= 0 {
					return true, nil
				}
			case OpLt:
				if cmp < 0 {
					return true, nil
				}
			case OpLte:
				if cmp <= 0 {
					return true, nil
				}
			}
		}
		return false, nil

	case OpIncludes:
		lit, err := n.Literal.Value()
		if err != nil {
			return false, err
		}
		for _, leaf := range field.Extract(doc, n.Path) {
			if leaf.Kind != document.KindArray {
				continue
			}
			for _, elem := range leaf.Arr {
				if elem.Equal(lit) {
					return true, nil
				}
			}
		}
		return false, nil

	case OpAnd:
		for _, arg := range n.Args {
			ok, err := Eval(arg, doc)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case OpOr:
		for _, arg := range n.Args {
			ok, err := Eval(arg, doc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case OpNot:
		ok, err := Eval(n.Arg, doc)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case OpGeoWithinRadius:
		for _, leaf := range field.Extract(doc, n.Field) {
			lat, lon, ok := leaf.GeoPoint()
			if !ok {
				continue
			}
			if geo.Distance(lat, lon, n.Lat, n.Lon) <= n.Radius {
				return true, nil
			}
		}
		return false, nil

	case OpGeoInBox:
		for _, leaf := range field.Extract(doc, n.Field) {
			lat, lon, ok := leaf.GeoPoint()
			if !ok {
				continue
			}
			if geo.InBox(lat, lon, n.MinLat, n.MinLon, n.MaxLat, n.MaxLon) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, enginerr.Malformed("unrecognized AST node %q", n.Op)
	}
}

// compare orders two values of the same comparable kind (Number or String).
// ok is false when the kinds differ or aren't orderable, in which case the
// predicate silently does not match rather than erroring.
func compare(a, b document.Value) (int, bool) {
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case document.KindNumber:
		switch {
		case a.Num.Less(b.Num):
			return -1, true
		case b.Num.Less(a.Num):
			return 1, true
		default:
			return 0, true
		}
	case document.KindString:
		return strings.Compare(a.Str, b.Str), true
	default:
		return 0, false
	}
}
