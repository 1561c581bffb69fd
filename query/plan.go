package query

import (
	"docdb/document"
	"docdb/index"
)

// AllKeysFunc returns the full universe of document keys, used for Not's
// complement and as the fallback candidate set for predicates the planner
// cannot push down to an index probe.
type AllKeysFunc func() ([]string, error)

func indexable(k document.Kind) bool {
	switch k {
	case document.KindNull, document.KindBool, document.KindNumber, document.KindString:
		return true
	}
	return false
}

func orderable(k document.Kind) bool {
	return k == document.KindNumber || k == document.KindString
}

func toSet(keys []string) map[string]struct{} {
	s := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func fromSet(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

func intersect(sets []map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return map[string]struct{}{}
	}
	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}
	out := make(map[string]struct{})
	for k := range smallest {
		inAll := true
		for _, s := range sets {
			if _, ok := s[k]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out[k] = struct{}{}
		}
	}
	return out
}

func union(sets []map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

func complement(universe, exclude map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range universe {
		if _, ok := exclude[k]; !ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// Plan computes the candidate key set for n: a superset of the keys whose
// document actually satisfies n. The engine re-fetches and verifies every
// candidate against Eval before returning it, so Plan is free to over-
// include (e.g. it always does for literal types the index can't hold, or
// when a predicate simply isn't pushable) but must never under-include.
func Plan(n *Node, ix *index.Index, allKeys AllKeysFunc) (map[string]struct{}, error) {
	switch n.Op {
	case OpEq:
		lit, err := n.Literal.Value()
		if err != nil {
			return nil, err
		}
		if !indexable(lit.Kind) {
			return allKeysSet(allKeys)
		}
		keys, err := ix.EqKeys(n.Path, lit.Kind, lit)
		if err != nil {
			return nil, err
		}
		return toSet(keys), nil

	case OpIncludes:
		lit, err := n.Literal.Value()
		if err != nil {
			return nil, err
		}
		if !indexable(lit.Kind) {
			return allKeysSet(allKeys)
		}
		keys, err := ix.EqKeys(n.Path, lit.Kind, lit)
		if err != nil {
			return nil, err
		}
		return toSet(keys), nil

	case OpNe:
		lit, err := n.Literal.Value()
		if err != nil {
			return nil, err
		}
		pathKeys, err := ix.PathKeys(n.Path)
		if err != nil {
			return nil, err
		}
		var eqKeys []string
		if indexable(lit.Kind) {
			if eqKeys, err = ix.EqKeys(n.Path, lit.Kind, lit); err != nil {
				return nil, err
			}
		}
		return complement(toSet(pathKeys), toSet(eqKeys)), nil

	case OpGt, OpGte, OpLt, OpLte:
		lit, err := n.Literal.Value()
		if err != nil {
			return nil, err
		}
		if !orderable(lit.Kind) {
			return allKeysSet(allKeys)
		}
		var low, high *document.Value
		lowIncl, highIncl := false, false
		switch n.Op {
		case OpGt:
			low = &lit
		case OpGte:
			low = &lit
			lowIncl = true
		case OpLt:
			high = &lit
		case OpLte:
			high = &lit
			highIncl = true
		}
		keys, err := ix.RangeKeys(n.Path, lit.Kind, low, high, lowIncl, highIncl)
		if err != nil {
			return nil, err
		}
		return toSet(keys), nil

	case OpAnd:
		sets := make([]map[string]struct{}, 0, len(n.Args))
		for _, arg := range n.Args {
			s, err := Plan(arg, ix, allKeys)
			if err != nil {
				return nil, err
			}
			sets = append(sets, s)
		}
		return intersect(sets), nil

	case OpOr:
		sets := make([]map[string]struct{}, 0, len(n.Args))
		for _, arg := range n.Args {
			s, err := Plan(arg, ix, allKeys)
			if err != nil {
				return nil, err
			}
			sets = append(sets, s)
		}
		return union(sets), nil

	case OpNot:
		inner, err := Plan(n.Arg, ix, allKeys)
		if err != nil {
			return nil, err
		}
		universe, err := allKeysSet(allKeys)
		if err != nil {
			return nil, err
		}
		return complement(universe, inner), nil

	case OpGeoWithinRadius:
		keys, err := ix.GeoRadiusKeys(n.Field, n.Lat, n.Lon, n.Radius)
		if err != nil {
			return nil, err
		}
		return toSet(keys), nil

	case OpGeoInBox:
		keys, err := ix.GeoBoxKeys(n.Field, n.MinLat, n.MinLon, n.MaxLat, n.MaxLon)
		if err != nil {
			return nil, err
		}
		return toSet(keys), nil

	default:
		return allKeysSet(allKeys)
	}
}

func allKeysSet(allKeys AllKeysFunc) (map[string]struct{}, error) {
	keys, err := allKeys()
	if err != nil {
		return nil, err
	}
	return toSet(keys), nil
}
