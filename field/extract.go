// Package field evaluates dotted field paths against documents.
package field

import (
	"strings"

	"docdb/document"
)

// Extract resolves a dotted path against a document and returns the multiset
// of leaf values reached. Objects are descended by field name; arrays map the
// remaining path over every element (numeric segments never index an array —
// they are matched as ordinary field names the same as any other segment);
// scalars terminate the walk. A path with any absent segment yields an empty
// result, never an error.
func Extract(v document.Value, path string) []document.Value {
	if path == "" {
		return []document.Value{v}
	}
	return extract(v, strings.Split(path, "."))
}

func extract(v document.Value, segments []string) []document.Value {
	if len(segments) == 0 {
		return []document.Value{v}
	}

	switch v.Kind {
	case document.KindObject:
		if v.Obj == nil {
			return nil
		}
		child, ok := v.Obj.Get(segments[0])
		if !ok {
			return nil
		}
		return extract(child, segments[1:])
	case document.KindArray:
		var out []document.Value
		for _, elem := range v.Arr {
			out = append(out, extract(elem, segments)...)
		}
		return out
	default:
		// scalar reached with path remaining: nothing further to descend into
		return nil
	}
}
