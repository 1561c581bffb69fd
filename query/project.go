package query

import (
	"strings"

	"docdb/document"
)

// Project returns a new document containing only the given dotted paths,
// each with its nested structure preserved (e.g. projecting "author.name"
// builds {author:{name:...}}). Paths absent from doc contribute nothing. An
// empty paths list means "full document".
func Project(doc document.Value, paths []string) document.Value {
	if len(paths) == 0 {
		return doc
	}
	result := document.NewObject()
	for _, p := range paths {
		projectOne(doc, strings.Split(p, "."), result)
	}
	return document.NewObjectValue(result)
}

// projectOne copies the value doc resolves to along segments into dest,
// creating intermediate objects as needed. It does not fan out through
// arrays: projection addresses one concrete nested shape, not a multiset.
func projectOne(doc document.Value, segments []string, dest *document.Object) {
	if len(segments) == 0 || doc.Kind != document.KindObject || doc.Obj == nil {
		return
	}
	head := segments[0]
	child, ok := doc.Obj.Get(head)
	if !ok {
		return
	}
	if len(segments) == 1 {
		dest.Set(head, child)
		return
	}
	if existing, ok := dest.Get(head); ok && existing.Kind == document.KindObject {
		projectOne(child, segments[1:], existing.Obj)
		return
	}
	nested := document.NewObject()
	projectOne(child, segments[1:], nested)
	if nested.Len() > 0 {
		dest.Set(head, document.NewObjectValue(nested))
	}
}

// Paginate applies offset then limit to a key slice. A nil limit means
// unbounded. offset beyond the slice length yields an empty result; limit
// past the end yields whatever remains.
func Paginate(keys []string, offset int, limit *int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) {
		return nil
	}
	keys = keys[offset:]
	if limit == nil {
		return keys
	}
	if *limit < 0 {
		return nil
	}
	if *limit < len(keys) {
		return keys[:*limit]
	}
	return keys
}
