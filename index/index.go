// Package index maintains the secondary field index and geo index described
// in the engine's data model: reverse mappings from (path, type, leaf value)
// and (path, grid cell) back to the set of keys whose document produced that
// entry. Both live in the same durable keyspace as the documents themselves
// (store.Store), partitioned by the `i/` and `g/` prefixes, so index updates
// ride the same atomic batch as the document write.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"docdb/document"
	"docdb/geo"
	"docdb/store"
)

const (
	fieldPrefixByte = 'i'
	geoPrefixByte   = 'g'
	sep             = 0x00
)

// FieldEntry is one (path, type, leaf) tuple a document contributes to the
// field index.
type FieldEntry struct {
	Path string
	Kind document.Kind
	Leaf document.Value
}

// GeoEntry is one (path, cell) tuple a document contributes to the geo
// index.
type GeoEntry struct {
	Path string
	Cell string
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// Walk recursively descends a document, recording one FieldEntry per scalar
// leaf reached and one GeoEntry per object that qualifies as a geo point, at
// every path along the way. It mirrors field.Extract's traversal rule
// (objects descend by name, arrays fan out without consuming a path
// segment) but walks every path in the document at once rather than one
// query path, and treats every array element individually rather than
// stopping at the array itself — the field-index therefore always has an
// entry under a path even when that path terminates at an array, which
// makes it a safe (over-inclusive) candidate source for Includes; the
// query engine's mandatory verification step re-checks the exact semantics
// against the real document.
func Walk(doc document.Value) ([]FieldEntry, []GeoEntry) {
	var fields []FieldEntry
	var geos []GeoEntry

	var walk func(v document.Value, path string)
	walk = func(v document.Value, path string) {
		if v.Kind == document.KindObject {
			if lat, lon, ok := v.GeoPoint(); ok {
				geos = append(geos, GeoEntry{Path: path, Cell: geo.CellKey(lat, lon)})
			}
			if v.Obj != nil {
				for pair := v.Obj.Oldest(); pair != nil; pair = pair.Next() {
					walk(pair.Value, joinPath(path, pair.Key))
				}
			}
			return
		}
		if v.Kind == document.KindArray {
			for _, elem := range v.Arr {
				walk(elem, path)
			}
			return
		}
		fields = append(fields, FieldEntry{Path: path, Kind: v.Kind, Leaf: v})
	}
	walk(doc, "")
	return fields, geos
}

// Index wraps the durable store with field/geo index maintenance and probes.
type Index struct {
	st *store.Store
}

// New wraps st as an index.
func New(st *store.Store) *Index {
	return &Index{st: st}
}

func encodeLeafBytes(v document.Value) ([]byte, error) {
	switch v.Kind {
	case document.KindNull:
		return nil, nil
	case document.KindBool:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case document.KindNumber:
		return encodeOrderableNumber(v.Num), nil
	case document.KindString:
		if bytes.IndexByte([]byte(v.Str), sep) >= 0 {
			return nil, fmt.Errorf("index: string leaf containing a NUL byte is not indexable")
		}
		return []byte(v.Str), nil
	default:
		return nil, fmt.Errorf("index: kind %s is not an indexable leaf", v.Kind)
	}
}

// encodeOrderableNumber maps a Number to an 8-byte big-endian encoding whose
// unsigned byte ordering matches numeric ordering, by flipping the sign bit
// of positive floats and all bits of negative ones (the standard sortable
// IEEE-754 trick).
func encodeOrderableNumber(n document.Number) []byte {
	bits := math.Float64bits(n.Float64())
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[7-i] = byte(bits)
		bits >>= 8
	}
	return out
}

func fieldPathPrefix(path string) []byte {
	return []byte(fmt.Sprintf("%c/%s%c", fieldPrefixByte, path, sep))
}

func fieldKindPrefix(path string, kind document.Kind) []byte {
	return append(fieldPathPrefix(path), byte(kind), sep)
}

func fieldKey(path string, kind document.Kind, leafBytes []byte, key string) []byte {
	out := fieldKindPrefix(path, kind)
	out = append(out, leafBytes...)
	out = append(out, sep)
	out = append(out, []byte(key)...)
	return out
}

func geoPathPrefix(path string) []byte {
	return []byte(fmt.Sprintf("%c/%s%c", geoPrefixByte, path, sep))
}

func geoKey(path, cell, key string) []byte {
	out := geoPathPrefix(path)
	out = append(out, []byte(cell)...)
	out = append(out, sep)
	out = append(out, []byte(key)...)
	return out
}

// entryKeySet builds the set of raw store keys a document contributes to
// the index, keyed by their string form for set-difference purposes.
func entryKeySet(key string, doc *document.Value) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if doc == nil {
		return out, nil
	}
	fields, geos := Walk(*doc)
	for _, f := range fields {
		leafBytes, err := encodeLeafBytes(f.Leaf)
		if err != nil {
			return nil, err
		}
		k := fieldKey(f.Path, f.Kind, leafBytes, key)
		out[string(k)] = k
	}
	for _, g := range geos {
		k := geoKey(g.Path, g.Cell, key)
		out[string(k)] = k
	}
	return out, nil
}

// Diff computes the store.Op batch that transitions key's index entries
// from oldDoc to newDoc: deletes for entries only old has, puts for entries
// only new has. Either document may be nil (absent/deleted).
func Diff(key string, oldDoc, newDoc *document.Value) ([]store.Op, error) {
	oldKeys, err := entryKeySet(key, oldDoc)
	if err != nil {
		return nil, fmt.Errorf("index: diff old: %w", err)
	}
	newKeys, err := entryKeySet(key, newDoc)
	if err != nil {
		return nil, fmt.Errorf("index: diff new: %w", err)
	}

	var ops []store.Op
	for k, raw := range oldKeys {
		if _, ok := newKeys[k]; !ok {
			ops = append(ops, store.Op{Key: raw, Value: nil})
		}
	}
	for k, raw := range newKeys {
		if _, ok := oldKeys[k]; !ok {
			ops = append(ops, store.Op{Key: raw, Value: []byte{}})
		}
	}
	return ops, nil
}

// EqKeys returns every document key whose (path, kind) field index entry has
// exactly leaf as its value.
func (ix *Index) EqKeys(path string, kind document.Kind, leaf document.Value) ([]string, error) {
	leafBytes, err := encodeLeafBytes(leaf)
	if err != nil {
		return nil, err
	}
	prefix := append(fieldKindPrefix(path, kind), leafBytes...)
	prefix = append(prefix, sep)

	var keys []string
	err = ix.st.ScanPrefix(prefix, func(e store.Entry) error {
		keys = append(keys, string(e.Key[len(prefix):]))
		return nil
	})
	return keys, err
}

var errStopScan = errors.New("index: stop scan")

// leafByteLen reports the on-disk width of kind's encoded leaf bytes, and
// whether that width is fixed. Number (8 bytes), Bool (1 byte) and Null (0
// bytes) are fixed-width and may themselves contain the sep byte (e.g. any
// Number whose big-endian encoding has a zero byte, or Bool false, which
// encodes as a single 0x00); their leaf/key boundary must be located by
// width, never by scanning for sep. Only String leaves are scanned for sep,
// since encodeLeafBytes rejects String leaves containing a NUL byte.
func leafByteLen(kind document.Kind) (width int, fixed bool) {
	switch kind {
	case document.KindNumber:
		return 8, true
	case document.KindBool:
		return 1, true
	case document.KindNull:
		return 0, true
	default:
		return 0, false
	}
}

// leafBoundary locates the end of the leaf bytes within rest (which starts
// at the first leaf byte and ends with <sep><key>), for an entry of the
// given kind.
func leafBoundary(kind document.Kind, rest []byte) (end int, ok bool) {
	if width, fixed := leafByteLen(kind); fixed {
		if len(rest) < width+1 || rest[width] != sep {
			return 0, false
		}
		return width, true
	}
	i := bytes.IndexByte(rest, sep)
	if i < 0 {
		return 0, false
	}
	return i, true
}

// RangeKeys returns every key whose (path, kind) leaf value falls between
// low and high (either may be nil for unbounded), honoring inclusivity.
func (ix *Index) RangeKeys(path string, kind document.Kind, low, high *document.Value, lowInclusive, highInclusive bool) ([]string, error) {
	var lowBytes, highBytes []byte
	var err error
	if low != nil {
		if lowBytes, err = encodeLeafBytes(*low); err != nil {
			return nil, err
		}
	}
	if high != nil {
		if highBytes, err = encodeLeafBytes(*high); err != nil {
			return nil, err
		}
	}

	prefix := fieldKindPrefix(path, kind)
	prefixLen := len(prefix)

	var keys []string
	err = ix.st.ScanPrefix(prefix, func(e store.Entry) error {
		rest := e.Key[prefixLen:]
		i, ok := leafBoundary(kind, rest)
		if !ok {
			return nil
		}
		leafBytes := rest[:i]

		if lowBytes != nil {
			c := bytes.Compare(leafBytes, lowBytes)
			if c < 0 || (c == 0 && !lowInclusive) {
				return nil
			}
		}
		if highBytes != nil {
			c := bytes.Compare(leafBytes, highBytes)
			if c > 0 || (c == 0 && !highInclusive) {
				return errStopScan
			}
		}
		keys = append(keys, string(rest[i+1:]))
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	return keys, nil
}

// PathKeys returns every key that has at least one field-index entry under
// path, regardless of type or value: the materialized universe Ne's
// complement is computed against.
func (ix *Index) PathKeys(path string) ([]string, error) {
	prefix := fieldPathPrefix(path)
	prefixLen := len(prefix)

	seen := make(map[string]struct{})
	var keys []string
	err := ix.st.ScanPrefix(prefix, func(e store.Entry) error {
		// Each entry is <kind byte><sep><leafBytes><sep><key>; the kind
		// byte picks the right leaf/key boundary rule below.
		kind := document.Kind(e.Key[prefixLen])
		rest := e.Key[prefixLen+2:]
		i, ok := leafBoundary(kind, rest)
		if !ok {
			return nil
		}
		k := string(rest[i+1:])
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}

// GeoCellKeys returns every key with a geo entry under path whose cell
// falls under the given cell prefix.
func (ix *Index) GeoCellKeys(path, cellPrefix string) ([]string, error) {
	prefix := append(geoPathPrefix(path), []byte(cellPrefix)...)
	prefixLen := len(geoPathPrefix(path))

	seen := make(map[string]struct{})
	var keys []string
	err := ix.st.ScanPrefix(prefix, func(e store.Entry) error {
		rest := e.Key[prefixLen:]
		i := bytes.IndexByte(rest, sep)
		if i < 0 {
			return nil
		}
		k := string(rest[i+1:])
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}

// GeoRadiusKeys returns the candidate key set for a radius query: the union
// of every key in every grid cell that could intersect centre±radius.
// Candidates are a superset of the true match; callers filter by exact
// geo.Distance.
func (ix *Index) GeoRadiusKeys(path string, lat, lon, radiusMeters float64) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, cellPrefix := range geo.CoverRadius(lat, lon, radiusMeters) {
		ks, err := ix.GeoCellKeys(path, cellPrefix)
		if err != nil {
			return nil, err
		}
		for _, k := range ks {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// GeoBoxKeys returns the candidate key set for an axis-aligned box query.
func (ix *Index) GeoBoxKeys(path string, minLat, minLon, maxLat, maxLon float64) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, cellPrefix := range geo.CoverBox(minLat, minLon, maxLat, maxLon) {
		ks, err := ix.GeoCellKeys(path, cellPrefix)
		if err != nil {
			return nil, err
		}
		for _, k := range ks {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}
