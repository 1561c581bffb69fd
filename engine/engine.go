// Package engine is the write-path transaction coordinator and read path:
// the single place that mutates the store and its indexes together, and the
// only thing the HTTP boundary talks to for document and query operations.
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"docdb/document"
	"docdb/enginerr"
	"docdb/hub"
	"docdb/index"
	"docdb/query"
	"docdb/store"
)

const docPrefix = "d/"

// KV is one key/value pair, as used by batch_set, transaction, import and
// export.
type KV struct {
	Key   string         `json:"key"`
	Value document.Value `json:"value"`
}

// TxOp is one operation within a transaction: either a set (Value populated)
// or a delete.
type TxOp struct {
	Type  string         `json:"type"` // "set" or "delete"
	Key   string         `json:"key"`
	Value document.Value `json:"value,omitempty"`
}

// Engine owns the durable store, its derived indexes, and the change
// notification hub, and serializes every mutation through a single writer
// lock. Reads run unlocked against the store's own snapshot iterators.
type Engine struct {
	st  *store.Store
	ix  *index.Index
	hub *hub.Hub

	writeMu sync.Mutex
}

// Open opens (or creates) the database file at path and wires up its index
// and change hub.
func Open(path string) (*Engine, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.KindFatal, "open store", err)
	}
	return &Engine{st: st, ix: index.New(st), hub: hub.New()}, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.st.Close()
}

// Watch registers a live subscription for change events on key.
func (e *Engine) Watch(key string) hub.Subscription {
	return e.hub.Watch(key)
}

// mutation is one key's target state within a single commit: a nil Value
// means delete.
type mutation struct {
	Key   string
	Value *document.Value
}

// commit applies muts atomically: every affected key's document and index
// entries land in one store batch, or none do. On success it publishes one
// change event per affected key, in key order.
func (e *Engine) commit(ctx context.Context, muts []mutation) error {
	if err := ctx.Err(); err != nil {
		return enginerr.Cancelled()
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// Fold duplicate keys, keeping the last-listed value per key but the
	// first-seen position for a stable commit order.
	order := make([]string, 0, len(muts))
	latest := make(map[string]*document.Value, len(muts))
	for _, m := range muts {
		if _, seen := latest[m.Key]; !seen {
			order = append(order, m.Key)
		}
		latest[m.Key] = m.Value
	}

	var ops []store.Op
	for _, key := range order {
		storeKey := []byte(docPrefix + key)

		oldRaw, found, err := e.st.Get(storeKey)
		if err != nil {
			return enginerr.Wrap(enginerr.KindTransient, "read existing document", err)
		}
		var oldDoc *document.Value
		if found {
			v, err := document.Unmarshal(oldRaw)
			if err != nil {
				return enginerr.Wrap(enginerr.KindFatal, "decode stored document", err)
			}
			oldDoc = &v
		}

		newDoc := latest[key]

		diffOps, err := index.Diff(key, oldDoc, newDoc)
		if err != nil {
			return enginerr.Wrap(enginerr.KindFatal, "index maintenance", err)
		}
		ops = append(ops, diffOps...)

		if newDoc == nil {
			ops = append(ops, store.Op{Key: storeKey, Value: nil})
		} else {
			raw, err := document.Marshal(*newDoc)
			if err != nil {
				return enginerr.Wrap(enginerr.KindMalformed, "encode document", err)
			}
			ops = append(ops, store.Op{Key: storeKey, Value: raw})
		}
	}

	if len(ops) == 0 {
		return nil
	}
	if err := e.st.Batch(ops); err != nil {
		return enginerr.Wrap(enginerr.KindTransient, "commit batch", err)
	}

	sorted := append([]string(nil), order...)
	sort.Strings(sorted)
	e.hub.PublishAll(sorted)
	return nil
}

// Set replaces or inserts the document at key.
func (e *Engine) Set(ctx context.Context, key string, value document.Value) error {
	v := value
	return e.commit(ctx, []mutation{{Key: key, Value: &v}})
}

// Delete removes key if present; absence is success, not an error.
func (e *Engine) Delete(ctx context.Context, key string) error {
	return e.commit(ctx, []mutation{{Key: key, Value: nil}})
}

// BatchSet applies every item as a replace-or-insert, atomically.
func (e *Engine) BatchSet(ctx context.Context, items []KV) error {
	muts := make([]mutation, len(items))
	for i, it := range items {
		v := it.Value
		muts[i] = mutation{Key: it.Key, Value: &v}
	}
	return e.commit(ctx, muts)
}

// Transaction applies a heterogeneous sequence of set/delete operations
// atomically, in listed order; later operations on the same key win.
func (e *Engine) Transaction(ctx context.Context, ops []TxOp) error {
	muts := make([]mutation, len(ops))
	for i, op := range ops {
		switch op.Type {
		case "set":
			v := op.Value
			muts[i] = mutation{Key: op.Key, Value: &v}
		case "delete":
			muts[i] = mutation{Key: op.Key, Value: nil}
		default:
			return enginerr.Malformed("unrecognized transaction op type %q", op.Type)
		}
	}
	return e.commit(ctx, muts)
}

// Import bulk-upserts a list of items, atomically.
func (e *Engine) Import(ctx context.Context, items []KV) error {
	return e.BatchSet(ctx, items)
}

// ClearPrefix atomically deletes every document whose key starts with
// prefix, returning how many were removed.
func (e *Engine) ClearPrefix(ctx context.Context, prefix string) (int, error) {
	entries, err := e.st.CollectPrefix([]byte(docPrefix + prefix))
	if err != nil {
		return 0, enginerr.Wrap(enginerr.KindTransient, "scan prefix", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	muts := make([]mutation, len(entries))
	for i, en := range entries {
		muts[i] = mutation{Key: strings.TrimPrefix(string(en.Key), docPrefix), Value: nil}
	}
	if err := e.commit(ctx, muts); err != nil {
		return 0, err
	}
	return len(muts), nil
}

// DropDatabase atomically clears the entire keyspace, returning the
// document count it held beforehand.
func (e *Engine) DropDatabase(ctx context.Context) (int, error) {
	return e.ClearPrefix(ctx, "")
}

// Export snapshots the entire key→document mapping as an ordered list.
func (e *Engine) Export(ctx context.Context) ([]KV, error) {
	entries, err := e.st.CollectPrefix([]byte(docPrefix))
	if err != nil {
		return nil, enginerr.Wrap(enginerr.KindTransient, "scan documents", err)
	}
	out := make([]KV, 0, len(entries))
	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return nil, enginerr.Cancelled()
		}
		v, err := document.Unmarshal(en.Value)
		if err != nil {
			return nil, enginerr.Wrap(enginerr.KindFatal, "decode stored document", err)
		}
		out = append(out, KV{Key: strings.TrimPrefix(string(en.Key), docPrefix), Value: v})
	}
	return out, nil
}

// Get returns the document at key, or a NotFound error if absent.
func (e *Engine) Get(ctx context.Context, key string) (document.Value, error) {
	if err := ctx.Err(); err != nil {
		return document.Value{}, enginerr.Cancelled()
	}
	raw, found, err := e.st.Get([]byte(docPrefix + key))
	if err != nil {
		return document.Value{}, enginerr.Wrap(enginerr.KindTransient, "read document", err)
	}
	if !found {
		return document.Value{}, enginerr.NotFound("key %q not found", key)
	}
	v, err := document.Unmarshal(raw)
	if err != nil {
		return document.Value{}, enginerr.Wrap(enginerr.KindFatal, "decode stored document", err)
	}
	return v, nil
}

// GetPartial returns key's document projected onto fields.
func (e *Engine) GetPartial(ctx context.Context, key string, fields []string) (document.Value, error) {
	v, err := e.Get(ctx, key)
	if err != nil {
		return document.Value{}, err
	}
	return query.Project(v, fields), nil
}

func (e *Engine) allKeys() ([]string, error) {
	entries, err := e.st.CollectPrefix([]byte(docPrefix))
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(entries))
	for i, en := range entries {
		keys[i] = strings.TrimPrefix(string(en.Key), docPrefix)
	}
	return keys, nil
}

// cancelCheckInterval is how many verified candidates pass between
// cancellation checks during a query's verification scan.
const cancelCheckInterval = 32

// Query plans ast against the indexes, re-verifies every candidate against
// the full AST, then applies pagination and projection. Candidate keys are
// visited in sorted order so offset/limit are reproducible.
func (e *Engine) Query(ctx context.Context, ast *query.Node, projection []string, offset int, limit *int) ([]document.Value, error) {
	if err := ast.Validate(); err != nil {
		return nil, err
	}

	candidates, err := query.Plan(ast, e.ix, e.allKeys)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var matched []string
	for i, k := range keys {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, enginerr.Cancelled()
			}
		}
		raw, found, err := e.st.Get([]byte(docPrefix + k))
		if err != nil {
			return nil, enginerr.Wrap(enginerr.KindTransient, "read candidate document", err)
		}
		if !found {
			continue // candidate was stale (deleted since indexing)
		}
		doc, err := document.Unmarshal(raw)
		if err != nil {
			return nil, enginerr.Wrap(enginerr.KindFatal, "decode stored document", err)
		}
		ok, err := query.Eval(ast, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, k)
		}
	}

	paged := query.Paginate(matched, offset, limit)
	results := make([]document.Value, 0, len(paged))
	for _, k := range paged {
		raw, found, err := e.st.Get([]byte(docPrefix + k))
		if err != nil {
			return nil, enginerr.Wrap(enginerr.KindTransient, "read result document", err)
		}
		if !found {
			continue
		}
		doc, err := document.Unmarshal(raw)
		if err != nil {
			return nil, enginerr.Wrap(enginerr.KindFatal, "decode stored document", err)
		}
		results = append(results, query.Project(doc, projection))
	}
	return results, nil
}

// QueryRadius returns every document whose geo point at field lies within
// radiusMeters of (lat, lon).
func (e *Engine) QueryRadius(ctx context.Context, field string, lat, lon, radiusMeters float64) ([]document.Value, error) {
	n := &query.Node{Op: query.OpGeoWithinRadius, Field: field, Lat: lat, Lon: lon, Radius: radiusMeters}
	return e.Query(ctx, n, nil, 0, nil)
}

// QueryBox returns every document whose geo point at field lies within the
// axis-aligned box.
func (e *Engine) QueryBox(ctx context.Context, field string, minLat, minLon, maxLat, maxLon float64) ([]document.Value, error) {
	n := &query.Node{Op: query.OpGeoInBox, Field: field, MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
	return e.Query(ctx, n, nil, 0, nil)
}
