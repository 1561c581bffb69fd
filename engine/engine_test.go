package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdb/document"
	"docdb/enginerr"
	"docdb/query"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustUnmarshal(t *testing.T, j string) document.Value {
	t.Helper()
	v, err := document.Unmarshal([]byte(j))
	require.NoError(t, err)
	return v
}

func TestSetGetRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v := mustUnmarshal(t, `{"name":"alice"}`)

	require.NoError(t, e.Set(ctx, "k1", v))
	got, err := e.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, got.Equal(v))
}

func TestGetAbsentIsNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, enginerr.KindNotFound, enginerr.KindOf(err))
}

func TestDeleteAbsentIsSuccess(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Delete(context.Background(), "never-existed"))
}

func TestSetOverwriteDropsStaleIndexEntries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Set(ctx, "k1", mustUnmarshal(t, `{"status":"pending"}`)))
	require.NoError(t, e.Set(ctx, "k1", mustUnmarshal(t, `{"status":"done"}`)))

	n := &query.Node{Op: query.OpEq, Path: "status", Literal: &query.Literal{Type: "string", Raw: []byte(`"pending"`)}}
	results, err := e.Query(ctx, n, nil, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	n2 := &query.Node{Op: query.OpEq, Path: "status", Literal: &query.Literal{Type: "string", Raw: []byte(`"done"`)}}
	results, err = e.Query(ctx, n2, nil, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestTransactionAtomicity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Set(ctx, "tx_delete_me", mustUnmarshal(t, `"initial"`)))

	err := e.Transaction(ctx, []TxOp{
		{Type: "set", Key: "tx_set_key", Value: mustUnmarshal(t, `{"status":"set in transaction"}`)},
		{Type: "delete", Key: "tx_delete_me"},
		{Type: "set", Key: "tx_another_set", Value: mustUnmarshal(t, `12345`)},
	})
	require.NoError(t, err)

	v, err := e.Get(ctx, "tx_set_key")
	require.NoError(t, err)
	assert.True(t, v.Equal(mustUnmarshal(t, `{"status":"set in transaction"}`)))

	v, err = e.Get(ctx, "tx_another_set")
	require.NoError(t, err)
	assert.True(t, v.Equal(mustUnmarshal(t, `12345`)))

	_, err = e.Get(ctx, "tx_delete_me")
	require.Error(t, err)
	assert.Equal(t, enginerr.KindNotFound, enginerr.KindOf(err))
}

func TestClearPrefix(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Set(ctx, "prefix/key1", mustUnmarshal(t, `1`)))
	require.NoError(t, e.Set(ctx, "prefix/key2", mustUnmarshal(t, `2`)))
	require.NoError(t, e.Set(ctx, "prefix/deep/key3", mustUnmarshal(t, `3`)))
	require.NoError(t, e.Set(ctx, "other_key", mustUnmarshal(t, `4`)))

	n, err := e.ClearPrefix(ctx, "prefix/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, k := range []string{"prefix/key1", "prefix/key2", "prefix/deep/key3"} {
		_, err := e.Get(ctx, k)
		require.Error(t, err)
		assert.Equal(t, enginerr.KindNotFound, enginerr.KindOf(err))
	}
	_, err = e.Get(ctx, "other_key")
	require.NoError(t, err)
}

func TestDropDatabaseReturnsPriorCount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Set(ctx, "a", mustUnmarshal(t, `1`)))
	require.NoError(t, e.Set(ctx, "b", mustUnmarshal(t, `2`)))

	n, err := e.DropDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = e.Get(ctx, "a")
	require.Error(t, err)
}

func TestLiveUpdateDelivery(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sub := e.Watch("realtime_key")
	defer sub.Stop()

	require.NoError(t, e.Set(ctx, "realtime_key", mustUnmarshal(t, `{"message":"hello from test"}`)))

	select {
	case c := <-sub.Changes:
		assert.Equal(t, "realtime_key", c.Key)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	got, err := e.Get(ctx, "realtime_key")
	require.NoError(t, err)
	assert.True(t, got.Equal(mustUnmarshal(t, `{"message":"hello from test"}`)))
}

func TestNestedQuery(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	users := []struct {
		name    string
		enabled bool
	}{
		{"Alice", true}, {"Bob", false}, {"Charlie", true}, {"Dana", false},
	}
	for _, u := range users {
		doc := mustUnmarshal(t, `{"name":"`+u.name+`","profile":{"settings":{"notifications":{"email":{"enabled":`+strconv.FormatBool(u.enabled)+`}}}}}`)
		require.NoError(t, e.Set(ctx, u.name, doc))
	}

	n := &query.Node{
		Op:      query.OpEq,
		Path:    "profile.settings.notifications.email.enabled",
		Literal: &query.Literal{Type: "bool", Raw: []byte("true")},
	}
	results, err := e.Query(ctx, n, nil, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var names []string
	for _, r := range results {
		name, _ := r.Obj.Get("name")
		names = append(names, name.Str)
	}
	assert.ElementsMatch(t, []string{"Alice", "Charlie"}, names)
}

func TestPagination(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		doc := mustUnmarshal(t, `{"type":"pagination_test","index":`+strconv.Itoa(i)+`}`)
		require.NoError(t, e.Set(ctx, fmt.Sprintf("item%02d", i), doc))
	}

	n := &query.Node{Op: query.OpEq, Path: "type", Literal: &query.Literal{Type: "string", Raw: []byte(`"pagination_test"`)}}

	limit := 5
	results, err := e.Query(ctx, n, nil, 7, &limit)
	require.NoError(t, err)
	require.Len(t, results, 5)

	var indexes []int64
	for _, r := range results {
		idxVal, _ := r.Obj.Get("index")
		indexes = append(indexes, idxVal.Num.I64)
	}
	assert.ElementsMatch(t, []int64{7, 8, 9, 10, 11}, indexes)

	results, err = e.Query(ctx, n, nil, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProjectionNestedPaths(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Set(ctx, "post1", mustUnmarshal(t, `{"title":"a","author":{"id":"author1","name":"Alice"}}`)))
	require.NoError(t, e.Set(ctx, "post2", mustUnmarshal(t, `{"title":"b","author":{"id":"author2","name":"Bob"}}`)))
	require.NoError(t, e.Set(ctx, "post3", mustUnmarshal(t, `{"title":"c","author":{"id":"author1","name":"Alice"}}`)))

	n := &query.Node{Op: query.OpEq, Path: "author.id", Literal: &query.Literal{Type: "string", Raw: []byte(`"author1"`)}}
	results, err := e.Query(ctx, n, []string{"title", "author.name"}, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, 2, r.Obj.Len())
		_, hasTitle := r.Obj.Get("title")
		assert.True(t, hasTitle)
		authorVal, hasAuthor := r.Obj.Get("author")
		require.True(t, hasAuthor)
		assert.Equal(t, 1, authorVal.Obj.Len())
	}
}
