package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdb/document"
)

func mustValue(t *testing.T, json string) document.Value {
	t.Helper()
	v, err := document.Unmarshal([]byte(json))
	require.NoError(t, err)
	return v
}

func TestExtractObjectDescent(t *testing.T) {
	v := mustValue(t, `{"a":{"b":{"c":7}}}`)
	got := Extract(v, "a.b.c")
	require.Len(t, got, 1)
	assert.Equal(t, document.NewInt(7), got[0])
}

func TestExtractMissingSegmentIsEmpty(t *testing.T) {
	v := mustValue(t, `{"a":{"b":1}}`)
	assert.Empty(t, Extract(v, "a.x"))
	assert.Empty(t, Extract(v, "x"))
}

func TestExtractScalarTerminatesPath(t *testing.T) {
	v := mustValue(t, `{"a":5}`)
	assert.Empty(t, Extract(v, "a.b"))
}

func TestExtractArrayFanOut(t *testing.T) {
	v := mustValue(t, `{"tags":[{"name":"x"},{"name":"y"},{"name":"z"}]}`)
	got := Extract(v, "tags.name")
	require.Len(t, got, 3)
	assert.Equal(t, document.NewString("x"), got[0])
	assert.Equal(t, document.NewString("y"), got[1])
	assert.Equal(t, document.NewString("z"), got[2])
}

func TestExtractArrayFanOutNested(t *testing.T) {
	v := mustValue(t, `{"a":[{"b":[{"c":1},{"c":2}]},{"b":[{"c":3}]}]}`)
	got := Extract(v, "a.b.c")
	require.Len(t, got, 3)
	assert.Equal(t, document.NewInt(1), got[0])
	assert.Equal(t, document.NewInt(2), got[1])
	assert.Equal(t, document.NewInt(3), got[2])
}

func TestExtractWholeArrayAsLeaf(t *testing.T) {
	v := mustValue(t, `{"tags":["a","b"]}`)
	got := Extract(v, "tags")
	require.Len(t, got, 1)
	assert.Equal(t, document.KindArray, got[0].Kind)
}

func TestExtractNumericSegmentDoesNotIndexArray(t *testing.T) {
	v := mustValue(t, `{"a":[10,20,30]}`)
	// "0" is matched as an object field name, not an array index; since the
	// elements are scalars (not objects), nothing matches.
	assert.Empty(t, Extract(v, "a.0"))
}

func TestExtractEmptyPathReturnsWholeDocument(t *testing.T) {
	v := mustValue(t, `{"a":1}`)
	got := Extract(v, "")
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(v))
}
