package textindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchFindsIndexedDocument(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	require.NoError(t, idx.Add(1, "the quick brown fox"))
	require.NoError(t, idx.Add(2, "a slow green turtle"))

	ids, err := idx.Search("quick brown", 10)
	require.NoError(t, err)
	assert.Contains(t, ids, uint32(1))
	assert.NotContains(t, ids, uint32(2))
}

func TestAddReindexesSameDocID(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	require.NoError(t, idx.Add(1, "apples"))
	require.NoError(t, idx.Add(1, "oranges"))

	assert.Equal(t, 1, idx.Len())
	ids, err := idx.Search("apples", 10)
	require.NoError(t, err)
	assert.NotContains(t, ids, uint32(1))

	ids, err = idx.Search("oranges", 10)
	require.NoError(t, err)
	assert.Contains(t, ids, uint32(1))
}

func TestRemoveExcludesFromSearch(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	require.NoError(t, idx.Add(1, "hello world"))
	require.NoError(t, idx.Remove(1))

	ids, err := idx.Search("hello", 10)
	require.NoError(t, err)
	assert.NotContains(t, ids, uint32(1))
	assert.Equal(t, 0, idx.Len())
}

func TestSearchEmptyQueryReturnsNoResults(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	require.NoError(t, idx.Add(1, "hello world"))

	ids, err := idx.Search("", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
