package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsNearestFirst(t *testing.T) {
	idx := New(Config{Dimensions: 2, DistanceAlgorithm: "euclidean"})
	require.NoError(t, idx.Add(1, []float64{0, 0}))
	require.NoError(t, idx.Add(2, []float64{10, 10}))
	require.NoError(t, idx.Add(3, []float64{0.1, 0.1}))

	got, err := idx.Search([]float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0])
}

func TestAddRejectsWrongDimensions(t *testing.T) {
	idx := New(Config{Dimensions: 3, DistanceAlgorithm: "cosine"})
	err := idx.Add(1, []float64{1, 2})
	assert.Error(t, err)
}

func TestRemoveExcludesFromSearch(t *testing.T) {
	idx := New(Config{Dimensions: 2, DistanceAlgorithm: "euclidean"})
	require.NoError(t, idx.Add(1, []float64{0, 0}))
	require.NoError(t, idx.Add(2, []float64{0.01, 0.01}))

	idx.Remove(1)
	got, err := idx.Search([]float64{0, 0}, 2)
	require.NoError(t, err)
	assert.NotContains(t, got, uint32(1))
	assert.Equal(t, 1, idx.Len())
}

func TestAddReplacesPriorVectorForSameID(t *testing.T) {
	idx := New(Config{Dimensions: 2, DistanceAlgorithm: "euclidean"})
	require.NoError(t, idx.Add(1, []float64{0, 0}))
	require.NoError(t, idx.Add(1, []float64{100, 100}))

	assert.Equal(t, 1, idx.Len())
	got, err := idx.Search([]float64{100, 100}, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, got)
}
