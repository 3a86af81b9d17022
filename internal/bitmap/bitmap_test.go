package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddRemoveContains(t *testing.T) {
	b := New()
	assert.True(t, b.IsEmpty())
	b.Add(5)
	b.Add(3)
	b.Add(5)
	assert.True(t, b.Contains(5))
	assert.True(t, b.Contains(3))
	assert.False(t, b.Contains(4))
	assert.Equal(t, uint64(2), b.Size())

	b.Remove(5)
	assert.False(t, b.Contains(5))
	assert.Equal(t, uint64(1), b.Size())
}

func TestToSliceAscending(t *testing.T) {
	b := FromSlice([]DocID{5, 1, 3, 1})
	assert.Equal(t, []DocID{1, 3, 5}, b.ToSlice())
}

func TestUnion(t *testing.T) {
	a := FromSlice([]DocID{1, 2})
	b := FromSlice([]DocID{2, 3})
	c := FromSlice([]DocID{4})
	u := Union(a, b, c)
	assert.Equal(t, []DocID{1, 2, 3, 4}, u.ToSlice())
}

func TestIntersect(t *testing.T) {
	a := FromSlice([]DocID{1, 2, 3})
	b := FromSlice([]DocID{2, 3, 4})
	c := FromSlice([]DocID{3, 4, 5})
	got := Intersect(a, b, c)
	assert.Equal(t, []DocID{3}, got.ToSlice())
}

func TestIntersectEmptyInput(t *testing.T) {
	assert.True(t, Intersect().IsEmpty())
}

func TestDifference(t *testing.T) {
	a := FromSlice([]DocID{1, 2, 3})
	b := FromSlice([]DocID{2})
	got := Difference(a, b)
	assert.Equal(t, []DocID{1, 3}, got.ToSlice())
}

func TestCloneIsIndependent(t *testing.T) {
	a := FromSlice([]DocID{1, 2})
	clone := a.Clone()
	clone.Add(3)
	assert.False(t, a.Contains(3))
	assert.True(t, clone.Contains(3))
}

func TestIterateStopsEarly(t *testing.T) {
	b := FromSlice([]DocID{1, 2, 3, 4, 5})
	var seen []DocID
	b.Iterate(func(id DocID) bool {
		seen = append(seen, id)
		return id < 3
	})
	assert.Equal(t, []DocID{1, 2, 3}, seen)
}
