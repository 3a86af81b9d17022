// Package bitmap implements a compact sorted doc-id set backed by
// RoaringBitmap, so union/intersect/difference stay linear in operand size
// even at large cardinalities. The roaring wire type works in 32-bit
// space, which bounds a single table to 2^32-1 live doc-ids — far beyond
// anything an embedded, single-process document store needs.
package bitmap

import (
	roaring "github.com/RoaringBitmap/roaring/v2"
)

// DocID is a document identifier as stored in a bitmap: a positive
// (non-zero in practice, though 0 is not rejected here) 32-bit integer.
type DocID = uint32

// Bitmap is a sorted, de-duplicated set of DocIDs.
type Bitmap struct {
	rb *roaring.Bitmap
}

// New returns an empty Bitmap.
func New() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// FromSlice builds a Bitmap containing exactly ids (duplicates collapse).
func FromSlice(ids []DocID) *Bitmap {
	rb := roaring.New()
	rb.AddMany(ids)
	return &Bitmap{rb: rb}
}

// Add inserts id.
func (b *Bitmap) Add(id DocID) { b.rb.Add(id) }

// Remove deletes id, if present.
func (b *Bitmap) Remove(id DocID) { b.rb.Remove(id) }

// Contains reports whether id is a member.
func (b *Bitmap) Contains(id DocID) bool { return b.rb.Contains(id) }

// IsEmpty reports whether the bitmap has no members.
func (b *Bitmap) IsEmpty() bool { return b.rb.IsEmpty() }

// Size returns the number of members.
func (b *Bitmap) Size() uint64 { return b.rb.GetCardinality() }

// Clone returns an independent copy.
func (b *Bitmap) Clone() *Bitmap { return &Bitmap{rb: b.rb.Clone()} }

// ToSlice returns members in ascending order.
func (b *Bitmap) ToSlice() []DocID { return b.rb.ToArray() }

// Iterate calls fn for each member in ascending order, stopping early if
// fn returns false.
func (b *Bitmap) Iterate(fn func(DocID) bool) {
	it := b.rb.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

// Union returns a new Bitmap containing members of any operand.
func Union(bitmaps ...*Bitmap) *Bitmap {
	if len(bitmaps) == 0 {
		return New()
	}
	rbs := make([]*roaring.Bitmap, len(bitmaps))
	for i, bm := range bitmaps {
		rbs[i] = bm.rb
	}
	return &Bitmap{rb: roaring.FastOr(rbs...)}
}

// Intersect returns a new Bitmap containing members common to every
// operand. Intersecting zero bitmaps returns an empty set.
func Intersect(bitmaps ...*Bitmap) *Bitmap {
	if len(bitmaps) == 0 {
		return New()
	}
	result := bitmaps[0].rb.Clone()
	for _, bm := range bitmaps[1:] {
		result.And(bm.rb)
	}
	return &Bitmap{rb: result}
}

// Difference returns the members of a not present in b.
func Difference(a, b *Bitmap) *Bitmap {
	result := a.rb.Clone()
	result.AndNot(b.rb)
	return &Bitmap{rb: result}
}
