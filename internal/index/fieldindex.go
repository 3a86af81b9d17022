// Package index maintains per-field indexes mapping an indexable value to
// the set of document ids that hold it, plus a manager that picks which
// index (if any) answers a query leaf cheaper than a full scan. The
// ordered map itself is grounded on AKJUS-bsc-erigon's use of
// github.com/google/btree for an in-memory sorted structure, generalized
// from its integer/byte keys to bmdb's type-aware Value ordering.
package index

import (
	"github.com/google/btree"

	"github.com/Aman-CERP/bmdb/internal/bitmap"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// category buckets a Value's kind into the ordering classes field index
// keys compare within. Numbers (int and float) share one numeric
// category so "3" and "3.0" sort together, per the numeric-comparison
// requirement on index keys.
type category int

const (
	categoryBool category = iota
	categoryNumber
	categoryString
)

func categoryOf(v value.Value) (category, bool) {
	switch v.Kind() {
	case value.KindBool:
		return categoryBool, true
	case value.KindInt, value.KindFloat:
		return categoryNumber, true
	case value.KindString:
		return categoryString, true
	default:
		return 0, false
	}
}

// entry is one key's btree item: the indexed value and the bitmap of
// every doc-id currently holding it.
type entry struct {
	key value.Value
	ids *bitmap.Bitmap
}

// less implements a strict total order across categories, then within a
// category: bool false < true, numbers by numeric value, strings
// lexicographically (Go's native string ordering == UTF-8 byte order).
func less(a, b entry) bool {
	ca, _ := categoryOf(a.key)
	cb, _ := categoryOf(b.key)
	if ca != cb {
		return ca < cb
	}
	switch ca {
	case categoryBool:
		av, _ := a.key.AsBool()
		bv, _ := b.key.AsBool()
		return !av && bv
	case categoryNumber:
		av, _ := a.key.AsNumber()
		bv, _ := b.key.AsNumber()
		return av < bv
	default:
		as, _ := a.key.AsString()
		bs, _ := b.key.AsString()
		return as < bs
	}
}

// FieldIndex is an in-memory ordered map from an indexable value to a
// bitmap of doc-ids holding it on a particular document field.
type FieldIndex struct {
	tree     *btree.BTreeG[entry]
	distinct int
}

// NewFieldIndex returns an empty field index.
func NewFieldIndex() *FieldIndex {
	return &FieldIndex{tree: btree.NewG(32, less)}
}

// Insert adds docID to the bitmap for v, creating the key if absent.
// Non-primitive values (null, array, map) are never indexed; callers
// should filter them out before calling Insert, but a no-op here is the
// safe fallback.
func (fi *FieldIndex) Insert(v value.Value, docID bitmap.DocID) {
	if !v.IsPrimitive() {
		return
	}
	if existing, found := fi.tree.Get(entry{key: v}); found {
		existing.ids.Add(docID)
		return
	}
	ids := bitmap.New()
	ids.Add(docID)
	fi.tree.ReplaceOrInsert(entry{key: v, ids: ids})
	fi.distinct++
}

// Remove deletes docID from v's bitmap, dropping the key entirely once
// its bitmap becomes empty.
func (fi *FieldIndex) Remove(v value.Value, docID bitmap.DocID) {
	existing, found := fi.tree.Get(entry{key: v})
	if !found {
		return
	}
	existing.ids.Remove(docID)
	if existing.ids.IsEmpty() {
		fi.tree.Delete(entry{key: v})
		fi.distinct--
	}
}

// GetExact returns the bitmap of doc-ids whose field value equals v.
func (fi *FieldIndex) GetExact(v value.Value) *bitmap.Bitmap {
	if e, found := fi.tree.Get(entry{key: v}); found {
		return e.ids.Clone()
	}
	return bitmap.New()
}

// GetRange returns the union of bitmaps for keys within [lo, hi] (or
// exclusive at either end, per inclusiveLo/inclusiveHi). lo and hi must
// share a category (both numbers, both strings, or both bools); a
// cross-type range yields no rows, matching field_op's comparison
// semantics.
func (fi *FieldIndex) GetRange(lo, hi value.Value, inclusiveLo, inclusiveHi bool) *bitmap.Bitmap {
	cLo, okLo := categoryOf(lo)
	cHi, okHi := categoryOf(hi)
	if !okLo || !okHi || cLo != cHi {
		return bitmap.New()
	}

	result := bitmap.New()
	collect := func(e entry) bool {
		if !inclusiveLo && equalKeys(e.key, lo) {
			return true
		}
		e.ids.Iterate(func(id bitmap.DocID) bool {
			result.Add(id)
			return true
		})
		return true
	}
	fi.tree.AscendRange(entry{key: lo}, entry{key: hi}, collect)
	// AscendRange is [greaterOrEqual, lessThan): hi itself is excluded by
	// the library, so an inclusive upper bound needs one more lookup.
	if inclusiveHi {
		if e, found := fi.tree.Get(entry{key: hi}); found {
			e.ids.Iterate(func(id bitmap.DocID) bool {
				result.Add(id)
				return true
			})
		}
	}
	return result
}

func equalKeys(a, b value.Value) bool {
	ca, _ := categoryOf(a)
	cb, _ := categoryOf(b)
	return ca == cb && !less(entry{key: a}, entry{key: b}) && !less(entry{key: b}, entry{key: a})
}

// GetGreaterThan returns the union of bitmaps for keys > v (or >= v when
// inclusive), restricted to v's category.
func (fi *FieldIndex) GetGreaterThan(v value.Value, inclusive bool) *bitmap.Bitmap {
	cat, ok := categoryOf(v)
	if !ok {
		return bitmap.New()
	}
	result := bitmap.New()
	fi.tree.AscendGreaterOrEqual(entry{key: v}, func(e entry) bool {
		if c, _ := categoryOf(e.key); c != cat {
			return false
		}
		if !inclusive && equalKeys(e.key, v) {
			return true
		}
		e.ids.Iterate(func(id bitmap.DocID) bool {
			result.Add(id)
			return true
		})
		return true
	})
	return result
}

// GetLessThan returns the union of bitmaps for keys < v (or <= v when
// inclusive), restricted to v's category.
func (fi *FieldIndex) GetLessThan(v value.Value, inclusive bool) *bitmap.Bitmap {
	cat, ok := categoryOf(v)
	if !ok {
		return bitmap.New()
	}
	result := bitmap.New()
	fi.tree.AscendLessThan(entry{key: v}, func(e entry) bool {
		if c, _ := categoryOf(e.key); c != cat {
			// Lower categories sort first; skip them to reach v's own.
			return true
		}
		e.ids.Iterate(func(id bitmap.DocID) bool {
			result.Add(id)
			return true
		})
		return true
	})
	if inclusive {
		if e, found := fi.tree.Get(entry{key: v}); found {
			e.ids.Iterate(func(id bitmap.DocID) bool {
				result.Add(id)
				return true
			})
		}
	}
	return result
}

// Stats reports the total number of (value, docId) memberships and the
// number of distinct values currently indexed.
func (fi *FieldIndex) Stats() (totalEntries int, distinctValues int) {
	fi.tree.Ascend(func(e entry) bool {
		totalEntries += int(e.ids.Size())
		return true
	})
	return totalEntries, fi.distinct
}
