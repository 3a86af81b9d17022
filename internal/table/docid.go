package table

import "github.com/Aman-CERP/bmdb/internal/value"

// docIDKeys are the two spellings a caller may use to supply or receive a
// document's id inline in its body, per spec.md §4.J's serialization rule.
var docIDKeys = [2]string{"docId", "doc_id"}

// requestedDocID reports the id a caller embedded in doc's body, if any.
func requestedDocID(doc value.Value) (uint32, bool) {
	mp, ok := doc.AsMap()
	if !ok {
		return 0, false
	}
	for _, key := range docIDKeys {
		v, ok := mp.Get(key)
		if !ok {
			continue
		}
		if n, ok := v.AsInt(); ok && n >= 0 {
			return uint32(n), true
		}
	}
	return 0, false
}

// stripDocFields returns doc with docId/doc_id removed, per the
// serialization rule: ids never live in the stored body, only in the key.
func stripDocFields(doc value.Value) value.Value {
	mp, ok := doc.AsMap()
	if !ok {
		return doc
	}
	cp := mp.Clone()
	for _, key := range docIDKeys {
		cp.Delete(key)
	}
	return value.FromMap(cp)
}

// withDocID returns a clone of doc with docId synthesized from id, for
// every value returned to a caller.
func withDocID(doc value.Value, id uint32) value.Value {
	mp, ok := doc.AsMap()
	if !ok {
		mp = value.NewMap()
	} else {
		mp = mp.Clone()
	}
	mp.Set("docId", value.Int(int64(id)))
	return value.FromMap(mp)
}

// MergeFields returns a clone of base with every key from fields set (or
// overwritten), preserving base's other keys. Exported so internal/schema
// can preview an Upsert's merge result before the write, to validate it.
func MergeFields(base, fields value.Value) value.Value {
	return mergeFields(base, fields)
}

// mergeFields returns a clone of base with every key from fields set (or
// overwritten), preserving base's other keys.
func mergeFields(base, fields value.Value) value.Value {
	baseMap, ok := base.AsMap()
	if !ok {
		baseMap = value.NewMap()
	} else {
		baseMap = baseMap.Clone()
	}
	if fieldsMap, ok := fields.AsMap(); ok {
		for _, key := range fieldsMap.Keys() {
			v, _ := fieldsMap.Get(key)
			baseMap.Set(key, value.Clone(v))
		}
	}
	return value.FromMap(baseMap)
}
