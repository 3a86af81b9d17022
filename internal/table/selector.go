package table

import (
	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// Selector picks the rows an Update/Remove/Upsert call applies to: either
// an explicit doc-id list (no further filtering) or a predicate evaluated
// against every matching row, per spec.md §4.J's "query?|docIds?" choice.
// The zero Selector matches every row in the table.
type Selector struct {
	Query query.Predicate
	IDs   []uint32
}

// ByQuery selects every row for which p.Eval returns true.
func ByQuery(p query.Predicate) Selector { return Selector{Query: p} }

// ByIDs selects exactly the given doc ids, regardless of content.
func ByIDs(ids ...uint32) Selector { return Selector{IDs: ids} }

// FieldUpdate pairs a partial-fields merge with the selector it applies
// to, for UpdateMultiple's `[[fields, query]]` batch shape.
type FieldUpdate struct {
	Fields value.Value
	Sel    Selector
}
