package index

import (
	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// condKind is index.Condition's own operator vocabulary: a strict subset
// of query.Op (only ops a field index can answer) plus two synthetic
// kinds an OR merge produces (condIn from merging pure-equality
// disjuncts, condRangeUnion from merging heterogeneous ones).
type condKind int

const (
	condEq condKind = iota
	condLt
	condLe
	condGt
	condGe
	condIn
	condBetween
	condMatchesText
	condRangeUnion
)

// Condition is one indexable leaf extracted from a predicate tree:
// {field, op, value, value2?}, per spec.md §4.I's extraction contract.
type Condition struct {
	Field  string
	Kind   condKind
	Value  value.Value
	Value2 value.Value
	Values []value.Value // condIn
	Ranges []Condition   // condRangeUnion: each a condition on Field to union
}

func opToCondKind(op query.Op) (condKind, bool) {
	switch op {
	case query.OpEq:
		return condEq, true
	case query.OpLt:
		return condLt, true
	case query.OpLe:
		return condLe, true
	case query.OpGt:
		return condGt, true
	case query.OpGe:
		return condGe, true
	case query.OpIn:
		return condIn, true
	case query.OpBetween:
		return condBetween, true
	default:
		return 0, false
	}
}

// ExtractConditions walks p per spec.md §4.I: AND subtrees contribute the
// union (flattened list) of their children's extractable conditions; OR
// is handled only when every branch yields a condition on the same
// field, collapsing to one merged Condition; anything else (raw,
// fragment, any/all, exists/matches, mixed-field OR) is not extractable
// and becomes residual, left for exact predicate evaluation at fetch
// time. ok is false only when nothing at all could be extracted (the
// caller should fall back to a full scan).
func ExtractConditions(p query.Predicate, hasTextIndex func(field string) bool) ([]Condition, bool) {
	conds := extract(p, hasTextIndex)
	return conds, len(conds) > 0
}

func extract(p query.Predicate, hasTextIndex func(field string) bool) []Condition {
	if path, op, v, v2, hasV2, ok := query.AsFieldOp(p); ok {
		if len(path) != 1 {
			return nil
		}
		kind, ok := opToCondKind(op)
		if !ok {
			return nil
		}
		c := Condition{Field: path[0], Kind: kind, Value: v, Value2: v2}
		if kind == condIn {
			items, _ := v.AsArray()
			c.Values = items
		}
		if hasV2 {
			c.Value2 = v2
		}
		return []Condition{c}
	}

	if path, text, ok := query.AsMatchesText(p); ok {
		if len(path) != 1 || hasTextIndex == nil || !hasTextIndex(path[0]) {
			return nil
		}
		return []Condition{{Field: path[0], Kind: condMatchesText, Value: value.String(text)}}
	}

	children, isCombinator := query.Children(p)
	if !isCombinator {
		return nil
	}

	if query.IsAnd(p) {
		var all []Condition
		for _, child := range children {
			all = append(all, extract(child, hasTextIndex)...)
		}
		return all
	}

	// OR: every branch must extract to exactly one condition on the same field.
	var branches []Condition
	field := ""
	for _, child := range children {
		sub := extract(child, hasTextIndex)
		if len(sub) != 1 {
			return nil
		}
		if field == "" {
			field = sub[0].Field
		} else if field != sub[0].Field {
			return nil
		}
		branches = append(branches, sub[0])
	}
	return mergeOr(field, branches)
}

// mergeOr collapses an OR's per-branch conditions (already confirmed to
// share one field) into a single condition: a condIn list when every
// branch is a plain equality, otherwise a condRangeUnion wrapping every
// branch as-is.
func mergeOr(field string, branches []Condition) []Condition {
	allEq := true
	for _, b := range branches {
		if b.Kind != condEq {
			allEq = false
			break
		}
	}
	if allEq {
		values := make([]value.Value, len(branches))
		for i, b := range branches {
			values[i] = b.Value
		}
		return []Condition{{Field: field, Kind: condIn, Values: values}}
	}
	return []Condition{{Field: field, Kind: condRangeUnion, Ranges: branches}}
}
