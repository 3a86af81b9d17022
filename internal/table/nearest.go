package table

import (
	"context"

	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// extractNearest looks for a nearest() leaf at the top of p, either as the
// whole predicate or ANDed alongside ordinary filters, and reports the
// remaining predicate (nil if nearest was the whole thing) those filters
// should still be applied against. A nearest() leaf nested under an Or or
// Not, or combined with more than one other And-child structure the
// extractor doesn't specifically recognize, is left alone — Search falls
// back to its generic scan, where nearest.Eval's always-true stub ranks
// nothing but excludes nothing either.
func extractNearest(p query.Predicate) (field string, vector []float64, k int, rest query.Predicate, ok bool) {
	if p == nil {
		return "", nil, 0, nil, false
	}
	if path, vec, kk, isNearest := query.AsNearest(p); isNearest {
		return path.String(), vec, kk, nil, true
	}
	if !query.IsAnd(p) {
		return "", nil, 0, nil, false
	}
	children, _ := query.Children(p)
	nearestIdx := -1
	for i, c := range children {
		if _, _, _, isNearest := query.AsNearest(c); isNearest {
			if nearestIdx >= 0 {
				// more than one nearest() leaf: ambiguous, fall back to scan.
				return "", nil, 0, nil, false
			}
			nearestIdx = i
		}
	}
	if nearestIdx < 0 {
		return "", nil, 0, nil, false
	}
	path, vec, kk, _ := query.AsNearest(children[nearestIdx])
	others := make([]query.Predicate, 0, len(children)-1)
	for i, c := range children {
		if i != nearestIdx {
			others = append(others, c)
		}
	}
	switch len(others) {
	case 0:
		rest = nil
	case 1:
		rest = others[0]
	default:
		rest = query.And(others...)
	}
	return path.String(), vec, kk, rest, true
}

// nearestSearchLocked ranks by vector distance via the registered HNSW
// index for field, applying rest (if any) as a post-filter, preserving
// nearest-first order.
func (t *Table) nearestSearchLocked(ctx context.Context, field string, vector []float64, k int, rest query.Predicate) ([]value.Value, error) {
	ids, found, err := t.index.NearestSearch(field, vector, k)
	if err != nil {
		return nil, err
	}
	if !found {
		// No vector index registered for field: fall back to a full scan,
		// applying rest (nearest's own Eval is always true).
		return t.searchLocked(ctx, rest)
	}

	results := make([]value.Value, 0, len(ids))
	for _, id := range ids {
		body, ok, err := t.storage.ReadDocument(t.name, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if rest != nil && !rest.Eval(body) {
			continue
		}
		results = append(results, withDocID(body, id))
	}
	return results, nil
}
