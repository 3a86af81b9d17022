package index

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/bmdb/internal/bitmap"
	"github.com/Aman-CERP/bmdb/internal/query"
)

// Strategy is the planner's final choice of how to execute a query.
type Strategy int

const (
	StrategyFullScan Strategy = iota
	StrategyIndexScan
	StrategyHybrid
)

func (s Strategy) String() string {
	switch s {
	case StrategyIndexScan:
		return "index_scan"
	case StrategyHybrid:
		return "hybrid"
	default:
		return "full_scan"
	}
}

// Plan is the cost-based planner's output for one predicate, per
// spec.md §4.I.
type Plan struct {
	Strategy             Strategy
	IndexField           string
	Conditions           []Condition
	EstimatedCost        float64
	EstimatedSelectivity float64
	ExpectedRowCount     int
	Confidence           float64
	UseIndex             bool
	FallbackToScan       bool
}

// selectivity estimates how many rows a single condition is expected to
// match, per spec.md §4.I's table. hasStats reports whether the field
// carries usable statistics (false means "no stats: 1.0").
func (m *Manager) selectivity(c Condition) (sel float64, hasStats bool) {
	switch c.Kind {
	case condEq:
		distinct := m.DistinctValues(c.Field)
		if distinct == 0 {
			return 1.0, false
		}
		return 1.0 / float64(max(distinct, 1)), true
	case condIn:
		distinct := m.DistinctValues(c.Field)
		if distinct == 0 {
			return 1.0, false
		}
		k := len(c.Values)
		return math.Min(float64(k)/float64(distinct), 1.0), true
	case condLt, condLe, condGt, condGe:
		if m.DistinctValues(c.Field) == 0 {
			return 1.0, false
		}
		return 0.3, true
	case condBetween:
		if m.DistinctValues(c.Field) == 0 {
			return 1.0, false
		}
		return 0.2, true
	case condRangeUnion:
		// Probabilistic union assuming independence across branches,
		// capped at 1.0; confidence follows the weakest branch.
		combined := 0.0
		allStats := true
		for _, r := range c.Ranges {
			s, ok := m.selectivity(r)
			if !ok {
				allStats = false
			}
			combined = combined + s - combined*s
		}
		return math.Min(combined, 1.0), allStats
	case condMatchesText:
		// Unestimated: treated as "no stats" so the planner never
		// over-trusts text relevance selectivity.
		return 1.0, false
	default:
		return 1.0, false
	}
}

// leafUnits counts p's top-level AND-flattened conjuncts (each OR or
// non-extractable leaf counts as one unit), used to detect whether a
// set of extracted conditions fully captures the predicate or leaves a
// residual that still needs post-fetch filtering.
func leafUnits(p query.Predicate) int {
	if query.IsAnd(p) {
		children, _ := query.Children(p)
		total := 0
		for _, c := range children {
			total += leafUnits(c)
		}
		return total
	}
	return 1
}

// Plan builds a cost-based execution plan for p against this manager's
// current statistics.
func (m *Manager) Plan(p query.Predicate) Plan {
	conditions, ok := ExtractConditions(p, m.HasTextIndex)
	total := m.TotalDocs()
	fullScanCost := float64(total) * 1.0

	if !ok {
		return Plan{Strategy: StrategyFullScan, EstimatedCost: fullScanCost, FallbackToScan: true}
	}

	statsCount := 0
	best := conditions[0]
	bestSel, bestHasStats := m.selectivity(best)
	if bestHasStats {
		statsCount++
	}
	for _, c := range conditions[1:] {
		sel, hasStats := m.selectivity(c)
		if hasStats {
			statsCount++
		}
		if sel < bestSel {
			best, bestSel, bestHasStats = c, sel, hasStats
		}
	}
	_ = bestHasStats

	expectedRows := int(math.Ceil(float64(total) * bestSel))
	indexScanCost := 0.1 + float64(expectedRows)*0.05 + float64(expectedRows)*0.2 + float64(expectedRows)*0.1
	hybridCost := indexScanCost + float64(total)*bestSel*0.1
	confidence := float64(statsCount) / float64(len(conditions))

	plan := Plan{
		Conditions:           conditions,
		IndexField:           best.Field,
		EstimatedSelectivity: bestSel,
		ExpectedRowCount:     expectedRows,
		Confidence:           confidence,
	}

	if best.Kind != condMatchesText && total > 0 && expectedRows >= total {
		// A condition matching every row narrows nothing; an index scan
		// over all of it is strictly worse than a full scan. A
		// matches_text condition's 1.0 is an unestimated placeholder, not
		// a known match-all, so it goes on to the cost comparison.
		plan.Strategy = StrategyFullScan
		plan.EstimatedCost = fullScanCost
		plan.FallbackToScan = true
		return plan
	}

	cheaperFraction := 0.0
	if fullScanCost > 0 {
		cheaperFraction = (fullScanCost - indexScanCost) / fullScanCost
	}
	if confidence < 0.5 && cheaperFraction < 0.30 {
		plan.Strategy = StrategyFullScan
		plan.EstimatedCost = fullScanCost
		plan.FallbackToScan = true
		return plan
	}

	if indexScanCost >= fullScanCost {
		plan.Strategy = StrategyFullScan
		plan.EstimatedCost = fullScanCost
		plan.FallbackToScan = true
		return plan
	}

	plan.UseIndex = true
	if leafUnits(p) == len(conditions) {
		plan.Strategy = StrategyIndexScan
		plan.EstimatedCost = indexScanCost
	} else {
		plan.Strategy = StrategyHybrid
		plan.EstimatedCost = hybridCost
	}
	return plan
}

// Execute runs plan against this manager's field indexes, returning the
// candidate doc-id bitmap: the intersection of every extracted
// condition's bitmap (conditions on fields without an index are simply
// skipped, since narrowing is best-effort — the caller always applies
// the full predicate to fetched candidates afterward). Multiple
// condition bitmaps are fetched concurrently via errgroup, mirroring the
// teacher's concurrent-fan-out idiom in internal/search/engine.go.
func (m *Manager) Execute(ctx context.Context, plan Plan) (*bitmap.Bitmap, error) {
	if plan.FallbackToScan || len(plan.Conditions) == 0 {
		return nil, nil
	}

	results := make([]*bitmap.Bitmap, len(plan.Conditions))
	g, _ := errgroup.WithContext(ctx)
	for i, c := range plan.Conditions {
		i, c := i, c
		g.Go(func() error {
			results[i] = m.bitmapFor(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var narrowed []*bitmap.Bitmap
	for _, b := range results {
		if b != nil {
			narrowed = append(narrowed, b)
		}
	}
	if len(narrowed) == 0 {
		return nil, nil
	}
	return bitmap.Intersect(narrowed...), nil
}
