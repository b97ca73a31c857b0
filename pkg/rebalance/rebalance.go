// Package rebalance renormalizes a scope's positions to evenly spaced
// multiples once fractional inserts have eaten the numeric headroom.
// Relative order is preserved exactly; only the raw values change.
package rebalance

import (
	"math"
	"sort"

	"fieldline/ordering/pkg/model/mitem"
)

const (
	// DefaultSpacing is the gap between adjacent positions after a
	// rebalance: items land on 10000, 20000, 30000, ...
	DefaultSpacing = 10000.0

	// DefaultMinGap is the adjacent-gap floor below which a scope is due
	// for rebalancing.
	DefaultMinGap = 1.0
)

// MinAdjacentGap returns the smallest gap between adjacent positions in the
// scope. ok is false for scopes with fewer than two items, which can never
// need rebalancing.
func MinAdjacentGap(items []mitem.Item) (gap float64, ok bool) {
	if len(items) < 2 {
		return 0, false
	}
	positions := make([]float64, len(items))
	for i, it := range items {
		positions[i] = it.Position
	}
	sort.Float64s(positions)

	gap = math.Inf(1)
	for i := 1; i < len(positions); i++ {
		if d := positions[i] - positions[i-1]; d < gap {
			gap = d
		}
	}
	return gap, true
}

// NeedsRebalance reports whether the scope's minimum adjacent gap has
// dropped below minGap. Zero minGap means DefaultMinGap.
func NeedsRebalance(items []mitem.Item, minGap float64) bool {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	gap, ok := MinAdjacentGap(items)
	return ok && gap < minGap
}

// Plan computes the spaced positions for a single scope: items sorted by
// (position, created time, id) receive index*spacing, 1-indexed. Items
// already on their target value are omitted, so planning an evenly spaced
// scope yields an empty plan and the operation is idempotent.
//
// The full plan exists before anything is written, so an abandoned apply
// leaves the scope merely un-rebalanced, never half-ordered.
func Plan(items []mitem.Item, spacing float64) []mitem.PositionUpdate {
	if len(items) == 0 {
		return nil
	}
	if spacing <= 0 {
		spacing = DefaultSpacing
	}

	ordered := make([]mitem.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return mitem.ComparePositional(ordered[i], ordered[j]) < 0
	})

	var updates []mitem.PositionUpdate
	for i, it := range ordered {
		target := float64(i+1) * spacing
		if it.Position == target {
			continue
		}
		updates = append(updates, mitem.PositionUpdate{ItemID: it.ID, Position: target})
	}
	return updates
}
