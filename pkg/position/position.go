// Package position computes position values for newly created and
// explicitly moved items: end-of-scope appends, fractional insertions
// between neighbors, and offline per-scope counters.
package position

import (
	"math"
	"sort"

	"fieldline/ordering/pkg/model/mitem"
)

// DefaultGap is the spacing left after the last sibling on appends. The
// headroom lets many fractional inserts land before a rebalance is needed.
const DefaultGap = 1000.0

// ComputeInsertion returns a position strictly between the optional
// neighbors. With no neighbors it starts the scope at DefaultGap; with only
// a following neighbor it halves toward the head; with only a preceding
// neighbor it appends at DefaultGap past it.
func ComputeInsertion(before, after *float64) (float64, error) {
	if before != nil && !isFinite(*before) {
		return 0, ErrInvalidNeighborOrder
	}
	if after != nil && !isFinite(*after) {
		return 0, ErrInvalidNeighborOrder
	}

	switch {
	case before == nil && after == nil:
		return DefaultGap, nil

	case before == nil:
		head := *after / 2
		if head >= *after {
			return 0, ErrPositionExhausted
		}
		return head, nil

	case after == nil:
		return *before + DefaultGap, nil

	default:
		a, b := *before, *after
		if a >= b {
			return 0, ErrInvalidNeighborOrder
		}
		mid := a + (b-a)/2
		if mid <= a || mid >= b {
			return 0, ErrPositionExhausted
		}
		return mid, nil
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Assigner computes positions for creates and neighborless moves.
// It reads sibling state but never writes it.
type Assigner struct {
	// Gap is the append spacing; zero means DefaultGap.
	Gap float64
}

func NewAssigner() Assigner {
	return Assigner{Gap: DefaultGap}
}

func (as Assigner) gap() float64 {
	if as.Gap > 0 {
		return as.Gap
	}
	return DefaultGap
}

// Append returns a position sorting after every current sibling.
func (as Assigner) Append(siblings []mitem.Item) float64 {
	if len(siblings) == 0 {
		return as.gap()
	}
	maxPos := siblings[0].Position
	for _, it := range siblings[1:] {
		if it.Position > maxPos {
			maxPos = it.Position
		}
	}
	return maxPos + as.gap()
}

// Assign honors a caller-supplied manual position unless it collides with
// an existing sibling; on collision it falls back to a fractional insert
// between the colliding sibling and its successor. A nil manual position
// appends.
func (as Assigner) Assign(siblings []mitem.Item, manual *float64) (float64, error) {
	if manual == nil {
		return as.Append(siblings), nil
	}
	if !isFinite(*manual) {
		return 0, ErrInvalidNeighborOrder
	}

	collided := false
	for _, it := range siblings {
		if it.Position == *manual {
			collided = true
			break
		}
	}
	if !collided {
		return *manual, nil
	}

	positions := make([]float64, 0, len(siblings))
	for _, it := range siblings {
		positions = append(positions, it.Position)
	}
	sort.Float64s(positions)

	// Insert between the collided value and the next distinct position.
	for i, p := range positions {
		if p != *manual {
			continue
		}
		for j := i + 1; j < len(positions); j++ {
			if positions[j] > p {
				return ComputeInsertion(&p, &positions[j])
			}
		}
		// Collider is the current tail.
		return ComputeInsertion(&p, nil)
	}
	return *manual, nil
}
