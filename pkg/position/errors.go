package position

import "errors"

// Common errors for position calculations
var (
	// ErrInvalidNeighborOrder means the caller supplied neighbor positions
	// with before >= after, usually from stale reads. Re-fetch and retry.
	ErrInvalidNeighborOrder = errors.New("neighbor positions out of order")

	// ErrPositionExhausted means fractional halving ran out of float64
	// granularity between the neighbors. The enclosing scope needs a
	// rebalance before the insert can be retried.
	ErrPositionExhausted = errors.New("position precision exhausted")
)
