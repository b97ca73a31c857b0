package conflict

import "errors"

// Common errors for batch resolution
var (
	// ErrCyclicParent means a reparent would make an item its own
	// ancestor. The offending change is rejected without mutating state.
	ErrCyclicParent = errors.New("reparent would create a cycle")

	// ErrUnknownScope means a change references an item or destination
	// parent that cannot be resolved in the supplied item set.
	ErrUnknownScope = errors.New("scope cannot be resolved")
)
