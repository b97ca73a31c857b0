package position

import (
	"sync"

	"github.com/google/uuid"

	"fieldline/ordering/pkg/model/mitem"
)

// LocalSession hands out locally-unique, monotonically increasing positions
// while disconnected from the authoritative store. Counters are scoped per
// sibling set and start at 1. Values from different sessions can collide;
// reconciling them on reconnect is the conflict resolver's job.
//
// Sessions are passed explicitly to creation paths rather than living as
// process state, so concurrent local sessions (multi-tab) stay an explicit
// choice of the caller.
type LocalSession struct {
	id       uuid.UUID
	mu       sync.Mutex
	counters map[mitem.ScopeKey]int64
}

func NewLocalSession() *LocalSession {
	return &LocalSession{
		id:       uuid.New(),
		counters: make(map[mitem.ScopeKey]int64),
	}
}

// ID identifies the session for logging and multi-tab debugging.
func (s *LocalSession) ID() uuid.UUID {
	return s.id
}

// Next returns the next offline position for the scope: 1, 2, 3, ...
func (s *LocalSession) Next(scope mitem.ScopeKey) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[scope]++
	return float64(s.counters[scope])
}
