// Package scopelock serializes mutation per sibling scope. Different scopes
// never contend, which is the concurrency contract of the whole engine:
// cross-scope operations need no coordination at all.
package scopelock

import (
	"sync"

	"fieldline/ordering/pkg/model/mitem"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Map is a keyed mutex over scope keys. Entries are reference counted and
// released once the last holder unlocks, so the map stays bounded by the
// number of concurrently mutated scopes.
type Map struct {
	mu    sync.Mutex
	locks map[mitem.ScopeKey]*entry
}

func New() *Map {
	return &Map{locks: make(map[mitem.ScopeKey]*entry)}
}

// Lock acquires the scope's mutex and returns its unlock function.
func (m *Map) Lock(scope mitem.ScopeKey) func() {
	m.mu.Lock()
	e, ok := m.locks[scope]
	if !ok {
		e = &entry{}
		m.locks[scope] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, scope)
		}
		m.mu.Unlock()
	}
}
