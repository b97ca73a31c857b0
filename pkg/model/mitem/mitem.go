package mitem

import (
	"fmt"
	"time"

	"fieldline/ordering/pkg/idwrap"
)

// Status is the closed set of task lifecycle states.
type Status int8

const (
	StatusUnspecified Status = iota
	StatusNotStarted
	StatusActive
	StatusPaused
	StatusDone
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusDone:
		return "done"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// StatusFromString maps a configuration label back to a Status.
func StatusFromString(label string) (Status, bool) {
	switch label {
	case "not_started":
		return StatusNotStarted, true
	case "active":
		return StatusActive, true
	case "paused":
		return StatusPaused, true
	case "done":
		return StatusDone, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return StatusUnspecified, false
	}
}

// Item is an orderable work item. A nil ParentID means the item sits at the
// root level of its job.
type Item struct {
	ID       idwrap.IDWrap
	JobID    idwrap.IDWrap
	ParentID *idwrap.IDWrap
	Name     string
	Status   Status
	Position float64
}

// GetCreatedTime derives the creation time from the ULID.
func (i Item) GetCreatedTime() time.Time {
	return i.ID.Time()
}

func (i Item) GetCreatedTimeUnix() int64 {
	return i.ID.UnixMilli()
}

// Scope returns the sibling scope this item is ordered within.
func (i Item) Scope() ScopeKey {
	if i.ParentID == nil {
		return ScopeKey{JobID: i.JobID}
	}
	return ScopeKey{JobID: i.JobID, ParentID: *i.ParentID}
}

// ScopeKey identifies a sibling set: one job plus one parent. The zero
// ParentID denotes the job's root level. The type is comparable so it can
// key maps and locks.
type ScopeKey struct {
	JobID    idwrap.IDWrap
	ParentID idwrap.IDWrap
}

func (k ScopeKey) IsRoot() bool {
	return k.ParentID.IsZero()
}

func (k ScopeKey) String() string {
	if k.IsRoot() {
		return fmt.Sprintf("%s/root", k.JobID)
	}
	return fmt.Sprintf("%s/%s", k.JobID, k.ParentID)
}

// PositionUpdate is a single resolved position assignment.
type PositionUpdate struct {
	ItemID   idwrap.IDWrap
	Position float64
}

// ParentUpdate is a single resolved reparent assignment. A nil NewParentID
// moves the item to the root level.
type ParentUpdate struct {
	ItemID      idwrap.IDWrap
	NewParentID *idwrap.IDWrap
}

// ComparePositional orders two siblings by position, then creation time,
// then id. This is the canonical within-scope order every component shares;
// it never consults wall-clock arrival.
func ComparePositional(a, b Item) int {
	switch {
	case a.Position < b.Position:
		return -1
	case a.Position > b.Position:
		return 1
	}
	at, bt := a.GetCreatedTimeUnix(), b.GetCreatedTimeUnix()
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	}
	return a.ID.Compare(b.ID)
}
