// Package conflict merges batches of pending position changes against the
// authoritative item set. Concurrent writes to the same item are resolved
// last-writer-wins on the caller-supplied logical timestamp, so offline
// moves land in the order the user made them, not the order they arrived.
package conflict

import (
	"errors"
	"fmt"
	"sort"

	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/position"
	"fieldline/ordering/pkg/rebalance"
)

// TargetKind selects how a change positions its item.
type TargetKind int8

const (
	TargetUnspecified TargetKind = iota
	// TargetAppend places the item after every sibling in the scope.
	TargetAppend
	// TargetPosition requests a raw position value.
	TargetPosition
	// TargetIndex requests an ordinal slot, the drag-and-drop shape.
	// Neighbors are resolved against post-resolution state, never the
	// state the client saw.
	TargetIndex
)

// Target describes where a change wants its item to land. Reparent must be
// set for a parent change to distinguish "keep parent" from "move to root".
type Target struct {
	Kind     TargetKind
	Position float64
	Index    int

	Reparent    bool
	NewParentID *idwrap.IDWrap
}

// Change is one pending position-change request. LogicalTS is the moment
// the user performed the move (unix milliseconds), supplied by the caller.
type Change struct {
	ItemID    idwrap.IDWrap
	Target    Target
	LogicalTS int64
	Actor     string
}

// Moved is the audit side channel entry for one applied change.
type Moved struct {
	ItemID      idwrap.IDWrap
	OldPosition float64
	NewPosition float64
	Actor       string
	LogicalTS   int64
}

// Rejection reports a structurally invalid change that was dropped without
// touching any state.
type Rejection struct {
	Change Change
	Err    error
}

// Result is the outcome of a batch: final assignments plus side channels.
type Result struct {
	Updates  []mitem.PositionUpdate
	Parents  []mitem.ParentUpdate
	Moved    []Moved
	Rejected []Rejection
}

// Resolver applies pending change batches. The zero value is not usable;
// construct with NewResolver.
type Resolver struct {
	assigner position.Assigner
	spacing  float64
}

func NewResolver() *Resolver {
	return &Resolver{
		assigner: position.NewAssigner(),
		spacing:  rebalance.DefaultSpacing,
	}
}

// ResolveBatch merges changes into the authoritative item set and returns
// the final position assignments for everything that moved.
//
// jobItems must be the full item set of the job so reparent destinations
// and the ancestor graph are resolvable; the batch itself belongs to scope.
// The whole computation happens in memory: either the returned result is
// complete and leaves every touched scope free of duplicate positions, or
// an error is returned and nothing should be persisted.
func (r *Resolver) ResolveBatch(scope mitem.ScopeKey, changes []Change, jobItems []mitem.Item) (Result, error) {
	working := make(map[idwrap.IDWrap]*mitem.Item, len(jobItems))
	original := make(map[idwrap.IDWrap]mitem.Item, len(jobItems))
	for _, it := range jobItems {
		cp := it
		working[it.ID] = &cp
		original[it.ID] = it
	}

	if !scope.IsRoot() {
		if _, ok := working[scope.ParentID]; !ok {
			return Result{}, fmt.Errorf("resolve batch %s: parent missing: %w", scope, ErrUnknownScope)
		}
	}

	var res Result
	touched := map[mitem.ScopeKey]struct{}{scope: {}}

	for _, ch := range selectWinners(changes) {
		item, ok := working[ch.ItemID]
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{Change: ch, Err: ErrUnknownScope})
			continue
		}

		newParent := item.ParentID
		if ch.Target.Reparent {
			newParent = ch.Target.NewParentID
			if err := r.checkReparent(working, ch.ItemID, newParent); err != nil {
				res.Rejected = append(res.Rejected, Rejection{Change: ch, Err: err})
				continue
			}
		}

		dest := scopeKeyFor(item.JobID, newParent)
		siblings := membersExcept(working, dest, ch.ItemID)

		newPos, rebalanced, err := r.placeChange(ch, siblings)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Change: ch, Err: err})
			continue
		}

		oldScope := item.Scope()
		oldPos := item.Position

		for _, up := range rebalanced {
			working[up.ItemID].Position = up.Position
		}
		if ch.Target.Reparent {
			item.ParentID = newParent
		}
		item.Position = newPos

		touched[oldScope] = struct{}{}
		touched[dest] = struct{}{}
		res.Moved = append(res.Moved, Moved{
			ItemID:      ch.ItemID,
			OldPosition: oldPos,
			NewPosition: newPos,
			Actor:       ch.Actor,
			LogicalTS:   ch.LogicalTS,
		})
	}

	// Offline counters from separate sessions can deposit colliding
	// integer positions. Any touched scope still holding duplicates is
	// renormalized here so the batch never publishes a tie.
	for sk := range touched {
		r.dedupeScope(working, sk)
	}

	for id, it := range working {
		orig := original[id]
		if it.Position != orig.Position {
			res.Updates = append(res.Updates, mitem.PositionUpdate{ItemID: id, Position: it.Position})
		}
		if !sameParent(it.ParentID, orig.ParentID) {
			res.Parents = append(res.Parents, mitem.ParentUpdate{ItemID: id, NewParentID: it.ParentID})
		}
	}
	sortResult(&res)
	return res, nil
}

// selectWinners keeps the last writer per item and returns winners in
// logical-timestamp order. Ties on the timestamp break by actor and then
// by the target itself, so the outcome is independent of arrival order.
func selectWinners(changes []Change) []Change {
	byItem := make(map[idwrap.IDWrap]Change)
	for _, ch := range changes {
		cur, ok := byItem[ch.ItemID]
		if !ok || laterChange(ch, cur) {
			byItem[ch.ItemID] = ch
		}
	}

	winners := make([]Change, 0, len(byItem))
	for _, ch := range byItem {
		winners = append(winners, ch)
	}
	sort.Slice(winners, func(i, j int) bool {
		a, b := winners[i], winners[j]
		if a.LogicalTS != b.LogicalTS {
			return a.LogicalTS < b.LogicalTS
		}
		return a.ItemID.Compare(b.ItemID) < 0
	})
	return winners
}

func laterChange(a, b Change) bool {
	if a.LogicalTS != b.LogicalTS {
		return a.LogicalTS > b.LogicalTS
	}
	if a.Actor != b.Actor {
		return a.Actor > b.Actor
	}
	if a.Target.Kind != b.Target.Kind {
		return a.Target.Kind > b.Target.Kind
	}
	if a.Target.Position != b.Target.Position {
		return a.Target.Position > b.Target.Position
	}
	return a.Target.Index > b.Target.Index
}

// checkReparent rejects reparents whose destination is missing or inside
// the item's own subtree. Parent links are read from the working state so
// earlier changes in the batch are respected.
func (r *Resolver) checkReparent(working map[idwrap.IDWrap]*mitem.Item, itemID idwrap.IDWrap, newParent *idwrap.IDWrap) error {
	if newParent == nil {
		return nil
	}
	if *newParent == itemID {
		return ErrCyclicParent
	}
	if _, ok := working[*newParent]; !ok {
		return ErrUnknownScope
	}

	seen := map[idwrap.IDWrap]bool{}
	cur := *newParent
	for {
		if cur == itemID {
			return ErrCyclicParent
		}
		if seen[cur] {
			return nil
		}
		seen[cur] = true
		ancestor, ok := working[cur]
		if !ok || ancestor.ParentID == nil {
			return nil
		}
		cur = *ancestor.ParentID
	}
}

// placeChange computes the item's new position among siblings (which never
// contain the item itself). When fractional precision runs out it falls
// back to renormalizing the destination scope inline and returns the
// sibling updates that renormalization produced.
func (r *Resolver) placeChange(ch Change, siblings []mitem.Item) (float64, []mitem.PositionUpdate, error) {
	switch ch.Target.Kind {
	case TargetAppend:
		return r.assigner.Append(siblings), nil, nil

	case TargetPosition:
		pos, err := r.assigner.Assign(siblings, &ch.Target.Position)
		if err == nil {
			return pos, nil, nil
		}
		if errors.Is(err, position.ErrPositionExhausted) {
			idx := ordinalForPosition(siblings, ch.Target.Position)
			pos, ups := r.rebalanceAround(siblings, idx)
			return pos, ups, nil
		}
		return 0, nil, err

	case TargetIndex:
		idx := ch.Target.Index
		if idx < 0 {
			idx = 0
		}
		if idx > len(siblings) {
			idx = len(siblings)
		}
		var before, after *float64
		if idx > 0 {
			before = &siblings[idx-1].Position
		}
		if idx < len(siblings) {
			after = &siblings[idx].Position
		}
		pos, err := position.ComputeInsertion(before, after)
		if err == nil {
			return pos, nil, nil
		}
		// Exhausted precision, or equal neighbor positions left behind by
		// an offline merge: both mean the scope needs renormalizing now.
		if errors.Is(err, position.ErrPositionExhausted) || errors.Is(err, position.ErrInvalidNeighborOrder) {
			pos, ups := r.rebalanceAround(siblings, idx)
			return pos, ups, nil
		}
		return 0, nil, err

	default:
		return 0, nil, fmt.Errorf("change for %s: unsupported target kind %d", ch.ItemID, ch.Target.Kind)
	}
}

// rebalanceAround assigns spacing multiples across the scope with the moved
// item occupying ordinal idx, and returns its position plus the sibling
// updates.
func (r *Resolver) rebalanceAround(siblings []mitem.Item, idx int) (float64, []mitem.PositionUpdate) {
	updates := make([]mitem.PositionUpdate, 0, len(siblings))
	slot := 1
	var itemPos float64
	for i, sib := range siblings {
		if i == idx {
			itemPos = float64(slot) * r.spacing
			slot++
		}
		target := float64(slot) * r.spacing
		if sib.Position != target {
			updates = append(updates, mitem.PositionUpdate{ItemID: sib.ID, Position: target})
		}
		slot++
	}
	if idx >= len(siblings) {
		itemPos = float64(slot) * r.spacing
	}
	return itemPos, updates
}

// ordinalForPosition maps a requested raw position onto the ordinal it
// would occupy among the sorted siblings.
func ordinalForPosition(siblings []mitem.Item, pos float64) int {
	idx := 0
	for _, sib := range siblings {
		if sib.Position <= pos {
			idx++
		}
	}
	return idx
}

// dedupeScope renormalizes a scope still carrying duplicate positions after
// all changes applied. Order is the deterministic transient-tie order:
// position, created time, id.
func (r *Resolver) dedupeScope(working map[idwrap.IDWrap]*mitem.Item, scope mitem.ScopeKey) {
	members := membersExcept(working, scope, idwrap.IDWrap{})
	if !hasDuplicatePositions(members) {
		return
	}
	for _, up := range rebalance.Plan(members, r.spacing) {
		working[up.ItemID].Position = up.Position
	}
}

func hasDuplicatePositions(members []mitem.Item) bool {
	for i := 1; i < len(members); i++ {
		if members[i].Position == members[i-1].Position {
			return true
		}
	}
	return false
}

// membersExcept returns the scope's items sorted by the canonical
// positional order, excluding the given id (zero id excludes nothing).
func membersExcept(working map[idwrap.IDWrap]*mitem.Item, scope mitem.ScopeKey, except idwrap.IDWrap) []mitem.Item {
	var members []mitem.Item
	for id, it := range working {
		if id == except {
			continue
		}
		if it.Scope() == scope {
			members = append(members, *it)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return mitem.ComparePositional(members[i], members[j]) < 0
	})
	return members
}

func scopeKeyFor(jobID idwrap.IDWrap, parentID *idwrap.IDWrap) mitem.ScopeKey {
	if parentID == nil {
		return mitem.ScopeKey{JobID: jobID}
	}
	return mitem.ScopeKey{JobID: jobID, ParentID: *parentID}
}

func sameParent(a, b *idwrap.IDWrap) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortResult(res *Result) {
	sort.Slice(res.Updates, func(i, j int) bool {
		return res.Updates[i].ItemID.Compare(res.Updates[j].ItemID) < 0
	})
	sort.Slice(res.Parents, func(i, j int) bool {
		return res.Parents[i].ItemID.Compare(res.Parents[j].ItemID) < 0
	})
}
