// Package sorder wires the ordering engine together over the item store:
// scope locking, batch resolution, persistence, and the audit side channel.
// It is the concrete surface callers use for create and move operations.
package sorder

import (
	"context"
	"fmt"
	"log/slog"

	"fieldline/ordering/pkg/audit"
	"fieldline/ordering/pkg/conflict"
	"fieldline/ordering/pkg/hierarchy"
	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/position"
	"fieldline/ordering/pkg/rebalance"
	"fieldline/ordering/pkg/scopelock"
	"fieldline/ordering/pkg/service/sitem"
	"fieldline/ordering/pkg/statusrank"
)

type OrderingService struct {
	items    sitem.ItemService
	resolver *conflict.Resolver
	assigner position.Assigner
	engine   *rebalance.Engine
	locks    *scopelock.Map
	ranking  statusrank.Ranking
	audit    audit.Emitter
	log      *slog.Logger
}

func New(items sitem.ItemService, ranking statusrank.Ranking, emitter audit.Emitter, log *slog.Logger) OrderingService {
	if ranking == nil {
		ranking = statusrank.Default()
	}
	if emitter == nil {
		emitter = audit.NewLogEmitter(log)
	}
	locks := scopelock.New()
	return OrderingService{
		items:    items,
		resolver: conflict.NewResolver(),
		assigner: position.NewAssigner(),
		engine:   rebalance.NewEngine(items, locks, log),
		locks:    locks,
		ranking:  ranking,
		audit:    emitter,
		log:      log,
	}
}

// Create assigns a position to the new item and persists it. With a nil
// session the position appends after the scope's current tail (online
// mode); with a session it draws from the session's per-scope counter
// (offline mode) and gets reconciled by a later batch resolve.
func (s OrderingService) Create(ctx context.Context, item mitem.Item, manual *float64, session *position.LocalSession) (mitem.Item, error) {
	scope := item.Scope()
	unlock := s.locks.Lock(scope)
	defer unlock()

	if session != nil {
		item.Position = session.Next(scope)
	} else {
		siblings, err := s.items.ScopeItems(ctx, scope)
		if err != nil {
			return mitem.Item{}, fmt.Errorf("create item: %w", err)
		}
		pos, err := s.assigner.Assign(siblings, manual)
		if err != nil {
			return mitem.Item{}, fmt.Errorf("create item: %w", err)
		}
		item.Position = pos
	}

	if err := s.items.CreateItem(ctx, item); err != nil {
		return mitem.Item{}, err
	}
	s.log.DebugContext(ctx, "item created",
		slog.String("item_id", item.ID.String()),
		slog.String("scope", scope.String()),
		slog.Float64("position", item.Position))
	return item, nil
}

// ApplyMoves resolves a pending change batch for one scope and persists the
// outcome atomically. The moved set goes to the audit emitter; structural
// rejections are logged and returned for the caller to surface.
func (s OrderingService) ApplyMoves(ctx context.Context, scope mitem.ScopeKey, changes []conflict.Change) (conflict.Result, error) {
	unlock := s.locks.Lock(scope)
	defer unlock()

	jobItems, err := s.items.JobItems(ctx, scope.JobID)
	if err != nil {
		return conflict.Result{}, fmt.Errorf("apply moves: %w", err)
	}

	res, err := s.resolver.ResolveBatch(scope, changes, jobItems)
	if err != nil {
		return conflict.Result{}, fmt.Errorf("apply moves: %w", err)
	}

	if err := s.items.ApplyResolved(ctx, res.Updates, res.Parents); err != nil {
		return conflict.Result{}, fmt.Errorf("apply moves: %w", err)
	}

	for _, rej := range res.Rejected {
		s.log.WarnContext(ctx, "change rejected",
			slog.String("item_id", rej.Change.ItemID.String()),
			slog.String("scope", scope.String()),
			slog.String("reason", rej.Err.Error()))
	}
	if len(res.Moved) > 0 {
		entries := make([]audit.Entry, 0, len(res.Moved))
		for _, m := range res.Moved {
			entries = append(entries, audit.FromMoved(m))
		}
		if err := s.audit.Emit(ctx, entries); err != nil {
			// The moves are already durable; a failed audit emit must not
			// unwind them, but it must not vanish either.
			s.log.ErrorContext(ctx, "audit emit failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// Tree returns the ordered, nested task tree for a job.
func (s OrderingService) Tree(ctx context.Context, jobID idwrap.IDWrap) ([]*hierarchy.TreeNode, error) {
	items, err := s.items.JobItems(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	return hierarchy.Build(items, s.ranking), nil
}

// RebalanceScope renormalizes one scope to spaced positions.
func (s OrderingService) RebalanceScope(ctx context.Context, scope mitem.ScopeKey) error {
	return s.engine.RebalanceScope(ctx, scope)
}

// Engine exposes the rebalance engine for schedulers.
func (s OrderingService) Engine() *rebalance.Engine {
	return s.engine
}
