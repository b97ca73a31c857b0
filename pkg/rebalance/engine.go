package rebalance

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/scopelock"
)

// Store is the slice of the persistence collaborator the engine needs:
// one bulk read per scope and one atomic bulk write back.
type Store interface {
	ScopeItems(ctx context.Context, scope mitem.ScopeKey) ([]mitem.Item, error)
	UpdatePositions(ctx context.Context, updates []mitem.PositionUpdate) error
	Scopes(ctx context.Context) ([]mitem.ScopeKey, error)
}

// Engine runs rebalances against a store, one scope at a time, holding the
// scope lock for the read-plan-write window.
type Engine struct {
	store   Store
	locks   *scopelock.Map
	log     *slog.Logger
	spacing float64
	minGap  float64
	// Parallelism bounds concurrent scopes during Sweep; zero means 4.
	Parallelism int
}

func NewEngine(store Store, locks *scopelock.Map, log *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		locks:   locks,
		log:     log,
		spacing: DefaultSpacing,
		minGap:  DefaultMinGap,
	}
}

// SetThresholds overrides the spacing and minimum-gap defaults. Values at
// or below zero keep the current setting.
func (e *Engine) SetThresholds(spacing, minGap float64) {
	if spacing > 0 {
		e.spacing = spacing
	}
	if minGap > 0 {
		e.minGap = minGap
	}
}

// RebalanceScope reads the scope, plans spaced positions, and writes them
// back in one atomic batch. It is safe to call on already-balanced scopes;
// those produce no writes.
func (e *Engine) RebalanceScope(ctx context.Context, scope mitem.ScopeKey) error {
	unlock := e.locks.Lock(scope)
	defer unlock()

	items, err := e.store.ScopeItems(ctx, scope)
	if err != nil {
		return fmt.Errorf("rebalance %s: read scope: %w", scope, err)
	}
	updates := Plan(items, e.spacing)
	if len(updates) == 0 {
		return nil
	}
	if err := e.store.UpdatePositions(ctx, updates); err != nil {
		return fmt.Errorf("rebalance %s: write positions: %w", scope, err)
	}
	e.log.InfoContext(ctx, "scope rebalanced",
		slog.String("scope", scope.String()),
		slog.Int("items", len(items)),
		slog.Int("updated", len(updates)))
	return nil
}

// Sweep rebalances every scope whose minimum adjacent gap is below the
// threshold. Scopes are processed with bounded parallelism; each one is
// independently locked, so a sweep never blocks unrelated foreground moves
// for longer than its own scope's write.
func (e *Engine) Sweep(ctx context.Context) error {
	scopes, err := e.store.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("rebalance sweep: list scopes: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	limit := e.Parallelism
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, scope := range scopes {
		scope := scope
		g.Go(func() error {
			items, err := e.store.ScopeItems(ctx, scope)
			if err != nil {
				return fmt.Errorf("rebalance sweep %s: %w", scope, err)
			}
			if !NeedsRebalance(items, e.minGap) {
				return nil
			}
			return e.RebalanceScope(ctx, scope)
		})
	}
	return g.Wait()
}
