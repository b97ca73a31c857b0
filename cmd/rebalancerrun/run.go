// Package rebalancerrun is the background rebalance daemon: it periodically
// sweeps every sibling scope in the store and renormalizes the ones whose
// position headroom has run out.
package rebalancerrun

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"fieldline/ordering/pkg/rebalance"
	"fieldline/ordering/pkg/scopelock"
	"fieldline/ordering/pkg/service/sitem"
)

func Run() error {
	configPath := flag.String("config", "rebalancer.yaml", "path to the daemon config")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}))

	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database, err)
	}
	defer db.Close()

	items := sitem.New(db, log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := items.EnsureSchema(ctx); err != nil {
		return err
	}

	engine := rebalance.NewEngine(items, scopelock.New(), log)
	engine.SetThresholds(cfg.Spacing, cfg.MinGap)
	engine.Parallelism = cfg.Parallelism

	log.Info("rebalancer started",
		slog.String("database", cfg.Database),
		slog.Duration("interval", cfg.interval()))

	ticker := time.NewTicker(cfg.interval())
	defer ticker.Stop()

	for {
		if err := engine.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-sweep is safe: every scope write is a single
				// atomic batch, so an abandoned sweep leaves nothing torn.
				log.Info("rebalancer stopped")
				return nil
			}
			log.Error("sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			log.Info("rebalancer stopped")
			return nil
		case <-ticker.C:
		}
	}
}
