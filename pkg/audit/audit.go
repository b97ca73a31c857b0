// Package audit carries the "moved" side channel out to the activity-log
// collaborator. The engine only emits entries; rendering and retention are
// the collaborator's problem.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"fieldline/ordering/pkg/conflict"
)

// Entry is one position move in the form the activity log ingests.
type Entry struct {
	ItemID      string  `json:"item_id"`
	OldPosition float64 `json:"old_position"`
	NewPosition float64 `json:"new_position"`
	Actor       string  `json:"actor"`
	Timestamp   int64   `json:"timestamp"`
}

// FromMoved converts the resolver's side-channel record.
func FromMoved(m conflict.Moved) Entry {
	return Entry{
		ItemID:      m.ItemID.String(),
		OldPosition: m.OldPosition,
		NewPosition: m.NewPosition,
		Actor:       m.Actor,
		Timestamp:   m.LogicalTS,
	}
}

// Emitter receives the moved set of a resolved batch.
type Emitter interface {
	Emit(ctx context.Context, entries []Entry) error
}

// JSONEmitter writes entries as JSON lines to a writer.
type JSONEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{w: w}
}

func (e *JSONEmitter) Emit(_ context.Context, entries []Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	enc := json.NewEncoder(e.w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("audit: encode entry for %s: %w", entry.ItemID, err)
		}
	}
	return nil
}

// LogEmitter mirrors entries onto a structured logger, the default when no
// activity-log sink is wired.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(log *slog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(ctx context.Context, entries []Entry) error {
	for _, entry := range entries {
		e.log.InfoContext(ctx, "item moved",
			slog.String("item_id", entry.ItemID),
			slog.Float64("old_position", entry.OldPosition),
			slog.Float64("new_position", entry.NewPosition),
			slog.String("actor", entry.Actor),
			slog.Int64("timestamp", entry.Timestamp))
	}
	return nil
}
