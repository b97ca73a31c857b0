// Package sitem is the SQLite-backed item store. The ordering engine never
// touches storage directly; it reads snapshots from and writes resolved
// positions through this service.
package sitem

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
)

var ErrNoItemFound = errors.New("no item found")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id BLOB NOT NULL PRIMARY KEY,
	job_id BLOB NOT NULL,
	parent_id BLOB,
	name TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL DEFAULT 0,
	position REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_items_scope ON items(job_id, parent_id, position);
`

type ItemService struct {
	db  *sql.DB
	log *slog.Logger
}

func New(db *sql.DB, log *slog.Logger) ItemService {
	return ItemService{db: db, log: log}
}

// EnsureSchema creates the items table when absent.
func (s ItemService) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sitem: ensure schema: %w", err)
	}
	return nil
}

func (s ItemService) CreateItem(ctx context.Context, item mitem.Item) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, job_id, parent_id, name, status, position) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.JobID, parentValue(item.ParentID), item.Name, item.Status, item.Position)
	if err != nil {
		return fmt.Errorf("sitem: create item %s: %w", item.ID, err)
	}
	return nil
}

func (s ItemService) GetItem(ctx context.Context, id idwrap.IDWrap) (mitem.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, parent_id, name, status, position FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mitem.Item{}, ErrNoItemFound
	}
	if err != nil {
		return mitem.Item{}, fmt.Errorf("sitem: get item %s: %w", id, err)
	}
	return item, nil
}

// JobItems returns every item of a job, the snapshot the conflict resolver
// and the hierarchy builder consume.
func (s ItemService) JobItems(ctx context.Context, jobID idwrap.IDWrap) ([]mitem.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, parent_id, name, status, position FROM items WHERE job_id = ? ORDER BY position, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sitem: job items %s: %w", jobID, err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ScopeItems returns one sibling set ordered by position.
func (s ItemService) ScopeItems(ctx context.Context, scope mitem.ScopeKey) ([]mitem.Item, error) {
	var rows *sql.Rows
	var err error
	if scope.IsRoot() {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, job_id, parent_id, name, status, position FROM items WHERE job_id = ? AND parent_id IS NULL ORDER BY position, id`,
			scope.JobID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, job_id, parent_id, name, status, position FROM items WHERE job_id = ? AND parent_id = ? ORDER BY position, id`,
			scope.JobID, scope.ParentID)
	}
	if err != nil {
		return nil, fmt.Errorf("sitem: scope items %s: %w", scope, err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// UpdatePositions writes a position batch atomically: all updates land or
// none do.
func (s ItemService) UpdatePositions(ctx context.Context, updates []mitem.PositionUpdate) error {
	return s.ApplyResolved(ctx, updates, nil)
}

// ApplyResolved persists a resolver outcome, positions and reparents, in a
// single transaction.
func (s ItemService) ApplyResolved(ctx context.Context, updates []mitem.PositionUpdate, parents []mitem.ParentUpdate) error {
	if len(updates) == 0 && len(parents) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sitem: begin apply: %w", err)
	}
	defer tx.Rollback()

	for _, up := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET position = ? WHERE id = ?`, up.Position, up.ItemID); err != nil {
			return fmt.Errorf("sitem: update position %s: %w", up.ItemID, err)
		}
	}
	for _, pu := range parents {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET parent_id = ? WHERE id = ?`, parentValue(pu.NewParentID), pu.ItemID); err != nil {
			return fmt.Errorf("sitem: update parent %s: %w", pu.ItemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sitem: commit apply: %w", err)
	}
	return nil
}

// Scopes enumerates every sibling scope in the store, for rebalance sweeps.
func (s ItemService) Scopes(ctx context.Context) ([]mitem.ScopeKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT job_id, parent_id FROM items ORDER BY job_id, parent_id`)
	if err != nil {
		return nil, fmt.Errorf("sitem: list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []mitem.ScopeKey
	for rows.Next() {
		var jobRaw, parentRaw []byte
		if err := rows.Scan(&jobRaw, &parentRaw); err != nil {
			return nil, fmt.Errorf("sitem: scan scope: %w", err)
		}
		jobID, err := idwrap.NewFromBytes(jobRaw)
		if err != nil {
			return nil, fmt.Errorf("sitem: scope job id: %w", err)
		}
		scope := mitem.ScopeKey{JobID: jobID}
		if parentRaw != nil {
			parentID, err := idwrap.NewFromBytes(parentRaw)
			if err != nil {
				return nil, fmt.Errorf("sitem: scope parent id: %w", err)
			}
			scope.ParentID = parentID
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (mitem.Item, error) {
	var item mitem.Item
	var parentRaw []byte
	if err := row.Scan(&item.ID, &item.JobID, &parentRaw, &item.Name, &item.Status, &item.Position); err != nil {
		return mitem.Item{}, err
	}
	if parentRaw != nil {
		parentID, err := idwrap.NewFromBytes(parentRaw)
		if err != nil {
			return mitem.Item{}, err
		}
		item.ParentID = &parentID
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]mitem.Item, error) {
	var items []mitem.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sitem: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func parentValue(id *idwrap.IDWrap) any {
	if id == nil {
		return nil
	}
	return *id
}
