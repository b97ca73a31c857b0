package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"fieldline/ordering/pkg/logger/mocklogger"
	"fieldline/ordering/pkg/service/sitem"
)

// BaseDB bundles an in-memory database and the item service over it.
type BaseDB struct {
	DB    *sql.DB
	Items sitem.ItemService
	t     *testing.T
}

// CreateBaseDB opens an in-memory SQLite database with the item schema
// applied. Cleanup is registered on t.
func CreateBaseDB(ctx context.Context, t *testing.T) *BaseDB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// One connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})

	items := sitem.New(db, mocklogger.NewMockLogger())
	if err := items.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	return &BaseDB{DB: db, Items: items, t: t}
}

func (b *BaseDB) Logger() *slog.Logger {
	return mocklogger.NewMockLogger()
}

func AssertFatal[c comparable](t *testing.T, expected, got c) {
	t.Helper()
	if got != expected {
		t.Fatalf("got %v, expected %v", got, expected)
	}
}

func Assert[c comparable](t *testing.T, expected, got c) {
	t.Helper()
	if got != expected {
		t.Errorf("got %v, expected %v", got, expected)
	}
}

func AssertNot[c comparable](t *testing.T, not, got c) {
	t.Helper()
	if got == not {
		t.Errorf("got %v, expected not %v", got, not)
	}
}
