package audit_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/ordering/pkg/audit"
	"fieldline/ordering/pkg/conflict"
	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/logger/mocklogger"
)

func TestJSONEmitterWritesOneLinePerEntry(t *testing.T) {
	t.Parallel()

	moved := conflict.Moved{
		ItemID:      idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000001"),
		OldPosition: 3,
		NewPosition: 0.5,
		Actor:       "tech-a",
		LogicalTS:   1700000000000,
	}

	var buf bytes.Buffer
	emitter := audit.NewJSONEmitter(&buf)
	require.NoError(t, emitter.Emit(context.Background(), []audit.Entry{audit.FromMoved(moved)}))

	dec := json.NewDecoder(&buf)
	var got audit.Entry
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, "01HPQR2S3T4U5V6W7X8Y000001", got.ItemID)
	assert.Equal(t, 3.0, got.OldPosition)
	assert.Equal(t, 0.5, got.NewPosition)
	assert.Equal(t, "tech-a", got.Actor)
	assert.Equal(t, int64(1700000000000), got.Timestamp)
}

func TestLogEmitterRecordsEachMove(t *testing.T) {
	t.Parallel()

	handler := &mocklogger.MockHandler{}
	emitter := audit.NewLogEmitter(slog.New(handler))

	entries := []audit.Entry{
		{ItemID: "a", OldPosition: 1, NewPosition: 2},
		{ItemID: "b", OldPosition: 2, NewPosition: 1},
	}
	require.NoError(t, emitter.Emit(context.Background(), entries))
	assert.Len(t, handler.LoggedMessages, 2)
}
