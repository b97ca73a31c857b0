package sorder_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/ordering/pkg/audit"
	"fieldline/ordering/pkg/conflict"
	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/position"
	"fieldline/ordering/pkg/service/sorder"
	"fieldline/ordering/pkg/testutil"
)

var jobID = idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000000")

func newService(ctx context.Context, t *testing.T) (sorder.OrderingService, *bytes.Buffer) {
	t.Helper()
	base := testutil.CreateBaseDB(ctx, t)
	var sink bytes.Buffer
	svc := sorder.New(base.Items, nil, audit.NewJSONEmitter(&sink), base.Logger())
	return svc, &sink
}

func draft(name string, status mitem.Status) mitem.Item {
	return mitem.Item{
		ID:     idwrap.NewNow(),
		JobID:  jobID,
		Name:   name,
		Status: status,
	}
}

func TestCreateAppendsOnline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(ctx, t)

	first, err := svc.Create(ctx, draft("first", mitem.StatusActive), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, position.DefaultGap, first.Position)

	second, err := svc.Create(ctx, draft("second", mitem.StatusActive), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Position+position.DefaultGap, second.Position)
}

func TestCreateOfflineUsesSessionCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(ctx, t)

	session := position.NewLocalSession()
	a, err := svc.Create(ctx, draft("offline a", mitem.StatusActive), nil, session)
	require.NoError(t, err)
	b, err := svc.Create(ctx, draft("offline b", mitem.StatusActive), nil, session)
	require.NoError(t, err)

	assert.Equal(t, 1.0, a.Position)
	assert.Equal(t, 2.0, b.Position)
}

func TestApplyMovesPersistsAndEmitsAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, sink := newService(ctx, t)

	var created []mitem.Item
	for _, name := range []string{"Task 1", "Task 2", "Task 3"} {
		it, err := svc.Create(ctx, draft(name, mitem.StatusActive), nil, nil)
		require.NoError(t, err)
		created = append(created, it)
	}

	scope := mitem.ScopeKey{JobID: jobID}
	res, err := svc.ApplyMoves(ctx, scope, []conflict.Change{{
		ItemID:    created[2].ID,
		Target:    conflict.Target{Kind: conflict.TargetIndex, Index: 0},
		LogicalTS: 42,
		Actor:     "tech-a",
	}})
	require.NoError(t, err)
	require.Len(t, res.Moved, 1)
	assert.NotEmpty(t, sink.Bytes(), "moved set reaches the audit sink")

	tree, err := svc.Tree(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	assert.Equal(t, "Task 3", tree[0].Item.Name)
	assert.Equal(t, "Task 1", tree[1].Item.Name)
	assert.Equal(t, "Task 2", tree[2].Item.Name)
}

func TestRebalanceScopeThroughService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(ctx, t)

	scope := mitem.ScopeKey{JobID: jobID}
	session := position.NewLocalSession()
	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, draft(name, mitem.StatusActive), nil, session)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RebalanceScope(ctx, scope))

	tree, err := svc.Tree(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	assert.Equal(t, 10000.0, tree[0].Item.Position)
	assert.Equal(t, 20000.0, tree[1].Item.Position)
	assert.Equal(t, 30000.0, tree[2].Item.Position)
}
