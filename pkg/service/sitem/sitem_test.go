package sitem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/service/sitem"
	"fieldline/ordering/pkg/testutil"
)

var jobID = idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000000")

func task(id string, pos float64, parent *idwrap.IDWrap) mitem.Item {
	return mitem.Item{
		ID:       idwrap.NewTextMust(id),
		JobID:    jobID,
		ParentID: parent,
		Name:     "task " + id[len(id)-2:],
		Status:   mitem.StatusNotStarted,
		Position: pos,
	}
}

func TestCreateAndGetItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)

	parentID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y00000P")
	want := task("01HPQR2S3T4U5V6W7X8Y000001", 123.5, &parentID)
	require.NoError(t, base.Items.CreateItem(ctx, want))

	got, err := base.Items.GetItem(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = base.Items.GetItem(ctx, idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y0000ZZ"))
	assert.ErrorIs(t, err, sitem.ErrNoItemFound)
}

func TestScopeItemsAreScopedAndOrdered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)

	parentID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000001")
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000001", 20, nil)))
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000002", 10, nil)))
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000011", 5, &parentID)))

	roots, err := base.Items.ScopeItems(ctx, mitem.ScopeKey{JobID: jobID})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, 10.0, roots[0].Position, "scope reads come back position-ordered")
	assert.Equal(t, 20.0, roots[1].Position)

	subs, err := base.Items.ScopeItems(ctx, mitem.ScopeKey{JobID: jobID, ParentID: parentID})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 5.0, subs[0].Position)

	all, err := base.Items.JobItems(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestApplyResolvedWritesPositionsAndParentsTogether(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)

	parentID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000001")
	moverID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000002")
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000001", 1, nil)))
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000002", 2, nil)))

	err := base.Items.ApplyResolved(ctx,
		[]mitem.PositionUpdate{{ItemID: moverID, Position: 1000}},
		[]mitem.ParentUpdate{{ItemID: moverID, NewParentID: &parentID}})
	require.NoError(t, err)

	got, err := base.Items.GetItem(ctx, moverID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Position)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, parentID, *got.ParentID)

	// Moving back to root clears the parent.
	require.NoError(t, base.Items.ApplyResolved(ctx, nil,
		[]mitem.ParentUpdate{{ItemID: moverID, NewParentID: nil}}))
	got, err = base.Items.GetItem(ctx, moverID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
}

func TestScopesEnumeration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := testutil.CreateBaseDB(ctx, t)

	parentID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000001")
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000001", 1, nil)))
	require.NoError(t, base.Items.CreateItem(ctx, task("01HPQR2S3T4U5V6W7X8Y000011", 1, &parentID)))

	scopes, err := base.Items.Scopes(ctx)
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Contains(t, scopes, mitem.ScopeKey{JobID: jobID})
	assert.Contains(t, scopes, mitem.ScopeKey{JobID: jobID, ParentID: parentID})
}
