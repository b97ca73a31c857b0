package position_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/position"
)

func f(v float64) *float64 { return &v }

func item(id string, pos float64) mitem.Item {
	return mitem.Item{
		ID:       idwrap.NewTextMust(id),
		JobID:    idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000000"),
		Position: pos,
	}
}

func TestComputeInsertion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		before  *float64
		after   *float64
		want    float64
		wantErr error
	}{
		{name: "midpoint", before: f(10000), after: f(20000), want: 15000},
		{name: "empty scope", want: position.DefaultGap},
		{name: "head insert halves", after: f(8000), want: 4000},
		{name: "tail insert adds gap", before: f(3000), want: 3000 + position.DefaultGap},
		{name: "equal neighbors", before: f(5), after: f(5), wantErr: position.ErrInvalidNeighborOrder},
		{name: "reversed neighbors", before: f(9), after: f(3), wantErr: position.ErrInvalidNeighborOrder},
		{name: "nan neighbor", before: f(math.NaN()), after: f(1), wantErr: position.ErrInvalidNeighborOrder},
		{name: "head at zero exhausted", after: f(0), wantErr: position.ErrPositionExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := position.ComputeInsertion(tt.before, tt.after)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeInsertionStrictlyBetween(t *testing.T) {
	t.Parallel()

	pairs := [][2]float64{{1, 2}, {0, 1}, {-50, 50}, {10000, 10001}, {0.001, 0.002}}
	for _, p := range pairs {
		got, err := position.ComputeInsertion(&p[0], &p[1])
		require.NoError(t, err)
		assert.Greater(t, got, p[0])
		assert.Less(t, got, p[1])
	}
}

func TestComputeInsertionExhaustsAtFloatGranularity(t *testing.T) {
	t.Parallel()

	a := 1.0
	b := math.Nextafter(a, 2)
	_, err := position.ComputeInsertion(&a, &b)
	require.ErrorIs(t, err, position.ErrPositionExhausted)
}

func TestAssignerAppend(t *testing.T) {
	t.Parallel()

	as := position.NewAssigner()
	assert.Equal(t, position.DefaultGap, as.Append(nil))

	siblings := []mitem.Item{
		item("01HPQR2S3T4U5V6W7X8Y000001", 500),
		item("01HPQR2S3T4U5V6W7X8Y000002", 2500),
		item("01HPQR2S3T4U5V6W7X8Y000003", 1500),
	}
	assert.Equal(t, 2500+position.DefaultGap, as.Append(siblings))
}

func TestAssignerManualPosition(t *testing.T) {
	t.Parallel()

	as := position.NewAssigner()
	siblings := []mitem.Item{
		item("01HPQR2S3T4U5V6W7X8Y000001", 1000),
		item("01HPQR2S3T4U5V6W7X8Y000002", 2000),
	}

	got, err := as.Assign(siblings, f(1750))
	require.NoError(t, err)
	assert.Equal(t, 1750.0, got, "non-colliding manual position is honored as-is")

	got, err = as.Assign(siblings, f(1000))
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got, "collision lands between the collider and its successor")

	got, err = as.Assign(siblings, f(2000))
	require.NoError(t, err)
	assert.Equal(t, 2000+position.DefaultGap, got, "collision with the tail appends past it")
}

func TestLocalSessionCountersPerScope(t *testing.T) {
	t.Parallel()

	jobID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y000000")
	parentID := idwrap.NewTextMust("01HPQR2S3T4U5V6W7X8Y00000P")
	root := mitem.ScopeKey{JobID: jobID}
	sub := mitem.ScopeKey{JobID: jobID, ParentID: parentID}

	s := position.NewLocalSession()
	assert.Equal(t, 1.0, s.Next(root))
	assert.Equal(t, 2.0, s.Next(root))
	assert.Equal(t, 1.0, s.Next(sub), "each scope counts independently")
	assert.Equal(t, 3.0, s.Next(root))

	other := position.NewLocalSession()
	assert.Equal(t, 1.0, other.Next(root), "sessions do not share counters")
	assert.NotEqual(t, s.ID(), other.ID())
}
