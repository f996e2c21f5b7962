package axis_test

import (
	"testing"

	"github.com/rpggio/phasefold/internal/axis"
	"github.com/stretchr/testify/require"
)

func TestFromBounds_Contiguous(t *testing.T) {
	for _, nbin := range []int{1, 2, 3, 7, 20} {
		ax, err := axis.FromBounds(0.1, 0.9, nbin)
		require.NoError(t, err)
		require.True(t, ax.IsContiguous())

		edges, err := ax.Edges()
		require.NoError(t, err)
		require.Len(t, edges, nbin+1)
		for i := 1; i < len(edges); i++ {
			require.GreaterOrEqual(t, edges[i], edges[i-1])
		}
		require.Equal(t, 0.0, edges[0])
		require.InDelta(t, 0.1, ax.Reference(), 1e-12)
	}
}

func TestFromBounds_TwoBins(t *testing.T) {
	ax, err := axis.FromBounds(0.0, 1.0, 2)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0.5}, ax.EdgesMin())
	require.Equal(t, []float64{0.5, 1.0}, ax.EdgesMax())
	require.Equal(t, []float64{0.5, 0.5}, ax.BinWidth())
	require.Equal(t, []float64{0.25, 0.75}, ax.Center())
	require.Equal(t, axis.DefaultName, ax.Name())
	require.Equal(t, 1.0, ax.Norm())
}

func TestFromBounds_ThirdsMatchInterpolation(t *testing.T) {
	ax, err := axis.FromBounds(0, 1, 3)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0.3333333333333333, 0.6666666666666666}, ax.EdgesMin())
	require.Equal(t, 1.0, ax.EdgesMax()[2])
}

func TestFromBounds_Invalid(t *testing.T) {
	_, err := axis.FromBounds(0, 1, 0)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)

	_, err = axis.FromBounds(0, 1, -3)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)

	_, err = axis.FromBounds(0.5, 0.5, 2)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)

	_, err = axis.FromBounds(0.8, 0.2, 2)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)
}

func TestFromEdges_Overlap(t *testing.T) {
	_, err := axis.FromEdges([]float64{0, 0.4}, []float64{0.5, 0.9})
	require.ErrorIs(t, err, axis.ErrOverlap)
}

func TestFromEdges_Gapped(t *testing.T) {
	ax, err := axis.FromEdges([]float64{0.1, 0.6}, []float64{0.3, 0.9}, axis.WithName("peak"), axis.WithNorm(2))
	require.NoError(t, err)
	require.False(t, ax.IsContiguous())
	require.Equal(t, "peak", ax.Name())
	require.Equal(t, 2.0, ax.Norm())

	_, err = ax.Edges()
	require.ErrorIs(t, err, axis.ErrNotContiguous)
	_, err = ax.PhaseEdges()
	require.ErrorIs(t, err, axis.ErrNotContiguous)

	require.InDelta(t, 0.0, ax.EdgesMin()[0], 1e-12)
	require.InDelta(t, 0.5, ax.EdgesMin()[1], 1e-12)
	require.InDelta(t, 0.6, ax.PhaseMin()[1], 1e-12)
	require.InDelta(t, 0.9, ax.PhaseMax()[1], 1e-12)
}

func TestFromEdges_TouchingIsContiguous(t *testing.T) {
	ax, err := axis.FromEdges([]float64{0.25, 0.5}, []float64{0.5, 0.75})
	require.NoError(t, err)
	require.True(t, ax.IsContiguous())

	edges, err := ax.PhaseEdges()
	require.NoError(t, err)
	require.Equal(t, []float64{0.25, 0.5, 0.75}, edges)
}

func TestNew_Invalid(t *testing.T) {
	_, err := axis.New(nil, nil, 0)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)

	_, err = axis.New([]float64{0, 0.5}, []float64{0.5}, 0)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)

	_, err = axis.New([]float64{0.6}, []float64{0.5}, 0)
	require.ErrorIs(t, err, axis.ErrInvalidAxis)

	_, err = axis.New([]float64{0}, []float64{1}, 0, axis.WithNorm(0))
	require.ErrorIs(t, err, axis.ErrInvalidAxis)
}

func TestAxis_Immutable(t *testing.T) {
	lo := []float64{0, 0.5}
	hi := []float64{0.5, 1}
	ax, err := axis.New(lo, hi, 0)
	require.NoError(t, err)

	lo[0] = 0.4
	got := ax.EdgesMin()
	require.Equal(t, 0.0, got[0])

	got[1] = 99
	require.Equal(t, 0.5, ax.EdgesMin()[1])

	bins := ax.Bins()
	require.Len(t, bins, 2)
	require.Equal(t, axis.Interval{Index: 1, Min: 0.5, Max: 1}, bins[1])
}
