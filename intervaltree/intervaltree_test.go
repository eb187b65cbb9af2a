package intervaltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

func box(xlo, xhi, ylo, yhi float64) types.Extent {
	return types.NewExtent([3]float64{xlo, ylo, 0}, [3]float64{xhi, yhi, 0})
}

func TestTree(t *testing.T) {
	{ // Domain count must match before wrap up
		tr := New("mesh", 3)
		assert.Equal(t, Empty, tr.State())
		require.NoError(t, tr.AddExtents(0, box(0, 1, 0, 1)))
		require.NoError(t, tr.AddExtents(2, box(2, 3, 0, 1)))
		assert.Equal(t, Accumulating, tr.State())
		assert.ErrorIs(t, tr.WrapUp(), ErrDomainCount)
		assert.ErrorIs(t, tr.AddExtents(2, box(0, 1, 0, 1)), ErrDuplicateDomain)
		assert.ErrorIs(t, tr.AddExtents(3, box(0, 1, 0, 1)), ErrDomainRange)
		assert.ErrorIs(t, tr.AddExtents(-1, box(0, 1, 0, 1)), ErrDomainRange)
		require.NoError(t, tr.AddExtents(1, types.EmptyExtent()))
		require.NoError(t, tr.WrapUp())
		assert.Equal(t, RootForState, tr.State())
		assert.Equal(t, [6]float64{0, 3, 0, 1, 0, 0}, tr.Root().Array())
		assert.Equal(t, []int{2}, tr.Overlapping(box(2.5, 4, 0.5, 0.6)))
		assert.Equal(t, []int{0, 2}, tr.Overlapping(box(-1, 4, -1, 4)))
		assert.ErrorIs(t, tr.AddExtents(1, box(0, 1, 0, 1)), ErrState)
	}
	{ // Empty state cannot wrap up
		assert.ErrorIs(t, New("v", 2).WrapUp(), ErrState)
	}
	{ // Storage
		tr := New("pressure", 2)
		require.NoError(t, tr.AddExtents(0, box(0, 1, 0, 1)))
		require.NoError(t, tr.AddExtents(1, box(1, 2, 0, 1)))
		dir := container.NewDir("pressure")
		assert.ErrorIs(t, tr.Write(dir), ErrState)
		require.NoError(t, tr.WrapUp())
		require.NoError(t, tr.Write(dir))
		assert.Equal(t, Written, tr.State())
		has, err := dir.Ints(HasDataArray)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1}, has)
		got, err := Read("pressure", dir)
		require.NoError(t, err)
		assert.Equal(t, tr.Root(), got.Root())
		assert.Equal(t, tr.Extent(1), got.Extent(1))
		dir.SetAttr(NDomainsAttr, 3)
		_, err = Read("pressure", dir)
		assert.ErrorIs(t, err, ErrDomainCount)
	}
}

func TestRootIndex(t *testing.T) {
	ri := NewRootIndex()
	for st := 0; st < 3; st++ {
		tr := New("mesh", 1)
		require.NoError(t, tr.AddExtents(0, box(float64(st), float64(st)+1, 0, 1)))
		require.NoError(t, tr.WrapUp())
		require.NoError(t, ri.AddTree(st, tr))
	}
	require.NoError(t, ri.Add("pressure", 0, box(0, 5, 0, 0)))
	{ // Every entity needs every state
		assert.ErrorIs(t, ri.WrapUp(3), ErrDomainCount)
		require.NoError(t, ri.Add("pressure", 1, box(0, 6, 0, 0)))
		require.NoError(t, ri.Add("pressure", 2, box(0, 7, 0, 0)))
		assert.ErrorIs(t, ri.Add("pressure", 2, box(0, 7, 0, 0)), ErrDuplicateDomain)
		assert.ErrorIs(t, ri.WrapUp(2), ErrDomainCount)
		require.NoError(t, ri.WrapUp(3))
		assert.ErrorIs(t, ri.Add("pressure", 3, box(0, 7, 0, 0)), ErrState)
	}
	{ // Queries
		assert.Equal(t, []string{"mesh", "pressure"}, ri.Entities())
		assert.Len(t, ri.Series("mesh"), 3)
		assert.Equal(t, []int{1, 2}, ri.Overlapping("mesh", box(2, 2.6, 0.5, 0.5)))
		assert.Nil(t, ri.Overlapping("mesh", box(10, 11, 0, 1)))
	}
	{ // Storage
		dir := container.NewDir("intervaltrees")
		require.NoError(t, ri.Write(dir))
		got, err := ReadRootIndex(dir)
		require.NoError(t, err)
		assert.Equal(t, 3, got.NumStates())
		assert.Equal(t, ri.Series("pressure"), got.Series("pressure"))
		assert.ErrorIs(t, NewRootIndex().Write(dir), ErrState)
	}
}
