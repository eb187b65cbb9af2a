package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

func cube(x []float64) *container.QuadMesh {
	yz := []float64{0, 2.5, 5, 7.5, 10}
	return &container.QuadMesh{NDims: 3, Coords: [3][]float64{x, yz, yz}}
}

func zoneValues(m *container.QuadMesh, offset float64) []float64 {
	vals := make([]float64, m.NZones())
	for z := range vals {
		vals[z] = offset + float64(z)
	}
	return vals
}

func TestPhaseOrder(t *testing.T) {
	r, err := New("mesh", [3]int{4, 4, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, [3]int{4, 4, 1}, r.Resolution())
	assert.False(t, r.ValidObject())
	assert.ErrorIs(t, r.WrapUp(), ErrPhaseOrder)
	assert.ErrorIs(t, r.AddMesh(0, &Geometry{}), ErrPhaseOrder)
	assert.ErrorIs(t, r.AddVar(0, "p", types.ZoneCentered, nil), ErrPhaseOrder)
	assert.Nil(t, r.Result())

	r.AddExtents(types.EmptyExtent())
	assert.False(t, r.ValidObject())
	assert.ErrorIs(t, r.WrapUp(), ErrPhaseOrder)

	_, err = New("mesh", [3]int{4, 0, 4}, 2)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestWrapUp(t *testing.T) {
	{ // Two domains covering [0,10]^3 on an 8x8x8 grid
		doms := []*container.QuadMesh{cube([]float64{0, 2.5, 5}), cube([]float64{5, 7.5, 10})}
		r, err := New("mesh", [3]int{8, 8, 8}, 3)
		require.NoError(t, err)
		geoms := make([]*Geometry, len(doms))
		for _, qm := range doms {
			r.AddExtents(qm.Extent())
		}
		require.True(t, r.ValidObject())
		for d, qm := range doms {
			geoms[d], err = GeometryFromQuad(qm)
			require.NoError(t, err)
			require.NoError(t, r.AddMesh(d, geoms[d]))
			require.NoError(t, r.AddVar(d, "rho", types.ZoneCentered, zoneValues(qm, 100*float64(d))))
			nodal := make([]float64, qm.NNodes())
			for n := range nodal {
				nodal[n] = qm.Node(n)[0]
			}
			require.NoError(t, r.AddVar(d, "x", types.NodeCentered, nodal))
		}
		assert.Error(t, r.AddVar(0, "rho", types.NodeCentered, nil))
		require.NoError(t, r.WrapUp())
		m := r.Result()
		require.NotNil(t, m)
		assert.Equal(t, 512, m.NumCells())
		assert.Len(t, m.Vars["rho"], 512)
		assert.Len(t, m.Coords[0], 9)
		assert.Equal(t, [6]float64{0, 10, 0, 10, 0, 10}, m.Extent.Array())
		for k := 0; k < 8; k++ {
			for j := 0; j < 8; j++ {
				for i := 0; i < 8; i++ {
					c := i + 8*(j+8*k)
					require.Equal(t, 1, m.Mask[c])
					dom, zi := m.SourceDomain[c], m.SourceZone[c]
					g := geoms[dom]
					center := m.CellCenter(i, j, k)
					assert.True(t, g.ZoneExtent(zi).Contains(types.Vec(center[:]...)))
					assert.Equal(t, 100*float64(dom)+float64(g.ZoneIDs[zi]), m.Vars["rho"][c])
					// nearest node x is within half a source zone of the centre
					assert.InDelta(t, center[0], m.Vars["x"][c], 1.25+1e-9)
				}
			}
		}
		// cells left of x = 5 come from the first domain
		assert.Equal(t, 0, m.SourceDomain[3])
		assert.Equal(t, 1, m.SourceDomain[4])
	}
	{ // Uncovered cells are masked out
		left := &container.UcdMesh{NDims: 2, NNodes: 4, NZones: 1,
			Coords:   [3][]float64{{0, 1, 1, 0}, {0, 0, 1, 1}},
			ZoneList: types.NewZoneList(2, []int{1}, []int{4}, []int{0, 1, 2, 3}),
		}
		right := &container.UcdMesh{NDims: 2, NNodes: 4, NZones: 1,
			Coords:   [3][]float64{{2, 3, 3, 2}, {0, 0, 1, 1}},
			ZoneList: types.NewZoneList(2, []int{1}, []int{4}, []int{0, 1, 2, 3}),
		}
		r, err := New("gap", [3]int{3, 1, 0}, 2)
		require.NoError(t, err)
		r.AddExtents(left.Extent())
		r.AddExtents(right.Extent())
		for d, um := range []*container.UcdMesh{left, right} {
			g, err := GeometryFromUcd(um)
			require.NoError(t, err)
			require.NoError(t, r.AddMesh(d, g))
			require.NoError(t, r.AddVar(d, "p", types.ZoneCentered, []float64{float64(d + 1)}))
		}
		assert.Error(t, r.AddMesh(1, &Geometry{}))
		require.NoError(t, r.WrapUp())
		m := r.Result()
		assert.Equal(t, []int{1, 0, 1}, m.Mask)
		assert.Equal(t, []int{0, -1, 1}, m.SourceDomain)
		assert.Equal(t, []float64{1, 0, 2}, m.Vars["p"])
		assert.Nil(t, m.Coords[2])

		dir := container.NewDir("_lowres")
		require.NoError(t, m.Write(dir))
		qm, err := dir.QuadMesh("gap")
		require.NoError(t, err)
		assert.Equal(t, 3, qm.NZones())
		assert.Equal(t, []float64{0, 1, 2, 3}, qm.Coords[0])
		v, err := dir.Var("p")
		require.NoError(t, err)
		assert.Equal(t, types.ZoneCentered, v.Centering)
		mask, err := dir.Ints(MaskArray)
		require.NoError(t, err)
		assert.Equal(t, m.Mask, mask)
	}
	{ // Ghost zones do not take part
		um := &container.UcdMesh{NDims: 2, NNodes: 6, NZones: 2,
			Coords:   [3][]float64{{0, 1, 2, 0, 1, 2}, {0, 0, 0, 1, 1, 1}},
			ZoneList: types.NewZoneList(2, []int{2}, []int{4}, []int{0, 1, 4, 3, 1, 2, 5, 4}),
		}
		um.ZoneList.MaxIndex = 0
		g, err := GeometryFromUcd(um)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, g.ZoneIDs)
		assert.Equal(t, [6]float64{0, 1, 0, 1, 0, 0}, g.Extent().Array())
	}
}
