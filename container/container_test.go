package container

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/types"
)

func TestContainerRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := Create(fs, "/data/test.mtv")
	require.NoError(t, err)

	dom := f.Mkdir("/block0/sub")
	mesh := &UcdMesh{
		NDims:    2,
		NNodes:   4,
		NZones:   1,
		Coords:   [3][]float64{{0, 1, 1, 0}, {0, 0, 1, 1}},
		ZoneList: types.NewZoneList(2, []int{1}, []int{4}, []int{0, 1, 2, 3}),
	}
	require.NoError(t, dom.PutUcdMesh("mesh", mesh))
	require.NoError(t, dom.PutVar("pressure", &Var{Mesh: "mesh",
		Centering: types.ZoneCentered, Values: [][]float64{{3.5}}}))
	assert.ErrorIs(t, dom.PutVar("mesh", &Var{}), ErrExists)
	dom.PutInts("offsets", []int{0, 1, 2})
	f.Root().SetAttr("nstates", 2)
	require.NoError(t, f.Root().PutMultiMesh("mesh", &Multi{Names: []string{"/block0/sub/mesh"}}))
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Close(), ErrClosed)

	g, err := Open(fs, "/data/test.mtv")
	require.NoError(t, err)
	d, err := g.Cd("block0/sub")
	require.NoError(t, err)
	m, err := d.UcdMesh("mesh")
	require.NoError(t, err)
	assert.Equal(t, mesh.ZoneList, m.ZoneList)
	assert.Equal(t, 1., m.Extent().Hi(1))
	require.NoError(t, m.Validate())
	v, err := d.Var("pressure")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v.Values[0][0])
	ints, err := d.Ints("offsets")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, ints)
	n, err := g.Root().Attr("nstates")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	toc := d.Toc()
	assert.Equal(t, []string{"mesh"}, toc.Meshes())
	assert.Equal(t, []string{"pressure"}, toc.Vars)
	_, err = d.QuadMesh("mesh")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.Cd("block1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, g.Flush(), ErrReadOnly)

	_, err = Open(fs, "/data/missing.mtv")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, afero.WriteFile(fs, "/data/junk.mtv", []byte("not a container"), 0o644))
	_, err = Open(fs, "/data/junk.mtv")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestObjectPath(t *testing.T) {
	{
		op, err := SplitObjectPath("dom_3.mtv:/block3/mesh")
		require.NoError(t, err)
		assert.Equal(t, ObjectPath{File: "dom_3.mtv", Dir: "/block3", Name: "mesh"}, op)
		assert.Equal(t, "dom_3.mtv:/block3/mesh", op.String())
		assert.True(t, op.Under("/"))
		assert.True(t, op.Under("/block3"))
		assert.False(t, op.Under("/block"))
		assert.True(t, op.InFile("dom_3.mtv", "root.mtv"))
	}
	{
		op, err := SplitObjectPath("mesh")
		require.NoError(t, err)
		assert.Equal(t, ObjectPath{Dir: "/", Name: "mesh"}, op)
		assert.True(t, op.InFile("root.mtv", "root.mtv"))
	}
	{
		_, err := SplitObjectPath(EmptyBlock)
		assert.Error(t, err)
	}
}

func TestQuadMeshZoneList(t *testing.T) {
	qm := &QuadMesh{NDims: 2, Coords: [3][]float64{{0, 1, 2}, {0, 1}}}
	assert.Equal(t, [3]int{3, 2, 1}, qm.Dims())
	assert.Equal(t, 2, qm.NZones())
	zl := qm.ZoneList()
	require.NoError(t, zl.Validate(2))
	assert.Equal(t, []int{0, 1, 4, 3, 1, 2, 5, 4}, zl.NodeList)
	assert.Equal(t, [3]float64{2, 1, 0}, qm.Node(5))
	e := qm.Extent()
	assert.Equal(t, [6]float64{0, 2, 0, 1, 0, 0}, e.Array())
}

func TestMaterialZoneMaterial(t *testing.T) {
	mat := &Material{
		Mesh:    "mesh",
		MatNos:  []int{1, 2},
		MatList: []int{1, -1, 2},
		MixMat:  []int{1, 2},
		MixVF:   []float64{0.3, 0.7},
		MixNext: []int{2, 0},
		MixZone: []int{1, 1},
	}
	require.NoError(t, mat.Validate(3))
	for z, want := range []int{1, 2, 2} {
		got, err := mat.ZoneMaterial(z)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := mat.ZoneMaterial(3)
	assert.Error(t, err)
}
