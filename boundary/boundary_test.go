package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/onionpeel"
	"github.com/notargets/meshtvprep/types"
)

// 2x2 quad grid, nodes numbered x fastest:
//
//	6 - 7 - 8
//	| 2 | 3 |
//	3 - 4 - 5
//	| 0 | 1 |
//	0 - 1 - 2
func quadGrid() types.ZoneList {
	return types.NewZoneList(2, []int{4}, []int{4}, []int{
		0, 1, 4, 3,
		1, 2, 5, 4,
		3, 4, 7, 6,
		4, 5, 8, 7,
	})
}

func material(matList ...int) *container.Material {
	return &container.Material{Mesh: "mesh", MatNos: []int{1, 2}, MatList: matList}
}

func build(t *testing.T, mat *container.Material, zl types.ZoneList, adj *onionpeel.Adjacency) *List {
	bl, err := Build(mat, adj, zl)
	require.NoError(t, err)
	require.NoError(t, bl.Validate())
	return bl
}

func TestBuild(t *testing.T) {
	zl := quadGrid()
	adj, err := onionpeel.Build(zl, 9)
	require.NoError(t, err)
	{ // Left / right split
		bl := build(t, material(1, 2, 1, 2), zl, adj)
		assert.Equal(t, []int{1, 2}, bl.MaterialNumbers)
		assert.Equal(t, []int{1, 1}, bl.NShapes)
		assert.Equal(t, []int{2, 2}, bl.ShapeCnt)
		assert.Equal(t, []int{2, 2}, bl.ShapeSize)
		assert.Equal(t, []int{1, 1}, bl.NOppositeMaterial)
		assert.Equal(t, []int{2, 2}, bl.OppositeMaterialCnt)
		assert.Equal(t, []int{2, 1}, bl.OppositeMaterialNumber)
		assert.Equal(t, []int{1, 4, 4, 7, 4, 1, 7, 4}, bl.NodeList)
		assert.Equal(t, 4, bl.NumShapes())
		assert.Equal(t, map[int]int{2: 2}, bl.Opposite(1))
	}
	{ // One material means no boundary
		bl := build(t, material(1, 1, 1, 1), zl, adj)
		assert.True(t, bl.Empty())
		assert.Equal(t, []int{0, 0}, bl.NShapes)
	}
	{ // Mixed zone takes its dominant material
		mat := material(1, -1, 1, 2)
		mat.MixMat = []int{1, 2}
		mat.MixVF = []float64{0.6, 0.4}
		mat.MixNext = []int{2, 0}
		mat.MixZone = []int{1, 1}
		bl := build(t, mat, zl, adj)
		assert.Equal(t, map[int]int{2: 2}, bl.Opposite(1))
		assert.Equal(t, map[int]int{1: 2}, bl.Opposite(2))
		assert.Equal(t, []int{5, 4, 4, 7, 4, 5, 7, 4}, bl.NodeList)
	}
	{ // Ghost neighbours are seen only through a full range adjacency
		ghosted := quadGrid()
		ghosted.MaxIndex = 1
		mat := material(1, 1, 2, 2)
		owned, err := onionpeel.Build(ghosted, 9)
		require.NoError(t, err)
		assert.True(t, build(t, mat, ghosted, owned).Empty())
		full, err := onionpeel.BuildRange(ghosted, 9, 0, 3)
		require.NoError(t, err)
		bl := build(t, mat, ghosted, full)
		assert.Equal(t, []int{1, 0}, bl.NShapes)
		assert.Equal(t, []int{2}, bl.ShapeCnt)
		assert.Equal(t, []int{4, 3, 5, 4}, bl.NodeList)
	}
	{ // Hexes sharing a quad face
		qm := &container.QuadMesh{NDims: 3, Coords: [3][]float64{{0, 1, 2}, {0, 1}, {0, 1}}}
		hexes := qm.ZoneList()
		hadj, err := onionpeel.Build(hexes, qm.NNodes())
		require.NoError(t, err)
		bl := build(t, material(1, 2), hexes, hadj)
		assert.Equal(t, []int{4, 4}, bl.ShapeSize)
		assert.Equal(t, []int{1, 4, 10, 7}, bl.NodeList[:4])
		assert.Equal(t, map[int]int{1: 1}, bl.Opposite(2))
	}
	{ // Material arrays must cover every zone
		_, err := Build(material(1, 2), adj, zl)
		assert.Error(t, err)
	}
}

func TestStorage(t *testing.T) {
	zl := quadGrid()
	adj, err := onionpeel.Build(zl, 9)
	require.NoError(t, err)
	bl := build(t, material(1, 2, 1, 2), zl, adj)
	dir := container.NewDir("/")
	bl.Write(dir)
	got, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, bl, got)

	bad := container.NewDir("/")
	bl.Write(bad)
	bad.PutInts(ShapeCntArray, []int{2, 3})
	_, err = Read(bad)
	assert.Error(t, err)
	_, err = Read(container.NewDir("/"))
	assert.ErrorIs(t, err, container.ErrNotFound)
}
