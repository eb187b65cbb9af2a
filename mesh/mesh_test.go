package mesh

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

// 2x2 quad grid with a stray boundary line element and a marker section
const quadSU2 = `% test grid
NDIME= 2
NELEM= 5
9 0 1 4 3 0
9 1 2 5 4 1
9 3 4 7 6 2
9 4 5 8 7 3
3 0 1 4
NPOIN= 9
0. 0. 0
1. 0. 1
2. 0. 2
0. 1. 3
1. 1. 4
2. 1. 5
0. 2. 6
1. 2. 7
2. 2. 8
NMARK= 1
MARKER_TAG= wall
MARKER_ELEMS= 2
3 0 1
3 1 2
`

func quadMesh(t *testing.T) *Mesh {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "grid.su2", []byte(quadSU2), 0o644))
	m, err := ReadSU2(fs, "grid.su2")
	require.NoError(t, err)
	return m
}

// three quads in a row, x in [0,3]
func stripMesh() *Mesh {
	m := NewMesh(2)
	for j := 0; j < 2; j++ {
		for i := 0; i < 4; i++ {
			m.Vertices = append(m.Vertices, [3]float64{float64(i), float64(j), 0})
		}
	}
	for i := 0; i < 3; i++ {
		_ = m.AddZone([]int{i, i + 1, i + 5, i + 4})
	}
	return m
}

func TestShapes(t *testing.T) {
	{ // Shape lookup
		et, err := ShapeType(3, 8)
		require.NoError(t, err)
		assert.Equal(t, Hex, et)
		et, err = ShapeType(2, 6)
		require.NoError(t, err)
		assert.Equal(t, Polygon, et)
		_, err = ShapeType(3, 7)
		assert.Error(t, err)
		_, err = ShapeType(1, 3)
		assert.Error(t, err)
	}
	{ // Faces per shape
		faces, err := Faces(2, []int{0, 1, 4, 3})
		require.NoError(t, err)
		assert.Equal(t, [][]int{{0, 1}, {1, 4}, {4, 3}, {3, 0}}, faces)
		faces, err = Faces(3, []int{0, 1, 2, 3})
		require.NoError(t, err)
		assert.Len(t, faces, 4)
		faces, err = Faces(3, []int{0, 1, 2, 3, 4, 5, 6, 7})
		require.NoError(t, err)
		assert.Len(t, faces, 6)
		faces, err = Faces(3, []int{0, 1, 2, 3, 4})
		require.NoError(t, err)
		assert.Len(t, faces, 5)
		faces, err = Faces(1, []int{3, 4})
		require.NoError(t, err)
		assert.Equal(t, [][]int{{3}, {4}}, faces)
		_, err = Faces(3, []int{0, 1, 2})
		assert.Error(t, err)
	}
}

func TestReadSU2(t *testing.T) {
	{ // Volume zones only, coordinates by point index
		m := quadMesh(t)
		assert.Equal(t, 2, m.NDims)
		assert.Equal(t, 9, m.NumVertices())
		assert.Equal(t, 4, m.NumZones())
		assert.Equal(t, []int{4, 5, 8, 7}, m.Zones[3])
		assert.Equal(t, [3]float64{2, 2, 0}, m.Vertices[8])
		assert.Equal(t, "wall", m.BoundaryTags[0])
		zl := m.ZoneList()
		assert.NoError(t, zl.Validate(4))
		assert.Equal(t, []int{4}, zl.ShapeCount)
		e := m.Bounds()
		assert.Equal(t, [6]float64{0, 2, 0, 2, 0, 0}, e.Array())
		assert.Equal(t, [3]float64{0.5, 0.5, 0}, m.Centroid(0))
	}
	{ // Broken files
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "bad.su2", []byte("NDIME= 4\n"), 0o644))
		_, err := ReadSU2(fs, "bad.su2")
		assert.Error(t, err)
		require.NoError(t, afero.WriteFile(fs, "short.su2", []byte("NDIME= 2\nNELEM= 2\n9 0 1 2 3 0\n"), 0o644))
		_, err = ReadSU2(fs, "short.su2")
		assert.Error(t, err)
		require.NoError(t, afero.WriteFile(fs, "range.su2",
			[]byte("NDIME= 2\nNELEM= 1\n5 0 1 7 0\nNPOIN= 3\n0 0 0\n1 0 1\n0 1 2\n"), 0o644))
		_, err = ReadSU2(fs, "range.su2")
		assert.Error(t, err)
		_, err = ReadSU2(fs, "missing.su2")
		assert.Error(t, err)
	}
}

func TestDecompose(t *testing.T) {
	m := quadMesh(t)
	{ // Owned zones only, nodes renumbered locally
		pieces, err := Decompose(m, 2, false)
		require.NoError(t, err)
		require.Len(t, pieces, 2)
		p := pieces[1]
		assert.Equal(t, []int{2, 3}, p.GlobalZones)
		assert.Equal(t, []int{3, 4, 5, 6, 7, 8}, p.GlobalNodes)
		assert.Equal(t, 6, p.Mesh.NNodes)
		assert.Equal(t, 2, p.Mesh.NZones)
		assert.Equal(t, []int{0, 1, 4, 3, 1, 2, 5, 4}, p.Mesh.ZoneList.NodeList)
		assert.Equal(t, []float64{0, 1, 2, 0, 1, 2}, p.Mesh.Coords[0])
		assert.Equal(t, 1, p.Mesh.ZoneList.MaxIndex)
		assert.NoError(t, p.Mesh.Validate())
	}
	{ // One ghost layer after the owned zones
		pieces, err := Decompose(m, 2, true)
		require.NoError(t, err)
		p := pieces[0]
		assert.Equal(t, 2, p.NOwned)
		assert.Equal(t, []int{0, 1, 2, 3}, p.GlobalZones)
		assert.Equal(t, 9, p.Mesh.NNodes)
		assert.Equal(t, 4, p.Mesh.ZoneList.NumZones())
		assert.Equal(t, 2, p.Mesh.ZoneList.NumOwned())
		assert.False(t, p.Mesh.ZoneList.Owned(2))
	}
	{ // Bad domain counts
		_, err := Decompose(m, 0, false)
		assert.Error(t, err)
		_, err = Decompose(m, 5, false)
		assert.Error(t, err)
	}
}

func TestWriteContainer(t *testing.T) {
	fs := afero.NewMemMapFs()
	pieces, err := Decompose(stripMesh(), 3, false)
	require.NoError(t, err)
	roots, err := WriteContainer(fs, "/data", pieces, DatasetOptions{Prefix: "strip", States: 2, Files: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"/data/strip_0000.root.mtv", "/data/strip_0001.root.mtv"}, roots)
	{ // Root file multi objects reference the data files
		root, err := container.Open(fs, roots[1])
		require.NoError(t, err)
		mm, err := root.Root().MultiMesh(DatasetMesh)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"strip_0001_000.mtv:/domain_0/mesh",
			"strip_0001_000.mtv:/domain_1/mesh",
			"strip_0001_001.mtv:/domain_2/mesh",
		}, mm.Names)
		assert.Equal(t, 1., mm.Time)
		toc := root.Root().Toc()
		assert.Equal(t, []string{DatasetZoneVar, DatasetNodeVar}, toc.MultiVars)
		assert.Equal(t, []string{DatasetMaterial}, toc.MultiMats)
		require.NoError(t, root.Close())
	}
	{ // Middle zone straddles the material split
		data, err := container.Open(fs, filepath.Join("/data", "strip_0000_000.mtv"))
		require.NoError(t, err)
		dir, err := data.Cd("/domain_1")
		require.NoError(t, err)
		mat, err := dir.Material(DatasetMaterial)
		require.NoError(t, err)
		assert.Equal(t, []int{-1}, mat.MatList)
		assert.Equal(t, []float64{0.5, 0.5}, mat.MixVF)
		zm, err := mat.ZoneMaterial(0)
		require.NoError(t, err)
		assert.Equal(t, 1, zm)
		v, err := dir.Var(DatasetZoneVar)
		require.NoError(t, err)
		assert.Equal(t, types.ZoneCentered, v.Centering)
		assert.InDelta(t, 2.5, v.Values[0][0], 1e-12)
		nv, err := dir.Var(DatasetNodeVar)
		require.NoError(t, err)
		assert.Equal(t, 4, nv.Len())
	}
}
