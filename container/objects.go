package container

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/meshtvprep/types"
)

// MeshKind is the flavour of a mesh object
type MeshKind uint8

const (
	UcdMeshKind MeshKind = iota
	QuadMeshKind
	PointMeshKind
)

func (mk MeshKind) String() string {
	return [...]string{"ucd", "quad", "point"}[mk]
}

// UcdMesh is an unstructured mesh: explicit node coordinates and a zone list
type UcdMesh struct {
	NDims    int
	NNodes   int
	NZones   int
	Coords   [3][]float64
	ZoneList types.ZoneList
	Time     float64
	Cycle    int
}

// Extent of the node coordinates
func (m *UcdMesh) Extent() types.Extent {
	return coordExtent(m.NDims, m.NNodes, func(d, i int) float64 { return m.Coords[d][i] })
}

// Node returns the coordinates of node n, unused dims are zero
func (m *UcdMesh) Node(n int) (p [3]float64) {
	for d := 0; d < m.NDims; d++ {
		p[d] = m.Coords[d][n]
	}
	return
}

func (m *UcdMesh) Validate() error {
	for d := 0; d < m.NDims; d++ {
		if len(m.Coords[d]) != m.NNodes {
			return fmt.Errorf("ucd mesh axis %d has %d coordinates, expected %d",
				d, len(m.Coords[d]), m.NNodes)
		}
	}
	if err := m.ZoneList.Validate(m.NZones); err != nil {
		return err
	}
	for _, n := range m.ZoneList.NodeList {
		if n < m.ZoneList.Origin || n-m.ZoneList.Origin >= m.NNodes {
			return fmt.Errorf("ucd mesh references node %d outside [0,%d)", n, m.NNodes)
		}
	}
	return nil
}

// QuadMesh is a rectilinear mesh described by per axis node coordinates
type QuadMesh struct {
	NDims  int
	Coords [3][]float64
	Time   float64
	Cycle  int
}

// Dims is the node count per axis, unused axes report 1
func (m *QuadMesh) Dims() (dims [3]int) {
	for d := 0; d < 3; d++ {
		dims[d] = 1
		if d < m.NDims {
			dims[d] = len(m.Coords[d])
		}
	}
	return
}

func (m *QuadMesh) NNodes() int {
	dims := m.Dims()
	return dims[0] * dims[1] * dims[2]
}

func (m *QuadMesh) NZones() int {
	n := 1
	for d := 0; d < m.NDims; d++ {
		if len(m.Coords[d]) < 2 {
			return 0
		}
		n *= len(m.Coords[d]) - 1
	}
	return n
}

func (m *QuadMesh) Extent() types.Extent {
	e := types.NewExtent([3]float64{}, [3]float64{})
	for d := 0; d < m.NDims; d++ {
		lo, hi := minMax(m.Coords[d])
		switch d {
		case 0:
			e.Min.X, e.Max.X = lo, hi
		case 1:
			e.Min.Y, e.Max.Y = lo, hi
		case 2:
			e.Min.Z, e.Max.Z = lo, hi
		}
	}
	return e
}

// ZoneList expresses the quad mesh as an unstructured zone list with x
// fastest node numbering (segments, quads or hexes).
func (m *QuadMesh) ZoneList() types.ZoneList {
	dims := m.Dims()
	var (
		nodeID = func(i, j, k int) int { return i + dims[0]*(j+dims[1]*k) }
		nodes  []int
		size   int
	)
	switch m.NDims {
	case 1:
		size = 2
		for i := 0; i < dims[0]-1; i++ {
			nodes = append(nodes, i, i+1)
		}
	case 2:
		size = 4
		for j := 0; j < dims[1]-1; j++ {
			for i := 0; i < dims[0]-1; i++ {
				nodes = append(nodes, nodeID(i, j, 0), nodeID(i+1, j, 0),
					nodeID(i+1, j+1, 0), nodeID(i, j+1, 0))
			}
		}
	case 3:
		size = 8
		for k := 0; k < dims[2]-1; k++ {
			for j := 0; j < dims[1]-1; j++ {
				for i := 0; i < dims[0]-1; i++ {
					nodes = append(nodes,
						nodeID(i, j, k), nodeID(i+1, j, k), nodeID(i+1, j+1, k), nodeID(i, j+1, k),
						nodeID(i, j, k+1), nodeID(i+1, j, k+1), nodeID(i+1, j+1, k+1), nodeID(i, j+1, k+1))
				}
			}
		}
	}
	nz := m.NZones()
	if nz == 0 {
		return types.NewZoneList(m.NDims, nil, nil, nil)
	}
	return types.NewZoneList(m.NDims, []int{nz}, []int{size}, nodes)
}

// Node returns the coordinates of node n in x fastest order
func (m *QuadMesh) Node(n int) (p [3]float64) {
	dims := m.Dims()
	idx := [3]int{n % dims[0], (n / dims[0]) % dims[1], n / (dims[0] * dims[1])}
	for d := 0; d < m.NDims; d++ {
		p[d] = m.Coords[d][idx[d]]
	}
	return
}

// PointMesh is a set of unconnected points
type PointMesh struct {
	NDims  int
	NNodes int
	Coords [3][]float64
}

func (m *PointMesh) Extent() types.Extent {
	return coordExtent(m.NDims, m.NNodes, func(d, i int) float64 { return m.Coords[d][i] })
}

// Var is a field defined on a mesh. Vector fields carry one slice per
// component.
type Var struct {
	Mesh      string
	Centering types.Centering
	Values    [][]float64
}

func (v *Var) NComps() int { return len(v.Values) }

// Len is the number of values per component
func (v *Var) Len() int {
	if len(v.Values) == 0 {
		return 0
	}
	return len(v.Values[0])
}

// Extent of the field values, stored in the X slot (and Y, Z for the second
// and third components of a vector field).
func (v *Var) Extent() types.Extent {
	e := types.NewExtent([3]float64{}, [3]float64{})
	for c := 0; c < len(v.Values) && c < 3; c++ {
		if len(v.Values[c]) == 0 {
			continue
		}
		lo, hi := minMax(v.Values[c])
		switch c {
		case 0:
			e.Min.X, e.Max.X = lo, hi
		case 1:
			e.Min.Y, e.Max.Y = lo, hi
		case 2:
			e.Min.Z, e.Max.Z = lo, hi
		}
	}
	return e
}

// Material assigns a material number to every zone of a mesh. A negative
// MatList entry -(i+1) points at mixed record i; the Mix* slices form linked
// lists through MixNext (1 based, 0 terminates).
type Material struct {
	Mesh    string
	MatNos  []int
	MatList []int
	MixMat  []int
	MixVF   []float64
	MixNext []int
	MixZone []int
}

// ZoneMaterial returns the material of zone z; mixed zones report the
// component with the largest volume fraction.
func (m *Material) ZoneMaterial(z int) (int, error) {
	if z < 0 || z >= len(m.MatList) {
		return 0, fmt.Errorf("material on %s has no entry for zone %d", m.Mesh, z)
	}
	mat := m.MatList[z]
	if mat >= 0 {
		return mat, nil
	}
	var (
		best   = -1
		bestVF = -1.
		seen   int
	)
	for i := -mat - 1; i >= 0; i = m.MixNext[i] - 1 {
		if i >= len(m.MixMat) || seen > len(m.MixMat) {
			return 0, fmt.Errorf("material on %s has a broken mixed record chain at zone %d", m.Mesh, z)
		}
		if m.MixVF[i] > bestVF {
			best, bestVF = m.MixMat[i], m.MixVF[i]
		}
		seen++
	}
	return best, nil
}

func (m *Material) Validate(nzones int) error {
	if len(m.MatList) != nzones {
		return fmt.Errorf("material on %s has %d zone entries, mesh has %d zones",
			m.Mesh, len(m.MatList), nzones)
	}
	if len(m.MixMat) != len(m.MixVF) || len(m.MixMat) != len(m.MixNext) {
		return fmt.Errorf("material on %s has inconsistent mixed arrays", m.Mesh)
	}
	return nil
}

// Multi lists the per domain objects making up one logical mesh, var or
// material. Empty domains are named EmptyBlock.
type Multi struct {
	Names     []string
	MeshKinds []MeshKind
	Time      float64
	Cycle     int
}

// EmptyBlock marks a domain with no data in a Multi
const EmptyBlock = "EMPTY"

func (mo *Multi) NumDomains() int { return len(mo.Names) }

func coordExtent(ndims, n int, at func(d, i int) float64) types.Extent {
	e := types.EmptyExtent()
	for i := 0; i < n; i++ {
		var p [3]float64
		for d := 0; d < ndims; d++ {
			p[d] = at(d, i)
		}
		e = e.Expand(types.Vec(p[:]...))
	}
	return e
}

func minMax(vals []float64) (lo, hi float64) {
	if len(vals) == 0 {
		return
	}
	return floats.Min(vals), floats.Max(vals)
}
