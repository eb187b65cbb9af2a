// Package mesh reads whole unstructured meshes, knows the face layout of each
// zone shape, and decomposes meshes into multi-domain container datasets.
package mesh

import (
	"fmt"

	"github.com/notargets/meshtvprep/types"
)

// Mesh is a single domain unstructured mesh as read from a grid file
type Mesh struct {
	NDims        int
	Vertices     [][3]float64 // Vertex coordinates, unused dims zero
	Zones        [][]int      // Zone to vertex connectivity
	ElementTypes []ElementType
	BoundaryTags map[int]string
}

func NewMesh(ndims int) *Mesh {
	return &Mesh{
		NDims:        ndims,
		BoundaryTags: make(map[int]string),
	}
}

func (m *Mesh) NumVertices() int { return len(m.Vertices) }
func (m *Mesh) NumZones() int    { return len(m.Zones) }

// AddZone appends a zone after checking its shape
func (m *Mesh) AddZone(vertices []int) error {
	et, err := ShapeType(m.NDims, len(vertices))
	if err != nil {
		return err
	}
	m.Zones = append(m.Zones, vertices)
	m.ElementTypes = append(m.ElementTypes, et)
	return nil
}

// ZoneList packs the zones into shape runs, starting a new run whenever the
// vertex count changes.
func (m *Mesh) ZoneList() types.ZoneList {
	return packZones(m.NDims, m.Zones)
}

func packZones(ndims int, zones [][]int) types.ZoneList {
	var (
		counts, sizes, nodes []int
	)
	for _, z := range zones {
		if n := len(sizes); n == 0 || sizes[n-1] != len(z) {
			sizes = append(sizes, len(z))
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
		nodes = append(nodes, z...)
	}
	return types.NewZoneList(ndims, counts, sizes, nodes)
}

// Bounds of the vertex coordinates
func (m *Mesh) Bounds() types.Extent {
	e := types.EmptyExtent()
	for _, v := range m.Vertices {
		e = e.Expand(types.Vec(v[:]...))
	}
	return e
}

// Centroid of zone z
func (m *Mesh) Centroid(z int) (c [3]float64) {
	for _, v := range m.Zones[z] {
		for d := 0; d < 3; d++ {
			c[d] += m.Vertices[v][d]
		}
	}
	for d := 0; d < 3; d++ {
		c[d] /= float64(len(m.Zones[z]))
	}
	return
}

func (m *Mesh) Validate() error {
	for z, zone := range m.Zones {
		for _, v := range zone {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("zone %d references vertex %d, mesh has %d", z, v, len(m.Vertices))
			}
		}
	}
	return nil
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Dimension: %d\n", m.NDims)
	fmt.Printf("  Vertices: %d\n", m.NumVertices())
	fmt.Printf("  Zones: %d\n", m.NumZones())
	typeCounts := make(map[ElementType]int)
	for _, t := range m.ElementTypes {
		typeCounts[t]++
	}
	fmt.Printf("  Zone types:\n")
	for t := Line; t <= Hex; t++ {
		if count := typeCounts[t]; count > 0 {
			fmt.Printf("    %s: %d\n", t, count)
		}
	}
}
