package resample

import (
	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

// Geometry is the owned zones of one domain flattened to node coordinates,
// with each zone's index in the domain so field values can be looked up.
type Geometry struct {
	NDims   int
	Nodes   [][3]float64
	Zones   [][]int
	ZoneIDs []int
	bounds  []types.Extent
}

// GeometryFromUcd keeps only the owned zones of the mesh
func GeometryFromUcd(m *container.UcdMesh) (*Geometry, error) {
	g := &Geometry{NDims: m.NDims, Nodes: make([][3]float64, m.NNodes)}
	for n := range g.Nodes {
		g.Nodes[n] = m.Node(n)
	}
	zl := m.ZoneList
	err := zl.ForEachZone(func(z int, nodes []int) error {
		if !zl.Owned(z) {
			return nil
		}
		local := make([]int, len(nodes))
		for i, n := range nodes {
			local[i] = n - zl.Origin
		}
		g.Zones = append(g.Zones, local)
		g.ZoneIDs = append(g.ZoneIDs, z)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, g.index()
}

func GeometryFromQuad(m *container.QuadMesh) (*Geometry, error) {
	g := &Geometry{NDims: m.NDims, Nodes: make([][3]float64, m.NNodes())}
	for n := range g.Nodes {
		g.Nodes[n] = m.Node(n)
	}
	err := m.ZoneList().ForEachZone(func(z int, nodes []int) error {
		g.Zones = append(g.Zones, nodes)
		g.ZoneIDs = append(g.ZoneIDs, z)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, g.index()
}

func (g *Geometry) index() error {
	g.bounds = make([]types.Extent, len(g.Zones))
	for i, zone := range g.Zones {
		e := types.EmptyExtent()
		for _, n := range zone {
			if n < 0 || n >= len(g.Nodes) {
				return errNode(g.ZoneIDs[i], n, len(g.Nodes))
			}
			e = e.Expand(types.Vec(g.Nodes[n][:]...))
		}
		g.bounds[i] = e
	}
	return nil
}

// ZoneExtent is the bounding box of the i-th owned zone
func (g *Geometry) ZoneExtent(i int) types.Extent { return g.bounds[i] }

// Extent of every owned zone
func (g *Geometry) Extent() types.Extent {
	e := types.EmptyExtent()
	for _, b := range g.bounds {
		e = e.Union(b)
	}
	return e
}

// nearestNode returns the node of zone i closest to p
func (g *Geometry) nearestNode(i int, p [3]float64) int {
	best, bestD := -1, 0.
	for _, n := range g.Zones[i] {
		var d float64
		for c := 0; c < 3; c++ {
			diff := g.Nodes[n][c] - p[c]
			d += diff * diff
		}
		if best < 0 || d < bestD {
			best, bestD = n, d
		}
	}
	return best
}
