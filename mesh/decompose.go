package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/utils"
)

// Piece is one domain of a decomposed mesh. Owned zones come first in the
// zone list, ghost zones (if requested) follow them.
type Piece struct {
	Index       int
	GlobalZones []int // local zone -> global zone
	GlobalNodes []int // local node -> global node
	NOwned      int
	Mesh        *container.UcdMesh
}

// Decompose splits the zones of m into ndomains contiguous blocks. With
// ghosts set, each piece also carries one layer of neighbouring zones that
// share a vertex with an owned zone.
func Decompose(m *Mesh, ndomains int, ghosts bool) ([]*Piece, error) {
	if ndomains < 1 {
		return nil, fmt.Errorf("domain count must be positive, got %d", ndomains)
	}
	if ndomains > m.NumZones() {
		return nil, fmt.Errorf("cannot split %d zones into %d domains", m.NumZones(), ndomains)
	}
	var (
		pm        = utils.NewPartitionMap(ndomains, m.NumZones())
		vertZones = make([][]int, m.NumVertices())
		pieces    = make([]*Piece, ndomains)
	)
	if ghosts {
		for z, zone := range m.Zones {
			for _, v := range zone {
				vertZones[v] = append(vertZones[v], z)
			}
		}
	}
	for d := 0; d < ndomains; d++ {
		kMin, kMax := pm.GetBucketRange(d)
		p := &Piece{Index: d, NOwned: kMax - kMin}
		for z := kMin; z < kMax; z++ {
			p.GlobalZones = append(p.GlobalZones, z)
		}
		if ghosts {
			ghostSet := make(map[int]bool)
			for z := kMin; z < kMax; z++ {
				for _, v := range m.Zones[z] {
					for _, nz := range vertZones[v] {
						if !pm.Owns(d, nz) {
							ghostSet[nz] = true
						}
					}
				}
			}
			ghostList := make([]int, 0, len(ghostSet))
			for z := range ghostSet {
				ghostList = append(ghostList, z)
			}
			sort.Ints(ghostList)
			p.GlobalZones = append(p.GlobalZones, ghostList...)
		}
		p.Mesh = m.extract(p.GlobalZones, p.NOwned, &p.GlobalNodes)
		pieces[d] = p
	}
	return pieces, nil
}

// extract builds a local unstructured mesh from the listed global zones
func (m *Mesh) extract(zones []int, nOwned int, globalNodes *[]int) *container.UcdMesh {
	var (
		local    = make(map[int]int)
		used     []int
		locZones = make([][]int, len(zones))
	)
	for _, z := range zones {
		for _, v := range m.Zones[z] {
			if _, ok := local[v]; !ok {
				local[v] = 0
				used = append(used, v)
			}
		}
	}
	sort.Ints(used)
	for i, v := range used {
		local[v] = i
	}
	for i, z := range zones {
		locZones[i] = make([]int, len(m.Zones[z]))
		for j, v := range m.Zones[z] {
			locZones[i][j] = local[v]
		}
	}
	um := &container.UcdMesh{
		NDims:    m.NDims,
		NNodes:   len(used),
		NZones:   len(zones),
		ZoneList: packZones(m.NDims, locZones),
	}
	um.ZoneList.MinIndex, um.ZoneList.MaxIndex = 0, nOwned-1
	for d := 0; d < m.NDims; d++ {
		um.Coords[d] = make([]float64, len(used))
		for i, v := range used {
			um.Coords[d][i] = m.Vertices[v][d]
		}
	}
	*globalNodes = used
	return um
}
