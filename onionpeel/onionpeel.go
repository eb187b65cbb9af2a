// Package onionpeel builds the node to zone adjacency ("onion peel") of an
// unstructured domain: a CSR structure whose row n lists every owned zone
// touching node n.
package onionpeel

import (
	"errors"
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

var (
	ErrShortNodeList = errors.New("zonelist node list shorter than its shapes require")
	ErrNodeRange     = errors.New("zonelist references a node outside the mesh")
)

const (
	OffsetArray = "onionpeel_offset"
	ListArray   = "onionpeel_list"
)

// Adjacency is the CSR node to zone adjacency. Offset has NumNodes()+1
// entries, Offset[0] == 0 and len(List) == Offset[NumNodes()].
type Adjacency struct {
	Offset []int
	List   []int
}

// Build uses the zone list's own owned range
func Build(zl types.ZoneList, nnodes int) (*Adjacency, error) {
	return BuildRange(zl, nnodes, zl.MinIndex, zl.MaxIndex)
}

// BuildRange builds the adjacency restricted to zones with index in
// [minIndex, maxIndex]. Zones outside the range still advance the node list
// cursor but contribute nothing.
func BuildRange(zl types.ZoneList, nnodes, minIndex, maxIndex int) (*Adjacency, error) {
	if nnodes < 0 {
		return nil, fmt.Errorf("negative node count %d", nnodes)
	}
	if err := zl.CheckShapes(); err != nil {
		return nil, err
	}
	if need := zl.ImpliedNodeListLength(); need > len(zl.NodeList) {
		return nil, fmt.Errorf("need %d entries, have %d: %w", need, len(zl.NodeList), ErrShortNodeList)
	}
	if nnodes == 0 || minIndex > maxIndex {
		return &Adjacency{Offset: make([]int, nnodes+1), List: []int{}}, nil
	}

	// Pass 1: count the owned zones touching each node
	counts := make([]int, nnodes)
	err := walk(zl, nnodes, minIndex, maxIndex, func(zone, node int) {
		counts[node]++
	})
	if err != nil {
		return nil, err
	}

	adj := &Adjacency{Offset: types.PrefixSum(counts)}
	adj.List = make([]int, adj.Offset[nnodes])

	// Pass 2: scatter, reusing counts as the per node write cursor
	for n := range counts {
		counts[n] = 0
	}
	err = walk(zl, nnodes, minIndex, maxIndex, func(zone, node int) {
		adj.List[adj.Offset[node]+counts[node]] = zone
		counts[node]++
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// walk visits (zone, node) for every distinct vertex of every zone in range.
// A node repeated within a zone (collapsed shapes) is visited once.
func walk(zl types.ZoneList, nnodes, minIndex, maxIndex int, visit func(zone, node int)) error {
	var (
		zone, cursor int
	)
	for run, count := range zl.ShapeCount {
		size := zl.ShapeSize[run]
		for i := 0; i < count; i++ {
			if cursor+size > len(zl.NodeList) {
				return fmt.Errorf("zone %d at node list offset %d: %w", zone, cursor, ErrShortNodeList)
			}
			if zone >= minIndex && zone <= maxIndex {
				nodes := zl.NodeList[cursor : cursor+size]
				for k, raw := range nodes {
					node := raw - zl.Origin
					if node < 0 || node >= nnodes {
						return fmt.Errorf("zone %d node %d (mesh has %d): %w", zone, raw, nnodes, ErrNodeRange)
					}
					if !repeated(nodes[:k], raw) {
						visit(zone, node)
					}
				}
			}
			cursor += size
			zone++
		}
	}
	return nil
}

func repeated(seen []int, n int) bool {
	for _, s := range seen {
		if s == n {
			return true
		}
	}
	return false
}

func (adj *Adjacency) NumNodes() int {
	return len(adj.Offset) - 1
}

// Zones returns the owned zones touching node n
func (adj *Adjacency) Zones(n int) []int {
	return adj.List[adj.Offset[n]:adj.Offset[n+1]]
}

// Validate checks the CSR well formedness
func (adj *Adjacency) Validate() error {
	if len(adj.Offset) == 0 || adj.Offset[0] != 0 {
		return fmt.Errorf("onion peel offsets must start at zero")
	}
	for n := 1; n < len(adj.Offset); n++ {
		if adj.Offset[n] < adj.Offset[n-1] {
			return fmt.Errorf("onion peel offsets decrease at node %d", n-1)
		}
	}
	if last := adj.Offset[len(adj.Offset)-1]; last != len(adj.List) {
		return fmt.Errorf("onion peel list has %d entries, offsets imply %d", len(adj.List), last)
	}
	return nil
}

// Matrix returns the node by zone incidence matrix sharing the CSR arrays.
func (adj *Adjacency) Matrix(nzones int) *sparse.CSR {
	data := make([]float64, len(adj.List))
	for i := range data {
		data[i] = 1
	}
	return sparse.NewCSR(adj.NumNodes(), nzones, adj.Offset, adj.List, data)
}

// Write stores the adjacency arrays in dir
func (adj *Adjacency) Write(dir *container.Dir) {
	dir.PutInts(OffsetArray, adj.Offset)
	dir.PutInts(ListArray, adj.List)
}

// Read loads an adjacency previously stored with Write
func Read(dir *container.Dir) (*Adjacency, error) {
	offset, err := dir.Ints(OffsetArray)
	if err != nil {
		return nil, err
	}
	list, err := dir.Ints(ListArray)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []int{}
	}
	adj := &Adjacency{Offset: offset, List: list}
	if err = adj.Validate(); err != nil {
		return nil, err
	}
	return adj, nil
}
