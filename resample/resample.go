// Package resample regrids a multi-domain mesh and its fields onto a uniform
// grid. Phase one accumulates the extents of every domain, phase two takes
// the domain geometry and field values and WrapUp samples them at the cell
// centres of the grid.
package resample

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

var (
	ErrPhaseOrder = errors.New("resample phase two used before any extents were added")
	ErrResolution = errors.New("resample resolution must be positive")
)

// Array names written next to the resampled mesh
const (
	MaskArray         = "mask"
	SourceDomainArray = "source_domain"
	SourceZoneArray   = "source_zone"
)

func errNode(zone, node, nnodes int) error {
	return fmt.Errorf("zone %d references node %d, domain has %d nodes", zone, node, nnodes)
}

type field struct {
	centering types.Centering
	values    map[int][]float64 // per domain
}

type Resampler struct {
	Name     string
	NDims    int
	res      [3]int
	extent   types.Extent
	nExtents int
	domains  map[int]*Geometry
	fields   map[string]*field
	result   *Mesh
}

// New makes a resampler for one mesh. Axes beyond ndims get a single cell.
func New(mesh string, res [3]int, ndims int) (*Resampler, error) {
	for d := 0; d < ndims; d++ {
		if res[d] < 1 {
			return nil, fmt.Errorf("%s: axis %d resolution %d: %w", mesh, d, res[d], ErrResolution)
		}
	}
	for d := ndims; d < 3; d++ {
		res[d] = 1
	}
	return &Resampler{
		Name:    mesh,
		NDims:   ndims,
		res:     res,
		extent:  types.EmptyExtent(),
		domains: make(map[int]*Geometry),
		fields:  make(map[string]*field),
	}, nil
}

func (r *Resampler) Resolution() [3]int { return r.res }

// AddExtents accumulates the extent of one domain. Empty extents count as a
// call but do not make the object valid.
func (r *Resampler) AddExtents(e types.Extent) {
	r.nExtents++
	if !e.IsEmpty() {
		r.extent = r.extent.Union(e)
	}
}

// ValidObject is true once some domain contributed a non empty extent
func (r *Resampler) ValidObject() bool {
	return r.nExtents > 0 && !r.extent.IsEmpty()
}

func (r *Resampler) Extent() types.Extent { return r.extent }

// AddMesh registers the geometry of one domain
func (r *Resampler) AddMesh(domain int, g *Geometry) error {
	if r.nExtents == 0 {
		return fmt.Errorf("%s: add mesh for domain %d: %w", r.Name, domain, ErrPhaseOrder)
	}
	if _, dup := r.domains[domain]; dup {
		return fmt.Errorf("%s: domain %d geometry added twice", r.Name, domain)
	}
	r.domains[domain] = g
	return nil
}

// AddVar registers the values of a field on one domain. Zone centred values
// are indexed by zone, node centred by node.
func (r *Resampler) AddVar(domain int, name string, centering types.Centering, values []float64) error {
	if r.nExtents == 0 {
		return fmt.Errorf("%s: add var %s for domain %d: %w", r.Name, name, domain, ErrPhaseOrder)
	}
	f, ok := r.fields[name]
	if !ok {
		f = &field{centering: centering, values: make(map[int][]float64)}
		r.fields[name] = f
	}
	if f.centering != centering {
		return fmt.Errorf("%s: var %s is %s centred on domain %d, %s centred elsewhere",
			r.Name, name, centering, domain, f.centering)
	}
	f.values[domain] = values
	return nil
}

// Mesh is a resampled uniform grid. Cell arrays are x fastest.
type Mesh struct {
	Name         string
	NDims        int
	Res          [3]int
	Extent       types.Extent
	Coords       [3][]float64
	Vars         map[string][]float64
	Mask         []int
	SourceDomain []int
	SourceZone   []int // zone index within SourceDomain, -1 when uncovered
}

func (m *Mesh) NumCells() int { return m.Res[0] * m.Res[1] * m.Res[2] }

// CellCenter returns the centre of cell (i, j, k)
func (m *Mesh) CellCenter(i, j, k int) (p [3]float64) {
	idx := [3]int{i, j, k}
	for d := 0; d < 3; d++ {
		lo, hi := m.Extent.Lo(d), m.Extent.Hi(d)
		p[d] = lo + (float64(idx[d])+0.5)*(hi-lo)/float64(m.Res[d])
	}
	return
}

// WrapUp samples every registered domain onto the grid. A cell takes its
// values from the first owned zone, by domain then zone index, whose bounding
// box contains the cell centre.
func (r *Resampler) WrapUp() error {
	if r.nExtents == 0 {
		return fmt.Errorf("%s: wrap up: %w", r.Name, ErrPhaseOrder)
	}
	if !r.ValidObject() {
		return fmt.Errorf("%s: wrap up with only empty extents: %w", r.Name, ErrPhaseOrder)
	}
	m := &Mesh{
		Name:   r.Name,
		NDims:  r.NDims,
		Res:    r.res,
		Extent: r.extent,
		Vars:   make(map[string][]float64),
	}
	for d := 0; d < r.NDims; d++ {
		m.Coords[d] = floats.Span(make([]float64, r.res[d]+1), r.extent.Lo(d), r.extent.Hi(d))
	}
	ncells := m.NumCells()
	m.Mask = make([]int, ncells)
	m.SourceDomain = make([]int, ncells)
	m.SourceZone = make([]int, ncells)
	for c := range m.SourceZone {
		m.SourceDomain[c], m.SourceZone[c] = -1, -1
	}

	domains := make([]int, 0, len(r.domains))
	for d := range r.domains {
		domains = append(domains, d)
	}
	sort.Ints(domains)
	for _, dom := range domains {
		g := r.domains[dom]
		for zi := range g.Zones {
			r.stamp(m, dom, zi, g.ZoneExtent(zi))
		}
	}

	names := make([]string, 0, len(r.fields))
	for n := range r.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		vals, err := r.sample(m, name, r.fields[name])
		if err != nil {
			return err
		}
		m.Vars[name] = vals
	}
	r.result = m
	return nil
}

// stamp claims every unclaimed cell whose centre lies in the zone box
func (r *Resampler) stamp(m *Mesh, dom, zi int, box types.Extent) {
	var lo, hi [3]int
	for d := 0; d < 3; d++ {
		lo[d], hi[d] = r.cellRange(d, box.Lo(d), box.Hi(d))
		if lo[d] > hi[d] {
			return
		}
	}
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				c := i + r.res[0]*(j+r.res[1]*k)
				if m.Mask[c] != 0 {
					continue
				}
				if cc := m.CellCenter(i, j, k); box.Contains(types.Vec(cc[:]...)) {
					m.Mask[c], m.SourceDomain[c], m.SourceZone[c] = 1, dom, zi
				}
			}
		}
	}
}

// cellRange is the inclusive range of cells along axis d whose centres may
// fall in [lo, hi], padded by one cell for round off.
func (r *Resampler) cellRange(d int, lo, hi float64) (int, int) {
	n := r.res[d]
	emin, emax := r.extent.Lo(d), r.extent.Hi(d)
	if emax <= emin {
		return 0, n - 1
	}
	h := (emax - emin) / float64(n)
	first := int(math.Ceil((lo-emin)/h-0.5)) - 1
	last := int(math.Floor((hi-emin)/h-0.5)) + 1
	return max(first, 0), min(last, n-1)
}

func (r *Resampler) sample(m *Mesh, name string, f *field) ([]float64, error) {
	out := make([]float64, m.NumCells())
	for c := range out {
		if m.Mask[c] == 0 {
			continue
		}
		dom, zi := m.SourceDomain[c], m.SourceZone[c]
		vals, ok := f.values[dom]
		if !ok {
			continue
		}
		g := r.domains[dom]
		idx := g.ZoneIDs[zi]
		if f.centering == types.NodeCentered {
			i := c % m.Res[0]
			j := (c / m.Res[0]) % m.Res[1]
			k := c / (m.Res[0] * m.Res[1])
			idx = g.nearestNode(zi, m.CellCenter(i, j, k))
		}
		if idx >= len(vals) {
			return nil, fmt.Errorf("%s: var %s on domain %d has %d values, needs index %d",
				r.Name, name, dom, len(vals), idx)
		}
		out[c] = vals[idx]
	}
	return out, nil
}

// Result is the resampled mesh, nil before WrapUp
func (r *Resampler) Result() *Mesh { return r.result }

// Write stores the resampled mesh as a quad mesh with zone centred vars and
// the coverage arrays.
func (m *Mesh) Write(dir *container.Dir) error {
	qm := &container.QuadMesh{NDims: m.NDims, Coords: m.Coords}
	if err := dir.PutQuadMesh(m.Name, qm); err != nil {
		return err
	}
	names := make([]string, 0, len(m.Vars))
	for n := range m.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		v := &container.Var{Mesh: m.Name, Centering: types.ZoneCentered, Values: [][]float64{m.Vars[n]}}
		if err := dir.PutVar(n, v); err != nil {
			return err
		}
	}
	dir.PutInts(MaskArray, m.Mask)
	dir.PutInts(SourceDomainArray, m.SourceDomain)
	dir.PutInts(SourceZoneArray, m.SourceZone)
	return nil
}
