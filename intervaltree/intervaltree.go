// Package intervaltree keeps the bounding extents of every domain of an
// entity for one state, and the per state root extents of every entity for
// the whole run. It answers overlap queries by linear scan; the record counts
// involved are the domain and state counts.
package intervaltree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

var (
	ErrDomainCount     = errors.New("extent count does not match the declared domain count")
	ErrDomainRange     = errors.New("domain index outside the declared domain count")
	ErrDuplicateDomain = errors.New("domain extents already added")
	ErrState           = errors.New("interval tree used out of order")
)

// Array and attribute names used by Write
const (
	NDomainsAttr = "ndomains"
	ExtentsArray = "extents"
	RootArray    = "root"
	HasDataArray = "has_data"
	NStatesAttr  = "nstates"
	SeriesArray  = "series"
)

type TreeState uint8

const (
	Empty TreeState = iota
	Accumulating
	RootForState
	Written
)

func (s TreeState) String() string {
	return [...]string{"Empty", "Accumulating", "RootForState", "Written"}[s]
}

// Tree collects one extent per domain of an entity for one state
type Tree struct {
	Entity   string
	NDomains int
	extents  []types.Extent
	added    []bool
	nAdded   int
	root     types.Extent
	state    TreeState
}

func New(entity string, ndomains int) *Tree {
	return &Tree{
		Entity:   entity,
		NDomains: ndomains,
		extents:  make([]types.Extent, ndomains),
		added:    make([]bool, ndomains),
		root:     types.EmptyExtent(),
	}
}

func (t *Tree) State() TreeState { return t.state }

// AddExtents records the extent of one domain. Every domain is added exactly
// once per state.
func (t *Tree) AddExtents(domain int, e types.Extent) error {
	if t.state > Accumulating {
		return fmt.Errorf("%s: add extents in state %s: %w", t.Entity, t.state, ErrState)
	}
	if domain < 0 || domain >= t.NDomains {
		return fmt.Errorf("%s: domain %d of %d: %w", t.Entity, domain, t.NDomains, ErrDomainRange)
	}
	if t.added[domain] {
		return fmt.Errorf("%s: domain %d: %w", t.Entity, domain, ErrDuplicateDomain)
	}
	t.extents[domain] = e
	t.added[domain] = true
	t.nAdded++
	t.state = Accumulating
	return nil
}

// NumAdded is the number of domains seen so far this state
func (t *Tree) NumAdded() int { return t.nAdded }

// WrapUp consolidates the domain extents into the root extent. Empty domains
// still count and are added with an empty extent.
func (t *Tree) WrapUp() error {
	if t.state != Accumulating {
		return fmt.Errorf("%s: wrap up in state %s: %w", t.Entity, t.state, ErrState)
	}
	if t.nAdded != t.NDomains {
		return fmt.Errorf("%s: %d extents for %d domains: %w", t.Entity, t.nAdded, t.NDomains, ErrDomainCount)
	}
	t.root = types.EmptyExtent()
	for _, e := range t.extents {
		t.root = t.root.Union(e)
	}
	t.state = RootForState
	return nil
}

func (t *Tree) Root() types.Extent { return t.root }

// Extent of one domain
func (t *Tree) Extent(domain int) types.Extent { return t.extents[domain] }

// Overlapping returns the domains whose extent overlaps query, in order
func (t *Tree) Overlapping(query types.Extent) (domains []int) {
	for d, e := range t.extents {
		if t.added[d] && e.Overlaps(query) {
			domains = append(domains, d)
		}
	}
	return
}

// Write stores the tree below dir and marks it Written
func (t *Tree) Write(dir *container.Dir) error {
	if t.state != RootForState {
		return fmt.Errorf("%s: write in state %s: %w", t.Entity, t.state, ErrState)
	}
	flat := make([]float64, 0, 6*t.NDomains)
	hasData := make([]int, t.NDomains)
	for d, e := range t.extents {
		a := e.Array()
		flat = append(flat, a[:]...)
		if !e.IsEmpty() {
			hasData[d] = 1
		}
	}
	root := t.root.Array()
	dir.SetAttr(NDomainsAttr, t.NDomains)
	dir.PutFloats(ExtentsArray, flat)
	dir.PutFloats(RootArray, root[:])
	dir.PutInts(HasDataArray, hasData)
	t.state = Written
	return nil
}

// Read loads a tree written with Write, in state RootForState
func Read(entity string, dir *container.Dir) (*Tree, error) {
	nd, err := dir.Attr(NDomainsAttr)
	if err != nil {
		return nil, err
	}
	flat, err := dir.Floats(ExtentsArray)
	if err != nil {
		return nil, err
	}
	if len(flat) != 6*nd {
		return nil, fmt.Errorf("%s: %d extent values for %d domains: %w", entity, len(flat), nd, ErrDomainCount)
	}
	t := New(entity, nd)
	for d := 0; d < nd; d++ {
		if err = t.AddExtents(d, types.ExtentFromArray(flat[6*d:6*d+6])); err != nil {
			return nil, err
		}
	}
	if nd == 0 {
		t.state = Accumulating
	}
	if err = t.WrapUp(); err != nil {
		return nil, err
	}
	return t, nil
}

// RootIndex is the second level index: per entity, the root extent of every
// state.
type RootIndex struct {
	series  map[string]map[int]types.Extent
	nStates int
	done    bool
}

func NewRootIndex() *RootIndex {
	return &RootIndex{series: make(map[string]map[int]types.Extent)}
}

// Add records the state root of an entity
func (ri *RootIndex) Add(entity string, state int, root types.Extent) error {
	if ri.done {
		return fmt.Errorf("add %s state %d after wrap up: %w", entity, state, ErrState)
	}
	if state < 0 {
		return fmt.Errorf("%s: negative state %d", entity, state)
	}
	s, ok := ri.series[entity]
	if !ok {
		s = make(map[int]types.Extent)
		ri.series[entity] = s
	}
	if _, dup := s[state]; dup {
		return fmt.Errorf("%s: state %d root added twice: %w", entity, state, ErrDuplicateDomain)
	}
	s[state] = root
	return nil
}

// AddTree records the root of a wrapped up state tree
func (ri *RootIndex) AddTree(state int, t *Tree) error {
	if t.state < RootForState {
		return fmt.Errorf("%s: tree in state %s: %w", t.Entity, t.state, ErrState)
	}
	return ri.Add(t.Entity, state, t.root)
}

// WrapUp checks every entity has a root for each of numStates states
func (ri *RootIndex) WrapUp(numStates int) error {
	for _, ent := range ri.Entities() {
		s := ri.series[ent]
		for st := 0; st < numStates; st++ {
			if _, ok := s[st]; !ok {
				return fmt.Errorf("%s: no root extent for state %d of %d: %w", ent, st, numStates, ErrDomainCount)
			}
		}
		if len(s) != numStates {
			return fmt.Errorf("%s: %d state roots for %d states: %w", ent, len(s), numStates, ErrDomainCount)
		}
	}
	ri.nStates = numStates
	ri.done = true
	return nil
}

func (ri *RootIndex) NumStates() int { return ri.nStates }

// Entities returns the entity names, sorted
func (ri *RootIndex) Entities() []string {
	names := make([]string, 0, len(ri.series))
	for n := range ri.series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Series returns the state roots of an entity in state order
func (ri *RootIndex) Series(entity string) []types.Extent {
	s := ri.series[entity]
	states := make([]int, 0, len(s))
	for st := range s {
		states = append(states, st)
	}
	sort.Ints(states)
	res := make([]types.Extent, len(states))
	for i, st := range states {
		res[i] = s[st]
	}
	return res
}

// Overlapping returns the states whose root extent of entity overlaps query
func (ri *RootIndex) Overlapping(entity string, query types.Extent) (states []int) {
	for st, e := range ri.Series(entity) {
		if e.Overlaps(query) {
			states = append(states, st)
		}
	}
	return
}

// Write stores one directory per entity holding the flattened series
func (ri *RootIndex) Write(dir *container.Dir) error {
	if !ri.done {
		return fmt.Errorf("root index written before wrap up: %w", ErrState)
	}
	for _, ent := range ri.Entities() {
		ed := dir.Mkdir(ent)
		series := ri.Series(ent)
		flat := make([]float64, 0, 6*len(series))
		for _, e := range series {
			a := e.Array()
			flat = append(flat, a[:]...)
		}
		ed.SetAttr(NStatesAttr, len(series))
		ed.PutFloats(SeriesArray, flat)
	}
	return nil
}

// ReadRootIndex loads an index written with Write
func ReadRootIndex(dir *container.Dir) (*RootIndex, error) {
	ri := NewRootIndex()
	nStates := -1
	for _, ent := range dir.SubdirNames() {
		ed, err := dir.Cd(ent)
		if err != nil {
			return nil, err
		}
		n, err := ed.Attr(NStatesAttr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ent, err)
		}
		flat, err := ed.Floats(SeriesArray)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ent, err)
		}
		if len(flat) != 6*n {
			return nil, fmt.Errorf("%s: %d series values for %d states: %w", ent, len(flat), n, ErrDomainCount)
		}
		for st := 0; st < n; st++ {
			if err = ri.Add(ent, st, types.ExtentFromArray(flat[6*st:6*st+6])); err != nil {
				return nil, err
			}
		}
		if nStates < 0 {
			nStates = n
		}
	}
	if nStates < 0 {
		nStates = 0
	}
	if err := ri.WrapUp(nStates); err != nil {
		return nil, err
	}
	return ri, nil
}
