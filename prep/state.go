package prep

import (
	"sort"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/intervaltree"
	"github.com/notargets/meshtvprep/repository"
	"github.com/notargets/meshtvprep/resample"
	"github.com/notargets/meshtvprep/types"
	"github.com/notargets/meshtvprep/utils"
)

type meshState struct {
	name    string
	nd      int
	kinds   []container.MeshKind
	hasData []bool
	seen    []bool
	ndims   int
	extents []types.Extent
	nzones  []int
	nnodes  []int
	vars    []string
	mats    []string
	low     *resample.Resampler
	med     *resample.Resampler
}

// eligible reports whether domain d can be resampled
func (ms *meshState) eligible(d int) bool {
	return ms.hasData[d] && d < len(ms.kinds) && ms.kinds[d] != container.PointMeshKind
}

type varState struct {
	name      string
	mesh      string
	nd        int
	hasData   []bool
	seen      []bool
	centering types.Centering
	length    []int
}

type matState struct {
	name    string
	mesh    string
	nd      int
	hasData []bool
	seen    []bool
	length  []int
}

type domainKey struct {
	kind   types.EntityKind
	entity string
	domain int
}

// stateData is everything derived for one state. It is built by
// ReadRootFiles, completed by ConsolidateObjects and only read by the
// workers afterwards.
type stateData struct {
	rc      RunContext
	time    float64
	cycle   int
	meshes  map[string]*meshState
	vars    map[string]*varState
	mats    map[string]*matState
	parts   map[int]*utils.PartitionMap // domain count -> worker split
	trees   map[treeKey]*intervaltree.Tree
	results map[domainKey]*domainResult
}

func newStateData(rc RunContext) *stateData {
	return &stateData{
		rc:      rc,
		meshes:  make(map[string]*meshState),
		vars:    make(map[string]*varState),
		mats:    make(map[string]*matState),
		parts:   make(map[int]*utils.PartitionMap),
		trees:   make(map[treeKey]*intervaltree.Tree),
		results: make(map[domainKey]*domainResult),
	}
}

func hasData(ent *repository.Entity) []bool {
	hd := make([]bool, ent.NumDomains())
	for d := range hd {
		hd[d] = ent.HasData(d)
	}
	return hd
}

func (st *stateData) numDomains(kind types.EntityKind, entity string) (int, bool) {
	switch kind {
	case types.MeshEntity:
		if ms, ok := st.meshes[entity]; ok {
			return ms.nd, true
		}
	case types.VarEntity:
		if vs, ok := st.vars[entity]; ok {
			return vs.nd, true
		}
	case types.MaterialEntity:
		if mt, ok := st.mats[entity]; ok {
			return mt.nd, true
		}
	}
	return 0, false
}

// owns reports whether worker w handles domain d of an entity the run is
// interested in
func (st *stateData) owns(w int, kind types.EntityKind, entity string, d int) bool {
	nd, ok := st.numDomains(kind, entity)
	if !ok {
		return false
	}
	return st.parts[nd].Owns(w, d)
}

// filter is the DomainFilter of worker w
func (st *stateData) filter(w int) DomainFilter {
	return func(kind types.EntityKind, entity string, index int) bool {
		return st.owns(w, kind, entity, index)
	}
}

// ownedDomains lists, per worker, the domains with data of every mesh
func (st *stateData) ownedDomains(workers int) [][]int {
	res := make([][]int, workers)
	for _, ms := range st.meshes {
		pm := st.parts[ms.nd]
		for w := 0; w < workers; w++ {
			kMin, kMax := pm.GetBucketRange(w)
			for d := kMin; d < kMax; d++ {
				if ms.hasData[d] {
					res[w] = append(res[w], d)
				}
			}
		}
	}
	return res
}

// treeKey names the interval tree of a mesh or variable
type treeKey struct {
	kind types.EntityKind
	name string
}

// treeKeys lists the state's trees, meshes first, each kind by name
func (st *stateData) treeKeys() []treeKey {
	keys := make([]treeKey, 0, len(st.trees))
	for k := range st.trees {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].name < keys[j].name
	})
	return keys
}

func (st *stateData) meshNames() []string { return sortedNames(st.meshes) }
func (st *stateData) varNames() []string  { return sortedNames(st.vars) }
func (st *stateData) matNames() []string  { return sortedNames(st.mats) }

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
