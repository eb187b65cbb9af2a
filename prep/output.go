package prep

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/notargets/meshtvprep/arbiter"
	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/intervaltree"
	"github.com/notargets/meshtvprep/resample"
	"github.com/notargets/meshtvprep/types"
)

// Names of the arrays and attributes the output stage writes
const (
	NZonesAttr      = "nzones"
	NNodesAttr      = "nnodes"
	NDimsAttr       = "ndims"
	OriginAttr      = "origin"
	MinIndexAttr    = "min_index"
	MaxIndexAttr    = "max_index"
	ShapeCountArray = "zl_shapecnt"
	ShapeSizeArray  = "zl_shapesize"
	NodeListArray   = "zl_nodelist"
	DimsArray       = "dims"
	BoundaryDirFmt  = "boundary_%s"

	NStatesAttr      = "nstates"
	NGroupsAttr      = "ngroups"
	NDomainsAttr     = "ndomains"
	StateDirFmt      = "state_%04d"
	TopologyDir      = "/topology"
	DomainGroupArray = "domain_group"
	DomainZonesArray = "domain_nzones"
	IntervalTreeDir  = "/intervaltrees"
	LowResSuffix     = "_lowres"
	MedResSuffix     = "_medres"
	TimeArray        = "times"
	CycleArray       = "cycles"
)

// stateIndex is what the master index records about one written state
type stateIndex struct {
	state  int
	time   float64
	cycle  int
	meshes map[string]*container.Multi
	vars   map[string]*container.Multi
	mats   map[string]*container.Multi
	// resampled companions
	meshRes map[string]*container.Multi
	varRes  map[string]*container.Multi
}

func (w *worker) keys(kind types.EntityKind) (keys []domainKey) {
	for key := range w.results {
		if key.kind == kind {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entity != keys[j].entity {
			return keys[i].entity < keys[j].entity
		}
		return keys[i].domain < keys[j].domain
	})
	return
}

// WriteOutMeshFiles writes the time invariant structures of every domain,
// topology, onion peel and boundary lists, into the workers' mesh files.
// Only the first state does this.
func (p *Prep) WriteOutMeshFiles(ctx context.Context, st *stateData) error {
	if st.rc.State != 0 {
		return nil
	}
	for _, name := range st.meshNames() {
		ms := st.meshes[name]
		p.topology[name] = append([]int(nil), ms.nzones...)
		groups := make([]int, ms.nd)
		for d := range groups {
			groups[d] = -1
			if ms.hasData[d] {
				bn, _, _ := st.parts[ms.nd].GetBucket(d)
				groups[d] = p.naming.Group(bn)
			}
		}
		p.groups[name] = groups
	}
	if !p.opts.OnionPeel && !p.opts.FullConversion {
		return nil
	}
	return p.forEachWorker(ctx, func(ctx context.Context, w *worker) error {
		keys := w.keys(types.MeshEntity)
		if len(keys) == 0 {
			return nil
		}
		rc := st.rc.WithWorker(w.id)
		err := p.arb.With(ctx, arbiter.MeshFile, rc.MeshFile(), func(f *container.File) error {
			for _, key := range keys {
				if err := p.writeTopology(f, key, w.results[key]); err != nil {
					return fmt.Errorf("%s domain %d: %w", key.entity, key.domain, err)
				}
			}
			return nil
		})
		if err != nil {
			return resourceErr(err)
		}
		p.metrics.Written("mesh", len(keys))
		return nil
	})
}

func (p *Prep) writeTopology(f *container.File, key domainKey, res *domainResult) error {
	dir := f.Mkdir(p.naming.DomainDir(key.entity, key.domain))
	if p.opts.FullConversion {
		switch {
		case res.ucd != nil:
			zl := res.ucd.ZoneList
			dir.SetAttr(NDimsAttr, res.ucd.NDims)
			dir.SetAttr(NZonesAttr, res.ucd.NZones)
			dir.SetAttr(NNodesAttr, res.ucd.NNodes)
			dir.SetAttr(OriginAttr, zl.Origin)
			dir.SetAttr(MinIndexAttr, zl.MinIndex)
			dir.SetAttr(MaxIndexAttr, zl.MaxIndex)
			dir.PutInts(ShapeCountArray, zl.ShapeCount)
			dir.PutInts(ShapeSizeArray, zl.ShapeSize)
			dir.PutInts(NodeListArray, zl.NodeList)
		case res.quad != nil:
			dims := res.quad.Dims()
			dir.SetAttr(NDimsAttr, res.quad.NDims)
			dir.PutInts(DimsArray, dims[:])
		case res.point != nil:
			dir.SetAttr(NDimsAttr, res.point.NDims)
			dir.SetAttr(NNodesAttr, res.point.NNodes)
		}
	}
	if !p.opts.OnionPeel {
		return nil
	}
	if res.adj != nil {
		res.adj.Write(dir)
	}
	mats := make([]string, 0, len(res.bnds))
	for m := range res.bnds {
		mats = append(mats, m)
	}
	sort.Strings(mats)
	for _, m := range mats {
		if err := res.bnds[m].Validate(); err != nil {
			return err
		}
		res.bnds[m].Write(dir.Mkdir(fmt.Sprintf(BoundaryDirFmt, ValidName(m))))
	}
	return nil
}

// WriteOutStateFiles writes the state's domain objects into the workers'
// state files and the resampled companions into the root worker's, then
// records what was written for the master index.
func (p *Prep) WriteOutStateFiles(ctx context.Context, st *stateData) error {
	err := p.forEachWorker(ctx, func(ctx context.Context, w *worker) error {
		var (
			rc        = st.rc.WithWorker(w.id)
			owned     []domainKey
			resampled []resampledMesh
		)
		if p.opts.FullConversion {
			for _, kind := range []types.EntityKind{types.MeshEntity, types.VarEntity, types.MaterialEntity} {
				owned = append(owned, w.keys(kind)...)
			}
		}
		if p.arb.IsRootForGroup(arbiter.StateFile, w.id) {
			resampled = p.resampled(st)
		}
		if len(owned) == 0 && len(resampled) == 0 {
			return nil
		}
		err := p.arb.With(ctx, arbiter.StateFile, rc.StateFile(), func(f *container.File) error {
			for _, key := range owned {
				if err := p.writeDomain(f, st, key, w.results[key]); err != nil {
					return fmt.Errorf("%s %s domain %d: %w", key.kind, key.entity, key.domain, err)
				}
			}
			for _, r := range resampled {
				if err := r.m.Write(f.Mkdir(r.dir)); err != nil {
					return fmt.Errorf("resampled %s: %w", r.mesh, err)
				}
			}
			return nil
		})
		if err != nil {
			return resourceErr(err)
		}
		p.metrics.Written("domain", len(owned))
		p.metrics.Written("resampled", len(resampled))
		return nil
	})
	if err != nil {
		return err
	}
	p.index = append(p.index, p.recordState(st))
	return nil
}

// resampledMesh is a finished resampled mesh and where it goes
type resampledMesh struct {
	mesh   string
	suffix string
	dir    string
	m      *resample.Mesh
}

// resampled lists the finished resampled meshes of the state, named so they
// can be referenced from the master index
func (p *Prep) resampled(st *stateData) (res []resampledMesh) {
	for _, name := range st.meshNames() {
		ms := st.meshes[name]
		if ms.low != nil && ms.low.Result() != nil {
			res = append(res, resampledMesh{mesh: name, suffix: LowResSuffix, dir: p.naming.LowResDir(name), m: ms.low.Result()})
		}
		if ms.med != nil && ms.med.Result() != nil {
			res = append(res, resampledMesh{mesh: name, suffix: MedResSuffix, dir: p.naming.MedResDir(name), m: ms.med.Result()})
		}
	}
	for _, r := range res {
		r.m.Name = ValidName(r.mesh)
		vars := make(map[string][]float64, len(r.m.Vars))
		for n, v := range r.m.Vars {
			vars[ValidName(n)] = v
		}
		r.m.Vars = vars
	}
	return
}

func (p *Prep) writeDomain(f *container.File, st *stateData, key domainKey, res *domainResult) error {
	switch key.kind {
	case types.MeshEntity:
		dir := f.Mkdir(p.naming.DomainDir(key.entity, key.domain))
		name := ValidName(key.entity)
		switch {
		case res.ucd != nil:
			return dir.PutUcdMesh(name, res.ucd)
		case res.quad != nil:
			return dir.PutQuadMesh(name, res.quad)
		case res.point != nil:
			return dir.PutPointMesh(name, res.point)
		}
	case types.VarEntity:
		mesh := st.vars[key.entity].mesh
		dir := f.Mkdir(p.naming.DomainDir(mesh, key.domain))
		v := *res.v
		v.Mesh = ValidName(mesh)
		return dir.PutVar(ValidName(key.entity), &v)
	case types.MaterialEntity:
		mesh := st.mats[key.entity].mesh
		dir := f.Mkdir(p.naming.DomainDir(mesh, key.domain))
		m := *res.mat
		m.Mesh = ValidName(mesh)
		return dir.PutMaterial(ValidName(key.entity), &m)
	}
	return nil
}

// group is the output group holding domain d of an entity with nd domains
func (p *Prep) group(st *stateData, nd, d int) int {
	bn, _, _ := st.parts[nd].GetBucket(d)
	return p.naming.Group(bn)
}

// recordState builds the master index entries of the state just written
func (p *Prep) recordState(st *stateData) *stateIndex {
	var (
		s  = st.rc.State
		si = &stateIndex{
			state:   s,
			time:    st.time,
			cycle:   st.cycle,
			meshes:  make(map[string]*container.Multi),
			vars:    make(map[string]*container.Multi),
			mats:    make(map[string]*container.Multi),
			meshRes: make(map[string]*container.Multi),
			varRes:  make(map[string]*container.Multi),
		}
		multi = func(nd int, hasData []bool, mesh, name string) *container.Multi {
			mo := &container.Multi{Names: make([]string, nd), Time: st.time, Cycle: st.cycle}
			for d := 0; d < nd; d++ {
				mo.Names[d] = container.EmptyBlock
				if hasData[d] {
					mo.Names[d] = p.naming.Ref(p.naming.StateFile(s, p.group(st, nd, d)),
						p.naming.DomainDir(mesh, d), name)
				}
			}
			return mo
		}
	)
	if p.opts.FullConversion {
		for name, ms := range st.meshes {
			mo := multi(ms.nd, ms.hasData, name, name)
			mo.MeshKinds = append([]container.MeshKind(nil), ms.kinds...)
			si.meshes[ValidName(name)] = mo
		}
		for name, vs := range st.vars {
			si.vars[ValidName(name)] = multi(vs.nd, vs.hasData, vs.mesh, name)
		}
		for name, mt := range st.mats {
			si.mats[ValidName(name)] = multi(mt.nd, mt.hasData, mt.mesh, name)
		}
	}
	rootFile := p.naming.StateFile(s, p.naming.Group(p.root))
	for _, r := range p.resampled(st) {
		si.meshRes[ValidName(r.mesh)+r.suffix] = &container.Multi{
			Names:     []string{p.naming.Ref(rootFile, r.dir, r.mesh)},
			MeshKinds: []container.MeshKind{container.QuadMeshKind},
			Time:      st.time,
			Cycle:     st.cycle,
		}
		for v := range r.m.Vars {
			si.varRes[ValidName(v)+r.suffix] = &container.Multi{
				Names: []string{p.naming.Ref(rootFile, r.dir, v)},
				Time:  st.time,
				Cycle: st.cycle,
			}
		}
	}
	return si
}

// WriteOutTimeInvariantFiles writes the master index once every state is
// done, then mirrors the interval trees into the catalog when asked to.
func (p *Prep) WriteOutTimeInvariantFiles(ctx context.Context) error {
	if p.opts.IntervalTree {
		if err := p.rootIndex.WrapUp(len(p.index)); err != nil {
			return consistencyErr("%w", err)
		}
	}
	err := p.arb.With(ctx, arbiter.RootFile, p.naming.RootFile(), func(f *container.File) error {
		return p.writeIndex(f)
	})
	if err != nil {
		return resourceErr(err)
	}
	p.metrics.Written("index", 1)
	p.log.Info("master index written", "file", p.naming.RootFile(), "states", len(p.index),
		"files", p.arb.Created())
	if p.opts.Catalog != "" && p.opts.IntervalTree {
		if err = p.writeCatalog(ctx); err != nil {
			return err
		}
		p.log.Info("catalog written", "file", p.opts.Catalog)
	}
	return nil
}

func (p *Prep) writeIndex(f *container.File) error {
	var (
		root    = f.Root()
		ngroups = p.opts.Workers
		times   = make([]float64, len(p.index))
		cycles  = make([]int, len(p.index))
	)
	if p.opts.SingleFile {
		ngroups = 1
	}
	root.SetAttr(NStatesAttr, len(p.index))
	root.SetAttr(NGroupsAttr, ngroups)
	for _, si := range p.index {
		times[si.state], cycles[si.state] = si.time, si.cycle
		sd := f.Mkdir(fmt.Sprintf(StateDirFmt, si.state))
		for _, put := range []struct {
			objs map[string]*container.Multi
			fn   func(string, *container.Multi) error
		}{
			{si.meshes, sd.PutMultiMesh},
			{si.vars, sd.PutMultiVar},
			{si.mats, sd.PutMultiMat},
			{si.meshRes, sd.PutMultiMesh},
			{si.varRes, sd.PutMultiVar},
		} {
			for _, name := range sortedNames(put.objs) {
				if err := put.fn(name, put.objs[name]); err != nil {
					return fmt.Errorf("state %d: %w", si.state, err)
				}
			}
		}
	}
	root.PutFloats(TimeArray, times)
	root.PutInts(CycleArray, cycles)
	for _, mesh := range sortedNames(p.groups) {
		td := f.Mkdir(path.Join(TopologyDir, ValidName(mesh)))
		td.SetAttr(NDomainsAttr, len(p.groups[mesh]))
		td.PutInts(DomainGroupArray, p.groups[mesh])
		td.PutInts(DomainZonesArray, p.topology[mesh])
	}
	if !p.opts.IntervalTree {
		return nil
	}
	itd := f.Mkdir(IntervalTreeDir)
	if err := p.rootIndex.Write(itd); err != nil {
		return err
	}
	for s := 0; s < len(p.index); s++ {
		for _, tr := range p.trees[s] {
			if err := tr.Write(itd.Mkdir(tr.Entity).Mkdir(fmt.Sprintf(StateDirFmt, s))); err != nil {
				return fmt.Errorf("%s state %d: %w", tr.Entity, s, err)
			}
		}
	}
	return nil
}

// ReadIntervalTree loads the per state tree of entity from a master index
func ReadIntervalTree(f *container.File, entity string, state int) (*intervaltree.Tree, error) {
	dir, err := f.Cd(path.Join(IntervalTreeDir, entity, fmt.Sprintf(StateDirFmt, state)))
	if err != nil {
		return nil, err
	}
	return intervaltree.Read(entity, dir)
}
