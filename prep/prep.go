// Package prep drives the preprocessing of a multi-domain, multi-state mesh
// dataset: it reads every state through a repository, derives onion peels,
// boundary lists, interval trees and resampled companions per domain, and
// writes mesh files, state files and the master index through the arbiter.
package prep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/meshtvprep/arbiter"
	"github.com/notargets/meshtvprep/catalog"
	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/intervaltree"
	"github.com/notargets/meshtvprep/metrics"
	"github.com/notargets/meshtvprep/repository"
	"github.com/notargets/meshtvprep/resample"
	"github.com/notargets/meshtvprep/types"
	"github.com/notargets/meshtvprep/utils"
)

type Prep struct {
	opts    Options
	log     *slog.Logger
	fs      afero.Fs
	naming  Naming
	metrics *metrics.Metrics
	arb     *arbiter.Arbiter
	root    int // worker elected to create shared files
	workers []*worker
	// persist for the whole run
	rootIndex *intervaltree.RootIndex
	trees     map[int][]*intervaltree.Tree
	index     []*stateIndex
	topology  map[string][]int // mesh -> zones per domain at state 0
	groups    map[string][]int // mesh -> output group per domain, -1 empty
}

func New(opts Options) (*Prep, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Prep{
		opts:    opts,
		log:     opts.Logger,
		fs:      opts.Fs,
		naming:  Naming{Dir: opts.OutDir, Prefix: opts.Prefix, SingleFile: opts.SingleFile},
		metrics: metrics.New(),
		root:    -1,
	}, nil
}

func (p *Prep) Naming() Naming            { return p.naming }
func (p *Prep) Metrics() *metrics.Metrics { return p.metrics }

// Run processes every state in order and writes the master index
func (p *Prep) Run(ctx context.Context) error {
	if err := p.Initialize(); err != nil {
		return err
	}
	numStates := len(p.opts.Inputs)
	for s := 0; s < numStates; s++ {
		rc := RunContext{State: s, NumStates: numStates, Naming: p.naming}
		if err := p.processState(ctx, rc); err != nil {
			return err
		}
	}
	if err := p.WriteOutTimeInvariantFiles(ctx); err != nil {
		return err
	}
	if p.opts.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.opts.MetricsFile); err != nil {
			return resourceErr(err)
		}
	}
	return nil
}

// Initialize prepares the run wide structures
func (p *Prep) Initialize() error {
	if err := p.fs.MkdirAll(p.opts.OutDir, 0o755); err != nil {
		return resourceErr(err)
	}
	p.workers = make([]*worker, p.opts.Workers)
	for w := range p.workers {
		p.workers[w] = &worker{id: w}
	}
	p.rootIndex = intervaltree.NewRootIndex()
	p.trees = make(map[int][]*intervaltree.Tree)
	p.topology = make(map[string][]int)
	p.groups = make(map[string][]int)
	p.log.Info("initialized", "inputs", len(p.opts.Inputs), "workers", p.opts.Workers,
		"out", p.opts.OutDir, "prefix", p.opts.Prefix)
	return nil
}

func (p *Prep) processState(ctx context.Context, rc RunContext) (err error) {
	st, err := p.InitializeState(rc)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.CleanupState(st); err == nil {
			err = cerr
		}
	}()
	stages := []struct {
		name string
		fn   func() error
	}{
		{"read_root", func() error { return p.ReadRootFiles(ctx, st) }},
		{"initial_pass", func() error { return p.MakeInitialPass(ctx, st) }},
		{"consolidate", func() error { return p.ConsolidateObjects(st) }},
		{"normal_pass", func() error { return p.ReadNormalFiles(ctx, st) }},
		{"wrap_up", func() error { return p.WrapUpObjects(st) }},
		{"mesh_files", func() error { return p.WriteOutMeshFiles(ctx, st) }},
		{"state_files", func() error { return p.WriteOutStateFiles(ctx, st) }},
		{"interval_trees", func() error { return p.populateRootIndex(st) }},
	}
	for _, stage := range stages {
		done := p.metrics.Stage(stage.name)
		err = stage.fn()
		done()
		if err != nil {
			return err
		}
	}
	p.metrics.StateDone()
	p.log.Info("state complete", "state", rc.State, "time", st.time, "cycle", st.cycle,
		"meshes", len(st.meshes), "vars", len(st.vars), utils.MemUsage())
	return nil
}

// forEachWorker runs fn for every worker concurrently. The first error
// cancels the others' blocking calls.
func (p *Prep) forEachWorker(ctx context.Context, fn func(ctx context.Context, w *worker) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error { return fn(gctx, w) })
	}
	return g.Wait()
}

// MakeInitialPass has every worker discover the sizes and extents of the
// domains it owns
func (p *Prep) MakeInitialPass(ctx context.Context, st *stateData) error {
	return p.forEachWorker(ctx, func(_ context.Context, w *worker) error {
		return p.initialPass(w, st)
	})
}

// ReadNormalFiles has every worker build the onion peels, boundary lists
// and resample geometry of the domains it owns
func (p *Prep) ReadNormalFiles(ctx context.Context, st *stateData) error {
	return p.forEachWorker(ctx, func(_ context.Context, w *worker) error {
		return p.normalPass(w, st)
	})
}

// InitializeState gives every worker a fresh repository on the state's root
func (p *Prep) InitializeState(rc RunContext) (*stateData, error) {
	input := p.opts.Inputs[rc.State]
	for _, w := range p.workers {
		w.repo = repository.New(p.fs, input)
		w.initial, w.results = nil, nil
	}
	p.log.Debug("state initialized", "state", rc.State, "root", input)
	return newStateData(rc), nil
}

// ReadRootFiles registers the entities of the state and sizes the per
// domain structures
func (p *Prep) ReadRootFiles(ctx context.Context, st *stateData) error {
	err := p.forEachWorker(ctx, func(_ context.Context, w *worker) error {
		if err := w.repo.ReadRoot(); err != nil {
			return ioErr(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	repo := p.workers[0].repo
	for _, name := range repo.Entities(types.MeshEntity) {
		ent, _ := repo.Entity(types.MeshEntity, name)
		nd := ent.NumDomains()
		if len(ent.MeshKinds) != nd {
			return consistencyErr("multi mesh %s has %d domains but %d mesh kinds", name, nd, len(ent.MeshKinds))
		}
		st.meshes[name] = &meshState{
			name:    name,
			nd:      nd,
			kinds:   ent.MeshKinds,
			hasData: hasData(ent),
			seen:    make([]bool, nd),
			extents: make([]types.Extent, nd),
			nzones:  make([]int, nd),
			nnodes:  make([]int, nd),
		}
		if st.time == 0 && st.cycle == 0 {
			st.time, st.cycle = ent.Time, ent.Cycle
		}
	}
	for _, name := range repo.Entities(types.VarEntity) {
		if !p.opts.wantVar(name) {
			p.log.Debug("variable not on the allow list", "var", name)
			continue
		}
		ent, _ := repo.Entity(types.VarEntity, name)
		ms, err := p.meshOf(repo, st, types.VarEntity, name, ent.NumDomains())
		if err != nil {
			return err
		}
		ms.vars = append(ms.vars, name)
		st.vars[name] = &varState{name: name, mesh: ms.name, nd: ent.NumDomains(),
			hasData: hasData(ent), seen: make([]bool, ent.NumDomains()), length: make([]int, ent.NumDomains())}
	}
	for _, name := range repo.Entities(types.MaterialEntity) {
		ent, _ := repo.Entity(types.MaterialEntity, name)
		ms, err := p.meshOf(repo, st, types.MaterialEntity, name, ent.NumDomains())
		if err != nil {
			return err
		}
		ms.mats = append(ms.mats, name)
		st.mats[name] = &matState{name: name, mesh: ms.name, nd: ent.NumDomains(),
			hasData: hasData(ent), seen: make([]bool, ent.NumDomains()), length: make([]int, ent.NumDomains())}
	}
	if err := uniqueNames(st); err != nil {
		return err
	}
	for _, ms := range st.meshes {
		if _, ok := st.parts[ms.nd]; !ok {
			st.parts[ms.nd] = utils.NewPartitionMap(p.opts.Workers, ms.nd)
		}
	}
	if len(st.meshes) == 0 {
		return consistencyErr("%s holds no meshes", repo.RootFile())
	}
	return nil
}

// uniqueNames rejects a variable or material sharing its name with another
// entity: their multi objects sit side by side in the master index.
func uniqueNames(st *stateData) error {
	for _, name := range st.varNames() {
		if _, ok := st.meshes[name]; ok {
			return consistencyErr("%q names both a mesh and a variable", name)
		}
		if _, ok := st.mats[name]; ok {
			return consistencyErr("%q names both a variable and a material", name)
		}
	}
	for _, name := range st.matNames() {
		if _, ok := st.meshes[name]; ok {
			return consistencyErr("%q names both a mesh and a material", name)
		}
	}
	return nil
}

func (p *Prep) meshOf(repo *repository.Repository, st *stateData, kind types.EntityKind, name string, nd int) (*meshState, error) {
	mesh, err := repo.MeshOf(kind, name)
	if err != nil {
		return nil, consistencyErr("%w", err)
	}
	ms := st.meshes[mesh]
	if ms.nd != nd {
		return nil, consistencyErr("%s %s has %d domains, its mesh %s has %d", kind, name, nd, mesh, ms.nd)
	}
	return ms, nil
}

// ConsolidateObjects merges what the workers discovered, checks it adds up
// and creates the structures sized by it
func (p *Prep) ConsolidateObjects(st *stateData) error {
	for _, w := range p.workers {
		for key, disc := range w.initial {
			d := key.domain
			switch key.kind {
			case types.MeshEntity:
				ms := st.meshes[key.entity]
				if disc.meshKind != ms.kinds[d] {
					return consistencyErr("mesh %s domain %d is a %s mesh, multi mesh says %s",
						ms.name, d, disc.meshKind, ms.kinds[d])
				}
				ms.seen[d] = true
				ms.extents[d], ms.nzones[d], ms.nnodes[d] = disc.extent, disc.nzones, disc.nnodes
				ms.ndims = max(ms.ndims, disc.ndims)
			case types.VarEntity:
				vs := st.vars[key.entity]
				if vs.seen[d] && vs.centering != disc.centering {
					return consistencyErr("var %s changes centering at domain %d", vs.name, d)
				}
				vs.seen[d], vs.centering, vs.length[d] = true, disc.centering, disc.length
			case types.MaterialEntity:
				mt := st.mats[key.entity]
				mt.seen[d], mt.length[d] = true, disc.length
			}
		}
	}
	for _, name := range st.meshNames() {
		ms := st.meshes[name]
		for d := 0; d < ms.nd; d++ {
			if ms.hasData[d] && !ms.seen[d] {
				return consistencyErr("%s has no entry reachable from %s", types.NewDomain(name, d, ms.nd), p.workers[0].repo.RootFile())
			}
			if !ms.hasData[d] {
				ms.extents[d] = types.EmptyExtent()
			}
		}
		if zones, ok := p.topology[name]; ok {
			if len(zones) != ms.nd {
				return consistencyErr("mesh %s has %d domains, %d at state 0", name, ms.nd, len(zones))
			}
			for d, nz := range zones {
				if ms.hasData[d] && nz != ms.nzones[d] {
					return consistencyErr("mesh %s domain %d has %d zones, %d at state 0", name, d, ms.nzones[d], nz)
				}
			}
		}
	}
	for _, name := range sortedNames(p.topology) {
		if _, ok := st.meshes[name]; !ok {
			return consistencyErr("mesh %s of state 0 is missing from %s", name, p.workers[0].repo.RootFile())
		}
	}
	for _, name := range st.varNames() {
		vs := st.vars[name]
		ms := st.meshes[vs.mesh]
		for d := 0; d < vs.nd; d++ {
			if !vs.hasData[d] {
				continue
			}
			if !vs.seen[d] {
				return consistencyErr("var %s domain %d has no entry", name, d)
			}
			want := ms.nzones[d]
			if vs.centering == types.NodeCentered {
				want = ms.nnodes[d]
			}
			if ms.kinds[d] == container.PointMeshKind {
				want = ms.nnodes[d]
			}
			if vs.length[d] != want {
				return consistencyErr("var %s domain %d has %d %s centred values, mesh %s has %d",
					name, d, vs.length[d], vs.centering, vs.mesh, want)
			}
		}
	}
	for _, name := range st.matNames() {
		mt := st.mats[name]
		ms := st.meshes[mt.mesh]
		for d := 0; d < mt.nd; d++ {
			if !mt.hasData[d] {
				continue
			}
			if !mt.seen[d] {
				return consistencyErr("material %s domain %d has no entry", name, d)
			}
			if mt.length[d] != ms.nzones[d] {
				return consistencyErr("material %s domain %d covers %d zones, mesh %s has %d",
					name, d, mt.length[d], mt.mesh, ms.nzones[d])
			}
		}
	}
	if p.opts.resampling() {
		if err := p.prepareResample(st); err != nil {
			return err
		}
	}
	if p.opts.IntervalTree {
		for _, name := range st.meshNames() {
			st.trees[treeKey{kind: types.MeshEntity, name: name}] = intervaltree.New(name, st.meshes[name].nd)
		}
		for _, name := range st.varNames() {
			st.trees[treeKey{kind: types.VarEntity, name: name}] = intervaltree.New(name, st.vars[name].nd)
		}
	}
	if p.arb == nil {
		p.root = arbiter.ElectRoot(st.ownedDomains(p.opts.Workers))
		if p.root < 0 {
			return consistencyErr("no domain of %s holds data", p.workers[0].repo.RootFile())
		}
		p.arb = arbiter.New(p.fs, map[arbiter.Kind]int{
			arbiter.StateFile: p.root,
			arbiter.MeshFile:  p.root,
			arbiter.RootFile:  p.root,
		})
		p.log.Debug("root worker elected", "worker", p.root)
	}
	return nil
}

// prepareResample runs the extent phase of every resampler
func (p *Prep) prepareResample(st *stateData) error {
	for _, name := range st.meshNames() {
		ms := st.meshes[name]
		var err error
		if p.opts.LowRes {
			if ms.low, err = resample.New(name, p.opts.LowResSize, max(ms.ndims, 1)); err != nil {
				return consistencyErr("%w", err)
			}
		}
		if p.opts.MedRes {
			if ms.med, err = resample.New(name, p.opts.MedResSize, max(ms.ndims, 1)); err != nil {
				return consistencyErr("%w", err)
			}
		}
		for _, r := range []*resample.Resampler{ms.low, ms.med} {
			if r == nil {
				continue
			}
			for d := 0; d < ms.nd; d++ {
				if ms.eligible(d) {
					r.AddExtents(ms.extents[d])
				}
			}
		}
		if ms.low != nil && !ms.low.ValidObject() {
			p.log.Info("mesh has no domains to resample", "mesh", name)
			ms.low, ms.med = nil, nil
		}
		if ms.med != nil && !ms.med.ValidObject() {
			p.log.Info("mesh has no domains to resample", "mesh", name)
			ms.med = nil
		}
	}
	return nil
}

// WrapUpObjects merges the worker results and finishes the per state
// aggregates
func (p *Prep) WrapUpObjects(st *stateData) error {
	for _, w := range p.workers {
		for key, res := range w.results {
			st.results[key] = res
		}
	}
	for _, name := range st.meshNames() {
		ms := st.meshes[name]
		for _, r := range []*resample.Resampler{ms.low, ms.med} {
			if r == nil {
				continue
			}
			if err := p.resample(st, ms, r); err != nil {
				return err
			}
		}
	}
	for _, tk := range st.treeKeys() {
		tr := st.trees[tk]
		var hd []bool
		if tk.kind == types.MeshEntity {
			hd = st.meshes[tk.name].hasData
		} else {
			hd = st.vars[tk.name].hasData
		}
		for d := 0; d < tr.NDomains; d++ {
			res, ok := st.results[domainKey{kind: tk.kind, entity: tk.name, domain: d}]
			switch {
			case ok:
				if err := tr.AddExtents(d, res.extent); err != nil {
					return consistencyErr("%w", err)
				}
			case !hd[d]:
				if err := tr.AddExtents(d, types.EmptyExtent()); err != nil {
					return consistencyErr("%w", err)
				}
			}
		}
		if err := tr.WrapUp(); err != nil {
			return consistencyErr("%w", err)
		}
	}
	return nil
}

func (p *Prep) resample(st *stateData, ms *meshState, r *resample.Resampler) error {
	for d := 0; d < ms.nd; d++ {
		res, ok := st.results[domainKey{kind: types.MeshEntity, entity: ms.name, domain: d}]
		if !ok || res.geom == nil {
			continue
		}
		if err := r.AddMesh(d, res.geom); err != nil {
			return consistencyErr("%w", err)
		}
		for _, vname := range ms.vars {
			vres, ok := st.results[domainKey{kind: types.VarEntity, entity: vname, domain: d}]
			if !ok || vres.v.NComps() == 0 {
				continue
			}
			if err := r.AddVar(d, vname, vres.v.Centering, vres.v.Values[0]); err != nil {
				return consistencyErr("%w", err)
			}
		}
	}
	if err := r.WrapUp(); err != nil {
		return consistencyErr("%w", err)
	}
	res := r.Resolution()
	p.log.Debug("mesh resampled", "mesh", ms.name, "res", fmt.Sprint(res))
	return nil
}

// populateRootIndex hands the state roots to the run wide index
func (p *Prep) populateRootIndex(st *stateData) error {
	for _, tk := range st.treeKeys() {
		tr := st.trees[tk]
		if err := p.rootIndex.AddTree(st.rc.State, tr); err != nil {
			return consistencyErr("%w", err)
		}
		p.trees[st.rc.State] = append(p.trees[st.rc.State], tr)
	}
	return nil
}

// CleanupState closes the state's inputs and drops its derived structures
func (p *Prep) CleanupState(st *stateData) (err error) {
	for _, w := range p.workers {
		if w.repo != nil {
			if cerr := w.repo.Close(); cerr != nil && err == nil {
				err = ioErr(cerr)
			}
		}
		w.repo, w.initial, w.results = nil, nil, nil
	}
	st.results = nil
	return
}

// writeCatalog mirrors the interval trees into the SQLite catalog
func (p *Prep) writeCatalog(ctx context.Context) error {
	c, err := catalog.Open(ctx, p.opts.Catalog)
	if err != nil {
		return resourceErr(err)
	}
	if err = c.Write(ctx, p.trees, p.rootIndex); err != nil {
		_ = c.Close()
		return resourceErr(err)
	}
	return resourceErr(c.Close())
}
