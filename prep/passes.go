package prep

import (
	"fmt"

	"github.com/notargets/meshtvprep/boundary"
	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/onionpeel"
	"github.com/notargets/meshtvprep/repository"
	"github.com/notargets/meshtvprep/resample"
	"github.com/notargets/meshtvprep/types"
)

// discovery is what the initial pass learns about one domain
type discovery struct {
	meshKind  container.MeshKind
	ndims     int
	extent    types.Extent
	nzones    int
	nnodes    int
	length    int
	centering types.Centering
}

// domainResult is what the normal pass derives from one domain
type domainResult struct {
	extent types.Extent
	ucd    *container.UcdMesh
	quad   *container.QuadMesh
	point  *container.PointMesh
	zl     *types.ZoneList
	nnodes int
	adj    *onionpeel.Adjacency
	bnds   map[string]*boundary.List // by material
	geom   *resample.Geometry
	v      *container.Var
	mat    *container.Material
}

// worker handles a fixed share of the domains of every entity. All of its
// fields are private to the goroutine running it during a pass.
type worker struct {
	id      int
	repo    *repository.Repository
	initial map[domainKey]*discovery
	results map[domainKey]*domainResult
}

// objects lists every mesh, var and material name of a directory
func objects(dir *container.Dir) []string {
	toc := dir.Toc()
	names := append(toc.Meshes(), toc.Vars...)
	return append(names, toc.Materials...)
}

// owned resolves an object of a visited directory to the domain it is, when
// the worker handles it
func (w *worker) owned(st *stateData, file, dirPath, name string) (domainKey, bool) {
	kind, entity, index, ok := w.repo.DomainOf(file, dirPath, name)
	if !ok || !st.owns(w.id, kind, entity, index) {
		return domainKey{}, false
	}
	return domainKey{kind: kind, entity: entity, domain: index}, true
}

// initialPass discovers the size and extent of every owned domain
func (p *Prep) initialPass(w *worker, st *stateData) error {
	w.initial = make(map[domainKey]*discovery)
	visit := func(file, dirPath string, dir *container.Dir) error {
		for _, name := range objects(dir) {
			key, ok := w.owned(st, file, dirPath, name)
			if !ok {
				continue
			}
			disc := &discovery{}
			switch key.kind {
			case types.MeshEntity:
				mk, isMesh := dir.MeshKindOf(name)
				if !isMesh {
					return consistencyErr("%s:%s/%s is registered as a mesh but is not one", file, dirPath, name)
				}
				disc.meshKind = mk
				switch mk {
				case container.UcdMeshKind:
					um, _ := dir.UcdMesh(name)
					disc.ndims, disc.nzones, disc.nnodes, disc.extent = um.NDims, um.NZones, um.NNodes, um.Extent()
				case container.QuadMeshKind:
					qm, _ := dir.QuadMesh(name)
					disc.ndims, disc.nzones, disc.nnodes, disc.extent = qm.NDims, qm.NZones(), qm.NNodes(), qm.Extent()
				case container.PointMeshKind:
					pm, _ := dir.PointMesh(name)
					disc.ndims, disc.nnodes, disc.extent = pm.NDims, pm.NNodes, pm.Extent()
				}
				p.metrics.Visited("initial")
			case types.VarEntity:
				v, err := dir.Var(name)
				if err != nil {
					return consistencyErr("%s:%s: %w", file, dirPath, err)
				}
				disc.length, disc.centering = v.Len(), v.Centering
			case types.MaterialEntity:
				m, err := dir.Material(name)
				if err != nil {
					return consistencyErr("%s:%s: %w", file, dirPath, err)
				}
				disc.length = len(m.MatList)
			}
			w.initial[key] = disc
		}
		return nil
	}
	for _, file := range w.repo.DomainFiles() {
		if err := IterateDirs(w.repo, file, "/", st.filter(w.id), visit); err != nil {
			return err
		}
	}
	return nil
}

// normalPass builds the derived structures of every owned domain and keeps
// what the output stage transcribes
func (p *Prep) normalPass(w *worker, st *stateData) error {
	w.results = make(map[domainKey]*domainResult)
	visit := func(file, dirPath string, dir *container.Dir) error {
		if err := w.repo.ReadMeshes(file, dirPath); err != nil {
			return ioErr(err)
		}
		defer w.repo.DeleteMeshes()
		for _, name := range objects(dir) {
			key, ok := w.owned(st, file, dirPath, name)
			if !ok {
				continue
			}
			var (
				res *domainResult
				err error
			)
			switch key.kind {
			case types.MeshEntity:
				res, err = p.meshDomain(w, st, key, name)
			case types.VarEntity:
				res, err = p.varDomain(dir, name)
			case types.MaterialEntity:
				res, err = p.matDomain(dir, name)
			}
			if err != nil {
				return fmt.Errorf("%s:%s/%s: %w", file, dirPath, name, err)
			}
			w.results[key] = res
		}
		return nil
	}
	for _, file := range w.repo.DomainFiles() {
		if err := IterateDirs(w.repo, file, "/", st.filter(w.id), visit); err != nil {
			return err
		}
	}
	if p.opts.OnionPeel {
		return p.boundaries(w, st)
	}
	return nil
}

func (p *Prep) meshDomain(w *worker, st *stateData, key domainKey, name string) (*domainResult, error) {
	var (
		ms  = st.meshes[key.entity]
		res = &domainResult{}
	)
	raw, err := w.repo.Mesh(name)
	if err != nil {
		return nil, consistencyErr("%w", err)
	}
	switch m := raw.(type) {
	case *container.UcdMesh:
		if err = m.Validate(); err != nil {
			return nil, consistencyErr("%w", err)
		}
		res.ucd, res.extent, res.nnodes = m, m.Extent(), m.NNodes
		zl := m.ZoneList
		res.zl = &zl
		if ms.low != nil || ms.med != nil {
			if res.geom, err = resample.GeometryFromUcd(m); err != nil {
				return nil, consistencyErr("%w", err)
			}
		}
	case *container.QuadMesh:
		res.quad, res.extent, res.nnodes = m, m.Extent(), m.NNodes()
		zl := m.ZoneList()
		res.zl = &zl
		if ms.low != nil || ms.med != nil {
			if res.geom, err = resample.GeometryFromQuad(m); err != nil {
				return nil, consistencyErr("%w", err)
			}
		}
	case *container.PointMesh:
		res.point, res.extent = m, m.Extent()
	}
	if p.opts.OnionPeel && res.zl != nil {
		if res.adj, err = onionpeel.Build(*res.zl, res.nnodes); err != nil {
			return nil, consistencyErr("%w", err)
		}
	}
	p.metrics.Visited("normal")
	return res, nil
}

func (p *Prep) varDomain(dir *container.Dir, name string) (*domainResult, error) {
	v, err := dir.Var(name)
	if err != nil {
		return nil, consistencyErr("%w", err)
	}
	return &domainResult{v: v, extent: v.Extent()}, nil
}

func (p *Prep) matDomain(dir *container.Dir, name string) (*domainResult, error) {
	m, err := dir.Material(name)
	if err != nil {
		return nil, consistencyErr("%w", err)
	}
	return &domainResult{mat: m}, nil
}

// boundaries classifies the material interfaces of every owned mesh domain
// that has both topology and a material. Ghost zones take part as
// neighbours, so the adjacency used covers every zone.
func (p *Prep) boundaries(w *worker, st *stateData) error {
	for key, res := range w.results {
		if key.kind != types.MaterialEntity {
			continue
		}
		mt := st.mats[key.entity]
		mres, ok := w.results[domainKey{kind: types.MeshEntity, entity: mt.mesh, domain: key.domain}]
		if !ok || mres.zl == nil {
			continue
		}
		zl := *mres.zl
		dom := types.NewDomain(mt.mesh, key.domain, mt.nd)
		full, err := onionpeel.BuildRange(zl, mres.nnodes, 0, zl.NumZones()-1)
		if err != nil {
			return consistencyErr("%s: %w", dom, err)
		}
		bl, err := boundary.Build(res.mat, full, zl)
		if err != nil {
			return consistencyErr("material %s on %s: %w", key.entity, dom, err)
		}
		p.log.Debug("boundary list built", "domain", dom.String(), "material", key.entity,
			"shapes", bl.NumShapes())
		if mres.bnds == nil {
			mres.bnds = make(map[string]*boundary.List)
		}
		mres.bnds[key.entity] = bl
	}
	return nil
}
