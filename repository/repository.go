// Package repository registers the logical meshes, variables and materials
// of one input state and the physical location of each of their domains.
// Container files are opened lazily and kept open until Close.
package repository

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
)

var ErrUnknownEntity = errors.New("unknown entity")

// Entity is one logical object of the state with the per domain locations of
// its pieces. Empty domains have a zero ObjectPath.
type Entity struct {
	Kind      types.EntityKind
	Name      string
	Domains   []container.ObjectPath
	MeshKinds []container.MeshKind
	Time      float64
	Cycle     int
}

func (e *Entity) NumDomains() int { return len(e.Domains) }

// HasData reports whether domain i carries an object
func (e *Entity) HasData(i int) bool {
	return i >= 0 && i < len(e.Domains) && e.Domains[i].Name != ""
}

type domainRef struct {
	kind   types.EntityKind
	entity string
	index  int
}

type Repository struct {
	fs       afero.Fs
	rootFile string
	baseDir  string
	entities [3]map[string]*Entity
	byPath   map[string]domainRef
	files    map[string]*container.File
	meshes   map[string]any
}

// New prepares a repository for the state whose root file is rootFile.
// Nothing is read until ReadRoot.
func New(fs afero.Fs, rootFile string) *Repository {
	r := &Repository{
		fs:       fs,
		rootFile: rootFile,
		baseDir:  filepath.Dir(rootFile),
		byPath:   make(map[string]domainRef),
		files:    make(map[string]*container.File),
		meshes:   make(map[string]any),
	}
	for k := range r.entities {
		r.entities[k] = make(map[string]*Entity)
	}
	return r
}

func (r *Repository) RootFile() string { return r.rootFile }

// ReadRoot scans the root file and registers every logical entity. Multi
// objects register one domain per entry, objects stored directly in the root
// directory register as single domain entities.
func (r *Repository) ReadRoot() error {
	f, err := r.file(r.rootFile)
	if err != nil {
		return err
	}
	var (
		root = f.Root()
		base = filepath.Base(r.rootFile)
	)
	register := func(kind types.EntityKind, multis map[string]*container.Multi) error {
		for name, mo := range multis {
			ent := &Entity{Kind: kind, Name: name, Time: mo.Time, Cycle: mo.Cycle,
				Domains: make([]container.ObjectPath, len(mo.Names))}
			for i, p := range mo.Names {
				if p == container.EmptyBlock {
					continue
				}
				op, err := container.SplitObjectPath(p)
				if err != nil {
					return fmt.Errorf("%s: multi object %s domain %d: %w", r.rootFile, name, i, err)
				}
				if op.File == "" {
					op.File = base
				}
				ent.Domains[i] = op
			}
			if kind == types.MeshEntity {
				ent.MeshKinds = mo.MeshKinds
			}
			if err := r.add(ent); err != nil {
				return err
			}
		}
		return nil
	}
	if err = register(types.MeshEntity, root.MultiMeshes); err != nil {
		return err
	}
	if err = register(types.VarEntity, root.MultiVars); err != nil {
		return err
	}
	if err = register(types.MaterialEntity, root.MultiMats); err != nil {
		return err
	}
	single := func(kind types.EntityKind, name string, mk container.MeshKind) error {
		ent := &Entity{Kind: kind, Name: name,
			Domains: []container.ObjectPath{{File: base, Dir: "/", Name: name}}}
		if kind == types.MeshEntity {
			ent.MeshKinds = []container.MeshKind{mk}
		}
		return r.add(ent)
	}
	toc := root.Toc()
	for _, n := range toc.UcdMeshes {
		if err = single(types.MeshEntity, n, container.UcdMeshKind); err != nil {
			return err
		}
		r.entities[types.MeshEntity][n].Time = root.UcdMeshes[n].Time
		r.entities[types.MeshEntity][n].Cycle = root.UcdMeshes[n].Cycle
	}
	for _, n := range toc.QuadMeshes {
		if err = single(types.MeshEntity, n, container.QuadMeshKind); err != nil {
			return err
		}
		r.entities[types.MeshEntity][n].Time = root.QuadMeshes[n].Time
		r.entities[types.MeshEntity][n].Cycle = root.QuadMeshes[n].Cycle
	}
	for _, n := range toc.PointMeshes {
		if err = single(types.MeshEntity, n, container.PointMeshKind); err != nil {
			return err
		}
	}
	for _, n := range toc.Vars {
		if err = single(types.VarEntity, n, 0); err != nil {
			return err
		}
	}
	for _, n := range toc.Materials {
		if err = single(types.MaterialEntity, n, 0); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) add(ent *Entity) error {
	if _, dup := r.entities[ent.Kind][ent.Name]; dup {
		return fmt.Errorf("%s: %s %q registered twice: %w", r.rootFile, ent.Kind, ent.Name, container.ErrExists)
	}
	r.entities[ent.Kind][ent.Name] = ent
	for i, op := range ent.Domains {
		if op.Name == "" {
			continue
		}
		r.byPath[r.key(op.File, op.Dir, op.Name)] = domainRef{kind: ent.Kind, entity: ent.Name, index: i}
	}
	return nil
}

// key identifies an object by its file resolved against the root file
// directory, so equally named files in different directories stay apart.
func (r *Repository) key(file, dir, name string) string {
	return r.location(file) + ":" + path.Join(path.Clean("/"+dir), name)
}

func (r *Repository) location(file string) string {
	return filepath.Clean(r.resolve(file))
}

// Entity looks up a registered entity
func (r *Repository) Entity(kind types.EntityKind, name string) (*Entity, error) {
	ent, ok := r.entities[kind][name]
	if !ok {
		return nil, fmt.Errorf("%s %q in %s: %w", kind, name, r.rootFile, ErrUnknownEntity)
	}
	return ent, nil
}

func (r *Repository) NumDomains(kind types.EntityKind, name string) (int, error) {
	ent, err := r.Entity(kind, name)
	if err != nil {
		return 0, err
	}
	return ent.NumDomains(), nil
}

// Entities returns the sorted names of every entity of one kind
func (r *Repository) Entities(kind types.EntityKind) []string {
	names := make([]string, 0, len(r.entities[kind]))
	for n := range r.entities[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DomainOf reports which entity domain lives at file:dir/name
func (r *Repository) DomainOf(file, dir, name string) (kind types.EntityKind, entity string, index int, ok bool) {
	ref, ok := r.byPath[r.key(file, dir, name)]
	return ref.kind, ref.entity, ref.index, ok
}

// ContainsDomain is true iff some registered domain that wanted accepts lives
// in file at or below dir.
func (r *Repository) ContainsDomain(file, dir string, wanted func(kind types.EntityKind, entity string, index int) bool) bool {
	loc := r.location(file)
	for _, byKind := range r.entities {
		for _, ent := range byKind {
			for i, op := range ent.Domains {
				if op.Name == "" || r.location(op.File) != loc || !op.Under(dir) {
					continue
				}
				if wanted == nil || wanted(ent.Kind, ent.Name, i) {
					return true
				}
			}
		}
	}
	return false
}

// MeshOf finds the mesh a variable or material lives on. The Mesh field of
// its first populated domain names either a mesh object in the same
// directory or a registered mesh entity. When the field is empty, names
// nothing registered or the domain cannot be read, the mesh whose first
// populated domain shares the entity's directory is taken.
func (r *Repository) MeshOf(kind types.EntityKind, name string) (string, error) {
	ent, err := r.Entity(kind, name)
	if err != nil {
		return "", err
	}
	for i := range ent.Domains {
		if !ent.HasData(i) {
			continue
		}
		if ref := r.meshRef(kind, name, i); ref != "" {
			if mname, ok := r.meshAt(ent.Domains[i], i, ref); ok {
				return mname, nil
			}
			if mesh, ok := r.entities[types.MeshEntity][ref]; ok && mesh.NumDomains() == ent.NumDomains() {
				return ref, nil
			}
		}
		break
	}
	for _, mname := range r.Entities(types.MeshEntity) {
		mesh := r.entities[types.MeshEntity][mname]
		if mesh.NumDomains() != ent.NumDomains() {
			continue
		}
		for i := range ent.Domains {
			if !ent.HasData(i) || !mesh.HasData(i) {
				continue
			}
			if r.sameDir(ent.Domains[i], mesh.Domains[i]) {
				return mname, nil
			}
			break
		}
	}
	return "", fmt.Errorf("no mesh for %s %q in %s: %w", kind, name, r.rootFile, ErrUnknownEntity)
}

// meshRef reads the mesh name recorded in domain i of a variable or
// material, empty when it has none or cannot be read
func (r *Repository) meshRef(kind types.EntityKind, name string, i int) string {
	dir, obj, ok, err := r.Domain(kind, name, i)
	if err != nil || !ok {
		return ""
	}
	var ref string
	switch kind {
	case types.VarEntity:
		if v, err := dir.Var(obj); err == nil {
			ref = v.Mesh
		}
	case types.MaterialEntity:
		if m, err := dir.Material(obj); err == nil {
			ref = m.Mesh
		}
	}
	if ref == "" {
		return ""
	}
	return path.Base(ref)
}

// meshAt finds the mesh entity whose domain i is the object ref stored next
// to op
func (r *Repository) meshAt(op container.ObjectPath, i int, ref string) (string, bool) {
	for _, mname := range r.Entities(types.MeshEntity) {
		mesh := r.entities[types.MeshEntity][mname]
		if !mesh.HasData(i) {
			continue
		}
		if mop := mesh.Domains[i]; mop.Name == ref && r.sameDir(op, mop) {
			return mname, true
		}
	}
	return "", false
}

func (r *Repository) sameDir(a, b container.ObjectPath) bool {
	return r.location(a.File) == r.location(b.File) && path.Clean(a.Dir) == path.Clean(b.Dir)
}

// DomainFiles lists the distinct files holding domains, as named in the root
// file (relative to its directory), sorted. Names resolving to the same file
// are listed once.
func (r *Repository) DomainFiles() []string {
	set := make(map[string]string) // location -> name
	for _, byKind := range r.entities {
		for _, ent := range byKind {
			for _, op := range ent.Domains {
				if op.Name == "" {
					continue
				}
				loc := r.location(op.File)
				if prev, ok := set[loc]; !ok || op.File < prev {
					set[loc] = op.File
				}
			}
		}
	}
	files := make([]string, 0, len(set))
	for _, f := range set {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func (r *Repository) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(r.baseDir, file)
}

// Open returns the cached open container holding file, a name relative to
// the root file directory or an absolute path
func (r *Repository) Open(file string) (*container.File, error) {
	return r.file(r.resolve(file))
}

func (r *Repository) file(p string) (*container.File, error) {
	if f, ok := r.files[p]; ok {
		return f, nil
	}
	f, err := container.Open(r.fs, p)
	if err != nil {
		return nil, err
	}
	r.files[p] = f
	return f, nil
}

// Dir opens file and descends to dir
func (r *Repository) Dir(file, dir string) (*container.Dir, error) {
	f, err := r.Open(file)
	if err != nil {
		return nil, err
	}
	return f.Cd(dir)
}

// Domain returns the directory and object name holding domain index of an
// entity, or ok false for an empty domain.
func (r *Repository) Domain(kind types.EntityKind, name string, index int) (dir *container.Dir, obj string, ok bool, err error) {
	ent, err := r.Entity(kind, name)
	if err != nil {
		return nil, "", false, err
	}
	if index < 0 || index >= ent.NumDomains() {
		return nil, "", false, fmt.Errorf("%s %q has %d domains, asked for %d", kind, name, ent.NumDomains(), index)
	}
	if !ent.HasData(index) {
		return nil, "", false, nil
	}
	op := ent.Domains[index]
	if dir, err = r.Dir(op.File, op.Dir); err != nil {
		return nil, "", false, err
	}
	return dir, op.Name, true, nil
}

// ReadMeshes caches every mesh object stored in file:dir, keyed by name.
func (r *Repository) ReadMeshes(file, dir string) error {
	d, err := r.Dir(file, dir)
	if err != nil {
		return err
	}
	for n, m := range d.UcdMeshes {
		r.meshes[n] = m
	}
	for n, m := range d.QuadMeshes {
		r.meshes[n] = m
	}
	for n, m := range d.PointMeshes {
		r.meshes[n] = m
	}
	return nil
}

// Mesh returns a cached mesh, one of *container.UcdMesh, *container.QuadMesh
// or *container.PointMesh.
func (r *Repository) Mesh(name string) (any, error) {
	m, ok := r.meshes[name]
	if !ok {
		return nil, fmt.Errorf("mesh %q not read: %w", name, container.ErrNotFound)
	}
	return m, nil
}

func (r *Repository) UcdMesh(name string) (*container.UcdMesh, error) {
	m, err := r.Mesh(name)
	if err != nil {
		return nil, err
	}
	um, ok := m.(*container.UcdMesh)
	if !ok {
		return nil, fmt.Errorf("mesh %q is not unstructured", name)
	}
	return um, nil
}

func (r *Repository) DeleteMeshes() {
	r.meshes = make(map[string]any)
}

// Close closes every container opened for this state
func (r *Repository) Close() (err error) {
	for p, f := range r.files {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(r.files, p)
	}
	r.DeleteMeshes()
	return
}
