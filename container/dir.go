package container

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Dir is one directory of a container file. Every object family has its own
// name space map so the tree encodes without registered interface types.
type Dir struct {
	Name        string
	Dirs        map[string]*Dir
	UcdMeshes   map[string]*UcdMesh
	QuadMeshes  map[string]*QuadMesh
	PointMeshes map[string]*PointMesh
	Vars        map[string]*Var
	Materials   map[string]*Material
	MultiMeshes map[string]*Multi
	MultiVars   map[string]*Multi
	MultiMats   map[string]*Multi
	IntArrays   map[string][]int
	FloatArrays map[string][]float64
	Attrs       map[string]int
}

func NewDir(name string) *Dir {
	return &Dir{Name: name}
}

// TOC lists the contents of one directory, every slice sorted by name
type TOC struct {
	Dirs        []string
	UcdMeshes   []string
	QuadMeshes  []string
	PointMeshes []string
	Vars        []string
	Materials   []string
	MultiMeshes []string
	MultiVars   []string
	MultiMats   []string
	Arrays      []string
}

func (d *Dir) Toc() (toc TOC) {
	toc.Dirs = sortedKeys(d.Dirs)
	toc.UcdMeshes = sortedKeys(d.UcdMeshes)
	toc.QuadMeshes = sortedKeys(d.QuadMeshes)
	toc.PointMeshes = sortedKeys(d.PointMeshes)
	toc.Vars = sortedKeys(d.Vars)
	toc.Materials = sortedKeys(d.Materials)
	toc.MultiMeshes = sortedKeys(d.MultiMeshes)
	toc.MultiVars = sortedKeys(d.MultiVars)
	toc.MultiMats = sortedKeys(d.MultiMats)
	toc.Arrays = append(sortedKeys(d.IntArrays), sortedKeys(d.FloatArrays)...)
	sort.Strings(toc.Arrays)
	return
}

// Meshes returns every mesh name in the directory regardless of kind
func (toc TOC) Meshes() []string {
	names := append(append(append([]string{}, toc.UcdMeshes...), toc.QuadMeshes...), toc.PointMeshes...)
	sort.Strings(names)
	return names
}

// Empty reports whether the directory holds nothing at all
func (d *Dir) Empty() bool {
	return len(d.Dirs)+len(d.UcdMeshes)+len(d.QuadMeshes)+len(d.PointMeshes)+
		len(d.Vars)+len(d.Materials)+len(d.MultiMeshes)+len(d.MultiVars)+
		len(d.MultiMats)+len(d.IntArrays)+len(d.FloatArrays)+len(d.Attrs) == 0
}

// Cd resolves a slash separated path relative to d. Absolute paths are
// only meaningful on the root directory, callers go through File.Cd for those.
func (d *Dir) Cd(p string) (*Dir, error) {
	cur := d
	for _, part := range splitPath(p) {
		next, ok := cur.Dirs[part]
		if !ok {
			return nil, fmt.Errorf("directory %q in %q: %w", part, p, ErrNotFound)
		}
		cur = next
	}
	return cur, nil
}

// Mkdir creates every missing directory along p and returns the last one
func (d *Dir) Mkdir(p string) *Dir {
	cur := d
	for _, part := range splitPath(p) {
		if cur.Dirs == nil {
			cur.Dirs = make(map[string]*Dir)
		}
		next, ok := cur.Dirs[part]
		if !ok {
			next = NewDir(part)
			cur.Dirs[part] = next
		}
		cur = next
	}
	return cur
}

// SubdirNames returns the child directory names, sorted
func (d *Dir) SubdirNames() []string {
	return sortedKeys(d.Dirs)
}

// MeshKindOf reports which kind of mesh name is, if any
func (d *Dir) MeshKindOf(name string) (MeshKind, bool) {
	if _, ok := d.UcdMeshes[name]; ok {
		return UcdMeshKind, true
	}
	if _, ok := d.QuadMeshes[name]; ok {
		return QuadMeshKind, true
	}
	if _, ok := d.PointMeshes[name]; ok {
		return PointMeshKind, true
	}
	return 0, false
}

func (d *Dir) PutUcdMesh(name string, m *UcdMesh) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.UcdMeshes = putEntry(d.UcdMeshes, name, m)
	return nil
}

func (d *Dir) UcdMesh(name string) (*UcdMesh, error) {
	return getEntry(d.UcdMeshes, "ucd mesh", name)
}

func (d *Dir) PutQuadMesh(name string, m *QuadMesh) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.QuadMeshes = putEntry(d.QuadMeshes, name, m)
	return nil
}

func (d *Dir) QuadMesh(name string) (*QuadMesh, error) {
	return getEntry(d.QuadMeshes, "quad mesh", name)
}

func (d *Dir) PutPointMesh(name string, m *PointMesh) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.PointMeshes = putEntry(d.PointMeshes, name, m)
	return nil
}

func (d *Dir) PointMesh(name string) (*PointMesh, error) {
	return getEntry(d.PointMeshes, "point mesh", name)
}

func (d *Dir) PutVar(name string, v *Var) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.Vars = putEntry(d.Vars, name, v)
	return nil
}

func (d *Dir) Var(name string) (*Var, error) {
	return getEntry(d.Vars, "var", name)
}

func (d *Dir) PutMaterial(name string, m *Material) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.Materials = putEntry(d.Materials, name, m)
	return nil
}

func (d *Dir) Material(name string) (*Material, error) {
	return getEntry(d.Materials, "material", name)
}

func (d *Dir) PutMultiMesh(name string, mo *Multi) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.MultiMeshes = putEntry(d.MultiMeshes, name, mo)
	return nil
}

func (d *Dir) MultiMesh(name string) (*Multi, error) {
	return getEntry(d.MultiMeshes, "multi mesh", name)
}

func (d *Dir) PutMultiVar(name string, mo *Multi) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.MultiVars = putEntry(d.MultiVars, name, mo)
	return nil
}

func (d *Dir) MultiVar(name string) (*Multi, error) {
	return getEntry(d.MultiVars, "multi var", name)
}

func (d *Dir) PutMultiMat(name string, mo *Multi) error {
	if err := d.checkFree(name); err != nil {
		return err
	}
	d.MultiMats = putEntry(d.MultiMats, name, mo)
	return nil
}

func (d *Dir) MultiMat(name string) (*Multi, error) {
	return getEntry(d.MultiMats, "multi material", name)
}

// PutInts stores an integer array, replacing any previous array of that name
func (d *Dir) PutInts(name string, vals []int) {
	d.IntArrays = putEntry(d.IntArrays, name, vals)
}

func (d *Dir) Ints(name string) ([]int, error) {
	return getEntry(d.IntArrays, "int array", name)
}

// PutFloats stores a float array, replacing any previous array of that name
func (d *Dir) PutFloats(name string, vals []float64) {
	d.FloatArrays = putEntry(d.FloatArrays, name, vals)
}

func (d *Dir) Floats(name string) ([]float64, error) {
	return getEntry(d.FloatArrays, "float array", name)
}

func (d *Dir) SetAttr(name string, val int) {
	d.Attrs = putEntry(d.Attrs, name, val)
}

func (d *Dir) Attr(name string) (int, error) {
	return getEntry(d.Attrs, "attribute", name)
}

// checkFree enforces one object per name across the object families that
// share the directory name space.
func (d *Dir) checkFree(name string) error {
	if name == "" || strings.ContainsAny(name, "/:") {
		return fmt.Errorf("invalid object name %q", name)
	}
	_, u := d.UcdMeshes[name]
	_, q := d.QuadMeshes[name]
	_, p := d.PointMeshes[name]
	_, v := d.Vars[name]
	_, m := d.Materials[name]
	_, mm := d.MultiMeshes[name]
	_, mv := d.MultiVars[name]
	_, mt := d.MultiMats[name]
	if u || q || p || v || m || mm || mv || mt {
		return fmt.Errorf("object %q: %w", name, ErrExists)
	}
	return nil
}

func putEntry[T any](m map[string]T, name string, val T) map[string]T {
	if m == nil {
		m = make(map[string]T)
	}
	m[name] = val
	return m
}

func getEntry[T any](m map[string]T, what, name string) (T, error) {
	val, ok := m[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", what, name, ErrNotFound)
	}
	return val, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitPath(p string) (parts []string) {
	p = path.Clean("/" + p)
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return
}
