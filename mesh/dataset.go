package mesh

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/types"
	"github.com/notargets/meshtvprep/utils"
)

// Names of the objects written into every synthetic dataset
const (
	DatasetMesh     = "mesh"
	DatasetZoneVar  = "pressure"
	DatasetNodeVar  = "temperature"
	DatasetMaterial = "mat"
)

type DatasetOptions struct {
	Prefix string
	States int
	Files  int // domain files per state, domains are split across them in blocks
}

// WriteContainer writes a time series of multi-domain container datasets
// into dir. Each state gets one root file holding the multi objects and
// Files data files holding the domains, one directory per domain. It returns
// the root file of every state in order.
func WriteContainer(fs afero.Fs, dir string, pieces []*Piece, opts DatasetOptions) (roots []string, err error) {
	if opts.States < 1 {
		opts.States = 1
	}
	if opts.Files < 1 {
		opts.Files = 1
	}
	if opts.Files > len(pieces) {
		opts.Files = len(pieces)
	}
	if err = fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	pm := utils.NewPartitionMap(opts.Files, len(pieces))
	split := midX(pieces)
	for s := 0; s < opts.States; s++ {
		var (
			rootName = fmt.Sprintf("%s_%04d.root%s", opts.Prefix, s, container.Extension)
			mm       = &container.Multi{Time: float64(s), Cycle: 10 * s}
			zv       = &container.Multi{Time: float64(s), Cycle: 10 * s}
			nv       = &container.Multi{Time: float64(s), Cycle: 10 * s}
			mt       = &container.Multi{Time: float64(s), Cycle: 10 * s}
		)
		for f := 0; f < opts.Files; f++ {
			dataName := fmt.Sprintf("%s_%04d_%03d%s", opts.Prefix, s, f, container.Extension)
			out, err := container.Create(fs, filepath.Join(dir, dataName))
			if err != nil {
				return nil, err
			}
			kMin, kMax := pm.GetBucketRange(f)
			for d := kMin; d < kMax; d++ {
				domDir := fmt.Sprintf("/domain_%d", d)
				if err = writePiece(out.Mkdir(domDir), pieces[d], s, split); err != nil {
					out.Close()
					return nil, fmt.Errorf("domain %d of state %d: %w", d, s, err)
				}
				ref := func(name string) string {
					return container.ObjectPath{File: dataName, Dir: domDir, Name: name}.String()
				}
				mm.Names = append(mm.Names, ref(DatasetMesh))
				mm.MeshKinds = append(mm.MeshKinds, container.UcdMeshKind)
				zv.Names = append(zv.Names, ref(DatasetZoneVar))
				nv.Names = append(nv.Names, ref(DatasetNodeVar))
				mt.Names = append(mt.Names, ref(DatasetMaterial))
			}
			if err = out.Close(); err != nil {
				return nil, err
			}
		}
		root, err := container.Create(fs, filepath.Join(dir, rootName))
		if err != nil {
			return nil, err
		}
		rd := root.Root()
		for _, put := range []error{
			rd.PutMultiMesh(DatasetMesh, mm),
			rd.PutMultiVar(DatasetZoneVar, zv),
			rd.PutMultiVar(DatasetNodeVar, nv),
			rd.PutMultiMat(DatasetMaterial, mt),
		} {
			if put != nil {
				root.Close()
				return nil, put
			}
		}
		if err = root.Close(); err != nil {
			return nil, err
		}
		roots = append(roots, filepath.Join(dir, rootName))
	}
	return
}

func writePiece(dir *container.Dir, p *Piece, state int, split float64) error {
	m := *p.Mesh
	m.Time, m.Cycle = float64(state), 10*state
	if err := dir.PutUcdMesh(DatasetMesh, &m); err != nil {
		return err
	}
	var (
		pressure    = make([]float64, m.NZones)
		temperature = make([]float64, m.NNodes)
	)
	for z, c := range zoneCentroids(&m) {
		pressure[z] = c[0] + 2*c[1] + float64(state)
	}
	for n := range temperature {
		c := m.Node(n)
		temperature[n] = 100 + c[0]*c[1] + float64(state)
	}
	if err := dir.PutVar(DatasetZoneVar, &container.Var{
		Mesh: DatasetMesh, Centering: types.ZoneCentered, Values: [][]float64{pressure},
	}); err != nil {
		return err
	}
	if err := dir.PutVar(DatasetNodeVar, &container.Var{
		Mesh: DatasetMesh, Centering: types.NodeCentered, Values: [][]float64{temperature},
	}); err != nil {
		return err
	}
	return dir.PutMaterial(DatasetMaterial, splitMaterial(&m, split))
}

// splitMaterial assigns material 1 left of x = split and material 2 right of
// it. Zones straddling the plane are mixed with volume fractions from their
// x extent.
func splitMaterial(m *container.UcdMesh, split float64) *container.Material {
	mat := &container.Material{
		Mesh:    DatasetMesh,
		MatNos:  []int{1, 2},
		MatList: make([]int, m.NZones),
	}
	_ = m.ZoneList.ForEachZone(func(z int, nodes []int) error {
		lo, hi := m.Node(nodes[0])[0], m.Node(nodes[0])[0]
		for _, n := range nodes[1:] {
			x := m.Node(n)[0]
			lo, hi = min(lo, x), max(hi, x)
		}
		switch {
		case hi <= split:
			mat.MatList[z] = 1
		case lo >= split:
			mat.MatList[z] = 2
		default:
			left := (split - lo) / (hi - lo)
			i := len(mat.MixMat)
			mat.MatList[z] = -(i + 1)
			mat.MixMat = append(mat.MixMat, 1, 2)
			mat.MixVF = append(mat.MixVF, left, 1-left)
			mat.MixNext = append(mat.MixNext, i+2, 0)
			mat.MixZone = append(mat.MixZone, z, z)
		}
		return nil
	})
	return mat
}

func zoneCentroids(m *container.UcdMesh) [][3]float64 {
	cents := make([][3]float64, m.NZones)
	_ = m.ZoneList.ForEachZone(func(z int, nodes []int) error {
		for _, n := range nodes {
			p := m.Node(n)
			for d := 0; d < 3; d++ {
				cents[z][d] += p[d] / float64(len(nodes))
			}
		}
		return nil
	})
	return cents
}

func midX(pieces []*Piece) float64 {
	e := types.EmptyExtent()
	for _, p := range pieces {
		e = e.Union(p.Mesh.Extent())
	}
	return e.Center().X
}
