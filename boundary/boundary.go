// Package boundary derives the material interface faces of a domain. A face
// is on the boundary of material A when the zone on its other side, found
// through the node to zone adjacency, carries a different material B.
package boundary

import (
	"fmt"
	"sort"

	"github.com/notargets/meshtvprep/container"
	"github.com/notargets/meshtvprep/mesh"
	"github.com/notargets/meshtvprep/onionpeel"
	"github.com/notargets/meshtvprep/types"
)

// Array names used by Write and Read
const (
	MaterialNumbersArray        = "bnd_material_numbers"
	NShapesArray                = "bnd_nshapes"
	ShapeCntArray               = "bnd_shape_cnt"
	ShapeSizeArray              = "bnd_shape_size"
	NOppositeMaterialArray      = "bnd_nopposite"
	OppositeMaterialCntArray    = "bnd_opposite_cnt"
	OppositeMaterialNumberArray = "bnd_opposite_number"
	NodeListArray               = "bnd_nodelist"
)

// List holds the boundary shapes of every material. Shape classes are
// grouped by material then face size, and each class splits its shapes by
// opposite material:
//
//	sum(NShapes) == len(ShapeCnt) == len(ShapeSize) == len(NOppositeMaterial)
//	sum(NOppositeMaterial) == len(OppositeMaterialCnt)
//	ShapeCnt[k] == sum of the OppositeMaterialCnt entries of class k
//
// NodeList holds the face nodes in the same material, class, opposite
// material order.
type List struct {
	MaterialNumbers        []int
	NShapes                []int
	ShapeCnt               []int
	ShapeSize              []int
	NOppositeMaterial      []int
	OppositeMaterialCnt    []int
	OppositeMaterialNumber []int
	NodeList               []int
}

type face struct {
	nodes    []int
	opposite int
}

// Build classifies every face of every owned zone. Neighbours are looked up
// among the zones present in adj, so passing an adjacency built over ghost
// zones as well finds interfaces on the domain edge.
func Build(mat *container.Material, adj *onionpeel.Adjacency, zl types.ZoneList) (*List, error) {
	nz := zl.NumZones()
	if err := mat.Validate(nz); err != nil {
		return nil, err
	}
	zoneMat := make([]int, nz)
	for z := range zoneMat {
		m, err := mat.ZoneMaterial(z)
		if err != nil {
			return nil, err
		}
		zoneMat[z] = m
	}
	var (
		nodeZones = adj.Matrix(nz)
		nnodes    = adj.NumNodes()
		faces     = make(map[int]map[int][]face) // material -> face size -> faces
	)
	err := zl.ForEachZone(func(z int, raw []int) error {
		if !zl.Owned(z) {
			return nil
		}
		nodes := make([]int, len(raw))
		for i, n := range raw {
			if nodes[i] = n - zl.Origin; nodes[i] < 0 || nodes[i] >= nnodes {
				return fmt.Errorf("zone %d node %d: %w", z, n, onionpeel.ErrNodeRange)
			}
		}
		zfaces, err := mesh.Faces(zl.NDims, nodes)
		if err != nil {
			return fmt.Errorf("zone %d: %w", z, err)
		}
		for _, f := range zfaces {
			// a neighbour touches every node of the face
			var (
				neighbour = -1
				hits      = make(map[int]int)
			)
			for _, n := range f {
				nodeZones.DoRowNonZero(n, func(_, zone int, _ float64) {
					if zone != z {
						hits[zone]++
					}
				})
			}
			for zone, h := range hits {
				if h == len(f) && (neighbour < 0 || zone < neighbour) {
					neighbour = zone
				}
			}
			if neighbour < 0 || zoneMat[neighbour] == zoneMat[z] {
				continue
			}
			own := zoneMat[z]
			if faces[own] == nil {
				faces[own] = make(map[int][]face)
			}
			faces[own][len(f)] = append(faces[own][len(f)], face{nodes: f, opposite: zoneMat[neighbour]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assemble(mat.MatNos, faces), nil
}

func assemble(matNos []int, faces map[int]map[int][]face) *List {
	bl := &List{MaterialNumbers: append([]int{}, matNos...)}
	// materials that show up in the zones but not in MatNos still get listed
	var extra []int
	for m := range faces {
		if !contains(bl.MaterialNumbers, m) {
			extra = append(extra, m)
		}
	}
	sort.Ints(extra)
	bl.MaterialNumbers = append(bl.MaterialNumbers, extra...)
	for _, m := range bl.MaterialNumbers {
		bySize := faces[m]
		sizes := sortedKeys(bySize)
		bl.NShapes = append(bl.NShapes, len(sizes))
		for _, size := range sizes {
			class := bySize[size]
			sort.SliceStable(class, func(i, j int) bool { return class[i].opposite < class[j].opposite })
			bl.ShapeCnt = append(bl.ShapeCnt, len(class))
			bl.ShapeSize = append(bl.ShapeSize, size)
			nOpp := 0
			for i, f := range class {
				if i == 0 || f.opposite != class[i-1].opposite {
					bl.OppositeMaterialNumber = append(bl.OppositeMaterialNumber, f.opposite)
					bl.OppositeMaterialCnt = append(bl.OppositeMaterialCnt, 0)
					nOpp++
				}
				bl.OppositeMaterialCnt[len(bl.OppositeMaterialCnt)-1]++
				bl.NodeList = append(bl.NodeList, f.nodes...)
			}
			bl.NOppositeMaterial = append(bl.NOppositeMaterial, nOpp)
		}
	}
	return bl
}

// NumShapes is the total boundary face count across materials
func (bl *List) NumShapes() int {
	return types.Sum(bl.ShapeCnt)
}

// Empty is true when no material touches another
func (bl *List) Empty() bool {
	return bl.NumShapes() == 0
}

// Validate checks the array invariants
func (bl *List) Validate() error {
	if len(bl.NShapes) != len(bl.MaterialNumbers) {
		return fmt.Errorf("boundary list has %d materials but %d shape counts",
			len(bl.MaterialNumbers), len(bl.NShapes))
	}
	nClass := types.Sum(bl.NShapes)
	if len(bl.ShapeCnt) != nClass || len(bl.ShapeSize) != nClass || len(bl.NOppositeMaterial) != nClass {
		return fmt.Errorf("boundary list declares %d shape classes, arrays hold %d/%d/%d",
			nClass, len(bl.ShapeCnt), len(bl.ShapeSize), len(bl.NOppositeMaterial))
	}
	nOpp := types.Sum(bl.NOppositeMaterial)
	if len(bl.OppositeMaterialCnt) != nOpp || len(bl.OppositeMaterialNumber) != nOpp {
		return fmt.Errorf("boundary list declares %d opposite materials, arrays hold %d/%d",
			nOpp, len(bl.OppositeMaterialCnt), len(bl.OppositeMaterialNumber))
	}
	var (
		cursor, nodes int
	)
	for k, n := range bl.NOppositeMaterial {
		if sum := types.Sum(bl.OppositeMaterialCnt[cursor : cursor+n]); sum != bl.ShapeCnt[k] {
			return fmt.Errorf("boundary shape class %d has %d shapes, opposite materials account for %d",
				k, bl.ShapeCnt[k], sum)
		}
		cursor += n
		nodes += bl.ShapeCnt[k] * bl.ShapeSize[k]
	}
	if nodes != len(bl.NodeList) {
		return fmt.Errorf("boundary node list has %d entries, shapes imply %d", len(bl.NodeList), nodes)
	}
	return nil
}

// Opposite returns, for material m, how many boundary faces face each other
// material.
func (bl *List) Opposite(m int) map[int]int {
	res := make(map[int]int)
	var class, cOpp int
	for i, mn := range bl.MaterialNumbers {
		for s := 0; s < bl.NShapes[i]; s++ {
			for o := 0; o < bl.NOppositeMaterial[class]; o++ {
				if mn == m {
					res[bl.OppositeMaterialNumber[cOpp]] += bl.OppositeMaterialCnt[cOpp]
				}
				cOpp++
			}
			class++
		}
	}
	return res
}

func (bl *List) Write(dir *container.Dir) {
	dir.PutInts(MaterialNumbersArray, bl.MaterialNumbers)
	dir.PutInts(NShapesArray, bl.NShapes)
	dir.PutInts(ShapeCntArray, bl.ShapeCnt)
	dir.PutInts(ShapeSizeArray, bl.ShapeSize)
	dir.PutInts(NOppositeMaterialArray, bl.NOppositeMaterial)
	dir.PutInts(OppositeMaterialCntArray, bl.OppositeMaterialCnt)
	dir.PutInts(OppositeMaterialNumberArray, bl.OppositeMaterialNumber)
	dir.PutInts(NodeListArray, bl.NodeList)
}

// Read loads a list stored with Write and validates it
func Read(dir *container.Dir) (*List, error) {
	var (
		bl  = &List{}
		err error
	)
	for _, a := range []struct {
		name string
		dst  *[]int
	}{
		{MaterialNumbersArray, &bl.MaterialNumbers},
		{NShapesArray, &bl.NShapes},
		{ShapeCntArray, &bl.ShapeCnt},
		{ShapeSizeArray, &bl.ShapeSize},
		{NOppositeMaterialArray, &bl.NOppositeMaterial},
		{OppositeMaterialCntArray, &bl.OppositeMaterialCnt},
		{OppositeMaterialNumberArray, &bl.OppositeMaterialNumber},
		{NodeListArray, &bl.NodeList},
	} {
		if *a.dst, err = dir.Ints(a.name); err != nil {
			return nil, err
		}
	}
	if err = bl.Validate(); err != nil {
		return nil, err
	}
	return bl, nil
}

func contains(vals []int, v int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[int][]face) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
