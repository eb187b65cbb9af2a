package mesh

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// SU2 element type codes, from https://su2code.github.io/docs_v7/Mesh-File/
const (
	su2Line          = 3
	su2Triangle      = 5
	su2Quadrilateral = 9
	su2Tetrahedral   = 10
	su2Hexahedral    = 12
	su2Prism         = 13
	su2Pyramid       = 14
)

func su2NumNodes(su2Type int) int {
	switch su2Type {
	case su2Line:
		return 2
	case su2Triangle:
		return 3
	case su2Quadrilateral, su2Tetrahedral:
		return 4
	case su2Hexahedral:
		return 8
	case su2Prism:
		return 6
	case su2Pyramid:
		return 5
	default:
		return 0
	}
}

// ReadSU2 reads a 2D or 3D SU2 native format file. Zones of lower dimension
// than NDIME are skipped.
func ReadSU2(fs afero.Fs, filename string) (*Mesh, error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var (
		m       *Mesh
		ndime   int
		scanner = bufio.NewScanner(file)
		next    = func() (string, bool) {
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "%") {
					continue
				}
				return line, true
			}
			return "", false
		}
	)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for {
		line, ok := next()
		if !ok {
			break
		}
		switch {
		case strings.HasPrefix(line, "NDIME="):
			if ndime, err = keyword(line, "NDIME="); err != nil {
				return nil, err
			}
			if ndime != 2 && ndime != 3 {
				return nil, fmt.Errorf("%s: unsupported NDIME=%d", filename, ndime)
			}
			m = NewMesh(ndime)

		case strings.HasPrefix(line, "NELEM="):
			if m == nil {
				return nil, fmt.Errorf("%s: NELEM before NDIME", filename)
			}
			nelem, err := keyword(line, "NELEM=")
			if err != nil {
				return nil, err
			}
			for i := 0; i < nelem; i++ {
				eline, ok := next()
				if !ok {
					return nil, fmt.Errorf("%s: expected %d elements, file ended after %d", filename, nelem, i)
				}
				fields := strings.Fields(eline)
				su2Type, err := strconv.Atoi(fields[0])
				if err != nil {
					return nil, fmt.Errorf("%s: element %d: %w", filename, i, err)
				}
				numNodes := su2NumNodes(su2Type)
				if numNodes == 0 {
					return nil, fmt.Errorf("%s: element %d has unknown SU2 type %d", filename, i, su2Type)
				}
				if len(fields) < numNodes+1 {
					return nil, fmt.Errorf("%s: element %d has %d fields, need %d", filename, i, len(fields), numNodes+1)
				}
				if !fillsDimension(ndime, su2Type) {
					continue // boundary element
				}
				verts := make([]int, numNodes)
				for j := range verts {
					if verts[j], err = strconv.Atoi(fields[1+j]); err != nil {
						return nil, fmt.Errorf("%s: element %d: %w", filename, i, err)
					}
				}
				if err = m.AddZone(verts); err != nil {
					return nil, fmt.Errorf("%s: element %d: %w", filename, i, err)
				}
			}

		case strings.HasPrefix(line, "NPOIN="):
			if m == nil {
				return nil, fmt.Errorf("%s: NPOIN before NDIME", filename)
			}
			npoin, err := keyword(line, "NPOIN=")
			if err != nil {
				return nil, err
			}
			m.Vertices = make([][3]float64, npoin)
			for i := 0; i < npoin; i++ {
				pline, ok := next()
				if !ok {
					return nil, fmt.Errorf("%s: expected %d points, file ended after %d", filename, npoin, i)
				}
				fields := strings.Fields(pline)
				if len(fields) < ndime {
					return nil, fmt.Errorf("%s: point %d has %d coordinates", filename, i, len(fields))
				}
				id := i
				if len(fields) > ndime {
					if id, err = strconv.Atoi(fields[len(fields)-1]); err != nil || id < 0 || id >= npoin {
						id = i
					}
				}
				for d := 0; d < ndime; d++ {
					if m.Vertices[id][d], err = strconv.ParseFloat(fields[d], 64); err != nil {
						return nil, fmt.Errorf("%s: point %d: %w", filename, i, err)
					}
				}
			}

		case strings.HasPrefix(line, "NMARK="):
			if m == nil {
				return nil, fmt.Errorf("%s: NMARK before NDIME", filename)
			}
			nmark, err := keyword(line, "NMARK=")
			if err != nil {
				return nil, err
			}
			for i := 0; i < nmark; i++ {
				tline, _ := next()
				if !strings.HasPrefix(tline, "MARKER_TAG=") {
					return nil, fmt.Errorf("%s: expected MARKER_TAG, got %q", filename, tline)
				}
				m.BoundaryTags[i] = strings.TrimSpace(strings.TrimPrefix(tline, "MARKER_TAG="))
				cline, _ := next()
				nelems, err := keyword(cline, "MARKER_ELEMS=")
				if err != nil {
					return nil, err
				}
				for j := 0; j < nelems; j++ {
					next()
				}
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%s: no NDIME found", filename)
	}
	if err = m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return m, nil
}

func fillsDimension(ndime, su2Type int) bool {
	switch su2Type {
	case su2Triangle, su2Quadrilateral:
		return ndime == 2
	case su2Tetrahedral, su2Hexahedral, su2Prism, su2Pyramid:
		return ndime == 3
	}
	return false
}

func keyword(line, key string) (int, error) {
	if !strings.HasPrefix(line, key) {
		return 0, fmt.Errorf("expected %s, got %q", key, line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, key)))
	if err != nil {
		return 0, fmt.Errorf("bad %s line %q: %w", key, line, err)
	}
	return n, nil
}
