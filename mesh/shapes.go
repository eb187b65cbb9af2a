package mesh

import "fmt"

// ElementType represents the zone shapes a zone list can carry
type ElementType int

const (
	Line ElementType = iota
	Triangle
	Quad
	Polygon
	Tet
	Pyramid
	Prism
	Hex
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Polygon", "Tet", "Pyramid", "Prism", "Hex"}[e]
}

// ShapeType maps a zone's vertex count to its element type for the given
// spatial dimension.
func ShapeType(ndims, shapeSize int) (ElementType, error) {
	switch ndims {
	case 1:
		if shapeSize == 2 {
			return Line, nil
		}
	case 2:
		switch {
		case shapeSize == 2:
			return Line, nil
		case shapeSize == 3:
			return Triangle, nil
		case shapeSize == 4:
			return Quad, nil
		case shapeSize > 4:
			return Polygon, nil
		}
	case 3:
		switch shapeSize {
		case 4:
			return Tet, nil
		case 5:
			return Pyramid, nil
		case 6:
			return Prism, nil
		case 8:
			return Hex, nil
		}
	}
	return 0, fmt.Errorf("no %dD zone shape has %d vertices", ndims, shapeSize)
}

// Faces returns the face vertex lists of a zone: end points in 1D, edges in
// 2D and the polygonal faces of the standard 3D shapes.
func Faces(ndims int, vertices []int) ([][]int, error) {
	et, err := ShapeType(ndims, len(vertices))
	if err != nil {
		return nil, err
	}
	return ElementFaces(et, vertices), nil
}

// ElementFaces returns the face vertices for each element type
func ElementFaces(elemType ElementType, vertices []int) [][]int {
	switch elemType {
	case Line:
		return [][]int{{vertices[0]}, {vertices[1]}}
	case Triangle, Quad, Polygon:
		n := len(vertices)
		faces := make([][]int, n)
		for i := 0; i < n; i++ {
			faces[i] = []int{vertices[i], vertices[(i+1)%n]}
		}
		return faces
	case Tet:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]}, // Face 0
			{vertices[0], vertices[1], vertices[3]}, // Face 1
			{vertices[1], vertices[2], vertices[3]}, // Face 2
			{vertices[0], vertices[3], vertices[2]}, // Face 3
		}
	case Hex:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (bottom)
			{vertices[4], vertices[5], vertices[6], vertices[7]}, // Face 1 (top)
			{vertices[0], vertices[1], vertices[5], vertices[4]}, // Face 2
			{vertices[1], vertices[2], vertices[6], vertices[5]}, // Face 3
			{vertices[2], vertices[3], vertices[7], vertices[6]}, // Face 4
			{vertices[3], vertices[0], vertices[4], vertices[7]}, // Face 5
		}
	case Prism:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]},              // Face 0 (bottom tri)
			{vertices[3], vertices[4], vertices[5]},              // Face 1 (top tri)
			{vertices[0], vertices[1], vertices[4], vertices[3]}, // Face 2 (quad)
			{vertices[1], vertices[2], vertices[5], vertices[4]}, // Face 3 (quad)
			{vertices[2], vertices[0], vertices[3], vertices[5]}, // Face 4 (quad)
		}
	case Pyramid:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Face 0 (base quad)
			{vertices[0], vertices[1], vertices[4]},              // Face 1 (tri)
			{vertices[1], vertices[2], vertices[4]},              // Face 2 (tri)
			{vertices[2], vertices[3], vertices[4]},              // Face 3 (tri)
			{vertices[3], vertices[0], vertices[4]},              // Face 4 (tri)
		}
	default:
		return [][]int{}
	}
}
