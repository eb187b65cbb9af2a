package types

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Extent is an axis aligned bounding box, one (min, max) pair per spatial
// dimension. Unused dimensions are padded with a zero width range.
type Extent struct {
	r3.Box
}

// EmptyExtent has Min at +Inf and Max at -Inf so any Union replaces it.
func EmptyExtent() Extent {
	inf := math.Inf(1)
	return Extent{r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}}
}

func NewExtent(min, max [3]float64) Extent {
	return Extent{r3.Box{
		Min: r3.Vec{X: min[0], Y: min[1], Z: min[2]},
		Max: r3.Vec{X: max[0], Y: max[1], Z: max[2]},
	}}
}

// ExtentFromArray reads the flattened (xmin,xmax,ymin,ymax,zmin,zmax) form
func ExtentFromArray(a []float64) Extent {
	return NewExtent([3]float64{a[0], a[2], a[4]}, [3]float64{a[1], a[3], a[5]})
}

// Array returns the flattened (xmin,xmax,ymin,ymax,zmin,zmax) form
func (e Extent) Array() [6]float64 {
	return [6]float64{e.Min.X, e.Max.X, e.Min.Y, e.Max.Y, e.Min.Z, e.Max.Z}
}

func (e Extent) Lo(d int) float64 { return component(e.Min, d) }
func (e Extent) Hi(d int) float64 { return component(e.Max, d) }

func (e Extent) IsEmpty() bool {
	return e.Min.X > e.Max.X || e.Min.Y > e.Max.Y || e.Min.Z > e.Max.Z
}

func (e Extent) Union(o Extent) Extent {
	return Extent{r3.Box{
		Min: r3.Vec{X: math.Min(e.Min.X, o.Min.X), Y: math.Min(e.Min.Y, o.Min.Y), Z: math.Min(e.Min.Z, o.Min.Z)},
		Max: r3.Vec{X: math.Max(e.Max.X, o.Max.X), Y: math.Max(e.Max.Y, o.Max.Y), Z: math.Max(e.Max.Z, o.Max.Z)},
	}}
}

// Expand grows the extent to include p
func (e Extent) Expand(p r3.Vec) Extent {
	return e.Union(Extent{r3.Box{Min: p, Max: p}})
}

// Contains is inclusive on both ends
func (e Extent) Contains(p r3.Vec) bool {
	return p.X >= e.Min.X && p.X <= e.Max.X &&
		p.Y >= e.Min.Y && p.Y <= e.Max.Y &&
		p.Z >= e.Min.Z && p.Z <= e.Max.Z
}

func (e Extent) Overlaps(o Extent) bool {
	if e.IsEmpty() || o.IsEmpty() {
		return false
	}
	return e.Min.X <= o.Max.X && o.Min.X <= e.Max.X &&
		e.Min.Y <= o.Max.Y && o.Min.Y <= e.Max.Y &&
		e.Min.Z <= o.Max.Z && o.Min.Z <= e.Max.Z
}

// Size is Max-Min per axis, zero for an empty extent
func (e Extent) Size() r3.Vec {
	if e.IsEmpty() {
		return r3.Vec{}
	}
	return r3.Sub(e.Max, e.Min)
}

func (e Extent) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(e.Min, e.Max))
}

func component(v r3.Vec, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Vec builds an r3.Vec from up to three coordinates, padding with zero
func Vec(c ...float64) (v r3.Vec) {
	if len(c) > 0 {
		v.X = c[0]
	}
	if len(c) > 1 {
		v.Y = c[1]
	}
	if len(c) > 2 {
		v.Z = c[2]
	}
	return
}

// Component returns coordinate d of v
func Component(v r3.Vec, d int) float64 { return component(v, d) }
