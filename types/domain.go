package types

import "fmt"

// Domain identifies one spatial partition of a named mesh at one state.
type Domain struct {
	Mesh  string
	Index int
	Count int
}

func NewDomain(mesh string, index, count int) Domain {
	return Domain{Mesh: mesh, Index: index, Count: count}
}

func (d Domain) String() string {
	return fmt.Sprintf("%s[%d/%d]", d.Mesh, d.Index, d.Count)
}

// Valid reports whether the index lies inside the declared domain count
func (d Domain) Valid() bool {
	return d.Count > 0 && d.Index >= 0 && d.Index < d.Count
}

// EntityKind separates the object families tracked per domain.
type EntityKind uint8

const (
	MeshEntity EntityKind = iota
	VarEntity
	MaterialEntity
)

func (k EntityKind) String() string {
	return [...]string{"mesh", "var", "material"}[k]
}

// Centering of a field relative to its mesh
type Centering uint8

const (
	NodeCentered Centering = iota
	ZoneCentered
)

func (c Centering) String() string {
	return [...]string{"node", "zone"}[c]
}
