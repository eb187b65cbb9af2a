package prep

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/notargets/meshtvprep/container"
)

// Naming resolves every output file and directory name of a run
type Naming struct {
	Dir        string
	Prefix     string
	SingleFile bool
}

// ValidName replaces every character that cannot appear in a container
// object or directory name.
func ValidName(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}

func (n Naming) join(name string) string {
	return filepath.Join(n.Dir, name)
}

// RootFile is the master index of the run
func (n Naming) RootFile() string {
	return n.join(n.Prefix + ".root" + container.Extension)
}

// MeshFile holds the time invariant topology of one domain group
func (n Naming) MeshFile(group int) string {
	return n.join(fmt.Sprintf("%s_mesh_g%d%s", n.Prefix, group, container.Extension))
}

// StateFile holds the data of one domain group at one state
func (n Naming) StateFile(state, group int) string {
	return n.join(fmt.Sprintf("%s_s%04d_g%d%s", n.Prefix, state, group, container.Extension))
}

// Group is the domain group a worker writes
func (n Naming) Group(worker int) int {
	if n.SingleFile {
		return 0
	}
	return worker
}

// DomainDir is the directory of one domain of an entity inside a mesh or
// state file
func (n Naming) DomainDir(entity string, domain int) string {
	return path.Join("/", ValidName(entity), fmt.Sprintf("domain_%d", domain))
}

func (n Naming) LowResDir(mesh string) string {
	return path.Join("/_lowres", ValidName(mesh))
}

func (n Naming) MedResDir(mesh string) string {
	return path.Join("/_medres", ValidName(mesh))
}

// Ref is the object path of name in dir of file, relative to the master index
func (n Naming) Ref(file, dir, name string) string {
	return container.ObjectPath{File: filepath.Base(file), Dir: dir, Name: ValidName(name)}.String()
}

// RunContext is the read only view of where the run is, handed down every
// call instead of package level state.
type RunContext struct {
	State     int
	NumStates int
	Naming    Naming
	Worker    int
}

func (rc RunContext) WithWorker(w int) RunContext {
	rc.Worker = w
	return rc
}

func (rc RunContext) Group() int { return rc.Naming.Group(rc.Worker) }

func (rc RunContext) StateFile() string { return rc.Naming.StateFile(rc.State, rc.Group()) }

func (rc RunContext) MeshFile() string { return rc.Naming.MeshFile(rc.Group()) }
