package container

import (
	"fmt"
	"path"
	"strings"
)

// ObjectPath names an object inside a (possibly different) container file,
// written as "file:/dir/name" or "/dir/name" for the file holding the
// reference.
type ObjectPath struct {
	File string
	Dir  string
	Name string
}

// SplitObjectPath parses the textual form of an object path
func SplitObjectPath(p string) (op ObjectPath, err error) {
	if p == "" || p == EmptyBlock {
		return op, fmt.Errorf("empty object path %q", p)
	}
	rest := p
	if i := strings.LastIndex(p, ":"); i >= 0 {
		op.File, rest = p[:i], p[i+1:]
	}
	rest = path.Clean("/" + rest)
	op.Dir, op.Name = path.Split(rest)
	op.Dir = path.Clean(op.Dir)
	if op.Name == "" {
		return op, fmt.Errorf("object path %q has no object name", p)
	}
	return
}

func (op ObjectPath) String() string {
	p := path.Join(op.Dir, op.Name)
	if op.File != "" {
		return op.File + ":" + p
	}
	return p
}

// InFile reports whether the object lives in file, treating an empty file as
// the referencing file itself.
func (op ObjectPath) InFile(file, referencing string) bool {
	if op.File == "" {
		return file == referencing
	}
	return op.File == file
}

// Under reports whether the object directory is dir or nested below it
func (op ObjectPath) Under(dir string) bool {
	dir = path.Clean("/" + dir)
	if dir == "/" {
		return true
	}
	return op.Dir == dir || strings.HasPrefix(op.Dir, dir+"/")
}
