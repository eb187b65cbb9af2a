// Package arbiter serialises access to the output container files shared by
// the workers of a run. A file is held by at most one worker at a time; the
// first holder of a path in a run truncates it, later holders reopen it.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/notargets/meshtvprep/container"
)

var (
	ErrNotHolder = errors.New("resource not held by this handle")
	ErrHeld      = errors.New("resource held by another worker")
)

// Kind is the category of an output resource
type Kind uint8

const (
	StateFile Kind = iota
	MeshFile
	RootFile
)

func (k Kind) String() string {
	return [...]string{"state file", "mesh file", "root file"}[k]
}

// Handle is the ownership of one resource, valid until Relinquish
type Handle struct {
	Kind     Kind
	Path     string
	File     *container.File
	res      *resource
	released bool
}

type resource struct {
	sem chan struct{}
}

type Arbiter struct {
	fs      afero.Fs
	roots   map[Kind]int
	mu      sync.Mutex
	res     map[string]*resource
	created map[string]bool
}

// New makes an arbiter writing through fs. roots names the worker
// responsible for creating each kind of resource group.
func New(fs afero.Fs, roots map[Kind]int) *Arbiter {
	r := make(map[Kind]int, len(roots))
	for k, w := range roots {
		r[k] = w
	}
	return &Arbiter{
		fs:      fs,
		roots:   r,
		res:     make(map[string]*resource),
		created: make(map[string]bool),
	}
}

// ElectRoot returns the worker owning the lowest domain index with data, or
// -1 when no worker has any. workerDomains[w] lists the domains of worker w.
func ElectRoot(workerDomains [][]int) int {
	root, lowest := -1, -1
	for w, domains := range workerDomains {
		for _, d := range domains {
			if lowest < 0 || d < lowest {
				root, lowest = w, d
			}
		}
	}
	return root
}

// IsRootForGroup reports whether worker creates the resources of kind
func (a *Arbiter) IsRootForGroup(kind Kind, worker int) bool {
	w, ok := a.roots[kind]
	return ok && w == worker
}

func (a *Arbiter) resource(path string) *resource {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.res[path]
	if !ok {
		r = &resource{sem: make(chan struct{}, 1)}
		a.res[path] = r
	}
	return r
}

// Obtain blocks until path is free, then opens it for writing
func (a *Arbiter) Obtain(ctx context.Context, kind Kind, path string) (*Handle, error) {
	r := a.resource(path)
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s %s: %w", kind, path, ctx.Err())
	}
	return a.open(kind, path, r)
}

// TryObtain is Obtain without waiting
func (a *Arbiter) TryObtain(kind Kind, path string) (*Handle, error) {
	r := a.resource(path)
	select {
	case r.sem <- struct{}{}:
	default:
		return nil, fmt.Errorf("%s %s: %w", kind, path, ErrHeld)
	}
	return a.open(kind, path, r)
}

func (a *Arbiter) open(kind Kind, path string, r *resource) (*Handle, error) {
	a.mu.Lock()
	first := !a.created[path]
	a.mu.Unlock()
	var (
		f   *container.File
		err error
	)
	if first {
		f, err = container.Create(a.fs, path)
	} else {
		f, err = container.OpenWritable(a.fs, path)
	}
	if err != nil {
		<-r.sem
		return nil, fmt.Errorf("unable to open %s %s: %w", kind, path, err)
	}
	if first {
		a.mu.Lock()
		a.created[path] = true
		a.mu.Unlock()
	}
	return &Handle{Kind: kind, Path: path, File: f, res: r}, nil
}

// Relinquish flushes and closes the file and frees the resource
func (a *Arbiter) Relinquish(h *Handle) error {
	if h == nil || h.released {
		return ErrNotHolder
	}
	h.released = true
	err := h.File.Close()
	<-h.res.sem
	if err != nil {
		return fmt.Errorf("closing %s %s: %w", h.Kind, h.Path, err)
	}
	return nil
}

// With holds path for the duration of fn. The resource is released on every
// return path, fn's error taking precedence over the close error.
func (a *Arbiter) With(ctx context.Context, kind Kind, path string, fn func(f *container.File) error) (err error) {
	h, err := a.Obtain(ctx, kind, path)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := a.Relinquish(h); err == nil {
			err = rerr
		}
	}()
	return fn(h.File)
}

// Created lists how many distinct files the run has created so far
func (a *Arbiter) Created() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.created)
}
