// Package container implements the hierarchical mesh container used for both
// the input datasets and every output file of the preprocessing pipeline. A
// container file holds a tree of directories, each carrying named meshes,
// fields, materials, multi-block indirections and plain arrays.
package container

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
	ErrFormat   = errors.New("not a mesh container")
	ErrReadOnly = errors.New("container opened read only")
	ErrClosed   = errors.New("container already closed")
)

const (
	magic         = "MTVC"
	formatVersion = byte(1)
	// Extension used for every container file the pipeline writes
	Extension = ".mtv"
)

// File is an open container. The whole directory tree is held in memory and
// written back on Flush / Close when the file was opened for writing.
type File struct {
	fs       afero.Fs
	path     string
	root     *Dir
	writable bool
	closed   bool
}

// Create makes a new, empty container at path, truncating any existing file.
func Create(fs afero.Fs, path string) (*File, error) {
	f := &File{fs: fs, path: path, root: NewDir("/"), writable: true}
	if err := f.Flush(); err != nil {
		return nil, fmt.Errorf("unable to create container %s: %w", path, err)
	}
	return f, nil
}

// Open reads an existing container for reading only.
func Open(fs afero.Fs, path string) (*File, error) {
	return open(fs, path, false)
}

// OpenWritable reads an existing container and allows modification.
func OpenWritable(fs afero.Fs, path string) (*File, error) {
	return open(fs, path, true)
}

// OpenOrCreate opens path for writing, creating it when it does not exist.
func OpenOrCreate(fs afero.Fs, path string) (*File, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return Create(fs, path)
	}
	return OpenWritable(fs, path)
}

func open(fs afero.Fs, path string, writable bool) (*File, error) {
	fh, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("container %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("unable to open container %s: %w", path, err)
	}
	defer fh.Close()
	root, err := decode(bufio.NewReader(fh))
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", path, err)
	}
	return &File{fs: fs, path: path, root: root, writable: writable}, nil
}

func (f *File) Path() string   { return f.path }
func (f *File) Root() *Dir     { return f.root }
func (f *File) Writable() bool { return f.writable }

// Cd resolves an absolute (or root relative) directory path
func (f *File) Cd(p string) (*Dir, error) {
	d, err := f.root.Cd(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return d, nil
}

// Mkdir creates p (and parents) below the root
func (f *File) Mkdir(p string) *Dir {
	return f.root.Mkdir(p)
}

// Flush writes the in-memory tree back to the file system.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	var buf bytes.Buffer
	if err := encode(&buf, f.root); err != nil {
		return fmt.Errorf("unable to encode container %s: %w", f.path, err)
	}
	if err := afero.WriteFile(f.fs, f.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("unable to write container %s: %w", f.path, err)
	}
	return nil
}

// Close flushes writable files and releases the tree
func (f *File) Close() (err error) {
	if f.closed {
		return ErrClosed
	}
	if f.writable {
		err = f.Flush()
	}
	f.closed = true
	f.root = nil
	return
}

func encode(w io.Writer, root *Dir) (err error) {
	if _, err = w.Write(append([]byte(magic), formatVersion)); err != nil {
		return
	}
	var enc *zstd.Encoder
	if enc, err = zstd.NewWriter(w); err != nil {
		return
	}
	if err = gob.NewEncoder(enc).Encode(root); err != nil {
		enc.Close()
		return
	}
	return enc.Close()
}

func decode(r io.Reader) (root *Dir, err error) {
	header := make([]byte, len(magic)+1)
	if _, err = io.ReadFull(r, header); err != nil {
		return nil, ErrFormat
	}
	if string(header[:len(magic)]) != magic {
		return nil, ErrFormat
	}
	if header[len(magic)] != formatVersion {
		return nil, fmt.Errorf("format version %d: %w", header[len(magic)], ErrFormat)
	}
	var dec *zstd.Decoder
	if dec, err = zstd.NewReader(r); err != nil {
		return
	}
	defer dec.Close()
	root = &Dir{}
	if err = gob.NewDecoder(dec).Decode(root); err != nil {
		return nil, fmt.Errorf("corrupt container: %w", err)
	}
	return
}
