// Package staging provides the local staging area downloads are written into.
// It is backed by go-billy so tests can run against an in-memory filesystem.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Area is a staging directory. Paths passed to its methods are relative to the root.
// Structural changes (directory and file creation) are serialized so concurrent
// downloads can share one Area.
type Area struct {
	fs billy.Filesystem
	mu sync.Mutex
}

// New creates an Area over an existing go-billy filesystem.
func New(fsys billy.Filesystem) *Area {
	return &Area{fs: fsys}
}

// NewOS creates an Area rooted at the given directory on the OS filesystem.
func NewOS(root string) *Area {
	return New(osfs.New(root))
}

// NewInMemory creates an in-memory Area.
func NewInMemory() *Area {
	return New(memfs.New())
}

// Root returns the absolute root of the area.
func (a *Area) Root() string {
	return a.fs.Root()
}

// Path returns the root-qualified path of a relative name.
func (a *Area) Path(name string) string {
	return filepath.Join(a.fs.Root(), name)
}

// EnsureDir creates dir and any missing parents. Existing directories are not an error.
func (a *Area) EnsureDir(dir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fs.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("staging: mkdirall %q: %w", dir, err)
	}
	return nil
}

// Create creates or truncates name for writing.
//
//nolint:ireturn // billy.File is the go-billy file handle type.
func (a *Area) Create(name string) (billy.File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, fmt.Errorf("staging: create %q: %w", name, err)
	}
	return f, nil
}

// WriteFile replaces the contents of name with data.
func (a *Area) WriteFile(name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := util.WriteFile(a.fs, name, data, filePerm); err != nil {
		return fmt.Errorf("staging: writefile %q: %w", name, err)
	}
	return nil
}

// ReadFile returns the contents of name.
func (a *Area) ReadFile(name string) ([]byte, error) {
	bts, err := util.ReadFile(a.fs, name)
	if err != nil {
		return nil, fmt.Errorf("staging: readfile %q: %w", name, err)
	}
	return bts, nil
}

// Open opens name for reading.
//
//nolint:ireturn // billy.File is the go-billy file handle type.
func (a *Area) Open(name string) (billy.File, error) {
	f, err := a.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("staging: open %q: %w", name, err)
	}
	return f, nil
}

// Remove deletes name.
func (a *Area) Remove(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fs.Remove(name); err != nil {
		return fmt.Errorf("staging: remove %q: %w", name, err)
	}
	return nil
}

// Stat returns file info for name.
func (a *Area) Stat(name string) (os.FileInfo, error) {
	info, err := a.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("staging: stat %q: %w", name, err)
	}
	return info, nil
}

// Exists reports whether name exists.
func (a *Area) Exists(name string) (bool, error) {
	_, err := a.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("staging: stat %q: %w", name, err)
	}
}

// ReadDir lists the entries of dir.
func (a *Area) ReadDir(dir string) ([]os.FileInfo, error) {
	list, err := a.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("staging: readdir %q: %w", dir, err)
	}
	return list, nil
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // exposes the adapter target.
func (a *Area) Raw() billy.Filesystem {
	return a.fs
}
