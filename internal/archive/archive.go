// Package archive provides read-only virtual archives addressed by canonical
// identifiers (":/lib/util.risor").
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/jward/embedload/internal/vpath"
)

// ErrNotExist is returned when an identifier has no entry in the archive.
var ErrNotExist = errors.New("archive: entry does not exist")

// Archive is a read-only content store keyed by canonical identifiers.
type Archive interface {
	Exists(id string) bool
	ReadText(id string) ([]byte, error)
	FindFirstByName(name string) (string, bool)
}

// FS serves an archive from any fs.FS, typically an embed.FS.
type FS struct {
	fsys fs.FS
}

// NewFS wraps fsys. The root of fsys is the archive root ":/".
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// Exists reports whether id names a regular file in the archive.
func (a *FS) Exists(id string) bool {
	if !vpath.IsVirtual(id) {
		return false
	}
	name := vpath.ToFS(id)
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(a.fsys, name)
	return err == nil && !info.IsDir()
}

// ReadText returns the content stored under id.
func (a *FS) ReadText(id string) ([]byte, error) {
	if !a.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, id)
	}
	data, err := fs.ReadFile(a.fsys, vpath.ToFS(id))
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", id, err)
	}
	return data, nil
}

// FindFirstByName returns the lexically smallest identifier whose base name
// is name, so the answer matches the SQLite backend's ORDER BY path.
func (a *FS) FindFirstByName(name string) (string, bool) {
	var found string
	err := fs.WalkDir(a.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Base(p) != name {
			return nil
		}
		if id := vpath.FromFS(p); found == "" || id < found {
			found = id
		}
		return nil
	})
	if err != nil || found == "" {
		return "", false
	}
	return found, true
}

// List returns every file identifier in the archive, in walk order.
func (a *FS) List() ([]string, error) {
	var ids []string
	err := fs.WalkDir(a.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			ids = append(ids, vpath.FromFS(p))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: listing: %w", err)
	}
	return ids, nil
}
