// Package loadpath holds the ordered list of search roots scanned when a
// module is requested by a bare name.
package loadpath

import (
	"context"
	"path"
	"sync"

	"github.com/jward/embedload/internal/vpath"
)

// Entry is one search root. Virtual roots address the archive; real roots are
// directories on disk handed to the host loader.
type Entry struct {
	Root       string
	Virtual    bool
	Discovered bool
}

// Finder locates archive entries by file name.
type Finder interface {
	FindFirstByName(name string) (string, bool)
}

// Registry is an append-only, ordered sequence of search roots. Earlier
// entries win over later ones.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates a Registry seeded with the fixed roots, in order.
func New(fixed ...Entry) *Registry {
	r := &Registry{}
	for _, e := range fixed {
		r.Append(e)
	}
	return r
}

// Roots builds entries from plain root strings, tagging each as virtual or
// real by its marker.
func Roots(roots ...string) []Entry {
	out := make([]Entry, 0, len(roots))
	for _, root := range roots {
		out = append(out, Entry{Root: normalizeRoot(root), Virtual: vpath.IsVirtual(root)})
	}
	return out
}

func normalizeRoot(root string) string {
	if vpath.IsVirtual(root) {
		return vpath.Canonical(root)
	}
	return root
}

// Append adds e at the end. It returns false if the root is already present.
func (r *Registry) Append(e Entry) bool {
	e.Root = normalizeRoot(e.Root)
	e.Virtual = vpath.IsVirtual(e.Root)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, have := range r.entries {
		if have.Root == e.Root {
			return false
		}
	}
	r.entries = append(r.entries, e)
	return true
}

// Discover appends, for each marker file name, the directory of the first
// archive entry with that name. Markers that are not found are returned.
func (r *Registry) Discover(ctx context.Context, f Finder, markers ...string) ([]string, error) {
	var missing []string
	for _, marker := range markers {
		if err := ctx.Err(); err != nil {
			return missing, err
		}
		id, ok := f.FindFirstByName(marker)
		if !ok {
			missing = append(missing, marker)
			continue
		}
		r.Append(Entry{Root: path.Dir(id), Discovered: true})
	}
	return missing, nil
}

// Entries returns a copy of all entries in scan order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Virtual returns the archive roots in scan order.
func (r *Registry) Virtual() []string {
	return r.filter(true)
}

// Real returns the disk roots in scan order.
func (r *Registry) Real() []string {
	return r.filter(false)
}

func (r *Registry) filter(virtual bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, e := range r.entries {
		if e.Virtual == virtual {
			out = append(out, e.Root)
		}
	}
	return out
}
