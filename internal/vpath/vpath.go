// Package vpath canonicalizes module and resource paths for the overlay.
//
// Paths that start with [Marker] live in the virtual archive; everything else
// is an ordinary filesystem path. Virtual paths are always slash separated and
// absolute once canonical (":/lib/util.risor").
package vpath

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Marker is the reserved root that separates archive space from disk space.
const Marker = ":"

// Root is the canonical form of the archive root.
const Root = Marker + "/"

// drivePrefix matches a drive letter left behind by archives built on Windows.
var drivePrefix = regexp.MustCompile(`^/[A-Za-z]:`)

// IsVirtual reports whether p addresses the archive.
func IsVirtual(p string) bool {
	return strings.HasPrefix(p, Marker)
}

// Canonical collapses a virtual path: the marker is stripped, separators are
// unified, "." and ".." segments are resolved and any leading drive letters
// are removed before the marker is put back. Real paths are returned as is.
// Canonical(Canonical(p)) == Canonical(p).
func Canonical(p string) string {
	if !IsVirtual(p) {
		return p
	}
	rest := strings.ReplaceAll(p[len(Marker):], `\`, "/")
	rest = path.Clean("/" + rest)
	for {
		m := drivePrefix.FindString(rest)
		if m == "" {
			break
		}
		rest = path.Clean("/" + rest[len(m):])
	}
	return Marker + rest
}

// Dir returns the directory portion of a canonical identifier.
func Dir(id string) string {
	return path.Dir(filepath.ToSlash(id))
}

// Resolve turns request into an identifier relative to the file caller. A
// virtual request is canonicalized on its own; otherwise request is joined to
// the caller's directory. An empty caller leaves request untouched.
func Resolve(request, caller string) string {
	if IsVirtual(request) {
		return Canonical(request)
	}
	if caller == "" {
		return request
	}
	return Canonical(Dir(caller) + "/" + request)
}

// Join appends rel to a search root.
func Join(root, rel string) string {
	return Canonical(strings.TrimSuffix(root, "/") + "/" + rel)
}

// WithExtension appends ext unless p already carries it. Any other extension
// is kept and ext is appended after it.
func WithExtension(p, ext string) string {
	if ext == "" || path.Ext(p) == ext {
		return p
	}
	return p + ext
}

// ToFS maps a virtual identifier to an fs.FS name.
func ToFS(id string) string {
	rest := strings.TrimPrefix(Canonical(id), Root)
	if rest == "" {
		return "."
	}
	return rest
}

// FromFS maps an fs.FS name back to a virtual identifier.
func FromFS(name string) string {
	if name == "." || name == "" {
		return Root
	}
	return Canonical(Root + name)
}
