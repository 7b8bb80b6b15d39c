// Package resolver decides how each module request is satisfied: by a host
// builtin, a native hook, the embedded archive, or the host's own loader.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jward/embedload/internal/archive"
	"github.com/jward/embedload/internal/loaded"
	"github.com/jward/embedload/internal/loadpath"
	"github.com/jward/embedload/internal/vpath"
)

// DefaultExtension is appended to requests that do not already carry it.
const DefaultExtension = ".risor"

// ErrNotFound is returned when no stage of the chain can satisfy a request.
var ErrNotFound = errors.New("resolver: cannot load")

// Kind is the outcome of a resolution.
type Kind int

const (
	NotFound Kind = iota
	AlreadySatisfied
	ArchiveContent
	NativeHookInvoked
	DelegatedToHost
)

func (k Kind) String() string {
	switch k {
	case AlreadySatisfied:
		return "already_satisfied"
	case ArchiveContent:
		return "archive_content"
	case NativeHookInvoked:
		return "native_hook"
	case DelegatedToHost:
		return "host"
	default:
		return "not_found"
	}
}

// Result describes how a request was satisfied. Content is set only for
// ArchiveContent; the caller evaluates it with ID as provenance.
type Result struct {
	Kind    Kind
	ID      string
	Content []byte
}

// OK reports whether the request was satisfied.
func (r Result) OK() bool {
	return r.Kind != NotFound
}

// Request is a single module request. When Relative is set Path is resolved
// against the directory of Caller.
type Request struct {
	Path     string
	Caller   string
	Relative bool
}

// NativeHook initializes a module that has no source text.
type NativeHook func(ctx context.Context) error

// HostLoader is the loader the overlay falls back to.
type HostLoader interface {
	Load(ctx context.Context, raw string) (bool, error)
}

// HostLoaderFunc adapts a function to HostLoader.
type HostLoaderFunc func(ctx context.Context, raw string) (bool, error)

// Load calls f.
func (f HostLoaderFunc) Load(ctx context.Context, raw string) (bool, error) {
	return f(ctx, raw)
}

// Disk reads real files for the resource fallback.
type Disk interface {
	ReadFile(name string) ([]byte, error)
}

// OSDisk reads from the process filesystem.
type OSDisk struct{}

// ReadFile calls os.ReadFile.
func (OSDisk) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

type entryKind int

const (
	normal entryKind = iota
	blocklisted
	nativeHook
)

type tableEntry struct {
	kind entryKind
	hook NativeHook
	mu   *sync.Mutex
}

// Resolver owns the loaded set, the hook set and the load path. One Resolver
// is one process-lifetime overlay; tests create fresh ones.
type Resolver struct {
	archive archive.Archive
	paths   *loadpath.Registry
	loaded  *loaded.Set
	hooked  *loaded.Set
	table   map[string]tableEntry
	host    HostLoader
	disk    Disk
	ext     string
	logger  *log.Logger

	blocklist []string
	hooks     map[string]NativeHook
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBlocklist marks names as satisfied by the host without loading.
func WithBlocklist(names ...string) Option {
	return func(r *Resolver) {
		r.blocklist = append(r.blocklist, names...)
	}
}

// WithNativeHook maps name to a native initializer.
func WithNativeHook(name string, hook NativeHook) Option {
	return func(r *Resolver) {
		r.hooks[name] = hook
	}
}

// WithHostLoader sets the fallback loader. Without one, unmatched requests
// are NotFound.
func WithHostLoader(h HostLoader) Option {
	return func(r *Resolver) {
		r.host = h
	}
}

// WithLoadPath sets the search roots. The default is the archive root alone.
func WithLoadPath(reg *loadpath.Registry) Option {
	return func(r *Resolver) {
		r.paths = reg
	}
}

// WithDisk replaces the filesystem used by ReadResource.
func WithDisk(d Disk) Option {
	return func(r *Resolver) {
		r.disk = d
	}
}

// WithExtension changes the default source extension.
func WithExtension(ext string) Option {
	return func(r *Resolver) {
		r.ext = ext
	}
}

// WithLogger sets the logger used for resolution decisions.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New builds a Resolver over a. The name table is fixed once New returns.
func New(a archive.Archive, opts ...Option) *Resolver {
	r := &Resolver{
		archive: a,
		loaded:  loaded.New(),
		hooked:  loaded.New(),
		disk:    OSDisk{},
		ext:     DefaultExtension,
		hooks:   make(map[string]NativeHook),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.archive == nil {
		r.archive = emptyArchive{}
	}
	if r.paths == nil {
		r.paths = loadpath.New(loadpath.Roots(vpath.Root)...)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}

	r.table = make(map[string]tableEntry, len(r.blocklist)+len(r.hooks))
	for name, hook := range r.hooks {
		r.table[name] = tableEntry{kind: nativeHook, hook: hook, mu: &sync.Mutex{}}
	}
	// Blocklisted names shadow hooks of the same name.
	for _, name := range r.blocklist {
		r.table[name] = tableEntry{kind: blocklisted}
	}
	r.blocklist, r.hooks = nil, nil
	return r
}

// Loaded returns the set of identifiers already handed out for evaluation.
func (r *Resolver) Loaded() *loaded.Set { return r.loaded }

// LoadPath returns the search roots.
func (r *Resolver) LoadPath() *loadpath.Registry { return r.paths }

// Archive returns the archive the Resolver reads from.
func (r *Resolver) Archive() archive.Archive { return r.archive }

// Extension returns the default source extension.
func (r *Resolver) Extension() string { return r.ext }

// Require resolves a module by name or absolute path.
func (r *Resolver) Require(ctx context.Context, path string) (Result, error) {
	return r.Resolve(ctx, Request{Path: path})
}

// RequireRelative resolves path against the directory of caller.
func (r *Resolver) RequireRelative(ctx context.Context, path, caller string) (Result, error) {
	return r.Resolve(ctx, Request{Path: path, Caller: caller, Relative: true})
}

// Resolve runs the fallback chain for req. The first stage that matches
// decides the result: blocklist, native hook, absolute archive path, the
// virtual search roots in order, then the host loader.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	raw := req.Path
	if req.Relative {
		raw = vpath.Resolve(req.Path, req.Caller)
	}

	switch e := r.table[raw]; e.kind {
	case blocklisted:
		r.logger.Debug("blocklisted", "request", raw)
		return Result{Kind: AlreadySatisfied, ID: raw}, nil
	case nativeHook:
		return r.invokeHook(ctx, raw, e)
	}

	p := vpath.WithExtension(raw, r.ext)

	if vpath.IsVirtual(p) {
		id := vpath.Canonical(p)
		if r.loaded.Contains(id) {
			return r.satisfied(raw, id), nil
		}
		if !r.archive.Exists(id) {
			return r.notFound(raw)
		}
		return r.take(raw, id)
	}

	if !filepath.IsAbs(p) {
		for _, root := range r.paths.Virtual() {
			id := vpath.Join(root, p)
			if r.loaded.Contains(id) {
				return r.satisfied(raw, id), nil
			}
			if r.archive.Exists(id) {
				return r.take(raw, id)
			}
		}
	}

	return r.delegate(ctx, raw)
}

// take reads id from the archive and records it. Only the caller that records
// id receives its content.
func (r *Resolver) take(raw, id string) (Result, error) {
	content, err := r.archive.ReadText(id)
	if err != nil {
		return Result{Kind: NotFound, ID: id}, fmt.Errorf("resolver: %s: %w", raw, err)
	}
	if !r.loaded.RecordIfAbsent(id) {
		return r.satisfied(raw, id), nil
	}
	r.logger.Debug("loaded from archive", "request", raw, "id", id)
	return Result{Kind: ArchiveContent, ID: id, Content: content}, nil
}

// invokeHook runs a native hook at most once. A failing hook is not recorded
// and its error is returned unchanged. Each hook has its own lock, so a hook
// may resolve other hooks; a hook that reaches itself gets an error.
func (r *Resolver) invokeHook(ctx context.Context, name string, e tableEntry) (Result, error) {
	if hookRunning(ctx, name) {
		return Result{Kind: NotFound, ID: name}, fmt.Errorf("resolver: native hook %s requires itself", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if r.hooked.Contains(name) {
		return r.satisfied(name, name), nil
	}
	if err := e.hook(withHook(ctx, name)); err != nil {
		return Result{Kind: NotFound, ID: name}, err
	}
	r.hooked.Record(name)
	r.logger.Debug("native hook invoked", "name", name)
	return Result{Kind: NativeHookInvoked, ID: name}, nil
}

type hookChainKey struct{}

func withHook(ctx context.Context, name string) context.Context {
	chain, _ := ctx.Value(hookChainKey{}).([]string)
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, hookChainKey{}, append(next, name))
}

func hookRunning(ctx context.Context, name string) bool {
	chain, _ := ctx.Value(hookChainKey{}).([]string)
	for _, n := range chain {
		if n == name {
			return true
		}
	}
	return false
}

func (r *Resolver) delegate(ctx context.Context, raw string) (Result, error) {
	if r.host == nil {
		return r.notFound(raw)
	}
	if err := ctx.Err(); err != nil {
		return Result{Kind: NotFound, ID: raw}, err
	}
	ok, err := r.host.Load(ctx, raw)
	if err != nil {
		return Result{Kind: NotFound, ID: raw}, err
	}
	if !ok {
		return r.notFound(raw)
	}
	r.logger.Debug("delegated to host", "request", raw)
	return Result{Kind: DelegatedToHost, ID: raw}, nil
}

func (r *Resolver) satisfied(raw, id string) Result {
	r.logger.Debug("already loaded", "request", raw, "id", id)
	return Result{Kind: AlreadySatisfied, ID: id}
}

func (r *Resolver) notFound(raw string) (Result, error) {
	r.logger.Debug("not found", "request", raw)
	return Result{Kind: NotFound, ID: raw}, fmt.Errorf("%w: %s", ErrNotFound, raw)
}

// HookInvoked reports whether the native hook name has run.
func (r *Resolver) HookInvoked(name string) bool {
	return r.hooked.Contains(name)
}

type emptyArchive struct{}

func (emptyArchive) Exists(string) bool { return false }

func (emptyArchive) ReadText(id string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", archive.ErrNotExist, id)
}

func (emptyArchive) FindFirstByName(string) (string, bool) { return "", false }
