package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/embedload/internal/archive"
	"github.com/jward/embedload/internal/loadpath"
	"github.com/jward/embedload/internal/resolver"
	"github.com/jward/embedload/internal/vpath"
)

// Runtime embeds a Risor VM whose import statements go through the overlay
// resolver. Each module is evaluated once per Runtime, in a VM of its own;
// every script run binds the same module values.
type Runtime struct {
	resolver *resolver.Resolver
	modules  *moduleCache
	logger   *log.Logger
	blocked  map[string]bool

	archive   archive.Archive
	paths     *loadpath.Registry
	blocklist []string
	natives   map[string]NativeModule
	ext       string
	disk      resolver.Disk
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLoadPath sets the search roots. Virtual roots are scanned by the
// overlay; real roots are handed to Risor's local importer as the fallback.
func WithLoadPath(reg *loadpath.Registry) RuntimeOption {
	return func(r *Runtime) {
		r.paths = reg
	}
}

// WithBlocklist marks module names as satisfied without loading anything.
func WithBlocklist(names ...string) RuntimeOption {
	return func(r *Runtime) {
		r.blocklist = append(r.blocklist, names...)
	}
}

// WithNativeModule registers a Go-built module under name. The builder runs
// on the first import of name only.
func WithNativeModule(name string, build NativeModule) RuntimeOption {
	return func(r *Runtime) {
		r.natives[name] = build
	}
}

// WithExtension changes the script extension (default ".risor").
func WithExtension(ext string) RuntimeOption {
	return func(r *Runtime) {
		r.ext = ext
	}
}

// WithDisk replaces the filesystem used for resource reads.
func WithDisk(d resolver.Disk) RuntimeOption {
	return func(r *Runtime) {
		r.disk = d
	}
}

// WithLogger routes resolver decisions and the scripts' log object to l.
func WithLogger(l *log.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime reading modules from a.
func NewRuntime(a archive.Archive, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		archive: a,
		modules: newModuleCache(),
		natives: make(map[string]NativeModule),
		ext:     resolver.DefaultExtension,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	r.blocked = make(map[string]bool, len(r.blocklist))
	for _, name := range r.blocklist {
		r.blocked[name] = true
	}

	resOpts := []resolver.Option{
		resolver.WithBlocklist(r.blocklist...),
		resolver.WithHostLoader(resolver.HostLoaderFunc(r.hostLoad)),
		resolver.WithExtension(r.ext),
		resolver.WithLogger(r.logger.WithPrefix("resolver")),
	}
	if r.paths != nil {
		resOpts = append(resOpts, resolver.WithLoadPath(r.paths))
	}
	if r.disk != nil {
		resOpts = append(resOpts, resolver.WithDisk(r.disk))
	}
	for name, build := range r.natives {
		resOpts = append(resOpts, resolver.WithNativeHook(name, r.nativeHook(name, build)))
	}
	r.resolver = resolver.New(a, resOpts...)
	return r
}

// Resolver returns the overlay resolver shared by every script run.
func (r *Runtime) Resolver() *resolver.Resolver {
	return r.resolver
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	_, err := r.EvalScript(ctx, scriptPath, extraGlobals)
	return err
}

// EvalScript is RunScript returning the script's final value.
func (r *Runtime) EvalScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (object.Object, error) {
	src, id, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, id, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	_, err := r.EvalSource(ctx, source, extraGlobals)
	return err
}

// EvalSource is RunSource returning the final value.
func (r *Runtime) EvalSource(ctx context.Context, source string, extraGlobals map[string]any) (object.Object, error) {
	return r.eval(ctx, source, "", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, id string, extraGlobals map[string]any) (object.Object, error) {
	label := id
	if label == "" {
		label = "<inline>"
	}
	result, err := risor.Eval(ctx, source,
		risor.WithGlobals(r.buildGlobals(id, extraGlobals)),
		risor.WithImporter(r.buildImporter(id, extraGlobals)),
	)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns the overlay importer for one file. caller is the
// identifier relative imports are resolved against; extra globals are
// handed on to modules evaluated through it.
func (r *Runtime) buildImporter(caller string, extra map[string]any) importer.Importer {
	return &overlayImporter{
		rt:     r,
		caller: caller,
		extra:  extra,
	}
}

// LoadScript returns the source of an entry script and its identifier.
// Virtual paths are read from the archive; anything else from disk.
func (r *Runtime) LoadScript(path string) (string, string, error) {
	if vpath.IsVirtual(path) {
		id := vpath.Canonical(vpath.WithExtension(path, r.ext))
		data, err := r.resolver.Archive().ReadText(id)
		if err != nil {
			return "", "", fmt.Errorf("runtime: loading script %s from archive: %w", id, err)
		}
		return string(data), id, nil
	}

	fullPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("runtime: resolving %s: %w", path, err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), fullPath, nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(caller string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":           mustProxy(&logObject{logger: r.logger.WithPrefix("script")}),
		"read_resource": makeReadResourceFn(r.resolver, caller),
		"script_id":     object.NewString(caller),
		moduleGlobal:    object.NewBuiltin(moduleGlobal, r.lookupModule),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
