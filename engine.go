package embedload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor/object"

	"github.com/jward/embedload/internal/archive"
	"github.com/jward/embedload/internal/config"
	"github.com/jward/embedload/internal/loadpath"
	"github.com/jward/embedload/internal/resolver"
	"github.com/jward/embedload/internal/runtime"
	"github.com/jward/embedload/scripts"
)

// Engine ties an archive, the load path and the Risor runtime together.
// One Engine is one overlay: its loaded set lives as long as the Engine.
type Engine struct {
	runtime *runtime.Runtime
	archive archive.Archive
	closer  io.Closer
	logger  *log.Logger
	cfg     *config.Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithArchiveFS serves the archive from fsys instead of the embedded scripts.
// It takes precedence over the config's SQLite archive.
func WithArchiveFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.archive = archive.NewFS(fsys)
	}
}

// WithLogger sets the logger for resolution decisions and script logging.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New builds an Engine. Archive selection:
//  1. WithArchiveFS, if given
//  2. the SQLite bundle named by the config's Archive field
//  3. the embedded scripts
//
// Discovery markers are resolved once here and appended after the fixed roots.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg == nil {
		e.cfg = config.DefaultConfig()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedload: %w", err)
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: config.AppName,
			Level:  e.cfg.Level(),
		})
	}

	if e.archive == nil {
		if e.cfg.Archive != "" {
			db, err := archive.OpenSQLite(e.cfg.Archive)
			if err != nil {
				return nil, fmt.Errorf("embedload: open archive: %w", err)
			}
			e.archive, e.closer = db, db
		} else {
			e.archive = archive.NewFS(scripts.FS)
		}
	}

	reg := loadpath.New(loadpath.Roots(e.cfg.Roots...)...)
	missing, err := reg.Discover(ctx, e.archive, e.cfg.Discover...)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("embedload: discover: %w", err)
	}
	for _, marker := range missing {
		e.logger.Warn("discovery marker not in archive", "marker", marker)
	}

	rtOpts := []runtime.RuntimeOption{
		runtime.WithLoadPath(reg),
		runtime.WithBlocklist(e.cfg.Blocklist...),
		runtime.WithExtension(e.cfg.Extension),
		runtime.WithLogger(e.logger),
	}
	natives := runtime.DefaultNativeModules()
	for _, name := range e.cfg.NativeModules {
		build, ok := natives[name]
		if !ok {
			e.Close()
			return nil, fmt.Errorf("embedload: unknown native module %q", name)
		}
		rtOpts = append(rtOpts, runtime.WithNativeModule(name, build))
	}
	e.runtime = runtime.NewRuntime(e.archive, rtOpts...)

	return e, nil
}

// Close releases the archive's resources, if any.
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// Config returns the configuration the Engine was built with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Run executes an entry script. Paths starting with ":" are read from the
// archive, anything else from disk.
//
// Imports named "./x" or "../x" resolve against the file that contains the
// import statement: the entry script or the imported module. Every other
// name goes through the search roots. Imported modules are evaluated once
// per Engine, and later runs bind the same module values.
func (e *Engine) Run(ctx context.Context, script string, globals map[string]any) error {
	return e.runtime.RunScript(ctx, script, globals)
}

// Eval executes an entry script and returns its final value.
func (e *Engine) Eval(ctx context.Context, script string, globals map[string]any) (object.Object, error) {
	return e.runtime.EvalScript(ctx, script, globals)
}

// EvalSource executes inline source with the overlay importer installed.
// Inline source has no identifier, so its "./" imports are searched for like
// any other name.
func (e *Engine) EvalSource(ctx context.Context, source string, globals map[string]any) (object.Object, error) {
	return e.runtime.EvalSource(ctx, source, globals)
}

// Resolve runs the overlay's decision procedure for req without evaluating
// anything. Archive content returned here is marked loaded.
func (e *Engine) Resolve(ctx context.Context, req Request) (Result, error) {
	return e.runtime.Resolver().Resolve(ctx, req)
}

// Require resolves a module by name or absolute archive path. Archive
// content is marked loaded here and evaluated by the first script that
// imports it.
func (e *Engine) Require(ctx context.Context, path string) (Result, error) {
	return e.runtime.Resolver().Require(ctx, path)
}

// RequireRelative resolves path against the directory of caller.
func (e *Engine) RequireRelative(ctx context.Context, path, caller string) (Result, error) {
	return e.runtime.Resolver().RequireRelative(ctx, path, caller)
}

// ReadResource returns a data file relative to caller, or "" if it exists in
// neither the archive nor on disk.
func (e *Engine) ReadResource(path, caller string) string {
	return e.runtime.Resolver().ReadResource(path, caller)
}

// LoadPath returns the search roots in scan order.
func (e *Engine) LoadPath() []LoadPathEntry {
	return e.runtime.Resolver().LoadPath().Entries()
}

// Loaded returns the identifiers loaded so far, sorted.
func (e *Engine) Loaded() []string {
	return e.runtime.Resolver().Loaded().List()
}

// Archive returns the archive the Engine reads from.
func (e *Engine) Archive() archive.Archive {
	return e.archive
}

// IsNotFound reports whether err means no stage could load a module.
func IsNotFound(err error) bool {
	return errors.Is(err, resolver.ErrNotFound)
}
