package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/vm"

	"github.com/jward/embedload/internal/resolver"
	"github.com/jward/embedload/internal/vpath"
)

// overlayImporter implements importer.Importer on top of the resolver.
type overlayImporter struct {
	rt     *Runtime
	caller string
	extra  map[string]any
}

var _ importer.Importer = (*overlayImporter)(nil)

// Import resolves name and returns its module. Names starting with "./" or
// "../" are resolved against the importing file.
func (i *overlayImporter) Import(ctx context.Context, name string) (*object.Module, error) {
	req := resolver.Request{Path: name}
	if isRelative(name) && i.caller != "" {
		req.Caller = i.caller
		req.Relative = true
	}

	ctx = withExtraGlobals(ctx, i.extra)
	res, err := i.rt.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("runtime: import %s: %w", name, err)
	}
	inst, err := i.rt.instance(ctx, res)
	if err != nil {
		return nil, err
	}
	return inst.module(), nil
}

func isRelative(name string) bool {
	return strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")
}

// instance returns the evaluated module behind a resolution. Archive
// identifiers are evaluated here the first time any import reaches them,
// including ones first recorded by a Go-side Require.
func (r *Runtime) instance(ctx context.Context, res resolver.Result) (*instance, error) {
	if vpath.IsVirtual(res.ID) {
		return r.archiveInstance(ctx, res.ID, res.Content)
	}
	if r.blocked[res.ID] {
		// Provided by the host; there is nothing to bind.
		return newInstance(res.ID, nil, nil)
	}
	e, ok := r.modules.lookup(res.ID)
	if !ok {
		return nil, fmt.Errorf("runtime: import %s: no module was built", res.ID)
	}
	return e.wait(ctx)
}

func (r *Runtime) archiveInstance(ctx context.Context, id string, content []byte) (*instance, error) {
	if evaluating(ctx, id) {
		return nil, fmt.Errorf("runtime: import cycle through %s", id)
	}
	e, owner := r.modules.claim(id)
	if !owner {
		return e.wait(ctx)
	}

	inst, err := r.evalArchive(ctx, id, content)
	r.modules.finish(e, inst, err)
	return inst, err
}

// evalArchive is the host evaluator for archive text. Errors name the
// archive identifier.
func (r *Runtime) evalArchive(ctx context.Context, id string, content []byte) (*instance, error) {
	if content == nil {
		var err error
		if content, err = r.resolver.Archive().ReadText(id); err != nil {
			return nil, fmt.Errorf("runtime: reading %s: %w", id, err)
		}
	}

	cfg := r.moduleConfig(id, extraGlobalsFrom(ctx))
	prog, err := parser.Parse(ctx, string(content))
	if err != nil {
		return nil, fmt.Errorf("runtime: parsing %s: %w", id, err)
	}
	code, err := compiler.Compile(prog, cfg.CompilerOpts()...)
	if err != nil {
		return nil, fmt.Errorf("runtime: compiling %s: %w", id, err)
	}
	return r.evaluate(ctx, id, code, cfg)
}

// evaluate runs a module's top level in a VM of its own and collects the
// globals it defined. The VM is kept for calls into the module's functions.
func (r *Runtime) evaluate(ctx context.Context, id string, code *compiler.Code, cfg *risor.Config) (*instance, error) {
	machine := vm.New(code, cfg.VMOpts()...)
	if err := machine.Run(withEvaluating(ctx, id)); err != nil {
		return nil, fmt.Errorf("runtime: evaluating %s: %w", id, err)
	}

	provided := cfg.Globals()
	exports := make(map[string]object.Object)
	for _, name := range machine.GlobalNames() {
		if _, ok := provided[name]; ok {
			continue
		}
		val, err := machine.Get(name)
		if err != nil || val == nil {
			continue
		}
		exports[name] = val
	}
	r.logger.Debug("module evaluated", "id", id, "exports", len(exports))
	return newInstance(id, machine, exports)
}

// moduleConfig is the Risor configuration a module is compiled and run
// with: the runtime's globals as seen from id, plus the first importer's
// extra globals.
func (r *Runtime) moduleConfig(id string, extra map[string]any) *risor.Config {
	return risor.NewConfig(
		risor.WithGlobals(r.buildGlobals(id, extra)),
		risor.WithImporter(r.buildImporter(id, extra)),
	)
}

// hostLoad is the fallback loader: Risor's local importer, tried over each
// real load-path directory in order. A module found this way is evaluated
// once and cached under the request.
func (r *Runtime) hostLoad(ctx context.Context, raw string) (bool, error) {
	if e, ok := r.modules.lookup(raw); ok {
		_, err := e.wait(ctx)
		return err == nil, err
	}

	file := raw
	if filepath.Ext(file) != r.ext {
		file += r.ext
	}
	var dirs []string
	if filepath.IsAbs(file) {
		dirs = []string{filepath.Dir(file)}
		file = filepath.Base(file)
	} else {
		dirs = r.resolver.LoadPath().Real()
	}

	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			continue
		}
		if evaluating(ctx, raw) {
			return false, fmt.Errorf("runtime: import cycle through %s", raw)
		}
		e, owner := r.modules.claim(raw)
		if !owner {
			_, err := e.wait(ctx)
			return err == nil, err
		}
		inst, err := r.evalHost(ctx, raw, dir, file)
		r.modules.finish(e, inst, err)
		if err != nil {
			return false, fmt.Errorf("runtime: host import %s: %w", raw, err)
		}
		r.logger.Debug("host import", "name", raw, "dir", dir)
		return true, nil
	}
	return false, nil
}

func (r *Runtime) evalHost(ctx context.Context, raw, dir, file string) (*instance, error) {
	path := filepath.Join(dir, file)
	cfg := r.moduleConfig(path, extraGlobalsFrom(ctx))
	imp := importer.NewLocalImporter(importer.LocalImporterOptions{
		GlobalNames: cfg.GlobalNames(),
		SourceDir:   dir,
		Extensions:  []string{r.ext},
	})
	mod, err := imp.Import(ctx, strings.TrimSuffix(file, r.ext))
	if err != nil {
		return nil, err
	}
	return r.evaluate(ctx, raw, mod.Code(), cfg)
}

// NativeModule builds the attributes of a module in Go instead of compiling
// source text.
type NativeModule func(ctx context.Context) (map[string]object.Object, error)

// nativeHook adapts a NativeModule to a resolver hook that caches the built
// module under name.
func (r *Runtime) nativeHook(name string, build NativeModule) resolver.NativeHook {
	return func(ctx context.Context) error {
		attrs, err := build(ctx)
		if err != nil {
			return err
		}
		inst, err := newInstance(name, nil, attrs)
		if err != nil {
			return err
		}
		if e, owner := r.modules.claim(name); owner {
			r.modules.finish(e, inst, nil)
		}
		return nil
	}
}

// lookupModule backs the moduleGlobal builtin called by import stubs.
func (r *Runtime) lookupModule(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 1 {
		return object.NewArgsError(moduleGlobal, 1, len(args))
	}
	id, errObj := object.AsString(args[0])
	if errObj != nil {
		return errObj
	}
	if e, ok := r.modules.lookup(id); ok {
		if inst, ok := e.ready(); ok {
			return inst.attrs
		}
	}
	return object.Errorf("runtime: module %s is not loaded", id)
}

type extraGlobalsKey struct{}

func withExtraGlobals(ctx context.Context, extra map[string]any) context.Context {
	return context.WithValue(ctx, extraGlobalsKey{}, extra)
}

func extraGlobalsFrom(ctx context.Context) map[string]any {
	extra, _ := ctx.Value(extraGlobalsKey{}).(map[string]any)
	return extra
}

// evaluatingKey holds the modules whose top level is running on this import
// chain. Reaching one of them again is a cycle.
type evaluatingKey struct{}

func withEvaluating(ctx context.Context, id string) context.Context {
	chain, _ := ctx.Value(evaluatingKey{}).([]string)
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, evaluatingKey{}, append(next, id))
}

func evaluating(ctx context.Context, id string) bool {
	chain, _ := ctx.Value(evaluatingKey{}).([]string)
	for _, c := range chain {
		if c == id {
			return true
		}
	}
	return false
}
