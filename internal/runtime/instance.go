package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/vm"
)

// moduleGlobal is the global every VM gets for binding evaluated modules.
// Import stubs call it to fetch the module they re-export.
const moduleGlobal = "__overlay_module__"

// instance is a module evaluated exactly once. Scripts never run its code
// again: Import hands each VM a stub whose only statements copy the exports
// out of attrs.
type instance struct {
	id    string
	attrs *object.Module
	stub  *compiler.Code
}

// newInstance wraps the exports of a module. machine is the VM that
// evaluated it, or nil for modules built in Go.
func newInstance(id string, machine *vm.VirtualMachine, exports map[string]object.Object) (*instance, error) {
	names := make([]string, 0, len(exports))
	contents := make(map[string]object.Object, len(exports))
	for name, val := range exports {
		names = append(names, name)
		if fn, ok := val.(*object.Function); ok && machine != nil {
			val = bindFunction(machine, name, fn)
		}
		contents[name] = val
	}
	sort.Strings(names)

	var src strings.Builder
	if len(names) == 0 {
		src.WriteString("nil\n")
	}
	for _, name := range names {
		fmt.Fprintf(&src, "%s := %s(%q).%s\n", name, moduleGlobal, id, name)
	}
	prog, err := parser.Parse(context.Background(), src.String())
	if err != nil {
		return nil, fmt.Errorf("runtime: binding %s: %w", id, err)
	}
	stub, err := compiler.Compile(prog, compiler.WithGlobalNames([]string{moduleGlobal}))
	if err != nil {
		return nil, fmt.Errorf("runtime: binding %s: %w", id, err)
	}
	return &instance{
		id:    id,
		attrs: object.NewBuiltinsModule(id, contents),
		stub:  stub,
	}, nil
}

// module returns a fresh module for one import. The VM runs the stub and
// then swaps the stub's globals into the module, so modules are not shared.
func (in *instance) module() *object.Module {
	mod := object.NewModule(in.id, in.stub)
	_ = mod.Override(moduleGlobal, nil)
	return mod
}

// bindFunction makes fn callable from any VM. Compiled functions only run
// in a VM that loaded their module's code, so each call goes through a clone
// of the evaluating VM, which shares the module's globals.
func bindFunction(machine *vm.VirtualMachine, name string, fn *object.Function) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		clone, err := machine.Clone()
		if err != nil {
			return object.NewError(err)
		}
		result, err := clone.Call(ctx, fn, callbacks(ctx, args))
		if err != nil {
			return object.NewError(err)
		}
		if inner, ok := result.(*object.Function); ok {
			return bindFunction(machine, inner.Name(), inner)
		}
		return result
	})
}

// callbacks binds function arguments to the calling VM, so a module can call
// back into the script that passed them.
func callbacks(ctx context.Context, args []object.Object) []object.Object {
	call, ok := object.GetCallFunc(ctx)
	if !ok {
		return args
	}
	bound := make([]object.Object, len(args))
	for i, arg := range args {
		fn, ok := arg.(*object.Function)
		if !ok {
			bound[i] = arg
			continue
		}
		bound[i] = object.NewBuiltin(fn.Name(), func(_ context.Context, a ...object.Object) object.Object {
			result, err := call(ctx, fn, a)
			if err != nil {
				return object.NewError(err)
			}
			return result
		})
	}
	return bound
}

// moduleCache holds every module instance of a Runtime, keyed by archive
// identifier, native module name or host request. The first caller to claim
// a key evaluates it; later callers wait for that outcome. Failures are kept
// so a module recorded as loaded keeps reporting the same error.
type moduleCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	evals   int
}

type cacheEntry struct {
	done chan struct{}
	inst *instance
	err  error
}

func newModuleCache() *moduleCache {
	return &moduleCache{entries: make(map[string]*cacheEntry)}
}

// claim returns the entry for key, creating it when absent. owner is true
// for the caller that created it, which must call finish.
func (c *moduleCache) claim(key string) (e *cacheEntry, owner bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, false
	}
	e = &cacheEntry{done: make(chan struct{})}
	c.entries[key] = e
	return e, true
}

func (c *moduleCache) finish(e *cacheEntry, inst *instance, err error) {
	c.mu.Lock()
	c.evals++
	c.mu.Unlock()
	e.inst, e.err = inst, err
	close(e.done)
}

func (c *moduleCache) lookup(key string) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// count returns how many modules have been evaluated or built.
func (c *moduleCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evals
}

func (e *cacheEntry) wait(ctx context.Context) (*instance, error) {
	select {
	case <-e.done:
		return e.inst, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ready returns the instance without blocking, if evaluation has finished.
func (e *cacheEntry) ready() (*instance, bool) {
	select {
	case <-e.done:
		return e.inst, e.inst != nil
	default:
		return nil, false
	}
}
