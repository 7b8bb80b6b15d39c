package runtime

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor/object"

	"github.com/jward/embedload/internal/resolver"
)

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *log.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}

// makeReadResourceFn creates the "read_resource" host function.
//
// read_resource(path [, caller]) → string
//
// path is resolved against caller, defaulting to the running script. A file
// found nowhere yields "".
func makeReadResourceFn(res *resolver.Resolver, script string) *object.Builtin {
	return object.NewBuiltin("read_resource", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("read_resource: expected 1 or 2 arguments, got %d", len(args))
		}

		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("read_resource: path must be a string, got %s", args[0].Type())
		}

		caller := script
		if len(args) == 2 {
			callerStr, ok := args[1].(*object.String)
			if !ok {
				return object.Errorf("read_resource: caller must be a string, got %s", args[1].Type())
			}
			caller = callerStr.Value()
		}

		return object.NewString(res.ReadResource(pathStr.Value(), caller))
	})
}
