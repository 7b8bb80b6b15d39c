package runtime

import (
	"context"

	"github.com/risor-io/risor/modules/json"
	"github.com/risor-io/risor/object"
)

// Native module names recognized by default.
const (
	JSONParser    = "json/ext/parser"
	JSONGenerator = "json/ext/generator"
)

// DefaultNativeModules maps the built-in native module names to builders.
// Both JSON names are served by Risor's json module.
func DefaultNativeModules() map[string]NativeModule {
	return map[string]NativeModule{
		JSONParser:    jsonModule,
		JSONGenerator: jsonModule,
	}
}

func jsonModule(context.Context) (map[string]object.Object, error) {
	return map[string]object.Object{
		"unmarshal": object.NewBuiltin("unmarshal", json.Unmarshal),
		"marshal":   object.NewBuiltin("marshal", json.Marshal),
		"valid":     object.NewBuiltin("valid", json.Valid),
	}, nil
}
