package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
)

// makeNodeDefFn creates the "node_def" host function.
//
// node_def(name) → map or nil
//
// The map has the JSON shape of the definition plus "children", the
// effective child count (-1 for unbounded).
func makeNodeDefFn(reg *nodedef.Registry) *object.Builtin {
	return object.NewBuiltin("node_def", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_def", 1, len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("node_def: name must be a string, got %s", args[0].Type())
		}
		if reg == nil || !reg.Has(name.Value()) {
			return object.Nil
		}
		def := reg.Get(name.Value())
		m, err := jsonToMap(def)
		if err != nil {
			return object.Errorf("node_def: %v", err)
		}
		m["children"] = float64(def.Children())
		return toObject(m)
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
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
