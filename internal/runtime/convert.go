package runtime

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/risor-io/risor/object"

	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// Trees and nodes cross into scripts as plain maps with their JSON shape.
// Numbers are floats on the Go side, as encoding/json decodes them.

func jsonToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func treeToMap(t *tree.Tree) (map[string]any, error) {
	m, err := jsonToMap(t)
	if err != nil {
		return nil, fmt.Errorf("runtime: encoding tree: %w", err)
	}
	return m, nil
}

// nodeToMap encodes n without its children, which the build visits
// separately.
func nodeToMap(n *tree.Node) (map[string]any, error) {
	c := *n
	c.Children = nil
	m, err := jsonToMap(&c)
	if err != nil {
		return nil, fmt.Errorf("runtime: encoding node: %w", err)
	}
	return m, nil
}

func treeFromObject(obj object.Object) (*tree.Tree, error) {
	if _, ok := obj.(*object.Map); !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	data, err := json.Marshal(fromObject(obj))
	if err != nil {
		return nil, err
	}
	return tree.Parse(data)
}

func nodeFromObject(obj object.Object) (*tree.Node, error) {
	if _, ok := obj.(*object.Map); !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	data, err := json.Marshal(fromObject(obj))
	if err != nil {
		return nil, err
	}
	var n tree.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// toObject converts JSON-shaped Go values to Risor objects.
func toObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case bool:
		return object.NewBool(val)
	case string:
		return object.NewString(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return object.NewInt(int64(val))
		}
		return object.NewFloat(val)
	case int:
		return object.NewInt(int64(val))
	case int64:
		return object.NewInt(val)
	case []any:
		items := make([]object.Object, len(val))
		for i, item := range val {
			items[i] = toObject(item)
		}
		return object.NewList(items)
	case map[string]any:
		m := make(map[string]object.Object, len(val))
		for k, item := range val {
			m[k] = toObject(item)
		}
		return object.NewMap(m)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// fromObject converts Risor objects back to JSON-shaped Go values.
func fromObject(obj object.Object) any {
	switch val := obj.(type) {
	case nil, *object.NilType:
		return nil
	case *object.Bool:
		return val.Value()
	case *object.String:
		return val.Value()
	case *object.Int:
		return float64(val.Value())
	case *object.Float:
		return val.Value()
	case *object.List:
		items := val.Value()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromObject(item)
		}
		return out
	case *object.Map:
		out := make(map[string]any, len(val.Value()))
		for k, item := range val.Value() {
			out[k] = fromObject(item)
		}
		return out
	default:
		return obj.Inspect()
	}
}

func isNil(obj object.Object) bool {
	if obj == nil {
		return true
	}
	_, ok := obj.(*object.NilType)
	return ok
}

// keepArgOrder reorders got to follow the order of orig. Arguments the hook
// added come last in the order it returned them. Maps lose key order when
// they cross into the script, so got arrives sorted by name.
func keepArgOrder(orig, got tree.Args) tree.Args {
	if got == nil {
		return nil
	}
	out := make(tree.Args, 0, len(got))
	taken := make(map[string]bool, len(got))
	for _, a := range orig {
		if v, ok := got.Get(a.Name); ok {
			out = append(out, v)
			taken[a.Name] = true
		}
	}
	for _, v := range got {
		if !taken[v.Name] {
			out = append(out, v)
		}
	}
	return out
}

// restoreComputed copies resolver results from the nodes of before onto the
// nodes of after with the same id, and restores argument order.
func restoreComputed(before, after *tree.Node) {
	if before == nil || after == nil {
		return
	}
	byID := make(map[string]*tree.Node)
	tree.Walk(before, func(n *tree.Node) bool {
		byID[n.ID] = n
		return true
	})
	tree.Walk(after, func(n *tree.Node) bool {
		if old, ok := byID[n.ID]; ok {
			n.Status = old.Status
			n.Mtime = old.Mtime
			n.FromSubtree = old.FromSubtree
			n.Args = keepArgOrder(old.Args, n.Args)
		}
		return true
	})
}
