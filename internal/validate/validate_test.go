package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/expr"
	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

type fakeEnv struct {
	groups map[string]bool
	vars   map[string]bool
}

func (e fakeEnv) HasGroup(name string) bool { return e.groups[name] }
func (e fakeEnv) HasVar(name string) bool   { return e.vars[name] }

func newEnv(groups []string, vars ...string) fakeEnv {
	e := fakeEnv{groups: map[string]bool{}, vars: map[string]bool{}}
	for _, g := range groups {
		e.groups[g] = true
	}
	for _, v := range vars {
		e.vars[v] = true
	}
	return e
}

func testRegistry() *nodedef.Registry {
	two := 2
	return nodedef.FromDefs(
		nodedef.NodeDef{Name: "Sequence", Type: nodedef.Composite},
		nodedef.NodeDef{Name: "Both", Type: nodedef.Composite, ChildCount: &two},
		nodedef.NodeDef{Name: "Inverter", Type: nodedef.Decorator},
		nodedef.NodeDef{Name: "Wait", Type: nodedef.Action, Args: []nodedef.ArgDef{
			{Name: "time", Type: "float"},
			{Name: "repeat", Type: "int?", Default: float64(1)},
		}},
		nodedef.NodeDef{Name: "Pick", Type: nodedef.Action, Args: []nodedef.ArgDef{
			{Name: "mode", Type: "enum?", Options: []nodedef.Option{{Name: "A", Value: "a"}, {Name: "B", Value: "b"}}},
		}},
		nodedef.NodeDef{Name: "Attack", Type: nodedef.Action, Group: []string{"combat"},
			Input: []string{"target", "weapon?"}, Output: []string{"hits..."}},
		nodedef.NodeDef{Name: "Check", Type: nodedef.Condition, Args: []nodedef.ArgDef{
			{Name: "value", Type: "code"},
			{Name: "ids", Type: "int[]?"},
			{Name: "flag", Type: "bool?"},
			{Name: "extra", Type: "json?"},
		}},
	)
}

func newTestValidator(env Env, opts ...Option) *Validator {
	return New(testRegistry(), env, opts...)
}

func node(name string, children ...*tree.Node) *tree.Node {
	return &tree.Node{ID: "1", Name: name, Children: children}
}

func messages(l *diag.List) []string {
	var out []string
	for _, d := range l.Items() {
		out = append(out, d.Message)
	}
	return out
}

func TestValidate_UndefinedNodeDoesNotStopSiblings(t *testing.T) {
	v := newTestValidator(newEnv(nil))
	root := node("Sequence", node("Mystery"), &tree.Node{ID: "3", Name: "Wait"})
	diags := diag.NewList("main.json")

	assert.False(t, v.Validate(root, diags))

	assert.Equal(t, []string{"undefined node: Mystery", "missing argument time"}, messages(diags))
	assert.Equal(t, "3", diags.Items()[1].NodeID)
	assert.Equal(t, diag.Structural, diags.Items()[0].Kind)
}

func TestValidate_EnumOptions(t *testing.T) {
	tests := []struct {
		name  string
		value any
		set   bool
		ok    bool
	}{
		{"first option", "a", true, true},
		{"second option", "b", true, true},
		{"absent optional", nil, false, true},
		{"not an option", "c", true, false},
		{"wrong type", 1.0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(newEnv(nil))
			n := node("Pick")
			if tt.set {
				n.Args.Set("mode", tree.Const, tt.value)
			}
			diags := diag.NewList("")
			assert.Equal(t, tt.ok, v.Validate(n, diags), messages(diags))
		})
	}
}

func TestValidate_DefaultBackfill(t *testing.T) {
	v := newTestValidator(newEnv(nil))
	n := node("Wait")
	n.Args.Set("time", tree.Const, 0.5)
	diags := diag.NewList("")

	require.True(t, v.Validate(n, diags), messages(diags))
	got, ok := n.Args.Get("repeat")
	require.True(t, ok)
	assert.Equal(t, float64(1), got.Value)
}

func TestValidate_ArgKinds(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		kind tree.VarKind
		val  any
		ok   bool
	}{
		{"int accepts integral number", "ids", tree.Const, []any{1.0, 2.0}, true},
		{"int rejects fraction", "ids", tree.Const, []any{1.5}, false},
		{"array required", "ids", tree.Const, 3.0, false},
		{"bool", "flag", tree.Const, true, true},
		{"bool rejects string", "flag", tree.Const, "yes", false},
		{"json accepts object", "extra", tree.Const, map[string]any{"k": 1.0}, true},
		{"cfg needs string", "extra", tree.Cfg, "", false},
		{"object with name", "extra", tree.Object, "player", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(newEnv(nil, "hp"))
			n := node("Check")
			n.Args.Set("value", tree.Code, "hp > 0")
			n.Args.Set(tt.arg, tt.kind, tt.val)
			diags := diag.NewList("")
			assert.Equal(t, tt.ok, v.Validate(n, diags), messages(diags))
		})
	}
}

func TestValidate_Expressions(t *testing.T) {
	env := newEnv(nil, "hp")

	t.Run("undefined variable", func(t *testing.T) {
		v := newTestValidator(env)
		n := node("Check")
		n.Args.Set("value", tree.Code, "hp > limit")
		diags := diag.NewList("")
		assert.False(t, v.Validate(n, diags))
		assert.Equal(t, []string{"argument value: variable limit is not defined"}, messages(diags))
	})

	t.Run("syntax error", func(t *testing.T) {
		v := newTestValidator(env)
		n := node("Check")
		n.Args.Set("value", tree.Code, "hp >")
		diags := diag.NewList("")
		assert.False(t, v.Validate(n, diags))
		require.Equal(t, 1, diags.Len())
		assert.Contains(t, diags.Items()[0].Message, "invalid expression")
	})

	t.Run("syntax check off", func(t *testing.T) {
		v := newTestValidator(env, WithExprCheck(false))
		n := node("Check")
		n.Args.Set("value", tree.Code, "hp >")
		assert.True(t, v.Validate(n, diag.NewList("")))
	})

	t.Run("expr dialect", func(t *testing.T) {
		v := newTestValidator(env, WithChecker(expr.NewExprLang()))
		n := node("Check")
		n.Args.Set("value", tree.Code, "hp > 0 and mp < 3")
		diags := diag.NewList("")
		assert.False(t, v.Validate(n, diags))
		assert.Equal(t, []string{"argument value: variable mp is not defined"}, messages(diags))
	})
}

func TestValidate_SlotsAndGroups(t *testing.T) {
	t.Run("group disabled", func(t *testing.T) {
		v := newTestValidator(newEnv(nil, "enemy"))
		n := node("Attack")
		n.Input = []string{"enemy", ""}
		n.Output = []string{""}
		diags := diag.NewList("")
		assert.False(t, v.Validate(n, diags))
		assert.Equal(t, []string{"node Attack requires one of the groups combat"}, messages(diags))
	})

	t.Run("missing and undefined variables", func(t *testing.T) {
		v := newTestValidator(newEnv([]string{"combat"}, "enemy"))
		n := node("Attack")
		n.Input = []string{"", "sword"}
		n.Output = []string{"a", "enemy"}
		diags := diag.NewList("")
		assert.False(t, v.Validate(n, diags))
		assert.Equal(t, []string{
			"missing input target",
			"input variable sword is not defined",
			"output variable a is not defined",
		}, messages(diags))
	})

	t.Run("optional and variadic may be empty", func(t *testing.T) {
		v := newTestValidator(newEnv([]string{"combat"}, "enemy"))
		n := node("Attack")
		n.Input = []string{"enemy", ""}
		n.Output = []string{""}
		assert.True(t, v.Validate(n, diag.NewList("")))
	})
}

func TestValidate_ChildCount(t *testing.T) {
	v := newTestValidator(newEnv(nil))
	wait := func() *tree.Node {
		n := node("Wait")
		n.Args.Set("time", tree.Const, 1.0)
		return n
	}

	diags := diag.NewList("")
	assert.False(t, v.Validate(node("Both", wait()), diags))
	assert.Equal(t, []string{"expects 2 children, got 1"}, messages(diags))

	diags = diag.NewList("")
	assert.False(t, v.Validate(node("Inverter"), diags))
	assert.Equal(t, []string{"expects 1 children, got 0"}, messages(diags))

	assert.True(t, v.Validate(node("Sequence", wait(), wait(), wait()), diag.NewList("")))
}

func TestValidate_NormalizesChildren(t *testing.T) {
	v := newTestValidator(newEnv(nil))
	n := &tree.Node{ID: "1", Name: "Sequence"}
	assert.True(t, v.Validate(n, diag.NewList("")))
	assert.NotNil(t, n.Children)
	assert.Empty(t, n.Children)
}

func TestValidate_DisabledNodesStillChecked(t *testing.T) {
	v := newTestValidator(newEnv(nil))
	n := node("Wait")
	n.Disabled = true
	assert.False(t, v.Validate(n, diag.NewList("")))
}

func TestValidateTree_VarKinds(t *testing.T) {
	v := newTestValidator(newEnv(nil))
	tr := &tree.Tree{
		Vars: []tree.VarDecl{{Name: "hp"}, {Name: "bad", Kind: "weird"}, {}},
		Root: node("Sequence"),
	}
	diags := diag.NewList("")
	assert.False(t, v.ValidateTree(tr, diags))
	assert.Equal(t, []string{`variable bad: unknown kind "weird"`, "variable without a name"}, messages(diags))
}
