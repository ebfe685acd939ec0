// Package validate checks resolved behavior trees against their node
// definitions and the variables and groups in scope.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/expr"
	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// Env is the set of enabled groups and valid variable names a tree is
// checked against. *resolve.Env satisfies it.
type Env interface {
	HasGroup(name string) bool
	HasVar(name string) bool
}

// Validator checks nodes. It never stops at the first problem: every
// violation is added to the diagnostics list.
type Validator struct {
	registry  *nodedef.Registry
	env       Env
	checker   expr.Checker
	checkExpr bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithChecker sets the expression dialect. The default is JavaScript.
func WithChecker(c expr.Checker) Option {
	return func(v *Validator) {
		v.checker = c
	}
}

// WithExprCheck turns expression syntax checking on or off. Variable
// references inside expressions are checked either way.
func WithExprCheck(on bool) Option {
	return func(v *Validator) {
		v.checkExpr = on
	}
}

// New creates a Validator.
func New(registry *nodedef.Registry, env Env, opts ...Option) *Validator {
	v := &Validator{
		registry:  registry,
		env:       env,
		checker:   expr.NewJS(),
		checkExpr: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateTree checks the tree's variable declarations and its nodes.
func (v *Validator) ValidateTree(t *tree.Tree, diags *diag.List) bool {
	ok := true
	for _, d := range t.Vars {
		if d.Name == "" {
			diags.Addf(diag.Structural, "variable without a name")
			ok = false
			continue
		}
		if !d.Kind.Valid() {
			diags.Addf(diag.Structural, "variable %s: unknown kind %q", d.Name, d.Kind)
			ok = false
		}
	}
	if t.Root == nil {
		return ok
	}
	return v.Validate(t.Root, diags) && ok
}

// Validate checks n and its descendants and reports whether all of them
// passed. Missing argument values are back-filled from their defaults and a
// nil child list is replaced with an empty one.
func (v *Validator) Validate(n *tree.Node, diags *diag.List) bool {
	if n == nil {
		return true
	}
	ok := v.checkNode(n, diags)
	if n.Children == nil {
		n.Children = []*tree.Node{}
	}
	for _, c := range n.Children {
		if !v.Validate(c, diags) {
			ok = false
		}
	}
	return ok
}

// nodeCheck accumulates the diagnostics of one node.
type nodeCheck struct {
	n     *tree.Node
	diags *diag.List
	ok    bool
}

func (c *nodeCheck) fail(format string, args ...any) {
	c.diags.Nodef(diag.Structural, c.n.ID, c.n.Name, format, args...)
	c.ok = false
}

func (v *Validator) checkNode(n *tree.Node, diags *diag.List) bool {
	c := &nodeCheck{n: n, diags: diags, ok: true}

	def := v.registry.Get(n.Name)
	if def.IsUnknown() {
		c.fail("undefined node: %s", n.Name)
		return c.ok
	}

	if len(def.Group) > 0 && !v.anyGroup(def.Group) {
		c.fail("node %s requires one of the groups %s", n.Name, strings.Join(def.Group, ", "))
	}

	v.checkSlots(c, "input", n.Input, def.InputSlots())
	v.checkSlots(c, "output", n.Output, def.OutputSlots())

	if !def.IsUnbounded() && len(n.Children) != def.Children() {
		c.fail("expects %d children, got %d", def.Children(), len(n.Children))
	}

	for i := range def.Args {
		v.checkArg(c, &def.Args[i])
	}
	return c.ok
}

func (v *Validator) anyGroup(groups []string) bool {
	for _, g := range groups {
		if v.env.HasGroup(g) {
			return true
		}
	}
	return false
}

// checkSlots requires a value for every mandatory slot and a defined
// variable for every value given.
func (v *Validator) checkSlots(c *nodeCheck, what string, vals []string, slots []nodedef.Slot) {
	for i, slot := range slots {
		var val string
		if i < len(vals) {
			val = vals[i]
		}
		if val == "" && !slot.Optional && !(slot.Variadic && i == len(slots)-1) {
			c.fail("missing %s %s", what, slot.Name)
		}
	}
	for _, val := range vals {
		if val != "" && !v.env.HasVar(val) {
			c.fail("%s variable %s is not defined", what, val)
		}
	}
}

func (v *Validator) checkArg(c *nodeCheck, a *nodedef.ArgDef) {
	val, present := c.n.Args.Get(a.Name)
	if (!present || val.Value == nil) && a.Default != nil {
		c.n.Args.Set(a.Name, tree.Const, a.Default)
		val, present = c.n.Args.Get(a.Name)
	}
	if !present || val.Value == nil {
		if !a.Optional {
			c.fail("missing argument %s", a.Name)
		}
		return
	}

	switch val.Kind {
	case tree.Object, tree.Cfg:
		if s, ok := val.Value.(string); !ok || s == "" {
			c.fail("argument %s: %s value must be a non-empty string", a.Name, val.Kind)
		}
		return
	case tree.Code:
		s, ok := val.Value.(string)
		if !ok {
			c.fail("argument %s: code value must be a string", a.Name)
			return
		}
		v.checkExpression(c, a.Name, s)
		return
	case tree.Const, "":
	default:
		c.fail("argument %s: unknown value kind %q", a.Name, val.Kind)
		return
	}

	if a.Array {
		items, ok := val.Value.([]any)
		if !ok {
			c.fail("argument %s: expected an array of %s", a.Name, a.Kind)
			return
		}
		for i, item := range items {
			v.checkValue(c, a, fmt.Sprintf("%s[%d]", a.Name, i), item)
		}
		return
	}
	v.checkValue(c, a, a.Name, val.Value)
}

func (v *Validator) checkValue(c *nodeCheck, a *nodedef.ArgDef, label string, value any) {
	if !kindMatches(a.Kind, value) {
		c.fail("argument %s: expected %s, got %s", label, a.Kind, describe(value))
		return
	}
	if a.Kind == nodedef.KindExpr {
		v.checkExpression(c, label, value.(string))
	}
	if a.HasOptions() && !a.AllowsOption(value) {
		c.fail("argument %s: %v is not one of %s", label, value, optionValues(a.Options))
	}
}

// checkExpression reports undefined variables in src and, when syntax
// checking is on, parse failures.
func (v *Validator) checkExpression(c *nodeCheck, label, src string) {
	if strings.TrimSpace(src) == "" {
		return
	}
	idents, err := v.checker.Check(src)
	if err != nil {
		if v.checkExpr {
			c.fail("argument %s: %v", label, err)
		}
		return
	}
	for _, id := range idents {
		if !v.env.HasVar(id) {
			c.fail("argument %s: variable %s is not defined", label, id)
		}
	}
}

func kindMatches(kind nodedef.ValueKind, value any) bool {
	switch kind {
	case nodedef.KindInt:
		f, ok := number(value)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case nodedef.KindFloat:
		_, ok := number(value)
		return ok
	case nodedef.KindString, nodedef.KindExpr:
		_, ok := value.(string)
		return ok
	case nodedef.KindBool:
		_, ok := value.(bool)
		return ok
	}
	// json and kinds this build does not know accept any value.
	return true
}

func number(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func describe(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}

func optionValues(opts []nodedef.Option) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = fmt.Sprint(o.Value)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
