package resolve

import (
	"sort"

	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// Env holds the two global sets the validator consults: the enabled group
// tags and the valid variable names. It is only replaced when a pass
// produces different sets, so Generation changes exactly when downstream
// results may have changed.
type Env struct {
	groups     map[string]bool
	vars       map[string]bool
	generation int
}

// NewEnv returns an empty Env.
func NewEnv() *Env {
	return &Env{groups: map[string]bool{}, vars: map[string]bool{}}
}

// Update installs new sets and reports whether anything changed.
func (e *Env) Update(groups []string, vars []tree.VarDecl) bool {
	g := make(map[string]bool, len(groups))
	for _, name := range groups {
		g[name] = true
	}
	v := make(map[string]bool, len(vars))
	for _, d := range vars {
		v[d.Name] = true
	}
	changed := false
	if !sameSet(e.groups, g) {
		e.groups = g
		changed = true
	}
	if !sameSet(e.vars, v) {
		e.vars = v
		changed = true
	}
	if changed {
		e.generation++
	}
	return changed
}

// HasGroup reports whether a group tag is enabled.
func (e *Env) HasGroup(name string) bool { return e.groups[name] }

// HasVar reports whether a variable name is valid.
func (e *Env) HasVar(name string) bool { return e.vars[name] }

// Generation counts the updates that changed a set.
func (e *Env) Generation() int { return e.generation }

// Groups returns the enabled group tags, sorted.
func (e *Env) Groups() []string { return sortedKeys(e.groups) }

// Vars returns the valid variable names, sorted.
func (e *Env) Vars() []string { return sortedKeys(e.vars) }

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
