// Package nodedef holds the registry of behavior-tree node types: their
// arity, argument and variable schemas, and status-capability rules.
package nodedef

import (
	"reflect"
	"strings"
)

// Category is the broad class of a node type.
type Category string

const (
	Action    Category = "Action"
	Condition Category = "Condition"
	Decorator Category = "Decorator"
	Composite Category = "Composite"
)

// ValueKind is the declared type of an argument value.
type ValueKind string

const (
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindString ValueKind = "string"
	KindBool   ValueKind = "bool"
	KindJSON   ValueKind = "json"
	KindExpr   ValueKind = "expr"
)

// Unbounded is the child count of node types that accept any number of
// children.
const Unbounded = -1

// Option is one member of an enumerated argument value set.
type Option struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ArgDef describes one argument slot. Type may carry the suffixes "[]" and
// "?" (e.g. "int[]?"), which are folded into Array and Optional on load.
type ArgDef struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Desc     string   `json:"desc,omitempty"`
	Default  any      `json:"default,omitempty"`
	Optional bool     `json:"optional,omitempty"`
	Array    bool     `json:"array,omitempty"`
	Options  []Option `json:"options,omitempty"`

	Kind ValueKind `json:"-"`
}

// HasOptions reports whether the slot is an enumeration.
func (a *ArgDef) HasOptions() bool { return len(a.Options) > 0 }

// AllowsOption reports whether v equals the value of one of the options.
func (a *ArgDef) AllowsOption(v any) bool {
	for _, o := range a.Options {
		if equalScalar(o.Value, v) {
			return true
		}
	}
	return false
}

// Slot is a parsed input or output declaration.
type Slot struct {
	Name     string
	Optional bool
	Variadic bool
}

// ParseSlot parses "name", "name?" and "name...".
func ParseSlot(s string) Slot {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "..."):
		return Slot{Name: strings.TrimSuffix(s, "..."), Variadic: true}
	case strings.HasSuffix(s, "?"):
		return Slot{Name: strings.TrimSuffix(s, "?"), Optional: true}
	}
	return Slot{Name: s}
}

// ParseArgType splits a type string such as "int[]?" into its kind and
// flags.
func ParseArgType(s string) (kind ValueKind, array, optional bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "?") {
		optional = true
		s = strings.TrimSuffix(s, "?")
	}
	if strings.HasSuffix(s, "[]") {
		array = true
		s = strings.TrimSuffix(s, "[]")
	}
	kind = ValueKind(s)
	// "enum" and "code" are legacy spellings.
	switch kind {
	case "enum":
		kind = KindString
	case "code":
		kind = KindExpr
	}
	return kind, array, optional
}

// NodeDef is one node type. It is immutable once loaded into a Registry.
type NodeDef struct {
	Name       string   `json:"name"`
	Type       Category `json:"type"`
	Desc       string   `json:"desc,omitempty"`
	ChildCount *int     `json:"children,omitempty"`
	Input      []string `json:"input,omitempty"`
	Output     []string `json:"output,omitempty"`
	Args       []ArgDef `json:"args,omitempty"`
	Status     []string `json:"status,omitempty"`
	Group      []string `json:"group,omitempty"`

	inputs  []Slot
	outputs []Slot
	unknown bool
}

// Unknown is returned by Registry.Get for unregistered names.
var Unknown = &NodeDef{Name: "unknown", Type: Action, ChildCount: intPtr(0), unknown: true}

// IsUnknown reports whether d is the sentinel returned for unmatched names.
func (d *NodeDef) IsUnknown() bool { return d.unknown }

// Children returns the allowed child count, or Unbounded. When the
// definition leaves it out, composites are unbounded, decorators take one
// child and everything else takes none.
func (d *NodeDef) Children() int {
	if d.ChildCount != nil {
		return *d.ChildCount
	}
	switch d.Type {
	case Composite:
		return Unbounded
	case Decorator:
		return 1
	}
	return 0
}

// IsUnbounded reports whether any number of children is allowed.
func (d *NodeDef) IsUnbounded() bool { return d.Children() < 0 }

// InputSlots returns the parsed input schema.
func (d *NodeDef) InputSlots() []Slot { return d.inputs }

// OutputSlots returns the parsed output schema.
func (d *NodeDef) OutputSlots() []Slot { return d.outputs }

// Arg returns the argument slot named name.
func (d *NodeDef) Arg(name string) (*ArgDef, bool) {
	for i := range d.Args {
		if d.Args[i].Name == name {
			return &d.Args[i], true
		}
	}
	return nil, false
}

// prepare parses slot and argument type strings.
func (d *NodeDef) prepare() {
	d.inputs = parseSlots(d.Input)
	d.outputs = parseSlots(d.Output)
	for i := range d.Args {
		a := &d.Args[i]
		kind, array, optional := ParseArgType(a.Type)
		a.Kind = kind
		a.Array = a.Array || array
		a.Optional = a.Optional || optional
	}
}

func parseSlots(in []string) []Slot {
	if len(in) == 0 {
		return nil
	}
	out := make([]Slot, len(in))
	for i, s := range in {
		out[i] = ParseSlot(s)
	}
	return out
}

func intPtr(n int) *int { return &n }

// equalScalar compares JSON-decoded scalars, treating all numbers as
// float64.
func equalScalar(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
