// Package tree defines behavior-tree documents and nodes and their JSON
// encoding.
package tree

import (
	"time"

	"github.com/zhcmeng/behavior3editor-sub000/internal/status"
)

// VarKind is the declared kind of an argument value or variable.
type VarKind string

const (
	// Const is a literal value.
	Const VarKind = "const"
	// Object names an object supplied by the host at runtime.
	Object VarKind = "object"
	// Cfg is a path into configuration data.
	Cfg VarKind = "cfg"
	// Code is an expression.
	Code VarKind = "code"
)

// Valid reports whether k is one of the known kinds. The empty kind counts
// as Const.
func (k VarKind) Valid() bool {
	switch k {
	case "", Const, Object, Cfg, Code:
		return true
	}
	return false
}

// Tree is one behavior-tree document.
type Tree struct {
	Version string    `json:"version"`
	Name    string    `json:"name"`
	Prefix  string    `json:"prefix"`
	Desc    string    `json:"desc,omitempty"`
	Export  *bool     `json:"export,omitempty"`
	Group   []string  `json:"group"`
	Import  []string  `json:"import"`
	Vars    []VarDecl `json:"vars"`
	Root    *Node     `json:"root"`
}

// Exportable reports whether the tree may be imported as a subtree and
// written by a build. Trees are exportable unless export is false.
func (t *Tree) Exportable() bool {
	return t.Export == nil || *t.Export
}

// VarDecl declares a variable visible to a tree.
type VarDecl struct {
	Name     string   `json:"name"`
	Desc     string   `json:"desc"`
	Kind     VarKind  `json:"kind,omitempty"`
	Type     string   `json:"type,omitempty"`
	Value    any      `json:"value,omitempty"`
	Default  any      `json:"default,omitempty"`
	Optional bool     `json:"optional,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Node is one node of a tree. Status, Mtime and FromSubtree are computed by
// the resolver and never written out.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Desc     string   `json:"desc,omitempty"`
	Args     Args     `json:"args,omitempty"`
	Input    []string `json:"input,omitempty"`
	Output   []string `json:"output,omitempty"`
	Children []*Node  `json:"children,omitempty"`
	Path     string   `json:"path,omitempty"`
	Debug    bool     `json:"debug,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`

	Status      status.Flags `json:"-"`
	Mtime       time.Time    `json:"-"`
	FromSubtree bool         `json:"-"`
}

// IsSubtreeRef reports whether the node references another file.
func (n *Node) IsSubtreeRef() bool { return n.Path != "" }

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Count returns the number of nodes under and including n.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node) bool {
		total++
		return true
	})
	return total
}

// SubtreePaths returns the distinct subtree paths referenced under n, in
// depth-first order.
func SubtreePaths(n *Node) []string {
	var out []string
	seen := make(map[string]bool)
	Walk(n, func(c *Node) bool {
		if c.Path != "" && !seen[c.Path] {
			seen[c.Path] = true
			out = append(out, c.Path)
		}
		return true
	})
	return out
}

// Clone deep-copies n, including resolver-computed fields.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Args = n.Args.Clone()
	c.Input = cloneStrings(n.Input)
	c.Output = cloneStrings(n.Output)
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Clone deep-copies t.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := *t
	if t.Export != nil {
		v := *t.Export
		c.Export = &v
	}
	c.Group = cloneStrings(t.Group)
	c.Import = cloneStrings(t.Import)
	if t.Vars != nil {
		c.Vars = make([]VarDecl, len(t.Vars))
		for i, v := range t.Vars {
			v.Value = cloneValue(v.Value)
			v.Default = cloneValue(v.Default)
			v.Options = cloneStrings(v.Options)
			c.Vars[i] = v
		}
	}
	c.Root = t.Root.Clone()
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// cloneValue deep-copies a JSON-decoded value.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}
