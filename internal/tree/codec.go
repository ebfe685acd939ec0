package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrNotTree is returned by Parse for valid JSON documents that are not an
// object with a root node.
var ErrNotTree = errors.New("tree: document has no root node")

// Parse decodes a tree document.
func Parse(data []byte) (*Tree, error) {
	if !isObject(data) && json.Valid(data) {
		return nil, ErrNotTree
	}
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("tree: parse: %w", err)
	}
	if t.Root == nil {
		return nil, ErrNotTree
	}
	return &t, nil
}

func isObject(data []byte) bool {
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '{'
}

// Read loads and decodes the tree document at path.
func Read(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tree: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Marshal encodes t with only its literal, editable fields: children of
// subtree references are left out because they live in the referenced file.
func Marshal(t *Tree) ([]byte, error) {
	out := *t
	out.Root = Literal(t.Root)
	if out.Group == nil {
		out.Group = []string{}
	}
	if out.Import == nil {
		out.Import = []string{}
	}
	if out.Vars == nil {
		out.Vars = []VarDecl{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("tree: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// Write encodes t to path, creating parent directories as needed.
func Write(path string, t *Tree) error {
	data, err := Marshal(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tree: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("tree: write %s: %w", path, err)
	}
	return nil
}

// Literal returns a copy of n without subtree-inlined children.
func Literal(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Args = n.Args.Clone()
	c.Input = cloneStrings(n.Input)
	c.Output = cloneStrings(n.Output)
	c.Children = nil
	if n.Path == "" && len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = Literal(child)
		}
	}
	return &c
}

// UnmarshalJSON accepts numeric ids written by older editors.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.ID = ""
	raw := bytes.TrimSpace(aux.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		return json.Unmarshal(raw, &n.ID)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		n.ID = strconv.FormatInt(i, 10)
		return nil
	}
	n.ID = num.String()
	return nil
}
