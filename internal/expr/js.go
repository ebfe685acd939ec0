package expr

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

var (
	jsLanguage *sitter.Language
	jsOnce     sync.Once
)

func jsGrammar() *sitter.Language {
	jsOnce.Do(func() {
		jsLanguage = javascript.GetLanguage()
	})
	return jsLanguage
}

// jsBuiltins are global names that never refer to tree variables.
var jsBuiltins = map[string]bool{
	"Math":      true,
	"JSON":      true,
	"Number":    true,
	"String":    true,
	"Boolean":   true,
	"Array":     true,
	"Object":    true,
	"NaN":       true,
	"Infinity":  true,
	"undefined": true,
}

// JS checks JavaScript expressions with the tree-sitter javascript grammar.
type JS struct{}

// NewJS returns the JavaScript checker.
func NewJS() *JS { return &JS{} }

// Check parses src as a sequence of expression statements.
func (j *JS) Check(src string) ([]string, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(jsGrammar())

	source := []byte(src)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &SyntaxError{Source: src, Detail: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &SyntaxError{Source: src, Detail: firstErrorText(root, source)}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "expression_statement" && stmt.Type() != "comment" {
			return nil, &SyntaxError{Source: src, Detail: "not an expression: " + stmt.Type()}
		}
	}

	ids := newIdentSet()
	collectJS(root, source, ids, nil)
	return ids.sorted(jsBuiltins), nil
}

// collectJS adds the free identifiers under n. Call targets are skipped
// where they appear, and arrow-function parameters are bound only inside
// the function body.
func collectJS(n *sitter.Node, src []byte, ids *identSet, bound map[string]bool) {
	switch n.Type() {
	case "identifier":
		if name := n.Content(src); !bound[name] {
			ids.add(name)
		}
		return
	case "call_expression":
		fn := n.ChildByFieldName("function")
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if fn != nil && fn.Type() == "identifier" && sameNode(c, fn) {
				continue
			}
			collectJS(c, src, ids, bound)
		}
		return
	case "arrow_function":
		inner := make(map[string]bool, len(bound)+1)
		for k := range bound {
			inner[k] = true
		}
		if p := n.ChildByFieldName("parameter"); p != nil {
			inner[p.Content(src)] = true
		}
		if ps := n.ChildByFieldName("parameters"); ps != nil {
			for i := 0; i < int(ps.NamedChildCount()); i++ {
				if c := ps.NamedChild(i); c.Type() == "identifier" {
					inner[c.Content(src)] = true
				}
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			collectJS(body, src, ids, inner)
		}
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		collectJS(n.Child(i), src, ids, bound)
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// firstErrorText returns the text of the first ERROR or missing node.
func firstErrorText(n *sitter.Node, src []byte) string {
	if n.Type() == "ERROR" || n.IsMissing() {
		if n.IsMissing() {
			return "missing " + n.Type()
		}
		return "unexpected " + strings.TrimSpace(n.Content(src))
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.HasError() {
			if text := firstErrorText(c, src); text != "" {
				return text
			}
		}
	}
	return ""
}
