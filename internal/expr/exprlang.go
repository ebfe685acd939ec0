package expr

import (
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// ExprLang checks expressions written in the expr-lang dialect.
type ExprLang struct{}

// NewExprLang returns the expr-lang checker.
func NewExprLang() *ExprLang { return &ExprLang{} }

// Check parses src; no environment is needed because nothing is compiled
// against types or evaluated.
func (e *ExprLang) Check(src string) ([]string, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, &SyntaxError{Source: src, Detail: firstLine(err.Error())}
	}
	skip := &skipVisitor{skip: make(map[ast.Node]bool)}
	ast.Walk(&tree.Node, skip)
	v := &identVisitor{ids: newIdentSet(), skip: skip.skip}
	ast.Walk(&tree.Node, v)
	return v.ids.sorted(nil), nil
}

// skipVisitor marks the identifier nodes that are not variable references:
// call targets, and uses of a let-bound name inside its body.
type skipVisitor struct {
	skip map[ast.Node]bool
}

func (v *skipVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			v.skip[id] = true
		}
	case *ast.VariableDeclaratorNode:
		ast.Walk(&n.Expr, &boundVisitor{name: n.Name, skip: v.skip})
	}
}

type boundVisitor struct {
	name string
	skip map[ast.Node]bool
}

func (v *boundVisitor) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok && id.Value == v.name {
		v.skip[id] = true
	}
}

type identVisitor struct {
	ids  *identSet
	skip map[ast.Node]bool
}

func (v *identVisitor) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok && !v.skip[id] {
		v.ids.add(id.Value)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
