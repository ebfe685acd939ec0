// Package expr dry-runs argument expressions: it checks their syntax without
// evaluating them and reports which variable names they reference.
package expr

import (
	"fmt"
	"sort"
	"strings"
)

// Checker parses an expression without side effects.
type Checker interface {
	// Check returns the distinct variable names src references, sorted, or
	// a syntax error.
	Check(src string) ([]string, error)
}

// Dialect names.
const (
	DialectJS   = "js"
	DialectExpr = "expr"
)

// ForDialect returns the checker for a dialect name. The empty name selects
// the JavaScript dialect.
func ForDialect(name string) (Checker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DialectJS, "javascript":
		return NewJS(), nil
	case DialectExpr, "expr-lang":
		return NewExprLang(), nil
	}
	return nil, fmt.Errorf("expr: unknown dialect %q", name)
}

// SyntaxError reports an expression that does not parse.
type SyntaxError struct {
	Source string
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid expression: %s", e.Source)
	}
	return fmt.Sprintf("invalid expression: %s: %s", e.Source, e.Detail)
}

// identSet collects names. Builtins are dropped from the result.
type identSet struct {
	names map[string]bool
}

func newIdentSet() *identSet {
	return &identSet{names: make(map[string]bool)}
}

func (s *identSet) add(name string) {
	if name != "" {
		s.names[name] = true
	}
}

func (s *identSet) sorted(builtins map[string]bool) []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		if builtins[n] {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
