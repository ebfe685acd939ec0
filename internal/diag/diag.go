// Package diag defines the diagnostics produced while resolving, validating
// and building behavior trees. Diagnostics are values, not errors: every
// stage appends to a List and keeps going.
package diag

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// Structural covers unknown node types, wrong child counts, missing
	// arguments or variables and malformed expressions.
	Structural Kind = "structural"
	// Reference covers circular or missing subtree/import references.
	Reference Kind = "reference"
	// IO covers unreadable or unparsable files.
	IO Kind = "io"
	// Config covers failing transform hooks and bad workspace settings.
	Config Kind = "config"
)

// Diagnostic is one reported problem.
type Diagnostic struct {
	Kind     Kind   `json:"kind"`
	Path     string `json:"path,omitempty"`
	NodeID   string `json:"node_id,omitempty"`
	NodeName string `json:"node_name,omitempty"`
	Message  string `json:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Path != "" {
		b.WriteString(d.Path)
		b.WriteString(": ")
	}
	if d.NodeID != "" || d.NodeName != "" {
		fmt.Fprintf(&b, "node %s|%s: ", d.NodeID, d.NodeName)
	}
	b.WriteString(d.Message)
	return b.String()
}

// List accumulates diagnostics. The zero value is ready to use. A List may be
// scoped to a file path, which is stamped on every entry added without one.
type List struct {
	path  string
	items []Diagnostic
}

// NewList returns a List that stamps path on its entries.
func NewList(path string) *List {
	return &List{path: path}
}

// Path returns the path the list is scoped to.
func (l *List) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Add appends d. Adding to a nil List discards d.
func (l *List) Add(d Diagnostic) {
	if l == nil {
		return
	}
	if d.Path == "" {
		d.Path = l.path
	}
	l.items = append(l.items, d)
}

// Addf appends a diagnostic without node information.
func (l *List) Addf(kind Kind, format string, args ...any) {
	l.Add(Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Nodef appends a diagnostic attached to a node.
func (l *List) Nodef(kind Kind, id, name, format string, args ...any) {
	l.Add(Diagnostic{Kind: kind, NodeID: id, NodeName: name, Message: fmt.Sprintf(format, args...)})
}

// Merge appends every entry of other.
func (l *List) Merge(other *List) {
	if l == nil || other == nil {
		return
	}
	l.items = append(l.items, other.items...)
}

// Len returns the number of entries.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Items returns a copy of the entries.
func (l *List) Items() []Diagnostic {
	if l == nil {
		return nil
	}
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// Count returns the number of entries of the given kind.
func (l *List) Count(kind Kind) int {
	if l == nil {
		return 0
	}
	n := 0
	for _, d := range l.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Err folds the list into an error, or nil when empty.
func (l *List) Err() error {
	if l.Len() == 0 {
		return nil
	}
	return &AggregateError{Diagnostics: l.Items()}
}

// AggregateError carries every diagnostic of a failed run.
type AggregateError struct {
	Diagnostics []Diagnostic
}

func (e *AggregateError) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d diagnostics:\n", len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, d)
	}
	return b.String()
}
