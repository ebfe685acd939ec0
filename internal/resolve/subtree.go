package resolve

import (
	"errors"
	"io/fs"
	"strconv"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/status"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// ResolveTree resolves t in place. path is the file t was read from (used for
// cycle detection); it may be empty for unsaved trees. Subtree references
// are inlined, ids are renumbered depth-first from 1, input/output and
// argument lists are fitted to their schemas and every node gets its
// reachable-outcome flags. Problems are added to diags; a failed branch is
// left unexpanded and its siblings are still resolved.
func (r *Resolver) ResolveTree(t *tree.Tree, path string, diags *diag.List) {
	if t == nil || t.Root == nil {
		return
	}
	if path != "" {
		abs := r.Abs(path)
		if r.guard.Enter(abs) {
			defer r.guard.Leave(abs)
		}
	}
	counter := 0
	r.resolveNode(t.Root, &counter, false, diags)
}

func (r *Resolver) resolveNode(n *tree.Node, counter *int, fromSubtree bool, diags *diag.List) {
	*counter++
	n.ID = strconv.Itoa(*counter)
	n.FromSubtree = fromSubtree

	if n.Path != "" {
		r.resolveRef(n, counter, fromSubtree, diags)
		return
	}
	r.finishNode(n, counter, fromSubtree, diags)
}

// resolveRef inlines the file referenced by n and resolves the spliced
// content while the file is on the guard stack.
func (r *Resolver) resolveRef(n *tree.Node, counter *int, fromSubtree bool, diags *diag.List) {
	n.Children = nil
	abs := r.Abs(n.Path)
	if !r.guard.Enter(abs) {
		diags.Nodef(diag.Reference, n.ID, n.Name, "circular reference: %s", n.Path)
		r.finishNode(n, counter, fromSubtree, diags)
		return
	}
	defer r.guard.Leave(abs)

	sub, mtime, err := r.readCached(abs)
	if err != nil {
		kind := diag.IO
		if errors.Is(err, fs.ErrNotExist) {
			kind = diag.Reference
		}
		diags.Nodef(kind, n.ID, n.Name, "subtree %s: %v", n.Path, err)
		r.logger.Debug("subtree unresolved", "path", abs, "error", err)
		r.finishNode(n, counter, fromSubtree, diags)
		return
	}

	root := sub.Root.Clone()
	n.Name = root.Name
	n.Desc = root.Desc
	n.Args = root.Args
	n.Input = root.Input
	n.Output = root.Output
	n.Children = root.Children
	n.Mtime = mtime
	r.finishNode(n, counter, true, diags)
}

// finishNode fits the node to its definition, resolves its children and
// combines their outcome flags.
func (r *Resolver) finishNode(n *tree.Node, counter *int, childrenFromSubtree bool, diags *diag.List) {
	def := r.registry.Get(n.Name)
	fitNode(n, def)

	var agg status.Aggregate
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		r.resolveNode(c, counter, childrenFromSubtree, diags)
		agg.Add(c.Status)
	}
	n.Status = status.Combine(def.Status, agg)
}

// fitNode pads or trims input, output and args to the definition's schema.
// Unknown definitions leave the node untouched.
func fitNode(n *tree.Node, def *nodedef.NodeDef) {
	if def.IsUnknown() {
		return
	}
	n.Input = fitSlots(n.Input, def.InputSlots())
	n.Output = fitSlots(n.Output, def.OutputSlots())

	if len(def.Args) == 0 {
		n.Args = nil
		return
	}
	var args tree.Args
	for _, a := range def.Args {
		if v, ok := n.Args.Get(a.Name); ok {
			args = append(args, v)
		}
	}
	n.Args = args
}

// fitSlots returns vals sized to the schema. A trailing variadic slot keeps
// any excess values.
func fitSlots(vals []string, slots []nodedef.Slot) []string {
	size := len(slots)
	if size == 0 {
		return nil
	}
	if slots[size-1].Variadic && len(vals) > size {
		return vals
	}
	out := make([]string, size)
	copy(out, vals)
	return out
}
