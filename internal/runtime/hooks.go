package runtime

import (
	"context"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// BuildEnv describes the run a Setup hook is called for.
type BuildEnv struct {
	Workdir   string
	OutputDir string
	Files     []string
	CheckOnly bool
}

// Hooks are the transform points of a build. ProcessTree and ProcessNode
// return false to delete the tree or node. Messages the hooks report go to
// diags; a returned error means the hook itself failed.
type Hooks interface {
	Setup(ctx context.Context, env BuildEnv) error
	ProcessTree(ctx context.Context, t *tree.Tree, path string, diags *diag.List) (*tree.Tree, bool, error)
	ProcessNode(ctx context.Context, n *tree.Node, diags *diag.List) (*tree.Node, bool, error)
	WriteFile(ctx context.Context, path string, t *tree.Tree) error
	Complete(ctx context.Context, status string) error
}

// Build outcomes passed to Complete.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// NopHooks passes everything through unchanged.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) Setup(context.Context, BuildEnv) error { return nil }

func (NopHooks) ProcessTree(_ context.Context, t *tree.Tree, _ string, _ *diag.List) (*tree.Tree, bool, error) {
	return t, true, nil
}

func (NopHooks) ProcessNode(_ context.Context, n *tree.Node, _ *diag.List) (*tree.Node, bool, error) {
	return n, true, nil
}

func (NopHooks) WriteFile(context.Context, string, *tree.Tree) error { return nil }

func (NopHooks) Complete(context.Context, string) error { return nil }
