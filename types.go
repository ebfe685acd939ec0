package b3

import (
	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/metrics"
	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/runtime"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
	"github.com/zhcmeng/behavior3editor-sub000/internal/workspace"
)

// Public type aliases for the internal types used in the Engine API.
// These are Go type aliases (=) and need no conversion.

type Diagnostic = diag.Diagnostic
type DiagnosticKind = diag.Kind
type Tree = tree.Tree
type Node = tree.Node
type NodeDef = nodedef.NodeDef
type Registry = nodedef.Registry
type Hooks = runtime.Hooks
type BuildEnv = runtime.BuildEnv
type Store = store.Store
type Metrics = metrics.Build
type Workspace = workspace.Workspace
type Settings = workspace.Settings

// Diagnostic kinds.
const (
	Structural = diag.Structural
	Reference  = diag.Reference
	IO         = diag.IO
	Config     = diag.Config
)
