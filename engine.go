package b3

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/expr"
	"github.com/zhcmeng/behavior3editor-sub000/internal/metrics"
	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/resolve"
	"github.com/zhcmeng/behavior3editor-sub000/internal/runtime"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
	"github.com/zhcmeng/behavior3editor-sub000/internal/validate"
	"github.com/zhcmeng/behavior3editor-sub000/internal/workspace"
)

// Metadata keys in the build manifest.
const (
	metaScriptHash   = "script_hash"
	metaNodeDefsHash = "nodedefs_hash"
)

// Engine builds one project. It owns the resolver caches, so it is not safe
// for concurrent use; serialize calls to Build, Check, ResolveFile and
// ValidateFile.
type Engine struct {
	ws        *workspace.Workspace
	registry  *nodedef.Registry
	resolver  *resolve.Resolver
	validator *validate.Validator
	hooks     runtime.Hooks

	// scriptHash identifies the build script the manifest was written with.
	// Hooks supplied through WithHooks have none.
	scriptHash string

	store   *store.Store
	metrics *metrics.Build
	logger  *slog.Logger
	force   bool

	diags *diag.List
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks replaces the workspace build script with the given hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithStore attaches a build manifest. Builds record every file in it and
// skip files whose inputs are unchanged. The caller owns the store and must
// have migrated it.
func WithStore(s *Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithMetrics records build statistics on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithForce rebuilds every file even when the manifest says it is current.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithRegistry uses reg instead of loading the workspace's node definitions.
func WithRegistry(reg *Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// New opens the project at workspacePath, which is either a workspace
// descriptor or a project directory. It fails when the descriptor, the node
// definitions or the build script cannot be loaded, or when the expression
// dialect is unknown.
func New(workspacePath string, opts ...Option) (*Engine, error) {
	ws, err := workspace.Load(workspacePath)
	if err != nil {
		return nil, fmt.Errorf("b3: %w", err)
	}

	e := &Engine{ws: ws, logger: slog.Default(), diags: diag.NewList("")}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		reg, err := nodedef.Load(e.logger, ws.NodeDefsPath(), ws.NodeDefsDir())
		if err != nil {
			return nil, fmt.Errorf("b3: node definitions: %w", err)
		}
		e.registry = reg
	}
	if e.registry.Len() == 0 {
		e.logger.Warn("no node definitions found", "file", ws.NodeDefsPath(), "dir", ws.NodeDefsDir())
	}

	checker, err := expr.ForDialect(ws.Settings.ExprDialect)
	if err != nil {
		return nil, fmt.Errorf("b3: %w", err)
	}

	if e.hooks == nil {
		e.hooks, e.scriptHash, err = e.loadBuildScript()
		if err != nil {
			return nil, err
		}
	}

	e.resolver = resolve.New(e.registry, ws.Root, resolve.WithLogger(e.logger))
	e.validator = validate.New(e.registry, e.resolver.Env(),
		validate.WithChecker(checker),
		validate.WithExprCheck(ws.Settings.CheckExpr),
	)
	return e, nil
}

// loadBuildScript loads the workspace build script, or returns NopHooks when
// there is none.
func (e *Engine) loadBuildScript() (runtime.Hooks, string, error) {
	path := e.ws.BuildScriptPath()
	if path == "" {
		return runtime.NopHooks{}, "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("b3: build script: %w", err)
	}
	h, err := runtime.LoadScript(path,
		runtime.WithRegistry(e.registry),
		runtime.WithLogger(e.logger),
	)
	if err != nil {
		return nil, "", fmt.Errorf("b3: %w", err)
	}
	return h, fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// Workspace returns the loaded project.
func (e *Engine) Workspace() *Workspace { return e.ws }

// Registry returns the node definitions in use.
func (e *Engine) Registry() *Registry { return e.registry }

// Diagnostics returns the diagnostics of the last Build, Check,
// ResolveFile or ValidateFile call.
func (e *Engine) Diagnostics() []Diagnostic { return e.diags.Items() }

// inputsChanged reports whether the build script or the node definitions
// differ from those the manifest was built with. It returns true when the
// manifest has no record of them.
func (e *Engine) inputsChanged() bool {
	for key, current := range e.inputHashes() {
		stored, err := e.store.GetMetadata(key)
		if err != nil || stored != current {
			return true
		}
	}
	return false
}

func (e *Engine) storeInputHashes() {
	for key, v := range e.inputHashes() {
		if err := e.store.SetMetadata(key, v); err != nil {
			e.logger.Warn("manifest metadata not saved", "key", key, "error", err)
		}
	}
}

func (e *Engine) inputHashes() map[string]string {
	return map[string]string{
		metaScriptHash:   e.scriptHash,
		metaNodeDefsHash: e.registry.Fingerprint(),
	}
}

// ResolveFile reads the tree at path and resolves its subtrees, ids and
// outcome flags. No hooks run and nothing is validated. path is absolute or
// relative to the project root.
func (e *Engine) ResolveFile(path string) (*Tree, error) {
	abs := e.ws.Abs(path)
	rel := e.ws.Rel(abs)
	e.diags = diag.NewList("")
	t, err := tree.Read(abs)
	if err != nil {
		return nil, fmt.Errorf("b3: %w", err)
	}
	fd := diag.NewList(rel)
	e.resolver.Begin()
	e.resolver.ResolveTree(t, rel, fd)
	e.diags.Merge(fd)
	return t, nil
}

// ValidateFile resolves and validates the tree at path and reports whether
// it is free of diagnostics. Details are available from Diagnostics.
func (e *Engine) ValidateFile(path string) (bool, error) {
	abs := e.ws.Abs(path)
	rel := e.ws.Rel(abs)
	e.diags = diag.NewList("")
	t, err := tree.Read(abs)
	if err != nil {
		return false, fmt.Errorf("b3: %w", err)
	}
	fd := diag.NewList(rel)
	e.resolver.Begin()
	e.resolver.ResolveTree(t, rel, fd)
	e.checkTree(t, rel, fd)
	e.diags.Merge(fd)
	return fd.Len() == 0, nil
}

// checkTree merges the tree's variables into the environment and validates
// it. It returns the merged scope for the manifest.
func (e *Engine) checkTree(t *tree.Tree, rel string, fd *diag.List) resolve.Scope {
	scope := e.resolver.TreeVars(t, rel, fd)
	if e.resolver.Env().Update(t.Group, scope.Vars) {
		e.logger.Debug("environment changed", "path", rel, "groups", len(t.Group), "vars", len(scope.Vars))
	}
	e.validator.ValidateTree(t, fd)
	return scope
}
