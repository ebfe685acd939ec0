// Package runtime runs user build scripts written in Risor. A script may
// define any of the functions onSetup, onProcessTree, onProcessNode,
// onWriteFile and onComplete; the build calls each one at its point in the
// pipeline. Undefined functions are skipped.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

const (
	hookSetup       = "onSetup"
	hookProcessTree = "onProcessTree"
	hookProcessNode = "onProcessNode"
	hookWriteFile   = "onWriteFile"
	hookComplete    = "onComplete"
)

var hookDecl = regexp.MustCompile(`(?m)^\s*func\s+(on[A-Z][A-Za-z]*)\s*\(`)

// ScriptHooks implements Hooks with a Risor script. The script is evaluated
// afresh for every call, so hooks cannot keep state between calls.
type ScriptHooks struct {
	source     string
	label      string
	defined    map[string]bool
	scriptsDir string
	fsys       fs.FS
	registry   *nodedef.Registry
	logger     *slog.Logger
}

var _ Hooks = (*ScriptHooks)(nil)

// ScriptOption configures ScriptHooks.
type ScriptOption func(*ScriptHooks)

// WithScriptFS resolves Risor import statements against fsys instead of the
// script's directory.
func WithScriptFS(fsys fs.FS) ScriptOption {
	return func(h *ScriptHooks) {
		h.fsys = fsys
	}
}

// WithRegistry exposes node definitions to scripts through node_def.
func WithRegistry(reg *nodedef.Registry) ScriptOption {
	return func(h *ScriptHooks) {
		h.registry = reg
	}
}

// WithLogger sets the logger behind the script's log global.
func WithLogger(logger *slog.Logger) ScriptOption {
	return func(h *ScriptHooks) {
		h.logger = logger
	}
}

// NewScriptHooks wraps Risor source. label names the script in errors.
func NewScriptHooks(source, label string, opts ...ScriptOption) *ScriptHooks {
	h := &ScriptHooks{
		source:  source,
		label:   label,
		defined: make(map[string]bool),
		logger:  slog.Default(),
	}
	for _, m := range hookDecl.FindAllStringSubmatch(source, -1) {
		h.defined[m[1]] = true
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LoadScript reads a build script from disk. Imports inside the script are
// resolved relative to its directory.
func LoadScript(path string, opts ...ScriptOption) (*ScriptHooks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runtime: loading script %s: %w", path, err)
	}
	h := NewScriptHooks(string(data), path, opts...)
	h.scriptsDir = filepath.Dir(path)
	return h, nil
}

// Defines reports whether the script declares the named hook function.
func (h *ScriptHooks) Defines(name string) bool { return h.defined[name] }

func (h *ScriptHooks) Setup(ctx context.Context, env BuildEnv) error {
	files := make([]any, len(env.Files))
	for i, f := range env.Files {
		files[i] = f
	}
	arg := map[string]any{
		"workdir":    env.Workdir,
		"output":     env.OutputDir,
		"files":      files,
		"check_only": env.CheckOnly,
	}
	_, err := h.call(ctx, hookSetup, []hookArg{{"hook_env", toObject(arg)}})
	return err
}

func (h *ScriptHooks) ProcessTree(ctx context.Context, t *tree.Tree, path string, diags *diag.List) (*tree.Tree, bool, error) {
	if !h.defined[hookProcessTree] {
		return t, true, nil
	}
	m, err := treeToMap(t)
	if err != nil {
		return t, true, err
	}
	errs := object.NewList(nil)
	res, err := h.call(ctx, hookProcessTree, []hookArg{
		{"hook_tree", toObject(m)},
		{"hook_path", object.NewString(path)},
		{"hook_errors", errs},
	})
	reportErrors(errs, diags)
	if err != nil {
		return t, true, err
	}
	if isNil(res) {
		return nil, false, nil
	}
	out, err := treeFromObject(res)
	if err != nil {
		return t, true, fmt.Errorf("runtime: %s: %w", hookProcessTree, err)
	}
	restoreComputed(t.Root, out.Root)
	return out, true, nil
}

func (h *ScriptHooks) ProcessNode(ctx context.Context, n *tree.Node, diags *diag.List) (*tree.Node, bool, error) {
	if !h.defined[hookProcessNode] {
		return n, true, nil
	}
	m, err := nodeToMap(n)
	if err != nil {
		return n, true, err
	}
	errs := object.NewList(nil)
	res, err := h.call(ctx, hookProcessNode, []hookArg{
		{"hook_node", toObject(m)},
		{"hook_errors", errs},
	})
	reportErrors(errs, diags)
	if err != nil {
		return n, true, err
	}
	if isNil(res) {
		return nil, false, nil
	}
	out, err := nodeFromObject(res)
	if err != nil {
		return n, true, fmt.Errorf("runtime: %s: %w", hookProcessNode, err)
	}
	out.Args = keepArgOrder(n.Args, out.Args)
	out.Children = n.Children
	out.Status = n.Status
	out.Mtime = n.Mtime
	out.FromSubtree = n.FromSubtree
	return out, true, nil
}

func (h *ScriptHooks) WriteFile(ctx context.Context, path string, t *tree.Tree) error {
	if !h.defined[hookWriteFile] {
		return nil
	}
	m, err := treeToMap(t)
	if err != nil {
		return err
	}
	_, err = h.call(ctx, hookWriteFile, []hookArg{
		{"hook_path", object.NewString(path)},
		{"hook_tree", toObject(m)},
	})
	return err
}

func (h *ScriptHooks) Complete(ctx context.Context, status string) error {
	_, err := h.call(ctx, hookComplete, []hookArg{{"hook_status", object.NewString(status)}})
	return err
}

type hookArg struct {
	name  string
	value object.Object
}

// call evaluates the script followed by a call of the named hook and returns
// the hook's result. It returns (nil, nil) when the hook is not defined.
// Panics inside the VM are returned as errors.
func (h *ScriptHooks) call(ctx context.Context, hook string, args []hookArg) (res object.Object, err error) {
	if !h.defined[hook] {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime: script %s: %s panicked: %v", h.label, hook, r)
		}
	}()

	globals := h.buildGlobals()
	names := make([]string, len(args))
	for i, a := range args {
		globals[a.name] = a.value
		names[i] = a.name
	}
	src := h.source + "\n" + hook + "(" + strings.Join(names, ", ") + ")\n"

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := h.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	res, err = risor.Eval(ctx, src, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %s: %w", h.label, hook, err)
	}
	if e, ok := res.(*object.Error); ok {
		return nil, fmt.Errorf("runtime: script %s: %s: %w", h.label, hook, e.Value())
	}
	return res, nil
}

// buildImporter returns a Risor importer for the script's own modules, or
// nil when the script has no directory.
func (h *ScriptHooks) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if h.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    h.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if h.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   h.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// buildGlobals constructs the host globals every hook sees.
func (h *ScriptHooks) buildGlobals() map[string]any {
	return map[string]any{
		"log":      mustProxy(&logObject{logger: h.logger.With("script", h.label)}),
		"node_def": makeNodeDefFn(h.registry),
	}
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}

// reportErrors moves the messages a hook appended to its errors list into
// diags.
func reportErrors(errs *object.List, diags *diag.List) {
	for _, item := range errs.Value() {
		msg := item.Inspect()
		if s, ok := item.(*object.String); ok {
			msg = s.Value()
		}
		diags.Addf(diag.Config, "build script: %s", msg)
	}
}
