package b3

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/logging"
	"github.com/zhcmeng/behavior3editor-sub000/internal/resolve"
	"github.com/zhcmeng/behavior3editor-sub000/internal/runtime"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// Build runs the pipeline over every tree of the project and writes the
// results under outputDir (relative to the project root unless absolute).
// hasErrors reports whether any diagnostics were produced; see Diagnostics
// for the details. err is only returned when the run could not start, or
// when ctx was cancelled between files.
func (e *Engine) Build(ctx context.Context, outputDir string) (hasErrors bool, err error) {
	if outputDir == "" {
		return false, errors.New("b3: build: output directory is required")
	}
	return e.run(ctx, e.ws.Abs(outputDir), false)
}

// Check runs the pipeline without writing anything or touching the
// manifest.
func (e *Engine) Check(ctx context.Context) (hasErrors bool, err error) {
	return e.run(ctx, "", true)
}

// fileOutcome is what happened to one candidate file.
type fileOutcome int

const (
	outcomeIgnored fileOutcome = iota // not a tree document
	outcomeBuilt
	outcomeSkipped
)

type runState struct {
	outputDir string
	checkOnly bool
	full      bool
	build     *store.Build
	now       time.Time
}

func (e *Engine) run(ctx context.Context, outputDir string, checkOnly bool) (bool, error) {
	start := time.Now()
	ctx = logging.WithLogger(ctx, e.logger)
	e.diags = diag.NewList("")

	files, err := e.ws.TreeFiles(outputDir)
	if err != nil {
		return false, fmt.Errorf("b3: %w", err)
	}
	rels := make([]string, len(files))
	for i, f := range files {
		rels[i] = e.ws.Rel(f)
	}

	st := &runState{outputDir: outputDir, checkOnly: checkOnly, full: e.force, now: start}
	if e.store != nil && !checkOnly {
		st.build, err = e.store.BeginBuild(start)
		if err != nil {
			return false, fmt.Errorf("b3: %w", err)
		}
		if !st.full && e.inputsChanged() {
			e.logger.Info("build script or node definitions changed, rebuilding everything")
			st.full = true
		}
	}

	if err := e.hooks.Setup(ctx, runtime.BuildEnv{
		Workdir:   e.ws.Root,
		OutputDir: outputDir,
		Files:     rels,
		CheckOnly: checkOnly,
	}); err != nil {
		e.diags.Addf(diag.Config, "build script: onSetup: %v", err)
	}

	built, skipped := 0, 0
	var runErr error
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		fd := diag.NewList(rels[i])
		switch e.processFile(ctx, st, path, rels[i], fd) {
		case outcomeBuilt:
			built++
			e.metrics.FileBuilt()
		case outcomeSkipped:
			skipped++
			e.metrics.FileSkipped()
		}
		e.diags.Merge(fd)
	}

	status := runtime.StatusSuccess
	if e.diags.Len() > 0 || runErr != nil {
		status = runtime.StatusFailure
	}
	if err := e.hooks.Complete(ctx, status); err != nil {
		e.diags.Addf(diag.Config, "build script: onComplete: %v", err)
		status = runtime.StatusFailure
	}

	if st.build != nil {
		e.finishManifest(st.build.ID, status, built, skipped, runErr == nil)
	}

	for _, d := range e.diags.Items() {
		e.metrics.Diagnostic(string(d.Kind))
	}
	elapsed := time.Since(start)
	e.metrics.Finish(elapsed, status == runtime.StatusSuccess)

	e.logger.Info("build finished",
		"files", len(files),
		"built", built,
		"skipped", skipped,
		"diagnostics", e.diags.Len(),
		"check_only", checkOnly,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	if runErr != nil {
		return true, fmt.Errorf("b3: build interrupted: %w", runErr)
	}
	return e.diags.Len() > 0, nil
}

func (e *Engine) finishManifest(buildID, status string, built, skipped int, complete bool) {
	// An interrupted run did not visit every file, so pruning would forget
	// files that still exist.
	if complete {
		if n, err := e.store.PruneFiles(buildID); err != nil {
			e.logger.Warn("manifest prune failed", "error", err)
		} else if n > 0 {
			e.logger.Debug("manifest pruned", "files", n)
		}
		e.storeInputHashes()
	}
	if err := e.store.FinishBuild(buildID, status, built, skipped, time.Now()); err != nil {
		e.logger.Warn("manifest not finalized", "build", buildID, "error", err)
	}
}

// processFile runs the pipeline for one file. Faults are added to fd.
func (e *Engine) processFile(ctx context.Context, st *runState, path, rel string, fd *diag.List) fileOutcome {
	logger := logging.FromContext(ctx).With("path", rel)

	data, err := os.ReadFile(path)
	if err != nil {
		fd.Addf(diag.IO, "read: %v", err)
		e.recordFile(st, rel, "", "", nil, fd)
		return outcomeBuilt
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	t, err := tree.Parse(data)
	if errors.Is(err, tree.ErrNotTree) {
		logger.Debug("not a tree document, ignored")
		return outcomeIgnored
	}

	if e.canSkip(st, rel, hash, fd) {
		logger.Debug("unchanged, skipped")
		return outcomeSkipped
	}

	if err != nil {
		fd.Addf(diag.IO, "%v", err)
		e.recordFile(st, rel, hash, "", nil, fd)
		return outcomeBuilt
	}

	e.resolver.Begin()
	e.resolver.ResolveTree(t, rel, fd)
	prefixIDs(t)

	t = e.applyHooks(ctx, t, rel, fd)
	if t == nil {
		logger.Debug("tree removed by build script")
		e.recordFile(st, rel, hash, "", nil, fd)
		return outcomeBuilt
	}

	scope := e.checkTree(t, rel, fd)

	output := ""
	if !st.checkOnly && t.Exportable() {
		output = e.ws.OutputPath(st.outputDir, path)
		if err := tree.Write(output, t); err != nil {
			fd.Addf(diag.IO, "%v", err)
			output = ""
		} else if err := e.hooks.WriteFile(ctx, output, t); err != nil {
			fd.Addf(diag.Config, "build script: onWriteFile: %v", err)
		}
	}
	e.recordFile(st, rel, hash, output, scope.Deps, fd)

	logger.Debug("file processed", "nodes", tree.Count(t.Root), "vars", len(scope.Vars), "diagnostics", fd.Len())
	return outcomeBuilt
}

// prefixIDs namespaces the ids of t with its prefix.
func prefixIDs(t *tree.Tree) {
	if t.Prefix == "" {
		return
	}
	tree.Walk(t.Root, func(n *tree.Node) bool {
		n.ID = t.Prefix + n.ID
		return true
	})
}

// applyHooks runs the tree hook and then the node hook over every node,
// parents before children. It returns nil when the tree was removed.
func (e *Engine) applyHooks(ctx context.Context, t *tree.Tree, rel string, fd *diag.List) *tree.Tree {
	out, keep, err := e.hooks.ProcessTree(ctx, t, rel, fd)
	if err != nil {
		fd.Addf(diag.Config, "build script: onProcessTree: %v", err)
		out, keep = t, true
	}
	if !keep {
		return nil
	}
	root, keep := e.processNode(ctx, out.Root, fd)
	if !keep {
		return nil
	}
	out.Root = root
	return out
}

func (e *Engine) processNode(ctx context.Context, n *tree.Node, fd *diag.List) (*tree.Node, bool) {
	if n == nil {
		return nil, false
	}
	out, keep, err := e.hooks.ProcessNode(ctx, n, fd)
	if err != nil {
		fd.Nodef(diag.Config, n.ID, n.Name, "build script: onProcessNode: %v", err)
		out, keep = n, true
	}
	if !keep {
		return nil, false
	}
	if len(out.Children) > 0 {
		kept := make([]*tree.Node, 0, len(out.Children))
		for _, c := range out.Children {
			if c2, ok := e.processNode(ctx, c, fd); ok {
				kept = append(kept, c2)
			}
		}
		out.Children = kept
	}
	return out, true
}

// canSkip reports whether the manifest shows rel as current, and replays
// its recorded diagnostics into fd if so.
func (e *Engine) canSkip(st *runState, rel, hash string, fd *diag.List) bool {
	if st.build == nil || st.full {
		return false
	}
	f, err := e.store.FileByPath(rel)
	if err != nil {
		e.logger.Warn("manifest lookup failed", "path", rel, "error", err)
		return false
	}
	if f == nil || f.Hash != hash {
		return false
	}
	if f.Output != "" {
		if _, err := os.Stat(f.Output); err != nil {
			return false
		}
	}
	deps, err := e.store.FileDeps(f.ID)
	if err != nil {
		e.logger.Warn("manifest lookup failed", "path", rel, "error", err)
		return false
	}
	for _, d := range deps {
		info, err := os.Stat(d.Path)
		if err != nil || info.ModTime().UnixNano() != d.Mtime.UnixNano() {
			return false
		}
	}
	recorded, err := e.store.DiagnosticsByFile(f.ID)
	if err != nil {
		e.logger.Warn("manifest lookup failed", "path", rel, "error", err)
		return false
	}
	for _, d := range recorded {
		// A missing subtree or import is not a recorded dependency, so it
		// may have appeared since. IO faults may be transient.
		switch diag.Kind(d.Kind) {
		case diag.Reference, diag.IO:
			return false
		}
	}
	if err := e.store.TouchFile(f.ID, st.build.ID); err != nil {
		e.logger.Warn("manifest update failed", "path", rel, "error", err)
		return false
	}
	for _, d := range recorded {
		fd.Add(diag.Diagnostic{
			Kind:     diag.Kind(d.Kind),
			NodeID:   d.NodeID,
			NodeName: d.NodeName,
			Message:  d.Message,
		})
	}
	return true
}

// recordFile stores the outcome of one file in the manifest.
func (e *Engine) recordFile(st *runState, rel, hash, output string, deps []resolve.Dep, fd *diag.List) {
	if st.build == nil || hash == "" {
		return
	}
	f := &store.File{
		Path:      rel,
		Hash:      hash,
		Output:    output,
		HasErrors: fd.Len() > 0,
		BuildID:   st.build.ID,
		BuiltAt:   st.now,
	}
	fileDeps := make([]store.FileDep, len(deps))
	for i, d := range deps {
		fileDeps[i] = store.FileDep{Path: d.Path, Mtime: d.Mtime}
	}
	items := fd.Items()
	diags := make([]store.Diagnostic, len(items))
	for i, d := range items {
		diags[i] = store.Diagnostic{Kind: string(d.Kind), NodeID: d.NodeID, NodeName: d.NodeName, Message: d.Message}
	}
	if err := e.store.RecordFile(f, fileDeps, diags); err != nil {
		e.logger.Warn("manifest update failed", "path", rel, "error", err)
	}
}
