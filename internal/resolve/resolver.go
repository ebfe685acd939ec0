// Package resolve inlines subtree references, numbers nodes, computes their
// reachable outcomes and merges variable declarations across imported and
// referenced files.
//
// A Resolver owns all cached state for one project. It is not safe for
// concurrent use; callers serialize top-level invocations and call Begin at
// the start of each.
package resolve

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhcmeng/behavior3editor-sub000/internal/nodedef"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// Stats counts cache activity since the Resolver was created.
type Stats struct {
	SubtreeHits   int
	SubtreeMisses int
	VarHits       int
	VarMisses     int
}

// Resolver holds the registry, the in-progress guard and the per-file caches
// of one project.
type Resolver struct {
	registry *nodedef.Registry
	workdir  string
	logger   *slog.Logger

	guard    *Guard
	subtrees map[string]*subtreeEntry
	vars     map[string]*varEntry
	env      *Env
	stats    Stats
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for cache and recovery messages.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver. Relative subtree and import paths are resolved
// against workdir.
func New(registry *nodedef.Registry, workdir string, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		workdir:  workdir,
		logger:   slog.Default(),
		guard:    NewGuard(),
		subtrees: make(map[string]*subtreeEntry),
		vars:     make(map[string]*varEntry),
		env:      NewEnv(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin starts a top-level resolve, validate or build invocation by
// clearing the in-progress guard. Caches are kept; they invalidate
// themselves by modification time.
func (r *Resolver) Begin() {
	r.guard.Reset()
}

// Reset drops every cache.
func (r *Resolver) Reset() {
	r.guard.Reset()
	clear(r.subtrees)
	clear(r.vars)
	r.env = NewEnv()
}

// Registry returns the node definition registry.
func (r *Resolver) Registry() *nodedef.Registry { return r.registry }

// Workdir returns the directory relative paths are resolved against.
func (r *Resolver) Workdir() string { return r.workdir }

// Env returns the derived group and variable sets of the last pass.
func (r *Resolver) Env() *Env { return r.env }

// Guard exposes the in-progress stack.
func (r *Resolver) Guard() *Guard { return r.guard }

// Stats returns the cache counters.
func (r *Resolver) Stats() Stats { return r.stats }

// Abs resolves a tree-relative path against the workdir.
func (r *Resolver) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.workdir, filepath.FromSlash(path))
}

// Rel returns path relative to the workdir with forward slashes, or path
// itself if it is outside.
func (r *Resolver) Rel(path string) string {
	rel, err := filepath.Rel(r.workdir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// readCached returns the parsed document at abs, re-reading only when its
// modification time moved.
func (r *Resolver) readCached(abs string) (*tree.Tree, time.Time, error) {
	mtime, err := modTime(abs)
	if err != nil {
		delete(r.subtrees, abs)
		return nil, time.Time{}, err
	}
	if e, ok := r.subtrees[abs]; ok && e.mtime.Equal(mtime) {
		r.stats.SubtreeHits++
		return e.tree, mtime, nil
	}
	r.stats.SubtreeMisses++
	t, err := tree.Read(abs)
	if err != nil {
		delete(r.subtrees, abs)
		return nil, time.Time{}, err
	}
	r.subtrees[abs] = &subtreeEntry{tree: t, mtime: mtime}
	return t, mtime, nil
}

type subtreeEntry struct {
	tree  *tree.Tree
	mtime time.Time
}
