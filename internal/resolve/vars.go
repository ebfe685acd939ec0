package resolve

import (
	"errors"
	"io/fs"
	"time"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/tree"
)

// Dep is one transitive dependency of a file with the modification time it
// had when the dependent's cache entry was built.
type Dep struct {
	Path  string
	Mtime time.Time
}

// Scope is the merged variable set visible to a tree and the files it was
// merged from.
type Scope struct {
	Vars []tree.VarDecl
	Deps []Dep
}

// Names returns the variable names in order.
func (s Scope) Names() []string {
	out := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		out[i] = v.Name
	}
	return out
}

type varEntry struct {
	vars     []tree.VarDecl
	deps     []Dep
	mtime    time.Time
	problems []diag.Diagnostic
	// cut holds the files that were skipped because they were still in
	// progress. Entries with a non-empty cut are missing those files' vars
	// and are never cached.
	cut map[string]bool
}

// TreeVars merges the variables visible to t: its own declarations, then
// those of every imported file (transitively), then those of every subtree
// file referenced anywhere in t. Pass the resolved tree so that nested
// subtree references are found. Names are unique; the first declaration
// wins.
func (r *Resolver) TreeVars(t *tree.Tree, path string, diags *diag.List) Scope {
	if t == nil {
		return Scope{}
	}
	if path != "" {
		abs := r.Abs(path)
		if r.guard.Enter(abs) {
			defer r.guard.Leave(abs)
		}
	}
	set := newVarSet()
	set.add(t.Vars)
	deps := newDepSet()
	for _, imp := range t.Import {
		r.mergeFile(imp, set, deps, nil, diags)
	}
	// Broken subtree references are reported by ResolveTree.
	for _, sp := range tree.SubtreePaths(t.Root) {
		r.mergeFile(sp, set, deps, nil, nil)
	}
	return Scope{Vars: set.list(), Deps: deps.list()}
}

// Deps returns the transitive dependencies of the file at path with their
// recorded modification times, building its cache entry if needed. The file
// itself is not included.
func (r *Resolver) Deps(path string) []Dep {
	e := r.fileVars(r.Abs(path), path, nil)
	if e == nil {
		return nil
	}
	return append([]Dep(nil), e.deps...)
}

// mergeFile adds the vars and deps of rel. Files still in progress are
// noted in cut. A file that exists but cannot be read or parsed is still a
// dependency, so that fixing it invalidates its dependents.
func (r *Resolver) mergeFile(rel string, set *varSet, deps *depSet, cut map[string]bool, diags *diag.List) {
	abs := r.Abs(rel)
	if r.guard.Active(abs) {
		if cut != nil {
			cut[abs] = true
		}
		return
	}
	e := r.fileVars(abs, rel, diags)
	if e == nil {
		if mtime, err := modTime(abs); err == nil {
			deps.add(Dep{Path: abs, Mtime: mtime})
		}
		return
	}
	set.add(e.vars)
	deps.add(Dep{Path: abs, Mtime: e.mtime})
	deps.add(e.deps...)
	if cut != nil {
		for p := range e.cut {
			cut[p] = true
		}
	}
}

// fileVars returns the cached entry for abs, rebuilding it when stale. Files
// on the guard stack are skipped and yield nil.
func (r *Resolver) fileVars(abs, rel string, diags *diag.List) *varEntry {
	if r.guard.Active(abs) {
		return nil
	}
	mtime, err := modTime(abs)
	if err != nil {
		delete(r.vars, abs)
		kind := diag.IO
		if errors.Is(err, fs.ErrNotExist) {
			kind = diag.Reference
		}
		diags.Addf(kind, "import %s: %v", rel, err)
		return nil
	}
	if e, ok := r.vars[abs]; ok && !stale(e, mtime) {
		r.stats.VarHits++
		for _, p := range e.problems {
			diags.Add(p)
		}
		return e
	}
	r.stats.VarMisses++

	r.guard.Enter(abs)
	defer r.guard.Leave(abs)

	t, _, err := r.readCached(abs)
	if err != nil {
		delete(r.vars, abs)
		diags.Addf(diag.IO, "import %s: %v", rel, err)
		return nil
	}
	// Problems are recorded without a path so that replaying them on a
	// cache hit stamps the caller's file.
	local := diag.NewList("")
	set := newVarSet()
	set.add(t.Vars)
	deps := newDepSet()
	cut := make(map[string]bool)
	for _, imp := range t.Import {
		r.mergeFile(imp, set, deps, cut, local)
	}
	// Broken subtree references are reported by ResolveTree.
	for _, sp := range tree.SubtreePaths(t.Root) {
		r.mergeFile(sp, set, deps, cut, nil)
	}
	// A cycle back to this file is closed here: its vars are already in set.
	delete(cut, abs)

	e := &varEntry{vars: set.list(), deps: deps.list(), mtime: mtime, problems: local.Items(), cut: cut}
	for _, p := range e.problems {
		diags.Add(p)
	}
	if len(cut) > 0 {
		delete(r.vars, abs)
		r.logger.Debug("variables incomplete, not cached", "path", abs, "pending", len(cut))
		return e
	}
	r.vars[abs] = e
	r.logger.Debug("variables cached", "path", abs, "vars", len(e.vars), "deps", len(e.deps))
	return e
}

// stale reports whether the file or any of its recorded dependencies has
// been modified after the entry was built.
func stale(e *varEntry, mtime time.Time) bool {
	if mtime.After(e.mtime) {
		return true
	}
	for _, d := range e.deps {
		cur, err := modTime(d.Path)
		if err != nil || cur.After(d.Mtime) {
			return true
		}
	}
	return false
}

type varSet struct {
	seen map[string]bool
	vars []tree.VarDecl
}

func newVarSet() *varSet {
	return &varSet{seen: make(map[string]bool)}
}

func (s *varSet) add(vars []tree.VarDecl) {
	for _, v := range vars {
		if v.Name == "" || s.seen[v.Name] {
			continue
		}
		s.seen[v.Name] = true
		s.vars = append(s.vars, v)
	}
}

func (s *varSet) list() []tree.VarDecl { return s.vars }

type depSet struct {
	seen map[string]bool
	deps []Dep
}

func newDepSet() *depSet {
	return &depSet{seen: make(map[string]bool)}
}

func (s *depSet) add(deps ...Dep) {
	for _, d := range deps {
		if s.seen[d.Path] {
			continue
		}
		s.seen[d.Path] = true
		s.deps = append(s.deps, d)
	}
}

func (s *depSet) list() []Dep { return s.deps }
