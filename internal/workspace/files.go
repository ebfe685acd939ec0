package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never searched for trees.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// TreeFiles returns the absolute paths of every candidate tree document
// under the project root, in lexical order. Hidden directories, excluded
// directories, outputDir (when inside the root), the node definition sources
// and the descriptor are skipped. Candidates are *.json files; callers still
// have to reject documents without a root node.
func (w *Workspace) TreeFiles(outputDir string) ([]string, error) {
	skip := make(map[string]bool)
	for _, p := range []string{outputDir, w.NodeDefsDir(), w.NodeDefsPath(), w.Descriptor} {
		if p != "" {
			skip[w.Abs(p)] = true
		}
	}
	excluded := make(map[string]bool, len(w.Settings.Exclude))
	for _, name := range w.Settings.Exclude {
		excluded[filepath.Clean(filepath.FromSlash(name))] = true
	}

	var paths []string
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == w.Root {
				return nil
			}
			name := d.Name()
			rel, _ := filepath.Rel(w.Root, path)
			if strings.HasPrefix(name, ".") || skipDirs[name] || excluded[name] || excluded[rel] || skip[path] {
				return filepath.SkipDir
			}
			return nil
		}
		if skip[path] || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		if isDescriptorName(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: walk %s: %w", w.Root, err)
	}
	return paths, nil
}

// Rel returns path relative to the root with forward slashes.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// OutputPath mirrors the project-relative location of src under outputDir.
func (w *Workspace) OutputPath(outputDir, src string) string {
	return filepath.Join(w.Abs(outputDir), filepath.FromSlash(w.Rel(src)))
}
