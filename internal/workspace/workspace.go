// Package workspace loads the project descriptor and discovers the tree
// documents of a project.
//
// A descriptor is a JSON (*.b3-workspace, *.json) or YAML (*.yaml, *.yml)
// document with a "settings" object:
//
//	{
//	  "settings": {
//	    "checkExpr": true,
//	    "exprDialect": "js",
//	    "buildScript": "scripts/build.risor",
//	    "nodeDefs": "node-config.json",
//	    "nodeDefsDir": "node-config",
//	    "exclude": ["drafts"]
//	  }
//	}
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Extension is the suffix of descriptor files.
const Extension = ".b3-workspace"

// Default settings.
const (
	DefaultNodeDefs    = "node-config.json"
	DefaultNodeDefsDir = "node-config"
	DefaultDialect     = "js"
)

// Settings are the project options stored in the descriptor.
type Settings struct {
	CheckExpr   bool     `mapstructure:"checkExpr"`
	ExprDialect string   `mapstructure:"exprDialect"`
	BuildScript string   `mapstructure:"buildScript"`
	NodeDefs    string   `mapstructure:"nodeDefs"`
	NodeDefsDir string   `mapstructure:"nodeDefsDir"`
	Exclude     []string `mapstructure:"exclude"`
}

// DefaultSettings returns the settings used when the descriptor omits them.
func DefaultSettings() Settings {
	return Settings{
		CheckExpr:   true,
		ExprDialect: DefaultDialect,
		NodeDefs:    DefaultNodeDefs,
		NodeDefsDir: DefaultNodeDefsDir,
	}
}

// Workspace is a loaded project.
type Workspace struct {
	// Root is the absolute project directory.
	Root string
	// Descriptor is the absolute descriptor path, or "" when the project
	// has none.
	Descriptor string
	Settings   Settings
}

// Load opens a project. path is either a descriptor file or a directory; a
// directory is searched for a descriptor and falls back to default settings
// when there is none.
func Load(path string) (*Workspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	ws := &Workspace{Root: abs, Settings: DefaultSettings()}
	if info.IsDir() {
		desc, err := findDescriptor(abs)
		if err != nil {
			return nil, err
		}
		if desc == "" {
			return ws, nil
		}
		ws.Descriptor = desc
	} else {
		ws.Root = filepath.Dir(abs)
		ws.Descriptor = abs
	}

	data, err := os.ReadFile(ws.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("workspace: read descriptor: %w", err)
	}
	settings, err := Parse(data, ws.Descriptor)
	if err != nil {
		return nil, err
	}
	ws.Settings = settings
	return ws, nil
}

// Parse decodes descriptor content. name selects the format by extension:
// .yaml and .yml are YAML, anything else is JSON.
func Parse(data []byte, name string) (Settings, error) {
	doc := map[string]any{}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Settings{}, fmt.Errorf("workspace: parse %s: %w", filepath.Base(name), err)
		}
	default:
		if len(strings.TrimSpace(string(data))) > 0 {
			if err := json.Unmarshal(data, &doc); err != nil {
				return Settings{}, fmt.Errorf("workspace: parse %s: %w", filepath.Base(name), err)
			}
		}
	}

	s := DefaultSettings()
	raw, ok := doc["settings"]
	if !ok || raw == nil {
		return s, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		Result:           &s,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("workspace: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Settings{}, fmt.Errorf("workspace: settings: %w", err)
	}
	if s.ExprDialect == "" {
		s.ExprDialect = DefaultDialect
	}
	return s, nil
}

// findDescriptor returns the first descriptor in dir by name, or "".
func findDescriptor(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isDescriptorName(e.Name()) {
			found = append(found, e.Name())
		}
	}
	if len(found) == 0 {
		return "", nil
	}
	sort.Strings(found)
	return filepath.Join(dir, found[0]), nil
}

func isDescriptorName(name string) bool {
	for _, suffix := range []string{Extension, Extension + ".json", Extension + ".yaml", Extension + ".yml"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return true
		}
	}
	return false
}

// Abs resolves a project-relative path.
func (w *Workspace) Abs(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.Root, filepath.FromSlash(path))
}

// NodeDefsPath returns the absolute aggregate node definition path.
func (w *Workspace) NodeDefsPath() string { return w.Abs(w.Settings.NodeDefs) }

// NodeDefsDir returns the absolute node definition directory.
func (w *Workspace) NodeDefsDir() string { return w.Abs(w.Settings.NodeDefsDir) }

// BuildScriptPath returns the absolute build script path, or "" when the
// project has none.
func (w *Workspace) BuildScriptPath() string { return w.Abs(w.Settings.BuildScript) }
