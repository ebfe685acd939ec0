package nodedef

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry is a read-only lookup table of node types.
type Registry struct {
	defs  map[string]*NodeDef
	names []string
}

// FromDefs builds a registry from in-memory definitions. Invalid entries are
// dropped the same way Load drops them.
func FromDefs(defs ...NodeDef) *Registry {
	r := &Registry{defs: make(map[string]*NodeDef, len(defs))}
	for i := range defs {
		d := defs[i]
		d.Args = append([]ArgDef(nil), d.Args...)
		if err := check(&d); err != nil {
			continue
		}
		r.add(&d)
	}
	sort.Strings(r.names)
	return r
}

// Load reads node definitions. The directory form (one JSON object per
// .json file under dirPath) takes precedence when it yields at least one
// valid entry; otherwise the aggregate document at aggregatePath is used.
// Either path may be empty or missing. Rejected entries and unreadable files
// are logged and skipped. An error is returned only when the aggregate
// document exists but cannot be parsed and the directory form produced
// nothing.
func Load(logger *slog.Logger, aggregatePath, dirPath string) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dirPath != "" {
		r := loadDir(logger, dirPath)
		if len(r.defs) > 0 {
			logger.Debug("node definitions loaded", "dir", dirPath, "count", len(r.defs))
			return r, nil
		}
	}

	r := &Registry{defs: make(map[string]*NodeDef)}
	if aggregatePath == "" {
		return r, nil
	}
	data, err := os.ReadFile(aggregatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return r, fmt.Errorf("nodedef: read %s: %w", aggregatePath, err)
	}
	raws, err := decodeAggregate(data)
	if err != nil {
		return r, fmt.Errorf("nodedef: parse %s: %w", aggregatePath, err)
	}
	for i, raw := range raws {
		var d NodeDef
		if err := json.Unmarshal(raw, &d); err != nil {
			logger.Warn("node definition rejected", "path", aggregatePath, "index", i, "error", err)
			continue
		}
		if err := check(&d); err != nil {
			logger.Warn("node definition rejected", "path", aggregatePath, "index", i, "error", err)
			continue
		}
		if r.add(&d) {
			logger.Warn("node definition replaced", "path", aggregatePath, "index", i, "name", d.Name)
		}
	}
	sort.Strings(r.names)
	logger.Debug("node definitions loaded", "path", aggregatePath, "count", len(r.defs))
	return r, nil
}

// decodeAggregate accepts either a bare array or {"nodes": [...]}.
func decodeAggregate(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Nodes []json.RawMessage `json:"nodes"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		return wrapper.Nodes, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	return raws, nil
}

func loadDir(logger *slog.Logger, dir string) *Registry {
	r := &Registry{defs: make(map[string]*NodeDef)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("node definition directory unreadable", "dir", dir, "error", err)
		}
		return r
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("node definition unreadable", "path", path, "error", err)
			continue
		}
		var d NodeDef
		if err := json.Unmarshal(data, &d); err != nil {
			logger.Warn("node definition rejected", "path", path, "error", err)
			continue
		}
		if err := check(&d); err != nil {
			logger.Warn("node definition rejected", "path", path, "error", err)
			continue
		}
		if r.add(&d) {
			logger.Warn("node definition replaced", "path", path, "name", d.Name)
		}
	}
	sort.Strings(r.names)
	return r
}

func check(d *NodeDef) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("missing name")
	}
	if strings.TrimSpace(string(d.Type)) == "" {
		return fmt.Errorf("%s: missing type", d.Name)
	}
	return nil
}

// add registers d, replacing any earlier definition of the same name, and
// reports whether it did. Callers sort names once loading is done.
func (r *Registry) add(d *NodeDef) (replaced bool) {
	d.prepare()
	_, replaced = r.defs[d.Name]
	if !replaced {
		r.names = append(r.names, d.Name)
	}
	r.defs[d.Name] = d
	return replaced
}

// Get returns the definition for name, or Unknown.
func (r *Registry) Get(name string) *NodeDef {
	if r != nil {
		if d, ok := r.defs[name]; ok {
			return d
		}
	}
	return Unknown
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.defs[name]
	return ok
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.defs)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Fingerprint hashes the registry contents. Two registries with the same
// definitions have the same fingerprint regardless of load order.
func (r *Registry) Fingerprint() string {
	h := sha256.New()
	for _, name := range r.Names() {
		data, _ := json.Marshal(r.defs[name])
		h.Write(data)
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
