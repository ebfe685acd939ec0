package nodedef

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhcmeng/behavior3editor-sub000/internal/logging"
)

const aggregateDoc = `[
  {"name": "Sequence", "type": "Composite", "status": ["&success", "|failure", "|running"]},
  {"name": "Log", "type": "Action", "status": ["success"], "args": [{"name": "message", "type": "string"}]},
  {"name": "", "type": "Action"},
  {"name": "NoType"}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Aggregate(t *testing.T) {
	dir := t.TempDir()
	agg := filepath.Join(dir, "node-config.json")
	writeFile(t, agg, aggregateDoc)

	r, err := Load(logging.NewNop(), agg, filepath.Join(dir, "missing"))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"Log", "Sequence"}, r.Names())
	assert.True(t, r.Has("Sequence"))
	assert.False(t, r.Has("NoType"))
}

func TestLoad_AggregateWrapped(t *testing.T) {
	dir := t.TempDir()
	agg := filepath.Join(dir, "node-config.json")
	writeFile(t, agg, `{"nodes": [{"name": "Wait", "type": "Action"}]}`)

	r, err := Load(logging.NewNop(), agg, "")
	require.NoError(t, err)
	assert.True(t, r.Has("Wait"))
}

func TestLoad_DirectoryWins(t *testing.T) {
	dir := t.TempDir()
	agg := filepath.Join(dir, "node-config.json")
	writeFile(t, agg, aggregateDoc)
	defs := filepath.Join(dir, "node-config")
	writeFile(t, filepath.Join(defs, "wait.json"), `{"name": "Wait", "type": "Action", "status": ["success", "running"]}`)
	writeFile(t, filepath.Join(defs, "broken.json"), `{not json`)
	writeFile(t, filepath.Join(defs, "readme.txt"), `ignored`)

	r, err := Load(logging.NewNop(), agg, defs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Wait"}, r.Names())
}

func TestLoad_EmptyDirectoryFallsBack(t *testing.T) {
	dir := t.TempDir()
	agg := filepath.Join(dir, "node-config.json")
	writeFile(t, agg, aggregateDoc)
	defs := filepath.Join(dir, "node-config")
	writeFile(t, filepath.Join(defs, "bad.json"), `{"name": "Bad"}`)

	r, err := Load(logging.NewNop(), agg, defs)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestLoad_MissingSources(t *testing.T) {
	r, err := Load(logging.NewNop(), filepath.Join(t.TempDir(), "nope.json"), "")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestLoad_UnparsableAggregate(t *testing.T) {
	dir := t.TempDir()
	agg := filepath.Join(dir, "node-config.json")
	writeFile(t, agg, `[{`)

	r, err := Load(logging.NewNop(), agg, "")
	require.Error(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
}

func TestGet_UnknownSentinel(t *testing.T) {
	r := FromDefs(NodeDef{Name: "Log", Type: Action})

	d := r.Get("Missing")
	assert.True(t, d.IsUnknown())
	assert.Same(t, Unknown, d)
	assert.Equal(t, 0, d.Children())
	assert.Empty(t, d.Args)

	assert.False(t, r.Get("Log").IsUnknown())

	var nilReg *Registry
	assert.True(t, nilReg.Get("Log").IsUnknown())
}

func TestChildren_Defaults(t *testing.T) {
	three := 3
	r := FromDefs(
		NodeDef{Name: "Seq", Type: Composite},
		NodeDef{Name: "Inv", Type: Decorator},
		NodeDef{Name: "Act", Type: Action},
		NodeDef{Name: "Fixed", Type: Composite, ChildCount: &three},
	)
	assert.True(t, r.Get("Seq").IsUnbounded())
	assert.Equal(t, 1, r.Get("Inv").Children())
	assert.Equal(t, 0, r.Get("Act").Children())
	assert.Equal(t, 3, r.Get("Fixed").Children())
}

func TestParseArgType(t *testing.T) {
	tests := []struct {
		in       string
		kind     ValueKind
		array    bool
		optional bool
	}{
		{"int", KindInt, false, false},
		{"int?", KindInt, false, true},
		{"float[]", KindFloat, true, false},
		{"string[]?", KindString, true, true},
		{"enum", KindString, false, false},
		{"code?", KindExpr, false, true},
		{"json", KindJSON, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kind, array, optional := ParseArgType(tt.in)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.array, array)
			assert.Equal(t, tt.optional, optional)
		})
	}
}

func TestParseSlot(t *testing.T) {
	assert.Equal(t, Slot{Name: "target"}, ParseSlot("target"))
	assert.Equal(t, Slot{Name: "target", Optional: true}, ParseSlot("target?"))
	assert.Equal(t, Slot{Name: "rest", Variadic: true}, ParseSlot("rest..."))
}

func TestPrepare_FoldsSuffixes(t *testing.T) {
	r := FromDefs(NodeDef{
		Name:   "Check",
		Type:   Condition,
		Input:  []string{"a", "b?"},
		Output: []string{"out..."},
		Args:   []ArgDef{{Name: "n", Type: "int[]?"}},
	})
	d := r.Get("Check")
	require.Len(t, d.InputSlots(), 2)
	assert.True(t, d.InputSlots()[1].Optional)
	assert.True(t, d.OutputSlots()[0].Variadic)

	a, ok := d.Arg("n")
	require.True(t, ok)
	assert.Equal(t, KindInt, a.Kind)
	assert.True(t, a.Array)
	assert.True(t, a.Optional)

	_, ok = d.Arg("missing")
	assert.False(t, ok)
}

func TestAllowsOption(t *testing.T) {
	a := ArgDef{Options: []Option{{Name: "A", Value: "a"}, {Name: "One", Value: float64(1)}}}
	assert.True(t, a.HasOptions())
	assert.True(t, a.AllowsOption("a"))
	assert.True(t, a.AllowsOption(1))
	assert.False(t, a.AllowsOption("c"))
	assert.False(t, a.AllowsOption(map[string]any{"x": 1}))
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := FromDefs(NodeDef{Name: "A", Type: Action}, NodeDef{Name: "B", Type: Action})
	b := FromDefs(NodeDef{Name: "B", Type: Action}, NodeDef{Name: "A", Type: Action})
	c := FromDefs(NodeDef{Name: "A", Type: Action})
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestLoad_DuplicateNameIsLoggedAndLastWins(t *testing.T) {
	dir := t.TempDir()
	agg := filepath.Join(dir, "node-config.json")
	writeFile(t, agg, `[
  {"name": "Wait", "type": "Action", "status": ["success"]},
  {"name": "Log", "type": "Action"},
  {"name": "Wait", "type": "Action", "status": ["running"]}
]`)
	var buf bytes.Buffer

	r, err := Load(logging.NewWriter(&buf, slog.LevelWarn), agg, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Log", "Wait"}, r.Names())
	assert.Equal(t, []string{"running"}, r.Get("Wait").Status)
	assert.Contains(t, buf.String(), "node definition replaced")
	assert.Contains(t, buf.String(), "name=Wait")
}
