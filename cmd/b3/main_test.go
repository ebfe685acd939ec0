package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhcmeng/behavior3editor-sub000/internal/diag"
	"github.com/zhcmeng/behavior3editor-sub000/internal/store"
)

const nodeConfig = `[
  {"name": "Sequence", "type": "Composite", "status": ["&success", "|failure", "|running"]},
  {"name": "Wait", "type": "Action", "status": ["success", "running"], "args": [{"name": "time", "type": "float"}]}
]`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files["node-config.json"] = nodeConfig
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagDB, flagFormat, flagLogLevel = "", "text", "error"
	flagOutput, flagForce, flagMetricsFile, flagNoManifest = "build", false, "", false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProjectRoot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	desc := filepath.Join(dir, "game.b3-workspace")
	require.NoError(t, os.WriteFile(desc, []byte("{}"), 0o644))

	got, err := projectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = projectRoot(desc)
	require.NoError(t, err)
	assert.Equal(t, dir, got, "a descriptor resolves to its directory")

	_, err = projectRoot(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("yaml"), `invalid format "yaml"`)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no diagnostics", summarize(nil))
	assert.Equal(t, "1 diagnostic (io: 1)", summarize([]diag.Diagnostic{{Kind: diag.IO}}))
	assert.Equal(t, "3 diagnostics (reference: 1, structural: 2)", summarize([]diag.Diagnostic{
		{Kind: diag.Structural}, {Kind: diag.Reference}, {Kind: diag.Structural},
	}))
}

func TestFormatResultText_PlainWhenNotTerminal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	formatResultText(&buf, CLIResult{Diagnostics: []diag.Diagnostic{
		{Kind: diag.Structural, Path: "a.json", NodeID: "3", NodeName: "Wait", Message: "missing argument time"},
		{Kind: diag.IO, Path: "b.json", Message: "read: denied"},
	}})

	out := buf.String()
	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "3|Wait")
	assert.Contains(t, out, "missing argument time")
	assert.Contains(t, out, "2 diagnostics (io: 1, structural: 1)")
}

func TestLoadReport(t *testing.T) {
	t.Parallel()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate())

	_, err = loadReport(st, "/proj")
	require.ErrorContains(t, err, "no builds recorded")

	now := time.Unix(1700000000, 0)
	b, err := st.BeginBuild(now)
	require.NoError(t, err)
	f := &store.File{Path: "a.json", Hash: "h", BuildID: b.ID, BuiltAt: now, HasErrors: true}
	require.NoError(t, st.RecordFile(f, nil, []store.Diagnostic{
		{Kind: "structural", NodeID: "2", NodeName: "Wait", Message: "missing argument time"},
	}))
	require.NoError(t, st.FinishBuild(b.ID, store.BuildFailure, 1, 0, now))

	result, err := loadReport(st, "/proj")
	require.NoError(t, err)
	assert.True(t, result.HasErrors)
	require.NotNil(t, result.Build)
	assert.Equal(t, b.ID, result.Build.ID)
	assert.Equal(t, 1, result.Build.FilesBuilt)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, diag.Diagnostic{
		Kind: diag.Structural, Path: "a.json", NodeID: "2", NodeName: "Wait", Message: "missing argument time",
	}, result.Diagnostics[0])
}

func TestBuildCommand(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.json": `{"name": "main", "root": {"name": "Sequence", "children": [{"name": "Wait", "args": {"time": 1}}]}}`,
	})

	out, err := execute(t, "build", dir, "--format", "json")
	require.NoError(t, err)

	var result CLIResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "build", result.Command)
	assert.False(t, result.HasErrors)
	assert.Empty(t, result.Diagnostics)
	require.NotNil(t, result.Build)
	assert.Equal(t, store.BuildSuccess, result.Build.Status)
	assert.Equal(t, 1, result.Build.FilesBuilt)
	assert.FileExists(t, filepath.Join(dir, "build", "main.json"))
	assert.FileExists(t, filepath.Join(dir, ".b3", "manifest.db"))

	out, err = execute(t, "report", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no diagnostics")
}

func TestBuildCommand_DiagnosticsExitNonZero(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.json": `{"name": "main", "root": {"name": "Sequence", "children": [{"name": "Wait"}]}}`,
	})
	metricsFile := filepath.Join(t.TempDir(), "b3.prom")

	out, err := execute(t, "build", dir, "--metrics-file", metricsFile)
	require.ErrorIs(t, err, errDiagnostics)
	assert.Contains(t, out, "missing argument time")
	assert.Contains(t, out, "1 diagnostic (structural: 1)")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "b3_files_built_total 1")

	out, err = execute(t, "report", dir)
	require.ErrorIs(t, err, errDiagnostics)
	assert.Contains(t, out, "missing argument time")
}

func TestCheckCommand(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.json": `{"name": "main", "root": {"name": "Sequence", "children": [{"name": "Wait", "args": {"time": 1}}]}}`,
	})
	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no diagnostics")
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	assert.NoFileExists(t, filepath.Join(dir, ".b3", "manifest.db"))
}

func TestReportCommand_NoManifest(t *testing.T) {
	dir := writeProject(t, map[string]string{})
	_, err := execute(t, "report", dir)
	require.ErrorContains(t, err, "no build manifest")
}
