package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Counters(t *testing.T) {
	b := New()
	b.FileBuilt()
	b.FileBuilt()
	b.FileSkipped()
	b.Diagnostic("structural")
	b.Diagnostic("structural")
	b.Diagnostic("io")
	b.Finish(250*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(b.filesBuilt))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.filesSkipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.diagnostics.WithLabelValues("structural")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.diagnostics.WithLabelValues("io")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(b.duration))
}

func TestBuild_WriteFile(t *testing.T) {
	b := New()
	b.FileBuilt()
	b.Finish(time.Second, true)

	path := filepath.Join(t.TempDir(), "b3.prom")
	require.NoError(t, b.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "b3_files_built_total 1")
	assert.Contains(t, string(data), "b3_last_build_success 1")
	assert.Contains(t, string(data), "b3_build_duration_seconds_count 1")
}

func TestBuild_NilIsNoop(t *testing.T) {
	var b *Build
	b.FileBuilt()
	b.FileSkipped()
	b.Diagnostic("io")
	b.Finish(time.Second, true)
	assert.Nil(t, b.Registry())
	assert.NoError(t, b.WriteFile(filepath.Join(t.TempDir(), "x.prom")))
}
