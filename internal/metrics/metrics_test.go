package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcheck/internal/healthcheck"
)

func sampleRun() *healthcheck.RunResult {
	return &healthcheck.RunResult{
		RunID:    "run-7",
		EndTime:  time.Unix(1772357400, 0),
		Duration: 2 * time.Second,
		Suites: []healthcheck.SuiteResult{{
			Entity: healthcheck.EntityEscrows,
			Categories: map[healthcheck.Category]healthcheck.Summary{
				healthcheck.CategoryCritical:    {Total: 4, Passed: 3, Failed: 1},
				healthcheck.CategoryPerformance: {Total: 3, Passed: 2, Warnings: 1},
			},
		}},
		Leaked:       map[string][]string{healthcheck.EntityEscrows: {"escrow-4"}},
		AuthFailures: 2,
	}
}

func TestExporter_Observe(t *testing.T) {
	e := NewExporter()
	e.Observe(sampleRun())

	assert.Equal(t, 3.0, testutil.ToFloat64(e.tests.WithLabelValues("escrows", "Critical", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.tests.WithLabelValues("escrows", "Critical", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.tests.WithLabelValues("escrows", "Performance", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.leaked.WithLabelValues("escrows")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.duration))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.authFailures))
	assert.Equal(t, 1772357400.0, testutil.ToFloat64(e.lastRun))
}

func TestExporter_ObserveResets(t *testing.T) {
	e := NewExporter()
	e.Observe(sampleRun())
	e.Observe(&healthcheck.RunResult{})

	assert.Equal(t, 0, testutil.CollectAndCount(e.tests))
	assert.Equal(t, 0, testutil.CollectAndCount(e.leaked))
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmcheck.prom")
	require.NoError(t, WriteTextfile(path, sampleRun()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "# TYPE crmcheck_tests gauge")
	assert.Contains(t, out, `crmcheck_leaked_entities{entity="escrows"} 1`)
	assert.Contains(t, out, "crmcheck_run_duration_seconds 2")
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"), sampleRun())
	assert.Error(t, err)
}
