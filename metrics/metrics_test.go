package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveRun("sp1", "prove", 1500*time.Millisecond, 4096)
	m.ObserveRun("sp1", "prove", 500*time.Millisecond, 2048)
	m.ObserveFailure("openvm", "decode")

	require.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("sp1", "prove")))
	require.Equal(t, 2048.0, testutil.ToFloat64(m.cycles.WithLabelValues("sp1", "prove")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("openvm", "decode")))
	require.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.ObserveRun("nexus", "execute", time.Second, 10)

	path := filepath.Join(t.TempDir(), "ppbench.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `ppbench_runs_total{backend="nexus",mode="execute"} 1`))
	require.True(t, strings.Contains(string(data), "ppbench_run_seconds_bucket"))
}
