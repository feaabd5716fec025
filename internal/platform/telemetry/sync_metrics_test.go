package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMetrics_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	m.ObserveRun(SyncResultSuccess, 2)
	m.ObserveRun(SyncResultSuccess, 0)
	m.ObserveRun(SyncResultNetworkError, 0)

	assert.InDelta(t, 2, testutil.ToFloat64(m.runs.WithLabelValues(SyncResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues(SyncResultNetworkError)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.merged), 0)
}

func TestSyncMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	second, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	second.ObserveRun(SyncResultSuccess, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(first.merged), 0)
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *SyncMetrics

	assert.NotPanics(t, func() { m.ObserveRun(SyncResultError, 3) })
}

func TestSyncMetrics_ExportsEveryResult(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewSyncMetrics(reg)
	require.NoError(t, err)

	assert.Equal(t, 4, testutil.CollectAndCount(reg, "quote_sync_runs_total"))
}
