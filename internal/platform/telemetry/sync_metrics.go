package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync run results used as the "result" label.
const (
	SyncResultSuccess      = "success"
	SyncResultNetworkError = "network_error"
	SyncResultStorageError = "storage_error"
	SyncResultError        = "error"
)

// SyncMetrics holds Prometheus counters for remote quote syncs.
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	runs   *prometheus.CounterVec
	merged prometheus.Counter
}

// NewSyncMetrics creates the sync counters and registers them with reg.
// Counters that are already registered are reused.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_sync_runs_total",
		Help: "Remote quote sync runs by result.",
	}, []string{"result"})

	merged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quote_sync_quotes_merged_total",
		Help: "Quotes added or replaced by remote syncs.",
	})

	runsCollector, err := register(reg, runs)
	if err != nil {
		return nil, err
	}

	mergedCollector, err := register(reg, merged)
	if err != nil {
		return nil, err
	}

	m := &SyncMetrics{
		runs:   runsCollector.(*prometheus.CounterVec),
		merged: mergedCollector.(prometheus.Counter),
	}

	// Export every result from the start so rate queries see zeros.
	for _, result := range []string{SyncResultSuccess, SyncResultNetworkError, SyncResultStorageError, SyncResultError} {
		m.runs.WithLabelValues(result)
	}

	return m, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return already.ExistingCollector, nil
	}

	return nil, fmt.Errorf("registering sync metrics: %w", err)
}

// ObserveRun records one sync run and the number of quotes it merged.
func (m *SyncMetrics) ObserveRun(result string, merged int) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(result).Inc()

	if merged > 0 {
		m.merged.Add(float64(merged))
	}
}
