package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// remoteSourceName names the remote in errors raised by the syncer itself.
const remoteSourceName = "remote-quotes"

// Syncer reconciles the local collection with the remote quote source, on
// demand and on a fixed interval.
type Syncer struct {
	source   ports.RemoteQuoteSource
	store    *QuoteStore
	exec     *Executor
	interval time.Duration
	metrics  *telemetry.SyncMetrics
	logger   *slog.Logger

	inflight sync.WaitGroup
}

// SyncerConfig contains the dependencies of a Syncer.
type SyncerConfig struct {
	Source   ports.RemoteQuoteSource
	Store    *QuoteStore
	Executor *Executor

	// Interval between scheduled syncs.
	Interval time.Duration

	// Metrics is optional.
	Metrics *telemetry.SyncMetrics

	Logger *slog.Logger
}

// NewSyncer creates a syncer. Panics if Source or Store is nil.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.Source == nil {
		panic("app: SyncerConfig.Source is required")
	}

	if cfg.Store == nil {
		panic("app: SyncerConfig.Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exec := cfg.Executor
	if exec == nil {
		exec = NewExecutor(logger)
	}

	return &Syncer{
		source:   cfg.Source,
		store:    cfg.Store,
		exec:     exec,
		interval: cfg.Interval,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// SyncNow fetches the remote quotes and merges them into the collection.
//
// Fetch failures, including remote 4xx answers, malformed payloads, and batches
// with no valid quote, return a NetworkError and leave the collection untouched.
// Records that do not form a valid quote are dropped before merging. When the
// merge is applied in memory but cannot be persisted, the report is returned
// together with the StorageError.
func (s *Syncer) SyncNow(ctx context.Context) (domain.MergeReport, error) {
	var report domain.MergeReport

	op := Operation[struct{}, domain.QuoteCollection, domain.QuoteCollection, domain.MergeReport]{
		Name: "sync_quotes",

		Perform: func(ctx context.Context, _ struct{}) (domain.QuoteCollection, error) {
			fetched, err := s.source.FetchQuotes(ctx)
			if err != nil {
				return nil, remoteFailure(err)
			}

			return fetched, nil
		},

		Verify: func(ctx context.Context, _ struct{}, fetched domain.QuoteCollection) (domain.QuoteCollection, error) {
			valid, err := s.validRemote(ctx, fetched)
			if err != nil {
				return nil, remoteFailure(err)
			}

			return valid, nil
		},

		Archive: func(ctx context.Context, _ struct{}, verified domain.QuoteCollection) error {
			var err error

			report, err = s.store.Merge(ctx, verified)

			return err
		},

		Respond: func(_ context.Context, _ struct{}, _ domain.QuoteCollection) (domain.MergeReport, error) {
			return report, nil
		},
	}

	_, err := Execute(ctx, s.exec, op, struct{}{})
	s.metrics.ObserveRun(syncResult(err), report.Count())

	if err != nil {
		if step, ok := GetExecutionStep(err); ok {
			s.logger.DebugContext(ctx, "sync aborted",
				slog.String("step", string(step)),
				slog.String("result", syncResult(err)),
			)
		}

		return report, err
	}

	s.logger.InfoContext(ctx, "quotes synced from server",
		slog.String("policy", string(report.Policy)),
		slog.Int("received", report.Received),
		slog.Int("count", report.Count()),
		slog.Int("total", report.Total),
	)

	return report, nil
}

// validRemote drops fetched records that are not valid quotes. A non-empty
// batch with no valid record is rejected so a malformed response cannot
// replace the collection.
func (s *Syncer) validRemote(ctx context.Context, fetched domain.QuoteCollection) (domain.QuoteCollection, error) {
	valid := make(domain.QuoteCollection, 0, len(fetched))

	for i, q := range fetched {
		normalized, err := domain.NewQuote(q.Text, q.Category)
		if err != nil {
			s.logger.Log(ctx, logging.LevelTrace, "dropping remote record",
				slog.Int("index", i),
				slog.Any("error", err),
			)

			continue
		}

		valid = append(valid, normalized)
	}

	if len(fetched) > 0 && len(valid) == 0 {
		return nil, domain.NewFormatError("remote returned no valid quotes")
	}

	return valid, nil
}

// Run starts a sync every interval until ctx is cancelled. A tick does not
// wait for earlier syncs to finish. Failures are logged and retried on the
// next tick. Run returns after in-flight syncs have observed cancellation.
func (s *Syncer) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.WarnContext(ctx, "sync interval not set, scheduled sync disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduled sync started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.inflight.Wait()
			s.logger.InfoContext(context.WithoutCancel(ctx), "scheduled sync stopped")

			return
		case <-ticker.C:
			s.inflight.Add(1)

			go func() {
				defer s.inflight.Done()

				if _, err := s.SyncNow(ctx); err != nil && ctx.Err() == nil {
					s.logger.WarnContext(ctx, "sync failed, retrying next interval", slog.Any("error", err))
				}
			}()
		}
	}
}

// remoteFailure reports a failure to obtain usable quotes as a NetworkError.
// Remote 4xx answers and malformed payloads keep their cause.
func remoteFailure(err error) error {
	if domain.IsNetwork(err) {
		return err
	}

	return domain.WrapNetworkError(remoteSourceName, err.Error(), err)
}

func syncResult(err error) string {
	switch {
	case err == nil:
		return telemetry.SyncResultSuccess
	case domain.IsNetwork(err):
		return telemetry.SyncResultNetworkError
	case domain.IsStorage(err):
		return telemetry.SyncResultStorageError
	default:
		return telemetry.SyncResultError
	}
}
