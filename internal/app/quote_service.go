// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate use cases (business workflows)
//   - Coordinate between domain and infrastructure
//   - Handle cross-cutting concerns (logging)
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters)
//   - Database queries (that's storage adapters)
//   - Core domain logic (that's the domain layer)
package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// QuoteService orchestrates quote-related use cases.
// It depends on port interfaces, not concrete implementations,
// following the Dependency Inversion Principle.
type QuoteService struct {
	store     *QuoteStore
	prefs     ports.KeyValueStore
	sessions  ports.SessionStore
	publisher ports.QuotePublisher
	logger    *slog.Logger
}

// QuoteServiceConfig contains configuration for the quote service.
type QuoteServiceConfig struct {
	// Store owns the collection. Required.
	Store *QuoteStore

	// Preferences persists the selected category. Required.
	Preferences ports.KeyValueStore

	// Sessions holds the last quote shown per session. Required.
	Sessions ports.SessionStore

	// Publisher receives newly added quotes. Optional.
	Publisher ports.QuotePublisher

	Logger *slog.Logger
}

// NewQuoteService creates a new quote service with the provided dependencies.
// Panics if a required dependency is missing.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("app: QuoteServiceConfig.Store is required")
	}

	if cfg.Preferences == nil {
		panic("app: QuoteServiceConfig.Preferences is required")
	}

	if cfg.Sessions == nil {
		panic("app: QuoteServiceConfig.Sessions is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteService{
		store:     cfg.Store,
		prefs:     cfg.Preferences,
		sessions:  cfg.Sessions,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// ListQuotes returns the quotes in category. "" and "all" return everything.
func (s *QuoteService) ListQuotes(_ context.Context, category string) domain.QuoteCollection {
	return s.store.Filter(category)
}

// Categories returns the distinct categories in first-seen order.
func (s *QuoteService) Categories(_ context.Context) []string {
	return s.store.Categories()
}

// RandomQuote picks a random quote from category and remembers it as the
// session's last quote. Failing to remember it is logged, not returned.
func (s *QuoteService) RandomQuote(ctx context.Context, sessionID, category string) (domain.Quote, error) {
	q, err := s.store.Random(category)
	if err != nil {
		return domain.Quote{}, err
	}

	if sessionID != "" {
		raw, err := encodeQuote(q)
		if err == nil {
			err = s.sessions.Set(ctx, sessionID, KeyLastQuote, raw)
		}

		if err != nil {
			s.logger.WarnContext(ctx, "remembering last quote failed", slog.Any("error", err))
		}
	}

	s.logger.DebugContext(ctx, "random quote selected",
		slog.String("category", q.Category),
	)

	return q, nil
}

// LastQuote returns the last quote shown in the session.
// Returns a NotFoundError when the session has not been shown one.
func (s *QuoteService) LastQuote(ctx context.Context, sessionID string) (domain.Quote, error) {
	if sessionID == "" {
		return domain.Quote{}, domain.NewNotFoundError("last quote", "")
	}

	raw, err := s.sessions.Get(ctx, sessionID, KeyLastQuote)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Quote{}, domain.NewNotFoundError("last quote", "")
		}

		return domain.Quote{}, err
	}

	q, err := decodeQuote(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "stored last quote is unreadable", slog.Any("error", err))

		return domain.Quote{}, domain.NewNotFoundError("last quote", "")
	}

	return q, nil
}

// AddQuoteResult reports the outcome of adding a quote.
// The quote is in the collection whenever a result is returned; the error
// fields tell the caller what did not complete.
type AddQuoteResult struct {
	Quote domain.Quote

	// StorageErr is set when the quote was kept in memory only.
	StorageErr error

	// RemoteErr is set when submitting the quote to the remote failed.
	RemoteErr error
}

// Degraded reports whether any side effect of the add failed.
func (r *AddQuoteResult) Degraded() bool {
	return r.StorageErr != nil || r.RemoteErr != nil
}

// AddQuote adds a quote to the collection and submits it to the remote.
// Returns a ValidationError, and no result, when text or category is empty.
func (s *QuoteService) AddQuote(ctx context.Context, text, category string) (*AddQuoteResult, error) {
	q, err := s.store.Add(ctx, text, category)
	if err != nil && !domain.IsStorage(err) {
		return nil, err
	}

	result := &AddQuoteResult{Quote: q, StorageErr: err}

	if s.publisher != nil {
		if err := s.publisher.PublishQuote(ctx, q); err != nil {
			s.logger.WarnContext(ctx, "publishing quote failed", slog.Any("error", err))

			result.RemoteErr = err
		}
	}

	s.logger.InfoContext(ctx, "quote added",
		slog.String("category", q.Category),
		slog.Bool("persisted", result.StorageErr == nil),
		slog.Bool("published", s.publisher != nil && result.RemoteErr == nil),
	)

	return result, nil
}

// SelectedCategory returns the persisted category filter, or domain.CategoryAll
// when none has been chosen.
func (s *QuoteService) SelectedCategory(ctx context.Context) (string, error) {
	raw, err := s.prefs.Get(ctx, KeySelectedCategory)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.CategoryAll, nil
		}

		return "", err
	}

	if len(raw) == 0 {
		return domain.CategoryAll, nil
	}

	return string(raw), nil
}

// SetSelectedCategory persists the category filter.
func (s *QuoteService) SetSelectedCategory(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", domain.NewValidationError("category", "must not be empty")
	}

	if err := s.prefs.Set(ctx, KeySelectedCategory, []byte(category)); err != nil {
		return "", err
	}

	return category, nil
}

// Export returns the collection as a JSON array.
func (s *QuoteService) Export(ctx context.Context) ([]byte, error) {
	return s.store.ExportJSON(ctx)
}

// Import appends the quotes in a JSON array payload.
func (s *QuoteService) Import(ctx context.Context, payload []byte) (int, error) {
	n, err := s.store.ImportJSON(ctx, payload)
	if err != nil && !domain.IsStorage(err) {
		s.logger.InfoContext(ctx, "import rejected", slog.Any("error", err))

		return 0, err
	}

	s.logger.InfoContext(ctx, "quotes imported",
		slog.Int("count", n),
		slog.Bool("persisted", err == nil),
	)

	return n, err
}
