package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// errNotLoaded refuses writes that would replace a stored collection that
// could not be read.
var errNotLoaded = errors.New("stored collection not loaded")

// Storage keys.
const (
	// KeyQuotes holds the JSON array of the whole collection.
	KeyQuotes = "quotes"

	// KeySelectedCategory holds the persisted category filter.
	KeySelectedCategory = "selectedCategory"

	// KeyLastQuote holds the last quote shown, per session.
	KeyLastQuote = "lastQuote"
)

// QuoteStore owns the quote collection and its round-trip to durable storage.
// All methods are safe for concurrent use. Every mutation is persisted before
// the method returns.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes domain.QuoteCollection

	// loaded is false while the stored collection could not be read. Writes
	// are refused until a read succeeds so the seed never overwrites it.
	loaded bool

	kv     ports.KeyValueStore
	policy domain.MergePolicy
	seed   domain.QuoteCollection
	logger *slog.Logger
	intn   func(n int) int
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	// Store is the durable backend. Required.
	Store ports.KeyValueStore

	// Policy selects how Merge reconciles remote quotes. Defaults to additive.
	Policy domain.MergePolicy

	// Seed is used when nothing has been persisted. Defaults to domain.DefaultSeed.
	Seed domain.QuoteCollection

	Logger *slog.Logger
}

// NewQuoteStore creates a store and loads the persisted collection.
// Panics if cfg.Store is nil.
func NewQuoteStore(ctx context.Context, cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Store == nil {
		panic("app: QuoteStoreConfig.Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == "" {
		policy = domain.MergeAdditive
	}

	seed := cfg.Seed
	if len(seed) == 0 {
		seed = domain.DefaultSeed()
	}

	s := &QuoteStore{
		kv:     cfg.Store,
		policy: policy,
		seed:   seed.Clone(),
		logger: logger,
		intn:   rand.IntN,
	}

	s.Load(ctx)

	return s
}

// Policy returns the configured merge policy.
func (s *QuoteStore) Policy() domain.MergePolicy {
	return s.policy
}

// Load replaces the in-memory collection with the persisted one and returns it.
// A missing or unparseable value yields the seed collection; Load never fails.
//
// When the backend itself fails, the seed is served from memory and the store
// stays unloaded: mutations retry the read first and are not persisted until
// it succeeds.
func (s *QuoteStore) Load(ctx context.Context) domain.QuoteCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	quotes, ok := s.read(ctx)
	s.quotes = quotes
	s.loaded = ok

	return quotes.Clone()
}

// read returns the stored collection, or the seed when there is none. ok is
// false when the backend could not be read.
func (s *QuoteStore) read(ctx context.Context) (quotes domain.QuoteCollection, ok bool) {
	raw, err := s.kv.Get(ctx, KeyQuotes)
	if err != nil {
		if domain.IsNotFound(err) {
			return s.seed.Clone(), true
		}

		s.logger.WarnContext(ctx, "reading stored quotes failed, serving seed until storage recovers",
			slog.Any("error", err),
		)

		return s.seed.Clone(), false
	}

	quotes, err = decodeQuotes(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "stored quotes are unreadable, using seed",
			slog.Any("error", err),
		)

		return s.seed.Clone(), true
	}

	return quotes, true
}

// reloadLocked retries the read of an unloaded store. On success the stored
// collection replaces the in-memory seed. Callers hold s.mu.
func (s *QuoteStore) reloadLocked(ctx context.Context) {
	if s.loaded {
		return
	}

	quotes, ok := s.read(ctx)
	if !ok {
		return
	}

	s.quotes = quotes
	s.loaded = true

	s.logger.InfoContext(ctx, "stored quotes loaded after earlier read failure",
		slog.Int("count", len(quotes)),
	)
}

// Add validates and appends a quote, then persists the collection.
// On a validation failure the collection is unchanged. If persisting fails the
// quote is kept in memory and returned together with the StorageError.
func (s *QuoteStore) Add(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadLocked(ctx)
	s.quotes = append(s.quotes, q)

	if err := s.persistLocked(ctx); err != nil {
		return q, err
	}

	return q, nil
}

// Merge reconciles the collection with remote quotes under the configured
// policy and persists the result when it changed. Applying the same remote
// set twice leaves the collection as after the first application.
//
// Every remote quote must be valid; otherwise a ValidationError naming the
// first bad item is returned and the collection is unchanged.
func (s *QuoteStore) Merge(ctx context.Context, remote domain.QuoteCollection) (domain.MergeReport, error) {
	normalized := make(domain.QuoteCollection, len(remote))

	for i, q := range remote {
		valid, err := domain.NewQuote(q.Text, q.Category)
		if err != nil {
			return domain.MergeReport{}, fmt.Errorf("remote quote %d: %w", i, err)
		}

		normalized[i] = valid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadLocked(ctx)

	merged, report := domain.Merge(s.policy, s.quotes, normalized)
	if slices.Equal(merged, s.quotes) {
		return report, nil
	}

	s.quotes = merged

	if err := s.persistLocked(ctx); err != nil {
		return report, err
	}

	return report, nil
}

// Persist writes the whole collection to storage.
func (s *QuoteStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.persistLocked(ctx)
}

// persistLocked writes the collection. Callers hold s.mu.
func (s *QuoteStore) persistLocked(ctx context.Context) error {
	if !s.loaded {
		s.logger.WarnContext(ctx, "stored quotes not loaded, keeping changes in memory",
			slog.Int("count", len(s.quotes)),
		)

		return domain.NewStorageError("write", KeyQuotes, errNotLoaded)
	}

	raw, err := encodeQuotes(s.quotes)
	if err != nil {
		return domain.NewStorageError("encode", KeyQuotes, err)
	}

	if err := s.kv.Set(ctx, KeyQuotes, raw); err != nil {
		s.logger.WarnContext(ctx, "persisting quotes failed, keeping them in memory",
			slog.Int("count", len(s.quotes)),
			slog.Any("error", err),
		)

		if !domain.IsStorage(err) {
			err = domain.NewStorageError("write", KeyQuotes, err)
		}

		return err
	}

	return nil
}

// ExportJSON returns the whole collection as a JSON array.
func (s *QuoteStore) ExportJSON(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := encodeQuotes(s.quotes)
	if err != nil {
		return nil, fmt.Errorf("encoding quotes: %w", err)
	}

	return raw, nil
}

// ImportJSON appends every quote in payload, without deduplication, and
// persists the collection. The payload must be a JSON array of objects with
// non-empty "text" and "category"; otherwise a FormatError is returned and the
// collection is unchanged. A StorageError is returned alongside the count when
// the import succeeded in memory only.
func (s *QuoteStore) ImportJSON(ctx context.Context, payload []byte) (int, error) {
	imported, err := decodeQuotes(payload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadLocked(ctx)
	s.quotes = append(s.quotes, imported...)

	if err := s.persistLocked(ctx); err != nil {
		return len(imported), err
	}

	return len(imported), nil
}

// All returns a copy of the collection.
func (s *QuoteStore) All() domain.QuoteCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.quotes.Clone()
}

// Len returns the number of quotes.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// Categories returns the distinct categories in first-seen order.
func (s *QuoteStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.quotes.Categories()
}

// Filter returns the quotes in category. "" and domain.CategoryAll match everything.
func (s *QuoteStore) Filter(category string) domain.QuoteCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.quotes.Filter(category)
}

// Random picks a uniformly random quote from category.
// Returns a NotFoundError when no quote matches.
func (s *QuoteStore) Random(category string) (domain.Quote, error) {
	candidates := s.Filter(category)
	if len(candidates) == 0 {
		if category == "" || category == domain.CategoryAll {
			return domain.Quote{}, domain.NewNotFoundError("quote", "")
		}

		return domain.Quote{}, domain.NewNotFoundError("quote in category", category)
	}

	return candidates[s.intn(len(candidates))], nil
}

// quoteJSON is the stored and exported shape of a quote.
type quoteJSON struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// quoteRecord is quoteJSON as read from untrusted input. Pointers distinguish
// a missing field from an empty one.
type quoteRecord struct {
	Text     *string `json:"text"`
	Category *string `json:"category"`
}

func encodeQuote(q domain.Quote) ([]byte, error) {
	return json.Marshal(quoteJSON{Text: q.Text, Category: q.Category})
}

func decodeQuote(raw []byte) (domain.Quote, error) {
	var q quoteJSON
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Quote{}, err
	}

	return domain.NewQuote(q.Text, q.Category)
}

// encodeQuotes renders quotes as a JSON array, [] when empty.
func encodeQuotes(quotes domain.QuoteCollection) ([]byte, error) {
	out := make([]quoteJSON, len(quotes))
	for i, q := range quotes {
		out[i] = quoteJSON{Text: q.Text, Category: q.Category}
	}

	return json.Marshal(out)
}

// decodeQuotes parses a JSON array of quote objects.
func decodeQuotes(payload []byte) (domain.QuoteCollection, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, domain.NewFormatError("expected a JSON array of quotes")
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, domain.NewFormatError(err.Error())
	}

	quotes := make(domain.QuoteCollection, 0, len(records))

	for i, raw := range records {
		var rec quoteRecord

		err := json.Unmarshal(raw, &rec)
		if err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return nil, domain.NewRecordFormatError(i, fmt.Sprintf("%q must be a string", typeErr.Field))
			}

			return nil, domain.NewRecordFormatError(i, "expected an object with text and category")
		}

		if rec.Text == nil || rec.Category == nil {
			return nil, domain.NewRecordFormatError(i, "text and category are required")
		}

		q, err := domain.NewQuote(*rec.Text, *rec.Category)
		if err != nil {
			return nil, domain.NewRecordFormatError(i, err.Error())
		}

		quotes = append(quotes, q)
	}

	return quotes, nil
}
