// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrStorage, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// KeyValueStore is the durable string-keyed storage the quote collection and
// user preferences are persisted to.
//
// Example usage in application layer:
//
//	raw, err := store.Get(ctx, "quotes")
//	if domain.IsNotFound(err) {
//	    return domain.DefaultSeed()
//	}
type KeyValueStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	// Any other failure is a domain.StorageError.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	// Returns a domain.StorageError if the write is rejected.
	Set(ctx context.Context, key string, value []byte) error
}

// SessionStore holds values scoped to a single client session.
// Values disappear when the session has been idle longer than the store's TTL.
type SessionStore interface {
	// Get returns the value stored under key for the session.
	// Returns domain.ErrNotFound if the session or key does not exist.
	Get(ctx context.Context, sessionID, key string) ([]byte, error)

	// Set stores value under key for the session and refreshes its idle timer.
	Set(ctx context.Context, sessionID, key string, value []byte) error
}

// RemoteQuoteSource retrieves quotes from the remote collection.
//
// Key considerations:
//   - Handle timeouts via context deadline
//   - Map external errors to domain errors
//   - Transform external DTOs to domain types
type RemoteQuoteSource interface {
	// FetchQuotes returns the remote quotes, already mapped to domain quotes.
	// Records that cannot form a valid quote are included as-is; callers validate.
	// Every failure is a domain.NetworkError. A rejected request or an
	// undecodable payload keeps its mapped cause.
	FetchQuotes(ctx context.Context) (domain.QuoteCollection, error)
}

// QuotePublisher submits locally added quotes to the remote collection.
type QuotePublisher interface {
	// PublishQuote sends the quote to the remote endpoint.
	// Returns a domain.NetworkError if the remote is unreachable.
	PublishQuote(ctx context.Context, quote domain.Quote) error
}
