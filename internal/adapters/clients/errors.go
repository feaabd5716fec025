// Package clients provides the instrumented HTTP client used to reach the
// remote quote service.
package clients

import "errors"

// Transport-level failures. The ACL adapters translate them into
// domain.NetworkError before they reach the application layer.
var (
	// ErrCircuitOpen is returned without sending the request while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt has been used.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
