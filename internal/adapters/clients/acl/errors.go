package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 4 << 10

// remoteError is the error body some remotes send, either
// {"error": {"code", "message"}} or {"code", "message"}.
type remoteError struct {
	Code    string
	Message string
}

func (e *remoteError) UnmarshalJSON(data []byte) error {
	type fields struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	var body struct {
		fields

		Error fields `json:"error"`
	}

	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	e.Code = firstNonEmpty(body.Error.Code, body.Code)
	e.Message = firstNonEmpty(body.Error.Message, body.Message)

	return nil
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}

	return b
}

// parseRemoteError reads an error body. ok is false when the body is
// missing, not JSON, or names neither a code nor a message.
func parseRemoteError(body io.Reader) (remoteError, bool) {
	var re remoteError

	if body == nil {
		return re, false
	}

	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&re); err != nil {
		return remoteError{}, false
	}

	return re, re.Code != "" || re.Message != ""
}

// MapHTTPError turns the outcome of a remote call into a domain error, or nil
// for a 2xx response.
//
// Transport failures, an open circuit, 5xx, 429 and anything unexpected
// become a NetworkError. A 404 is a NotFoundError for entity. Other 4xx mean
// the remote rejected what was sent and become a ValidationError carrying the
// remote's message when it gave one.
func MapHTTPError(resp *http.Response, clientErr error, serviceName, operation, entity string) error {
	if clientErr != nil {
		return domain.WrapNetworkError(serviceName, clientFailure(clientErr, operation), clientErr)
	}

	if resp == nil {
		return domain.NewNetworkError(serviceName, "no response received")
	}

	status := resp.StatusCode
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	if status == http.StatusNotFound {
		return domain.NewNotFoundError(entity, "")
	}

	if status == http.StatusTooManyRequests {
		return domain.NewNetworkError(serviceName, "rate limit exceeded")
	}

	message := fmt.Sprintf("%s failed with status %d", operation, status)
	if re, ok := parseRemoteError(resp.Body); ok && re.Message != "" {
		message = re.Message
	}

	if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
		return domain.NewValidationError("", message)
	}

	return domain.NewNetworkError(serviceName, message)
}

func clientFailure(err error, operation string) string {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return "circuit breaker open during " + operation
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return "max retries exceeded during " + operation
	default:
		return operation + " failed"
	}
}
