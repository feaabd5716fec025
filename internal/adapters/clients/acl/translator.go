package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// BaseAdapter holds what every remote adapter needs: the instrumented client
// and the service name used in errors. Embed it in service-specific adapters.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

// NewBaseAdapter creates a base adapter.
func NewBaseAdapter(client *clients.Client, serviceName string) BaseAdapter {
	return BaseAdapter{
		client:      client,
		serviceName: serviceName,
	}
}

// ServiceName returns the name of the remote service.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// Get performs a GET and returns the body of a 2xx response (caller closes).
// Any other outcome is mapped with MapHTTPError.
func (a *BaseAdapter) Get(ctx context.Context, path, operation, entity string) (io.ReadCloser, error) {
	resp, err := a.client.Get(ctx, path)

	return a.body(resp, err, operation, entity)
}

// PostJSON POSTs v as JSON and returns the body of a 2xx response (caller closes).
func (a *BaseAdapter) PostJSON(ctx context.Context, path string, v any, operation, entity string) (io.ReadCloser, error) {
	resp, err := a.client.PostJSON(ctx, path, v)

	return a.body(resp, err, operation, entity)
}

func (a *BaseAdapter) body(resp *http.Response, err error, operation, entity string) (io.ReadCloser, error) {
	if err != nil {
		return nil, MapHTTPError(nil, err, a.serviceName, operation, entity)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, a.serviceName, operation, entity)
	}

	return resp.Body, nil
}

// DecodeResponse decodes a JSON body into T and closes it. A body that does
// not decode is reported as a FormatError.
func DecodeResponse[T any](body io.ReadCloser) (T, error) {
	var result T

	if body == nil {
		return result, domain.NewFormatError("response body is empty")
	}
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return result, domain.NewFormatError(fmt.Sprintf("decoding response: %v", err))
	}

	return result, nil
}

// Translator converts an external DTO into a domain value.
type Translator[External any, Domain any] func(ext *External) Domain

// TranslateSlice applies translate to every item, in order.
func TranslateSlice[E any, D any](items []E, translate Translator[E, D]) []D {
	result := make([]D, 0, len(items))

	for i := range items {
		result = append(result, translate(&items[i]))
	}

	return result
}
