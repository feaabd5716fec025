package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Page size bounds for list endpoints.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for a cursor this API did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// PaginationRequest holds the paging query parameters.
type PaginationRequest struct {
	// Cursor is the NextCursor of the previous page. Empty for the first page.
	Cursor string `form:"cursor"`

	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// PageSize returns Limit clamped to [1, MaxLimit], DefaultLimit when unset.
func (p *PaginationRequest) PageSize() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// PaginatedResponse is one page of a list.
type PaginatedResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// cursor is the decoded form of a page cursor. Quotes have no stable IDs,
// so it records the position of the next item.
type cursor struct {
	Offset int `json:"o"`
}

func encodeCursor(offset int) string {
	raw, _ := json.Marshal(cursor{Offset: offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(encoded string) (int, error) {
	if encoded == "" {
		return 0, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return 0, ErrInvalidCursor
	}

	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.Offset < 0 {
		return 0, ErrInvalidCursor
	}

	return c.Offset, nil
}

// Paginate returns the page of items selected by p. A cursor past the end
// yields an empty final page.
func Paginate[T any](items []T, p *PaginationRequest) (*PaginatedResponse[T], error) {
	offset, err := decodeCursor(p.Cursor)
	if err != nil {
		return nil, err
	}

	if offset >= len(items) {
		return &PaginatedResponse[T]{Items: []T{}}, nil
	}

	end := min(offset+p.PageSize(), len(items))

	page := &PaginatedResponse[T]{
		Items:   items[offset:end],
		HasMore: end < len(items),
	}

	if page.HasMore {
		page.NextCursor = encodeCursor(end)
	}

	return page, nil
}
