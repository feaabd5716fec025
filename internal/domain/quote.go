// Package domain contains core business entities and rules.
package domain

import "strings"

// Quote is a piece of text filed under a category.
// This is a domain entity - it has no knowledge of external systems.
//
// A quote has no identifier of its own: two quotes are the same quote
// when both fields match exactly (case-sensitive).
type Quote struct {
	// Text is the quotation itself.
	Text string

	// Category groups quotes for filtering (e.g. "Life", "Happiness").
	Category string
}

// NewQuote trims both fields and returns a quote, or a ValidationError
// if either field is empty after trimming.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{
		Text:     strings.TrimSpace(text),
		Category: strings.TrimSpace(category),
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Validate checks that both fields carry something other than whitespace.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	if strings.TrimSpace(q.Category) == "" {
		return NewValidationError("category", "must not be empty")
	}

	return nil
}

// Equal reports whether both fields match exactly.
func (q Quote) Equal(other Quote) bool {
	return q.Text == other.Text && q.Category == other.Category
}
