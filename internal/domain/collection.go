package domain

import "slices"

// CategoryAll is the filter value that matches every category.
const CategoryAll = "all"

// QuoteCollection is the ordered set of quotes owned by one application instance.
// Insertion order is preserved and duplicates may be present.
type QuoteCollection []Quote

// DefaultSeed returns the collection used when nothing has been persisted yet.
func DefaultSeed() QuoteCollection {
	return QuoteCollection{
		{Text: "Life is what happens when you're busy making other plans.", Category: "Life"},
		{Text: "The purpose of our lives is to be happy.", Category: "Happiness"},
	}
}

// Clone returns an independent copy of the collection.
func (c QuoteCollection) Clone() QuoteCollection {
	if c == nil {
		return QuoteCollection{}
	}

	return slices.Clone(c)
}

// Categories returns the distinct categories in first-seen order.
func (c QuoteCollection) Categories() []string {
	seen := make(map[string]struct{}, len(c))
	categories := make([]string, 0, len(c))

	for _, q := range c {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		categories = append(categories, q.Category)
	}

	return categories
}

// Filter returns the quotes in the given category.
// An empty category or CategoryAll returns every quote.
func (c QuoteCollection) Filter(category string) QuoteCollection {
	if category == "" || category == CategoryAll {
		return c.Clone()
	}

	filtered := QuoteCollection{}

	for _, q := range c {
		if q.Category == category {
			filtered = append(filtered, q)
		}
	}

	return filtered
}
