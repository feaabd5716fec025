// Package seedfile reads the initial quote collection from a YAML file.
//
// The file lists quotes under a top-level "quotes" key:
//
//	quotes:
//	  - text: Life is what happens when you're busy making other plans.
//	    category: Life
package seedfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

type document struct {
	Quotes []entry `yaml:"quotes"`
}

type entry struct {
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

// Load reads the seed collection at path. Every entry must be a valid quote;
// otherwise a FormatError naming the entry is returned.
func Load(path string) (domain.QuoteCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a seed document.
func Parse(data []byte) (domain.QuoteCollection, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewFormatError("seed file: " + err.Error())
	}

	if len(doc.Quotes) == 0 {
		return nil, domain.NewFormatError("seed file has no quotes")
	}

	quotes := make(domain.QuoteCollection, 0, len(doc.Quotes))

	for i, e := range doc.Quotes {
		q, err := domain.NewQuote(e.Text, e.Category)
		if err != nil {
			return nil, domain.NewRecordFormatError(i, err.Error())
		}

		quotes = append(quotes, q)
	}

	return quotes, nil
}
