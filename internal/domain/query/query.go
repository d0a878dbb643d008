package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/metasearch/internal/domain"
)

// Query is the state of the search form.
type Query struct {
	Text string `json:"text"`
	// Submitted is set on submission and cleared once a search resolves.
	// It stays set after a rejected submission so the form can show the error.
	Submitted bool `json:"submitted"`
}

// Validate returns text with surrounding whitespace removed, as the search
// form submits it. Text made only of whitespace counts as empty.
func Validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: query text is required", domain.ErrValidation)
	}
	return trimmed, nil
}

// Invalid reports whether the form should display a validation error.
func (q Query) Invalid() bool {
	if !q.Submitted {
		return false
	}
	_, err := Validate(q.Text)
	return err != nil
}
