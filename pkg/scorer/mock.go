package scorer

import (
	"context"
	"strings"
	"unicode"
)

// MockScorer scores documents by content-word overlap with the query. Fully
// deterministic: the same inputs always produce the same scores, which makes
// it suitable for tests and for exercising the service without a model.
type MockScorer struct{}

// NewMockScorer creates a deterministic overlap-based scorer.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"their": true, "this": true, "to": true, "what": true, "which": true,
	"with": true,
}

// Score returns one overlap score per document, in input order.
func (m *MockScorer) Score(_ context.Context, query string, documents []string) ([]float64, error) {
	queryTokens := contentTokens(query)

	scores := make([]float64, len(documents))
	for i, doc := range documents {
		scores[i] = overlapScore(queryTokens, contentTokens(doc))
	}
	return scores, nil
}

// overlapScore is the Jaccard similarity of the two content-token sets.
func overlapScore(query, doc map[string]bool) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	matches := 0
	for tok := range query {
		if doc[tok] {
			matches++
		}
	}
	union := len(query) + len(doc) - matches
	return float64(matches) / float64(union)
}

// contentTokens lowercases, strips punctuation, folds plural forms, and
// drops stopwords so that "panda?" and "Pandas" land on the same token.
func contentTokens(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) > 3 {
			field = strings.TrimSuffix(field, "s")
		}
		if stopwords[field] {
			continue
		}
		tokens[field] = true
	}
	return tokens
}

// Close is a no-op.
func (m *MockScorer) Close() error {
	return nil
}
