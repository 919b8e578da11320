package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		document string
		query    string
		want     bool
	}{
		{"all words", "The budget review slipped.", "budget review", true},
		{"punctuation and case", "Budget, REVIEW!", "review budget?", true},
		{"missing word", "budget slipped", "budget review", false},
		{"only stop words", "the and of", "the of", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.document, tt.query))
		})
	}
}

func TestSnippet(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"

	assert.Equal(t, "short", Snippet("short", "q", 20))
	assert.Equal(t, text, Snippet(text, "q", 0))

	s := Snippet(text, "iota", 20)
	assert.Contains(t, s, "iota")
	assert.True(t, len([]rune(s)) <= 26)

	assert.Equal(t, "alpha beta gamma del...", Snippet(text, "nothing", 20))
}
