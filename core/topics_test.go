package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		title   string
		want    []string
	}{
		{
			name:  "title keywords without stop words",
			title: "Roadmap review with the Platform team",
			want:  []string{"roadmap", "review", "platform", "team"},
		},
		{
			name:    "summary cue phrases",
			summary: "The group discussed hiring plans.",
			want:    []string{"hiring plans"},
		},
		{
			name:    "short summary is ignored",
			summary: "about x",
			want:    []string{},
		},
		{
			name:    "duplicates dropped and capped at five",
			title:   "alpha bravo charlie delta alpha",
			summary: "We focused on echo and foxtrot work.",
			want:    []string{"alpha", "bravo", "charlie", "delta", "echo and foxtrot work"},
		},
		{
			name: "empty input",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopics(tt.summary, tt.title))
		})
	}
}

func TestExtractTopics_LongPhraseIsCut(t *testing.T) {
	summary := "Regarding a very long stretch of text that keeps going well past the fifty character limit"
	topics := ExtractTopics(summary, "")
	assert.Len(t, topics, 1)
	assert.LessOrEqual(t, len([]rune(topics[0])), topicPhraseLen)
}
