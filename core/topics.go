package core

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTopics      = 5
	topicPhraseLen = 50
)

var topicStopWords = map[string]bool{
	"with": true, "and": true, "for": true, "the": true, "this": true, "that": true,
}

// Phrases in a summary that usually precede what a meeting was about.
var topicCues = []string{"discussed", "talked about", "focused on", "regarding", "about"}

// ExtractTopics returns up to five keywords and phrases from a meeting's
// title and summary, in first-seen order without duplicates. Title words
// longer than three letters are kept unless they are stop words, and for
// each cue found in the summary the text following it is kept.
func ExtractTopics(summary, title string) []string {
	var candidates []string
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if utf8.RuneCountInString(word) > 3 && !topicStopWords[word] {
			candidates = append(candidates, word)
		}
	}

	if utf8.RuneCountInString(summary) > 10 {
		// Lowering can change byte offsets outside ASCII, so search and cut
		// the same string.
		text := summary
		lower := strings.ToLower(summary)
		if len(lower) != len(summary) {
			text = lower
		}
		for _, cue := range topicCues {
			idx := strings.Index(lower, cue)
			if idx < 0 {
				continue
			}
			rest := []rune(text[idx+len(cue):])
			candidates = append(candidates, strings.TrimSpace(string(rest[:min(len(rest), topicPhraseLen)])))
		}
	}

	topics := []string{}
	seen := make(map[string]bool)
	for _, topic := range candidates {
		topic = strings.TrimRight(topic, ".,;:")
		if utf8.RuneCountInString(topic) <= 2 || seen[topic] {
			continue
		}
		seen[topic] = true
		topics = append(topics, topic)
		if len(topics) == maxTopics {
			break
		}
	}
	return topics
}
