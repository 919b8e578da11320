// Package chunking splits transcripts into speaker-turn chunks.
//
// A chunk covers one SpeakerBlock: a maximal run of consecutive utterances
// from the same speaker. Each chunk records the speakers of its neighbouring
// blocks so a reader can recover local conversational context without the
// full transcript.
package chunking

import (
	"strings"

	"github.com/poiesic/minutes/core"
)

// SpeakerBlocks groups ordered utterances into maximal runs sharing one
// speaker label. Adjacent blocks never share a label, so two ids that carry
// the same name form a single block. An empty input yields no blocks.
func SpeakerBlocks(utterances []core.Utterance) []core.SpeakerBlock {
	var blocks []core.SpeakerBlock
	var current []core.Utterance

	for i, u := range utterances {
		if len(current) > 0 && u.SpeakerLabel() != current[0].SpeakerLabel() {
			blocks = append(blocks, newBlock(current))
			current = nil
		}
		current = append(current, utterances[i])
	}
	if len(current) > 0 {
		blocks = append(blocks, newBlock(current))
	}

	return blocks
}

func newBlock(utterances []core.Utterance) core.SpeakerBlock {
	return core.SpeakerBlock{
		Speaker:    utterances[0].SpeakerLabel(),
		Utterances: utterances,
	}
}

// Chunk converts a transcript into one chunk per speaker block, numbered
// densely from zero in block order. Transcript-level metadata is copied onto
// every chunk.
func Chunk(t *core.Transcript) []core.Chunk {
	if t == nil {
		return nil
	}

	blocks := SpeakerBlocks(t.Utterances)
	topics := core.ExtractTopics(t.Summary, t.Title)
	chunks := make([]core.Chunk, len(blocks))

	for i, block := range blocks {
		texts := make([]string, len(block.Utterances))
		for j, u := range block.Utterances {
			texts[j] = u.Text
		}

		chunk := core.Chunk{
			TranscriptID: t.ID,
			ChunkIndex:   i,
			TotalChunks:  len(blocks),
			Text:         strings.Join(texts, " "),
			Speaker:      block.Speaker,
			Title:        t.Title,
			Summary:      t.Summary,
			Topics:       topics,
			Date:         t.Date,
			Duration:     t.Duration,
			Participants: t.Participants,
		}
		if i > 0 {
			prev := blocks[i-1].Speaker
			chunk.PrevSpeaker = &prev
		}
		if i < len(blocks)-1 {
			next := blocks[i+1].Speaker
			chunk.NextSpeaker = &next
		}

		chunks[i] = chunk
	}

	return chunks
}
