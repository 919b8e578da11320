package chunking

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/poiesic/minutes/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utt(speaker int, text string) core.Utterance {
	return core.Utterance{Text: text, SpeakerID: speaker}
}

func TestChunk_Example(t *testing.T) {
	tr := &core.Transcript{
		ID:      "t1",
		Title:   "Sync",
		Summary: "The team discussed the release plan.",
		Utterances: []core.Utterance{
			utt(1, "hi"),
			utt(1, "there"),
			utt(2, "hey"),
		},
	}

	chunks := Chunk(tr)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "Speaker 1", chunks[0].Speaker)
	assert.Equal(t, "hi there", chunks[0].Text)
	assert.Nil(t, chunks[0].PrevSpeaker)
	require.NotNil(t, chunks[0].NextSpeaker)
	assert.Equal(t, "Speaker 2", *chunks[0].NextSpeaker)

	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Equal(t, "Speaker 2", chunks[1].Speaker)
	assert.Equal(t, "hey", chunks[1].Text)
	require.NotNil(t, chunks[1].PrevSpeaker)
	assert.Equal(t, "Speaker 1", *chunks[1].PrevSpeaker)
	assert.Nil(t, chunks[1].NextSpeaker)

	for _, c := range chunks {
		assert.Equal(t, 2, c.TotalChunks)
		assert.Equal(t, core.TranscriptID("t1"), c.TranscriptID)
		assert.Equal(t, "Sync", c.Title)
		assert.Equal(t, "The team discussed the release plan.", c.Summary)
		assert.Equal(t, []string{"sync", "the release plan"}, c.Topics)
	}
}

func TestChunk_EdgeCases(t *testing.T) {
	t.Run("empty utterances yield no chunks", func(t *testing.T) {
		chunks := Chunk(&core.Transcript{ID: "t1"})
		assert.Empty(t, chunks)
	})

	t.Run("nil transcript", func(t *testing.T) {
		assert.Nil(t, Chunk(nil))
	})

	t.Run("single speaker yields one chunk", func(t *testing.T) {
		chunks := Chunk(&core.Transcript{
			ID:         "t1",
			Utterances: []core.Utterance{utt(4, "a"), utt(4, "b"), utt(4, "c")},
		})
		require.Len(t, chunks, 1)
		assert.Equal(t, "a b c", chunks[0].Text)
		assert.Nil(t, chunks[0].PrevSpeaker)
		assert.Nil(t, chunks[0].NextSpeaker)
		assert.Equal(t, 1, chunks[0].TotalChunks)
	})

	t.Run("returning speaker opens a new block", func(t *testing.T) {
		chunks := Chunk(&core.Transcript{
			ID:         "t1",
			Utterances: []core.Utterance{utt(1, "a"), utt(2, "b"), utt(1, "c")},
		})
		require.Len(t, chunks, 3)
		assert.Equal(t, "Speaker 1", *chunks[1].PrevSpeaker)
		assert.Equal(t, "Speaker 1", *chunks[1].NextSpeaker)
	})

	t.Run("named speakers are used as labels", func(t *testing.T) {
		chunks := Chunk(&core.Transcript{
			ID: "t1",
			Utterances: []core.Utterance{
				{Text: "hello", SpeakerID: 0, SpeakerName: "Ada"},
				{Text: "hi", SpeakerID: 1, SpeakerName: "Bob"},
			},
		})
		require.Len(t, chunks, 2)
		assert.Equal(t, "Ada", chunks[0].Speaker)
		assert.Equal(t, "Ada", *chunks[1].PrevSpeaker)
	})

	t.Run("ids sharing a name form one block", func(t *testing.T) {
		chunks := Chunk(&core.Transcript{
			ID: "t1",
			Utterances: []core.Utterance{
				{Text: "one", SpeakerID: 1, SpeakerName: "Ada"},
				{Text: "two", SpeakerID: 2, SpeakerName: "Ada"},
				{Text: "three", SpeakerID: 3},
			},
		})
		require.Len(t, chunks, 2)
		assert.Equal(t, "Ada", chunks[0].Speaker)
		assert.Equal(t, "one two", chunks[0].Text)
		assert.Equal(t, "Speaker 3", chunks[1].Speaker)
	})

	t.Run("name matching another id's default label", func(t *testing.T) {
		chunks := Chunk(&core.Transcript{
			ID: "t1",
			Utterances: []core.Utterance{
				{Text: "a", SpeakerID: 1, SpeakerName: "Ada"},
				{Text: "b", SpeakerID: 1},
				{Text: "c", SpeakerID: 2, SpeakerName: "Speaker 1"},
			},
		})
		require.Len(t, chunks, 2)
		assert.Equal(t, "Ada", chunks[0].Speaker)
		assert.Equal(t, "Speaker 1", chunks[1].Speaker)
		assert.Equal(t, "b c", chunks[1].Text)
		for i := 1; i < len(chunks); i++ {
			assert.NotEqual(t, chunks[i-1].Speaker, chunks[i].Speaker)
		}
	})
}

func TestSpeakerBlocks_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		n := rng.Intn(40)
		utterances := make([]core.Utterance, n)
		for i := range utterances {
			utterances[i] = utt(rng.Intn(3), fmt.Sprintf("u%d", i))
			switch rng.Intn(4) {
			case 0:
				utterances[i].SpeakerName = "Ada"
			case 1:
				utterances[i].SpeakerName = "Speaker 1"
			}
		}
		tr := &core.Transcript{ID: "t", Utterances: utterances}

		blocks := SpeakerBlocks(utterances)
		chunks := Chunk(tr)
		require.Len(t, chunks, len(blocks))

		// Indices are exactly 0..total-1.
		for i, c := range chunks {
			assert.Equal(t, i, c.ChunkIndex)
			assert.Equal(t, len(blocks), c.TotalChunks)
		}

		// Adjacent chunks never share a speaker.
		for i := 1; i < len(chunks); i++ {
			assert.NotEqual(t, chunks[i-1].Speaker, chunks[i].Speaker)
		}

		// Re-expanding the blocks reproduces the original order.
		var expanded []core.Utterance
		for _, b := range blocks {
			expanded = append(expanded, b.Utterances...)
		}
		assert.Equal(t, len(utterances), len(expanded))
		for i := range expanded {
			assert.Equal(t, utterances[i].Text, expanded[i].Text)
		}
	}
}
