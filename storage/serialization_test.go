package storage

import (
	"testing"
	"time"

	"github.com/poiesic/minutes/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointEntry_Codec(t *testing.T) {
	saved := time.Date(2024, 5, 1, 8, 30, 0, 123456000, time.UTC)
	entry := CheckpointEntry{ID: "01HXYZ", SavedAt: saved}

	data := MarshalCheckpointEntry(entry)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalCheckpointEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, decoded.ID)
	assert.True(t, saved.Equal(decoded.SavedAt))
}

func TestUnmarshalCheckpointEntry_Invalid(t *testing.T) {
	_, err := UnmarshalCheckpointEntry([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	data := MarshalCheckpointEntry(CheckpointEntry{ID: "abc", SavedAt: time.Now()})
	_, err = UnmarshalCheckpointEntry(data[:2])
	assert.Error(t, err)
}

func TestEmbeddedChunk_Codec(t *testing.T) {
	prev := "Speaker 1"
	ec := &core.EmbeddedChunk{
		VectorID:    "fireflies_t1_1",
		Values:      []float32{0.5, -0.25, 0, 1e-7},
		Model:       "text-embedding-3-small",
		Dimensions:  4,
		ContentHash: core.ContentHash("hey"),
		Namespace:   "meetings",
		ProcessedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Chunk: core.Chunk{
			TranscriptID: "t1",
			ChunkIndex:   1,
			TotalChunks:  2,
			Text:         "hey",
			Speaker:      "Speaker 2",
			PrevSpeaker:  &prev,
			Title:        "Sync",
			Summary:      "Discussed the roadmap.",
			Topics:       []string{"sync", "the roadmap"},
			Date:         time.Date(2024, 4, 15, 19, 3, 22, 0, time.UTC),
			Duration:     1800.5,
			Participants: []core.Participant{{Name: "Ada", Email: "ada@example.com", Role: "host"}},
		},
	}

	decoded, err := UnmarshalEmbeddedChunk(MarshalEmbeddedChunk(ec))
	require.NoError(t, err)

	assert.Equal(t, ec.VectorID, decoded.VectorID)
	assert.Equal(t, ec.Values, decoded.Values)
	assert.Equal(t, ec.Namespace, decoded.Namespace)
	assert.Equal(t, ec.Chunk.Text, decoded.Chunk.Text)
	assert.Equal(t, ec.Chunk.Participants, decoded.Chunk.Participants)
	assert.Equal(t, 1800.5, decoded.Chunk.Duration)
	assert.True(t, ec.Chunk.Date.Equal(decoded.Chunk.Date))
	require.NotNil(t, decoded.Chunk.PrevSpeaker)
	assert.Equal(t, prev, *decoded.Chunk.PrevSpeaker)
	assert.Nil(t, decoded.Chunk.NextSpeaker)
	assert.Equal(t, ec.Chunk.Summary, decoded.Chunk.Summary)
	assert.Equal(t, ec.Chunk.Topics, decoded.Chunk.Topics)
	assert.True(t, ec.ProcessedAt.Equal(decoded.ProcessedAt))
}

func TestEmbeddedChunk_ZeroDateSurvives(t *testing.T) {
	ec := &core.EmbeddedChunk{VectorID: "v", Chunk: core.Chunk{TranscriptID: "t"}}

	decoded, err := UnmarshalEmbeddedChunk(MarshalEmbeddedChunk(ec))
	require.NoError(t, err)
	assert.True(t, decoded.Chunk.Date.IsZero())
	assert.True(t, decoded.ProcessedAt.IsZero())
	assert.Empty(t, decoded.Chunk.Topics)
	assert.Empty(t, decoded.Values)
	assert.Empty(t, decoded.Chunk.Participants)
}

func TestUnmarshalEmbeddedChunk_Truncated(t *testing.T) {
	ec := &core.EmbeddedChunk{
		VectorID: "fireflies_t1_0",
		Values:   []float32{1, 2, 3},
		Chunk:    core.Chunk{TranscriptID: "t1", Text: "hello"},
	}
	data := MarshalEmbeddedChunk(ec)

	for _, cut := range []int{0, 3, len(data) / 2, len(data) - 1} {
		_, err := UnmarshalEmbeddedChunk(data[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}
