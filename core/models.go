package core

import (
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// SourceName tags every exported record with the service it came from.
const SourceName = "fireflies"

// TranscriptID is the opaque identifier a source assigns to a transcript.
// It is the identity key for checkpointing and resume.
type TranscriptID string

// Participant is a person attending a transcribed meeting.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Utterance is a single time-stamped sentence spoken by one speaker.
// StartTime and EndTime are offsets in seconds from the start of the meeting.
type Utterance struct {
	Text        string
	SpeakerID   int
	SpeakerName string
	StartTime   float64
	EndTime     float64
}

// SpeakerLabel returns the label used for the utterance's speaker.
func (u Utterance) SpeakerLabel() string {
	if u.SpeakerName != "" {
		return u.SpeakerName
	}
	return fmt.Sprintf("Speaker %d", u.SpeakerID)
}

// Transcript is the full content of one meeting as returned by a source.
type Transcript struct {
	ID           TranscriptID
	Title        string
	Summary      string    // Service-generated overview, may be empty
	Date         time.Time // Always UTC
	Duration     float64   // Seconds
	Participants []Participant
	Utterances   []Utterance // Ordered by StartTime
}

// SpeakerBlock is a maximal run of consecutive utterances sharing one speaker.
type SpeakerBlock struct {
	Speaker    string
	Utterances []Utterance
}

// Chunk is the exported text unit derived from one SpeakerBlock.
// PrevSpeaker and NextSpeaker are nil at the edges of a transcript.
type Chunk struct {
	TranscriptID TranscriptID
	ChunkIndex   int
	TotalChunks  int
	Text         string
	Speaker      string
	PrevSpeaker  *string
	NextSpeaker  *string
	Title        string
	Summary      string
	Topics       []string
	Date         time.Time
	Duration     float64
	Participants []Participant
}

// EmbeddedChunk is a Chunk paired with its embedding and the identity of the
// model that produced it.
type EmbeddedChunk struct {
	VectorID    string
	Values      []float32
	Chunk       Chunk
	Model       string
	Dimensions  int
	ContentHash string
	Namespace   string
	ProcessedAt time.Time
}

// Match is a single vector sink query hit.
type Match struct {
	VectorID string
	Score    float32
	Metadata map[string]any
	Text     string
}

// VectorID derives the sink identifier for a chunk. It is a pure function
// of its inputs so that repeated upserts overwrite instead of duplicating.
func VectorID(id TranscriptID, chunkIndex int) string {
	return fmt.Sprintf("%s_%s_%d", SourceName, id, chunkIndex)
}

// ContentHash returns a short BLAKE2b digest of text, hex encoded.
// Identical text always produces the identical digest.
func ContentHash(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceURL returns the web address of a transcript on the source service.
func SourceURL(id TranscriptID) string {
	return "https://app.fireflies.ai/transcript/" + string(id)
}

// CheckpointSet is the set of transcripts that have been fully exported.
type CheckpointSet map[TranscriptID]struct{}

// NewCheckpointSet creates a set holding the given ids.
func NewCheckpointSet(ids ...TranscriptID) CheckpointSet {
	s := make(CheckpointSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add records id as done.
func (s CheckpointSet) Add(id TranscriptID) {
	s[id] = struct{}{}
}

// Contains reports whether id has been recorded.
func (s CheckpointSet) Contains(id TranscriptID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of recorded ids.
func (s CheckpointSet) Len() int {
	return len(s)
}

// IDs returns the recorded ids in sorted order.
func (s CheckpointSet) IDs() []TranscriptID {
	ids := make([]TranscriptID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns an independent copy of the set.
func (s CheckpointSet) Clone() CheckpointSet {
	c := make(CheckpointSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}
