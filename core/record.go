package core

import (
	"time"
)

// ExportRecord is the on-disk form of one EmbeddedChunk.
// One record is written per line in the jsonl export format.
type ExportRecord struct {
	ID        string         `json:"id"`
	Values    []float32      `json:"values"`
	Text      string         `json:"text"`
	Namespace string         `json:"namespace,omitempty"`
	Metadata  RecordMetadata `json:"metadata"`
}

// RecordMetadata carries the chunk fields and the embedding identity.
type RecordMetadata struct {
	TranscriptID        TranscriptID  `json:"transcript_id"`
	Title               string        `json:"title"`
	Speaker             string        `json:"speaker"`
	PrevSpeaker         *string       `json:"prev_speaker"`
	NextSpeaker         *string       `json:"next_speaker"`
	Participants        []Participant `json:"participants"`
	ParticipantEmails   []string      `json:"participant_emails"`
	Summary             string        `json:"summary"`
	Topics              []string      `json:"topics"`
	RecordingDate       string        `json:"recording_date"`
	Duration            float64       `json:"duration"`
	ChunkIndex          int           `json:"chunk_index"`
	TotalChunks         int           `json:"total_chunks"`
	Source              string        `json:"source"`
	SourceURL           string        `json:"source_url"`
	EmbeddingModel      string        `json:"embedding_model"`
	EmbeddingDimensions int           `json:"embedding_dimensions"`
	ContentHash         string        `json:"content_hash"`
	ProcessedDate       string        `json:"processed_date"`
}

// NewExportRecord converts an EmbeddedChunk to its on-disk form.
func NewExportRecord(ec EmbeddedChunk) ExportRecord {
	c := ec.Chunk
	participants := c.Participants
	if participants == nil {
		participants = []Participant{}
	}
	emails := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.Email != "" {
			emails = append(emails, p.Email)
		}
	}
	topics := c.Topics
	if topics == nil {
		topics = []string{}
	}
	return ExportRecord{
		ID:        ec.VectorID,
		Values:    ec.Values,
		Text:      c.Text,
		Namespace: ec.Namespace,
		Metadata: RecordMetadata{
			TranscriptID:        c.TranscriptID,
			Title:               c.Title,
			Speaker:             c.Speaker,
			PrevSpeaker:         c.PrevSpeaker,
			NextSpeaker:         c.NextSpeaker,
			Participants:        participants,
			ParticipantEmails:   emails,
			Summary:             c.Summary,
			Topics:              topics,
			RecordingDate:       formatTime(c.Date),
			Duration:            c.Duration,
			ChunkIndex:          c.ChunkIndex,
			TotalChunks:         c.TotalChunks,
			Source:              SourceName,
			SourceURL:           SourceURL(c.TranscriptID),
			EmbeddingModel:      ec.Model,
			EmbeddingDimensions: ec.Dimensions,
			ContentHash:         ec.ContentHash,
			ProcessedDate:       formatTime(ec.ProcessedAt),
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime is the inverse of formatTime. Malformed values are zero.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// EmbeddedChunk converts the record back to the domain type.
// A malformed date decodes as the zero time.
func (r ExportRecord) EmbeddedChunk() EmbeddedChunk {
	m := r.Metadata
	return EmbeddedChunk{
		VectorID:    r.ID,
		Values:      r.Values,
		Model:       m.EmbeddingModel,
		Dimensions:  m.EmbeddingDimensions,
		ContentHash: m.ContentHash,
		Namespace:   r.Namespace,
		ProcessedAt: parseTime(m.ProcessedDate),
		Chunk: Chunk{
			TranscriptID: m.TranscriptID,
			ChunkIndex:   m.ChunkIndex,
			TotalChunks:  m.TotalChunks,
			Text:         r.Text,
			Speaker:      m.Speaker,
			PrevSpeaker:  m.PrevSpeaker,
			NextSpeaker:  m.NextSpeaker,
			Title:        m.Title,
			Summary:      m.Summary,
			Topics:       m.Topics,
			Date:         parseTime(m.RecordingDate),
			Duration:     m.Duration,
			Participants: m.Participants,
		},
	}
}

// FlatMetadata returns the record metadata as a flat map of scalar and
// string-list values, suitable for vector indexes that reject nested objects
// and nulls. Absent neighbouring speakers are omitted. The chunk text is
// stored under "content".
func (ec EmbeddedChunk) FlatMetadata() map[string]any {
	c := ec.Chunk
	names := make([]any, 0, len(c.Participants))
	emails := make([]any, 0, len(c.Participants))
	for _, p := range c.Participants {
		names = append(names, p.Name)
		if p.Email != "" {
			emails = append(emails, p.Email)
		}
	}
	topics := make([]any, len(c.Topics))
	for i, topic := range c.Topics {
		topics[i] = topic
	}

	m := map[string]any{
		"transcript_id":        string(c.TranscriptID),
		"title":                c.Title,
		"speaker":              c.Speaker,
		"participant_names":    names,
		"participant_emails":   emails,
		"duration":             c.Duration,
		"chunk_index":          float64(c.ChunkIndex),
		"total_chunks":         float64(c.TotalChunks),
		"source":               SourceName,
		"source_url":           SourceURL(c.TranscriptID),
		"embedding_model":      ec.Model,
		"embedding_dimensions": float64(ec.Dimensions),
		"content_hash":         ec.ContentHash,
		"content":              c.Text,
		"summary":              c.Summary,
		"topics":               topics,
	}
	if !c.Date.IsZero() {
		m["recording_date"] = formatTime(c.Date)
	}
	if !ec.ProcessedAt.IsZero() {
		m["processed_date"] = formatTime(ec.ProcessedAt)
	}
	if c.PrevSpeaker != nil {
		m["prev_speaker"] = *c.PrevSpeaker
	}
	if c.NextSpeaker != nil {
		m["next_speaker"] = *c.NextSpeaker
	}
	return m
}
