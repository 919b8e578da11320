package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/poiesic/minutes/core"
)

// sentence is the utterance shape shared by both APIs.
type sentence struct {
	Text        string  `json:"text"`
	SpeakerID   int     `json:"speaker_id"`
	SpeakerName string  `json:"speaker_name"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
}

// summaryText decodes a meeting summary sent either as a plain string or
// as an object with an overview field. Null decodes as empty.
type summaryText string

func (s *summaryText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = summaryText(str)
		return nil
	}
	var obj struct {
		Overview string `json:"overview"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	*s = summaryText(obj.Overview)
	return nil
}

// detail is the transcript content shared by both APIs.
type detail struct {
	id           core.TranscriptID
	title        string
	summary      summaryText
	date         flexTime
	duration     float64
	participants []core.Participant
	sentences    []sentence
}

// buildTranscript converts decoded wire fields into a validated domain
// transcript. Utterances are stable-sorted by start time first. A transcript
// that fails validation is reported as ErrSourceUnavailable.
func buildTranscript(d detail) (*core.Transcript, error) {
	sentences, participants := d.sentences, d.participants

	utterances := make([]core.Utterance, len(sentences))
	for i, s := range sentences {
		utterances[i] = core.Utterance{
			Text:        s.Text,
			SpeakerID:   s.SpeakerID,
			SpeakerName: s.SpeakerName,
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
		}
	}
	if participants == nil {
		participants = []core.Participant{}
	}

	t := &core.Transcript{
		ID:           d.id,
		Title:        d.title,
		Summary:      string(d.summary),
		Date:         d.date.UTC(),
		Duration:     d.duration,
		Participants: participants,
		Utterances:   utterances,
	}
	core.SortUtterances(t)

	if err := core.ValidateTranscript(t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return t, nil
}
