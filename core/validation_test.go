package core

import (
	"errors"
	"testing"
)

func TestValidateTranscript(t *testing.T) {
	tests := []struct {
		name       string
		transcript *Transcript
		wantErr    error
	}{
		{
			name: "valid transcript",
			transcript: &Transcript{
				ID:       "t1",
				Duration: 60,
				Utterances: []Utterance{
					{Text: "hi", StartTime: 0, EndTime: 1},
					{Text: "there", StartTime: 1, EndTime: 1},
				},
			},
			wantErr: nil,
		},
		{
			name:       "valid transcript without utterances",
			transcript: &Transcript{ID: "t1"},
			wantErr:    nil,
		},
		{
			name:       "nil transcript",
			transcript: nil,
			wantErr:    ErrInvalidTranscript,
		},
		{
			name:       "missing id",
			transcript: &Transcript{Duration: 10},
			wantErr:    ErrMissingTranscriptID,
		},
		{
			name:       "negative duration",
			transcript: &Transcript{ID: "t1", Duration: -1},
			wantErr:    ErrNegativeDuration,
		},
		{
			name: "utterance ends before it starts",
			transcript: &Transcript{
				ID:         "t1",
				Utterances: []Utterance{{Text: "oops", StartTime: 5, EndTime: 4}},
			},
			wantErr: ErrInvalidUtteranceTiming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTranscript(tt.transcript)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTranscript() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTranscript() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidTranscript) {
				t.Errorf("ValidateTranscript() error should wrap ErrInvalidTranscript, got %v", err)
			}
		})
	}
}

func TestSortUtterances(t *testing.T) {
	tr := &Transcript{
		ID: "t1",
		Utterances: []Utterance{
			{Text: "c", StartTime: 3},
			{Text: "a", StartTime: 1},
			{Text: "b1", StartTime: 2},
			{Text: "b2", StartTime: 2},
		},
	}

	SortUtterances(tr)

	want := []string{"a", "b1", "b2", "c"}
	for i, w := range want {
		if tr.Utterances[i].Text != w {
			t.Errorf("Utterances[%d] = %q, want %q", i, tr.Utterances[i].Text, w)
		}
	}
}
