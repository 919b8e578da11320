// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"slices"
)

// ValidateTranscript validates a Transcript according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Duration must not be negative
//   - Every utterance must satisfy StartTime <= EndTime
//
// NOT validated:
//   - Title (untitled meetings are legal)
//   - Utterance order (see SortUtterances)
func ValidateTranscript(t *Transcript) error {
	if t == nil {
		return fmt.Errorf("%w: transcript is nil", ErrInvalidTranscript)
	}

	if t.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTranscript, ErrMissingTranscriptID)
	}

	if t.Duration < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTranscript, ErrNegativeDuration)
	}

	for i, u := range t.Utterances {
		if u.StartTime > u.EndTime {
			return fmt.Errorf("%w: utterance %d: %w", ErrInvalidTranscript, i, ErrInvalidUtteranceTiming)
		}
	}

	return nil
}

// SortUtterances orders utterances by StartTime, keeping the source order
// of utterances that start at the same instant.
func SortUtterances(t *Transcript) {
	slices.SortStableFunc(t.Utterances, func(a, b Utterance) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		default:
			return 0
		}
	})
}
