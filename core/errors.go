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

import "errors"

// Domain validation errors
var (
	// ErrInvalidTranscript indicates a Transcript failed validation.
	ErrInvalidTranscript = errors.New("invalid transcript")

	// ErrMissingTranscriptID indicates the ID field is empty.
	ErrMissingTranscriptID = errors.New("transcript id cannot be empty")

	// ErrNegativeDuration indicates a negative meeting duration.
	ErrNegativeDuration = errors.New("duration cannot be negative")

	// ErrInvalidUtteranceTiming indicates an utterance ends before it starts.
	ErrInvalidUtteranceTiming = errors.New("utterance end time precedes start time")
)
