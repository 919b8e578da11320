// Package source fetches meeting transcripts from the remote transcription
// service.
//
// Two clients implement Source: RESTClient talks to the paged REST API and
// GraphQLClient to the GraphQL endpoint. Both normalise dates to UTC, sort
// utterances by start time, and treat HTTP 429 as a signal to pause and retry
// the same request rather than as a failure.
package source

import (
	"context"
	"time"

	"github.com/poiesic/minutes/core"
)

// Source lists and fetches transcripts.
type Source interface {
	// ListTranscripts returns the ids of transcripts matching opts.
	// On a mid-listing failure it returns the ids gathered so far together
	// with the error, so callers can still process a partial list.
	ListTranscripts(ctx context.Context, opts ListOptions) (*Listing, error)

	// GetTranscript fetches one transcript with its utterances.
	// Returns nil, nil if the service does not know the id.
	GetTranscript(ctx context.Context, id core.TranscriptID) (*core.Transcript, error)
}

// ListOptions narrows a listing.
type ListOptions struct {
	// Start is the earliest recording date to include.
	Start *time.Time
	// End is the latest recording date to include. A value at midnight
	// includes that whole day.
	End *time.Time
	// Limit caps the number of ids returned. Zero means no cap.
	Limit int
}

// Listing is the result of ListTranscripts.
type Listing struct {
	IDs []core.TranscriptID
	// Total is the number of matching transcripts the service reported.
	// It can exceed len(IDs) when Limit is set.
	Total int
}

// Contains reports whether t falls inside the options' date window.
func (o ListOptions) Contains(t time.Time) bool {
	if o.Start != nil && t.Before(*o.Start) {
		return false
	}
	if o.End != nil && !t.Before(endBound(*o.End)) {
		return false
	}
	return true
}

// endBound returns the exclusive upper bound for an inclusive end date.
func endBound(end time.Time) time.Time {
	end = end.UTC()
	if end.Equal(end.Truncate(24 * time.Hour)) {
		return end.Add(24 * time.Hour)
	}
	return end.Add(time.Nanosecond)
}
