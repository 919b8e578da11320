package ingestion

import (
	"log/slog"
	"time"
)

// State is a step of a pipeline run.
type State int

const (
	StateStart State = iota
	StateListing
	StateFiltering
	StateProcessing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateListing:
		return "LISTING"
	case StateFiltering:
		return "FILTERING"
	case StateProcessing:
		return "PROCESSING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Summary reports what a run did.
type Summary struct {
	// Found is the number of distinct ids the listing returned.
	Found int
	// AlreadyDone is the number of listed ids the checkpoint already held.
	AlreadyDone int
	// Processed is the number of transcripts newly checkpointed.
	Processed int
	NotFound  int
	Failed    int
	// Chunks is the number of records written.
	Chunks       int
	SinkFailures int
	// Interrupted is set when the run stopped early on cancellation.
	Interrupted bool
	Elapsed     time.Duration
}

func (s *Summary) log(logger *slog.Logger) {
	logger.Info("export summary",
		"found", s.Found,
		"already_done", s.AlreadyDone,
		"processed", s.Processed,
		"not_found", s.NotFound,
		"failed", s.Failed,
		"chunks", s.Chunks,
		"sink_failures", s.SinkFailures,
		"interrupted", s.Interrupted,
		"elapsed", s.Elapsed.Round(time.Millisecond),
	)
}
