package storage

import (
	"context"

	"github.com/poiesic/minutes/core"
)

// CheckpointRepository persists the set of transcripts that have been fully
// exported. Implementations are single-writer: the pipeline serialises every
// call.
type CheckpointRepository interface {
	// LoadCheckpoint returns the recorded set.
	// A missing store loads as an empty set. A corrupt store is logged,
	// reported as ErrCheckpointCorrupt internally, and also loads as an
	// empty set so a run can proceed.
	LoadCheckpoint(ctx context.Context) (core.CheckpointSet, error)

	// SaveCheckpoint replaces the stored set with set, atomically.
	// After a crash the store holds either the previous or the new set.
	SaveCheckpoint(ctx context.Context, set core.CheckpointSet) error

	// Close releases resources held by the repository.
	Close() error
}

// VectorRepository is a keyed vector index that records are upserted into
// and queried from. Upserting an existing id overwrites it.
type VectorRepository interface {
	// Upsert writes records into namespace, keyed by their VectorID.
	Upsert(ctx context.Context, namespace string, records []core.EmbeddedChunk) error

	// Query returns the topK records in namespace closest to vector,
	// best match first.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]core.Match, error)

	// Close releases resources held by the repository.
	Close() error
}
