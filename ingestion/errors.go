package ingestion

import "errors"

var (
	// ErrSourceRequired is returned when a transcript source is not provided.
	ErrSourceRequired = errors.New("transcript source required")

	// ErrGeneratorRequired is returned when an embedding generator is not provided.
	ErrGeneratorRequired = errors.New("embedding generator required")

	// ErrWriterRequired is returned when an export writer is not provided.
	ErrWriterRequired = errors.New("export writer required")

	// ErrCheckpointRepositoryRequired is returned when a checkpoint repository is not provided.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")

	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)
