package embedding

import "errors"

var (
	// ErrEmbeddingUnavailable is returned when the embedding backend keeps
	// failing after every retry attempt.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch is returned when the backend produces a vector
	// whose length differs from the configured dimensions. It is never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidMaxAttempts rejects an attempt budget below one.
	ErrInvalidMaxAttempts = errors.New("embedding attempts must be at least one")
)
