package reembed

import (
	"errors"
	"path/filepath"
)

var (
	// ErrInputRequired is returned when no input export file is given.
	ErrInputRequired = errors.New("input export file required")

	// ErrGeneratorRequired is returned when an embedding generator is not provided.
	ErrGeneratorRequired = errors.New("embedding generator required")

	// ErrWriterRequired is returned when an output writer is not provided.
	ErrWriterRequired = errors.New("output writer required")

	// ErrSameFile is returned when the output would overwrite the input.
	ErrSameFile = errors.New("output must differ from input")
)

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
