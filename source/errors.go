package source

import "errors"

var (
	// ErrSourceUnavailable is returned when the transcript service cannot be
	// reached, answers with an unexpected status, or returns a body that does
	// not match the expected schema.
	ErrSourceUnavailable = errors.New("transcript source unavailable")

	// errNotFound marks a 404 from the service. Clients translate it into a
	// (nil, nil) result.
	errNotFound = errors.New("not found")
)
