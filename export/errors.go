package export

import "errors"

var (
	// ErrSinkWriteFailure indicates a record could not be upserted into the
	// remote vector sink. The local append still counts as completion.
	ErrSinkWriteFailure = errors.New("sink write failure")

	// ErrUnknownFormat indicates an output format other than jsonl or json.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrWriterClosed indicates an append after Close.
	ErrWriterClosed = errors.New("export writer is closed")
)
