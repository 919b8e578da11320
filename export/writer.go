// Package export writes embedded chunk records to the local export file and,
// optionally, to a remote vector sink.
//
// The local file is the authoritative record of completed work. A batch is
// fully written and synced before AppendBatch returns, so a checkpoint saved
// afterwards never refers to records that are not on disk.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/file"
)

// Stats counts what a Writer has done since it was opened.
type Stats struct {
	Records       int
	Batches       int
	Upserted      int
	FailedUpserts int
}

// Writer appends batches of records to an export file.
type Writer struct {
	path      string
	format    Format
	sink      storage.VectorRepository
	namespace string
	logger    *slog.Logger

	mu      sync.Mutex
	file    *os.File          // jsonl
	offset  int64             // jsonl bytes known to end in a full record
	vectors []json.RawMessage // json
	stats   Stats
	closed  bool
}

type document struct {
	Vectors []json.RawMessage `json:"vectors"`
}

// Option configures a Writer.
type Option func(*Writer) error

// WithFormat sets the file format. Defaults to the format implied by the
// file extension.
func WithFormat(format Format) Option {
	return func(w *Writer) error {
		f, err := ParseFormat(string(format))
		if err != nil {
			return err
		}
		w.format = f
		return nil
	}
}

// WithNamespace tags every record with namespace and upserts into it.
func WithNamespace(namespace string) Option {
	return func(w *Writer) error {
		w.namespace = namespace
		return nil
	}
}

// WithSink also upserts every record into repo.
func WithSink(repo storage.VectorRepository) Option {
	return func(w *Writer) error {
		w.sink = repo
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) error {
		w.logger = logger
		return nil
	}
}

// NewWriter opens path for appending. For the jsonl format a partial record
// left at the end of the file by an interrupted write is cut off. For the
// json format any existing document is loaded so new batches extend it.
func NewWriter(path string, opts ...Option) (*Writer, error) {
	if path == "" {
		return nil, errors.New("export path is required")
	}
	w := &Writer{path: path, format: FormatFromPath(path)}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "export-writer", "path", path, "format", w.format)

	switch w.format {
	case FormatJSONL:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening export file: %w", err)
		}
		offset, dropped, err := trimPartialLine(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("repairing export file: %w", err)
		}
		if dropped > 0 {
			w.logger.Warn("dropped partial record at end of export file", "bytes", dropped)
		}
		w.file = f
		w.offset = offset
	case FormatJSON:
		vectors, err := loadDocument(path)
		if err != nil {
			return nil, err
		}
		w.vectors = vectors
		w.logger.Info("loaded existing export", "records", len(vectors))
	}
	return w, nil
}

// Path returns the export file location.
func (w *Writer) Path() string {
	return w.path
}

// AppendBatch writes every chunk to the export file and syncs it, then
// upserts the batch into the sink if one is configured. Only a local write
// failure is returned; sink failures are logged and counted.
func (w *Writer) AppendBatch(ctx context.Context, chunks []core.EmbeddedChunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if len(chunks) == 0 {
		return nil
	}

	lines := make([][]byte, 0, len(chunks))
	for i := range chunks {
		chunks[i].Namespace = w.namespace
		line, err := json.Marshal(core.NewExportRecord(chunks[i]))
		if err != nil {
			return fmt.Errorf("encoding %s: %w", chunks[i].VectorID, err)
		}
		lines = append(lines, line)
	}

	var err error
	switch w.format {
	case FormatJSONL:
		err = w.appendLines(lines)
	case FormatJSON:
		err = w.rewriteDocument(lines)
	}
	if err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}

	w.stats.Records += len(chunks)
	w.stats.Batches++
	w.logger.Debug("appended batch", "records", len(chunks))

	if w.sink != nil {
		w.upsert(ctx, chunks)
	}
	return nil
}

func (w *Writer) appendLines(lines [][]byte) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if _, err := w.file.Write(buf.Bytes()); err != nil {
		return errors.Join(err, w.rollback())
	}
	if err := w.file.Sync(); err != nil {
		return errors.Join(err, w.rollback())
	}
	w.offset += int64(buf.Len())
	return nil
}

// rollback cuts the file back to the end of the last complete batch.
func (w *Writer) rollback() error {
	if err := w.file.Truncate(w.offset); err != nil {
		return fmt.Errorf("truncating after failed write: %w", err)
	}
	if _, err := w.file.Seek(w.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking after failed write: %w", err)
	}
	return nil
}

// trimPartialLine truncates f just after its last newline and positions it
// there. It returns the new size and the number of bytes dropped.
func trimPartialLine(f *os.File) (size, dropped int64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	end := info.Size()

	buf := make([]byte, 4096)
	for pos := end; pos > 0; {
		n := min(pos, int64(len(buf)))
		pos -= n
		if _, err := f.ReadAt(buf[:n], pos); err != nil {
			return 0, 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			size = pos + int64(i) + 1
			break
		}
	}

	if size < end {
		if err := f.Truncate(size); err != nil {
			return 0, 0, err
		}
	}
	if _, err := f.Seek(size, io.SeekStart); err != nil {
		return 0, 0, err
	}
	return size, end - size, nil
}

func (w *Writer) rewriteDocument(lines [][]byte) error {
	vectors := append(w.vectors[:len(w.vectors):len(w.vectors)], toRaw(lines)...)
	data, err := json.MarshalIndent(document{Vectors: vectors}, "", "  ")
	if err != nil {
		return err
	}
	if err := file.WriteAtomic(w.path, data); err != nil {
		return err
	}
	w.vectors = vectors
	return nil
}

// upsert sends the batch to the sink. When the batch request fails each
// record is retried alone so one bad record does not sink the rest.
func (w *Writer) upsert(ctx context.Context, chunks []core.EmbeddedChunk) {
	err := w.sink.Upsert(ctx, w.namespace, chunks)
	if err == nil {
		w.stats.Upserted += len(chunks)
		return
	}
	w.logger.Warn("batch upsert failed, retrying records individually", "records", len(chunks), "err", err)

	for i := range chunks {
		if err := w.sink.Upsert(ctx, w.namespace, chunks[i:i+1]); err != nil {
			w.stats.FailedUpserts++
			w.logger.Error("upsert failed",
				"vector_id", chunks[i].VectorID,
				"transcript_id", chunks[i].Chunk.TranscriptID,
				"err", fmt.Errorf("%w: %w", ErrSinkWriteFailure, err))
			continue
		}
		w.stats.Upserted++
	}
}

// Stats returns a snapshot of the writer's counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close closes the export file. The sink is owned by the caller.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func loadDocument(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding existing export file: %w", err)
	}
	return doc.Vectors, nil
}

func toRaw(lines [][]byte) []json.RawMessage {
	raw := make([]json.RawMessage, len(lines))
	for i, line := range lines {
		raw[i] = line
	}
	return raw
}
