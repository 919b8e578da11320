package reembed

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/poiesic/minutes/ai/mock"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReembedder_Run(t *testing.T) {
	input := writeTestExport(t, 10, export.FormatJSONL)
	output := filepath.Join(t.TempDir(), "reembedded.jsonl")

	w, err := export.NewWriter(output)
	require.NoError(t, err)

	var buf bytes.Buffer
	embedder := mock.NewMockEmbedderWithDimensions(5)
	r, err := NewReembedder(input, export.FormatJSONL, newTestGenerator(t, embedder, 5), w,
		&Config{BatchSize: 3, ReportInterval: 3}, &buf)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 10, n)
	assert.Equal(t, 4, embedder.CallCount(), "batches of 3 over 10 records")

	records, err := export.ReadFile(output, export.FormatJSONL)
	require.NoError(t, err)
	require.Len(t, records, 10)
	for _, rec := range records {
		assert.Equal(t, "new-model", rec.Model)
		assert.Equal(t, 5, rec.Dimensions)
		assert.Len(t, rec.Values, 5)
	}
	assert.Equal(t, core.VectorID("t9", 0), records[9].VectorID)

	out := buf.String()
	assert.Contains(t, out, "Starting reembedding of 10 records")
	assert.Contains(t, out, "Reembedding complete")
}

func TestReembedder_EmptyInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "empty.jsonl")
	w0, err := export.NewWriter(input)
	require.NoError(t, err)
	require.NoError(t, w0.Close())

	var buf bytes.Buffer
	w := &collectWriter{}
	r, err := NewReembedder(input, export.FormatJSONL, newTestGenerator(t, mock.NewMockEmbedderWithDimensions(3), 3), w, nil, &buf)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, buf.String(), "No records found")
}

func TestReembedder_WriteFailureStops(t *testing.T) {
	input := writeTestExport(t, 4, export.FormatJSONL)
	w := &collectWriter{err: errors.New("disk full")}

	r, err := NewReembedder(input, export.FormatJSONL, newTestGenerator(t, mock.NewMockEmbedderWithDimensions(3), 3), w,
		&Config{BatchSize: 2, ReportInterval: 1}, nil)
	require.NoError(t, err)

	n, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestNewReembedder_Validation(t *testing.T) {
	gen := newTestGenerator(t, mock.NewMockEmbedderWithDimensions(3), 3)
	input := writeTestExport(t, 1, export.FormatJSONL)

	_, err := NewReembedder("", export.FormatJSONL, gen, &collectWriter{}, nil, nil)
	assert.ErrorIs(t, err, ErrInputRequired)

	_, err = NewReembedder(input, export.FormatJSONL, nil, &collectWriter{}, nil, nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	_, err = NewReembedder(input, export.FormatJSONL, gen, nil, nil, nil)
	assert.ErrorIs(t, err, ErrWriterRequired)

	same, err := export.NewWriter(input)
	require.NoError(t, err)
	defer same.Close()
	_, err = NewReembedder(input, export.FormatJSONL, gen, same, nil, nil)
	assert.ErrorIs(t, err, ErrSameFile)
}

type collectWriter struct {
	records []core.EmbeddedChunk
	err     error
}

func (w *collectWriter) AppendBatch(ctx context.Context, chunks []core.EmbeddedChunk) error {
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, chunks...)
	return nil
}
