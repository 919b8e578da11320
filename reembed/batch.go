package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/embedding"
)

// BatchProcessor replaces the embeddings of a batch of records.
type BatchProcessor struct {
	generator *embedding.Generator
}

// NewBatchProcessor creates a new batch processor.
// Retries and normalisation are the generator's.
func NewBatchProcessor(generator *embedding.Generator) *BatchProcessor {
	return &BatchProcessor{generator: generator}
}

// Process returns copies of records carrying fresh vectors from the
// generator's model. Text, metadata and vector ids are unchanged.
func (bp *BatchProcessor) Process(ctx context.Context, records []core.EmbeddedChunk) ([]core.EmbeddedChunk, error) {
	if len(records) == 0 {
		return nil, nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Chunk.Text
	}

	embeddings, err := bp.generator.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	out := make([]core.EmbeddedChunk, len(records))
	for i, record := range records {
		record.Values = embeddings[i]
		record.Model = bp.generator.Model()
		record.Dimensions = bp.generator.Dimensions()
		record.ContentHash = core.ContentHash(record.Chunk.Text)
		out[i] = record
	}
	return out, nil
}
