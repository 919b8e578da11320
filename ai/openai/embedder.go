package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/minutes/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder sends chunk text to an OpenAI-compatible /embeddings endpoint.
// Requests carry the configured dimensions so the service returns vectors
// of the length recorded in the export.
type Embedder struct {
	documents  embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
		openai.WithEmbeddingDimensions(config.Dimensions),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embeddings client: %w", err)
	}

	// Transcript sentences arrive with hard line breaks; the service scores
	// them the same either way.
	documents, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Embedder{
		documents:  documents,
		dimensions: config.Dimensions,
		logger:     slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel, "host", config.EmbeddingHost),
	}, nil
}

// EmbedText embeds one chunk. A response without a vector is an error.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding service returned no vector")
	}
	return vectors[0], nil
}

// EmbedTexts embeds chunks in one request, preserving input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("requesting embeddings", "texts", len(texts), "dimensions", e.dimensions)

	vectors, err := e.documents.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Warn("embedding request failed", "texts", len(texts), "err", err)
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	return vectors, nil
}
