// Package embedding turns chunk text into vectors.
//
// Generator wraps an ai.Embedder with the guarantees the export pipeline
// relies on: the backend never receives an empty string, overlong text is
// truncated, transient failures are retried with exponential backoff, and
// every returned vector has the configured length.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/minutes/ai"
)

const (
	DefaultMaxAttempts   = 3
	DefaultBaseDelay     = time.Second
	DefaultMaxInputChars = 8000
	DefaultPlaceholder   = "Empty transcript"
)

// Generator produces fixed-length embeddings for text.
// It is safe for concurrent use if the underlying embedder is.
type Generator struct {
	embedder      ai.Embedder
	model         string
	dimensions    int
	maxAttempts   int
	baseDelay     time.Duration
	maxInputChars int
	placeholder   string
	normalize     bool
	logger        *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator) error

// WithMaxAttempts sets how many times a failing call is tried in total.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		g.maxAttempts = n
		return nil
	}
}

// WithBaseDelay sets the wait before the first retry. It doubles per attempt.
func WithBaseDelay(d time.Duration) Option {
	return func(g *Generator) error {
		if d < 0 {
			return errors.New("base delay must not be negative")
		}
		g.baseDelay = d
		return nil
	}
}

// WithMaxInputChars sets the rune limit text is truncated to.
func WithMaxInputChars(n int) Option {
	return func(g *Generator) error {
		if n <= 0 {
			return errors.New("max input chars must be positive")
		}
		g.maxInputChars = n
		return nil
	}
}

// WithPlaceholder sets the text embedded in place of empty input.
func WithPlaceholder(text string) Option {
	return func(g *Generator) error {
		if strings.TrimSpace(text) == "" {
			return errors.New("placeholder must not be blank")
		}
		g.placeholder = text
		return nil
	}
}

// WithNormalize scales every returned vector to unit length.
func WithNormalize(normalize bool) Option {
	return func(g *Generator) error {
		g.normalize = normalize
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		g.logger = logger
		return nil
	}
}

// NewGenerator creates a Generator for embeddings from model with the given
// number of dimensions.
func NewGenerator(embedder ai.Embedder, model string, dimensions int, opts ...Option) (*Generator, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if dimensions <= 0 {
		return nil, errors.New("dimensions must be positive")
	}

	g := &Generator{
		embedder:      embedder,
		model:         model,
		dimensions:    dimensions,
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		maxInputChars: DefaultMaxInputChars,
		placeholder:   DefaultPlaceholder,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "embedding-generator")

	return g, nil
}

// Model returns the embedding model identifier recorded on every vector.
func (g *Generator) Model() string {
	return g.model
}

// Dimensions returns the length of every vector the Generator returns.
func (g *Generator) Dimensions() int {
	return g.dimensions
}

// Prepare returns the exact string sent to the backend for text.
// Blank text becomes the placeholder and long text is cut to the rune limit.
func (g *Generator) Prepare(text string) string {
	if strings.TrimSpace(text) == "" {
		return g.placeholder
	}
	if utf8.RuneCountInString(text) > g.maxInputChars {
		runes := []rune(text)
		text = string(runes[:g.maxInputChars])
	}
	return text
}

// Embed returns the embedding for text.
//
// Transient failures are retried. Exhaustion returns an error wrapping
// ErrEmbeddingUnavailable and the last failure. A vector of the wrong length
// returns ErrDimensionMismatch without retrying.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	input := g.Prepare(text)

	var vector []float32
	err := g.withRetries(ctx, 1, func() error {
		v, err := g.embedder.EmbedText(ctx, input)
		if err != nil {
			return err
		}
		if err := g.checkLength(v); err != nil {
			return final(err)
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, g.wrapFailure(err, 1)
	}

	if g.normalize {
		vector = NormalizeVector(vector)
	}
	return vector, nil
}

// EmbedBatch returns embeddings for texts in input order.
// The whole batch is retried as a unit.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = g.Prepare(text)
	}

	var vectors [][]float32
	err := g.withRetries(ctx, len(inputs), func() error {
		vs, err := g.embedder.EmbedTexts(ctx, inputs)
		if err != nil {
			return err
		}
		if len(vs) != len(inputs) {
			return fmt.Errorf("backend returned %d vectors for %d inputs", len(vs), len(inputs))
		}
		for _, v := range vs {
			if err := g.checkLength(v); err != nil {
				return final(err)
			}
		}
		vectors = vs
		return nil
	})
	if err != nil {
		return nil, g.wrapFailure(err, len(texts))
	}

	if g.normalize {
		for i := range vectors {
			vectors[i] = NormalizeVector(vectors[i])
		}
	}
	return vectors, nil
}

func (g *Generator) checkLength(v []float32) error {
	if len(v) != g.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), g.dimensions)
	}
	return nil
}

func (g *Generator) wrapFailure(err error, count int) error {
	if errors.Is(err, ErrDimensionMismatch) {
		g.logger.Error("embedding has wrong length", "model", g.model, "err", err)
		return err
	}
	g.logger.Error("embedding failed", "model", g.model, "count", count, "attempts", g.maxAttempts, "err", err)
	return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
}
