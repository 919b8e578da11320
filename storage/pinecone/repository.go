// Package pinecone implements storage.VectorRepository on a Pinecone index.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultUpsertBatchSize is the most vectors sent in one upsert request.
const DefaultUpsertBatchSize = 100

// index is the subset of *pinecone.IndexConnection the repository uses.
type index interface {
	UpsertVectors(ctx *context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx *context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	Close() error
}

// Repository implements storage.VectorRepository for a Pinecone index host.
// One connection is kept per namespace.
type Repository struct {
	connect   func(namespace string) (index, error)
	batchSize int
	logger    *slog.Logger

	mu     sync.Mutex
	conns  map[string]index
	closed bool
}

var _ storage.VectorRepository = (*Repository)(nil)

// Option configures a Repository.
type Option func(*Repository) error

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) error {
		r.logger = logger
		return nil
	}
}

// WithUpsertBatchSize caps the vectors per upsert request.
func WithUpsertBatchSize(n int) Option {
	return func(r *Repository) error {
		if n <= 0 {
			return fmt.Errorf("upsert batch size must be positive, got %d", n)
		}
		r.batchSize = n
		return nil
	}
}

// NewRepository connects to the index served at host.
func NewRepository(apiKey, host string, opts ...Option) (*Repository, error) {
	if apiKey == "" {
		return nil, errors.New("pinecone API key is required")
	}
	if host == "" {
		return nil, errors.New("pinecone index host is required")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating pinecone client: %w", err)
	}

	return newRepository(func(namespace string) (index, error) {
		return client.IndexWithNamespace(host, namespace)
	}, opts...)
}

func newRepository(connect func(string) (index, error), opts ...Option) (*Repository, error) {
	r := &Repository{
		connect:   connect,
		batchSize: DefaultUpsertBatchSize,
		conns:     make(map[string]index),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "pinecone")
	return r, nil
}

func (r *Repository) conn(namespace string) (index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, storage.ErrStorageClosed
	}
	if c, ok := r.conns[namespace]; ok {
		return c, nil
	}
	c, err := r.connect(namespace)
	if err != nil {
		return nil, fmt.Errorf("connecting to namespace %q: %w", namespace, err)
	}
	r.conns[namespace] = c
	return c, nil
}

// Upsert writes chunks to namespace in requests of at most the batch size.
// Records with the same vector id are overwritten.
func (r *Repository) Upsert(ctx context.Context, namespace string, chunks []core.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	c, err := r.conn(namespace)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, 0, len(chunks))
	for _, ec := range chunks {
		v, err := toVector(ec)
		if err != nil {
			return err
		}
		vectors = append(vectors, v)
	}

	for start := 0; start < len(vectors); start += r.batchSize {
		end := min(start+r.batchSize, len(vectors))
		count, err := c.UpsertVectors(&ctx, vectors[start:end])
		if err != nil {
			return fmt.Errorf("upserting %d vectors: %w", end-start, err)
		}
		r.logger.Debug("upserted vectors", "namespace", namespace, "count", count)
	}
	return nil
}

// Query returns the topK matches in namespace with their metadata.
func (r *Repository) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]core.Match, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	c, err := r.conn(namespace)
	if err != nil {
		return nil, err
	}

	res, err := c.QueryByVectorValues(&ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying namespace %q: %w", namespace, err)
	}

	matches := make([]core.Match, 0, len(res.Matches))
	for _, m := range res.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, toMatch(m))
	}
	return matches, nil
}

// Close closes every namespace connection.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for ns, c := range r.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing namespace %q: %w", ns, err))
		}
	}
	r.conns = nil
	return errors.Join(errs...)
}

func toVector(ec core.EmbeddedChunk) (*pinecone.Vector, error) {
	metadata, err := structpb.NewStruct(ec.FlatMetadata())
	if err != nil {
		return nil, fmt.Errorf("encoding metadata for %s: %w", ec.VectorID, err)
	}
	return &pinecone.Vector{
		Id:       ec.VectorID,
		Values:   ec.Values,
		Metadata: metadata,
	}, nil
}

func toMatch(m *pinecone.ScoredVector) core.Match {
	match := core.Match{
		VectorID: m.Vector.Id,
		Score:    m.Score,
	}
	if m.Vector.Metadata != nil {
		match.Metadata = m.Vector.Metadata.AsMap()
		if text, ok := match.Metadata["content"].(string); ok {
			match.Text = text
		}
	}
	return match
}
