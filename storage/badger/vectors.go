package badger

import (
	"context"
	"errors"
	"math"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// VectorRepository implements storage.VectorRepository as a local index.
// Queries are exhaustive scans of one namespace.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) *VectorRepository {
	return &VectorRepository{backend: backend}
}

// Upsert stores chunks under namespace, replacing any with the same vector id.
func (r *VectorRepository) Upsert(ctx context.Context, namespace string, chunks []core.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		ec := chunks[i]
		if ec.VectorID == "" {
			return errors.New("vector id is required")
		}
		ec.Namespace = namespace
		if err := wb.Set(makeVectorKey(namespace, ec.VectorID), storage.MarshalEmbeddedChunk(&ec)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Query returns the topK stored vectors in namespace closest to vector.
func (r *VectorRepository) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]core.Match, error) {
	if len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	return r.backend.FindSimilar(ctx, makeNamespacePrefix(namespace), vector, float32(math.Inf(-1)), topK)
}

// Count returns the number of vectors stored in namespace.
func (r *VectorRepository) Count(ctx context.Context, namespace string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeNamespacePrefix(namespace)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Close is a no-op; the backend is owned by the caller.
func (r *VectorRepository) Close() error {
	return nil
}
