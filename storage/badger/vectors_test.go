package badger

import (
	"context"
	"testing"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRepository_UpsertQuery(t *testing.T) {
	_, vectors, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, vectors.Upsert(ctx, "meetings", []core.EmbeddedChunk{
		embedded("fireflies_t_0", []float32{1, 0}),
		embedded("fireflies_t_1", []float32{0, 1}),
	}))

	matches, err := vectors.Query(ctx, "meetings", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fireflies_t_1", matches[0].VectorID)
	assert.Equal(t, float32(1), matches[0].Score)
	assert.Equal(t, "text for fireflies_t_1", matches[0].Text)
	assert.Equal(t, "t", matches[0].Metadata["transcript_id"])
}

func TestVectorRepository_UpsertReplaces(t *testing.T) {
	_, vectors, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, vectors.Upsert(ctx, "", []core.EmbeddedChunk{embedded("v", []float32{1, 0})}))
	require.NoError(t, vectors.Upsert(ctx, "", []core.EmbeddedChunk{embedded("v", []float32{0, 1})}))

	count, err := vectors.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := vectors.Query(ctx, "", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, float32(1), matches[0].Score)
}

func TestVectorRepository_NamespacesAreIsolated(t *testing.T) {
	_, vectors, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, vectors.Upsert(ctx, "a", []core.EmbeddedChunk{embedded("one", []float32{1})}))
	require.NoError(t, vectors.Upsert(ctx, "a:b", []core.EmbeddedChunk{embedded("two", []float32{1})}))

	matches, err := vectors.Query(ctx, "a", []float32{1}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "one", matches[0].VectorID)

	count, err := vectors.Count(ctx, "a:b")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorRepository_InvalidInput(t *testing.T) {
	_, vectors, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	_, err = vectors.Query(ctx, "ns", nil, 3)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	assert.NoError(t, vectors.Upsert(ctx, "ns", nil))
	assert.Error(t, vectors.Upsert(ctx, "ns", []core.EmbeddedChunk{embedded("", []float32{1})}))
}
