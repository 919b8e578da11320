package pinecone

import (
	"context"
	"errors"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	upserts [][]*pinecone.Vector
	query   *pinecone.QueryByVectorValuesRequest
	matches []*pinecone.ScoredVector
	err     error
	closed  bool
}

func (f *fakeIndex) UpsertVectors(ctx *context.Context, in []*pinecone.Vector) (uint32, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.upserts = append(f.upserts, in)
	return uint32(len(in)), nil
}

func (f *fakeIndex) QueryByVectorValues(ctx *context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.query = in
	return &pinecone.QueryVectorsResponse{Matches: f.matches}, nil
}

func (f *fakeIndex) Close() error {
	f.closed = true
	return nil
}

func newTestRepository(t *testing.T, opts ...Option) (*Repository, map[string]*fakeIndex) {
	t.Helper()
	fakes := make(map[string]*fakeIndex)
	r, err := newRepository(func(ns string) (index, error) {
		f := &fakeIndex{}
		fakes[ns] = f
		return f, nil
	}, opts...)
	require.NoError(t, err)
	return r, fakes
}

func chunk(id string, index int) core.EmbeddedChunk {
	prev := "Speaker 0"
	return core.EmbeddedChunk{
		VectorID: id,
		Values:   []float32{0.1, 0.2},
		Model:    "text-embedding-3-small",
		Chunk: core.Chunk{
			TranscriptID: "t1",
			ChunkIndex:   index,
			TotalChunks:  3,
			Text:         "hello there",
			Speaker:      "Speaker 1",
			PrevSpeaker:  &prev,
			Participants: []core.Participant{{Name: "Ada", Email: "ada@example.com"}},
		},
	}
}

func TestRepository_UpsertBatches(t *testing.T) {
	r, fakes := newTestRepository(t, WithUpsertBatchSize(2))
	ctx := context.Background()

	err := r.Upsert(ctx, "meetings", []core.EmbeddedChunk{
		chunk("fireflies_t1_0", 0), chunk("fireflies_t1_1", 1), chunk("fireflies_t1_2", 2),
	})
	require.NoError(t, err)

	f := fakes["meetings"]
	require.NotNil(t, f)
	require.Len(t, f.upserts, 2)
	assert.Len(t, f.upserts[0], 2)
	assert.Len(t, f.upserts[1], 1)

	v := f.upserts[0][0]
	assert.Equal(t, "fireflies_t1_0", v.Id)
	assert.Equal(t, []float32{0.1, 0.2}, v.Values)
	meta := v.Metadata.AsMap()
	assert.Equal(t, "hello there", meta["content"])
	assert.Equal(t, "Speaker 0", meta["prev_speaker"])
	assert.NotContains(t, meta, "next_speaker")
	assert.Equal(t, []any{"Ada"}, meta["participant_names"])
}

func TestRepository_ReusesNamespaceConnection(t *testing.T) {
	connects := 0
	r, err := newRepository(func(string) (index, error) {
		connects++
		return &fakeIndex{}, nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, "a", []core.EmbeddedChunk{chunk("v0", 0)}))
	require.NoError(t, r.Upsert(ctx, "a", []core.EmbeddedChunk{chunk("v1", 1)}))
	require.NoError(t, r.Upsert(ctx, "b", []core.EmbeddedChunk{chunk("v2", 2)}))
	assert.Equal(t, 2, connects)
}

func TestRepository_UpsertError(t *testing.T) {
	boom := errors.New("boom")
	r, err := newRepository(func(string) (index, error) {
		return &fakeIndex{err: boom}, nil
	})
	require.NoError(t, err)

	err = r.Upsert(context.Background(), "", []core.EmbeddedChunk{chunk("v", 0)})
	assert.ErrorIs(t, err, boom)
}

func TestRepository_Query(t *testing.T) {
	r, fakes := newTestRepository(t)
	ctx := context.Background()

	// Connect the namespace so the fake exists before the query.
	require.NoError(t, r.Upsert(ctx, "ns", []core.EmbeddedChunk{chunk("v", 0)}))
	v, err := toVector(chunk("fireflies_t1_0", 0))
	require.NoError(t, err)
	fakes["ns"].matches = []*pinecone.ScoredVector{{Vector: v, Score: 0.9}, nil}

	matches, err := r.Query(ctx, "ns", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fireflies_t1_0", matches[0].VectorID)
	assert.Equal(t, float32(0.9), matches[0].Score)
	assert.Equal(t, "hello there", matches[0].Text)
	assert.Equal(t, "t1", matches[0].Metadata["transcript_id"])

	assert.Equal(t, uint32(5), fakes["ns"].query.TopK)
	assert.True(t, fakes["ns"].query.IncludeMetadata)

	_, err = r.Query(ctx, "ns", nil, 5)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestRepository_Close(t *testing.T) {
	r, fakes := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, "ns", []core.EmbeddedChunk{chunk("v", 0)}))

	require.NoError(t, r.Close())
	assert.True(t, fakes["ns"].closed)
	require.NoError(t, r.Close())

	err := r.Upsert(ctx, "ns", []core.EmbeddedChunk{chunk("v", 0)})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewRepository_Validation(t *testing.T) {
	_, err := NewRepository("", "host")
	assert.Error(t, err)
	_, err = NewRepository("key", "")
	assert.Error(t, err)
	_, err = newRepository(nil, WithUpsertBatchSize(0))
	assert.Error(t, err)
}
