package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// keyedEmbedder returns a canned vector per known text and a default
// for everything else.
type keyedEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (e *keyedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.fallback, nil
}

func (e *keyedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keyedEmbedder) Dimensions() int   { return len(e.fallback) }
func (e *keyedEmbedder) ModelName() string { return "keyed" }
func (e *keyedEmbedder) Close() error      { return nil }

func testEmbedder() *keyedEmbedder {
	return &keyedEmbedder{
		vectors: map[string][]float32{
			"cats": {1, 0, 0, 0},
			"dogs": {0, 1, 0, 0},
		},
		fallback: []float32{0.5, 0.5, 0, 0},
	}
}

func nodeFixture(content string, layer int, embedding []float32) *domain.RaptorNode {
	return &domain.RaptorNode{
		Content:        content,
		Layer:          layer,
		SourceChunkIDs: []string{"c1"},
		Embedding:      embedding,
	}
}

func TestNodeStore_Create(t *testing.T) {
	store := NewNodeStore(testEmbedder())
	ctx := context.Background()

	node := nodeFixture("summary", 1, []float32{1, 0, 0, 0})
	require.NoError(t, store.Create(ctx, node))

	// Id and timestamp are assigned on create.
	assert.NotEmpty(t, node.ID)
	assert.False(t, node.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary", got.Content)
	assert.Equal(t, 1, got.Layer)
}

func TestNodeStore_Create_RejectsMissingEmbedding(t *testing.T) {
	store := NewNodeStore(testEmbedder())

	err := store.Create(context.Background(), nodeFixture("summary", 1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMissing)
}

func TestNodeStore_GetByID_NotFound(t *testing.T) {
	store := NewNodeStore(testEmbedder())

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeStore_GetByLayer(t *testing.T) {
	store := NewNodeStore(testEmbedder())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx,
		nodeFixture("a", 1, []float32{1, 0, 0, 0}),
		nodeFixture("b", 2, []float32{0, 1, 0, 0}),
		nodeFixture("c", 1, []float32{0, 0, 1, 0}),
	))

	layer1, err := store.GetByLayer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, layer1, 2)
	// Insertion order within the layer.
	assert.Equal(t, "a", layer1[0].Content)
	assert.Equal(t, "c", layer1[1].Content)

	layer3, err := store.GetByLayer(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, layer3)
}

func TestNodeStore_DeleteAll(t *testing.T) {
	store := NewNodeStore(testEmbedder())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, nodeFixture("a", 1, []float32{1, 0, 0, 0})))
	require.NoError(t, store.DeleteAll(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Idempotent on an empty store.
	assert.NoError(t, store.DeleteAll(ctx))
}

func TestNodeStore_Search_RanksByCosineSimilarity(t *testing.T) {
	store := NewNodeStore(testEmbedder())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx,
		nodeFixture("about dogs", 1, []float32{0, 1, 0, 0}),
		nodeFixture("about cats", 1, []float32{1, 0, 0, 0}),
		nodeFixture("about birds", 1, []float32{0, 0, 1, 0}),
	))

	hits, err := store.Search(ctx, "cats", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "about cats", hits[0].Node.Content)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestNodeStore_Search_DimensionMismatch(t *testing.T) {
	store := NewNodeStore(testEmbedder())
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, nodeFixture("short", 1, []float32{1, 0})))

	_, err := store.Search(ctx, "cats", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestNodeStore_Search_NoEmbedder(t *testing.T) {
	store := NewNodeStore(nil)

	_, err := store.Search(context.Background(), "cats", 5)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestNodeStore_Search_EmptyStore(t *testing.T) {
	store := NewNodeStore(testEmbedder())

	hits, err := store.Search(context.Background(), "cats", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
