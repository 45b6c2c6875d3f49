package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raptor/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/raptor/internal/core/domain"
)

func newTestTracker(t *testing.T) (*StalenessTracker, *memory.ChunkStore, *memory.NodeStore, *memory.BuildStateStore) {
	t.Helper()
	chunks := memory.NewChunkStore()
	nodes := memory.NewNodeStore(&mockEmbedder{})
	buildState := memory.NewBuildStateStore()
	return NewStalenessTracker(chunks, nodes, buildState), chunks, nodes, buildState
}

func TestStalenessTracker_Freshness_NeverBuilt(t *testing.T) {
	tracker, _, _, _ := newTestTracker(t)

	freshness, err := tracker.Freshness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessNeverBuilt, freshness)
}

func TestStalenessTracker_Freshness_Fresh(t *testing.T) {
	tracker, chunks, _, buildState := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, chunks.SaveChunk(ctx, topicChunks(1, 1)[0]))
	version, err := chunks.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, buildState.Save(ctx, domain.BuildState{
		StoreVersion: version,
		BuiltAt:      time.Now().UTC(),
		NodeCount:    0,
	}))

	freshness, err := tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessFresh, freshness)
}

func TestStalenessTracker_Freshness_StaleAfterMutation(t *testing.T) {
	tracker, chunks, _, buildState := newTestTracker(t)
	ctx := context.Background()

	fixtures := topicChunks(2, 1)
	require.NoError(t, chunks.SaveChunk(ctx, fixtures[0]))
	version, err := chunks.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, buildState.Save(ctx, domain.BuildState{StoreVersion: version}))

	// Any mutation after the marker invalidates the tree: an addition...
	require.NoError(t, chunks.SaveChunk(ctx, fixtures[1]))
	freshness, err := tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessStale, freshness)

	// ...and a deletion, even one restoring the original cardinality.
	require.NoError(t, chunks.DeleteChunk(ctx, fixtures[1].ID))
	freshness, err = tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessStale, freshness)
}

func TestStalenessTracker_Freshness_NodesWithoutMarker(t *testing.T) {
	// Nodes but no marker means a build died partway: report stale,
	// never "never built".
	tracker, _, nodes, _ := newTestTracker(t)
	ctx := context.Background()

	orphan := &domain.RaptorNode{
		Content:        "orphaned summary",
		Layer:          1,
		SourceChunkIDs: []string{"c1"},
		Embedding:      make([]float32, mockDimensions),
	}
	orphan.Embedding[0] = 1
	require.NoError(t, nodes.Create(ctx, orphan))

	freshness, err := tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessStale, freshness)
}

func TestStalenessTracker_Freshness_BuildLifecycle(t *testing.T) {
	// Full cycle through the builder: never_built, fresh after a build,
	// stale after a chunk change, fresh again after a rebuild.
	ctx := context.Background()
	chunks := memory.NewChunkStore()
	embedder := &mockEmbedder{}
	nodes := memory.NewNodeStore(embedder)
	buildState := memory.NewBuildStateStore()
	tracker := NewStalenessTracker(chunks, nodes, buildState)

	fixtures := topicChunks(3, 3)
	for _, c := range fixtures[:8] {
		require.NoError(t, chunks.SaveChunk(ctx, c))
	}

	builder := NewTreeBuilder(chunks, nodes, buildState, embedder,
		&mockSummariser{}, testSettings(), WithClusterFunc(argmaxClusterFn))

	freshness, err := tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessNeverBuilt, freshness)

	_, err = builder.Build(ctx)
	require.NoError(t, err)

	freshness, err = tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessFresh, freshness)

	require.NoError(t, chunks.SaveChunk(ctx, fixtures[8]))
	freshness, err = tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessStale, freshness)

	_, err = builder.Build(ctx)
	require.NoError(t, err)
	freshness, err = tracker.Freshness(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FreshnessFresh, freshness)
}
