package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/raptor/internal/cluster"
	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
	"github.com/custodia-labs/raptor/internal/core/ports/driving"
	"github.com/custodia-labs/raptor/internal/logger"
)

// Ensure TreeBuilder implements the interface.
var _ driving.TreeBuilder = (*TreeBuilder)(nil)

// reducedTargetDim caps the reduced dimensionality while guarding
// against requesting more dimensions than the point count allows.
const reducedTargetDim = 10

// Summariser reduces a list of related texts to one summary string.
// ClusterSummariser is the production implementation.
type Summariser interface {
	Summarise(ctx context.Context, texts []string) (string, error)
}

// ClusterFunc assigns each embedding to one or more clusters.
// The default pipeline reduces dimensionality and fits a Gaussian
// mixture; tests substitute deterministic assignments.
type ClusterFunc func(embeddings [][]float32) (cluster.Assignments, error)

// layerItems carries one layer's inputs through the build loop as
// parallel slices: the text, its embedding, and the leaf chunk ids that
// transitively produced it.
type layerItems struct {
	texts      []string
	embeddings [][]float32
	sourceIDs  [][]string
}

func (l layerItems) len() int { return len(l.texts) }

// TreeBuilder constructs the hierarchical summary tree: it clusters the
// current chunks, summarises each cluster, then re-clusters the
// summaries layer by layer until the corpus collapses or the depth
// limit is reached.
//
// Builds are full rebuilds: all existing nodes are deleted first, and
// nodes are persisted as they are created, so an aborted build leaves a
// partial but harmless tree that the next build replaces.
type TreeBuilder struct {
	chunks     driven.ChunkStore
	nodes      driven.RaptorNodeStore
	buildState driven.BuildStateStore
	embedder   driven.EmbeddingService
	summariser Summariser
	settings   domain.RaptorSettings

	clusterFn ClusterFunc
	progress  func(domain.BuildEvent)

	// Serialises node counting and progress callbacks across the
	// cluster worker pool.
	mu sync.Mutex
}

// BuilderOption configures a TreeBuilder.
type BuilderOption func(*TreeBuilder)

// WithProgress registers a callback invoked after every persisted node,
// completed layer and completed build. The callback runs on builder
// goroutines and must be fast.
func WithProgress(fn func(domain.BuildEvent)) BuilderOption {
	return func(b *TreeBuilder) {
		b.progress = fn
	}
}

// WithClusterFunc replaces the default reduce-and-mixture pipeline.
// Intended for tests that need deterministic cluster assignments.
func WithClusterFunc(fn ClusterFunc) BuilderOption {
	return func(b *TreeBuilder) {
		b.clusterFn = fn
	}
}

// NewTreeBuilder creates a tree builder. Settings are normalised once
// here and never read from ambient state, so concurrent builders with
// different settings cannot interfere.
func NewTreeBuilder(
	chunks driven.ChunkStore,
	nodes driven.RaptorNodeStore,
	buildState driven.BuildStateStore,
	embedder driven.EmbeddingService,
	summariser Summariser,
	settings domain.RaptorSettings,
	opts ...BuilderOption,
) *TreeBuilder {
	b := &TreeBuilder{
		chunks:     chunks,
		nodes:      nodes,
		buildState: buildState,
		embedder:   embedder,
		summariser: summariser,
		settings:   settings.Normalised(),
	}
	b.clusterFn = b.defaultClusterFunc

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build deletes the existing tree and rebuilds it from the current
// chunk set. It returns the total number of nodes created; zero is a
// valid result meaning the corpus was too small or too uniform to
// cluster. External failures (summarisation, embedding, store writes)
// propagate and abort the build - the half-built tree is harmless
// because every build starts from scratch.
func (b *TreeBuilder) Build(ctx context.Context) (int, error) {
	if !b.settings.Enabled {
		return 0, domain.ErrRaptorDisabled
	}
	if err := b.settings.Validate(); err != nil {
		return 0, err
	}
	if b.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if b.summariser == nil {
		return 0, domain.ErrLLMUnavailable
	}

	logger.Section("RAPTOR Build")

	// Capture the store version before reading chunks: mutations racing
	// the build then surface as stale, never as silently fresh.
	version, err := b.chunks.Version(ctx)
	if err != nil {
		return 0, fmt.Errorf("read store version: %w", err)
	}

	// Full-rebuild semantics: clear nodes and the old marker first.
	if err := b.nodes.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("delete existing nodes: %w", err)
	}
	if err := b.buildState.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear build marker: %w", err)
	}

	chunks, err := b.chunks.ListChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}
	logger.Info("Building over %d chunks", len(chunks))

	items := layerItems{
		texts:      make([]string, len(chunks)),
		embeddings: make([][]float32, len(chunks)),
		sourceIDs:  make([][]string, len(chunks)),
	}
	for i, c := range chunks {
		items.texts[i] = c.Content
		items.embeddings[i] = c.Embedding
		items.sourceIDs[i] = []string{c.ID}
	}

	total := 0
	for layer := 1; layer <= b.settings.MaxDepth; layer++ {
		if items.len() < b.settings.MinClusterSize {
			logger.Debug("Layer %d: %d items below min cluster size %d, stopping",
				layer, items.len(), b.settings.MinClusterSize)
			break
		}

		next, created, err := b.buildLayer(ctx, layer, items, total)
		if err != nil {
			return total, fmt.Errorf("build layer %d: %w", layer, err)
		}
		if created == 0 {
			logger.Debug("Layer %d: no surviving clusters, stopping", layer)
			break
		}

		total += created
		b.emit(domain.BuildEvent{
			Kind:         domain.BuildEventLayerComplete,
			Layer:        layer,
			NodesCreated: total,
		})
		logger.Info("Layer %d complete: %d nodes", layer, created)

		items = next
	}

	if err := b.buildState.Save(ctx, domain.BuildState{
		StoreVersion: version,
		BuiltAt:      time.Now().UTC(),
		NodeCount:    total,
	}); err != nil {
		return total, fmt.Errorf("save build marker: %w", err)
	}

	b.emit(domain.BuildEvent{Kind: domain.BuildEventBuildComplete, NodesCreated: total})
	logger.Info("Build complete: %d nodes", total)

	return total, nil
}

// buildLayer clusters one layer's items, summarises every surviving
// cluster and persists the resulting nodes. It returns the next layer's
// inputs and the number of nodes created.
func (b *TreeBuilder) buildLayer(
	ctx context.Context, layer int, items layerItems, nodesSoFar int,
) (layerItems, int, error) {
	assignments, err := b.clusterFn(items.embeddings)
	if err != nil {
		return layerItems{}, 0, fmt.Errorf("cluster: %w", err)
	}

	// Group texts and source id lists in lockstep: same assignments,
	// same group positions.
	textGroups, err := cluster.GroupBy(items.texts, assignments)
	if err != nil {
		return layerItems{}, 0, fmt.Errorf("group texts: %w", err)
	}
	idGroups, err := cluster.GroupBy(items.sourceIDs, assignments)
	if err != nil {
		return layerItems{}, 0, fmt.Errorf("group source ids: %w", err)
	}

	// Drop clusters too small to be worth summarising. Their members
	// contribute nothing to this layer - an accepted information-loss
	// trade-off, not an error.
	type survivor struct {
		texts     []string
		sourceIDs [][]string
	}
	var survivors []survivor
	for i := range textGroups {
		if len(textGroups[i].Members) < b.settings.MinClusterSize {
			logger.Debug("Layer %d: dropping cluster %d with %d members",
				layer, textGroups[i].Index, len(textGroups[i].Members))
			continue
		}
		survivors = append(survivors, survivor{
			texts:     textGroups[i].Members,
			sourceIDs: idGroups[i].Members,
		})
	}
	if len(survivors) == 0 {
		return layerItems{}, 0, nil
	}

	next := layerItems{
		texts:      make([]string, len(survivors)),
		embeddings: make([][]float32, len(survivors)),
		sourceIDs:  make([][]string, len(survivors)),
	}

	created := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.settings.BuildConcurrency)

	for clusterID, sv := range survivors {
		g.Go(func() error {
			summary, err := b.summariser.Summarise(gctx, sv.texts)
			if err != nil {
				return fmt.Errorf("summarise cluster %d: %w", clusterID, err)
			}

			embedding, err := b.embedder.Embed(gctx, summary)
			if err != nil {
				return fmt.Errorf("embed summary for cluster %d: %w", clusterID, err)
			}

			node := &domain.RaptorNode{
				Content:        summary,
				Layer:          layer,
				ClusterID:      clusterID,
				SourceChunkIDs: dedupeIDs(sv.sourceIDs),
				Embedding:      embedding,
			}

			// Create-as-you-go: a failure later in the layer still
			// leaves valid nodes behind for the next full rebuild to
			// replace.
			if err := b.nodes.Create(gctx, node); err != nil {
				return fmt.Errorf("persist node for cluster %d: %w", clusterID, err)
			}

			next.texts[clusterID] = summary
			next.embeddings[clusterID] = embedding
			next.sourceIDs[clusterID] = node.SourceChunkIDs

			b.mu.Lock()
			created++
			b.emit(domain.BuildEvent{
				Kind:         domain.BuildEventNodeCreated,
				Layer:        layer,
				ClusterID:    clusterID,
				NodesCreated: nodesSoFar + created,
			})
			b.mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return layerItems{}, created, err
	}

	return next, created, nil
}

// defaultClusterFunc runs the production pipeline: UMAP-style reduction
// to min(10, N-2) dimensions followed by soft mixture clustering.
func (b *TreeBuilder) defaultClusterFunc(embeddings [][]float32) (cluster.Assignments, error) {
	n := len(embeddings)

	targetDim := min(reducedTargetDim, n-2)
	if n > 0 {
		if dim := len(embeddings[0]); targetDim >= dim {
			targetDim = dim - 1
		}
	}
	if targetDim < 1 {
		return nil, fmt.Errorf("%w: %d points of dimension %d cannot be reduced",
			domain.ErrInvalidInput, n, len(embeddings[0]))
	}

	reduced, err := cluster.Reduce(embeddings, cluster.ReduceConfig{
		TargetDim:  targetDim,
		Neighbours: b.settings.UMAPNeighbours,
		MinDist:    b.settings.UMAPMinDist,
		Seed:       b.settings.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}

	assignments, err := cluster.SoftCluster(reduced, cluster.ClusterConfig{
		MaxClusters: b.settings.MaxClusterSize,
		Threshold:   cluster.DefaultThreshold,
		Seed:        b.settings.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("soft cluster: %w", err)
	}

	return assignments, nil
}

// emit invokes the progress callback when one is registered.
func (b *TreeBuilder) emit(event domain.BuildEvent) {
	if b.progress != nil {
		b.progress(event)
	}
}

// dedupeIDs flattens per-member source id lists into one deduplicated
// list, preserving first-seen order.
func dedupeIDs(lists [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
