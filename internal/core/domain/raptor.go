package domain

import "time"

// RaptorNode is a persisted summary of a cluster of chunks or of
// lower-layer summaries. Nodes are created only during a tree build,
// never mutated individually, and deleted only in bulk.
type RaptorNode struct {
	// ID is the unique identifier, assigned at creation.
	ID string

	// Content is the generated summary text.
	Content string

	// Layer is the depth in the summary hierarchy. Layer 1 summarises
	// raw chunks, layer 2 summarises layer-1 summaries, and so on.
	// Always >= 1; chunks themselves are never stored as nodes.
	Layer int

	// ClusterID is the node's position among the surviving clusters of
	// its layer at build time. Unique only within one layer of one build.
	ClusterID int

	// SourceChunkIDs lists the leaf chunks that transitively contributed
	// to this summary, deduplicated. Never empty for a persisted node.
	SourceChunkIDs []string

	// Embedding is the summary's vector, produced by the same embedder
	// as chunk embeddings.
	Embedding []float32

	// CreatedAt is when the node was persisted.
	CreatedAt time.Time
}

// BuildState records the outcome of the last successful tree build.
// Staleness checks compare StoreVersion against the chunk store's
// live modification marker.
type BuildState struct {
	// StoreVersion is the chunk store's opaque version marker captured
	// at build time.
	StoreVersion string

	// BuiltAt is when the build completed.
	BuiltAt time.Time

	// NodeCount is the total number of nodes the build created.
	NodeCount int
}

// Freshness is the tri-state result of a staleness check.
type Freshness string

// Freshness states.
const (
	// FreshnessNeverBuilt means no build marker exists and no nodes are stored.
	FreshnessNeverBuilt Freshness = "never_built"

	// FreshnessStale means the chunk store changed since the recorded build.
	FreshnessStale Freshness = "stale"

	// FreshnessFresh means no chunk mutation happened since the recorded build.
	FreshnessFresh Freshness = "fresh"
)

// String returns the string representation.
func (f Freshness) String() string {
	return string(f)
}

// Description returns a human-readable description of the state.
func (f Freshness) Description() string {
	switch f {
	case FreshnessNeverBuilt:
		return "Never built (no summary tree exists)"
	case FreshnessStale:
		return "Stale (documents changed since the last build)"
	case FreshnessFresh:
		return "Fresh (summary tree matches the document store)"
	default:
		return "Unknown"
	}
}

// BuildEventKind identifies the type of a build progress event.
type BuildEventKind string

// Build event kinds.
const (
	// BuildEventNodeCreated is emitted after each node is persisted.
	BuildEventNodeCreated BuildEventKind = "node_created"

	// BuildEventLayerComplete is emitted after a layer finishes.
	BuildEventLayerComplete BuildEventKind = "layer_complete"

	// BuildEventBuildComplete is emitted once, after the marker is recorded.
	BuildEventBuildComplete BuildEventKind = "build_complete"
)

// BuildEvent reports tree build progress. Events are advisory; already
// persisted nodes remain valid if the consumer stops the build.
type BuildEvent struct {
	// Kind identifies the event type.
	Kind BuildEventKind

	// Layer is the layer the event refers to.
	Layer int

	// ClusterID is the cluster within the layer, for node events.
	ClusterID int

	// NodesCreated is the running total of nodes persisted so far.
	NodesCreated int
}
