package domain

import "fmt"

// Default RAPTOR settings.
const (
	// DefaultMaxDepth is the maximum number of summary layers.
	DefaultMaxDepth = 5

	// DefaultMinClusterSize is the smallest cluster worth summarising.
	// It also gates the whole build: fewer chunks than this means there
	// is nothing to cluster.
	DefaultMinClusterSize = 3

	// DefaultMaxClusterSize bounds the clusterer's component-count search.
	DefaultMaxClusterSize = 15

	// DefaultUMAPNeighbours is the local-neighbourhood size for
	// dimensionality reduction.
	DefaultUMAPNeighbours = 10

	// DefaultUMAPMinDist is the minimum distance parameter for reduction.
	DefaultUMAPMinDist = 0.0

	// DefaultMaxSearchResults caps how many summaries are folded into a
	// combined search response.
	DefaultMaxSearchResults = 3

	// DefaultBuildConcurrency is the number of clusters summarised in
	// parallel within a layer. Sequential is the safe default.
	DefaultBuildConcurrency = 1
)

// RaptorSettings holds tree build and retrieval configuration.
// Settings are passed into services at construction and never mutated,
// so concurrent builds with different settings cannot interfere.
type RaptorSettings struct {
	// Enabled switches the RAPTOR index on. Opt-in; off by default.
	Enabled bool `toml:"enabled"`

	// MaxDepth is the maximum number of summary layers to build.
	MaxDepth int `toml:"max_depth"`

	// MinClusterSize is the minimum members for a cluster to be
	// summarised. Smaller clusters are dropped for the layer.
	MinClusterSize int `toml:"min_cluster_size"`

	// MaxClusterSize is the upper bound hint for the clusterer's
	// component-count search.
	MaxClusterSize int `toml:"max_cluster_size"`

	// UMAPNeighbours is the reduction neighbourhood size. Clamped to
	// item count minus one on small layers.
	UMAPNeighbours int `toml:"umap_n_neighbors"`

	// UMAPMinDist is the reduction minimum-distance parameter.
	UMAPMinDist float64 `toml:"umap_min_dist"`

	// Model optionally overrides which LLM summarises clusters.
	// Falls back to the configured QA model when empty.
	Model string `toml:"model"`

	// MaxSearchResults caps summaries in a combined search response.
	MaxSearchResults int `toml:"max_search_results"`

	// Seed fixes the random source for reduction and clustering.
	Seed int64 `toml:"seed"`

	// BuildConcurrency is the number of clusters summarised in parallel
	// within one layer.
	BuildConcurrency int `toml:"build_concurrency"`
}

// DefaultRaptorSettings returns settings with all defaults applied.
// RAPTOR itself remains disabled until switched on explicitly.
func DefaultRaptorSettings() RaptorSettings {
	return RaptorSettings{
		Enabled:          false,
		MaxDepth:         DefaultMaxDepth,
		MinClusterSize:   DefaultMinClusterSize,
		MaxClusterSize:   DefaultMaxClusterSize,
		UMAPNeighbours:   DefaultUMAPNeighbours,
		UMAPMinDist:      DefaultUMAPMinDist,
		MaxSearchResults: DefaultMaxSearchResults,
		BuildConcurrency: DefaultBuildConcurrency,
	}
}

// Normalised returns a copy with zero or negative values replaced by
// defaults. Explicitly configured values are kept.
func (s RaptorSettings) Normalised() RaptorSettings {
	out := s
	if out.MaxDepth <= 0 {
		out.MaxDepth = DefaultMaxDepth
	}
	if out.MinClusterSize <= 0 {
		out.MinClusterSize = DefaultMinClusterSize
	}
	if out.MaxClusterSize <= 0 {
		out.MaxClusterSize = DefaultMaxClusterSize
	}
	if out.UMAPNeighbours <= 0 {
		out.UMAPNeighbours = DefaultUMAPNeighbours
	}
	if out.UMAPMinDist < 0 {
		out.UMAPMinDist = DefaultUMAPMinDist
	}
	if out.MaxSearchResults <= 0 {
		out.MaxSearchResults = DefaultMaxSearchResults
	}
	if out.BuildConcurrency <= 0 {
		out.BuildConcurrency = DefaultBuildConcurrency
	}
	return out
}

// Validate checks the settings for contradictions.
func (s RaptorSettings) Validate() error {
	if s.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be >= 1, got %d", ErrInvalidInput, s.MaxDepth)
	}
	if s.MinClusterSize < 2 {
		return fmt.Errorf("%w: min_cluster_size must be >= 2, got %d", ErrInvalidInput, s.MinClusterSize)
	}
	if s.MaxClusterSize < s.MinClusterSize {
		return fmt.Errorf("%w: max_cluster_size %d is below min_cluster_size %d",
			ErrInvalidInput, s.MaxClusterSize, s.MinClusterSize)
	}
	if s.UMAPNeighbours < 2 {
		return fmt.Errorf("%w: umap_n_neighbors must be >= 2, got %d", ErrInvalidInput, s.UMAPNeighbours)
	}
	if s.UMAPMinDist < 0 {
		return fmt.Errorf("%w: umap_min_dist must be >= 0, got %f", ErrInvalidInput, s.UMAPMinDist)
	}
	if s.MaxSearchResults < 0 {
		return fmt.Errorf("%w: max_search_results must be >= 0, got %d", ErrInvalidInput, s.MaxSearchResults)
	}
	if s.BuildConcurrency < 1 {
		return fmt.Errorf("%w: build_concurrency must be >= 1, got %d", ErrInvalidInput, s.BuildConcurrency)
	}
	return nil
}
