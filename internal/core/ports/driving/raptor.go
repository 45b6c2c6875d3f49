package driving

import (
	"context"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// TreeBuilder constructs the hierarchical summary tree.
type TreeBuilder interface {
	// Build deletes the existing tree and rebuilds it from the current
	// chunks, returning the number of nodes created. Zero is a valid
	// result meaning the corpus was too small or too uniform to cluster.
	Build(ctx context.Context) (int, error)
}

// StalenessChecker reports whether the summary tree reflects the
// current chunk store contents.
type StalenessChecker interface {
	// Freshness returns the tri-state staleness result.
	Freshness(ctx context.Context) (domain.Freshness, error)
}

// SearchService provides combined chunk-plus-summary retrieval.
type SearchService interface {
	// Search merges chunk-level hybrid search with summary node search.
	// Chunk results come first sorted by score, followed by summary
	// results in their own score order.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
