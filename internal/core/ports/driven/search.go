package driven

import "context"

// SearchEngine is the host system's chunk-level hybrid search primitive.
// The RAPTOR index treats it as a black box that returns scored chunks;
// keyword/vector fusion happens on the host side.
type SearchEngine interface {
	// Search performs a hybrid search and returns matching chunks with
	// scores, descending.
	Search(ctx context.Context, query string, limit int) ([]ChunkHit, error)
}

// ChunkHit represents a chunk-level search result.
type ChunkHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Content is the matched chunk's text.
	Content string

	// Score is the relevance score.
	Score float64
}
