package domain

import "fmt"

// SearchOptions configures a combined search query.
type SearchOptions struct {
	// Limit is the maximum number of chunk results.
	Limit int

	// MaxSummaries caps how many RAPTOR summaries are appended to the
	// chunk results. Zero means use the configured default.
	MaxSummaries int
}

// SearchResult represents a single hit in a combined result list.
// Exactly one of ChunkID and NodeID is set: a result is either a raw
// chunk match or a RAPTOR summary match, never both.
type SearchResult struct {
	// ChunkID is set when the result is a chunk-level match.
	ChunkID string

	// NodeID is set when the result is a RAPTOR summary match.
	NodeID string

	// Content is the matched text.
	Content string

	// Score is the relevance score within the result's own group.
	// Chunk scores and summary scores are not comparable to each other.
	Score float64

	// Layer is the summary's depth in the tree. Zero for chunk results.
	Layer int
}

// IsSummary reports whether the result is a RAPTOR summary.
func (r SearchResult) IsSummary() bool {
	return r.NodeID != ""
}

// Label renders an identifier line for display. Summaries are visibly
// distinguished from chunk results.
func (r SearchResult) Label() string {
	if r.IsSummary() {
		return fmt.Sprintf("[Summary] layer %d (%s)", r.Layer, r.NodeID)
	}
	return fmt.Sprintf("[Chunk] %s", r.ChunkID)
}
