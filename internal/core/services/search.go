package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
	"github.com/custodia-labs/raptor/internal/core/ports/driving"
	"github.com/custodia-labs/raptor/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// defaultChunkLimit is used when the caller does not set one.
const defaultChunkLimit = 20

// SearchService merges chunk-level hybrid search with RAPTOR summary
// search into one ranked list. Chunk results come first, sorted by
// score; summaries are appended in their own score order and never
// interleave ahead of a chunk. Summary relevance scores live on a
// different scale than passage scores, so merging by raw score would
// either bury the summaries or let them dominate unpredictably.
type SearchService struct {
	engine   driven.SearchEngine
	nodes    driven.RaptorNodeStore
	settings domain.RaptorSettings
}

// NewSearchService creates a combined search service.
// The engine is the host system's chunk search primitive; nodes is the
// RAPTOR summary store.
func NewSearchService(
	engine driven.SearchEngine,
	nodes driven.RaptorNodeStore,
	settings domain.RaptorSettings,
) *SearchService {
	return &SearchService{
		engine:   engine,
		nodes:    nodes,
		settings: settings.Normalised(),
	}
}

// Search runs the chunk search and the summary search independently and
// concatenates the results: chunks first (score descending), then up to
// MaxSummaries summaries (score descending).
//
// A summary search failure degrades to chunk-only results with a
// warning; a chunk search failure fails the query.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Combined Search")

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.engine == nil {
		return nil, domain.ErrSearchUnavailable
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultChunkLimit
	}
	maxSummaries := opts.MaxSummaries
	if maxSummaries <= 0 {
		maxSummaries = s.settings.MaxSearchResults
	}
	logger.Debug("Query: %q, limit=%d, maxSummaries=%d", query, limit, maxSummaries)

	// Run both legs in parallel; they touch disjoint stores.
	var chunkHits []driven.ChunkHit
	var nodeHits []driven.NodeHit
	var chunkErr, nodeErr error

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunkHits, chunkErr = s.engine.Search(ctx, query, limit)
	}()

	raptorEnabled := s.settings.Enabled && s.nodes != nil && maxSummaries > 0
	if raptorEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nodeHits, nodeErr = s.nodes.Search(ctx, query, maxSummaries)
		}()
	}
	wg.Wait()

	if chunkErr != nil {
		return nil, fmt.Errorf("chunk search: %w", chunkErr)
	}
	if nodeErr != nil {
		// Summaries are supplementary context, not the primary answer;
		// degrade rather than fail the whole query.
		logger.Warn("Summary search failed, returning chunk results only: %v", nodeErr)
		nodeHits = nil
	}

	logger.Debug("Chunk hits: %d, summary hits: %d", len(chunkHits), len(nodeHits))

	results := make([]domain.SearchResult, 0, len(chunkHits)+len(nodeHits))
	for _, hit := range chunkHits {
		results = append(results, domain.SearchResult{
			ChunkID: hit.ChunkID,
			Content: hit.Content,
			Score:   hit.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	summaries := make([]domain.SearchResult, 0, len(nodeHits))
	for _, hit := range nodeHits {
		summaries = append(summaries, domain.SearchResult{
			NodeID:  hit.Node.ID,
			Content: hit.Node.Content,
			Score:   hit.Similarity,
			Layer:   hit.Node.Layer,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Score > summaries[j].Score
	})
	if len(summaries) > maxSummaries {
		summaries = summaries[:maxSummaries]
	}

	results = append(results, summaries...)
	logger.Info("Combined results: %d (%d summaries)", len(results), len(summaries))

	return results, nil
}
