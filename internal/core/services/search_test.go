package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
)

// mockSearchEngine implements driven.SearchEngine with canned hits.
type mockSearchEngine struct {
	hits []driven.ChunkHit
	err  error
}

func (m *mockSearchEngine) Search(_ context.Context, _ string, limit int) ([]driven.ChunkHit, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > limit {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

// mockNodeSearcher implements driven.RaptorNodeStore for the search leg
// only; the builder-facing methods are never reached from SearchService.
type mockNodeSearcher struct {
	hits     []driven.NodeHit
	err      error
	searched bool
}

func (m *mockNodeSearcher) Create(_ context.Context, _ ...*domain.RaptorNode) error { return nil }
func (m *mockNodeSearcher) DeleteAll(_ context.Context) error                       { return nil }
func (m *mockNodeSearcher) GetByID(_ context.Context, _ string) (*domain.RaptorNode, error) {
	return nil, domain.ErrNotFound
}
func (m *mockNodeSearcher) GetByLayer(_ context.Context, _ int) ([]domain.RaptorNode, error) {
	return nil, nil
}
func (m *mockNodeSearcher) ListAll(_ context.Context) ([]domain.RaptorNode, error) { return nil, nil }
func (m *mockNodeSearcher) Count(_ context.Context) (int, error)                   { return 0, nil }

func (m *mockNodeSearcher) Search(_ context.Context, _ string, limit int) ([]driven.NodeHit, error) {
	m.searched = true
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > limit {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

func chunkHit(id string, score float64) driven.ChunkHit {
	return driven.ChunkHit{ChunkID: id, Content: "chunk " + id, Score: score}
}

func nodeHit(id string, layer int, score float64) driven.NodeHit {
	return driven.NodeHit{
		Node:       domain.RaptorNode{ID: id, Content: "summary " + id, Layer: layer},
		Similarity: score,
	}
}

func enabledSettings() domain.RaptorSettings {
	s := domain.DefaultRaptorSettings()
	s.Enabled = true
	return s
}

func TestSearchService_Search_ChunksBeforeSummaries(t *testing.T) {
	// Engine and store both return hits out of score order; the service
	// sorts each leg but never interleaves them.
	engine := &mockSearchEngine{hits: []driven.ChunkHit{
		chunkHit("c-low", 0.2),
		chunkHit("c-high", 0.9),
		chunkHit("c-mid", 0.5),
	}}
	nodes := &mockNodeSearcher{hits: []driven.NodeHit{
		nodeHit("n-low", 1, 0.3),
		nodeHit("n-high", 2, 0.95),
	}}
	svc := NewSearchService(engine, nodes, enabledSettings())

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, "c-high", results[0].ChunkID)
	assert.Equal(t, "c-mid", results[1].ChunkID)
	assert.Equal(t, "c-low", results[2].ChunkID)
	// The top summary outscores every chunk yet still trails them.
	assert.Equal(t, "n-high", results[3].NodeID)
	assert.Equal(t, "n-low", results[4].NodeID)
}

func TestSearchService_Search_ResultTagExclusivity(t *testing.T) {
	engine := &mockSearchEngine{hits: []driven.ChunkHit{chunkHit("c1", 0.5)}}
	nodes := &mockNodeSearcher{hits: []driven.NodeHit{nodeHit("n1", 1, 0.5)}}
	svc := NewSearchService(engine, nodes, enabledSettings())

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		chunk := r.ChunkID != ""
		summary := r.NodeID != ""
		assert.NotEqual(t, chunk, summary, "result must be exactly one of chunk or summary")
		assert.Equal(t, summary, r.IsSummary())
	}
}

func TestSearchService_Search_CapsSummaries(t *testing.T) {
	nodes := &mockNodeSearcher{hits: []driven.NodeHit{
		nodeHit("n1", 1, 0.9),
		nodeHit("n2", 1, 0.8),
		nodeHit("n3", 2, 0.7),
		nodeHit("n4", 2, 0.6),
	}}
	svc := NewSearchService(&mockSearchEngine{}, nodes, enabledSettings())

	results, err := svc.Search(context.Background(), "query",
		domain.SearchOptions{MaxSummaries: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "n1", results[0].NodeID)
	assert.Equal(t, "n2", results[1].NodeID)
}

func TestSearchService_Search_EmptyQuery(t *testing.T) {
	svc := NewSearchService(&mockSearchEngine{}, &mockNodeSearcher{}, enabledSettings())

	results, err := svc.Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchService_Search_NilEngine(t *testing.T) {
	svc := NewSearchService(nil, &mockNodeSearcher{}, enabledSettings())

	_, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

func TestSearchService_Search_ChunkFailureFails(t *testing.T) {
	boom := errors.New("index corrupt")
	svc := NewSearchService(&mockSearchEngine{err: boom}, &mockNodeSearcher{}, enabledSettings())

	_, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSearchService_Search_SummaryFailureDegrades(t *testing.T) {
	engine := &mockSearchEngine{hits: []driven.ChunkHit{chunkHit("c1", 0.5)}}
	nodes := &mockNodeSearcher{err: errors.New("store offline")}
	svc := NewSearchService(engine, nodes, enabledSettings())

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestSearchService_Search_DisabledSkipsSummaries(t *testing.T) {
	engine := &mockSearchEngine{hits: []driven.ChunkHit{chunkHit("c1", 0.5)}}
	nodes := &mockNodeSearcher{hits: []driven.NodeHit{nodeHit("n1", 1, 0.9)}}
	svc := NewSearchService(engine, nodes, domain.DefaultRaptorSettings())

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.False(t, nodes.searched, "summary store must not be queried when disabled")
}

func TestSearchService_Search_NilNodeStore(t *testing.T) {
	engine := &mockSearchEngine{hits: []driven.ChunkHit{chunkHit("c1", 0.5)}}
	svc := NewSearchService(engine, nil, enabledSettings())

	results, err := svc.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchService_Search_RespectsChunkLimit(t *testing.T) {
	engine := &mockSearchEngine{hits: []driven.ChunkHit{
		chunkHit("c1", 0.9),
		chunkHit("c2", 0.8),
		chunkHit("c3", 0.7),
	}}
	svc := NewSearchService(engine, &mockNodeSearcher{}, enabledSettings())

	results, err := svc.Search(context.Background(), "query",
		domain.SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
