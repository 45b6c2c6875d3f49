package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore with
// write access for tests and small corpora. Every mutation bumps the
// version counter, so staleness checks observe document changes.
type ChunkStore struct {
	mu      sync.RWMutex
	chunks  map[string]domain.Chunk
	order   []string
	version uint64
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[string]domain.Chunk),
	}
}

// SaveChunk stores or replaces a chunk and bumps the store version.
func (s *ChunkStore) SaveChunk(_ context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chunks[chunk.ID]; !exists {
		s.order = append(s.order, chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
	s.version++
	return nil
}

// DeleteChunk removes a chunk and bumps the store version.
// Deleting an unknown chunk is a no-op that still counts as a mutation.
func (s *ChunkStore) DeleteChunk(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chunks[id]; exists {
		delete(s.chunks, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.version++
	return nil
}

// ListChunks returns every chunk in insertion order.
func (s *ChunkStore) ListChunks(_ context.Context) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.chunks[id])
	}
	return out, nil
}

// Version returns the opaque modification marker.
func (s *ChunkStore) Version(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("v%d", s.version), nil
}
