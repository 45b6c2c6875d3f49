package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
)

// Ensure NodeStore implements the interface.
var _ driven.RaptorNodeStore = (*NodeStore)(nil)

// NodeStore is an in-memory implementation of driven.RaptorNodeStore.
// Vector search embeds the query with the injected embedder and ranks
// nodes by cosine similarity.
type NodeStore struct {
	mu       sync.RWMutex
	nodes    map[string]domain.RaptorNode
	order    []string
	embedder driven.EmbeddingService
}

// NewNodeStore creates a new in-memory node store.
// The embedder must be the same one that produced the node embeddings.
func NewNodeStore(embedder driven.EmbeddingService) *NodeStore {
	return &NodeStore{
		nodes:    make(map[string]domain.RaptorNode),
		embedder: embedder,
	}
}

// Create persists nodes, assigning ids where absent.
func (s *NodeStore) Create(_ context.Context, nodes ...*domain.RaptorNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, node := range nodes {
		if len(node.Embedding) == 0 {
			return fmt.Errorf("%w: node at layer %d cluster %d", domain.ErrEmbeddingMissing,
				node.Layer, node.ClusterID)
		}
		if node.ID == "" {
			node.ID = uuid.NewString()
		}
		if node.CreatedAt.IsZero() {
			node.CreatedAt = time.Now().UTC()
		}
		if _, exists := s.nodes[node.ID]; !exists {
			s.order = append(s.order, node.ID)
		}
		s.nodes[node.ID] = *node
	}
	return nil
}

// DeleteAll removes every node. Idempotent.
func (s *NodeStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]domain.RaptorNode)
	s.order = nil
	return nil
}

// GetByID retrieves a node by id.
func (s *NodeStore) GetByID(_ context.Context, id string) (*domain.RaptorNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &node, nil
}

// GetByLayer returns all nodes at an exact layer, in insertion order.
func (s *NodeStore) GetByLayer(_ context.Context, layer int) ([]domain.RaptorNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RaptorNode
	for _, id := range s.order {
		if node := s.nodes[id]; node.Layer == layer {
			out = append(out, node)
		}
	}
	return out, nil
}

// ListAll returns every stored node in insertion order.
func (s *NodeStore) ListAll(_ context.Context) ([]domain.RaptorNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RaptorNode, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out, nil
}

// Count returns the number of stored nodes.
func (s *NodeStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), nil
}

// Search embeds the query and returns the top limit nodes by cosine
// similarity, descending.
func (s *NodeStore) Search(ctx context.Context, query string, limit int) ([]driven.NodeHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]driven.NodeHit, 0, len(s.order))
	for _, id := range s.order {
		node := s.nodes[id]
		if len(node.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: query dimension %d, node %s dimension %d",
				domain.ErrDimensionMismatch, len(embedding), node.ID, len(node.Embedding))
		}
		hits = append(hits, driven.NodeHit{
			Node:       node,
			Similarity: cosineSimilarity(embedding, node.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors. Zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
