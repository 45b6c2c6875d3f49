package driven

import (
	"context"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// RaptorNodeStore persists summary nodes and searches over their vectors.
type RaptorNodeStore interface {
	// Create persists one or more nodes, assigning ids where absent.
	// Every node must already carry an embedding; nodes without one are
	// rejected with domain.ErrEmbeddingMissing.
	Create(ctx context.Context, nodes ...*domain.RaptorNode) error

	// DeleteAll removes every node unconditionally. Idempotent: deleting
	// from an empty store is a no-op success.
	DeleteAll(ctx context.Context) error

	// GetByID retrieves a node by id.
	GetByID(ctx context.Context, id string) (*domain.RaptorNode, error)

	// GetByLayer returns all nodes at an exact layer.
	GetByLayer(ctx context.Context, layer int) ([]domain.RaptorNode, error)

	// ListAll returns every stored node.
	ListAll(ctx context.Context) ([]domain.RaptorNode, error)

	// Count returns the number of stored nodes.
	Count(ctx context.Context) (int, error)

	// Search embeds the query with the store's embedder and returns the
	// top limit nodes by cosine similarity, descending. A query whose
	// embedding dimensionality differs from the stored nodes fails with
	// domain.ErrDimensionMismatch.
	Search(ctx context.Context, query string, limit int) ([]NodeHit, error)
}

// NodeHit represents a similarity search result over summary nodes.
type NodeHit struct {
	// Node is the matched summary node.
	Node domain.RaptorNode

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
