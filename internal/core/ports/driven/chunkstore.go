package driven

import (
	"context"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// ChunkStore provides read access to the host system's chunk repository.
// The RAPTOR index consumes chunks; it never writes them.
type ChunkStore interface {
	// ListChunks returns every chunk with its id, content and embedding.
	ListChunks(ctx context.Context) ([]domain.Chunk, error)

	// Version returns an opaque modification marker for the store.
	// Any document create, update or delete changes the marker.
	Version(ctx context.Context) (string, error)
}
