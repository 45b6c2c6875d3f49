package domain

import "time"

// Chunk represents a leaf unit of retrievable text.
// Chunks are produced by document ingestion, which is outside this
// module's scope; the RAPTOR index consumes them as-is.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the document that produced this chunk.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for semantic search.
	// Every chunk in a store shares one embedder, so all embeddings
	// have the same dimensionality.
	Embedding []float32

	// CreatedAt is when the chunk was indexed.
	CreatedAt time.Time
}
