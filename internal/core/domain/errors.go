package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Precondition violations (empty summarisation input, too few points
	// to reduce) wrap this error.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingMissing indicates a node was submitted for persistence
	// without an embedding. Nodes must carry their vector up front.
	ErrEmbeddingMissing = errors.New("embedding missing")

	// ErrDimensionMismatch indicates a vector's dimensionality does not
	// match the store's configured embedder. This is a configuration bug,
	// typically an embedder swap without a rebuild.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Tree building requires a summarisation-capable LLM.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Building and vector search are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the chunk search engine is not
	// configured.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrRaptorDisabled indicates RAPTOR is switched off in settings.
	ErrRaptorDisabled = errors.New("raptor is disabled")
)
