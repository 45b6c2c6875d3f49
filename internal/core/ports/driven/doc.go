// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for tree building to function:
//
//   - ChunkStore: Read access to the leaf chunks and their version marker
//   - RaptorNodeStore: Summary node persistence and vector search
//   - BuildStateStore: Build marker persistence
//   - EmbeddingService: Generates vector embeddings (same embedder as chunks)
//   - LLMService: Text generation for cluster summarisation
//
// # Search Interfaces
//
//   - SearchEngine: The host system's chunk-level hybrid search. Combined
//     search requires it; a summary search failure degrades to
//     chunk-only results, a chunk search failure does not.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
