package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/raptor/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/raptor/internal/core/domain"
	"github.com/custodia-labs/raptor/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// chunk, node and build state store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.raptor/data/raptor.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".raptor", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "raptor.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ChunkStore returns a writable ChunkStore interface backed by this store.
func (s *Store) ChunkStore() *ChunkStore {
	return &ChunkStore{store: s}
}

// NodeStore returns a RaptorNodeStore interface backed by this store.
// The embedder must be the same one that produced the node embeddings;
// it is used to embed search queries.
func (s *Store) NodeStore(embedder driven.EmbeddingService) driven.RaptorNodeStore {
	return &nodeStore{store: s, embedder: embedder}
}

// BuildStateStore returns a BuildStateStore interface backed by this store.
func (s *Store) BuildStateStore() driven.BuildStateStore {
	return &buildStateStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_init.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Chunk Store ====================

// ChunkStore implements driven.ChunkStore over SQLite, plus the write
// operations the host system's ingestion uses. Every write bumps the
// store version counter inside the same transaction, so staleness
// checks observe all mutations.
type ChunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*ChunkStore)(nil)

// SaveChunk stores or replaces a chunk.
func (s *ChunkStore) SaveChunk(ctx context.Context, chunk domain.Chunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			embedding = excluded.embedding
	`, chunk.ID, chunk.DocumentID, chunk.Content, chunk.Position,
		float32SliceToBytes(chunk.Embedding), chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}

	if err := bumpVersion(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteChunk removes a chunk.
func (s *ChunkStore) DeleteChunk(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}

	if err := bumpVersion(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ListChunks returns every chunk.
func (s *ChunkStore) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding, created_at
		FROM chunks ORDER BY document_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embedding []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
			&chunk.Position, &embedding, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embedding)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Version returns the opaque modification marker.
func (s *ChunkStore) Version(ctx context.Context) (string, error) {
	var value string
	row := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = 'chunk_version'")
	if err := row.Scan(&value); err != nil {
		return "", fmt.Errorf("reading store version: %w", err)
	}
	return value, nil
}

// bumpVersion increments the chunk version counter within tx.
func bumpVersion(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE store_meta SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		WHERE key = 'chunk_version'
	`)
	if err != nil {
		return fmt.Errorf("bumping store version: %w", err)
	}
	return nil
}

// ==================== Node Store ====================

// nodeStore implements driven.RaptorNodeStore.
type nodeStore struct {
	store    *Store
	embedder driven.EmbeddingService
}

var _ driven.RaptorNodeStore = (*nodeStore)(nil)

// Create persists nodes, assigning ids where absent.
func (s *nodeStore) Create(ctx context.Context, nodes ...*domain.RaptorNode) error {
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

		sourceIDs, err := json.Marshal(node.SourceChunkIDs)
		if err != nil {
			return fmt.Errorf("marshalling source chunk ids: %w", err)
		}

		_, err = s.store.db.ExecContext(ctx, `
			INSERT INTO raptor_nodes (id, content, layer, cluster_id, source_chunk_ids, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, node.ID, node.Content, node.Layer, node.ClusterID, string(sourceIDs),
			float32SliceToBytes(node.Embedding), node.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving node: %w", err)
		}
	}
	return nil
}

// DeleteAll removes every node. Idempotent.
func (s *nodeStore) DeleteAll(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM raptor_nodes"); err != nil {
		return fmt.Errorf("deleting nodes: %w", err)
	}
	return nil
}

// GetByID retrieves a node by id.
func (s *nodeStore) GetByID(ctx context.Context, id string) (*domain.RaptorNode, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, content, layer, cluster_id, source_chunk_ids, embedding, created_at
		FROM raptor_nodes WHERE id = ?
	`, id)

	node, err := scanNodeRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return node, nil
}

// GetByLayer returns all nodes at an exact layer.
func (s *nodeStore) GetByLayer(ctx context.Context, layer int) ([]domain.RaptorNode, error) {
	return s.queryNodes(ctx, `
		SELECT id, content, layer, cluster_id, source_chunk_ids, embedding, created_at
		FROM raptor_nodes WHERE layer = ? ORDER BY cluster_id
	`, layer)
}

// ListAll returns every stored node.
func (s *nodeStore) ListAll(ctx context.Context) ([]domain.RaptorNode, error) {
	return s.queryNodes(ctx, `
		SELECT id, content, layer, cluster_id, source_chunk_ids, embedding, created_at
		FROM raptor_nodes ORDER BY layer, cluster_id
	`)
}

// Count returns the number of stored nodes.
func (s *nodeStore) Count(ctx context.Context) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM raptor_nodes")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting nodes: %w", err)
	}
	return count, nil
}

// Search embeds the query and ranks all nodes by cosine similarity.
// The scan is linear; node counts are small (summaries, not chunks).
func (s *nodeStore) Search(ctx context.Context, query string, limit int) ([]driven.NodeHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nodes, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.NodeHit, 0, len(nodes))
	for _, node := range nodes {
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

// queryNodes runs a node select and scans all rows.
func (s *nodeStore) queryNodes(ctx context.Context, query string, args ...any) ([]domain.RaptorNode, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.RaptorNode //nolint:prealloc // size unknown from query
	for rows.Next() {
		node, err := scanNodeRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

// scanNodeRow scans one node row via the given scan function.
func scanNodeRow(scan func(dest ...any) error) (*domain.RaptorNode, error) {
	var node domain.RaptorNode
	var sourceIDs string
	var embedding []byte

	if err := scan(&node.ID, &node.Content, &node.Layer, &node.ClusterID,
		&sourceIDs, &embedding, &node.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}

	if err := json.Unmarshal([]byte(sourceIDs), &node.SourceChunkIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling source chunk ids: %w", err)
	}
	node.Embedding = bytesToFloat32Slice(embedding)

	return &node, nil
}

// ==================== Build State Store ====================

// buildStateStore implements driven.BuildStateStore.
type buildStateStore struct {
	store *Store
}

var _ driven.BuildStateStore = (*buildStateStore)(nil)

// Save stores or replaces the build marker.
func (s *buildStateStore) Save(ctx context.Context, state domain.BuildState) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO build_state (id, store_version, built_at, node_count)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_version = excluded.store_version,
			built_at = excluded.built_at,
			node_count = excluded.node_count
	`, state.StoreVersion, state.BuiltAt, state.NodeCount)
	if err != nil {
		return fmt.Errorf("saving build state: %w", err)
	}
	return nil
}

// Get retrieves the build marker.
func (s *buildStateStore) Get(ctx context.Context) (*domain.BuildState, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT store_version, built_at, node_count FROM build_state WHERE id = 1")

	var state domain.BuildState
	if err := row.Scan(&state.StoreVersion, &state.BuiltAt, &state.NodeCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning build state: %w", err)
	}
	return &state, nil
}

// Clear removes the build marker. Idempotent.
func (s *buildStateStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM build_state"); err != nil {
		return fmt.Errorf("clearing build state: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
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
