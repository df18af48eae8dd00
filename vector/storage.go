package vector

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultEmbeddingDimension matches voyage-multimodal-3
	DefaultEmbeddingDimension = 1024
)

// Document represents a stored record: an opaque string id, a text content
// field (empty for image entries), an embedding vector and optional metadata.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult pairs a document with its distance to the query vector.
type SearchResult struct {
	Document Document
	Score    float32
}

// Batch accumulates pending writes client-side and applies them together in
// one commit. A batch is single-use: discard it after Commit.
type Batch interface {
	// Set stages a merge-write for doc. Fields carried by doc replace the
	// stored ones; fields the schema owns (created_at) are preserved on
	// existing documents.
	Set(doc Document)

	// Len reports the number of staged writes.
	Len() int

	// Commit applies all staged writes in a single transaction.
	// Committing an empty batch is a no-op.
	Commit() error
}

// Store defines the interface for vector storage operations
type Store interface {
	// Initialize creates or opens the database
	Initialize() error

	// Close closes the database connection
	Close() error

	// SetDimension sets the embedding dimension, re-creating the
	// embeddings table when it changes
	SetDimension(dim int) error

	// NewBatch returns an empty write batch
	NewBatch() Batch

	// GetDocument retrieves a document by id, nil when absent
	GetDocument(id string) (*Document, error)

	// DeleteDocument removes a document and its embedding
	DeleteDocument(id string) error

	// CountDocuments returns the number of stored documents
	CountDocuments() (int, error)

	// ListDocuments returns up to limit documents, most recently
	// updated first
	ListDocuments(limit int) ([]Document, error)

	// Search performs nearest-neighbor search over stored embeddings
	Search(queryEmbedding []float32, limit int) ([]SearchResult, error)
}

// SQLiteStore implements Store using SQLite with sqlite-vec
type SQLiteStore struct {
	db        *sql.DB
	path      string
	dimension int
	mu        sync.RWMutex
}

// NewSQLiteStore creates a new SQLite vector store
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		path:      dbPath,
		dimension: DefaultEmbeddingDimension,
	}
}

// Initialize creates the database and tables
func (s *SQLiteStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Register sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	// store_meta keeps configuration such as the embedding dimension
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create store_meta table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	if err := s.createEmbeddingsTable(s.dimension); err != nil {
		return err
	}

	return nil
}

// createEmbeddingsTable creates the vec0 virtual table for KNN search.
// Caller must hold the write lock.
func (s *SQLiteStore) createEmbeddingsTable(dim int) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0 (
			embedding float[%d],
			doc_id TEXT
		)
	`, dim))
	if err != nil {
		return fmt.Errorf("failed to create embeddings virtual table: %w", err)
	}
	return nil
}

// SetDimension sets the embedding dimension. When the stored dimension
// differs, existing embeddings and documents are cleared so they can be
// re-ingested with vectors of the new size.
func (s *SQLiteStore) SetDimension(dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storedDim int
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = 'dimension'").Scan(&storedDim)
	if err == nil && storedDim == dim {
		s.dimension = dim
		return nil
	}
	if err == nil {
		log.Printf("Embedding dimension changed to %d, clearing stored vectors", dim)
	}
	s.dimension = dim

	_, err = s.db.Exec("DROP TABLE IF EXISTS embeddings")
	if err != nil {
		return fmt.Errorf("failed to drop embeddings table: %w", err)
	}

	_, err = s.db.Exec("DELETE FROM documents")
	if err != nil {
		return fmt.Errorf("failed to clear documents table: %w", err)
	}

	if err := s.createEmbeddingsTable(dim); err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO store_meta (key, value) VALUES ('dimension', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, dim)
	if err != nil {
		return fmt.Errorf("failed to store dimension: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewBatch returns an empty write batch bound to this store
func (s *SQLiteStore) NewBatch() Batch {
	return &sqliteBatch{store: s}
}

// GetDocument retrieves a document by id
func (s *SQLiteStore) GetDocument(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc Document
	var metadata sql.NullString
	err := s.db.QueryRow(`
		SELECT id, content, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Content, &metadata, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
		}
	}

	var blob []byte
	err = s.db.QueryRow("SELECT embedding FROM embeddings WHERE doc_id = ?", id).Scan(&blob)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	if len(blob) > 0 {
		doc.Embedding = blobToFloat32Slice(blob)
	}

	return &doc, nil
}

// DeleteDocument removes a document and its embedding
func (s *SQLiteStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM embeddings WHERE doc_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}

	_, err = s.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}

// CountDocuments returns the number of stored documents
func (s *SQLiteStore) CountDocuments() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// ListDocuments returns up to limit documents, most recently updated first
func (s *SQLiteStore) ListDocuments(limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content, metadata, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var metadata sql.NullString
		err := rows.Scan(&doc.ID, &doc.Content, &metadata, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}

// Search performs nearest-neighbor search over stored embeddings
func (s *SQLiteStore) Search(queryEmbedding []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queryBlob := float32SliceToBlob(queryEmbedding)

	// sqlite-vec requires k = ? for KNN queries
	rows, err := s.db.Query(`
		SELECT
			e.doc_id,
			e.distance,
			d.content,
			d.metadata,
			d.created_at,
			d.updated_at
		FROM embeddings e
		JOIN documents d ON e.doc_id = d.id
		WHERE e.embedding MATCH ? AND k = ?
		ORDER BY e.distance
	`, queryBlob, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var result SearchResult
		var metadata sql.NullString
		err := rows.Scan(
			&result.Document.ID,
			&result.Score,
			&result.Document.Content,
			&metadata,
			&result.Document.CreatedAt,
			&result.Document.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &result.Document.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", result.Document.ID, err)
			}
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return results, nil
}

// float32SliceToBlob converts a float32 slice to the little-endian byte
// layout sqlite-vec expects
func float32SliceToBlob(vec []float32) []byte {
	blob := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// blobToFloat32Slice is the inverse of float32SliceToBlob
func blobToFloat32Slice(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
