package vector

import (
	"encoding/json"
	"fmt"
	"time"
)

// sqliteTimeLayout is fixed-width so that lexicographic ordering of stored
// timestamps matches chronological ordering
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// sqliteBatch implements Batch for SQLiteStore. Writes are staged in order
// and applied inside one SQL transaction, so a failing write rolls the whole
// batch back.
type sqliteBatch struct {
	store  *SQLiteStore
	writes []Document
}

func (b *sqliteBatch) Set(doc Document) {
	b.writes = append(b.writes, doc)
}

func (b *sqliteBatch) Len() int {
	return len(b.writes)
}

func (b *sqliteBatch) Commit() error {
	if len(b.writes) == 0 {
		return nil
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(sqliteTimeLayout)

	docStmt, err := tx.Prepare(`
		INSERT INTO documents (id, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare document upsert: %w", err)
	}
	defer docStmt.Close()

	for _, doc := range b.writes {
		// nil metadata is written as an explicit NULL, replacing any
		// previously stored mapping
		var metadata any
		if doc.Metadata != nil {
			encoded, err := json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", doc.ID, err)
			}
			metadata = string(encoded)
		}

		if _, err := docStmt.Exec(doc.ID, doc.Content, metadata, now, now); err != nil {
			return fmt.Errorf("failed to write document %s: %w", doc.ID, err)
		}

		if len(doc.Embedding) == 0 {
			continue
		}

		// vec0 has no upsert, so replace the embedding row
		if _, err := tx.Exec("DELETE FROM embeddings WHERE doc_id = ?", doc.ID); err != nil {
			return fmt.Errorf("failed to replace embedding for %s: %w", doc.ID, err)
		}
		blob := float32SliceToBlob(doc.Embedding)
		if _, err := tx.Exec("INSERT INTO embeddings (embedding, doc_id) VALUES (?, ?)", blob, doc.ID); err != nil {
			return fmt.Errorf("failed to write embedding for %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	b.writes = nil
	return nil
}
