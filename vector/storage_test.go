package vector

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, dim int) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	store.dimension = dim
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBatchCommitAndGet(t *testing.T) {
	store := newTestStore(t, 4)

	batch := store.NewBatch()
	batch.Set(Document{
		ID:        "doc-1",
		Content:   "",
		Metadata:  map[string]any{"source": "test"},
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
	})
	batch.Set(Document{
		ID:        "doc-2",
		Content:   "some text",
		Embedding: []float32{1, 0, 0, 0},
	})
	if batch.Len() != 2 {
		t.Fatalf("batch.Len() = %d, want 2", batch.Len())
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	doc, err := store.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc == nil {
		t.Fatal("GetDocument(doc-1) = nil, want document")
	}
	if doc.Content != "" {
		t.Errorf("doc-1 content = %q, want empty", doc.Content)
	}
	if doc.Metadata["source"] != "test" {
		t.Errorf("doc-1 metadata = %v, want source=test", doc.Metadata)
	}
	if len(doc.Embedding) != 4 {
		t.Errorf("doc-1 embedding length = %d, want 4", len(doc.Embedding))
	}

	doc2, err := store.GetDocument("doc-2")
	if err != nil || doc2 == nil {
		t.Fatalf("GetDocument(doc-2) = %v, %v", doc2, err)
	}
	if doc2.Metadata != nil {
		t.Errorf("doc-2 metadata = %v, want nil", doc2.Metadata)
	}

	count, err := store.CountDocuments()
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountDocuments = %d, want 2", count)
	}
}

func TestBatchMergeOverwritesSetFields(t *testing.T) {
	store := newTestStore(t, 4)

	batch := store.NewBatch()
	batch.Set(Document{
		ID:        "doc-1",
		Content:   "original",
		Metadata:  map[string]any{"v": float64(1)},
		Embedding: []float32{1, 1, 1, 1},
	})
	if err := batch.Commit(); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}

	first, err := store.GetDocument("doc-1")
	if err != nil || first == nil {
		t.Fatalf("GetDocument = %v, %v", first, err)
	}

	// A second write at the same id replaces content, metadata and
	// embedding but keeps created_at.
	batch = store.NewBatch()
	batch.Set(Document{
		ID:        "doc-1",
		Content:   "",
		Embedding: []float32{2, 2, 2, 2},
	})
	if err := batch.Commit(); err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}

	second, err := store.GetDocument("doc-1")
	if err != nil || second == nil {
		t.Fatalf("GetDocument = %v, %v", second, err)
	}
	if second.Content != "" {
		t.Errorf("content = %q, want empty", second.Content)
	}
	if second.Metadata != nil {
		t.Errorf("metadata = %v, want nil after overwrite", second.Metadata)
	}
	if second.Embedding[0] != 2 {
		t.Errorf("embedding[0] = %v, want 2", second.Embedding[0])
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed across merge: %v != %v", second.CreatedAt, first.CreatedAt)
	}

	count, _ := store.CountDocuments()
	if count != 1 {
		t.Errorf("CountDocuments = %d, want 1", count)
	}
}

func TestEmptyBatchCommitIsNoop(t *testing.T) {
	store := newTestStore(t, 4)
	if err := store.NewBatch().Commit(); err != nil {
		t.Fatalf("empty Commit failed: %v", err)
	}
	count, _ := store.CountDocuments()
	if count != 0 {
		t.Errorf("CountDocuments = %d, want 0", count)
	}
}

func TestSearchOrdersByDistance(t *testing.T) {
	store := newTestStore(t, 4)

	batch := store.NewBatch()
	batch.Set(Document{ID: "near", Embedding: []float32{1, 0, 0, 0}})
	batch.Set(Document{ID: "far", Embedding: []float32{0, 0, 0, 1}})
	batch.Set(Document{ID: "mid", Embedding: []float32{0.7, 0.7, 0, 0}})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	results, err := store.Search([]float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search returned %d results, want 2", len(results))
	}
	if results[0].Document.ID != "near" {
		t.Errorf("nearest = %s, want near", results[0].Document.ID)
	}
	if results[0].Score > results[1].Score {
		t.Errorf("results not ordered by distance: %v > %v", results[0].Score, results[1].Score)
	}
}

func TestListDocuments(t *testing.T) {
	store := newTestStore(t, 4)

	batch := store.NewBatch()
	batch.Set(Document{ID: "doc-1", Content: "text one", Embedding: []float32{1, 0, 0, 0}})
	batch.Set(Document{ID: "doc-2", Embedding: []float32{0, 1, 0, 0}})
	batch.Set(Document{ID: "doc-3", Metadata: map[string]any{"k": "v"}, Embedding: []float32{0, 0, 1, 0}})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	docs, err := store.ListDocuments(2)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("ListDocuments(2) returned %d documents, want 2", len(docs))
	}

	docs, err = store.ListDocuments(10)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("ListDocuments(10) returned %d documents, want 3", len(docs))
	}
	seen := make(map[string]Document)
	for i, doc := range docs {
		seen[doc.ID] = doc
		if i > 0 && docs[i-1].UpdatedAt.Before(doc.UpdatedAt) {
			t.Errorf("documents not ordered by updated_at: [%d]=%v after [%d]=%v",
				i-1, docs[i-1].UpdatedAt, i, doc.UpdatedAt)
		}
	}
	if seen["doc-1"].Content != "text one" {
		t.Errorf("doc-1 content = %q, want %q", seen["doc-1"].Content, "text one")
	}
	if seen["doc-3"].Metadata["k"] != "v" {
		t.Errorf("doc-3 metadata = %v, want k=v", seen["doc-3"].Metadata)
	}

	// A fresh write moves the document to the front of the listing.
	batch = store.NewBatch()
	batch.Set(Document{ID: "doc-1", Content: "updated", Embedding: []float32{1, 1, 0, 0}})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	docs, err = store.ListDocuments(1)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" {
		t.Errorf("ListDocuments(1) after update = %v, want doc-1 first", docs)
	}
}

func TestDeleteDocument(t *testing.T) {
	store := newTestStore(t, 4)

	batch := store.NewBatch()
	batch.Set(Document{ID: "doc-1", Embedding: []float32{1, 2, 3, 4}})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := store.DeleteDocument("doc-1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	doc, err := store.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc != nil {
		t.Errorf("GetDocument after delete = %v, want nil", doc)
	}

	// Deleting a missing document is not an error.
	if err := store.DeleteDocument("missing"); err != nil {
		t.Errorf("DeleteDocument(missing) failed: %v", err)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e9, -0.0001}
	got := blobToFloat32Slice(float32SliceToBlob(vec))
	if len(got) != len(vec) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("round trip [%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}
