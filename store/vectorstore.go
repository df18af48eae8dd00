// Package store provides an image-aware vector document store: it glues an
// embedding service to the vector database, adding batch image ingestion on
// top of the usual text operations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pixvault/embedding"
	"pixvault/fetch"
	"pixvault/vector"
)

// Rejected-input errors, reported before any embedding or write occurs.
var (
	ErrNoImages      = errors.New("no images provided to add to the vector store")
	ErrNoTexts       = errors.New("no texts provided to add to the vector store")
	ErrMetadataCount = errors.New("the length of metadatas must be the same as the length of inputs or zero")
	ErrIDCount       = errors.New("the length of ids must be the same as the length of inputs or zero")
)

// VectorStore wraps a vector.Store with embedding services and image
// fetching. It holds the base store by reference rather than extending it,
// and exposes the extra operations as methods.
type VectorStore struct {
	store   vector.Store
	text    embedding.Service
	image   embedding.ImageService
	fetcher fetch.Fetcher
}

// Options configures a VectorStore. Store is required; the embedders are
// each required only by the operations that use them.
type Options struct {
	Store         vector.Store
	TextEmbedder  embedding.Service
	ImageEmbedder embedding.ImageService
	Fetcher       fetch.Fetcher
}

// New creates a VectorStore
func New(opts Options) (*VectorStore, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("a vector store is required")
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewResolver(fetch.Options{})
	}
	return &VectorStore{
		store:   opts.Store,
		text:    opts.TextEmbedder,
		image:   opts.ImageEmbedder,
		fetcher: fetcher,
	}, nil
}

// AddImages embeds each image and writes one document per image in a single
// batch commit. imagePaths are locators: local paths, s3://bucket/key
// references or web URLs. metadatas and ids, when non-empty, must be
// parallel to imagePaths; missing ids are generated. The content field of
// image documents is the empty string. Returns the document ids used, in
// input order.
func (v *VectorStore) AddImages(ctx context.Context, imagePaths []string, metadatas []map[string]any, ids []string) ([]string, error) {
	if len(imagePaths) == 0 {
		return nil, ErrNoImages
	}
	if len(metadatas) != 0 && len(metadatas) != len(imagePaths) {
		return nil, ErrMetadataCount
	}
	if len(ids) != 0 && len(ids) != len(imagePaths) {
		return nil, ErrIDCount
	}
	if v.image == nil {
		return nil, fmt.Errorf("no image embedding service configured")
	}

	batch := v.store.NewBatch()
	out := make([]string, 0, len(imagePaths))

	for i, path := range imagePaths {
		data, err := v.fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch image %s: %w", path, err)
		}

		embedded, err := v.image.EmbedImage(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to embed image %s: %w", path, err)
		}

		id := ""
		if len(ids) != 0 {
			id = ids[i]
		}
		if id == "" {
			id = uuid.NewString()
		}

		var metadata map[string]any
		if len(metadatas) != 0 {
			metadata = metadatas[i]
		}

		batch.Set(vector.Document{
			ID:        id,
			Content:   "",
			Metadata:  metadata,
			Embedding: embedded,
		})
		out = append(out, id)
	}

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit image batch: %w", err)
	}
	return out, nil
}

// AddTexts embeds each text and writes one document per text in a single
// batch commit, mirroring AddImages for text content.
func (v *VectorStore) AddTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}
	if len(metadatas) != 0 && len(metadatas) != len(texts) {
		return nil, ErrMetadataCount
	}
	if len(ids) != 0 && len(ids) != len(texts) {
		return nil, ErrIDCount
	}
	if v.text == nil {
		return nil, fmt.Errorf("no text embedding service configured")
	}

	embeddings, err := v.text.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(embeddings), len(texts))
	}

	batch := v.store.NewBatch()
	out := make([]string, 0, len(texts))

	for i, text := range texts {
		id := ""
		if len(ids) != 0 {
			id = ids[i]
		}
		if id == "" {
			id = uuid.NewString()
		}

		var metadata map[string]any
		if len(metadatas) != 0 {
			metadata = metadatas[i]
		}

		batch.Set(vector.Document{
			ID:        id,
			Content:   text,
			Metadata:  metadata,
			Embedding: embeddings[i],
		})
		out = append(out, id)
	}

	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit text batch: %w", err)
	}
	return out, nil
}

// SimilaritySearch embeds the query text and returns the k nearest
// documents
func (v *VectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]vector.SearchResult, error) {
	if v.text == nil {
		return nil, fmt.Errorf("no text embedding service configured")
	}
	queryEmbedding, err := v.text.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return v.SimilaritySearchByVector(ctx, queryEmbedding, k)
}

// SimilaritySearchByVector returns the k nearest documents to the given
// embedding
func (v *VectorStore) SimilaritySearchByVector(_ context.Context, queryEmbedding []float32, k int) ([]vector.SearchResult, error) {
	results, err := v.store.Search(queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return results, nil
}

// GetDocument retrieves a document by id, nil when absent
func (v *VectorStore) GetDocument(id string) (*vector.Document, error) {
	return v.store.GetDocument(id)
}

// DeleteDocument removes a document by id
func (v *VectorStore) DeleteDocument(id string) error {
	return v.store.DeleteDocument(id)
}

// CountDocuments returns the number of stored documents
func (v *VectorStore) CountDocuments() (int, error) {
	return v.store.CountDocuments()
}

// ListDocuments returns up to limit documents, most recently updated first
func (v *VectorStore) ListDocuments(limit int) ([]vector.Document, error) {
	return v.store.ListDocuments(limit)
}
