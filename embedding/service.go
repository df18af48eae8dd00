package embedding

import "context"

// Service defines the interface for text embedding generation
type Service interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension
	Dimension() int
}

// ImageService defines the interface for image embedding generation
type ImageService interface {
	// EmbedImage generates an embedding for raw image bytes
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)

	// Dimension returns the embedding dimension
	Dimension() int
}
