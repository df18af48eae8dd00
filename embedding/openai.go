package embedding

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultOpenAIModel is the default text embedding model
	DefaultOpenAIModel = openai.SmallEmbedding3
	// OpenAIBatchSize is the maximum number of inputs per API call
	OpenAIBatchSize = 2048
	// OpenAIMaxRetries bounds retries on rate-limited requests
	OpenAIMaxRetries = 5
	// OpenAIInitialBackoff is the first backoff duration
	OpenAIInitialBackoff = 10 * time.Second
	// OpenAIMaxBackoff caps the backoff duration
	OpenAIMaxBackoff = 120 * time.Second
)

// openaiDimensions maps known embedding models to their output sizes
var openaiDimensions = map[openai.EmbeddingModel]int{
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
	openai.AdaEmbeddingV2:  1536,
}

// OpenAIService implements Service using the OpenAI embeddings API
type OpenAIService struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// OpenAIConfig holds configuration for the OpenAI embedding service
type OpenAIConfig struct {
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string // Optional: for proxies or compatible APIs
}

// NewOpenAIService creates a new OpenAI embedding service
func NewOpenAIService(cfg OpenAIConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := DefaultOpenAIModel
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		if d, ok := openaiDimensions[model]; ok {
			dimension = d
		} else {
			dimension = openaiDimensions[DefaultOpenAIModel]
		}
	}

	return &OpenAIService{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed generates an embedding for a single text
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the input
// into API-sized batches and backing off on rate limits
func (s *OpenAIService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	for start := 0; start < len(texts); start += OpenAIBatchSize {
		end := min(start+OpenAIBatchSize, len(texts))

		resp, err := s.createWithBackoff(ctx, openai.EmbeddingRequest{
			Input:      texts[start:end],
			Model:      s.model,
			Dimensions: s.dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}

		for _, data := range resp.Data {
			out = append(out, data.Embedding)
		}
	}

	return out, nil
}

// createWithBackoff retries rate-limited requests with capped exponential
// backoff; all other errors are returned as-is
func (s *OpenAIService) createWithBackoff(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
	backoff := OpenAIInitialBackoff

	for attempt := 0; ; attempt++ {
		resp, err := s.client.CreateEmbeddings(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isRateLimitError(err) || attempt >= OpenAIMaxRetries {
			return openai.EmbeddingResponse{}, err
		}

		log.Printf("Rate limit hit, retrying in %v (attempt %d/%d)", backoff, attempt+1, OpenAIMaxRetries)
		select {
		case <-ctx.Done():
			return openai.EmbeddingResponse{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, OpenAIMaxBackoff)
	}
}

// isRateLimitError checks if the error is a rate limit (429) or quota error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate") ||
		strings.Contains(errStr, "quota")
}

// Dimension returns the embedding dimension
func (s *OpenAIService) Dimension() int {
	return s.dimension
}
