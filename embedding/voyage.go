package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultVoyageURL is the Voyage AI multimodal embeddings endpoint
	DefaultVoyageURL = "https://api.voyageai.com/v1/multimodalembeddings"
	// DefaultVoyageModel is the default multimodal embedding model
	DefaultVoyageModel = "voyage-multimodal-3"
	// VoyageDimension is the output size of voyage-multimodal-3
	VoyageDimension = 1024
	// VoyageTimeout is the timeout for Voyage AI requests
	VoyageTimeout = 60 * time.Second
	// VoyageMaxBatchSize is the maximum number of inputs per API call
	VoyageMaxBatchSize = 128
	// VoyageMaxRetries bounds retries on rate-limited requests
	VoyageMaxRetries = 5
)

// VoyageService implements Service and ImageService using the Voyage AI
// multimodal embeddings API, which embeds text and images into the same
// vector space.
type VoyageService struct {
	apiKey    string
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// VoyageConfig holds configuration for the Voyage AI embedding service
type VoyageConfig struct {
	APIKey  string
	BaseURL string // Default: https://api.voyageai.com/v1/multimodalembeddings
	Model   string // Default: voyage-multimodal-3
}

// voyageContent is one piece of a multimodal input: either text or an
// image carried as a base64 data URL
type voyageContent struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type voyageInput struct {
	Content []voyageContent `json:"content"`
}

type voyageRequest struct {
	Inputs    []voyageInput `json:"inputs"`
	Model     string        `json:"model"`
	InputType string        `json:"input_type,omitempty"` // "document" or "query"
}

type voyageResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewVoyageService creates a new Voyage AI embedding service
func NewVoyageService(cfg VoyageConfig) (*VoyageService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Voyage AI API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultVoyageURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultVoyageModel
	}

	return &VoyageService{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     model,
		dimension: VoyageDimension,
		client:    &http.Client{Timeout: VoyageTimeout},
	}, nil
}

// Embed generates an embedding for a single text
func (s *VoyageService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (s *VoyageService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	for start := 0; start < len(texts); start += VoyageMaxBatchSize {
		end := min(start+VoyageMaxBatchSize, len(texts))

		inputs := make([]voyageInput, 0, end-start)
		for _, text := range texts[start:end] {
			inputs = append(inputs, voyageInput{
				Content: []voyageContent{{Type: "text", Text: text}},
			})
		}

		embeddings, err := s.embedInputs(ctx, inputs)
		if err != nil {
			return nil, err
		}
		out = append(out, embeddings...)
	}

	return out, nil
}

// EmbedImage generates an embedding for raw image bytes
func (s *VoyageService) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	mimeType := http.DetectContentType(image)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	embeddings, err := s.embedInputs(ctx, []voyageInput{{
		Content: []voyageContent{{Type: "image_base64", ImageBase64: dataURL}},
	}})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// embedInputs sends one API request, retrying rate-limited calls with
// exponential backoff
func (s *VoyageService) embedInputs(ctx context.Context, inputs []voyageInput) ([][]float32, error) {
	body, err := json.Marshal(voyageRequest{
		Inputs:    inputs,
		Model:     s.model,
		InputType: "document",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var decoded voyageResponse
	backoff := retry.WithMaxRetries(VoyageMaxRetries, retry.NewExponential(time.Second))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request to Voyage AI: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return retry.RetryableError(fmt.Errorf("voyage AI rate limited"))
		}
		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("voyage AI API error (status %d): %s", resp.StatusCode, string(payload))
		}

		decoded = voyageResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Responses carry an index; order them to match the inputs
	embeddings := make([][]float32, len(decoded.Data))
	for _, data := range decoded.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("voyage AI returned out-of-range index %d", data.Index)
		}
		embedding := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			embedding[j] = float32(v)
		}
		embeddings[data.Index] = embedding
	}

	return embeddings, nil
}

// Dimension returns the embedding dimension
func (s *VoyageService) Dimension() int {
	return s.dimension
}
