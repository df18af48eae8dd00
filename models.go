package main

// EmbeddingsConfig represents embedding service configuration
type EmbeddingsConfig struct {
	TextProvider  string `json:"text_provider"`  // "openai", "ollama" or "voyage"
	ImageProvider string `json:"image_provider"` // "voyage"
	Model         string `json:"model"`
	ImageModel    string `json:"image_model,omitempty"`
	APIKey        string `json:"api_key"` // Supports ${ENV_VAR} syntax
	ImageAPIKey   string `json:"image_api_key,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	DBPath        string `json:"db_path"` // Path to the vector database
}

// ImagesConfig controls image locator resolution
type ImagesConfig struct {
	S3Region string `json:"s3_region,omitempty"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Port string `json:"port"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Title      string           `json:"title"`
	Embeddings EmbeddingsConfig `json:"embeddings"`
	Images     ImagesConfig     `json:"images,omitempty"`
	Server     ServerConfig     `json:"server,omitempty"`
	MCP        MCPConfig        `json:"mcp,omitempty"`
}

// SearchResultJSON is the API shape of one search hit
type SearchResultJSON struct {
	ID       string         `json:"id"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// DocumentJSON is the API shape of a stored document
type DocumentJSON struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	ContentHTML string         `json:"content_html,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Dimension   int            `json:"dimension"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}
