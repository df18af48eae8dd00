package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/russross/blackfriday/v2"

	"pixvault/chunking"
	"pixvault/embedding"
	"pixvault/fetch"
	"pixvault/mcp"
	"pixvault/store"
	"pixvault/vector"
)

// App represents the main application
type App struct {
	Config Config
	DB     *vector.SQLiteStore
	Store  *store.VectorStore
}

// NewApp creates a new application instance
func NewApp() *App {
	return &App{}
}

// Initialize loads configuration and wires the vector store
func (a *App) Initialize(configFile string) error {
	if err := a.LoadConfig(configFile); err != nil {
		return err
	}

	db := vector.NewSQLiteStore(a.Config.Embeddings.DBPath)
	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.DB = db

	textService, err := a.buildTextService()
	if err != nil {
		return err
	}
	imageService, err := a.buildImageService()
	if err != nil {
		return err
	}

	// Text and image vectors share one table, so their dimensions must agree.
	dimension := imageService.Dimension()
	if textService.Dimension() != dimension {
		return fmt.Errorf("text embedding dimension %d does not match image embedding dimension %d",
			textService.Dimension(), dimension)
	}
	if err := db.SetDimension(dimension); err != nil {
		return fmt.Errorf("failed to set embedding dimension: %w", err)
	}

	a.Store, err = store.New(store.Options{
		Store:         db,
		TextEmbedder:  textService,
		ImageEmbedder: imageService,
		Fetcher:       fetch.NewResolver(fetch.Options{S3Region: a.Config.Images.S3Region}),
	})
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}

	return nil
}

// Close releases the database
func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Printf("Failed to close vector store: %v", err)
		}
	}
}

// buildTextService creates the text embedding service from config
func (a *App) buildTextService() (embedding.Service, error) {
	cfg := a.Config.Embeddings
	switch cfg.TextProvider {
	case "openai":
		return embedding.NewOpenAIService(embedding.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		return embedding.NewOllamaService(embedding.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "voyage", "voyageai":
		return embedding.NewVoyageService(embedding.VoyageConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported text embedding provider: %s", cfg.TextProvider)
	}
}

// buildImageService creates the image embedding service from config
func (a *App) buildImageService() (embedding.ImageService, error) {
	cfg := a.Config.Embeddings
	switch cfg.ImageProvider {
	case "voyage", "voyageai":
		return embedding.NewVoyageService(embedding.VoyageConfig{
			APIKey:  cfg.ImageAPIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.ImageModel,
		})
	default:
		return nil, fmt.Errorf("unsupported image embedding provider: %s", cfg.ImageProvider)
	}
}

// RunAdd embeds the given images and stores them in one batch
func (a *App) RunAdd(ctx context.Context, imagePaths []string, rawIDs, rawMetadatas string) error {
	var ids []string
	if rawIDs != "" {
		for _, id := range strings.Split(rawIDs, ",") {
			ids = append(ids, strings.TrimSpace(id))
		}
	}

	var metadatas []map[string]any
	if rawMetadatas != "" {
		if err := json.Unmarshal([]byte(rawMetadatas), &metadatas); err != nil {
			return fmt.Errorf("invalid -metadatas JSON: %w", err)
		}
	}

	added, err := a.Store.AddImages(ctx, imagePaths, metadatas, ids)
	if err != nil {
		return err
	}

	log.Printf("Added %d images", len(added))
	for i, id := range added {
		fmt.Printf("%s\t%s\n", id, imagePaths[i])
	}
	return nil
}

// RunIndex chunks and embeds all markdown files under dir
func (a *App) RunIndex(ctx context.Context, dir string) error {
	if dir == "" {
		return fmt.Errorf("index requires a directory argument")
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		chunks := chunking.ChunkMarkdown(string(content), chunking.DefaultOptions())
		if len(chunks) == 0 {
			log.Printf("No chunks generated for %s, skipping", path)
			return nil
		}

		texts := make([]string, len(chunks))
		metadatas := make([]map[string]any, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
			metadatas[i] = map[string]any{
				"path":    path,
				"section": chunk.SectionTitle,
				"chunk":   chunk.Index,
			}
		}

		if _, err := a.Store.AddTexts(ctx, texts, metadatas, nil); err != nil {
			return fmt.Errorf("failed to index %s: %w", path, err)
		}
		log.Printf("Indexed %d chunks from %s", len(chunks), path)
		return nil
	})
}

// RunSearch performs a semantic search and prints the results
func (a *App) RunSearch(ctx context.Context, query string, limit int) error {
	if query == "" {
		return fmt.Errorf("search requires a query argument")
	}

	results, err := a.Store.SimilaritySearch(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. %s (score %.4f)\n", i+1, r.Document.ID, r.Score)
		if r.Document.Content != "" {
			fmt.Printf("   %s\n", firstLine(r.Document.Content))
		}
		if len(r.Document.Metadata) > 0 {
			encoded, _ := json.Marshal(r.Document.Metadata)
			fmt.Printf("   %s\n", encoded)
		}
	}
	return nil
}

// Serve starts the HTTP API
func (a *App) Serve() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search", a.handleSearch)
	mux.HandleFunc("/api/documents/", a.handleDocument)

	addr := ":" + a.Config.Server.Port
	log.Printf("%s listening on %s", a.Config.Title, addr)
	return http.ListenAndServe(addr, mux)
}

// ServeMCP starts the MCP server over stdio
func (a *App) ServeMCP() error {
	srv, err := mcp.NewServer(mcp.Config{
		Name:    a.Config.MCP.Name,
		Version: a.Config.MCP.Version,
		Vault:   a.Store,
	})
	if err != nil {
		return err
	}
	return srv.ServeStdio()
}

// handleSearch handles GET /api/search?q=...&limit=...
func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}
	if limit < 1 || limit > 50 {
		limit = 5
	}

	results, err := a.Store.SimilaritySearch(r.Context(), query, limit)
	if err != nil {
		log.Printf("Search failed: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	out := make([]SearchResultJSON, len(results))
	for i, res := range results {
		out[i] = SearchResultJSON{
			ID:       res.Document.ID,
			Content:  res.Document.Content,
			Metadata: res.Document.Metadata,
			Score:    res.Score,
		}
	}
	writeJSON(w, out)
}

// handleDocument handles GET and DELETE /api/documents/{id}
func (a *App) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if id == "" {
		http.Error(w, "missing document id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := a.Store.GetDocument(id)
		if err != nil {
			log.Printf("Get document failed: %v", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if doc == nil {
			http.NotFound(w, r)
			return
		}

		out := DocumentJSON{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Dimension: len(doc.Embedding),
			CreatedAt: doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt: doc.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if doc.Content != "" {
			out.ContentHTML = string(blackfriday.Run([]byte(doc.Content)))
		}
		writeJSON(w, out)

	case http.MethodDelete:
		if err := a.Store.DeleteDocument(id); err != nil {
			log.Printf("Delete document failed: %v", err)
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// firstLine returns the first non-empty line of s, truncated for display
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if len(line) > 120 {
				return line[:117] + "..."
			}
			return line
		}
	}
	return ""
}
