package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pixvault/vector"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Vault is the store surface the MCP tools need
type Vault interface {
	AddImages(ctx context.Context, imagePaths []string, metadatas []map[string]any, ids []string) ([]string, error)
	SimilaritySearch(ctx context.Context, query string, k int) ([]vector.SearchResult, error)
	GetDocument(id string) (*vector.Document, error)
	DeleteDocument(id string) error
	ListDocuments(limit int) ([]vector.Document, error)
}

// Server exposes the vector store over MCP
type Server struct {
	mcpServer *server.MCPServer
	vault     Vault
}

// Config holds MCP server configuration
type Config struct {
	Name    string
	Version string
	Vault   Vault
}

// NewServer creates a new MCP server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Vault == nil {
		return nil, fmt.Errorf("a vault is required")
	}
	if cfg.Name == "" {
		cfg.Name = "pixvault"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	s := &Server{vault: cfg.Vault}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s, nil
}

// registerTools registers MCP tools
func (s *Server) registerTools(srv *server.MCPServer) {
	addTool := mcp.NewTool("add_images",
		mcp.WithDescription("Embed images and store them in the vector store. Accepts local paths, s3://bucket/key references and web URLs."),
		mcp.WithString("paths",
			mcp.Required(),
			mcp.Description("Comma-separated list of image locators"),
		),
		mcp.WithString("ids",
			mcp.Description("Optional comma-separated document ids, parallel to paths"),
		),
		mcp.WithString("metadatas",
			mcp.Description("Optional JSON array of metadata objects, parallel to paths"),
		),
	)
	srv.AddTool(addTool, s.handleAddImages)

	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Search stored documents by semantic similarity to a text query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 5, max: 20)"),
		),
	)
	srv.AddTool(searchTool, s.handleSearch)

	getTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get a stored document by id, including its content and metadata."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The document id"),
		),
	)
	srv.AddTool(getTool, s.handleGetDocument)

	listTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List stored documents, most recently updated first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of documents to return (default: 20, max: 100)"),
		),
	)
	srv.AddTool(listTool, s.handleListDocuments)

	deleteTool := mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a stored document by id."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The document id"),
		),
	)
	srv.AddTool(deleteTool, s.handleDeleteDocument)
}

// handleAddImages handles the add_images tool
func (s *Server) handleAddImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths := splitList(request.GetString("paths", ""))
	if len(paths) == 0 {
		return mcp.NewToolResultError("paths parameter is required"), nil
	}
	ids := splitList(request.GetString("ids", ""))

	var metadatas []map[string]any
	if raw := request.GetString("metadatas", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadatas); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid metadatas JSON: %v", err)), nil
		}
	}

	added, err := s.vault.AddImages(ctx, paths, metadatas, ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add images: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Added %d images:\n%s", len(added), strings.Join(added, "\n"))), nil
}

// handleSearch handles the search tool
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit > 20 {
		limit = 20
	}
	if limit < 1 {
		limit = 1
	}

	results, err := s.vault.SimilaritySearch(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found for the query."), nil
	}

	var output strings.Builder
	for i, r := range results {
		output.WriteString(fmt.Sprintf("## Result %d (score: %.4f)\n", i+1, r.Score))
		output.WriteString(fmt.Sprintf("**ID:** %s\n", r.Document.ID))
		if r.Document.Content != "" {
			output.WriteString(fmt.Sprintf("\n%s\n", r.Document.Content))
		}
		if len(r.Document.Metadata) > 0 {
			encoded, _ := json.Marshal(r.Document.Metadata)
			output.WriteString(fmt.Sprintf("**Metadata:** %s\n", encoded))
		}
		output.WriteString("\n---\n\n")
	}

	return mcp.NewToolResultText(output.String()), nil
}

// handleGetDocument handles the get_document tool
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.vault.GetDocument(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get document: %v", err)), nil
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
	output.WriteString(fmt.Sprintf("**Created:** %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05")))
	if len(doc.Metadata) > 0 {
		encoded, _ := json.Marshal(doc.Metadata)
		output.WriteString(fmt.Sprintf("**Metadata:** %s\n", encoded))
	}
	if doc.Content != "" {
		output.WriteString("\n" + doc.Content + "\n")
	} else {
		output.WriteString(fmt.Sprintf("\n(image document, %d-dimensional embedding)\n", len(doc.Embedding)))
	}

	return mcp.NewToolResultText(output.String()), nil
}

// handleListDocuments handles the list_documents tool
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 1
	}

	docs, err := s.vault.ListDocuments(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list documents: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents stored."), nil
	}

	var output strings.Builder
	for _, doc := range docs {
		kind := "image"
		if doc.Content != "" {
			kind = "text"
		}
		output.WriteString(fmt.Sprintf("- **%s** (%s, updated %s)\n",
			doc.ID, kind, doc.UpdatedAt.Format("2006-01-02 15:04:05")))
		if len(doc.Metadata) > 0 {
			encoded, _ := json.Marshal(doc.Metadata)
			output.WriteString(fmt.Sprintf("  %s\n", encoded))
		}
	}

	return mcp.NewToolResultText(output.String()), nil
}

// handleDeleteDocument handles the delete_document tool
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	if err := s.vault.DeleteDocument(id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete document: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted document %s", id)), nil
}

// ServeStdio starts the MCP server over stdio
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// splitList splits a comma-separated parameter, dropping empty entries
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
