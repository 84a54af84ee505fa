// Package mcp exposes catalog search, workflow validation and personality
// previews to MCP clients.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server backed by the catalog index.
type Server struct {
	index    vectordb.Index
	embedder embeddings.Embedder
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(index vectordb.Index, embedder embeddings.Embedder) *Server {
	s := &Server{
		index:    index,
		embedder: embedder,
	}

	s.mcp = server.NewMCPServer(
		"autoreply",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchProductsTool, s.handleSearchProducts)
	s.mcp.AddTool(validateWorkflowTool, s.handleValidateWorkflow)
	s.mcp.AddTool(previewPersonalityTool, s.handlePreviewPersonality)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
