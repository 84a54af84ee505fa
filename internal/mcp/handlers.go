package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/personality"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
	"github.com/ziadkadry99/auto-reply/internal/workflows"
)

func (s *Server) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company, err := request.RequireString("company_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: company_id"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	vec, err := embeddings.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embedding query failed: %v", err)), nil
	}
	results, err := s.index.QueryEmbedding(ctx, vectordb.TextCollection(company), vec, limit, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The catalog may not be ingested yet. Run `autoreply ingest` first."), nil
	}
	return mcp.NewToolResultText(vectordb.FormatResults(results)), nil
}

func (s *Server) handleValidateWorkflow(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: workflow"), nil
	}
	var wf workflows.Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow is not valid JSON: %v", err)), nil
	}
	if err := workflows.Validate(&wf); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nError: %s", wf.Status, wf.Error)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nExcept case: %s", wf.Status, wf.ExceptCase)), nil
}

func (s *Server) handlePreviewPersonality(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := request.GetString("personality", "")
	if raw == "" {
		return mcp.NewToolResultText(personality.Resolve(nil)), nil
	}
	var cfg personality.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("personality is not valid JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(personality.Resolve(&cfg)), nil
}
