package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/ctx/internal/errors"
	"github.com/hpungsan/ctx/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// CaptureRequest represents the arguments for ctx_capture.
type CaptureRequest struct {
	OriginTitle   string `json:"origin_title"`
	OriginURL     string `json:"origin_url"`
	Note          string `json:"note,omitempty"`
	SourceApp     string `json:"source_app,omitempty"`
	Browser       string `json:"browser,omitempty"`
	DownloadsDir  string `json:"downloads_dir,omitempty"`
	WithinSeconds int    `json:"within_seconds,omitempty"`
}

// LookupRequest represents the arguments for ctx_lookup.
type LookupRequest struct {
	Path  string `json:"path"`
	Limit int    `json:"limit,omitempty"`
}

// SearchRequest represents the arguments for ctx_search.
type SearchRequest struct {
	Query       string   `json:"query,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	NoReconcile bool     `json:"no_reconcile,omitempty"`
	ScanRoots   []string `json:"scan_roots,omitempty"`
}

// GetRequest represents the arguments for ctx_get.
type GetRequest struct {
	ID string `json:"id"`
}

// HandleCapture handles the ctx_capture tool.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Capture(ctx, h.env, ops.CaptureInput{
		OriginTitle:   input.OriginTitle,
		OriginURL:     input.OriginURL,
		Note:          input.Note,
		SourceApp:     input.SourceApp,
		Browser:       input.Browser,
		DownloadsDir:  input.DownloadsDir,
		WithinSeconds: input.WithinSeconds,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLookup handles the ctx_lookup tool.
func (h *Handlers) HandleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LookupRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Lookup(ctx, h.env, ops.LookupInput{
		Path:  input.Path,
		Limit: input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the ctx_search tool.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Search(ctx, h.env, ops.SearchInput{
		Query:       input.Query,
		Limit:       input.Limit,
		NoReconcile: input.NoReconcile,
		ScanRoots:   input.ScanRoots,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the ctx_get tool.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Get(ctx, h.env, ops.GetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReindex handles the ctx_reindex tool.
func (h *Handlers) HandleReindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.Reindex(ctx, h.env))
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	payload := map[string]any{"error": errors.Wrap(err).Object()}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
