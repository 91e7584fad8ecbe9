// Package mcp exposes link metadata lookups as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"Metafetch/internal/build"
	"Metafetch/internal/core/unfurl"
)

// Server wraps the MCP server with the metadata service
type Server struct {
	service   unfurl.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(service unfurl.Service) *Server {
	s := &Server{service: service}

	s.mcpServer = server.NewMCPServer(
		"metafetch",
		build.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the tools over stdin/stdout until the input is closed
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler serves the tools over streamable HTTP
func (s *Server) HTTPHandler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

func (s *Server) registerTools() {
	getTool := mcp.NewTool("get_link_metadata",
		mcp.WithDescription("Get link preview metadata (title, description, image, site name, hostname) for a URL. Results are cached."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page URL; http:// is assumed when no scheme is given"),
		),
	)
	s.mcpServer.AddTool(getTool, s.handleGetLinkMetadata)

	extractTool := mcp.NewTool("extract_page_metadata",
		mcp.WithDescription("Fetch a page and return every Open Graph, meta and image candidate found, without caching."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The absolute http(s) page URL"),
		),
	)
	s.mcpServer.AddTool(extractTool, s.handleExtractPageMetadata)
}

func (s *Server) handleGetLinkMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	normalized, err := unfurl.NormalizeURL(rawURL)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %q", rawURL)), nil
	}

	record, err := s.service.Resolve(ctx, normalized)
	if err != nil {
		return toolError(normalized, err), nil
	}

	return jsonResult(record)
}

func (s *Server) handleExtractPageMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter required"), nil
	}

	metadata, err := s.service.Extract(ctx, rawURL)
	if err != nil {
		return toolError(rawURL, err), nil
	}

	return jsonResult(metadata)
}

func toolError(url string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, unfurl.ErrInvalidURL):
		return mcp.NewToolResultError(fmt.Sprintf("invalid URL: %q", url))
	case errors.Is(err, unfurl.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("no metadata found for %s", url))
	default:
		return mcp.NewToolResultError("internal error while fetching metadata")
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
