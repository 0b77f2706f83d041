// Package mcp exposes itemforge as Model Context Protocol tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with the itemforge tools registered.
func NewServer(version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"itemforge",
		version,
		server.WithToolCapabilities(true),
	)

	sourceArgs := []mcp.ToolOption{
		mcp.WithString("path", mcp.Description("Path to a JSON, HTML or Markdown source file")),
		mcp.WithString("content", mcp.Description("Inline source content, used when path is empty")),
		mcp.WithString("format", mcp.Description("Format of inline content: json, html or markdown")),
		mcp.WithString("screenshot_url", mcp.Description("Absolute http(s) URL of a rendered screenshot (optional)")),
	}

	s.AddTool(
		mcp.NewTool("itemforge/resolve", append([]mcp.ToolOption{
			mcp.WithDescription("Resolve the media of a legacy quiz item into an envelope"),
		}, sourceArgs...)...),
		h.HandleResolve,
	)

	s.AddTool(
		mcp.NewTool("itemforge/plan",
			mcp.WithDescription("Build the feedback plan for response declarations and interactions"),
			mcp.WithString("input", mcp.Required(), mcp.Description(`JSON object {"responseDeclarations": [...], "interactions": {...}}`)),
			mcp.WithString("format", mcp.Description("Output format: json, mermaid or ascii")),
		),
		h.HandlePlan,
	)

	s.AddTool(
		mcp.NewTool("itemforge/schema",
			mcp.WithDescription("Export an itemforge JSON Schema"),
			mcp.WithString("kind", mcp.Required(), mcp.Description("Schema kind: shell, interactions, feedback, feedback_leaf, widgets or item")),
		),
		h.HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("itemforge/generate", append([]mcp.ToolOption{
			mcp.WithDescription("Resolve a legacy quiz item and generate an assessment item from it"),
		}, sourceArgs...)...),
		h.HandleGenerate,
	)

	return s
}
