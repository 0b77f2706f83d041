package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/diagram"
	"github.com/ormasoftchile/itemforge/pkg/feedback"
	"github.com/ormasoftchile/itemforge/pkg/pipeline"
	"github.com/ormasoftchile/itemforge/pkg/schema"
	"github.com/ormasoftchile/itemforge/pkg/widgets"
)

// Handlers serves the itemforge MCP tools. Orchestrator may be nil, in
// which case itemforge/generate reports that no backend is configured.
type Handlers struct {
	Resolver     *assets.Resolver
	Orchestrator *pipeline.Orchestrator
	Catalog      widgets.Catalog
}

// source builds a Source from either a "path" argument or inline
// "content" with a "format" of json, html or markdown.
func source(args map[string]any) (assets.Source, error) {
	var (
		src assets.Source
		err error
	)
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	switch {
	case path != "":
		src, err = assets.LoadSource(path)
	case content != "":
		format, _ := args["format"].(string)
		ext := map[string]string{"": ".json", "json": ".json", "html": ".html", "markdown": ".md", "md": ".md"}[strings.ToLower(format)]
		if ext == "" {
			return assets.Source{}, fmt.Errorf("unknown content format %q: use json, html or markdown", format)
		}
		src, err = assets.SourceFromBytes("inline"+ext, []byte(content))
	default:
		return assets.Source{}, errors.New("path or content argument is required")
	}
	if err != nil {
		return assets.Source{}, err
	}
	src.ScreenshotURL, _ = args["screenshot_url"].(string)
	return src, nil
}

// HandleResolve implements the itemforge/resolve MCP tool.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := source(req.GetArguments())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	env, err := h.Resolver.Resolve(ctx, src)
	if err != nil {
		return errorResult(fmt.Sprintf("resolve: %s", err)), nil
	}
	return jsonResult(env)
}

// HandlePlan implements the itemforge/plan MCP tool.
func (h *Handlers) HandlePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	input, _ := args["input"].(string)
	if input == "" {
		return errorResult("input argument is required"), nil
	}
	in, err := feedback.ParseInput([]byte(input))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	plan := in.Plan()

	format, _ := args["format"].(string)
	switch format {
	case "", "json":
		return jsonResult(plan)
	default:
		out, err := diagram.Generate(plan, diagram.Format(format))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return textResult(out), nil
	}
}

// HandleSchema implements the itemforge/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, _ := req.GetArguments()["kind"].(string)
	data, err := schema.Export(kind, h.catalog())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleGenerate implements the itemforge/generate MCP tool.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.Orchestrator == nil {
		return errorResult("no generation backend configured"), nil
	}
	src, err := source(req.GetArguments())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	env, err := h.Resolver.Resolve(ctx, src)
	if err != nil {
		return errorResult(fmt.Sprintf("resolve: %s", err)), nil
	}

	res, err := h.Orchestrator.Run(ctx, env)
	if err != nil {
		response := map[string]any{"error": err.Error()}
		var se *pipeline.StageError
		if errors.As(err, &se) {
			response["stage"] = se.Stage
		}
		data, _ := json.MarshalIndent(response, "", "  ")
		return errorResult(string(data)), nil
	}
	return jsonResult(res)
}

func (h *Handlers) catalog() widgets.Catalog {
	if h.Catalog == nil {
		return widgets.Default()
	}
	return h.Catalog
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %s", err)), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
