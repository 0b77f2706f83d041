package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/itemforge/pkg/assets"
	"github.com/ormasoftchile/itemforge/pkg/backend"
	"github.com/ormasoftchile/itemforge/pkg/pipeline"
)

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

func newHandlers(b backend.Backend) *Handlers {
	h := &Handlers{Resolver: assets.NewResolver(assets.Config{})}
	if b != nil {
		h.Orchestrator = pipeline.New(b)
	}
	return h
}

func TestHandleResolve_MissingSource(t *testing.T) {
	result, err := newHandlers(nil).HandleResolve(context.Background(), call(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path and content")
	}
}

func TestHandleResolve_InlineContent(t *testing.T) {
	result, err := newHandlers(nil).HandleResolve(context.Background(), call(map[string]any{
		"content": `{"question": "2 + 2?"}`,
		"format":  "json",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", text(t, result))
	}
	var env assets.Envelope
	if err := json.Unmarshal([]byte(text(t, result)), &env); err != nil {
		t.Fatalf("result is not an envelope: %v", err)
	}
	if !strings.Contains(env.PrimaryContent, "2 + 2?") {
		t.Errorf("primary content = %q", env.PrimaryContent)
	}
}

func TestHandleResolve_UnknownFormat(t *testing.T) {
	result, _ := newHandlers(nil).HandleResolve(context.Background(), call(map[string]any{
		"content": "x", "format": "pdf",
	}))
	if !result.IsError {
		t.Error("expected error for unknown format")
	}
}

const planInput = `{
  "responseDeclarations": [{"identifier": "RESPONSE", "cardinality": "single", "baseType": "identifier"}],
  "interactions": {"c1": {"type": "choiceInteraction", "responseIdentifier": "RESPONSE",
    "choices": [{"identifier": "A", "content": []}, {"identifier": "B", "content": []}]}}
}`

func TestHandlePlan(t *testing.T) {
	h := newHandlers(nil)
	tests := []struct {
		format string
		want   string
	}{
		{"", `"RESPONSE_A"`},
		{"json", `"nested"`},
		{"mermaid", "flowchart TD"},
		{"ascii", "→ RESPONSE_B"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			result, err := h.HandlePlan(context.Background(), call(map[string]any{"input": planInput, "format": tt.format}))
			if err != nil {
				t.Fatal(err)
			}
			if result.IsError {
				t.Fatalf("unexpected error: %s", text(t, result))
			}
			if out := text(t, result); !strings.Contains(out, tt.want) {
				t.Errorf("missing %q in:\n%s", tt.want, out)
			}
		})
	}

	result, _ := h.HandlePlan(context.Background(), call(map[string]any{}))
	if !result.IsError {
		t.Error("expected error for missing input")
	}
	result, _ = h.HandlePlan(context.Background(), call(map[string]any{"input": planInput, "format": "svg"}))
	if !result.IsError {
		t.Error("expected error for unsupported format")
	}
}

func TestHandleSchema_Item(t *testing.T) {
	result, err := newHandlers(nil).HandleSchema(context.Background(), call(map[string]any{"kind": "item"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Error("expected success for item schema")
	}
	if !strings.Contains(text(t, result), "feedbackBlocks") {
		t.Error("expected item schema content")
	}
}

func TestHandleSchema_UnknownKind(t *testing.T) {
	result, err := newHandlers(nil).HandleSchema(context.Background(), call(map[string]any{"kind": "runbook"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unknown schema kind")
	}
}

func TestHandleGenerate_NoBackend(t *testing.T) {
	result, _ := newHandlers(nil).HandleGenerate(context.Background(), call(map[string]any{"content": "{}"}))
	if !result.IsError {
		t.Error("expected error without a backend")
	}
}

func TestHandleGenerate(t *testing.T) {
	b := backend.Func(func(_ context.Context, req backend.Request) ([]byte, error) {
		switch req.Stage {
		case "shell":
			return []byte(`{"identifier": "q1", "title": "Sum", "responseDeclarations": [],
			  "body": [{"type": "paragraph", "content": [{"type": "text", "content": "2 + 2 = 4"}]}]}`), nil
		case "feedback":
			return []byte(`{"CORRECT": {"content": []}, "INCORRECT": {"content": []}}`), nil
		}
		return nil, errors.New("unexpected stage " + req.Stage)
	})
	result, err := newHandlers(b).HandleGenerate(context.Background(), call(map[string]any{
		"content": `{"question": "2 + 2?"}`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", text(t, result))
	}
	var res pipeline.Result
	if err := json.Unmarshal([]byte(text(t, result)), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Item == nil || res.Item.Identifier != "q1" {
		t.Errorf("item = %+v", res.Item)
	}
}

func TestHandleGenerate_StageFailure(t *testing.T) {
	b := backend.Func(func(context.Context, backend.Request) ([]byte, error) {
		return nil, errors.New("quota exceeded")
	})
	result, _ := newHandlers(b).HandleGenerate(context.Background(), call(map[string]any{"content": `{"q": 1}`}))
	if !result.IsError {
		t.Fatal("expected error result")
	}
	out := text(t, result)
	if !strings.Contains(out, `"stage": "shell"`) || !strings.Contains(out, "quota exceeded") {
		t.Errorf("error result = %s", out)
	}
}
