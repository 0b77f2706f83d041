package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messagesServer(t *testing.T, reply string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &body
}

func TestAnthropicGenerateReturnsToolInput(t *testing.T) {
	srv, body := messagesServer(t, `{
	  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
	  "content": [
	    {"type": "text", "text": "Here you go."},
	    {"type": "tool_use", "id": "tu_1", "name": "item_shell", "input": {"identifier": "x"}}
	  ],
	  "stop_reason": "tool_use",
	  "usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", Model: "claude-test", BaseURL: srv.URL})
	require.NoError(t, err)

	req := testRequest()
	req.Schema = map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"identifier": map[string]any{"type": "string"}},
		"required":             []any{"identifier"},
		"additionalProperties": false,
		"$defs":                map[string]any{"x": map[string]any{"type": "string"}},
	}
	req.Images = []Image{{URL: "https://x/a.png"}, {URL: "data:image/png;base64,AAAA"}}

	out, err := a.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"identifier": "x"}`, string(out))

	sent := *body
	tools := sent["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "item_shell", tool["name"])
	schema := tool["input_schema"].(map[string]any)
	assert.Equal(t, []any{"identifier"}, schema["required"])
	assert.Contains(t, schema, "$defs")
	assert.Equal(t, "tool", sent["tool_choice"].(map[string]any)["type"])

	content := sent["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	assert.Equal(t, "url", content[1].(map[string]any)["source"].(map[string]any)["type"])
	assert.Equal(t, "base64", content[2].(map[string]any)["source"].(map[string]any)["type"])
}

func TestAnthropicWithoutToolUseIsEmpty(t *testing.T) {
	srv, _ := messagesServer(t, `{
	  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
	  "content": [{"type": "text", "text": "I cannot."}],
	  "stop_reason": "end_turn",
	  "usage": {"input_tokens": 1, "output_tokens": 1}
	}`)
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", Model: "claude-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := a.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnthropicTruncated(t *testing.T) {
	srv, _ := messagesServer(t, `{
	  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
	  "content": [], "stop_reason": "max_tokens",
	  "usage": {"input_tokens": 1, "output_tokens": 1}
	}`)
	a, err := NewAnthropic(AnthropicConfig{APIKey: "k", Model: "claude-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestSplitDataURI(t *testing.T) {
	mt, data, ok := splitDataURI("data:image/gif;base64,R0lG")
	assert.True(t, ok)
	assert.Equal(t, "image/gif", mt)
	assert.Equal(t, "R0lG", data)

	_, _, ok = splitDataURI("data:text/plain,hello")
	assert.False(t, ok)
	_, _, ok = splitDataURI("https://x/y.png")
	assert.False(t, ok)
}
