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

type capturedRequest struct {
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

func responsesServer(t *testing.T, status int, reply string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Path = r.URL.Path
		got.Query = r.URL.RawQuery
		got.Header = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.Body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

const okReply = `{
  "status": "completed",
  "output": [
    {"type": "reasoning"},
    {"type": "message", "role": "assistant", "content": [{"type": "output_text", "text": "{\"identifier\":"}, {"type": "output_text", "text": "\"x\"}"}]}
  ]
}`

func testRequest() Request {
	return Request{
		Stage:      "shell",
		SchemaName: "item_shell",
		Schema:     map[string]any{"type": "object"},
		System:     "sys",
		User:       "user",
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv, got := responsesServer(t, http.StatusOK, okReply)
	c, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "gpt-test"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"identifier":"x"}`, string(out))

	assert.Equal(t, "/v1/responses", got.Path)
	assert.Equal(t, "Bearer k", got.Header.Get("Authorization"))
	assert.Equal(t, "gpt-test", got.Body["model"])
	format := got.Body["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "item_shell", format["name"])

	input := got.Body["input"].([]any)
	assert.Equal(t, "user", input[1].(map[string]any)["content"], "text-only requests send plain content")
}

func TestOpenAIAzureWithImages(t *testing.T) {
	srv, got := responsesServer(t, http.StatusOK, okReply)
	c, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "az", Model: "deploy", Azure: true})
	require.NoError(t, err)

	req := testRequest()
	req.Images = []Image{{URL: "https://x/a.png"}, {URL: "data:image/png;base64,AAAA"}}
	_, err = c.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/openai/responses", got.Path)
	assert.Equal(t, "api-version="+defaultAzureAPIVersion, got.Query)
	assert.Equal(t, "az", got.Header.Get("api-key"))

	parts := got.Body["input"].([]any)[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "input_text", parts[0].(map[string]any)["type"])
	assert.Equal(t, "https://x/a.png", parts[1].(map[string]any)["image_url"])
	assert.Equal(t, "data:image/png;base64,AAAA", parts[2].(map[string]any)["image_url"])
}

func TestOpenAIFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"http status", http.StatusTooManyRequests, `{"error": {"message": "slow down"}}`},
		{"api error", http.StatusOK, `{"error": {"code": "bad", "message": "nope"}}`},
		{"incomplete", http.StatusOK, `{"status": "incomplete", "incomplete_details": {"reason": "max_output_tokens"}}`},
		{"refusal", http.StatusOK, `{"status": "completed", "output": [{"type": "message", "role": "assistant", "content": [{"type": "refusal", "refusal": "no"}]}]}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := responsesServer(t, tt.status, tt.reply)
			c, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), testRequest())
			assert.Error(t, err)
		})
	}
}

func TestOpenAIEmptyOutputIsNotAnError(t *testing.T) {
	srv, _ := responsesServer(t, http.StatusOK, `{"status": "completed", "output": []}`)
	c, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	require.NoError(t, err)

	out, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNewOpenAIValidation(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAI(OpenAIConfig{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewOpenAI(OpenAIConfig{APIKey: "k", Model: "d", Azure: true})
	assert.Error(t, err, "azure needs an endpoint")

	c, err := NewOpenAI(OpenAIConfig{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", c.ModelName())
	assert.Equal(t, defaultOpenAIBaseURL+"/v1/responses", c.endpoint())
}
