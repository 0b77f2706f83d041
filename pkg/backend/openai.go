package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig holds configuration for an OpenAI or Azure OpenAI client.
type OpenAIConfig struct {
	// BaseURL is https://api.openai.com for OpenAI, or the resource
	// endpoint (https://<resource>.openai.azure.com) for Azure.
	BaseURL string
	APIKey  string
	// Model is the model name, or the deployment name on Azure.
	Model      string
	APIVersion string // Azure only
	Azure      bool

	MaxOutputTokens int
	Timeout         time.Duration
}

const (
	defaultOpenAIBaseURL   = "https://api.openai.com"
	defaultAzureAPIVersion = "2025-04-01-preview"
	defaultMaxOutputTokens = 16384
)

// OpenAI implements Backend with the Responses API and json_schema
// structured output. It speaks both OpenAI and Azure OpenAI.
type OpenAI struct {
	cfg        OpenAIConfig
	HTTPClient *http.Client
}

// NewOpenAI creates a client from explicit config.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		if cfg.Azure {
			return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is required")
		}
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.Model == "" {
		if cfg.Azure {
			return nil, fmt.Errorf("AZURE_OPENAI_DEPLOYMENT is required")
		}
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = defaultAzureAPIVersion
		}
	} else if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OpenAI{
		cfg:        cfg,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ModelName returns the model or deployment name.
func (c *OpenAI) ModelName() string {
	return c.cfg.Model
}

type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// responsesRequest is the Responses API request body.
type responsesRequest struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Text            struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text"`
}

// responsesResponse is the subset of the Responses API response we read.
type responsesResponse struct {
	Status            string `json:"status"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *OpenAI) endpoint() string {
	if c.cfg.Azure {
		return fmt.Sprintf("%s/openai/responses?api-version=%s", c.cfg.BaseURL, c.cfg.APIVersion)
	}
	return c.cfg.BaseURL + "/v1/responses"
}

// Generate sends one structured-output request.
func (c *OpenAI) Generate(ctx context.Context, r Request) ([]byte, error) {
	reqBody := responsesRequest{
		Model: c.cfg.Model,
		Input: []inputMessage{
			{Role: "system", Content: r.System},
			{Role: "user", Content: userContent(r)},
		},
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	// Strict mode rejects oneOf unions and optional properties, which the
	// content tree needs; the pipeline validates every response itself.
	reqBody.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   r.SchemaName,
		"schema": r.Schema,
		"strict": false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Azure {
		req.Header.Set("api-key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", c.provider(), resp.StatusCode, string(respBody))
	}

	var out responsesResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("API error [%s]: %s", out.Error.Code, out.Error.Message)
	}
	if out.Status == "incomplete" {
		reason := "unknown"
		if out.IncompleteDetails != nil {
			reason = out.IncompleteDetails.Reason
		}
		return nil, fmt.Errorf("response incomplete: %s", reason)
	}

	var text strings.Builder
	for _, item := range out.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				text.WriteString(part.Text)
			case "refusal":
				return nil, fmt.Errorf("model refused: %s", part.Refusal)
			}
		}
	}
	return []byte(text.String()), nil
}

func (c *OpenAI) provider() string {
	if c.cfg.Azure {
		return "Azure OpenAI"
	}
	return "OpenAI"
}

// userContent is the plain user text, or a multimodal part list when the
// request carries images.
func userContent(r Request) any {
	if len(r.Images) == 0 {
		return r.User
	}
	parts := make([]map[string]any, 0, 1+len(r.Images))
	parts = append(parts, map[string]any{"type": "input_text", "text": r.User})
	for _, img := range r.Images {
		parts = append(parts, map[string]any{"type": "input_image", "image_url": img.URL})
	}
	return parts
}
