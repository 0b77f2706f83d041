package backend

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig holds configuration for the Anthropic backend.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string // optional, for proxies and tests
	MaxTokens int64
}

// Anthropic implements Backend with the Messages API. The stage schema is
// offered as the input schema of a single tool the model is forced to call;
// the tool input is the structured output.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a client from explicit config.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxOutputTokens
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// ModelName returns the model name.
func (a *Anthropic) ModelName() string {
	return a.model
}

// Generate sends one forced-tool request and returns the tool input.
func (a *Anthropic) Generate(ctx context.Context, r Request) ([]byte, error) {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(r.User)}
	for _, img := range r.Images {
		if mediaType, data, ok := splitDataURI(img.URL); ok {
			blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
			continue
		}
		blocks = append(blocks, anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL}))
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: r.System}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Tools: []anthropic.ToolUnionParam{{OfTool: &anthropic.ToolParam{
			Name:        r.SchemaName,
			Description: anthropic.String("Emit the " + r.Stage + " output."),
			InputSchema: toolSchema(r.Schema),
		}}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: r.SchemaName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return nil, fmt.Errorf("response truncated at %d tokens", a.maxTokens)
	}
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == r.SchemaName {
			return []byte(block.Input), nil
		}
	}
	return nil, nil
}

// toolSchema maps a JSON Schema object onto the SDK's tool input schema.
// Keywords without a dedicated field travel as extra fields.
func toolSchema(s map[string]any) anthropic.ToolInputSchemaParam {
	p := anthropic.ToolInputSchemaParam{Properties: s["properties"]}
	if req, ok := s["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				p.Required = append(p.Required, name)
			}
		}
	}
	extra := make(map[string]any)
	for k, v := range s {
		switch k {
		case "type", "properties", "required", "$schema":
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		p.ExtraFields = extra
	}
	return p
}
