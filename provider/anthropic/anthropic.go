// Package anthropic adapts Anthropic's official Go SDK to the provider.Provider
// capability, grounded on the call patterns used in the retrieved pack's
// internal/llm client (Messages.New / Messages.NewStreaming, event-type
// switching via AsAny) and on the teacher's ai/providers/anthropic/client.go
// for logging and tracing texture.
package anthropic

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
)

const defaultModel = "claude-sonnet-4-5"

// Config configures the Anthropic adapter via functional options, following
// the teacher's ai/provider.go AIOption pattern.
type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
	Logger     core.Logger
	Telemetry  core.Telemetry
}

// Option mutates a Config.
type Option func(*Config)

func WithAPIKey(key string) Option      { return func(c *Config) { c.APIKey = key } }
func WithModel(model string) Option     { return func(c *Config) { c.Model = model } }
func WithLogger(l core.Logger) Option   { return func(c *Config) { c.Logger = l } }
func WithTelemetry(t core.Telemetry) Option {
	return func(c *Config) { c.Telemetry = t }
}

func applyDefaults(cfg *Config) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}
}

// Provider wraps an anthropic.Client to satisfy provider.Provider.
type Provider struct {
	cfg    Config
	client anthropic.Client
	logger core.Logger
}

// New constructs the adapter. The underlying SDK client is built once and
// reused across calls.
func New(opts ...Option) *Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	applyDefaults(&cfg)

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	)

	return &Provider{
		cfg:    cfg,
		client: client,
		logger: core.WithComponent(cfg.Logger, "provider/anthropic"),
	}
}

func (p *Provider) Name() string        { return "anthropic" }
func (p *Provider) IsAvailable() bool   { return p.cfg.APIKey != "" }
func (p *Provider) SupportsTools() bool { return true }

func (p *Provider) buildParams(messages []core.Message, opts provider.Options) anthropic.MessageNewParams {
	model := anthropic.Model(p.cfg.Model)
	if opts.Model != "" {
		model = anthropic.Model(opts.Model)
	}
	maxTokens := int64(4096)
	if opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}

	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case core.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		case core.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	for _, tool := range opts.Tools {
		schema := anthropic.ToolInputSchemaParam{Properties: tool.InputSchema}
		params.Tools = append(params.Tools, anthropic.ToolUnionParamOfTool(schema, tool.Name))
	}

	return params
}

// Generate performs a single non-streaming completion.
func (p *Provider) Generate(ctx context.Context, messages []core.Message, opts provider.Options) (*provider.Result, error) {
	ctx, span := p.cfg.Telemetry.StartSpan(ctx, "anthropic.Generate")
	defer span.End()

	params := p.buildParams(messages, opts)
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, classifyAnthropicError(err)
	}

	result := &provider.Result{Model: string(msg.Model)}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += variant.Text
		case anthropic.ToolUseBlock:
			input := map[string]interface{}{}
			_ = json.Unmarshal(variant.Input, &input)
			result.ToolCalls = append(result.ToolCalls, provider.ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: input,
			})
		}
	}
	result.Usage = core.TokenUsage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return result, nil
}

// StreamChat streams a completion, translating SDK events into the uniform
// Chunk protocol. Text deltas become ChunkText; a completed tool_use block
// becomes a single ChunkToolCall once its input JSON is fully accumulated.
func (p *Provider) StreamChat(ctx context.Context, messages []core.Message, opts provider.Options) (<-chan provider.Chunk, error) {
	ctx, span := p.cfg.Telemetry.StartSpan(ctx, "anthropic.StreamChat")
	params := p.buildParams(messages, opts)
	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		defer span.End()

		send := func(c provider.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				out <- provider.Chunk{Type: provider.ChunkError, Err: core.WrapCancelled("anthropic.StreamChat", ctx)}
				return false
			}
		}

		var pendingToolID, pendingToolName string
		var pendingInput []byte

		for stream.Next() {
			event := stream.Current()
			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				switch block := e.ContentBlock.AsAny().(type) {
				case anthropic.ToolUseBlock:
					pendingToolID = block.ID
					pendingToolName = block.Name
					pendingInput = pendingInput[:0]
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := e.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if !send(provider.Chunk{Type: provider.ChunkText, Text: delta.Text}) {
						return
					}
				case anthropic.InputJSONDelta:
					pendingInput = append(pendingInput, []byte(delta.PartialJSON)...)
				}
			case anthropic.ContentBlockStopEvent:
				if pendingToolName != "" {
					input := map[string]interface{}{}
					_ = json.Unmarshal(pendingInput, &input)
					if !send(provider.Chunk{Type: provider.ChunkToolCall, ToolCall: &provider.ToolCall{
						ID:    pendingToolID,
						Name:  pendingToolName,
						Input: input,
					}}) {
						return
					}
					pendingToolID, pendingToolName = "", ""
					pendingInput = nil
				}
			case anthropic.MessageStopEvent:
				send(provider.Chunk{Type: provider.ChunkStatus, Status: "done"})
			}
		}
		if err := stream.Err(); err != nil {
			span.RecordError(err)
			send(provider.Chunk{Type: provider.ChunkError, Err: classifyAnthropicError(err)})
		}
	}()
	return out, nil
}

var _ provider.Provider = (*Provider)(nil)
