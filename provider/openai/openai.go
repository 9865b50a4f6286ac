// Package openai adapts the OpenAI-compatible chat completions HTTP API to
// the provider.Provider capability. No official OpenAI Go SDK appears in the
// retrieved pack, so this follows the teacher's ai/providers/openai/client.go
// hand-rolled net/http + SSE approach, generalized to also serve any
// OpenAI-compatible endpoint (baseURL override) the way ai/provider.go's
// WithProviderAlias does for deepseek/groq/xai/qwen/together/ollama.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"
const defaultModel = "gpt-4o"

// Config configures the adapter via functional options.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Name      string // display name, e.g. "openai", "deepseek" when aliased
	Client    *http.Client
	Logger    core.Logger
	Telemetry core.Telemetry
}

// Option mutates a Config.
type Option func(*Config)

func WithAPIKey(key string) Option   { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option  { return func(c *Config) { c.BaseURL = url } }
func WithModel(model string) Option  { return func(c *Config) { c.Model = model } }
func WithName(name string) Option    { return func(c *Config) { c.Name = name } }
func WithHTTPClient(h *http.Client) Option {
	return func(c *Config) { c.Client = h }
}
func WithLogger(l core.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithTelemetry(t core.Telemetry) Option {
	return func(c *Config) { c.Telemetry = t }
}

func applyDefaults(cfg *Config) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 180 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}
}

// Provider speaks the OpenAI chat completions wire format over plain HTTP.
type Provider struct {
	cfg    Config
	logger core.Logger
}

// New constructs the adapter.
func New(opts ...Option) *Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	applyDefaults(&cfg)
	return &Provider{cfg: cfg, logger: core.WithComponent(cfg.Logger, "provider/openai")}
}

func (p *Provider) Name() string        { return p.cfg.Name }
func (p *Provider) IsAvailable() bool   { return p.cfg.APIKey != "" }
func (p *Provider) SupportsTools() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage usagePayload `json:"usage"`
}

type streamResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usagePayload `json:"usage"`
}

func (p *Provider) buildMessages(messages []core.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (p *Provider) newRequest(ctx context.Context, body requestBody, streaming bool) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Generate performs a single non-streaming completion.
func (p *Provider) Generate(ctx context.Context, messages []core.Message, opts provider.Options) (*provider.Result, error) {
	ctx, span := p.cfg.Telemetry.StartSpan(ctx, p.cfg.Name+".Generate")
	defer span.End()

	if !p.IsAvailable() {
		err := core.NewFrameworkError(p.cfg.Name+".Generate", core.KindPermanent, fmt.Errorf("%s API key not configured", p.cfg.Name))
		span.RecordError(err)
		return nil, err
	}

	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}
	allMessages := messages
	if opts.SystemPrompt != "" {
		allMessages = append([]core.Message{{Role: core.RoleSystem, Content: opts.SystemPrompt}}, messages...)
	}

	req, err := p.newRequest(ctx, requestBody{
		Model:       model,
		Messages:    p.buildMessages(allMessages),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}, false)
	if err != nil {
		span.RecordError(err)
		return nil, core.NewFrameworkError(p.cfg.Name+".Generate", core.KindUnknown, err)
	}

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, core.NewFrameworkError(p.cfg.Name+".Generate", core.KindTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, core.NewFrameworkError(p.cfg.Name+".Generate", core.KindTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := classifyHTTPError(p.cfg.Name, resp.StatusCode, respBody)
		span.RecordError(apiErr)
		return nil, apiErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, core.NewFrameworkError(p.cfg.Name+".Generate", core.KindUnknown, fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return nil, core.NewFrameworkError(p.cfg.Name+".Generate", core.KindUnknown, fmt.Errorf("no choices in response"))
	}

	return &provider.Result{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// StreamChat performs an SSE-based streaming completion, forwarding each
// delta as a ChunkText.
func (p *Provider) StreamChat(ctx context.Context, messages []core.Message, opts provider.Options) (<-chan provider.Chunk, error) {
	ctx, span := p.cfg.Telemetry.StartSpan(ctx, p.cfg.Name+".StreamChat")

	if !p.IsAvailable() {
		span.End()
		return nil, core.NewFrameworkError(p.cfg.Name+".StreamChat", core.KindPermanent, fmt.Errorf("%s API key not configured", p.cfg.Name))
	}

	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}
	allMessages := messages
	if opts.SystemPrompt != "" {
		allMessages = append([]core.Message{{Role: core.RoleSystem, Content: opts.SystemPrompt}}, messages...)
	}

	req, err := p.newRequest(ctx, requestBody{
		Model:       model,
		Messages:    p.buildMessages(allMessages),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      true,
	}, true)
	if err != nil {
		span.End()
		return nil, core.NewFrameworkError(p.cfg.Name+".StreamChat", core.KindUnknown, err)
	}

	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		span.End()
		return nil, core.NewFrameworkError(p.cfg.Name+".StreamChat", core.KindTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		apiErr := classifyHTTPError(p.cfg.Name, resp.StatusCode, body)
		span.RecordError(apiErr)
		span.End()
		return nil, apiErr
	}

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		defer span.End()
		defer func() { _ = resp.Body.Close() }()

		send := func(c provider.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				out <- provider.Chunk{Type: provider.ChunkError, Err: core.WrapCancelled(p.cfg.Name+".StreamChat", ctx)}
				return false
			}
		}

		reader := bufio.NewReader(resp.Body)
		for {
			select {
			case <-ctx.Done():
				send(provider.Chunk{Type: provider.ChunkError, Err: core.WrapCancelled(p.cfg.Name+".StreamChat", ctx)})
				return
			default:
			}

			line, readErr := reader.ReadString('\n')
			if readErr != nil {
				if readErr != io.EOF {
					kind := core.KindTransient
					if core.IsContextErr(readErr) || ctx.Err() != nil {
						kind = core.KindCancelled
					}
					send(provider.Chunk{Type: provider.ChunkError, Err: core.NewFrameworkError(p.cfg.Name+".StreamChat", kind, readErr)})
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if line == "data: [DONE]" {
				send(provider.Chunk{Type: provider.ChunkStatus, Status: "done"})
				return
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var chunk streamResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
				continue
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					if !send(provider.Chunk{Type: provider.ChunkText, Text: choice.Delta.Content}) {
						return
					}
				}
				if choice.FinishReason != "" {
					send(provider.Chunk{Type: provider.ChunkStatus, Status: choice.FinishReason})
				}
			}
		}
	}()
	return out, nil
}

var _ provider.Provider = (*Provider)(nil)
