// Package bedrock adapts AWS Bedrock's Converse API to the provider.Provider
// capability, grounded on the teacher's ai/providers/bedrock/client.go.
package bedrock

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
)

const defaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// Config configures the Bedrock adapter.
type Config struct {
	Region    string
	Model     string
	Logger    core.Logger
	Telemetry core.Telemetry
}

// Option mutates a Config.
type Option func(*Config)

func WithRegion(region string) Option   { return func(c *Config) { c.Region = region } }
func WithModel(model string) Option     { return func(c *Config) { c.Model = model } }
func WithLogger(l core.Logger) Option   { return func(c *Config) { c.Logger = l } }
func WithTelemetry(t core.Telemetry) Option {
	return func(c *Config) { c.Telemetry = t }
}

func applyDefaults(cfg *Config) {
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}
}

// Provider wraps a bedrockruntime.Client to satisfy provider.Provider.
type Provider struct {
	cfg    Config
	client *bedrockruntime.Client
	logger core.Logger
}

// New loads the default AWS credential chain (env vars, shared config, IAM
// role) for the given region and constructs the adapter. If credential
// resolution fails, IsAvailable reports false rather than New returning an
// error, so router construction never has to special-case a missing cloud
// credential.
func New(ctx context.Context, opts ...Option) *Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	applyDefaults(&cfg)

	p := &Provider{cfg: cfg, logger: core.WithComponent(cfg.Logger, "provider/bedrock")}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		p.logger.Warn("bedrock credential resolution failed", map[string]interface{}{"error": err.Error()})
		return p
	}
	p.client = bedrockruntime.NewFromConfig(awsCfg)
	return p
}

func (p *Provider) Name() string        { return "bedrock" }
func (p *Provider) IsAvailable() bool   { return p.client != nil && p.cfg.Region != "" }
func (p *Provider) SupportsTools() bool { return false }

func (p *Provider) buildConverseInput(messages []core.Message, opts provider.Options) *bedrockruntime.ConverseInput {
	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	var converseMessages []types.Message
	for _, m := range messages {
		role := types.ConversationRoleUser
		if m.Role == core.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		if m.Role == core.RoleSystem {
			continue
		}
		converseMessages = append(converseMessages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: converseMessages,
	}
	if opts.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: opts.SystemPrompt}}
	}

	inferenceConfig := &types.InferenceConfiguration{}
	configSet := false
	if opts.MaxTokens > 0 {
		inferenceConfig.MaxTokens = aws.Int32(int32(opts.MaxTokens))
		configSet = true
	}
	if opts.Temperature > 0 {
		inferenceConfig.Temperature = aws.Float32(opts.Temperature)
		configSet = true
	}
	if configSet {
		input.InferenceConfig = inferenceConfig
	}
	return input
}

// Generate performs a single non-streaming completion via Converse.
func (p *Provider) Generate(ctx context.Context, messages []core.Message, opts provider.Options) (*provider.Result, error) {
	ctx, span := p.cfg.Telemetry.StartSpan(ctx, "bedrock.Generate")
	defer span.End()

	input := p.buildConverseInput(messages, opts)
	output, err := p.client.Converse(ctx, input)
	if err != nil {
		span.RecordError(err)
		return nil, classifyBedrockError(err)
	}
	if output.Output == nil {
		return nil, core.NewFrameworkError("bedrock.Generate", core.KindUnknown, fmt.Errorf("no output in bedrock response"))
	}

	var content string
	switch v := output.Output.(type) {
	case *types.ConverseOutputMemberMessage:
		for _, block := range v.Value.Content {
			if b, ok := block.(*types.ContentBlockMemberText); ok {
				content += b.Value
			}
		}
	default:
		return nil, core.NewFrameworkError("bedrock.Generate", core.KindUnknown, fmt.Errorf("unexpected bedrock output type"))
	}

	result := &provider.Result{Content: content, Model: *input.ModelId}
	if output.Usage != nil {
		result.Usage = core.TokenUsage{
			PromptTokens:     int(*output.Usage.InputTokens),
			CompletionTokens: int(*output.Usage.OutputTokens),
			TotalTokens:      int(*output.Usage.TotalTokens),
		}
	}
	return result, nil
}

// StreamChat streams a completion via ConverseStream, forwarding text deltas
// as ChunkText. Bedrock's Converse API carries no tool-use delta shape this
// adapter understands, so ChunkToolCall is never emitted here.
func (p *Provider) StreamChat(ctx context.Context, messages []core.Message, opts provider.Options) (<-chan provider.Chunk, error) {
	ctx, span := p.cfg.Telemetry.StartSpan(ctx, "bedrock.StreamChat")
	input := p.buildConverseInput(messages, opts)

	streamInput := &bedrockruntime.ConverseStreamInput{
		ModelId:         input.ModelId,
		Messages:        input.Messages,
		System:          input.System,
		InferenceConfig: input.InferenceConfig,
	}
	output, err := p.client.ConverseStream(ctx, streamInput)
	if err != nil {
		span.End()
		return nil, classifyBedrockError(err)
	}

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		defer span.End()

		eventStream := output.GetStream()
		defer eventStream.Close()

		send := func(c provider.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				out <- provider.Chunk{Type: provider.ChunkError, Err: core.WrapCancelled("bedrock.StreamChat", ctx)}
				return false
			}
		}

		for {
			event, ok := <-eventStream.Events()
			if !ok {
				break
			}
			switch v := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if d, ok := v.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					if !send(provider.Chunk{Type: provider.ChunkText, Text: d.Value}) {
						return
					}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				send(provider.Chunk{Type: provider.ChunkStatus, Status: "done"})
				return
			}
		}
		if err := eventStream.Err(); err != nil {
			span.RecordError(err)
			send(provider.Chunk{Type: provider.ChunkError, Err: classifyBedrockError(err)})
		}
	}()
	return out, nil
}

var _ provider.Provider = (*Provider)(nil)
