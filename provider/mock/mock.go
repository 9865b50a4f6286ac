// Package mock implements provider.Provider for tests and local demos,
// grounded on the teacher's ai/providers/mock/provider.go canned-response
// client.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
)

// Provider replays a fixed list of responses in order, or a configured error.
// CallCount/LastMessages/LastOptions let tests assert on what the caller sent.
type Provider struct {
	mu sync.Mutex

	name      string
	available bool
	tools     bool

	Responses    []string
	ResponseIdx  int
	Err          error
	CallCount    int
	LastMessages []core.Message
	LastOptions  provider.Options
}

// New creates a mock provider. It is always available unless told otherwise.
func New(name string) *Provider {
	return &Provider{name: name, available: true, tools: true}
}

func (p *Provider) Name() string          { return p.name }
func (p *Provider) IsAvailable() bool     { return p.available }
func (p *Provider) SupportsTools() bool   { return p.tools }
func (p *Provider) SetAvailable(v bool)   { p.available = v }
func (p *Provider) SetSupportsTools(v bool) { p.tools = v }

// SetResponses replaces the canned response queue and resets the cursor.
func (p *Provider) SetResponses(responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = responses
	p.ResponseIdx = 0
}

// SetError makes every subsequent call fail with err.
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// Reset clears call history and the error, keeping configured responses.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount = 0
	p.ResponseIdx = 0
	p.Err = nil
	p.LastMessages = nil
}

func (p *Provider) record(messages []core.Message, opts provider.Options) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount++
	p.LastMessages = messages
	p.LastOptions = opts

	if p.Err != nil {
		return "", core.NewFrameworkError(p.name+".mock", core.KindTransient, p.Err)
	}
	if len(p.Responses) == 0 {
		return "mock response", nil
	}
	idx := p.ResponseIdx
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	resp := p.Responses[idx]
	p.ResponseIdx++
	return resp, nil
}

// Generate returns the next canned response synchronously.
func (p *Provider) Generate(ctx context.Context, messages []core.Message, opts provider.Options) (*provider.Result, error) {
	text, err := p.record(messages, opts)
	if err != nil {
		return nil, err
	}
	return &provider.Result{
		Content: text,
		Model:   "mock-1",
		Usage:   core.TokenUsage{PromptTokens: len(messages), CompletionTokens: len(strings.Fields(text)), TotalTokens: len(messages) + len(strings.Fields(text))},
	}, nil
}

// StreamChat splits the next canned response into whitespace-delimited text
// chunks, one per channel send, emulating token-by-token streaming.
func (p *Provider) StreamChat(ctx context.Context, messages []core.Message, opts provider.Options) (<-chan provider.Chunk, error) {
	text, err := p.record(messages, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		words := strings.Fields(text)
		for i, w := range words {
			chunk := w
			if i < len(words)-1 {
				chunk += " "
			}
			select {
			case out <- provider.Chunk{Type: provider.ChunkText, Text: chunk}:
			case <-ctx.Done():
				out <- provider.Chunk{Type: provider.ChunkError, Err: core.WrapCancelled("mock.StreamChat", ctx)}
				return
			}
		}
	}()
	return out, nil
}

var _ provider.Provider = (*Provider)(nil)
