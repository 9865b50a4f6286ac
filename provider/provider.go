// Package provider defines the uniform Provider capability (spec §4.2) that
// every concrete LLM backend adapter implements, and the tagged stream-chunk
// protocol the router and stream translator consume.
package provider

import (
	"context"

	"github.com/vertice-labs/agentcore/core"
)

// ChunkType tags a Chunk's payload. Per spec §9's design note, the
// convention of chunks that "happen to be JSON strings beginning with
// {\"tool_call\"" is replaced by explicit variants at the channel boundary.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkToolCall ChunkType = "tool_call"
	ChunkStatus   ChunkType = "status"
	ChunkError    ChunkType = "error"
)

// ToolCall is the parsed shape of a tool-call chunk.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// Chunk is one element of a Provider's streamed output. Exactly one of its
// payload fields is populated, selected by Type.
type Chunk struct {
	Type     ChunkType
	Text     string
	ToolCall *ToolCall
	Status   string
	Err      error
}

// Options carries the per-call generation parameters the router forwards to
// a Provider. Fields a given adapter doesn't support are silently dropped by
// the router, never passed through (spec §4.2).
type Options struct {
	Model        string
	MaxTokens    int
	Temperature  float32
	SystemPrompt string
	Tools        []ToolDefinition
}

// ToolDefinition describes one tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Result is the non-streaming Generate response.
type Result struct {
	Content   string
	ToolCalls []ToolCall
	Usage     core.TokenUsage
	Model     string
}

// Provider is the capability the router and resilience layers depend on.
// Implementations are stateless from the core's perspective; any internal
// HTTP/SDK client is opaque.
type Provider interface {
	// Name identifies this provider in router status snapshots and logs.
	Name() string

	// IsAvailable is a fast credential/config presence check; it performs
	// no network I/O.
	IsAvailable() bool

	// SupportsTools reports whether this adapter accepts Options.Tools.
	// The router checks this before forwarding tool definitions.
	SupportsTools() bool

	// StreamChat returns a single-consumer channel of Chunks. The channel is
	// closed when the stream ends, whether by completion, error, or context
	// cancellation. If the consumer stops reading (or ctx is cancelled) the
	// adapter must release network resources promptly — implementations
	// achieve this by selecting on ctx.Done() around every channel send.
	StreamChat(ctx context.Context, messages []core.Message, opts Options) (<-chan Chunk, error)

	// Generate is the complete, non-streaming variant.
	Generate(ctx context.Context, messages []core.Message, opts Options) (*Result, error)
}
