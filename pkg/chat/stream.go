package chat

import "context"

// Chunk is one incremental fragment of a streamed response. Chunks for a
// single response arrive in FIFO order and merge into a full message via
// the aggregator's combine operation.
type Chunk struct {
	// Role is set on the first chunk of a response and empty afterwards.
	Role Role `json:"role,omitempty"`

	// Text is the text delta carried by this chunk, if any. TextIndex is
	// the content block index it belongs to, so aggregation can keep
	// provider block order when text and tool-use blocks interleave.
	Text      string `json:"text,omitempty"`
	TextIndex int    `json:"text_index,omitempty"`

	// ToolCalls are partial tool invocations. A tool call opens with a
	// delta carrying ID and Name, then grows through ArgumentsDelta
	// fragments at the same index.
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`

	// StopReason is set on the final chunk of a response.
	StopReason string `json:"stop_reason,omitempty"`

	// Usage is set on the final metadata chunk, when the provider reports it.
	Usage *Usage `json:"usage,omitempty"`
}

// ToolCallDelta is a partial tool invocation inside a streamed chunk.
// Index ties fragments of the same call together across chunks.
type ToolCallDelta struct {
	Index          int    `json:"index"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	ArgumentsDelta string `json:"arguments_delta,omitempty"`
}

// Empty reports whether the chunk carries no data at all.
func (c Chunk) Empty() bool {
	return c.Role == "" && c.Text == "" && len(c.ToolCalls) == 0 &&
		c.StopReason == "" && c.Usage == nil
}

// ChunkStream is a finite, ordered, non-restartable sequence of chunks for
// one response. Recv returns io.EOF after the final chunk. Close releases
// the underlying transport resources and is safe to call on every exit
// path, including early abandonment.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}

// Transport executes translated payloads against the hosted service. It is
// the opaque outbound boundary: implementations own wire encoding beyond
// the Payload shape, authentication, and connection lifecycle.
type Transport interface {
	// Converse executes a blocking call and returns the full response.
	Converse(ctx context.Context, p *Payload) (*ProviderResponse, error)

	// ConverseStream executes a streaming call. The returned stream must be
	// closed by the caller.
	ConverseStream(ctx context.Context, p *Payload) (ChunkStream, error)
}
