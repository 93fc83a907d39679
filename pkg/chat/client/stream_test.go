package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/user/converse/internal/aggregate"
	"github.com/user/converse/pkg/chat"
)

func answerChunks() []chat.Chunk {
	full := `{"answer": "they weigh the same", "justification": "a pound is a pound either way"}`
	return []chat.Chunk{
		{Role: chat.RoleAssistant},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call-1", Name: "AnswerWithJustification"}}},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: full[:20]}}},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: full[20:45]}}},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: full[45:]}}},
		{StopReason: "tool_use"},
	}
}

func TestStreamDeliversMultipleChunks(t *testing.T) {
	transport := &mockTransport{
		ConverseStreamFunc: func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
			s := newScriptedStream(nil,
				chat.Chunk{Role: chat.RoleAssistant},
				chat.Chunk{Text: "hello "},
				chat.Chunk{Text: "world"},
				chat.Chunk{StopReason: "end_turn"},
			)
			return s, nil
		},
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	stream, err := c.Stream(context.Background(), []chat.Message{chat.UserMessage("hi")})
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	var text string
	for chunk := range stream.Chunks() {
		count++
		text += chunk.Text
	}
	if count <= 1 {
		t.Errorf("chunk count = %d, want > 1", count)
	}
	if text != "hello world" {
		t.Errorf("text = %q", text)
	}

	final, err := stream.Final()
	if err != nil {
		t.Fatal(err)
	}
	if final.Message.Text() != "hello world" {
		t.Errorf("final text = %q", final.Message.Text())
	}
	if final.StopReason != "end_turn" {
		t.Errorf("stop reason = %q", final.StopReason)
	}
}

func TestStreamEqualsInvoke(t *testing.T) {
	// Streaming and non-streaming paths must produce the same normalized
	// response for equivalent fixtures.
	args := `{"query_type": "cat"}`
	transport := &mockTransport{
		ConverseFunc: func(ctx context.Context, p *chat.Payload) (*chat.ProviderResponse, error) {
			return toolCallResponse("classify_query", args), nil
		},
		ConverseStreamFunc: func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
			return newScriptedStream(nil,
				chat.Chunk{Role: chat.RoleAssistant},
				chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call-1", Name: "classify_query"}}},
				chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: args[:7]}}},
				chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: args[7:]}}},
				chat.Chunk{StopReason: "tool_use"},
			), nil
		},
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	messages := []chat.Message{chat.UserMessage("How big are cats?")}
	invoked, err := c.Invoke(context.Background(), messages)
	if err != nil {
		t.Fatal(err)
	}

	stream, err := c.Stream(context.Background(), messages)
	if err != nil {
		t.Fatal(err)
	}
	for range stream.Chunks() {
	}
	streamed, err := stream.Final()
	if err != nil {
		t.Fatal(err)
	}

	ic := invoked.Message.ToolCalls()
	sc := streamed.Message.ToolCalls()
	if len(ic) != 1 || len(sc) != 1 {
		t.Fatalf("tool calls: invoked %d streamed %d", len(ic), len(sc))
	}
	if ic[0].Name != sc[0].Name || string(ic[0].Arguments) != string(sc[0].Arguments) {
		t.Errorf("invoked %+v != streamed %+v", ic[0], sc[0])
	}
	if invoked.StopReason != streamed.StopReason {
		t.Errorf("stop reasons diverge: %q vs %q", invoked.StopReason, streamed.StopReason)
	}
}

func TestStreamEarlyCloseReleasesTransport(t *testing.T) {
	transport := &mockTransport{}
	transport.ConverseStreamFunc = func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
		s := newScriptedStream(&transport.streamCloses,
			chat.Chunk{Text: "a"}, chat.Chunk{Text: "b"}, chat.Chunk{Text: "c"},
		)
		return s, nil
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	stream, err := c.Stream(context.Background(), []chat.Message{chat.UserMessage("hi")})
	if err != nil {
		t.Fatal(err)
	}

	// Read one chunk, then abandon.
	<-stream.Chunks()
	stream.Close()

	if got := transport.streamCloses.Load(); got != 1 {
		t.Errorf("stream Close calls = %d, want 1", got)
	}

	// Abandonment produces no finalized result.
	final, err := stream.Final()
	if final != nil {
		t.Errorf("final = %+v, want nil after abandonment", final)
	}
	if err == nil {
		t.Error("expected an error marking the abandoned stream")
	}
}

func TestStreamContextCancellation(t *testing.T) {
	transport := &mockTransport{}
	blocked := make(chan struct{})
	transport.ConverseStreamFunc = func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
		s := newScriptedStream(&transport.streamCloses, chat.Chunk{Text: "a"}, chat.Chunk{Text: "b"})
		s.block = blocked
		return s, nil
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.Stream(ctx, []chat.Message{chat.UserMessage("hi")})
	if err != nil {
		t.Fatal(err)
	}

	cancel()
	close(blocked)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream.Chunks():
			if !ok {
				if got := transport.streamCloses.Load(); got != 1 {
					t.Errorf("stream Close calls = %d, want 1", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("stream did not terminate after context cancellation")
		}
	}
}

func TestStreamEmptyStreamYieldsNoResult(t *testing.T) {
	transport := &mockTransport{
		ConverseStreamFunc: func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
			return newScriptedStream(nil), nil
		},
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	stream, err := c.Stream(context.Background(), []chat.Message{chat.UserMessage("hi")})
	if err != nil {
		t.Fatal(err)
	}
	for range stream.Chunks() {
	}
	_, err = stream.Final()
	if !errors.Is(err, aggregate.ErrNoChunks) {
		t.Errorf("err = %v, want ErrNoChunks", err)
	}
}

func TestStreamStructuredPartialResults(t *testing.T) {
	schema := chat.ToolSpec{
		Name:        "AnswerWithJustification",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"answer":{"type":"string"},"justification":{"type":"string"}},"required":["answer","justification"]}`),
	}
	transport := &mockTransport{
		ConverseStreamFunc: func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
			return newScriptedStream(nil, answerChunks()...), nil
		},
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	type answer struct {
		Answer        string `json:"answer"`
		Justification string `json:"justification"`
	}
	ss, err := c.StreamStructured(context.Background(),
		[]chat.Message{chat.UserMessage("bricks or feathers? answer in 20 words")},
		schema,
		func() any { return &answer{} },
	)
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	var last *answer
	for v := range ss.Values() {
		count++
		last = v.(*answer)
	}
	if err := ss.Err(); err != nil {
		t.Fatal(err)
	}
	if count <= 1 {
		t.Errorf("decoded snapshot count = %d, want > 1 for a long answer", count)
	}
	if last == nil || last.Answer == "" || last.Justification == "" {
		t.Errorf("final value = %+v", last)
	}
}

func TestStreamStructuredMalformedFinalOutput(t *testing.T) {
	schema := chat.ToolSpec{Name: "Output", InputSchema: json.RawMessage(`{"type":"object"}`)}
	transport := &mockTransport{
		ConverseStreamFunc: func(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
			return newScriptedStream(nil,
				chat.Chunk{Role: chat.RoleAssistant},
				chat.Chunk{Text: "not json at all"},
				chat.Chunk{StopReason: "end_turn"},
			), nil
		},
	}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport)
	if err != nil {
		t.Fatal(err)
	}

	ss, err := c.StreamStructured(context.Background(),
		[]chat.Message{chat.UserMessage("hi")},
		schema,
		func() any { return &map[string]any{} },
	)
	if err != nil {
		t.Fatal(err)
	}
	for range ss.Values() {
	}

	var parseErr *chat.OutputParserError
	if !errors.As(ss.Err(), &parseErr) {
		t.Fatalf("expected *chat.OutputParserError, got %v", ss.Err())
	}
}

func TestConcurrentRequestsShareClient(t *testing.T) {
	transport := &mockTransport{}
	c, err := New("anthropic.claude-3-sonnet-20240229-v1:0", transport, WithMaxConcurrent(2))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := c.Invoke(context.Background(), []chat.Message{chat.UserMessage("hi")})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Error(err)
		}
	}
	if got := transport.calls.Load(); got != 8 {
		t.Errorf("transport calls = %d, want 8", got)
	}
	if p := transport.last(); p == nil || p.ModelID != c.ModelID() {
		t.Errorf("recorded payload = %+v", p)
	}
}
