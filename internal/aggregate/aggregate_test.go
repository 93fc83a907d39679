package aggregate

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/require"

	"github.com/user/converse/pkg/chat"
)

func textChunks() []chat.Chunk {
	return []chat.Chunk{
		{Role: chat.RoleAssistant},
		{Text: "A pound of bricks "},
		{Text: "and a pound of feathers "},
		{Text: "weigh the same."},
		{StopReason: "end_turn", Usage: &chat.Usage{InputTokens: 20, OutputTokens: 12, TotalTokens: 32}},
	}
}

func TestCombineAssociative(t *testing.T) {
	chunks := textChunks()

	left := Combine(Combine(chunks[1], chunks[2]), chunks[3])
	right := Combine(chunks[1], Combine(chunks[2], chunks[3]))
	require.Equal(t, left, right, "combine must be associative")
}

func TestCombineMergesToolCallsByIndex(t *testing.T) {
	a := chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call-1", Name: "classify_query"}}}
	b := chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: `{"query_`}}}
	c := chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: `type": "cat"}`}}}

	merged := Combine(Combine(a, b), c)
	require.Len(t, merged.ToolCalls, 1)
	require.Equal(t, "call-1", merged.ToolCalls[0].ID)
	require.Equal(t, "classify_query", merged.ToolCalls[0].Name)
	require.JSONEq(t, `{"query_type": "cat"}`, merged.ToolCalls[0].ArgumentsDelta)
}

func TestCombineKeepsSeparateIndexes(t *testing.T) {
	a := chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "c0", Name: "first", ArgumentsDelta: `{}`}}}
	b := chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 1, ID: "c1", Name: "second", ArgumentsDelta: `{}`}}}

	merged := Combine(a, b)
	require.Len(t, merged.ToolCalls, 2)
}

func TestStreamingNonStreamingEquivalence(t *testing.T) {
	// Folding the chunk sequence must produce the same message as
	// finalizing the equivalent non-streamed response.
	acc := &Accumulator{}
	for _, c := range textChunks() {
		require.NoError(t, acc.Add(c))
	}
	streamed, err := acc.Finalize()
	require.NoError(t, err)

	raw := &chat.ProviderResponse{
		Output: chat.ProviderOutput{Message: chat.PayloadMessage{
			Role:    "assistant",
			Content: []chat.WireBlock{{Text: "A pound of bricks and a pound of feathers weigh the same."}},
		}},
		StopReason: "end_turn",
		Usage:      chat.ProviderUsage{InputTokens: 20, OutputTokens: 12, TotalTokens: 32},
	}
	direct := Finalize(raw)

	if streamed.Message.Text() != direct.Message.Text() {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(direct.Message.Text(), streamed.Message.Text(), false)
		t.Fatalf("streamed text diverges from non-streamed:\n%s", dmp.DiffPrettyText(diffs))
	}
	require.Equal(t, direct.Message, streamed.Message)
	require.Equal(t, direct.StopReason, streamed.StopReason)
	require.Equal(t, direct.Usage, streamed.Usage)
}

func TestStreamingToolCallEquivalence(t *testing.T) {
	args := `{"query_type": "cat"}`
	acc := &Accumulator{}
	chunks := []chat.Chunk{
		{Role: chat.RoleAssistant},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call-1", Name: "classify_query"}}},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: args[:9]}}},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: args[9:]}}},
		{StopReason: "tool_use"},
	}
	for _, c := range chunks {
		require.NoError(t, acc.Add(c))
	}
	streamed, err := acc.Finalize()
	require.NoError(t, err)

	direct := Finalize(&chat.ProviderResponse{
		Output: chat.ProviderOutput{Message: chat.PayloadMessage{
			Role: "assistant",
			Content: []chat.WireBlock{{ToolUse: &chat.WireToolUse{
				ToolUseID: "call-1", Name: "classify_query", Input: json.RawMessage(args),
			}}},
		}},
		StopReason: "tool_use",
	})

	require.True(t, reflect.DeepEqual(direct.Message.ToolCalls(), streamed.Message.ToolCalls()),
		"tool calls: direct %+v streamed %+v", direct.Message.ToolCalls(), streamed.Message.ToolCalls())
}

func TestStreamingPreservesBlockOrder(t *testing.T) {
	// A tool-use block at index 0 followed by a text block at index 1 must
	// materialize in that order, matching the non-streamed response.
	args := `{"query_type": "cat"}`
	acc := &Accumulator{}
	chunks := []chat.Chunk{
		{Role: chat.RoleAssistant},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call-1", Name: "classify_query"}}},
		{ToolCalls: []chat.ToolCallDelta{{Index: 0, ArgumentsDelta: args}}},
		{Text: "Classified as a cat question.", TextIndex: 1},
		{StopReason: "tool_use"},
	}
	for _, c := range chunks {
		require.NoError(t, acc.Add(c))
	}
	streamed, err := acc.Finalize()
	require.NoError(t, err)

	direct := Finalize(&chat.ProviderResponse{
		Output: chat.ProviderOutput{Message: chat.PayloadMessage{
			Role: "assistant",
			Content: []chat.WireBlock{
				{ToolUse: &chat.WireToolUse{
					ToolUseID: "call-1", Name: "classify_query", Input: json.RawMessage(args),
				}},
				{Text: "Classified as a cat question."},
			},
		}},
		StopReason: "tool_use",
	})

	require.Len(t, streamed.Message.Content, 2)
	require.Equal(t, chat.BlockToolUse, streamed.Message.Content[0].Type)
	require.Equal(t, chat.BlockText, streamed.Message.Content[1].Type)
	require.Equal(t, direct.Message, streamed.Message)
}

func TestAccumulatorStateMachine(t *testing.T) {
	acc := &Accumulator{}
	require.Equal(t, StateIdle, acc.State())

	require.NoError(t, acc.Add(chat.Chunk{Text: "hello"}))
	require.Equal(t, StateAccumulating, acc.State())
	require.Equal(t, 1, acc.Count())

	resp, err := acc.Finalize()
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Message.Text())
	require.Equal(t, StateFinalized, acc.State())

	// No transition back from Finalized.
	require.ErrorIs(t, acc.Add(chat.Chunk{Text: "more"}), ErrFinalized)
	_, err = acc.Finalize()
	require.ErrorIs(t, err, ErrFinalized)
}

func TestFinalizeEmptyStream(t *testing.T) {
	acc := &Accumulator{}
	_, err := acc.Finalize()
	require.ErrorIs(t, err, ErrNoChunks)
}

func TestFinalizeDefaultsRole(t *testing.T) {
	resp := Finalize(&chat.ProviderResponse{
		Output: chat.ProviderOutput{Message: chat.PayloadMessage{
			Content: []chat.WireBlock{{Text: "hi"}},
		}},
	})
	require.Equal(t, chat.RoleAssistant, resp.Message.Role)
}

func TestFinalizePreservesArgumentTypes(t *testing.T) {
	// Provider-returned argument values pass through byte-for-byte; a
	// string-typed integer is NOT numified.
	raw := &chat.ProviderResponse{
		Output: chat.ProviderOutput{Message: chat.PayloadMessage{
			Role: "assistant",
			Content: []chat.WireBlock{{ToolUse: &chat.WireToolUse{
				ToolUseID: "call-1", Name: "my_adder_tool", Input: json.RawMessage(`{"a": "2", "b": 3}`),
			}}},
		}},
	}
	resp := Finalize(raw)
	calls := resp.Message.ToolCalls()
	require.Len(t, calls, 1)
	require.Equal(t, `{"a": "2", "b": 3}`, string(calls[0].Arguments))
}
