package aggregate

import "github.com/user/converse/pkg/chat"

// Combine merges two adjacent stream chunks into one. It is associative and
// order-preserving: folding a chunk sequence left-to-right with Combine
// yields the same value as any other grouping, and a full fold produces a
// chunk equivalent to the non-streamed response.
func Combine(a, b chat.Chunk) chat.Chunk {
	out := chat.Chunk{
		Role:       a.Role,
		Text:       a.Text + b.Text,
		TextIndex:  a.TextIndex,
		StopReason: a.StopReason,
		Usage:      a.Usage,
	}
	if a.Text == "" {
		out.TextIndex = b.TextIndex
	}
	if out.Role == "" {
		out.Role = b.Role
	}
	if b.StopReason != "" {
		out.StopReason = b.StopReason
	}
	if b.Usage != nil {
		out.Usage = b.Usage
	}
	out.ToolCalls = mergeToolCalls(a.ToolCalls, b.ToolCalls)
	return out
}

// mergeToolCalls merges partial tool invocations by index: identity fields
// keep their first non-empty value, argument fragments concatenate.
func mergeToolCalls(a, b []chat.ToolCallDelta) []chat.ToolCallDelta {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]chat.ToolCallDelta, len(a))
	copy(out, a)
	for _, d := range b {
		merged := false
		for i := range out {
			if out[i].Index == d.Index {
				if out[i].ID == "" {
					out[i].ID = d.ID
				}
				if out[i].Name == "" {
					out[i].Name = d.Name
				}
				out[i].ArgumentsDelta += d.ArgumentsDelta
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, d)
		}
	}
	return out
}
