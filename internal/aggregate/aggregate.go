package aggregate

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/user/converse/pkg/chat"
)

// ErrNoChunks is returned by Finalize when the stream ended (or was
// abandoned) before any chunk arrived; no result exists in that case.
var ErrNoChunks = errors.New("stream produced no chunks")

// ErrFinalized is returned when chunks are added after finalization.
var ErrFinalized = errors.New("accumulator already finalized")

// State tracks the accumulator's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateFinalized
)

// Accumulator folds an ordered chunk sequence into a response. It moves
// Idle -> Accumulating on the first chunk and Accumulating -> Finalized on
// Finalize; there is no transition back. An abandoned accumulator is simply
// discarded.
type Accumulator struct {
	state State
	acc   chat.Chunk
	count int
}

// Add folds the next chunk into the accumulator.
func (a *Accumulator) Add(c chat.Chunk) error {
	if a.state == StateFinalized {
		return ErrFinalized
	}
	if a.state == StateIdle {
		a.state = StateAccumulating
		a.acc = c
	} else {
		a.acc = Combine(a.acc, c)
	}
	a.count++
	return nil
}

// Count returns the number of chunks folded so far.
func (a *Accumulator) Count() int { return a.count }

// State returns the accumulator's lifecycle state.
func (a *Accumulator) State() State { return a.state }

// Merged returns the current combined chunk without finalizing, for
// mid-stream partial results.
func (a *Accumulator) Merged() chat.Chunk { return a.acc }

// Snapshot materializes the current partial state as a response without
// finalizing. The accumulator keeps accepting chunks afterwards.
func (a *Accumulator) Snapshot() *chat.Response {
	return chunkToResponse(a.acc)
}

// Finalize seals the accumulator and converts the combined chunk into a
// normalized response equivalent to a non-streaming call.
func (a *Accumulator) Finalize() (*chat.Response, error) {
	if a.state == StateFinalized {
		return nil, ErrFinalized
	}
	if a.state == StateIdle {
		return nil, ErrNoChunks
	}
	a.state = StateFinalized
	return chunkToResponse(a.acc), nil
}

// chunkToResponse materializes a fully merged chunk as a response message.
// Blocks are ordered by their provider content block index so a streamed
// message matches the block order of its non-streamed equivalent.
func chunkToResponse(c chat.Chunk) *chat.Response {
	role := c.Role
	if role == "" {
		role = chat.RoleAssistant
	}
	type indexed struct {
		idx   int
		block chat.ContentBlock
	}
	var blocks []indexed
	if c.Text != "" {
		blocks = append(blocks, indexed{
			idx:   c.TextIndex,
			block: chat.ContentBlock{Type: chat.BlockText, Text: c.Text},
		})
	}
	for _, d := range c.ToolCalls {
		input := d.ArgumentsDelta
		if input == "" {
			input = "{}"
		}
		blocks = append(blocks, indexed{
			idx: d.Index,
			block: chat.ContentBlock{
				Type: chat.BlockToolUse,
				ToolUse: &chat.ToolUseBlock{
					ID:    d.ID,
					Name:  d.Name,
					Input: json.RawMessage(input),
				},
			},
		})
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].idx < blocks[j].idx })
	msg := chat.Message{Role: role}
	for _, b := range blocks {
		msg.Content = append(msg.Content, b.block)
	}
	resp := &chat.Response{Message: msg, StopReason: c.StopReason}
	if c.Usage != nil {
		resp.Usage = *c.Usage
	}
	return resp
}

// Finalize normalizes a non-streaming provider response. Tool-call argument
// values pass through exactly as returned; any mismatch against a caller
// schema is left to structured-output decoding.
func Finalize(raw *chat.ProviderResponse) *chat.Response {
	msg := chat.Message{Role: chat.Role(raw.Output.Message.Role)}
	if msg.Role == "" {
		msg.Role = chat.RoleAssistant
	}
	for _, b := range raw.Output.Message.Content {
		switch {
		case b.ToolUse != nil:
			msg.Content = append(msg.Content, chat.ContentBlock{
				Type: chat.BlockToolUse,
				ToolUse: &chat.ToolUseBlock{
					ID:    b.ToolUse.ToolUseID,
					Name:  b.ToolUse.Name,
					Input: b.ToolUse.Input,
				},
			})
		case b.Image != nil:
			msg.Content = append(msg.Content, chat.ContentBlock{
				Type:  chat.BlockImage,
				Image: &chat.ImageBlock{Format: b.Image.Format, Data: b.Image.Source.Bytes},
			})
		default:
			msg.Content = append(msg.Content, chat.ContentBlock{Type: chat.BlockText, Text: b.Text})
		}
	}
	return &chat.Response{
		Message:    msg,
		StopReason: raw.StopReason,
		Usage: chat.Usage{
			InputTokens:  raw.Usage.InputTokens,
			OutputTokens: raw.Usage.OutputTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		},
	}
}
