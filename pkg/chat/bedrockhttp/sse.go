package bedrockhttp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/user/converse/pkg/chat"
)

// streamEvent is one wire event of a streamed response.
type streamEvent struct {
	Role              string       `json:"role,omitempty"`
	ContentBlockIndex int          `json:"contentBlockIndex,omitempty"`
	Start             *blockStart  `json:"start,omitempty"`
	Delta             *blockDelta  `json:"delta,omitempty"`
	StopReason        string       `json:"stopReason,omitempty"`
	Usage             *streamUsage `json:"usage,omitempty"`
}

type blockStart struct {
	ToolUse *struct {
		ToolUseID string `json:"toolUseId"`
		Name      string `json:"name"`
	} `json:"toolUse,omitempty"`
}

type blockDelta struct {
	Text    string `json:"text,omitempty"`
	ToolUse *struct {
		Input string `json:"input"`
	} `json:"toolUse,omitempty"`
}

type streamUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// sseStream adapts a Server-Sent Events body to chat.ChunkStream.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

// Recv reads the next event and maps it to a chunk. It returns io.EOF after
// the final event.
func (s *sseStream) Recv() (chat.Chunk, error) {
	for {
		event, data, err := s.nextEvent()
		if err != nil {
			return chat.Chunk{}, err
		}
		chunk, ok, err := mapEvent(event, data)
		if err != nil {
			return chat.Chunk{}, err
		}
		if ok {
			return chunk, nil
		}
	}
}

// Close releases the underlying response body. Safe to call more than once.
func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// nextEvent scans one SSE event (event: name, data: payload, blank line).
func (s *sseStream) nextEvent() (string, string, error) {
	var eventName string
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if dataBuf.Len() == 0 {
				eventName = ""
				continue
			}
			return eventName, dataBuf.String(), nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(line[6:])
			continue
		}
		if strings.HasPrefix(line, "data:") {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimSpace(line[5:]))
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", "", &chat.TransportError{Err: err}
	}
	if dataBuf.Len() > 0 {
		return eventName, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// mapEvent converts a wire event into a chunk. Events that carry no chunk
// data (contentBlockStop) report ok=false.
func mapEvent(name, data string) (chat.Chunk, bool, error) {
	var ev streamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return chat.Chunk{}, false, &chat.TransportError{Err: fmt.Errorf("parse stream event %q: %w", name, err)}
	}

	switch name {
	case "messageStart":
		return chat.Chunk{Role: chat.Role(ev.Role)}, true, nil
	case "contentBlockStart":
		if ev.Start != nil && ev.Start.ToolUse != nil {
			return chat.Chunk{ToolCalls: []chat.ToolCallDelta{{
				Index: ev.ContentBlockIndex,
				ID:    ev.Start.ToolUse.ToolUseID,
				Name:  ev.Start.ToolUse.Name,
			}}}, true, nil
		}
		return chat.Chunk{}, false, nil
	case "contentBlockDelta":
		if ev.Delta == nil {
			return chat.Chunk{}, false, nil
		}
		if ev.Delta.ToolUse != nil {
			return chat.Chunk{ToolCalls: []chat.ToolCallDelta{{
				Index:          ev.ContentBlockIndex,
				ArgumentsDelta: ev.Delta.ToolUse.Input,
			}}}, true, nil
		}
		return chat.Chunk{Text: ev.Delta.Text, TextIndex: ev.ContentBlockIndex}, true, nil
	case "messageStop":
		return chat.Chunk{StopReason: ev.StopReason}, true, nil
	case "metadata":
		if ev.Usage == nil {
			return chat.Chunk{}, false, nil
		}
		return chat.Chunk{Usage: &chat.Usage{
			InputTokens:  ev.Usage.InputTokens,
			OutputTokens: ev.Usage.OutputTokens,
			TotalTokens:  ev.Usage.TotalTokens,
		}}, true, nil
	default:
		// contentBlockStop and unknown event types carry nothing we need.
		return chat.Chunk{}, false, nil
	}
}
