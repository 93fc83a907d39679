package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/converse/pkg/chat"
)

// DecodeStructured parses a response message against a caller schema into
// out. Structured output is a forced single-tool call, so the arguments of
// the call named after the schema are decoded; when no such call exists
// (prompt-based fallback on families without forced tool use) the message
// text is decoded instead. Decode failures return a *chat.OutputParserError
// carrying the raw text, never a transport error: the call itself
// succeeded, the model responded badly.
func DecodeStructured(msg chat.Message, schema chat.ToolSpec, out any) error {
	raw := rawStructured(msg, schema)
	if strings.TrimSpace(raw) == "" {
		return &chat.OutputParserError{Raw: raw, Err: fmt.Errorf("response contains no %q tool call and no text", schema.Name)}
	}
	if err := decodeStrict(raw, out); err != nil {
		return &chat.OutputParserError{Raw: raw, Err: err}
	}
	return nil
}

// DecodePartial attempts to decode a mid-stream snapshot. Incomplete JSON is
// completed by closing open strings, objects, and arrays before decoding, so
// callers can observe partial structured results while chunks are still
// arriving. Returns false when the snapshot is not yet decodable.
func DecodePartial(msg chat.Message, schema chat.ToolSpec, out any) bool {
	raw := strings.TrimSpace(rawStructured(msg, schema))
	if raw == "" {
		return false
	}
	if decodeStrict(raw, out) == nil {
		return true
	}
	repaired, ok := completeJSON(raw)
	if !ok {
		return false
	}
	return decodeStrict(repaired, out) == nil
}

// rawStructured extracts the text to decode: the matching tool call's
// arguments if present, otherwise the message text.
func rawStructured(msg chat.Message, schema chat.ToolSpec) string {
	for _, call := range msg.ToolCalls() {
		if call.Name == schema.Name {
			return string(call.Arguments)
		}
	}
	return msg.Text()
}

// decodeStrict unmarshals into out without coercing types: a string where
// the target expects a number is rejected, surfacing provider quirks
// instead of masking them.
func decodeStrict(raw string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	return dec.Decode(out)
}

// completeJSON closes an unterminated JSON prefix: an open string gets its
// closing quote, open objects and arrays get their closing delimiters.
// Returns false for input that cannot be a JSON prefix.
func completeJSON(raw string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}

	var b strings.Builder
	b.WriteString(raw)
	if escaped {
		// Trailing lone backslash cannot be completed meaningfully.
		return "", false
	}
	if inString {
		b.WriteByte('"')
	}
	// Drop a dangling key or comma so the closers produce valid JSON.
	s := strings.TrimRight(b.String(), " \t\n,")
	if strings.HasSuffix(s, ":") {
		s = s + "null"
	}
	b.Reset()
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}
