package chat

import "encoding/json"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversational turn. Content is an ordered
// list of blocks; most messages carry a single text block.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one element of a message's content. Exactly one of the
// pointer fields is set for non-text blocks; Text is used when Type is
// BlockText.
type ContentBlock struct {
	Type       BlockType        `json:"type"`
	Text       string           `json:"text,omitempty"`
	Image      *ImageBlock      `json:"image,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

// BlockType discriminates the variants of ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ImageBlock carries inline image data.
type ImageBlock struct {
	Format string `json:"format"` // png, jpeg, gif, webp
	Data   []byte `json:"data"`
}

// ToolUseBlock records a tool invocation emitted by the model inside an
// assistant message.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultBlock carries the caller's result for a prior tool invocation
// back to the model.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// UserMessage builds a single-text-block user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// SystemMessage builds a single-text-block system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// AssistantMessage builds a single-text-block assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolResultMessage builds a user message carrying a tool result, which is
// how Converse-shaped APIs expect tool continuations.
func ToolResultMessage(toolUseID, content string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{
		Type:       BlockToolResult,
		ToolResult: &ToolResultBlock{ToolUseID: toolUseID, Content: content},
	}}}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolCalls extracts the tool invocations from the message's content blocks.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range m.Content {
		if b.Type == BlockToolUse && b.ToolUse != nil {
			calls = append(calls, ToolCall{
				ID:        b.ToolUse.ID,
				Name:      b.ToolUse.Name,
				Arguments: b.ToolUse.Input,
			})
		}
	}
	return calls
}

// ToolSpec describes a tool the model may invoke. Name must be unique
// within a single request. InputSchema is a JSON Schema object.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoiceMode controls whether and which tool the model must invoke.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoiceMode = "auto"
	// ToolChoiceAny forces the model to call some tool.
	ToolChoiceAny ToolChoiceMode = "any"
	// ToolChoiceTool forces the model to call the named tool.
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice is a caller directive for tool invocation. Name is only
// meaningful when Mode is ToolChoiceTool.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"`
}

// ToolCall is a tool invocation requested by the model, extracted from an
// assistant message. Arguments are passed through exactly as the provider
// returned them; no type coercion is applied here.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the normalized result of a completed model call.
type Response struct {
	Message    Message   `json:"message"`
	StopReason string    `json:"stop_reason,omitempty"`
	Usage      Usage     `json:"usage"`
	Warnings   []Warning `json:"warnings,omitempty"`
}

// InferenceConfig holds common sampling parameters shared by all model
// families.
type InferenceConfig struct {
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}
