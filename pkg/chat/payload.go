package chat

import "encoding/json"

// Payload is the provider wire request for Converse-shaped APIs. It is
// produced by the translator and handed to a Transport untouched.
type Payload struct {
	ModelID                      string           `json:"modelId"`
	Messages                     []PayloadMessage `json:"messages"`
	System                       []SystemBlock    `json:"system,omitempty"`
	InferenceConfig              *WireInference   `json:"inferenceConfig,omitempty"`
	ToolConfig                   *ToolConfig      `json:"toolConfig,omitempty"`
	AdditionalModelRequestFields map[string]any   `json:"additionalModelRequestFields,omitempty"`
	GuardrailConfig              map[string]any   `json:"guardrailConfig,omitempty"`
}

// PayloadMessage is a conversation turn in provider wire form. System
// messages never appear here; they are lifted into Payload.System.
type PayloadMessage struct {
	Role    string      `json:"role"`
	Content []WireBlock `json:"content"`
}

// SystemBlock is a system prompt fragment.
type SystemBlock struct {
	Text string `json:"text"`
}

// WireBlock is a content block in provider wire form. Exactly one field is
// set.
type WireBlock struct {
	Text       string          `json:"text,omitempty"`
	Image      *WireImage      `json:"image,omitempty"`
	ToolUse    *WireToolUse    `json:"toolUse,omitempty"`
	ToolResult *WireToolResult `json:"toolResult,omitempty"`
}

// WireImage is an inline image block.
type WireImage struct {
	Format string          `json:"format"`
	Source WireImageSource `json:"source"`
}

// WireImageSource carries raw image bytes (base64 on the wire).
type WireImageSource struct {
	Bytes []byte `json:"bytes"`
}

// WireToolUse is a model-emitted tool invocation in wire form.
type WireToolUse struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

// WireToolResult is a caller-supplied tool result in wire form.
type WireToolResult struct {
	ToolUseID string      `json:"toolUseId"`
	Content   []WireBlock `json:"content"`
	Status    string      `json:"status,omitempty"`
}

// WireInference mirrors the provider's inferenceConfig object.
type WireInference struct {
	MaxTokens     int      `json:"maxTokens,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopP          *float32 `json:"topP,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

// ToolConfig mirrors the provider's toolConfig object.
type ToolConfig struct {
	Tools      []ToolEntry     `json:"tools"`
	ToolChoice *WireToolChoice `json:"toolChoice,omitempty"`
}

// ToolEntry wraps a tool spec the way the wire format nests it.
type ToolEntry struct {
	ToolSpec WireToolSpec `json:"toolSpec"`
}

// WireToolSpec is a tool definition in wire form.
type WireToolSpec struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	InputSchema WireSchema `json:"inputSchema"`
}

// WireSchema nests the JSON Schema under a "json" key per the wire format.
type WireSchema struct {
	JSON json.RawMessage `json:"json"`
}

// WireToolChoice is the wire tool-choice variant: exactly one of Auto, Any,
// or Tool is non-nil.
type WireToolChoice struct {
	Auto *struct{}     `json:"auto,omitempty"`
	Any  *struct{}     `json:"any,omitempty"`
	Tool *WireToolName `json:"tool,omitempty"`
}

// WireToolName names the forced tool for WireToolChoice.Tool.
type WireToolName struct {
	Name string `json:"name"`
}

// ProviderResponse is the provider wire response for a non-streaming call.
type ProviderResponse struct {
	Output     ProviderOutput `json:"output"`
	StopReason string         `json:"stopReason"`
	Usage      ProviderUsage  `json:"usage"`
}

// ProviderOutput wraps the response message the way the wire format nests it.
type ProviderOutput struct {
	Message PayloadMessage `json:"message"`
}

// ProviderUsage is the provider wire token-usage object.
type ProviderUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}
