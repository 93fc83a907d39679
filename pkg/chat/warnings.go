package chat

// WarningCode classifies non-fatal advisories emitted during request
// translation. Warnings are surfaced on the Response and through the
// client's warning handler; they are never returned as errors.
type WarningCode string

const (
	// WarnToolChoiceUnsupported is emitted when a tool_choice directive was
	// dropped because the target model family does not support it.
	WarnToolChoiceUnsupported WarningCode = "tool_choice_unsupported"

	// WarnStructuredOutputUnreliable is emitted when structured output
	// cannot be backed by forced tool use, for example when extended
	// thinking is enabled, so decoding may fail more often.
	WarnStructuredOutputUnreliable WarningCode = "structured_output_unreliable"
)

// Warning is a structured non-fatal advisory.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
