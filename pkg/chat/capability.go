package chat

// CapabilityProfile describes what a model family supports. Profiles are
// static configuration: loaded once per family and read-only afterwards, so
// they are safe to share across concurrent requests.
type CapabilityProfile struct {
	// Family is the vendor segment of the model identifier, e.g.
	// "anthropic" or "mistral".
	Family string

	// SupportsToolChoice reports whether the family accepts any toolChoice
	// directive at all.
	SupportsToolChoice bool

	// SupportsForcedToolUse reports whether the family accepts a specific
	// forced tool, which structured output relies on.
	SupportsForcedToolUse bool

	// ToolChoiceModes is the set of accepted tool-choice modes.
	ToolChoiceModes map[ToolChoiceMode]bool

	// MessageOrderingStrict reports that the family rejects a user message
	// directly following an assistant message. Violations are not rejected
	// locally; the provider may reject them at runtime.
	MessageOrderingStrict bool

	// StringlyTypedNumbers documents that the family tends to return
	// numeric tool arguments as strings. This is a known provider
	// limitation, not something the client normalizes away.
	StringlyTypedNumbers bool
}

// SupportsMode reports whether the profile accepts the given tool-choice
// mode.
func (p CapabilityProfile) SupportsMode(mode ToolChoiceMode) bool {
	if !p.SupportsToolChoice {
		return false
	}
	return p.ToolChoiceModes[mode]
}
