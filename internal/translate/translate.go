package translate

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/user/converse/pkg/chat"
)

// Request is the provider-agnostic input to translation. Everything here is
// caller-constructed and immutable for the duration of the request.
type Request struct {
	ModelID    string
	Messages   []chat.Message
	Tools      []chat.ToolSpec
	ToolChoice *chat.ToolChoice

	// Schema, when set, requests structured output: the response must be a
	// single invocation of a tool shaped like this spec.
	Schema *chat.ToolSpec

	Inference chat.InferenceConfig

	// AdditionalFields are provider-specific request fields passed through
	// untouched, e.g. {"thinking": {"type": "enabled", ...}}.
	AdditionalFields map[string]any

	// Guardrail is an opaque request-level guardrail configuration.
	Guardrail map[string]any
}

// Translate converts a provider-agnostic request into the wire payload for
// the target model, honoring its capability profile. Capability mismatches
// degrade gracefully and are reported as warnings; malformed caller input
// fails fast before any transport call.
func Translate(req Request, profile chat.CapabilityProfile) (*chat.Payload, []chat.Warning, error) {
	if err := validateTools(req); err != nil {
		return nil, nil, err
	}

	p := &chat.Payload{ModelID: req.ModelID}
	var warnings []chat.Warning

	tools := req.Tools
	forced := false
	if req.Schema != nil {
		tools = append(append([]chat.ToolSpec{}, tools...), *req.Schema)
		forced = profile.SupportsForcedToolUse && !thinkingEnabled(req.AdditionalFields)
		if !forced && len(req.AdditionalFields) > 0 {
			warnings = append(warnings, chat.Warning{
				Code: chat.WarnStructuredOutputUnreliable,
				Message: fmt.Sprintf(
					"structured output for %q cannot use forced tool use with the given request fields and may be unreliable",
					req.ModelID),
			})
		}
	}

	if len(tools) > 0 {
		tc := &chat.ToolConfig{Tools: make([]chat.ToolEntry, 0, len(tools))}
		for _, t := range tools {
			tc.Tools = append(tc.Tools, chat.ToolEntry{ToolSpec: chat.WireToolSpec{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: chat.WireSchema{JSON: t.InputSchema},
			}})
		}
		tc.ToolChoice, warnings = resolveToolChoice(req, profile, forced, warnings)
		p.ToolConfig = tc
	}

	p.System, p.Messages = splitMessages(req.Messages)
	if req.Schema != nil && !forced {
		// No hard constraint available; elicit the tool call via prompting
		// instead.
		p.System = append(p.System, chat.SystemBlock{Text: fmt.Sprintf(
			"You must respond only by calling the %q tool with arguments matching its input schema. Do not reply with plain text.",
			req.Schema.Name)})
	}

	if inf := wireInference(req.Inference); inf != nil {
		p.InferenceConfig = inf
	}
	p.AdditionalModelRequestFields = req.AdditionalFields
	p.GuardrailConfig = req.Guardrail

	return p, warnings, nil
}

// validateTools rejects duplicate tool names, including a collision between
// a caller tool and the structured-output schema.
func validateTools(req Request) error {
	seen := make(map[string]int, len(req.Tools)+1)
	var dups []string
	check := func(name string) {
		seen[name]++
		// Report each duplicated name once, however often it repeats.
		if seen[name] == 2 {
			dups = append(dups, name)
		}
	}
	for _, t := range req.Tools {
		check(t.Name)
	}
	if req.Schema != nil {
		check(req.Schema.Name)
	}
	if len(dups) > 0 {
		return &chat.InvalidToolSetError{Duplicates: dups}
	}
	return nil
}

// resolveToolChoice maps the caller directive (or the forced schema tool)
// onto the wire, dropping whatever the profile does not support. Dropping a
// constraint emits exactly one warning.
func resolveToolChoice(req Request, profile chat.CapabilityProfile, forced bool, warnings []chat.Warning) (*chat.WireToolChoice, []chat.Warning) {
	if req.Schema != nil {
		if forced {
			return &chat.WireToolChoice{Tool: &chat.WireToolName{Name: req.Schema.Name}}, warnings
		}
		return nil, warnings
	}
	if req.ToolChoice == nil {
		return nil, warnings
	}

	mode := req.ToolChoice.Mode
	if profile.SupportsMode(mode) {
		switch mode {
		case chat.ToolChoiceAuto:
			return &chat.WireToolChoice{Auto: &struct{}{}}, warnings
		case chat.ToolChoiceAny:
			return &chat.WireToolChoice{Any: &struct{}{}}, warnings
		case chat.ToolChoiceTool:
			return &chat.WireToolChoice{Tool: &chat.WireToolName{Name: req.ToolChoice.Name}}, warnings
		}
	}

	// "auto" is the provider default; dropping it is not worth a warning.
	if mode != chat.ToolChoiceAuto {
		warnings = append(warnings, chat.Warning{
			Code: chat.WarnToolChoiceUnsupported,
			Message: fmt.Sprintf("model family %q does not support tool_choice %q; constraint dropped",
				profile.Family, mode),
		})
	}
	return nil, warnings
}

// splitMessages lifts system messages into the payload's system blocks and
// converts the rest to wire form. Ordering constraint violations (a user
// message directly following an assistant message on strict families) pass
// through untouched; the provider may reject them at runtime.
func splitMessages(messages []chat.Message) ([]chat.SystemBlock, []chat.PayloadMessage) {
	var system []chat.SystemBlock
	var out []chat.PayloadMessage
	for _, m := range messages {
		if m.Role == chat.RoleSystem {
			system = append(system, chat.SystemBlock{Text: m.Text()})
			continue
		}
		out = append(out, chat.PayloadMessage{
			Role:    string(m.Role),
			Content: wireBlocks(m.Content),
		})
	}
	return system, out
}

func wireBlocks(blocks []chat.ContentBlock) []chat.WireBlock {
	out := make([]chat.WireBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case chat.BlockText:
			out = append(out, chat.WireBlock{Text: b.Text})
		case chat.BlockImage:
			if b.Image != nil {
				out = append(out, chat.WireBlock{Image: &chat.WireImage{
					Format: b.Image.Format,
					Source: chat.WireImageSource{Bytes: b.Image.Data},
				}})
			}
		case chat.BlockToolUse:
			if b.ToolUse != nil {
				id := b.ToolUse.ID
				if id == "" {
					id = uuid.New().String()
				}
				out = append(out, chat.WireBlock{ToolUse: &chat.WireToolUse{
					ToolUseID: id,
					Name:      b.ToolUse.Name,
					Input:     b.ToolUse.Input,
				}})
			}
		case chat.BlockToolResult:
			if b.ToolResult != nil {
				status := ""
				if b.ToolResult.IsError {
					status = "error"
				}
				out = append(out, chat.WireBlock{ToolResult: &chat.WireToolResult{
					ToolUseID: b.ToolResult.ToolUseID,
					Content:   []chat.WireBlock{{Text: b.ToolResult.Content}},
					Status:    status,
				}})
			}
		}
	}
	return out
}

func wireInference(inf chat.InferenceConfig) *chat.WireInference {
	if inf.MaxTokens == 0 && inf.Temperature == nil && inf.TopP == nil && inf.StopSequences == nil {
		return nil
	}
	return &chat.WireInference{
		MaxTokens:     inf.MaxTokens,
		Temperature:   inf.Temperature,
		TopP:          inf.TopP,
		StopSequences: inf.StopSequences,
	}
}

// thinkingEnabled reports whether the pass-through fields enable an
// extended-reasoning mode, which is incompatible with forced tool use.
func thinkingEnabled(fields map[string]any) bool {
	t, ok := fields["thinking"]
	if !ok {
		return false
	}
	m, ok := t.(map[string]any)
	if !ok {
		return false
	}
	return m["type"] == "enabled"
}
