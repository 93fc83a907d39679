package capability

import (
	"strings"
	"sync"

	"github.com/user/converse/pkg/chat"
)

// Registry maps model families to capability profiles. Built-in profiles
// cover the hosted service's first-party families; callers may register
// additional ones. Lookups are pure and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]chat.CapabilityProfile
}

// regionPrefixes are inference-routing prefixes that may precede the vendor
// segment in a model identifier, e.g. "us.anthropic.claude-3-...".
var regionPrefixes = map[string]bool{
	"us":     true,
	"eu":     true,
	"apac":   true,
	"global": true,
}

func allModes() map[chat.ToolChoiceMode]bool {
	return map[chat.ToolChoiceMode]bool{
		chat.ToolChoiceAuto: true,
		chat.ToolChoiceAny:  true,
		chat.ToolChoiceTool: true,
	}
}

// NewRegistry creates a registry preloaded with the built-in family
// profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]chat.CapabilityProfile)}

	r.Register(chat.CapabilityProfile{
		Family:                "anthropic",
		SupportsToolChoice:    true,
		SupportsForcedToolUse: true,
		ToolChoiceModes:       allModes(),
	})
	r.Register(chat.CapabilityProfile{
		Family:                "mistral",
		MessageOrderingStrict: true,
	})
	// Amazon's own family accepts toolChoice but not the "any" mode.
	r.Register(chat.CapabilityProfile{
		Family:                "amazon",
		SupportsToolChoice:    true,
		SupportsForcedToolUse: true,
		ToolChoiceModes: map[chat.ToolChoiceMode]bool{
			chat.ToolChoiceAuto: true,
			chat.ToolChoiceTool: true,
		},
		MessageOrderingStrict: true,
	})
	r.Register(chat.CapabilityProfile{
		Family: "cohere",
	})
	// Meta models tend to return string values for integer tool arguments.
	// Documented quirk; arguments pass through untouched.
	r.Register(chat.CapabilityProfile{
		Family:                "meta",
		MessageOrderingStrict: true,
		StringlyTypedNumbers:  true,
	})

	return r
}

// Register adds or replaces the profile for a family.
func (r *Registry) Register(p chat.CapabilityProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Family] = p
}

// Lookup resolves the capability profile for a model identifier. When the
// family is unrecognized it returns a permissive default profile together
// with a *chat.UnknownModelError; callers should log the error and proceed
// with the default, since new model identifiers appear frequently.
func (r *Registry) Lookup(modelID string) (chat.CapabilityProfile, error) {
	family := Family(modelID)

	r.mu.RLock()
	p, ok := r.profiles[family]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}
	return DefaultProfile(family), &chat.UnknownModelError{ModelID: modelID}
}

// Family extracts the vendor segment from a model identifier, skipping
// region routing prefixes. For "us.anthropic.claude-3-sonnet-20240229-v1:0"
// it returns "anthropic".
func Family(modelID string) string {
	parts := strings.Split(modelID, ".")
	for _, part := range parts {
		if regionPrefixes[part] {
			continue
		}
		return part
	}
	return modelID
}

// DefaultProfile is the permissive fallback used for unrecognized families:
// everything is assumed supported, so requests pass through unmodified and
// the provider itself decides what to reject.
func DefaultProfile(family string) chat.CapabilityProfile {
	return chat.CapabilityProfile{
		Family:                family,
		SupportsToolChoice:    true,
		SupportsForcedToolUse: true,
		ToolChoiceModes:       allModes(),
	}
}

// Families returns the registered family names, for display.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.profiles))
	for f := range r.profiles {
		out = append(out, f)
	}
	return out
}

// Get returns the registered profile for a family name, if present.
func (r *Registry) Get(family string) (chat.CapabilityProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[family]
	return p, ok
}
