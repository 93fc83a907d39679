package client

import (
	"golang.org/x/sync/semaphore"

	"github.com/user/converse/internal/capability"
	"github.com/user/converse/pkg/chat"
)

// Option configures a Client at construction time.
type Option func(*Client, *capability.Registry)

// WithInference sets default sampling parameters for every request.
func WithInference(inf chat.InferenceConfig) Option {
	return func(c *Client, _ *capability.Registry) { c.inference = inf }
}

// WithAdditionalFields sets provider-specific request fields passed through
// untouched on every request, e.g. an extended-thinking configuration.
func WithAdditionalFields(fields map[string]any) Option {
	return func(c *Client, _ *capability.Registry) { c.additionalFields = fields }
}

// WithGuardrail sets an opaque guardrail configuration forwarded with every
// request.
func WithGuardrail(cfg map[string]any) Option {
	return func(c *Client, _ *capability.Registry) { c.guardrail = cfg }
}

// WithMaxConcurrent caps the number of in-flight requests across the client.
// Zero or negative means unlimited.
func WithMaxConcurrent(n int64) Option {
	return func(c *Client, _ *capability.Registry) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithWarningHandler registers a callback invoked once per translation
// warning, in addition to the warnings attached to each response.
func WithWarningHandler(fn func(chat.Warning)) Option {
	return func(c *Client, _ *capability.Registry) { c.warnFn = fn }
}

// WithCapabilityProfile registers a custom capability profile, overriding
// the built-in one for its family.
func WithCapabilityProfile(p chat.CapabilityProfile) Option {
	return func(_ *Client, r *capability.Registry) { r.Register(p) }
}

// RequestOptions collects the per-request settings a caller may adjust.
// Callers can write their own RequestOption functions against it.
type RequestOptions struct {
	// Tools the model may invoke. Names must be unique within the request.
	Tools []chat.ToolSpec

	// ToolChoice directs whether/which tool the model must invoke. It is
	// dropped with a warning when the model family does not support it.
	ToolChoice *chat.ToolChoice

	// AdditionalFields overrides the client's pass-through provider fields
	// for this request when non-nil.
	AdditionalFields map[string]any

	// Inference overrides the client's sampling parameters for this request
	// when non-nil.
	Inference *chat.InferenceConfig
}

// RequestOption configures a single request.
type RequestOption func(*RequestOptions)

// WithTools supplies the tools the model may invoke.
func WithTools(tools ...chat.ToolSpec) RequestOption {
	return func(o *RequestOptions) { o.Tools = tools }
}

// WithToolChoice directs whether/which tool the model must invoke.
func WithToolChoice(tc chat.ToolChoice) RequestOption {
	return func(o *RequestOptions) { o.ToolChoice = &tc }
}

// WithRequestFields overrides the pass-through provider fields for one
// request.
func WithRequestFields(fields map[string]any) RequestOption {
	return func(o *RequestOptions) { o.AdditionalFields = fields }
}

// WithRequestInference overrides sampling parameters for one request.
func WithRequestInference(inf chat.InferenceConfig) RequestOption {
	return func(o *RequestOptions) { o.Inference = &inf }
}
