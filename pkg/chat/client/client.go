// Package client provides the provider-normalizing chat client: one
// abstraction over several hosted model families with divergent tool-use,
// tool-choice, and message-ordering behavior. Translation and aggregation
// are shared between the blocking and streaming call paths.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/user/converse/internal/aggregate"
	"github.com/user/converse/internal/capability"
	"github.com/user/converse/internal/translate"
	"github.com/user/converse/pkg/chat"
)

// Client issues requests against one model through a Transport, normalizing
// capability differences per the model family's profile. A Client is safe
// for concurrent use; conversations and tool specs are caller-owned and
// never mutated.
type Client struct {
	modelID   string
	transport chat.Transport
	profile   chat.CapabilityProfile
	estimator *translate.Estimator

	inference        chat.InferenceConfig
	additionalFields map[string]any
	guardrail        map[string]any

	sem    *semaphore.Weighted
	warnFn func(chat.Warning)
}

// New creates a client for the given model identifier. An unrecognized
// model family is not fatal: the client logs the lookup error and proceeds
// with a permissive default profile.
func New(modelID string, transport chat.Transport, opts ...Option) (*Client, error) {
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	c := &Client{modelID: modelID, transport: transport}
	registry := capability.NewRegistry()
	for _, opt := range opts {
		opt(c, registry)
	}

	profile, err := registry.Lookup(modelID)
	var unknown *chat.UnknownModelError
	if errors.As(err, &unknown) {
		slog.Warn("unknown model family, using permissive default profile", "model", modelID)
	}
	c.profile = profile

	c.estimator, err = translate.NewEstimator(modelID)
	if err != nil {
		return nil, fmt.Errorf("create token estimator: %w", err)
	}
	return c, nil
}

// ModelID returns the model identifier this client targets.
func (c *Client) ModelID() string { return c.modelID }

// Capabilities returns the resolved capability profile for the target model.
func (c *Client) Capabilities() chat.CapabilityProfile { return c.profile }

// EstimateTokens approximates the input token count of a conversation.
func (c *Client) EstimateTokens(messages []chat.Message) int {
	return c.estimator.EstimateTokens(messages)
}

// prepare translates a request and surfaces its warnings. It fails fast on
// malformed caller input, before any transport call.
func (c *Client) prepare(messages []chat.Message, schema *chat.ToolSpec, opts []RequestOption) (*chat.Payload, []chat.Warning, error) {
	var ro RequestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	req := translate.Request{
		ModelID:          c.modelID,
		Messages:         messages,
		Schema:           schema,
		Tools:            ro.Tools,
		ToolChoice:       ro.ToolChoice,
		Inference:        c.inference,
		AdditionalFields: c.additionalFields,
		Guardrail:        c.guardrail,
	}
	if ro.Inference != nil {
		req.Inference = *ro.Inference
	}
	if ro.AdditionalFields != nil {
		req.AdditionalFields = ro.AdditionalFields
	}

	payload, warnings, err := translate.Translate(req, c.profile)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		slog.Warn("request translation", "model", c.modelID, "code", w.Code, "message", w.Message)
		if c.warnFn != nil {
			c.warnFn(w)
		}
	}
	slog.Debug("translated request",
		"model", c.modelID,
		"messages", len(messages),
		"estimated_input_tokens", c.estimator.EstimateTokens(messages),
	)
	return payload, warnings, nil
}

// acquire takes a concurrency slot when a limit is configured. The returned
// release func is a no-op otherwise.
func (c *Client) acquire(ctx context.Context) (func(), error) {
	if c.sem == nil {
		return func() {}, nil
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { c.sem.Release(1) }, nil
}

// Invoke sends the conversation and blocks for the full response.
func (c *Client) Invoke(ctx context.Context, messages []chat.Message, opts ...RequestOption) (*chat.Response, error) {
	payload, warnings, err := c.prepare(messages, nil, opts)
	if err != nil {
		return nil, err
	}
	return c.converse(ctx, payload, warnings)
}

// InvokeStructured sends the conversation with a forced output schema and
// decodes the result into out. Decode failures return a
// *chat.OutputParserError; transport failures propagate as-is, so the two
// are always distinguishable.
func (c *Client) InvokeStructured(ctx context.Context, messages []chat.Message, schema chat.ToolSpec, out any, opts ...RequestOption) (*chat.Response, error) {
	payload, warnings, err := c.prepare(messages, &schema, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.converse(ctx, payload, warnings)
	if err != nil {
		return nil, err
	}
	if err := aggregate.DecodeStructured(resp.Message, schema, out); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) converse(ctx context.Context, payload *chat.Payload, warnings []chat.Warning) (*chat.Response, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := c.transport.Converse(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp := aggregate.Finalize(raw)
	resp.Warnings = warnings
	return resp, nil
}
