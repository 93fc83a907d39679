// Package bedrockhttp implements chat.Transport over the Converse-shaped
// REST API using bearer-token authentication. Streaming responses are
// consumed as Server-Sent Events.
package bedrockhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/converse/pkg/chat"
)

// Config holds transport configuration.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout applies to blocking calls. Streaming calls are bounded by the
	// caller's context instead.
	Timeout time.Duration

	// Retry overrides the default retry policy when set.
	Retry *RetryPolicy
}

// Client is an HTTP transport for Converse-compatible endpoints.
type Client struct {
	config     Config
	httpClient *http.Client
	streaming  *http.Client
	retry      *RetryPolicy
}

// New creates a transport with the given configuration.
func New(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	retry := config.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		streaming:  &http.Client{},
		retry:      retry,
	}
}

// Converse executes a blocking call, retrying throttled attempts per the
// retry policy.
func (c *Client) Converse(ctx context.Context, p *chat.Payload) (*chat.ProviderResponse, error) {
	var out *chat.ProviderResponse
	err := c.retry.Execute(ctx, func() error {
		resp, err := c.converseOnce(ctx, p)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	return out, err
}

func (c *Client) converseOnce(ctx context.Context, p *chat.Payload) (*chat.ProviderResponse, error) {
	respBody, err := c.post(ctx, c.httpClient, p, "converse", "application/json")
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	data, err := io.ReadAll(respBody)
	if err != nil {
		return nil, &chat.TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	var out chat.ProviderResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &chat.TransportError{Err: fmt.Errorf("parse response: %w", err)}
	}
	return &out, nil
}

// ConverseStream executes a streaming call. The returned stream owns the
// response body; Close releases it.
func (c *Client) ConverseStream(ctx context.Context, p *chat.Payload) (chat.ChunkStream, error) {
	respBody, err := c.post(ctx, c.streaming, p, "converse-stream", "text/event-stream")
	if err != nil {
		return nil, err
	}
	return newSSEStream(respBody), nil
}

// post sends the payload to {base}/model/{modelID}/{action} and returns the
// response body on success. Failures are reported as *chat.TransportError.
func (c *Client) post(ctx context.Context, hc *http.Client, p *chat.Payload, action, accept string) (io.ReadCloser, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	u := fmt.Sprintf("%s/model/%s/%s", c.config.BaseURL, url.PathEscape(p.ModelID), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &chat.TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &chat.TransportError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp.Body, nil
}
