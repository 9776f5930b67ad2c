// ABOUTME: HTTP client for the single chat-completion backend consumed by the dialogue engine.
// ABOUTME: Wraps /api/chat, /api/tags (liveness + catalog), and /api/generate (warm ping) with retry.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// Client talks to a single Ollama-style chat-completion backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying *http.Client (e.g. for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.Retry = p }
}

// NewClient creates a Client bound to baseURL, e.g. "http://localhost:11434".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 600 * time.Second},
		Retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a non-streaming chat request, retrying transient failures
// per c.Retry. Deadline and retry semantics are documented in the generation
// loop's turn-retry contract; this layer handles only the HTTP-level retry.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false

	var resp *ChatResponse
	err := Retry(ctx, c.Retry, func() error {
		r, err := c.doChat(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) doChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, newRequestError("marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, newRequestError("build chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newTransportError("read chat response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, ErrorFromStatus(httpResp.StatusCode, parseErrorMessage(raw), raw)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return nil, newDecodeError("decode chat response", err)
	}
	return &chatResp, nil
}

// IsRunning probes the catalog endpoint with a short timeout to determine backend liveness.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := c.Tags(ctx)
	return err == nil
}

// Tags fetches the model catalog from GET <base>/api/tags.
func (c *Client) Tags(ctx context.Context) (*TagsResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, newRequestError("build tags request", err)
	}

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newTransportError("read tags response", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, ErrorFromStatus(httpResp.StatusCode, parseErrorMessage(raw), raw)
	}

	var tags TagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, newDecodeError("decode tags response", err)
	}
	return &tags, nil
}

// WarmModel issues a minimal one-token generation request to load the model
// into the backend's memory without consuming a real turn.
func (c *Client) WarmModel(ctx context.Context, model string) error {
	one := 1
	body, err := json.Marshal(GenerateRequest{
		Model:   model,
		Prompt:  "",
		Stream:  false,
		Options: &Options{NumPredict: &one},
	})
	if err != nil {
		return newRequestError("marshal warm request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return newRequestError("build warm request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(httpResp.Body)
		return ErrorFromStatus(httpResp.StatusCode, parseErrorMessage(raw), raw)
	}
	return nil
}

// Embeddings fetches a single embedding vector for text from POST
// <base>/api/embeddings, the same backend family as Complete and WarmModel.
func (c *Client) Embeddings(ctx context.Context, model, text string) ([]float32, error) {
	body, err := json.Marshal(EmbeddingsRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, newRequestError("marshal embeddings request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, newRequestError("build embeddings request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newTransportError("read embeddings response", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, ErrorFromStatus(httpResp.StatusCode, parseErrorMessage(raw), raw)
	}

	var embResp EmbeddingsResponse
	if err := json.Unmarshal(raw, &embResp); err != nil {
		return nil, newDecodeError("decode embeddings response", err)
	}
	return embResp.Embedding, nil
}

// classifyTransportError maps a low-level transport failure to the
// retryable TimeoutError/TransportError taxonomy.
func classifyTransportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newTimeoutError("request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newTimeoutError("request deadline exceeded", err)
	}
	return newTransportError("backend unreachable", err)
}
