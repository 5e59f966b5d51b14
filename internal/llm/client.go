// Package llm talks to the upstream generative-model endpoint.
//
// The upstream speaks a line-delimited streaming protocol: free text
// punctuated by one JSON object per line, each tagged with an "event"
// field ("output", "done", "error"). Stream exposes the parsed events as
// an iterator; Complete is the non-streaming variant used for short
// one-shot generations such as conversation titles.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors.
var (
	// ErrUpstreamStatus is returned when the upstream rejects a request
	// before any stream is established.
	ErrUpstreamStatus = errors.New("upstream returned non-OK status")

	// ErrStreamClosed is returned by events arriving after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// Default timeouts. Streaming requests get no overall deadline — the
// response body is read until done — but dialing and headers are bounded.
const (
	completeTimeout      = 60 * time.Second
	responseHeaderWindow = 30 * time.Second
)

// Doer abstracts *http.Client for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int

	// HTTPClient overrides the default client (tests). Nil uses a client
	// with a bounded response-header window and no overall timeout.
	HTTPClient Doer
}

// Client is the upstream model client. Safe for concurrent use.
type Client struct {
	cfg  Config
	http Doer
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: responseHeaderWindow,
			},
		}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Turn is a single chat message sent upstream.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the upstream request body.
type request struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

// completeResponse is the non-streaming response body.
type completeResponse struct {
	Content string `json:"content"`
}

// Stream opens a streaming completion. The caller must Close the returned
// stream. Cancelling ctx aborts the upstream read.
func (c *Client) Stream(ctx context.Context, turns []Turn) (*Stream, error) {
	resp, err := c.post(ctx, "/chat/stream", request{
		Model:       c.cfg.Model,
		Messages:    turns,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body), nil
}

// Complete performs a non-streaming completion and returns the full text.
func (c *Client) Complete(ctx context.Context, turns []Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	resp, err := c.post(ctx, "/chat", request{
		Model:       c.cfg.Model,
		Messages:    turns,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	var out completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return out.Content, nil
}

// post sends a JSON request and verifies the status code. On failure the
// body is closed; on success the caller owns it.
func (c *Client) post(ctx context.Context, path string, body request) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Read a bounded snippet for the error; upstream error bodies are
		// small JSON documents.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	return resp, nil
}
