// Package retrieval is the HTTP client of a remote knowledge backend.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Client posts retrieval requests to {BaseURL}/retrieve.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default client, whose timeout is 30s.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retrieve sends req and returns the backend's text.
func (c *Client) Retrieve(ctx context.Context, req domain.RetrievalRequest) (domain.Retrieval, error) {
	if err := req.Validate(); err != nil {
		return domain.Retrieval{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("encode retrieval request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/retrieve", bytes.NewReader(body))
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("create retrieval request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.Retrieval{}, fmt.Errorf("retrieval call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Retrieval{}, fmt.Errorf("retrieval backend %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out domain.Retrieval
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Retrieval{}, fmt.Errorf("decode retrieval response: %w", err)
	}
	return out, nil
}
