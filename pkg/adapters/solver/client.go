// Package solver is the HTTP client of the external computational engine.
//
// A problem is submitted as a run (POST {BaseURL}/runs) which is then polled
// (GET {BaseURL}/runs/{id}) until it reaches a terminal status.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Run statuses reported by the engine.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusExpired    = "expired"
)

// ErrMissingRunID is returned when the engine accepts a problem without naming the run to poll.
var ErrMissingRunID = errors.New("solver run has no id")

// Run is the engine's view of one problem.
type Run struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Answer string `json:"answer,omitempty"`
}

func (r Run) terminal() bool {
	return r.Status != StatusQueued && r.Status != StatusInProgress
}

// Client submits problems and polls their runs.
type Client struct {
	baseURL  string
	apiKey   string
	interval time.Duration
	timeout  time.Duration
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithPollInterval sets the delay between status checks. Default 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTimeout bounds a whole Solve call, polling included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: 500 * time.Millisecond,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Solve submits problem and waits for its answer.
// A run ending in any status other than completed returns domain.ErrSolverIncomplete.
func (c *Client) Solve(ctx context.Context, problem string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	run, err := c.create(ctx, problem)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for !run.terminal() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if run, err = c.get(ctx, run.ID); err != nil {
			return "", err
		}
	}

	if run.Status != StatusCompleted {
		return "", fmt.Errorf("%w: run %s ended %s", domain.ErrSolverIncomplete, run.ID, run.Status)
	}
	return run.Answer, nil
}

func (c *Client) create(ctx context.Context, problem string) (Run, error) {
	body, err := json.Marshal(map[string]string{"problem": problem})
	if err != nil {
		return Run{}, fmt.Errorf("encode solver request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/runs", bytes.NewReader(body))
}

// get polls one run. The id is escaped as a single path segment.
func (c *Client) get(ctx context.Context, id string) (Run, error) {
	if id == "" {
		return Run{}, ErrMissingRunID
	}
	return c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(id), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (Run, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Run{}, fmt.Errorf("create solver request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Run{}, fmt.Errorf("solver call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Run{}, fmt.Errorf("solver %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var run Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return Run{}, fmt.Errorf("decode solver response: %w", err)
	}
	return run, nil
}
