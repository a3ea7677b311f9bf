package api

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

	"batchflow/internal/batch"
)

// ErrDaemonUnavailable is returned when the daemon API cannot be reached.
var ErrDaemonUnavailable = errors.New("daemon api unavailable")

// StatusError reports a non-2xx API response.
type StatusError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *StatusError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon api: %s (%s, http %d)", e.Message, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("daemon api: %s (http %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a client for the daemon bound at bind (host:port or a
// full URL). token is sent as a bearer token when non-empty.
func NewClient(bind, token string, opts ...ClientOption) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns returns runs, optionally filtered by status.
func (c *Client) ListRuns(ctx context.Context, statuses []string) ([]Run, error) {
	path := "/api/runs"
	if len(statuses) > 0 {
		q := url.Values{}
		for _, s := range statuses {
			q.Add("status", s)
		}
		path += "?" + q.Encode()
	}
	var resp RunListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// GetRun fetches a run by execution id.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

// Submit starts a run in the daemon. The daemon executes it in the
// background and responds with the created run.
func (c *Client) Submit(ctx context.Context, input batch.RunInput) (*Run, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/runs", input, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

// Quarantine lists pending quarantine entries.
func (c *Client) Quarantine(ctx context.Context) ([]QuarantineEntry, error) {
	var resp QuarantineListResponse
	if err := c.do(ctx, http.MethodGet, "/api/quarantine", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Resume resolves a quarantine message.
func (c *Client) Resume(ctx context.Context, token, action string) (*Run, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/resume", ResumeRequest{Token: token, Action: action}, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

// Prune deletes terminal runs older than olderThan.
func (c *Client) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	var resp PruneResponse
	if err := c.do(ctx, http.MethodPost, "/api/prune", PruneRequest{OlderThan: olderThan.String()}, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
			if apiErr.Error == "" {
				apiErr.Error = http.StatusText(resp.StatusCode)
			}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error, Kind: apiErr.Kind}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
