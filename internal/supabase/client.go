// Package supabase provides a PostgREST client for the Supabase metadata
// store and repository adapters for scripts, recordings and user settings.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Static errors for PostgREST client operations.
var (
	// ErrURLRequired is returned when the project URL is not provided.
	ErrURLRequired = errors.New("supabase: project URL is required")
	// ErrKeyRequired is returned when the API key is not provided.
	ErrKeyRequired = errors.New("supabase: API key is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("supabase: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("supabase: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("supabase: request failed")
	// ErrBadContentRange is returned when a count response lacks a usable Content-Range.
	ErrBadContentRange = errors.New("supabase: malformed Content-Range header")
)

// Client is an HTTP client for the PostgREST API of a Supabase project.
type Client struct {
	apiKey      string
	restURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(sc *Client) {
		sc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(sc *Client) {
		sc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(sc *Client) {
		sc.baseBackoff = d
	}
}

// NewClient creates a new PostgREST client for the project at projectURL
// authenticated with apiKey.
func NewClient(projectURL, apiKey string, opts ...ClientOption) (*Client, error) {
	if projectURL == "" {
		return nil, ErrURLRequired
	}
	if apiKey == "" {
		return nil, ErrKeyRequired
	}

	c := &Client{
		apiKey:      apiKey,
		restURL:     strings.TrimRight(projectURL, "/") + "/rest/v1",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// request describes one PostgREST call.
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer []string
}

// idempotent reports whether a failed attempt may be sent again. A plain
// insert whose response was lost could otherwise create the row twice.
func (r request) idempotent() bool {
	return r.method != http.MethodPost || r.query.Has("on_conflict")
}

// response holds the parts of a PostgREST reply the adapters use.
type response struct {
	header http.Header
	body   []byte
}

// Select runs a GET against table and decodes the rows into out.
func (c *Client) Select(ctx context.Context, table string, query url.Values, out any) error {
	resp, err := c.doWithRetry(ctx, request{method: http.MethodGet, table: table, query: query})
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// Insert inserts body into table and decodes the created rows into out.
// It is sent once; transient failures are returned to the caller.
func (c *Client) Insert(ctx context.Context, table string, body, out any) error {
	resp, err := c.doWithRetry(ctx, request{
		method: http.MethodPost,
		table:  table,
		body:   body,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// Upsert inserts body into table, merging rows that collide on the
// onConflict columns, and decodes the resulting rows into out.
func (c *Client) Upsert(ctx context.Context, table, onConflict string, body, out any) error {
	q := url.Values{}
	q.Set("on_conflict", onConflict)
	resp, err := c.doWithRetry(ctx, request{
		method: http.MethodPost,
		table:  table,
		query:  q,
		body:   body,
		prefer: []string{"resolution=merge-duplicates", "return=representation"},
	})
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// Update patches the rows of table matched by query and decodes them into out.
func (c *Client) Update(ctx context.Context, table string, query url.Values, body, out any) error {
	resp, err := c.doWithRetry(ctx, request{
		method: http.MethodPatch,
		table:  table,
		query:  query,
		body:   body,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// Delete removes the rows of table matched by query and decodes them into out.
func (c *Client) Delete(ctx context.Context, table string, query url.Values, out any) error {
	resp, err := c.doWithRetry(ctx, request{
		method: http.MethodDelete,
		table:  table,
		query:  query,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// Count returns the number of rows of table matched by query.
func (c *Client) Count(ctx context.Context, table string, query url.Values) (int, error) {
	resp, err := c.doWithRetry(ctx, request{
		method: http.MethodHead,
		table:  table,
		query:  query,
		prefer: []string{"count=exact"},
	})
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.header.Get("Content-Range"))
}

// parseContentRange extracts the total from a "0-24/3573" or "*/0" header.
func parseContentRange(v string) (int, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadContentRange, v)
	}
	n, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadContentRange, v)
	}
	return n, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("supabase: unmarshal response: %w", err)
	}
	return nil
}

// doWithRetry performs a request with exponential backoff retry. Only
// idempotent requests are retried.
func (c *Client) doWithRetry(ctx context.Context, req request) (*response, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("supabase: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}

		if !isRetryable(err) || !req.idempotent() {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("supabase: max retries exceeded: %w", lastErr)
}

// do performs a single HTTP request.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	u := c.restURL + "/" + r.table
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("supabase: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("supabase: create request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("supabase: request failed: %w", err)
		}
		return nil, &retryableError{err: fmt.Errorf("supabase: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("supabase: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(respBody)
		if resp.StatusCode >= 500 {
			return nil, &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, msg)}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, msg)}
		}
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, msg)
	}

	return &response{header: resp.Header, body: respBody}, nil
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	return string(body)
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// eq builds a PostgREST equality filter value.
func eq(v any) string {
	return fmt.Sprintf("eq.%v", v)
}
