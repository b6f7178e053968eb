// Package firebase is a REST client for the Firebase Realtime Database.
//
// Every node is addressed as <base>/<path>.json?auth=<secret>. Reads of a
// missing node are not errors: a 404 or a JSON null body reports found=false.
package firebase

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

	"github.com/avast/retry-go/v4"
)

// Sentinel errors for the firebase package.
var (
	// ErrNotConfigured is returned when the database URL or secret is empty.
	ErrNotConfigured = errors.New("firebase url or secret not configured")

	// ErrPreconditionFailed is returned when a conditional write loses to a concurrent writer.
	ErrPreconditionFailed = errors.New("firebase precondition failed")

	// ErrUnhealthy is returned when the health probe fails.
	ErrUnhealthy = errors.New("firebase health check failed")
)

// HealthPath is probed by HealthCheck.
const HealthPath = "system/health"

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("firebase %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Config configures a Client.
type Config struct {
	URL        string
	Secret     string
	Timeout    time.Duration // default: 30s
	MaxRetries int           // attempts for transient failures (default: 3)
	RetryDelay time.Duration // initial backoff (default: 500ms)
	HTTPClient *http.Client  // optional, overrides Timeout
}

// Client is a Firebase Realtime Database REST client.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
}

// NewClient creates a new Firebase client.
// A trailing slash is appended to the base URL when missing.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	base := strings.TrimSpace(cfg.URL)
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return &Client{
		baseURL:    base,
		secret:     cfg.Secret,
		httpClient: httpClient,
		attempts:   uint(cfg.MaxRetries),
		retryDelay: cfg.RetryDelay,
	}
}

// Configured reports whether the client has a URL and secret.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.secret != ""
}

// Read fetches the node at path and decodes it into out.
// It returns found=false without error when the node does not exist.
func (c *Client) Read(ctx context.Context, path string, out any) (bool, error) {
	raw, err := c.ReadRaw(ctx, path)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	return true, nil
}

// ReadRaw fetches the node at path as raw JSON. It returns nil when absent.
func (c *Client) ReadRaw(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.withRetry(ctx, func() error {
		body, _, err := c.do(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
				raw = nil
				return nil
			}
			return err
		}
		raw = nullToNil(body)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// ReadVersioned fetches the node at path along with its ETag.
// The ETag can be passed to WriteIfMatch for a compare-and-set write.
// A missing node returns a nil body and the ETag of the empty value.
func (c *Client) ReadVersioned(ctx context.Context, path string) (json.RawMessage, string, error) {
	var (
		raw  json.RawMessage
		etag string
	)
	err := c.withRetry(ctx, func() error {
		body, header, err := c.do(ctx, http.MethodGet, path, nil, map[string]string{
			"X-Firebase-ETag": "true",
		})
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
				raw, etag = nil, ""
				return nil
			}
			return err
		}
		raw = nullToNil(body)
		etag = header.Get("ETag")
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return raw, etag, nil
}

// Write replaces the node at path with v (PUT).
func (c *Client) Write(ctx context.Context, path string, v any) error {
	return c.withRetry(ctx, func() error {
		_, _, err := c.do(ctx, http.MethodPut, path, v, nil)
		return err
	})
}

// Update merges fields into the node at path (PATCH).
// Children not named in fields are left untouched.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	return c.withRetry(ctx, func() error {
		_, _, err := c.do(ctx, http.MethodPatch, path, fields, nil)
		return err
	})
}

// Delete removes the node at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.withRetry(ctx, func() error {
		_, _, err := c.do(ctx, http.MethodDelete, path, nil, nil)
		return err
	})
}

// WriteIfMatch replaces the node at path only if its current ETag equals etag.
// It returns ErrPreconditionFailed when another writer got there first.
// Conditional writes are never retried.
func (c *Client) WriteIfMatch(ctx context.Context, path string, v any, etag string) error {
	if etag == "" {
		return fmt.Errorf("conditional write to %s: empty etag", path)
	}
	_, _, err := c.do(ctx, http.MethodPut, path, v, map[string]string{
		"if-match": etag,
	})
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %s", ErrPreconditionFailed, path)
	}
	return err
}

// HealthCheck probes the database. A missing health node still counts as healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	_, _, err := c.do(ctx, http.MethodGet, HealthPath, nil, nil)
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnhealthy, err)
}

// do performs a single request. Non-2xx responses become *StatusError.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, http.Header, error) {
	if !c.Configured() {
		return nil, nil, ErrNotConfigured
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal body for %s: %w", path, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL, secret included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, nil, fmt.Errorf("firebase %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response for %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, resp.Header, nil
}

// withRetry retries fn on network errors and 5xx responses.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
}

func isTransient(err error) bool {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}

func (c *Client) endpoint(path string) string {
	path = strings.Trim(path, "/")
	return c.baseURL + path + ".json?auth=" + url.QueryEscape(c.secret)
}

func nullToNil(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.RawMessage(trimmed)
}
