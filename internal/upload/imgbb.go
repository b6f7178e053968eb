// Package upload re-hosts chapter images on an imgbb-compatible image host.
//
// Uploading is optional: without an API key every call passes the original
// URL through and makes no network request.
package upload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultEndpoint is the imgbb upload API.
const DefaultEndpoint = "https://api.imgbb.com/1/upload"

// ErrDisabled is returned by UploadURL when no API key is configured.
var ErrDisabled = errors.New("image upload key not configured")

// Downloader fetches raw image bytes.
type Downloader func(ctx context.Context, imageURL string) ([]byte, error)

// Config configures an Uploader.
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration // default: 60s
	Download   Downloader    // optional; defaults to a plain GET
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Result is the outcome of one upload. URL is the hosted URL on success
// and the original URL otherwise.
type Result struct {
	OriginalURL string `json:"originalUrl"`
	URL         string `json:"url"`
	Uploaded    bool   `json:"uploaded"`
	Error       string `json:"error,omitempty"`
}

// Uploader posts images to the host.
type Uploader struct {
	endpoint string
	client   *http.Client
	download Downloader
	logger   *slog.Logger

	mu  sync.RWMutex
	key string
}

type response struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New creates an uploader.
func New(cfg Config) *Uploader {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u := &Uploader{
		endpoint: cfg.Endpoint,
		client:   client,
		logger:   logger,
		key:      strings.TrimSpace(cfg.APIKey),
	}
	u.download = cfg.Download
	if u.download == nil {
		u.download = u.get
	}
	return u
}

// Enabled reports whether an API key is configured.
func (u *Uploader) Enabled() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.key != ""
}

// SetKey replaces the API key. An empty key disables uploads.
func (u *Uploader) SetKey(key string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.key = strings.TrimSpace(key)
}

func (u *Uploader) apiKey() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.key
}

// Upload downloads imageURL and posts its bytes base64-encoded.
// Failures are reported in the result, never retried.
func (u *Uploader) Upload(ctx context.Context, imageURL string) Result {
	res := Result{OriginalURL: imageURL, URL: imageURL}

	key := u.apiKey()
	if key == "" {
		return res
	}

	data, err := u.download(ctx, imageURL)
	if err != nil {
		res.Error = fmt.Sprintf("failed to download image: %v", err)
		return res
	}

	hosted, err := u.post(ctx, key, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		u.logger.Warn("image upload failed", "url", imageURL, "error", err)
		res.Error = err.Error()
		return res
	}

	res.URL = hosted
	res.Uploaded = true
	return res
}

// UploadURL asks the host to fetch imageURL itself.
func (u *Uploader) UploadURL(ctx context.Context, imageURL string) (Result, error) {
	res := Result{OriginalURL: imageURL, URL: imageURL}

	key := u.apiKey()
	if key == "" {
		return res, ErrDisabled
	}

	hosted, err := u.post(ctx, key, imageURL)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.URL = hosted
	res.Uploaded = true
	return res, nil
}

func (u *Uploader) post(ctx context.Context, key, image string) (string, error) {
	form := url.Values{}
	form.Set("key", key)
	form.Set("image", image)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.client.Do(req)
	if err != nil {
		// url.Error carries the request URL only; the key travels in the body.
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if !out.Success || out.Data.URL == "" {
		msg := out.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("upload rejected: %s", msg)
	}
	return out.Data.URL, nil
}

func (u *Uploader) get(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}
