// Package fetch retrieves chapter pages and images through rotating proxies
// with randomized browser headers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	defaultMaxBody = 10 << 20

	lastChanceUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	lastChanceAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

var errRoundFailed = errors.New("every proxy failed")

// FetchError aggregates the reasons of a failed fetch, one per proxy try.
type FetchError struct {
	URL      string
	Attempts int
	Reasons  []string
}

// StatusError is a non-success HTTP status from a proxy or the origin.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d", e.Code)
}

// proxyFault reports whether err says something about the proxy rather than
// the requested resource. 404 and 410 come from the origin.
func proxyFault(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code != http.StatusNotFound && se.Code != http.StatusGone
	}
	return true
}

func (e *FetchError) Error() string {
	shown := e.Reasons
	more := ""
	if len(shown) > 5 {
		shown = shown[:5]
		more = "\n..."
	}
	return fmt.Sprintf("failed to fetch %s after %d attempts:\n%s%s", e.URL, e.Attempts, strings.Join(shown, "\n"), more)
}

// ProbeResult reports whether an image was reachable.
type ProbeResult struct {
	URL       string `json:"url"`
	Success   bool   `json:"success"`
	ProxyUsed string `json:"proxyUsed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Config configures a Fetcher.
type Config struct {
	PageTimeout      time.Duration // default: 25s
	ImageTimeout     time.Duration // default: 15s
	ProxyDelay       time.Duration // pause between proxies within a round
	RetryDelayBase   time.Duration // pause between page attempts is base × attempt + jitter
	RetryJitter      time.Duration // upper bound of the jitter, 0 disables
	ImageProbeRounds int           // default: 2
	ImageRoundDelay  time.Duration
	RateLimit        float64 // requests per second per host, 0 disables
	MaxBodyBytes     int64   // default: 10 MiB

	// LastChance adds one direct request with fixed desktop headers after
	// every page attempt has failed.
	LastChance        bool
	LastChanceReferer string
	Logger           *slog.Logger
	HTTPClient       *http.Client // optional; a cookie jar is added when missing
}

// Fetcher fetches pages and images through the rotator's proxies.
type Fetcher struct {
	rotator *Rotator
	client  *http.Client
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher.
func NewFetcher(rotator *Rotator, cfg Config) (*Fetcher, error) {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 25 * time.Second
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = 15 * time.Second
	}
	if cfg.ImageProbeRounds <= 0 {
		cfg.ImageProbeRounds = 2
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return &Fetcher{
		rotator:  rotator,
		client:   client,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Rotator returns the fetcher's proxy rotator.
func (f *Fetcher) Rotator() *Rotator {
	return f.rotator
}

// FetchPage fetches target as text. Each attempt walks the rotator's proxy
// order once; attempts are separated by RetryDelayBase × attempt plus up to RetryJitter.
// With LastChance set, a final direct request follows the last attempt.
func (f *Fetcher) FetchPage(ctx context.Context, target string, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var (
		body    string
		reasons []string
		attempt int
	)

	err := retry.Do(
		func() error {
			attempt++
			for i, proxy := range f.rotator.Order() {
				if i > 0 {
					if err := Sleep(ctx, f.cfg.ProxyDelay); err != nil {
						return retry.Unrecoverable(err)
					}
				}

				page, err := f.tryPage(ctx, proxy, target)
				if err == nil {
					f.rotator.ReportSuccess(proxy)
					body = page
					f.logger.Debug("page fetched", "url", target, "proxy", ProxyName(proxy), "attempt", attempt, "bytes", len(page))
					return nil
				}
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}

				if proxyFault(err) {
					f.rotator.ReportFailure(proxy)
				}
				reasons = append(reasons, fmt.Sprintf("attempt %d via %s: %v", attempt, ProxyName(proxy), err))
				f.logger.Debug("page fetch failed", "url", target, "proxy", ProxyName(proxy), "attempt", attempt, "error", err)
			}
			return errRoundFailed
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return f.cfg.RetryDelayBase*time.Duration(n+1) + f.rotator.Jitter(f.cfg.RetryJitter)
		}),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return body, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	if f.cfg.LastChance {
		page, err := f.lastChance(ctx, target)
		if err == nil {
			f.logger.Info("page fetched by last chance request", "url", target, "bytes", len(page))
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		reasons = append(reasons, fmt.Sprintf("last chance direct: %v", err))
	}
	return "", &FetchError{URL: target, Attempts: attempt, Reasons: reasons}
}

func (f *Fetcher) lastChance(ctx context.Context, target string) (string, error) {
	h := make(http.Header)
	h.Set("User-Agent", lastChanceUA)
	h.Set("Accept", lastChanceAccept)
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("DNT", "1")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	if f.cfg.LastChanceReferer != "" {
		h.Set("Referer", f.cfg.LastChanceReferer)
	}
	return f.tryPageWith(ctx, target, h)
}

func (f *Fetcher) tryPage(ctx context.Context, proxy, target string) (string, error) {
	return f.tryPageWith(ctx, ProxyURL(proxy, target), f.rotator.Headers(target))
}

func (f *Fetcher) tryPageWith(ctx context.Context, rawURL string, headers http.Header) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PageTimeout)
	defer cancel()

	resp, err := f.get(ctx, rawURL, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", &StatusError{Code: resp.StatusCode}
	}
	body, err := readBody(resp, f.cfg.MaxBodyBytes)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", errors.New("empty body")
	}
	return string(body), nil
}

// ProbeImage checks that imageURL answers 200 through some proxy, trying
// ImageProbeRounds rounds of the rotator's order.
func (f *Fetcher) ProbeImage(ctx context.Context, imageURL string) ProbeResult {
	var reasons []string

	for round := 0; round < f.cfg.ImageProbeRounds; round++ {
		if round > 0 {
			if err := Sleep(ctx, f.cfg.ImageRoundDelay); err != nil {
				return ProbeResult{URL: imageURL, Error: err.Error()}
			}
		}
		for i, proxy := range f.rotator.Order() {
			if i > 0 {
				if err := Sleep(ctx, f.cfg.ProxyDelay); err != nil {
					return ProbeResult{URL: imageURL, Error: err.Error()}
				}
			}

			_, err := f.tryImage(ctx, proxy, imageURL, false)
			if err == nil {
				f.rotator.ReportSuccess(proxy)
				return ProbeResult{URL: imageURL, Success: true, ProxyUsed: ProxyName(proxy)}
			}
			if ctx.Err() != nil {
				return ProbeResult{URL: imageURL, Error: ctx.Err().Error()}
			}
			if proxyFault(err) {
				f.rotator.ReportFailure(proxy)
			}
			reasons = append(reasons, fmt.Sprintf("%s: %v", ProxyName(proxy), err))
		}
	}

	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	return ProbeResult{
		URL:   imageURL,
		Error: "failed to fetch image: " + strings.Join(reasons, ", "),
	}
}

// Download returns the raw bytes of imageURL, trying each proxy once.
func (f *Fetcher) Download(ctx context.Context, imageURL string) ([]byte, error) {
	var reasons []string
	for i, proxy := range f.rotator.Order() {
		if i > 0 {
			if err := Sleep(ctx, f.cfg.ProxyDelay); err != nil {
				return nil, err
			}
		}
		data, err := f.tryImage(ctx, proxy, imageURL, true)
		if err == nil {
			f.rotator.ReportSuccess(proxy)
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if proxyFault(err) {
			f.rotator.ReportFailure(proxy)
		}
		reasons = append(reasons, fmt.Sprintf("attempt 1 via %s: %v", ProxyName(proxy), err))
	}
	return nil, &FetchError{URL: imageURL, Attempts: 1, Reasons: reasons}
}

func (f *Fetcher) tryImage(ctx context.Context, proxy, imageURL string, keep bool) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ImageTimeout)
	defer cancel()

	resp, err := f.get(ctx, ProxyURL(proxy, imageURL), f.rotator.ImageHeaders(imageURL))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	if !keep {
		_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
		return nil, err
	}
	return readBody(resp, f.cfg.MaxBodyBytes)
}

func (f *Fetcher) get(ctx context.Context, rawURL string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers

	if err := f.wait(ctx, req.URL.Hostname()); err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, urlErr.Err
		}
		return nil, err
	}
	return resp, nil
}

// wait blocks on the per-host limiter.
func (f *Fetcher) wait(ctx context.Context, host string) error {
	if f.cfg.RateLimit <= 0 || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	f.mu.Lock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.cfg.RateLimit), 1)
		f.limiters[host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
