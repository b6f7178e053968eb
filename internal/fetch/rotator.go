package fetch

import (
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corpix/uarand"
)

const (
	// FailureThreshold is the number of consecutive failures that puts a proxy into backoff.
	FailureThreshold = 3

	baseBackoff = 30 * time.Second
	maxBackoff  = 10 * time.Minute

	pageAccept  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"
	imageAccept = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// Proxies that expect the target URL query-escaped after the prefix.
var escapedProxies = []string{"corsproxy.io", "cors-anywhere", "proxy.cors.sh"}

// Pools are the values a Rotator draws from.
type Pools struct {
	Proxies    []string // "" means direct
	UserAgents []string // empty draws from uarand
	Referers   []string // "" entries send no Referer
	Languages  []string
}

// ProxyHealth is a snapshot of one proxy's track record.
type ProxyHealth struct {
	Proxy        string    `json:"proxy"`
	Successes    int       `json:"successes"`
	Failures     int       `json:"failures"`
	Consecutive  int       `json:"consecutive"`
	BackoffUntil time.Time `json:"backoffUntil,omitempty"`
}

// Rotator picks proxies and browser-like headers for each request and
// tracks proxy health. It is safe for concurrent use.
type Rotator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	pools  Pools
	health map[string]*ProxyHealth
	now    func() time.Time
}

// NewRotator creates a rotator. A nil rnd seeds one from the clock.
func NewRotator(pools Pools, rnd *rand.Rand) *Rotator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r := &Rotator{
		rnd:    rnd,
		health: make(map[string]*ProxyHealth),
		now:    time.Now,
	}
	r.setPools(pools)
	return r
}

// Reload swaps the pools. Health is kept for proxies that remain.
func (r *Rotator) Reload(pools Pools) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setPools(pools)
}

func (r *Rotator) setPools(pools Pools) {
	if len(pools.Proxies) == 0 {
		pools.Proxies = []string{""}
	}
	r.pools = Pools{
		Proxies:    append([]string(nil), pools.Proxies...),
		UserAgents: append([]string(nil), pools.UserAgents...),
		Referers:   append([]string(nil), pools.Referers...),
		Languages:  append([]string(nil), pools.Languages...),
	}

	keep := make(map[string]*ProxyHealth, len(r.pools.Proxies))
	for _, p := range r.pools.Proxies {
		if h, ok := r.health[p]; ok {
			keep[p] = h
		} else {
			keep[p] = &ProxyHealth{Proxy: p}
		}
	}
	r.health = keep
}

// Pools returns a copy of the current pools.
func (r *Rotator) Pools() Pools {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Pools{
		Proxies:    append([]string(nil), r.pools.Proxies...),
		UserAgents: append([]string(nil), r.pools.UserAgents...),
		Referers:   append([]string(nil), r.pools.Referers...),
		Languages:  append([]string(nil), r.pools.Languages...),
	}
}

// Headers returns a randomized browser header set for a page request.
func (r *Rotator) Headers(target string) http.Header {
	h := r.baseHeaders(target)
	h.Set("Accept", pageAccept)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	return h
}

// ImageHeaders returns a randomized browser header set for an image request.
func (r *Rotator) ImageHeaders(target string) http.Header {
	h := r.baseHeaders(target)
	h.Set("Accept", imageAccept)
	h.Set("Sec-Fetch-Dest", "image")
	h.Set("Sec-Fetch-Mode", "no-cors")
	h.Set("Cache-Control", "no-cache")
	return h
}

func (r *Rotator) baseHeaders(target string) http.Header {
	r.mu.Lock()
	ua := pick(r.rnd, r.pools.UserAgents)
	referer := pick(r.rnd, r.pools.Referers)
	lang := pick(r.rnd, r.pools.Languages)
	r.mu.Unlock()

	if ua == "" {
		ua = uarand.GetRandom()
	}
	if lang == "" {
		lang = "en-US,en;q=0.9"
	}

	h := make(http.Header)
	h.Set("User-Agent", ua)
	h.Set("Accept-Language", lang)
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("DNT", "1")
	if referer != "" {
		h.Set("Referer", referer)
	}
	h.Set("Sec-Fetch-Site", fetchSite(referer, target))
	return h
}

func fetchSite(referer, target string) string {
	ru, err := url.Parse(referer)
	if err != nil {
		return "cross-site"
	}
	tu, err := url.Parse(target)
	if err != nil {
		return "cross-site"
	}
	if ru.Hostname() != "" && strings.EqualFold(ru.Hostname(), tu.Hostname()) {
		return "same-origin"
	}
	return "cross-site"
}

// Order returns the proxies to try for one round: the healthy ones in
// random order. When every proxy is in backoff it returns all of them,
// soonest expiry first.
func (r *Rotator) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var healthy, waiting []string
	for _, p := range r.pools.Proxies {
		if h := r.health[p]; h != nil && now.Before(h.BackoffUntil) {
			waiting = append(waiting, p)
			continue
		}
		healthy = append(healthy, p)
	}

	if len(healthy) > 0 {
		r.rnd.Shuffle(len(healthy), func(i, j int) {
			healthy[i], healthy[j] = healthy[j], healthy[i]
		})
		return healthy
	}

	sort.SliceStable(waiting, func(i, j int) bool {
		return r.health[waiting[i]].BackoffUntil.Before(r.health[waiting[j]].BackoffUntil)
	})
	return waiting
}

// ReportSuccess clears a proxy's failure streak and backoff.
func (r *Rotator) ReportSuccess(proxy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.entry(proxy)
	h.Successes++
	h.Consecutive = 0
	h.BackoffUntil = time.Time{}
}

// ReportFailure records a failure. From FailureThreshold consecutive
// failures on, the proxy backs off for 30s, doubling per further failure up to 10m.
func (r *Rotator) ReportFailure(proxy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.entry(proxy)
	h.Failures++
	h.Consecutive++
	if h.Consecutive >= FailureThreshold {
		h.BackoffUntil = r.now().Add(backoffFor(h.Consecutive))
	}
}

func backoffFor(consecutive int) time.Duration {
	d := baseBackoff
	for i := FailureThreshold; i < consecutive; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (r *Rotator) entry(proxy string) *ProxyHealth {
	h, ok := r.health[proxy]
	if !ok {
		h = &ProxyHealth{Proxy: proxy}
		r.health[proxy] = h
	}
	return h
}

// Health returns a snapshot of every proxy in pool order.
func (r *Rotator) Health() []ProxyHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProxyHealth, 0, len(r.pools.Proxies))
	for _, p := range r.pools.Proxies {
		if h, ok := r.health[p]; ok {
			out = append(out, *h)
		}
	}
	return out
}

// Jitter returns a random duration in [0, limit).
func (r *Rotator) Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.rnd.Int63n(int64(limit)))
}

// ProxyURL builds the request URL for target through proxy.
func ProxyURL(proxy, target string) string {
	if proxy == "" {
		return target
	}
	for _, p := range escapedProxies {
		if strings.Contains(proxy, p) {
			return proxy + url.QueryEscape(target)
		}
	}
	return proxy + target
}

// ProxyName is how a proxy appears in logs and reasons.
func ProxyName(proxy string) string {
	if proxy == "" {
		return "direct"
	}
	return proxy
}

func pick(rnd *rand.Rand, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rnd.Intn(len(pool))]
}
