package fetch

import (
	"math/rand"
	"sort"
	"testing"
	"time"
)

func TestProxyURL(t *testing.T) {
	target := "https://azoramoon.com/series/a/chapter-1?x=1"

	tests := []struct {
		name  string
		proxy string
		want  string
	}{
		{"direct", "", target},
		{"corsproxy escaped", "https://corsproxy.io/?", "https://corsproxy.io/?https%3A%2F%2Fazoramoon.com%2Fseries%2Fa%2Fchapter-1%3Fx%3D1"},
		{"cors-anywhere escaped", "https://cors-anywhere.herokuapp.com/", "https://cors-anywhere.herokuapp.com/https%3A%2F%2Fazoramoon.com%2Fseries%2Fa%2Fchapter-1%3Fx%3D1"},
		{"cors.sh escaped", "https://proxy.cors.sh/", "https://proxy.cors.sh/https%3A%2F%2Fazoramoon.com%2Fseries%2Fa%2Fchapter-1%3Fx%3D1"},
		{"allorigins raw", "https://api.allorigins.win/raw?url=", "https://api.allorigins.win/raw?url=" + target},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProxyURL(tt.proxy, target); got != tt.want {
				t.Errorf("ProxyURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRotator_Headers(t *testing.T) {
	tests := []struct {
		name        string
		referer     string
		target      string
		wantSite    string
		wantReferer bool
	}{
		{"same origin", "https://azoramoon.com/", "https://azoramoon.com/series/x", "same-origin", true},
		{"cross site", "https://www.google.com/", "https://azoramoon.com/series/x", "cross-site", true},
		{"no referer", "", "https://azoramoon.com/series/x", "cross-site", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRotator(Pools{
				UserAgents: []string{"test-agent"},
				Referers:   []string{tt.referer},
				Languages:  []string{"fr,en;q=0.7"},
			}, rand.New(rand.NewSource(1)))

			h := r.Headers(tt.target)
			if h.Get("User-Agent") != "test-agent" {
				t.Errorf("User-Agent = %q", h.Get("User-Agent"))
			}
			if h.Get("Accept-Language") != "fr,en;q=0.7" {
				t.Errorf("Accept-Language = %q", h.Get("Accept-Language"))
			}
			if h.Get("Accept-Encoding") != "gzip, deflate, br" {
				t.Errorf("Accept-Encoding = %q", h.Get("Accept-Encoding"))
			}
			if h.Get("Sec-Fetch-Site") != tt.wantSite {
				t.Errorf("Sec-Fetch-Site = %q, want %q", h.Get("Sec-Fetch-Site"), tt.wantSite)
			}
			if got := h.Get("Referer") != ""; got != tt.wantReferer {
				t.Errorf("Referer present = %v, want %v", got, tt.wantReferer)
			}
			if h.Get("Sec-Fetch-Dest") != "document" {
				t.Errorf("Sec-Fetch-Dest = %q", h.Get("Sec-Fetch-Dest"))
			}
		})
	}
}

func TestRotator_ImageHeaders(t *testing.T) {
	r := NewRotator(Pools{UserAgents: []string{"ua"}}, rand.New(rand.NewSource(1)))
	h := r.ImageHeaders("https://cdn.example.com/1.jpg")
	if h.Get("Sec-Fetch-Dest") != "image" {
		t.Errorf("Sec-Fetch-Dest = %q", h.Get("Sec-Fetch-Dest"))
	}
	if h.Get("Upgrade-Insecure-Requests") != "" {
		t.Error("image requests should not ask for an upgrade")
	}
}

func TestRotator_Headers_UserAgentFallback(t *testing.T) {
	r := NewRotator(Pools{}, rand.New(rand.NewSource(1)))
	if ua := r.Headers("https://example.com").Get("User-Agent"); ua == "" {
		t.Error("expected a generated User-Agent for an empty pool")
	}
	if lang := r.Headers("https://example.com").Get("Accept-Language"); lang == "" {
		t.Error("expected a default Accept-Language")
	}
}

func TestRotator_Order(t *testing.T) {
	pools := Pools{Proxies: []string{"", "a", "b", "c", "d"}}

	first := NewRotator(pools, rand.New(rand.NewSource(7))).Order()
	second := NewRotator(pools, rand.New(rand.NewSource(7))).Order()

	if len(first) != len(pools.Proxies) {
		t.Fatalf("expected %d proxies, got %d", len(pools.Proxies), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different orders: %v vs %v", first, second)
		}
	}

	sorted := append([]string(nil), first...)
	sort.Strings(sorted)
	for i, p := range []string{"", "a", "b", "c", "d"} {
		if sorted[i] != p {
			t.Errorf("order is not a permutation of the pool: %v", first)
		}
	}
}

func TestRotator_EmptyProxiesMeansDirect(t *testing.T) {
	r := NewRotator(Pools{}, rand.New(rand.NewSource(1)))
	order := r.Order()
	if len(order) != 1 || order[0] != "" {
		t.Errorf("expected direct only, got %v", order)
	}
}

func TestRotator_Backoff(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRotator(Pools{Proxies: []string{"", "bad"}}, rand.New(rand.NewSource(1)))
	r.now = func() time.Time { return now }

	r.ReportFailure("bad")
	r.ReportFailure("bad")
	if !contains(r.Order(), "bad") {
		t.Fatal("proxy should stay in rotation below the failure threshold")
	}

	r.ReportFailure("bad")
	if contains(r.Order(), "bad") {
		t.Fatal("proxy should be in backoff after 3 consecutive failures")
	}

	now = now.Add(31 * time.Second)
	if !contains(r.Order(), "bad") {
		t.Fatal("proxy should return once backoff expires")
	}

	r.ReportSuccess("bad")
	for _, h := range r.Health() {
		if h.Proxy == "bad" {
			if h.Consecutive != 0 || !h.BackoffUntil.IsZero() {
				t.Errorf("success should reset state, got %+v", h)
			}
			if h.Failures != 3 || h.Successes != 1 {
				t.Errorf("unexpected counters %+v", h)
			}
		}
	}
}

func TestRotator_AllInBackoff(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRotator(Pools{Proxies: []string{"a", "b"}}, rand.New(rand.NewSource(1)))
	r.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		r.ReportFailure("a")
	}
	for i := 0; i < 3; i++ {
		r.ReportFailure("b")
	}

	order := r.Order()
	if len(order) != 2 {
		t.Fatalf("expected every proxy when all are backing off, got %v", order)
	}
	if order[0] != "b" {
		t.Errorf("expected the soonest expiry first, got %v", order)
	}
}

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		consecutive int
		want        time.Duration
	}{
		{3, 30 * time.Second},
		{4, time.Minute},
		{5, 2 * time.Minute},
		{7, 8 * time.Minute},
		{8, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := backoffFor(tt.consecutive); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.consecutive, got, tt.want)
		}
	}
}

func TestRotator_Reload(t *testing.T) {
	r := NewRotator(Pools{Proxies: []string{"", "keep", "drop"}}, rand.New(rand.NewSource(1)))
	r.ReportFailure("keep")
	r.ReportFailure("drop")

	r.Reload(Pools{Proxies: []string{"", "keep", "new"}, UserAgents: []string{"ua2"}})

	health := r.Health()
	if len(health) != 3 {
		t.Fatalf("expected 3 health entries, got %d", len(health))
	}
	for _, h := range health {
		switch h.Proxy {
		case "keep":
			if h.Failures != 1 {
				t.Errorf("health should survive reload, got %+v", h)
			}
		case "drop":
			t.Error("dropped proxy should not be reported")
		}
	}
	if r.Headers("https://x.test").Get("User-Agent") != "ua2" {
		t.Error("reload should swap user agents")
	}
}

func TestRotator_Jitter(t *testing.T) {
	r := NewRotator(Pools{}, rand.New(rand.NewSource(1)))
	if r.Jitter(0) != 0 {
		t.Error("zero limit should give zero jitter")
	}
	for i := 0; i < 100; i++ {
		if j := r.Jitter(time.Second); j < 0 || j >= time.Second {
			t.Fatalf("jitter %v out of range", j)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
