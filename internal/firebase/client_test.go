package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testSecret = "top-secret"

func newTestClient(url string) *Client {
	return NewClient(Config{
		URL:        url,
		Secret:     testSecret,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestClient_Endpoint(t *testing.T) {
	c := NewClient(Config{URL: "https://db.example.com", Secret: "a b"})

	got := c.endpoint("/ImgChapter_1/m1/chapters/c1/")
	want := "https://db.example.com/ImgChapter_1/m1/chapters/c1.json?auth=a+b"
	if got != want {
		t.Errorf("endpoint() = %s, want %s", got, want)
	}
}

func TestClient_Read(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantFound  bool
		wantErr    bool
	}{
		{"found", http.StatusOK, `{"title":"Chapter 1","url":"https://x/1"}`, true, false},
		{"not_found_404", http.StatusNotFound, `{"error":"not found"}`, false, false},
		{"null_body", http.StatusOK, `null`, false, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":"Permission denied"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("unexpected method: %s", r.Method)
				}
				if r.URL.Path != "/ImgChapter_1/m1/chapters/c1.json" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("auth"); got != testSecret {
					t.Errorf("unexpected auth: %s", got)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			var out struct {
				Title string `json:"title"`
			}
			found, err := client.Read(context.Background(), "ImgChapter_1/m1/chapters/c1", &out)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if found != tt.wantFound {
				t.Errorf("Read() found = %v, want %v", found, tt.wantFound)
			}
			if tt.wantFound && out.Title != "Chapter 1" {
				t.Errorf("Read() decoded title = %q", out.Title)
			}
		})
	}
}

func TestClient_Read_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"currentGroup":4}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	var stats struct {
		CurrentGroup int `json:"currentGroup"`
	}
	found, err := client.Read(context.Background(), "System/chapter_stats", &stats)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !found || stats.CurrentGroup != 4 {
		t.Errorf("Read() = %v %+v", found, stats)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_Read_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Read(context.Background(), "bad", nil)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestClient_WriteUpdateDelete(t *testing.T) {
	type seen struct {
		method string
		body   map[string]any
	}
	var got []seen

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				json.Unmarshal(data, &body)
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("unexpected content-type: %s", ct)
				}
			}
		}
		got = append(got, seen{method: r.Method, body: body})
		w.Write([]byte(`null`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	if err := client.Write(ctx, "a/b", map[string]any{"status": "processing"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := client.Update(ctx, "a/b", map[string]any{"status": "completed"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := client.Delete(ctx, "a/b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	wantMethods := []string{http.MethodPut, http.MethodPatch, http.MethodDelete}
	if len(got) != len(wantMethods) {
		t.Fatalf("expected %d requests, got %d", len(wantMethods), len(got))
	}
	for i, m := range wantMethods {
		if got[i].method != m {
			t.Errorf("request %d method = %s, want %s", i, got[i].method, m)
		}
	}
	if got[0].body["status"] != "processing" || got[1].body["status"] != "completed" {
		t.Errorf("unexpected bodies: %+v", got)
	}
}

func TestClient_ReadVersioned_WriteIfMatch(t *testing.T) {
	const etag = "etag-v1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.Header.Get("X-Firebase-ETag") != "true" {
				t.Errorf("missing X-Firebase-ETag header")
			}
			w.Header().Set("ETag", etag)
			w.Write([]byte(`{"status":"pending_images"}`))
		case http.MethodPut:
			if r.Header.Get("If-Match") != etag {
				w.Header().Set("ETag", "etag-v2")
				w.WriteHeader(http.StatusPreconditionFailed)
				w.Write([]byte(`{"status":"processing"}`))
				return
			}
			w.Write([]byte(`{"status":"processing"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	raw, tag, err := client.ReadVersioned(ctx, "g/m/chapters/c")
	if err != nil {
		t.Fatalf("ReadVersioned() error = %v", err)
	}
	if tag != etag {
		t.Errorf("ReadVersioned() etag = %q, want %q", tag, etag)
	}
	if !strings.Contains(string(raw), "pending_images") {
		t.Errorf("ReadVersioned() body = %s", raw)
	}

	if err := client.WriteIfMatch(ctx, "g/m/chapters/c", map[string]any{"status": "processing"}, tag); err != nil {
		t.Errorf("WriteIfMatch() with current etag error = %v", err)
	}

	err = client.WriteIfMatch(ctx, "g/m/chapters/c", map[string]any{"status": "processing"}, "stale")
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("WriteIfMatch() with stale etag error = %v, want ErrPreconditionFailed", err)
	}

	if err := client.WriteIfMatch(ctx, "g/m/chapters/c", nil, ""); err == nil {
		t.Error("WriteIfMatch() with empty etag should fail")
	}
}

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy", http.StatusOK, false},
		{"missing_node_is_healthy", http.StatusNotFound, false},
		{"unauthorized", http.StatusUnauthorized, true},
		{"server_error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/system/health.json" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			err := client.HealthCheck(context.Background())

			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("HealthCheck() error = %v, want ErrUnhealthy", err)
			}
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(Config{URL: "https://db.example.com"})

	if client.Configured() {
		t.Fatal("client without secret should not be configured")
	}
	if _, err := client.Read(context.Background(), "x", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Read() error = %v, want ErrNotConfigured", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConfigured", err)
	}
}

func TestClient_ErrorsDoNotLeakSecret(t *testing.T) {
	// Closed server forces a transport error carrying the request URL.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url)
	_, err := client.Read(context.Background(), "x", nil)
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if strings.Contains(err.Error(), testSecret) {
		t.Errorf("error leaks secret: %v", err)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if _, err := client.Read(ctx, "x", nil); err == nil {
		t.Error("expected error from cancelled context")
	}
}
