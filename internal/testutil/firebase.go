package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Firebase is an in-memory Realtime Database speaking the REST protocol:
// GET/PUT/PATCH/DELETE on <path>.json?auth=<secret>, ETag reads and
// if-match conditional writes.
type Firebase struct {
	*httptest.Server
	Secret string

	mu       sync.Mutex
	root     any
	requests []string
	failures []int
}

// NewFirebase starts a fake database that is closed when the test ends.
func NewFirebase(t testing.TB, secret string) *Firebase {
	t.Helper()
	f := &Firebase{Secret: secret}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

// Set stores v at path, replacing what was there.
func (f *Firebase) Set(path string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.root = setNode(f.root, segments(path), normalize(v))
}

// Get returns the node at path as generic JSON values, nil when absent.
func (f *Firebase) Get(path string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return getNode(f.root, segments(path))
}

// GetJSON decodes the node at path into out and reports whether it exists.
func (f *Firebase) GetJSON(path string, out any) bool {
	f.mu.Lock()
	node := getNode(f.root, segments(path))
	data, _ := json.Marshal(node)
	f.mu.Unlock()

	if node == nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Requests returns "METHOD path" for every request served so far.
func (f *Firebase) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// FailNext makes the next requests answer with the given statuses, in order.
func (f *Firebase) FailNext(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, statuses...)
}

func (f *Firebase) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(strings.Trim(r.URL.Path, "/"), ".json")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+path)

	if r.URL.Query().Get("auth") != f.Secret {
		writeFirebase(w, http.StatusUnauthorized, map[string]any{"error": "Permission denied"})
		return
	}
	if len(f.failures) > 0 {
		status := f.failures[0]
		f.failures = f.failures[1:]
		writeFirebase(w, status, map[string]any{"error": http.StatusText(status)})
		return
	}

	segs := segments(path)
	current := getNode(f.root, segs)

	switch r.Method {
	case http.MethodGet:
		if r.Header.Get("X-Firebase-ETag") == "true" {
			w.Header().Set("ETag", etag(current))
		}
		writeFirebase(w, http.StatusOK, current)

	case http.MethodPut:
		if match := r.Header.Get("If-Match"); match != "" && match != etag(current) {
			w.Header().Set("ETag", etag(current))
			writeFirebase(w, http.StatusPreconditionFailed, current)
			return
		}
		body, err := readJSON(r.Body)
		if err != nil {
			writeFirebase(w, http.StatusBadRequest, map[string]any{"error": "Invalid data; couldn't parse JSON object"})
			return
		}
		f.root = setNode(f.root, segs, body)
		writeFirebase(w, http.StatusOK, body)

	case http.MethodPatch:
		body, err := readJSON(r.Body)
		fields, ok := body.(map[string]any)
		if err != nil || !ok {
			writeFirebase(w, http.StatusBadRequest, map[string]any{"error": "Invalid data; couldn't parse JSON object"})
			return
		}
		for k, v := range fields {
			f.root = setNode(f.root, append(append([]string(nil), segs...), segments(k)...), v)
		}
		writeFirebase(w, http.StatusOK, fields)

	case http.MethodDelete:
		f.root = setNode(f.root, segs, nil)
		writeFirebase(w, http.StatusOK, nil)

	default:
		writeFirebase(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func writeFirebase(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r io.Reader) (any, error) {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	json.Unmarshal(data, &out)
	return out
}

func etag(node any) string {
	data, _ := json.Marshal(node)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func getNode(node any, segs []string) any {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[s]
	}
	return node
}

// setNode writes v under segs and prunes empty parents, as Firebase does.
func setNode(node any, segs []string, v any) any {
	if len(segs) == 0 {
		if m, ok := v.(map[string]any); ok && len(m) == 0 {
			return nil
		}
		return v
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	child := setNode(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
