package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Site is a fake manga site serving chapter pages and images.
// Unknown paths answer 404.
type Site struct {
	*httptest.Server

	mu     sync.Mutex
	pages  map[string]string
	images map[string][]byte
	hits   map[string]int
}

// NewSite starts a fake site that is closed when the test ends.
func NewSite(t testing.TB) *Site {
	t.Helper()
	s := &Site{
		pages:  make(map[string]string),
		images: make(map[string][]byte),
		hits:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddPage serves html at path.
func (s *Site) AddPage(path, html string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = html
	return s.URL + path
}

// AddImage serves a small JPEG-looking body at path.
func (s *Site) AddImage(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[path] = []byte("\xff\xd8\xff\xe0fake-jpeg:" + path)
	return s.URL + path
}

// AddChapter serves a madara-style chapter page at path whose images are
// the given image paths. Images listed in missing are referenced by the
// page but not served.
func (s *Site) AddChapter(path string, images []string, missing ...string) string {
	skip := make(map[string]bool, len(missing))
	for _, m := range missing {
		skip[m] = true
	}

	var b strings.Builder
	b.WriteString("<html><head><title>Chapter</title></head><body><div class=\"reading-content\">\n")
	for i, img := range images {
		fmt.Fprintf(&b, "<div class=\"page-break\"><img class=\"wp-manga-chapter-img\" src=\"%s%s\" alt=\"page %d\"></div>\n", s.URL, img, i+1)
		if !skip[img] {
			s.AddImage(img)
		}
	}
	b.WriteString("</div></body></html>")
	return s.AddPage(path, b.String())
}

// Hits returns how often path was requested.
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Site) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	page, isPage := s.pages[r.URL.Path]
	img, isImage := s.images[r.URL.Path]
	s.mu.Unlock()

	switch {
	case isPage:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	case isImage:
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(img)
	default:
		http.NotFound(w, r)
	}
}
