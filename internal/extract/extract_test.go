package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func newExtractor() *Extractor {
	return &Extractor{
		Selectors: []string{
			".wp-manga-chapter-img",
			".reading-content img",
			"img[data-src]",
		},
		Attributes: DefaultAttributes,
		Extensions: []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"},
		BaseURL:    "https://azoramoon.com",
		MaxImages:  100,
	}
}

func TestExtractor_Extract(t *testing.T) {
	html := `<html><body>
<div class="reading-content">
  <img class="wp-manga-chapter-img" src="  https://cdn.example.com/1.jpg " alt="page 1">
  <img class="wp-manga-chapter-img" data-src="//cdn.example.com/2.PNG">
  <img class="wp-manga-chapter-img" src="https://cdn.example.com/1.jpg">
  <img class="wp-manga-chapter-img" data-lazy-src="/wp-content/3.webp">
  <img class="wp-manga-chapter-img" src="https://cdn.example.com/readme.txt">
  <img class="wp-manga-chapter-img">
</div>
<img data-src="https://cdn.example.com/ignored.jpg">
</body></html>`

	images, err := newExtractor().Extract(html)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.PNG",
		"https://azoramoon.com/wp-content/3.webp",
	}
	if len(images) != len(want) {
		t.Fatalf("Extract() returned %d images, want %d: %+v", len(images), len(want), images)
	}
	for i, img := range images {
		if img.URL != want[i] {
			t.Errorf("image %d URL = %s, want %s", i, img.URL, want[i])
		}
		if img.Order != i+1 {
			t.Errorf("image %d Order = %d", i, img.Order)
		}
		if img.Selector != ".wp-manga-chapter-img" {
			t.Errorf("image %d Selector = %s", i, img.Selector)
		}
	}
	if images[0].Alt != "page 1" {
		t.Errorf("Alt = %q", images[0].Alt)
	}
}

func TestExtractor_FallsThroughSelectors(t *testing.T) {
	html := `<div class="reading-content"><img src="https://x.test/a.jpg"><img src="https://x.test/b.jpg"></div>`

	images, err := newExtractor().Extract(html)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(images) != 2 || images[0].Selector != ".reading-content img" {
		t.Errorf("expected second selector to win, got %+v", images)
	}
}

func TestExtractor_SkipsSelectorsWithoutUsableURLs(t *testing.T) {
	e := newExtractor()
	e.Selectors = []string{".text-center img", `img[src*="manga"]`, ".page-break img"}

	html := `<div class="text-center"><img src="/logo.svg"></div>
<div class="page-break"><img src="https://azoramoon.com/manga/1.jpg"></div>
<div class="page-break"><img src="https://azoramoon.com/manga/2.jpg"></div>`

	images, err := e.Extract(html)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(images) != 2 || images[0].Selector != `img[src*="manga"]` {
		t.Errorf("expected the manga selector to win, got %+v", images)
	}
}

func TestExtractor_MatchesWithoutURLs(t *testing.T) {
	html := `<img class="wp-manga-chapter-img" src="https://x.test/a.txt">
<div class="reading-content"><img></div>`

	_, err := newExtractor().Extract(html)
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("Extract() error = %v, want ErrNoImages", err)
	}
	if !strings.Contains(err.Error(), "2 matched elements") {
		t.Errorf("error should count matched elements, got %v", err)
	}
}

func TestExtractor_ExtensionAnywhereInURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://x.test/a.jpg", true},
		{"https://x.test/image.php?f=a.jpg", true},
		{"https://x.test/a.jpg-150x150", true},
		{"https://x.test/A.WEBP", true},
		{"https://x.test/readme.txt", false},
		{"https://x.test/logo.svg", false},
	}
	e := newExtractor()
	for _, tt := range tests {
		if got := e.hasImageExtension(tt.url); got != tt.want {
			t.Errorf("hasImageExtension(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestExtractor_NoMatches(t *testing.T) {
	_, err := newExtractor().Extract(`<html><body><p>nothing here</p></body></html>`)
	if !errors.Is(err, ErrNoImages) {
		t.Errorf("Extract() error = %v, want ErrNoImages", err)
	}
}

func TestExtractor_MaxImages(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, `<img class="wp-manga-chapter-img" src="https://x.test/%d.jpg">`, i)
	}

	e := newExtractor()
	e.MaxImages = 4
	images, err := e.Extract(b.String())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(images) != 4 {
		t.Errorf("expected 4 images, got %d", len(images))
	}
	if images[3].URL != "https://x.test/3.jpg" {
		t.Errorf("expected document order, got %s", images[3].URL)
	}
}

func TestCleanURL(t *testing.T) {
	const base = "https://azoramoon.com"

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n", ""},
		{"absolute", "https://cdn.test/a.jpg", "https://cdn.test/a.jpg"},
		{"embedded whitespace", "https://cdn.test/\n  a.jpg\t", "https://cdn.test/a.jpg"},
		{"protocol relative", "//cdn.test/a.jpg", "https://cdn.test/a.jpg"},
		{"site relative", "/wp-content/a.jpg", "https://azoramoon.com/wp-content/a.jpg"},
		{"wp mirror of base", "https://i0.wp.com/azoramoon.com/wp-content/a.jpg", "https://azoramoon.com/wp-content/a.jpg"},
		{"wp mirror of other host", "https://i0.wp.com/other.com/a.jpg", "https://i0.wp.com/other.com/a.jpg"},
		{"document relative", "images/a.jpg", "https://azoramoon.com/images/a.jpg"},
		{"data uri", "data:image/png;base64,AAAA", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanURL(tt.raw, base); got != tt.want {
				t.Errorf("CleanURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
