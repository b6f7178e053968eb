// Package extract pulls chapter image URLs out of page HTML with an ordered
// list of CSS selectors.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoImages is returned when a page yields no usable image URLs.
var ErrNoImages = errors.New("no images found")

// DefaultAttributes are read in order; the first non-empty one wins.
var DefaultAttributes = []string{"src", "data-src", "data-lazy-src", "data-original"}

// Image is one extracted image in document order.
type Image struct {
	Order    int    `json:"order"` // 1-based
	URL      string `json:"url"`
	Selector string `json:"selector"`
	Alt      string `json:"alt,omitempty"`
}

// Extractor finds image URLs in chapter pages.
type Extractor struct {
	Selectors  []string
	Attributes []string
	Extensions []string
	BaseURL    string
	MaxImages  int
}

// Extract parses html and returns the images of the first selector that
// yields at least one usable URL. Selectors whose elements carry no usable
// URL are skipped.
func (e *Extractor) Extract(html string) ([]Image, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	matched := 0
	for _, selector := range e.Selectors {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}
		matched += matches.Length()

		if images := e.collect(matches, selector); len(images) > 0 {
			return images, nil
		}
	}
	if matched > 0 {
		return nil, fmt.Errorf("%w: %d matched elements without image urls", ErrNoImages, matched)
	}
	return nil, ErrNoImages
}

func (e *Extractor) collect(matches *goquery.Selection, selector string) []Image {
	attrs := e.Attributes
	if len(attrs) == 0 {
		attrs = DefaultAttributes
	}

	seen := make(map[string]bool)
	var images []Image

	matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if e.MaxImages > 0 && len(images) >= e.MaxImages {
			return false
		}

		var raw string
		for _, attr := range attrs {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
				raw = v
				break
			}
		}

		clean := CleanURL(raw, e.BaseURL)
		if clean == "" || seen[clean] || !e.hasImageExtension(clean) {
			return true
		}
		seen[clean] = true

		images = append(images, Image{
			Order:    len(images) + 1,
			URL:      clean,
			Selector: selector,
			Alt:      strings.TrimSpace(s.AttrOr("alt", "")),
		})
		return true
	})
	return images
}

// hasImageExtension matches an extension anywhere in the URL.
func (e *Extractor) hasImageExtension(raw string) bool {
	if len(e.Extensions) == 0 {
		return true
	}
	s := strings.ToLower(raw)
	for _, ext := range e.Extensions {
		if strings.Contains(s, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

var wpMirror = regexp.MustCompile(`i[0-9]\.wp\.com/`)

// CleanURL normalizes an image URL found in a page:
// whitespace is removed, protocol-relative URLs get https, site-relative
// URLs get base, and WordPress CDN mirrors of the base host are unwrapped.
func CleanURL(raw, base string) string {
	s := strings.Join(strings.Fields(raw), "")
	if s == "" || strings.HasPrefix(s, "data:") {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case strings.HasPrefix(s, "/"):
		s = strings.TrimRight(base, "/") + s
	}

	if host := baseHost(base); host != "" {
		if loc := wpMirror.FindStringIndex(s); loc != nil && strings.HasPrefix(s[loc[1]:], host) {
			s = s[:loc[0]] + s[loc[1]:]
		}
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return s
	}

	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(u).String()
}

func baseHost(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Host
}
