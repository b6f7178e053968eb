// Package web provides the embedded status page for imgbot.
package web

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// IndexData fills the status page.
type IndexData struct {
	Version             string
	FirebaseConfigured  bool
	CheckerRunning      bool
	Cycles              int
	NextCycleAt         string
	Uploads             bool
	MaxImagesPerChapter int
	MaxChaptersPerCycle int
	Proxies             int
	UserAgents          int
	Referers            int
	InFlight            []string
	SampleChapterURL    string
}

// RenderIndex writes the status page.
func RenderIndex(w io.Writer, data IndexData) error {
	return templates.ExecuteTemplate(w, "index.html", data)
}
