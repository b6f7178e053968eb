package endpoints

import (
	"bytes"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/config"
	"github.com/jackzampolin/imgbot/internal/svcctx"
	"github.com/jackzampolin/imgbot/version"
	"github.com/jackzampolin/imgbot/web"
)

// SampleChapterURL is linked from the status page as a /test-proxy example.
const SampleChapterURL = "https://azoramoon.com/chapter/black-haze-remake-chapter-1"

// IndexEndpoint serves the HTML status page.
type IndexEndpoint struct{}

var _ api.Endpoint = (*IndexEndpoint)(nil)

func (e *IndexEndpoint) Route() (string, string, http.HandlerFunc) {
	// {$} matches only the root, not every unmatched path
	return "GET", "/{$}", e.handler
}

func (e *IndexEndpoint) RequiresInit() bool {
	return false
}

func (e *IndexEndpoint) Command(_ func() string) *cobra.Command {
	return nil // No CLI command for the status page
}

func (e *IndexEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conf := svcctx.ConfigFrom(ctx)
	if conf == nil {
		conf = config.DefaultConfig()
	}

	data := web.IndexData{
		Version:             version.GitRelease,
		MaxImagesPerChapter: conf.Extract.MaxImages,
		MaxChaptersPerCycle: conf.Checker.MaxChaptersPerCycle,
		SampleChapterURL:    SampleChapterURL,
	}
	if s := svcctx.StoreFrom(ctx); s != nil {
		data.FirebaseConfigured = s.Configured()
	}
	if c := svcctx.CheckerFrom(ctx); c != nil {
		st := c.Status()
		data.CheckerRunning = st.Running
		data.Cycles = st.Cycles
		if st.NextCycleAt != nil {
			data.NextCycleAt = st.NextCycleAt.Format(time.RFC3339)
		}
	}
	if u := svcctx.UploaderFrom(ctx); u != nil {
		data.Uploads = u.Enabled()
	}
	if f := svcctx.FetcherFrom(ctx); f != nil {
		pools := f.Rotator().Pools()
		data.Proxies = len(pools.Proxies)
		data.UserAgents = len(pools.UserAgents)
		data.Referers = len(pools.Referers)
	}
	if p := svcctx.ProcessorFrom(ctx); p != nil {
		data.InFlight = p.InFlight()
	}

	var buf bytes.Buffer
	if err := web.RenderIndex(&buf, data); err != nil {
		http.Error(w, "Status page not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
