package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/config"
	"github.com/jackzampolin/imgbot/internal/fetch"
	"github.com/jackzampolin/imgbot/internal/jobs"
	"github.com/jackzampolin/imgbot/internal/svcctx"
)

// SystemSettings are the tunables in effect. Secrets are never included.
type SystemSettings struct {
	MaxImagesPerChapter  int     `json:"maxImagesPerChapter"`
	MaxChaptersPerCycle  int     `json:"maxChaptersPerCycle"`
	MinPriority          float64 `json:"minPriority"`
	CompletionThreshold  float64 `json:"completionThreshold"`
	FetchAttempts        int     `json:"fetchAttempts"`
	ImageProbeRounds     int     `json:"imageProbeRounds"`
	DelayBetweenImages   string  `json:"delayBetweenImages"`
	DelayBetweenChapters string  `json:"delayBetweenChapters"`
	DelayBetweenGroups   string  `json:"delayBetweenGroups"`
	PageTimeout          string  `json:"pageTimeout"`
	ImageTimeout         string  `json:"imageTimeout"`
}

// ProxyStats describes the rotation pools.
type ProxyStats struct {
	Count      int                 `json:"count"`
	UserAgents int                 `json:"userAgents"`
	Referers   int                 `json:"referers"`
	Health     []fetch.ProxyHealth `json:"health"`
}

// Features summarizes optional behavior.
type Features struct {
	Uploads             bool   `json:"uploads"`
	DirectLinks         bool   `json:"directLinks"`
	MaxImagesPerChapter int    `json:"maxImagesPerChapter"`
	DelayBetweenImages  string `json:"delayBetweenImages"`
}

// StatsResponse is the response for GET /stats.
type StatsResponse struct {
	Envelope     `yaml:",inline"`
	System       SystemSettings       `json:"system"`
	ImageStats   *chapters.ImageStats `json:"imageStats"`
	ChapterStats map[string]any       `json:"chapterStats"`
	Proxies      ProxyStats           `json:"proxies"`
	Checker      jobs.CheckerStatus   `json:"checker"`
	Features     Features             `json:"features"`
}

// StatsEndpoint handles GET /stats.
type StatsEndpoint struct{}

func (e *StatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/stats", e.handler
}

func (e *StatsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Processing statistics
//	@Description	Global image and chapter counters, proxy health and the checker state
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/stats [get]
func (e *StatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := svcctx.StoreFrom(ctx)
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	imageStats, err := store.ImageStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read image stats: %v", err))
		return
	}
	chapterStats, err := store.ChapterStats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read chapter stats: %v", err))
		return
	}

	conf := svcctx.ConfigFrom(ctx)
	if conf == nil {
		conf = config.DefaultConfig()
	}
	resp := StatsResponse{
		Envelope:     Envelope{Success: true},
		System:       settingsFrom(conf),
		ImageStats:   imageStats,
		ChapterStats: chapterStats,
		Features: Features{
			DirectLinks:         true,
			MaxImagesPerChapter: conf.Extract.MaxImages,
			DelayBetweenImages:  conf.Processor.DelayBetweenImages.String(),
		},
	}

	if f := svcctx.FetcherFrom(ctx); f != nil {
		pools := f.Rotator().Pools()
		resp.Proxies = ProxyStats{
			Count:      len(pools.Proxies),
			UserAgents: len(pools.UserAgents),
			Referers:   len(pools.Referers),
			Health:     f.Rotator().Health(),
		}
	}
	if u := svcctx.UploaderFrom(ctx); u != nil {
		resp.Features.Uploads = u.Enabled()
	}
	if c := svcctx.CheckerFrom(ctx); c != nil {
		resp.Checker = c.Status()
	}

	writeJSON(w, http.StatusOK, resp)
}

func settingsFrom(c *config.Config) SystemSettings {
	return SystemSettings{
		MaxImagesPerChapter:  c.Extract.MaxImages,
		MaxChaptersPerCycle:  c.Checker.MaxChaptersPerCycle,
		MinPriority:          c.Checker.MinPriority,
		CompletionThreshold:  c.Processor.CompletionThreshold,
		FetchAttempts:        c.Fetch.MaxRetries,
		ImageProbeRounds:     c.Fetch.ImageProbeRounds,
		DelayBetweenImages:   c.Processor.DelayBetweenImages.String(),
		DelayBetweenChapters: c.Checker.DelayBetweenChapters.String(),
		DelayBetweenGroups:   c.Checker.DelayBetweenGroups.String(),
		PageTimeout:          c.Fetch.PageTimeout.String(),
		ImageTimeout:         c.Fetch.ImageTimeout.String(),
	}
}

func (e *StatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatsResponse
			if err := client.Get(cmd.Context(), "/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
