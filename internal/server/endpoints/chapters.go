package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/svcctx"
)

// ChapterSummary is one listed chapter.
type ChapterSummary struct {
	Group            string  `json:"group"`
	MangaID          string  `json:"mangaId"`
	ChapterID        string  `json:"chapterId"`
	Title            string  `json:"title,omitempty"`
	Status           string  `json:"status"`
	Priority         float64 `json:"priority"`
	TotalImages      int     `json:"totalImages"`
	SuccessfulImages int     `json:"successfulImages"`
	SuccessRate      float64 `json:"successRate"`
	RetryCount       int     `json:"retryCount,omitempty"`
	LastUpdated      int64   `json:"lastUpdated,omitempty"`
}

// ListChaptersResponse is the response for GET /chapters.
type ListChaptersResponse struct {
	Envelope `yaml:",inline"`
	Groups   []string         `json:"groups"`
	Chapters []ChapterSummary `json:"chapters"`
	Count    int              `json:"count"`
}

// ListChaptersEndpoint handles GET /chapters.
type ListChaptersEndpoint struct{}

func (e *ListChaptersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/chapters", e.handler
}

func (e *ListChaptersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List chapters
//	@Description	List chapters with their status and checker priority, highest priority first
//	@Tags			chapters
//	@Produce		json
//	@Param			group	query		string	false	"Limit to one group"
//	@Param			status	query		string	false	"Filter by status (pending_images, processing, completed, partial, failed, error, unknown)"
//	@Success		200		{object}	ListChaptersResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/chapters [get]
func (e *ListChaptersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := svcctx.StoreFrom(ctx)
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	q := r.URL.Query()
	rawStatus := q.Get("status")
	status := chapters.ParseStatus(rawStatus)
	if rawStatus != "" && rawStatus != "unknown" && status == chapters.StatusUnknown {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", rawStatus))
		return
	}

	var groups []string
	if group := q.Get("group"); group != "" {
		if err := chapters.ValidateGroup(group); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		groups = []string{group}
	} else {
		var err error
		groups, err = store.Groups(ctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list groups: %v", err))
			return
		}
	}

	now := time.Now()
	list := []ChapterSummary{}
	for _, group := range groups {
		entries, err := store.ListGroup(ctx, group)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list %s: %v", group, err))
			return
		}
		for _, entry := range entries {
			rec := entry.Record
			if rawStatus != "" && rec.Status != status {
				continue
			}
			list = append(list, ChapterSummary{
				Group:            entry.Key.Group,
				MangaID:          entry.Key.MangaID,
				ChapterID:        entry.Key.ChapterID,
				Title:            rec.Title,
				Status:           statusName(rec.Status),
				Priority:         chapters.Priority(rec, now),
				TotalImages:      rec.TotalImages,
				SuccessfulImages: rec.SuccessfulImages,
				SuccessRate:      rec.SuccessRate,
				RetryCount:       rec.RetryCount,
				LastUpdated:      rec.LastUpdated,
			})
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority > list[j].Priority })

	writeJSON(w, http.StatusOK, ListChaptersResponse{
		Envelope: Envelope{Success: true},
		Groups:   groups,
		Chapters: list,
		Count:    len(list),
	})
}

func statusName(s chapters.Status) string {
	if s == chapters.StatusUnknown {
		return "unknown"
	}
	return string(s)
}

func (e *ListChaptersEndpoint) Command(getServerURL func() string) *cobra.Command {
	var group, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chapters with status and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			q := url.Values{}
			if group != "" {
				q.Set("group", group)
			}
			if status != "" {
				q.Set("status", status)
			}
			path := "/chapters"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var resp ListChaptersResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Limit to one group, e.g. ImgChapter_1")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}
