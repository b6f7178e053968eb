package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/jobs"
	"github.com/jackzampolin/imgbot/internal/runlog"
	"github.com/jackzampolin/imgbot/internal/svcctx"
)

const groupRequiredMsg = "group query parameter is required (e.g. ?group=ImgChapter_1)"

// ProcessChapterResponse is returned when a chapter run was started.
type ProcessChapterResponse struct {
	Envelope  `yaml:",inline"`
	RunID     string `json:"runId"`
	MangaID   string `json:"mangaId"`
	ChapterID string `json:"chapterId"`
	Group     string `json:"group"`
	Timestamp int64  `json:"timestamp"`
}

// ProcessChapterEndpoint handles GET /process-chapter/{mangaId}/{chapterId}.
type ProcessChapterEndpoint struct{}

func (e *ProcessChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/process-chapter/{mangaId}/{chapterId}", e.handler
}

func (e *ProcessChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process a chapter
//	@Description	Start resolving a chapter's images in the background
//	@Tags			chapters
//	@Produce		json
//	@Param			mangaId		path		string	true	"Manga ID"
//	@Param			chapterId	path		string	true	"Chapter ID"
//	@Param			group		query		string	true	"Chapter group, e.g. ImgChapter_1"
//	@Success		202			{object}	ProcessChapterResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		409			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/process-chapter/{mangaId}/{chapterId} [get]
func (e *ProcessChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, groupRequiredMsg)
		return
	}
	key := chapters.Key{Group: group, MangaID: r.PathValue("mangaId"), ChapterID: r.PathValue("chapterId")}
	if err := key.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	proc := svcctx.ProcessorFrom(r.Context())
	if proc == nil {
		writeError(w, http.StatusServiceUnavailable, "processor not initialized")
		return
	}

	runID, err := proc.Dispatch(key, runlog.TriggerHTTP)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ProcessChapterResponse{
		Envelope:  Envelope{Success: true, Message: "image processing started in the background"},
		RunID:     runID,
		MangaID:   key.MangaID,
		ChapterID: key.ChapterID,
		Group:     key.Group,
		Timestamp: time.Now().UnixMilli(),
	})
}

func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chapters.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (e *ProcessChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "process <manga_id> <chapter_id>",
		Short: "Start processing one chapter",
		Long: `Start resolving the images of one chapter.

The command returns immediately with a run ID.
Use 'imgbot api runs get <run-id>' to check the outcome.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := fmt.Sprintf("/process-chapter/%s/%s?group=%s",
				url.PathEscape(args[0]), url.PathEscape(args[1]), url.QueryEscape(group))
			var resp ProcessChapterResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Chapter group, e.g. ImgChapter_1")
	cmd.MarkFlagRequired("group")
	return cmd
}

// ProcessNextResponse describes the chapter picked by /process-next.
// Key fields are empty when nothing was pending.
type ProcessNextResponse struct {
	Envelope  `yaml:",inline"`
	RunID     string  `json:"runId,omitempty"`
	MangaID   string  `json:"mangaId,omitempty"`
	ChapterID string  `json:"chapterId,omitempty"`
	Group     string  `json:"group,omitempty"`
	Status    string  `json:"status,omitempty"`
	Priority  float64 `json:"priority,omitempty"`
}

// ProcessNextEndpoint handles GET /process-next.
type ProcessNextEndpoint struct{}

func (e *ProcessNextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/process-next", e.handler
}

func (e *ProcessNextEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process the next chapter
//	@Description	Start the highest-priority pending chapter in the background
//	@Tags			chapters
//	@Produce		json
//	@Success		200	{object}	ProcessNextResponse	"nothing pending"
//	@Success		202	{object}	ProcessNextResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/process-next [get]
func (e *ProcessNextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	checker := svcctx.CheckerFrom(r.Context())
	if checker == nil {
		writeError(w, http.StatusServiceUnavailable, "checker not initialized")
		return
	}

	cand, runID, err := checker.ProcessNext(r.Context())
	switch {
	case err != nil && cand == nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to pick next chapter: %v", err))
		return
	case err != nil:
		writeDispatchError(w, err)
		return
	case cand == nil:
		writeJSON(w, http.StatusOK, ProcessNextResponse{Envelope: Envelope{Success: true, Message: "no pending chapters"}})
		return
	}

	resp := ProcessNextResponse{
		Envelope:  Envelope{Success: true, Message: "image processing started in the background"},
		RunID:     runID,
		MangaID:   cand.Key.MangaID,
		ChapterID: cand.Key.ChapterID,
		Group:     cand.Key.Group,
		Priority:  cand.Priority,
	}
	if cand.Record != nil {
		resp.Status = string(cand.Record.Status)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (e *ProcessNextEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Start processing the highest-priority chapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProcessNextResponse
			if err := client.Get(cmd.Context(), "/process-next", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
