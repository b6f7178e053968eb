package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/runlog"
	"github.com/jackzampolin/imgbot/internal/svcctx"
)

var runStatuses = map[string]bool{
	string(runlog.StatusRunning):   true,
	string(runlog.StatusCompleted): true,
	string(runlog.StatusPartial):   true,
	string(runlog.StatusSkipped):   true,
	string(runlog.StatusFailed):    true,
}

// ListRunsResponse is the response for GET /runs.
type ListRunsResponse struct {
	Envelope `yaml:",inline"`
	Runs     []runlog.Run `json:"runs"`
	Count    int          `json:"count"`
}

// ListRunsEndpoint handles GET /runs.
type ListRunsEndpoint struct{}

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/runs", e.handler
}

func (e *ListRunsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	List processing runs
//	@Tags		runs
//	@Produce	json
//	@Param		status	query		string	false	"Filter by status"
//	@Param		manga	query		string	false	"Filter by manga ID"
//	@Param		limit	query		int		false	"Maximum runs returned (default 50)"
//	@Success	200		{object}	ListRunsResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	500		{object}	ErrorResponse
//	@Failure	503		{object}	ErrorResponse
//	@Router		/runs [get]
func (e *ListRunsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runs := svcctx.RunLogFrom(r.Context())
	if runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log not available")
		return
	}

	q := r.URL.Query()
	filter := runlog.Filter{MangaID: q.Get("manga")}
	if s := q.Get("status"); s != "" {
		if !runStatuses[s] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown run status %q", s))
			return
		}
		filter.Status = runlog.Status(s)
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	list, err := runs.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{
		Envelope: Envelope{Success: true},
		Runs:     list,
		Count:    len(list),
	})
}

func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var status, manga string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent processing runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if manga != "" {
				q.Set("manga", manga)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/runs"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var resp ListRunsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&manga, "manga", "", "Filter by manga ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum runs returned")
	return cmd
}

// GetRunResponse is the response for GET /runs/{id}.
type GetRunResponse struct {
	Envelope `yaml:",inline"`
	Run      *runlog.Run `json:"run"`
}

// GetRunEndpoint handles GET /runs/{id}.
type GetRunEndpoint struct{}

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/runs/{id}", e.handler
}

func (e *GetRunEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Get a processing run
//	@Tags		runs
//	@Produce	json
//	@Param		id	path		string	true	"Run ID"
//	@Success	200	{object}	GetRunResponse
//	@Failure	404	{object}	ErrorResponse
//	@Failure	500	{object}	ErrorResponse
//	@Failure	503	{object}	ErrorResponse
//	@Router		/runs/{id} [get]
func (e *GetRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	runs := svcctx.RunLogFrom(r.Context())
	if runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log not available")
		return
	}

	run, err := runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, runlog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, GetRunResponse{Envelope: Envelope{Success: true}, Run: run})
}

func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <run_id>",
		Short: "Get one processing run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GetRunResponse
			if err := client.Get(cmd.Context(), "/runs/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
