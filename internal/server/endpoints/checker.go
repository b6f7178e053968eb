package endpoints

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/jobs"
	"github.com/jackzampolin/imgbot/internal/svcctx"
)

// CheckerResponse reports a start or stop request.
type CheckerResponse struct {
	Envelope `yaml:",inline"`
	Started  bool               `json:"started"`
	Stopped  bool               `json:"stopped"`
	Checker  jobs.CheckerStatus `json:"checker"`
}

// StartCheckEndpoint handles GET /start-continuous-check.
type StartCheckEndpoint struct{}

func (e *StartCheckEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/start-continuous-check", e.handler
}

func (e *StartCheckEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary	Start the continuous check
//	@Tags		checker
//	@Produce	json
//	@Success	200	{object}	CheckerResponse
//	@Failure	503	{object}	ErrorResponse
//	@Router		/start-continuous-check [get]
func (e *StartCheckEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	checker := svcctx.CheckerFrom(r.Context())
	if checker == nil {
		writeError(w, http.StatusServiceUnavailable, "checker not initialized")
		return
	}

	// The loop outlives the request; the server stops it on shutdown.
	started := checker.Start(context.WithoutCancel(r.Context()))
	msg := "continuous check started"
	if !started {
		msg = "continuous check already running"
	}
	writeJSON(w, http.StatusOK, CheckerResponse{
		Envelope: Envelope{Success: true, Message: msg},
		Started:  started,
		Checker:  checker.Status(),
	})
}

func (e *StartCheckEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the continuous chapter check",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CheckerResponse
			if err := client.Get(cmd.Context(), "/start-continuous-check", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StopCheckEndpoint handles GET /stop-continuous-check.
type StopCheckEndpoint struct{}

func (e *StopCheckEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/stop-continuous-check", e.handler
}

func (e *StopCheckEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Stop the continuous check
//	@Description	Waits for the chapter in progress to wind down
//	@Tags			checker
//	@Produce		json
//	@Success		200	{object}	CheckerResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/stop-continuous-check [get]
func (e *StopCheckEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	checker := svcctx.CheckerFrom(r.Context())
	if checker == nil {
		writeError(w, http.StatusServiceUnavailable, "checker not initialized")
		return
	}

	stopped := checker.Stop()
	msg := "continuous check stopped"
	if !stopped {
		msg = "continuous check was not running"
	}
	writeJSON(w, http.StatusOK, CheckerResponse{
		Envelope: Envelope{Success: true, Message: msg},
		Stopped:  stopped,
		Checker:  checker.Status(),
	})
}

func (e *StopCheckEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the continuous chapter check",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CheckerResponse
			if err := client.Get(cmd.Context(), "/stop-continuous-check", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
