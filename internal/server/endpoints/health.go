package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/jobs"
	"github.com/jackzampolin/imgbot/internal/svcctx"
	"github.com/jackzampolin/imgbot/version"
)

// Envelope is embedded in every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Envelope `yaml:",inline"`
	Status   string `json:"status"`
	Firebase string `json:"firebase,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Server health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Envelope: Envelope{Success: true}, Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server readiness
//	@Description	Ready only when the chapter database answers
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Envelope: Envelope{Success: true}, Status: "ok", Firebase: "ok"}

	store := svcctx.StoreFrom(r.Context())
	switch {
	case store == nil:
		resp.Firebase = "not_initialized"
	case !store.Configured():
		resp.Firebase = "not_configured"
	default:
		if err := store.DB().HealthCheck(r.Context()); err != nil {
			resp.Firebase = "unhealthy"
			resp.Error = err.Error()
		}
	}

	if resp.Firebase != "ok" {
		resp.Success = false
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes Firebase)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:   %s\n", resp.Status)
			fmt.Printf("Firebase: %s\n", resp.Firebase)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Envelope `yaml:",inline"`
	Server   string             `json:"server"`
	Version  string             `json:"version"`
	Firebase FirebaseStatus     `json:"firebase"`
	Uploads  bool               `json:"uploads"`
	Checker  jobs.CheckerStatus `json:"checker"`
	InFlight []string           `json:"inFlight"`
}

// FirebaseStatus shows whether the database is configured and reachable.
type FirebaseStatus struct {
	Configured bool   `json:"configured"`
	Health     string `json:"health"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Detailed server status
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	StatusResponse
//	@Router		/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Envelope: Envelope{Success: true},
		Server:   "running",
		Version:  version.GitRelease,
		InFlight: []string{},
	}

	resp.Firebase.Health = "not_initialized"
	if store := svcctx.StoreFrom(ctx); store != nil {
		resp.Firebase.Configured = store.Configured()
		switch {
		case !store.Configured():
			resp.Firebase.Health = "not_configured"
		case store.DB().HealthCheck(ctx) != nil:
			resp.Firebase.Health = "unhealthy"
		default:
			resp.Firebase.Health = "healthy"
		}
	}

	if u := svcctx.UploaderFrom(ctx); u != nil {
		resp.Uploads = u.Enabled()
	}
	if c := svcctx.CheckerFrom(ctx); c != nil {
		resp.Checker = c.Status()
	}
	if p := svcctx.ProcessorFrom(ctx); p != nil {
		resp.InFlight = p.InFlight()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
