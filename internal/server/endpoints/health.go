package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/backend"
	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/status"
	"github.com/jackzampolin/storyforge/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status" yaml:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
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
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse reports server state and the backend's completion summary.
type StatusResponse struct {
	Server         string               `json:"server" yaml:"server"`
	Backend        string               `json:"backend" yaml:"backend"`
	BackendURL     string               `json:"backend_url" yaml:"backend_url"`
	Error          string               `json:"error,omitempty" yaml:"error,omitempty"`
	Summary        *status.Summary      `json:"summary,omitempty" yaml:"summary,omitempty"`
	Concurrency    *backend.Concurrency `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	RunningBatches int                  `json:"running_batches" yaml:"running_batches"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Server and backend status
//	@Description	Summarizes sheet, page and audio completion as reported by the backend
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{Server: "running", Backend: "unavailable"}

	if bm := svcctx.BatchesFrom(ctx); bm != nil {
		resp.RunningBatches = len(bm.List(batches.ListFilter{State: batches.StateRunning}))
	}

	client := svcctx.BackendFrom(ctx)
	if client == nil {
		resp.Error = "backend client not initialized"
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.BackendURL = client.BaseURL()

	snap, err := client.FetchStatus(ctx)
	if err != nil {
		resp.Error = err.Error()
		if errors.Is(err, backend.ErrStatusUnavailable) {
			svcctx.LoggerFrom(ctx).Warn("status unavailable", "error", err)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Backend = "ok"
	sum := snap.Summarize()
	resp.Summary = &sum

	if conc, err := client.Concurrency(ctx); err == nil {
		resp.Concurrency = &conc
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get server and backend status",
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
