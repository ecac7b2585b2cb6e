package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/svcctx"
)

// batchGroup nests batch commands under "storyforge api batches".
type batchGroup struct{}

func (batchGroup) Group() (string, string) { return "batches", "Start, inspect and stop batches" }

// StartBatchEndpoint handles POST /batches.
type StartBatchEndpoint struct{ batchGroup }

func (e *StartBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/batches", e.handler
}

func (e *StartBatchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Start a batch
//	@Description	Starts a sheets, images, videos, audio, optimize or pipeline batch in the background
//	@Tags			batches
//	@Accept			json
//	@Produce		json
//	@Param			request	body		batches.Spec	true	"Batch spec"
//	@Success		202		{object}	batches.Record
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/batches [post]
func (e *StartBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var spec batches.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if spec.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	bm := svcctx.BatchesFrom(r.Context())
	if bm == nil {
		writeError(w, http.StatusServiceUnavailable, "batch manager not initialized")
		return
	}

	rec, err := bm.Start(r.Context(), spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, rec)
}

func (e *StartBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var spec batches.Spec
	var pages string
	cmd := &cobra.Command{
		Use:       "start <kind>",
		Short:     "Start a batch on the server",
		Long:      "Start a batch. Kinds: " + kindList() + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := batches.ParseKind(args[0])
			if err != nil {
				return err
			}
			spec.Kind = kind
			if spec.Pages, err = ParsePages(pages); err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp batches.Record
			if err := client.Post(cmd.Context(), "/batches", spec, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&pages, "pages", "", "Comma-separated page indexes (default all)")
	cmd.Flags().BoolVar(&spec.OnlySelected, "selected", false, "Only pages flagged selected")
	cmd.Flags().StringSliceVar(&spec.Languages, "lang", nil, "Audio languages (cn, en)")
	cmd.Flags().BoolVar(&spec.SRT, "srt", false, "Generate subtitles after an audio batch")
	return cmd
}

// ListBatchesResponse is the response for listing batches.
type ListBatchesResponse struct {
	Batches []*batches.Record `json:"batches" yaml:"batches"`
}

// ListBatchesEndpoint handles GET /batches.
type ListBatchesEndpoint struct{ batchGroup }

func (e *ListBatchesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/batches", e.handler
}

func (e *ListBatchesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List batches
//	@Description	List batches newest first with optional filtering
//	@Tags			batches
//	@Produce		json
//	@Param			state	query		string	false	"Filter by state"
//	@Param			kind	query		string	false	"Filter by kind"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	ListBatchesResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/batches [get]
func (e *ListBatchesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bm := svcctx.BatchesFrom(r.Context())
	if bm == nil {
		writeError(w, http.StatusServiceUnavailable, "batch manager not initialized")
		return
	}

	q := r.URL.Query()
	filter := batches.ListFilter{
		State: batches.State(q.Get("state")),
		Kind:  batches.Kind(q.Get("kind")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	writeJSON(w, http.StatusOK, ListBatchesResponse{Batches: bm.List(filter)})
}

func (e *ListBatchesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var state, kind string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			path := "/batches"
			params := url.Values{}
			if state != "" {
				params.Set("state", state)
			}
			if kind != "" {
				params.Set("kind", kind)
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp ListBatchesResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (running, completed, failed, cancelled)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = all)")
	return cmd
}

// GetBatchEndpoint handles GET /batches/{id}.
type GetBatchEndpoint struct{ batchGroup }

func (e *GetBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/batches/{id}", e.handler
}

func (e *GetBatchEndpoint) RequiresInit() bool { return true }

func (e *GetBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "batch id is required")
		return
	}

	bm := svcctx.BatchesFrom(r.Context())
	if bm == nil {
		writeError(w, http.StatusServiceUnavailable, "batch manager not initialized")
		return
	}

	rec, err := bm.Get(id)
	if err != nil {
		writeBatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *GetBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a batch by ID",
		Long: `Get a batch record.

Running batches report live queue progress: total, completed, failed,
in-flight and pending jobs. Finished batches carry their result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp batches.Record
			if err := client.Get(cmd.Context(), "/batches/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StopBatchEndpoint handles POST /batches/{id}/stop.
type StopBatchEndpoint struct{ batchGroup }

func (e *StopBatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/batches/{id}/stop", e.handler
}

func (e *StopBatchEndpoint) RequiresInit() bool { return true }

func (e *StopBatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bm := svcctx.BatchesFrom(r.Context())
	if bm == nil {
		writeError(w, http.StatusServiceUnavailable, "batch manager not initialized")
		return
	}

	rec, err := bm.Stop(r.PathValue("id"))
	if err != nil {
		writeBatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *StopBatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running batch",
		Long: `Stop a running batch. Jobs already in flight finish and are counted;
pending jobs are discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp batches.Record
			if err := client.Post(cmd.Context(), "/batches/"+url.PathEscape(args[0])+"/stop", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

func writeBatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, batches.ErrNotFound) {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// ParsePages parses a comma-separated list of page indexes.
func ParsePages(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page index %q", part)
		}
		pages = append(pages, n)
	}
	return pages, nil
}

func kindNames() []string {
	names := make([]string, len(batches.Kinds))
	for i, k := range batches.Kinds {
		names[i] = string(k)
	}
	return names
}

func kindList() string {
	return strings.Join(kindNames(), ", ")
}
