package endpoints

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/backend"
	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/metrics"
	"github.com/jackzampolin/storyforge/internal/planner"
	"github.com/jackzampolin/storyforge/internal/svcctx"
	"github.com/jackzampolin/storyforge/internal/testutil"
)

type stubPlanner struct{}

func (stubPlanner) result(kind string) (planner.Result, error) {
	return planner.Result{Outcome: planner.OutcomeCompleted, Kind: kind, Total: 1, Succeeded: 1}, nil
}

func (p stubPlanner) Sheets(context.Context, planner.Request) (planner.Result, error) {
	return p.result("sheets")
}
func (p stubPlanner) Images(context.Context, planner.Request) (planner.Result, error) {
	return p.result("image")
}
func (p stubPlanner) Videos(context.Context, planner.Request) (planner.Result, error) {
	return p.result("video")
}
func (p stubPlanner) Audio(context.Context, planner.AudioRequest) (planner.Result, error) {
	return p.result("audio")
}
func (p stubPlanner) OptimizeImagePrompts(context.Context, planner.Request) (planner.Result, error) {
	return p.result("optimize_image")
}
func (p stubPlanner) OptimizeVideoPrompts(context.Context, planner.Request) (planner.Result, error) {
	return p.result("optimize_video")
}
func (p stubPlanner) Pipeline(context.Context, planner.Request) (planner.Result, error) {
	return p.result("pipeline")
}

// newTestServer wires every endpoint behind the services middleware.
func newTestServer(t *testing.T, backendHandler http.HandlerFunc) (*httptest.Server, *svcctx.Services) {
	t.Helper()

	services := &svcctx.Services{
		Batches: batches.NewManager(batches.Config{Planner: stubPlanner{}}),
		Metrics: metrics.New(),
	}
	if backendHandler != nil {
		fake := httptest.NewServer(backendHandler)
		t.Cleanup(fake.Close)
		services.Backend = backend.New(backend.Config{BaseURL: fake.URL, StatusRetries: 1})
	}
	return serveEndpoints(t, services), services
}

// serveEndpoints serves every endpoint with services attached.
func serveEndpoints(t *testing.T, services *svcctx.Services) *httptest.Server {
	t.Helper()

	registry := api.NewRegistry()
	for _, ep := range All() {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var resp HealthResponse
	if err := api.NewClient(srv.URL).Get(context.Background(), "/health", &resp); err != nil {
		t.Fatalf("Get(/health) error = %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestStatus(t *testing.T) {
	t.Run("backend ok", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/status":
				w.Write([]byte(`{"success":true,"project_name":"demo","status":{"character_sheet":"completed","pages":{"0":{"image":"completed"},"1":{"image":null}}}}`))
			case "/api/config":
				w.Write([]byte(`{"success":true,"config":{"generation":{"concurrency":{"image":4,"video":1}}}}`))
			default:
				http.NotFound(w, r)
			}
		})

		var resp StatusResponse
		if err := api.NewClient(srv.URL).Get(context.Background(), "/status", &resp); err != nil {
			t.Fatalf("Get(/status) error = %v", err)
		}
		if resp.Backend != "ok" {
			t.Fatalf("Backend = %q (error %q), want ok", resp.Backend, resp.Error)
		}
		if resp.Summary == nil || resp.Summary.Pages != 2 || resp.Summary.Image.Completed != 1 {
			t.Errorf("Summary = %+v", resp.Summary)
		}
		if resp.Concurrency == nil || resp.Concurrency.Image != 4 {
			t.Errorf("Concurrency = %+v, want image 4", resp.Concurrency)
		}
	})

	t.Run("backend down", func(t *testing.T) {
		srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		var resp StatusResponse
		if err := api.NewClient(srv.URL).Get(context.Background(), "/status", &resp); err != nil {
			t.Fatalf("Get(/status) error = %v", err)
		}
		if resp.Backend != "unavailable" || resp.Error == "" {
			t.Errorf("resp = %+v, want unavailable with error", resp)
		}
	})
}

func TestBatchesLifecycle(t *testing.T) {
	srv, services := newTestServer(t, nil)
	client := api.NewClient(srv.URL)
	ctx := context.Background()

	var started batches.Record
	if err := client.Post(ctx, "/batches", batches.Spec{Kind: batches.KindImages, Pages: []int{1, 2}}, &started); err != nil {
		t.Fatalf("POST /batches error = %v", err)
	}
	if started.ID == "" || started.Spec.Kind != batches.KindImages {
		t.Fatalf("started = %+v", started)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := services.Batches.Wait(waitCtx, started.ID); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	var got batches.Record
	if err := client.Get(ctx, "/batches/"+started.ID, &got); err != nil {
		t.Fatalf("GET /batches/{id} error = %v", err)
	}
	if got.State != batches.StateCompleted || got.Result == nil || got.Result.Succeeded != 1 {
		t.Errorf("got = %+v", got)
	}

	var list ListBatchesResponse
	if err := client.Get(ctx, "/batches?kind=images&limit=5", &list); err != nil {
		t.Fatalf("GET /batches error = %v", err)
	}
	if len(list.Batches) != 1 {
		t.Errorf("List = %d batches, want 1", len(list.Batches))
	}

	var stopped batches.Record
	if err := client.Post(ctx, "/batches/"+started.ID+"/stop", nil, &stopped); err != nil {
		t.Fatalf("POST stop error = %v", err)
	}
	if stopped.State != batches.StateCompleted {
		t.Errorf("stopping a finished batch changed state to %q", stopped.State)
	}
}

func TestStopBatch_InFlightJobCompletes(t *testing.T) {
	fb := testutil.NewFakeBackend(t, 3)
	started, release := fb.Hold("image/0")
	defer release()

	client := backend.New(backend.Config{BaseURL: fb.URL, StatusRetries: 1})
	p := planner.New(planner.Config{
		Backend:      client,
		ImageCeiling: 1,
		Logger:       testutil.Logger(),
	})
	services := &svcctx.Services{
		Backend: client,
		Batches: batches.NewManager(batches.Config{Planner: p, Logger: testutil.Logger()}),
	}
	srv := serveEndpoints(t, services)
	c := api.NewClient(srv.URL)
	ctx := context.Background()

	var rec batches.Record
	if err := c.Post(ctx, "/batches", batches.Spec{Kind: batches.KindImages}, &rec); err != nil {
		t.Fatalf("POST /batches error = %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first image call never reached the backend")
	}

	var stopped batches.Record
	if err := c.Post(ctx, "/batches/"+rec.ID+"/stop", nil, &stopped); err != nil {
		t.Fatalf("POST stop error = %v", err)
	}
	if stopped.Progress.InFlight != 1 || stopped.Progress.Pending != 0 {
		t.Errorf("Progress after stop = %+v, want 1 in flight, 0 pending", stopped.Progress)
	}
	release()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done, err := services.Batches.Wait(waitCtx, rec.ID)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if done.State != batches.StateCancelled {
		t.Errorf("State = %q, want cancelled", done.State)
	}
	if done.Result == nil || done.Result.Total != 3 || done.Result.Succeeded != 1 || done.Result.Failed != 0 {
		t.Errorf("Result = %+v, want total 3, 1 succeeded, 0 failed", done.Result)
	}
	if calls := fb.Calls(); len(calls) != 1 || calls[0] != "image/0" {
		t.Errorf("backend calls = %v, want [image/0]", calls)
	}
}

func TestBatchesErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad body", "POST", "/batches", "{", http.StatusBadRequest},
		{"missing kind", "POST", "/batches", `{}`, http.StatusBadRequest},
		{"unknown kind", "POST", "/batches", `{"kind":"teleport"}`, http.StatusBadRequest},
		{"bad language", "POST", "/batches", `{"kind":"audio","languages":["fr"]}`, http.StatusBadRequest},
		{"bad limit", "GET", "/batches?limit=x", "", http.StatusBadRequest},
		{"unknown id", "GET", "/batches/nope", "", http.StatusNotFound},
		{"stop unknown", "POST", "/batches/nope/stop", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
				t.Errorf("expected JSON error body, got err=%v resp=%+v", err, errResp)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, services := newTestServer(t, nil)
	services.Metrics.BatchFinished("image", "completed", time.Second)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `storyforge_batches_total{kind="image",outcome="completed"} 1`) {
		t.Errorf("metrics body missing batch counter:\n%s", body)
	}
}

func TestParsePages(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"1", []int{1}, false},
		{"1, 3,5", []int{1, 3, 5}, false},
		{"a", nil, true},
		{"-1", nil, true},
	}
	for _, tt := range tests {
		got, err := ParsePages(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePages(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParsePages(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParsePages(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}
