package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// FakeBackend is an in-process story backend. Generate calls mark their
// unit completed so a second batch sees them as done.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	pages     int
	completed map[string]bool
	fail      map[string]bool
	calls     []string
	prompts   map[string]string
	holds     map[string]*hold
}

type hold struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewFakeBackend starts a backend with the given number of story pages.
func NewFakeBackend(t *testing.T, pages int) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		pages:     pages,
		completed: make(map[string]bool),
		fail:      make(map[string]bool),
		prompts:   make(map[string]string),
		holds:     make(map[string]*hold),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", f.handleStatus)
	mux.HandleFunc("GET /api/config", f.handleConfig)
	mux.HandleFunc("GET /api/story", f.handleStory)
	mux.HandleFunc("POST /api/story/update-prompt", f.handleUpdatePrompt)
	mux.HandleFunc("POST /api/optimize/{field}", f.handleOptimize)
	mux.HandleFunc("POST /api/generate/project-srt", f.unit("srt"))
	mux.HandleFunc("POST /api/generate/character-sheet", f.unit("character_sheet"))
	mux.HandleFunc("POST /api/generate/scene-sheet", f.unit("scene_sheet"))
	mux.HandleFunc("POST /api/generate/item-sheet", f.unit("item_sheet"))
	mux.HandleFunc("POST /api/generate/page-image/{i}", f.pageUnit("image"))
	mux.HandleFunc("POST /api/generate/page-video/{i}", f.pageUnit("video"))
	mux.HandleFunc("POST /api/generate/page-audio/{i}", f.pageUnit("audio"))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Complete marks a unit completed, e.g. "image/3" or "audio/2/en".
func (f *FakeBackend) Complete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[key] = true
}

// Fail makes generate calls for key report {success:false}.
func (f *FakeBackend) Fail(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[key] = true
}

// Hold makes the generate call for key block until release is called or
// the client goes away. started is closed once the call arrives.
func (f *FakeBackend) Hold(key string) (started <-chan struct{}, release func()) {
	h := &hold{started: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[key] = h
	f.mu.Unlock()

	var once sync.Once
	return h.started, func() { once.Do(func() { close(h.release) }) }
}

// Calls returns generate calls in arrival order.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Prompt returns a persisted prompt, keyed "image_prompt/3".
func (f *FakeBackend) Prompt(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[key]
}

func (f *FakeBackend) unit(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.generate(w, r, key)
	}
}

func (f *FakeBackend) pageUnit(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := kind + "/" + r.PathValue("i")
		if kind == "audio" {
			lang := r.URL.Query().Get("lang")
			if lang == "" {
				lang = "cn"
			}
			key += "/" + lang
		}
		f.generate(w, r, key)
	}
}

func (f *FakeBackend) generate(w http.ResponseWriter, r *http.Request, key string) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	h := f.holds[key]
	f.mu.Unlock()

	if h != nil {
		h.once.Do(func() { close(h.started) })
		select {
		case <-h.release:
		case <-r.Context().Done():
			return
		}
	}

	f.mu.Lock()
	failed := f.fail[key]
	if !failed {
		f.completed[key] = true
	}
	f.mu.Unlock()

	if failed {
		writeBody(w, map[string]any{"success": false, "error": "generation failed: " + key})
		return
	}
	writeBody(w, map[string]any{"success": true, "message": "ok"})
}

func (f *FakeBackend) state(key string) any {
	if f.completed[key] {
		return "completed"
	}
	if f.fail[key] {
		return "failed"
	}
	return nil
}

func (f *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pages := map[string]any{}
	for i := 0; i < f.pages; i++ {
		idx := strconv.Itoa(i)
		pages[idx] = map[string]any{
			"image": f.state("image/" + idx),
			"video": f.state("video/" + idx),
			"audio": map[string]any{
				"cn": f.state("audio/" + idx + "/cn"),
				"en": f.state("audio/" + idx + "/en"),
			},
			"selected": false,
		}
	}
	writeBody(w, map[string]any{
		"success":      true,
		"project_name": "fake",
		"status": map[string]any{
			"character_sheet": f.state("character_sheet"),
			"scene_sheet":     f.state("scene_sheet"),
			"item_sheet":      f.state("item_sheet"),
			"srt":             f.state("srt"),
			"pages":           pages,
		},
	})
}

func (f *FakeBackend) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeBody(w, map[string]any{
		"success": true,
		"config": map[string]any{
			"generation": map[string]any{
				"video_max_retries": 10,
				"concurrency":       map[string]any{"image": 2, "video": 1},
			},
		},
	})
}

func (f *FakeBackend) handleStory(w http.ResponseWriter, r *http.Request) {
	script := make([]map[string]any, 0, f.pages)
	for i := 0; i < f.pages; i++ {
		script = append(script, map[string]any{
			"page_index":    i,
			"image_prompt":  fmt.Sprintf("image prompt %d", i),
			"video_prompt":  fmt.Sprintf("video prompt %d", i),
			"narration":     fmt.Sprintf("旁白 %d", i),
			"eng_narration": fmt.Sprintf("narration %d", i),
		})
	}
	writeBody(w, map[string]any{
		"success": true,
		"data":    map[string]any{"title": "fake story", "script": script},
	})
}

func (f *FakeBackend) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageIndex  int    `json:"page_index"`
		PromptType string `json:"prompt_type"`
		Value      string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBody(w, map[string]any{"success": false, "error": "invalid body"})
		return
	}
	f.mu.Lock()
	f.prompts[fmt.Sprintf("%s/%d", req.PromptType, req.PageIndex)] = req.Value
	f.mu.Unlock()
	writeBody(w, map[string]any{"success": true})
}

func (f *FakeBackend) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeBody(w, map[string]any{
		"success":    true,
		"new_prompt": fmt.Sprintf("optimized %s", r.PathValue("field")),
	})
}

func writeBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
