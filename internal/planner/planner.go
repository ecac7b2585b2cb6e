// Package planner turns backend state into batches of generate jobs.
//
// Every batch follows the same template: read a fresh status snapshot,
// skip units that are already completed, resolve a concurrency ceiling,
// run the remaining units through a queue.Queue and report a Result once
// the queue drains. Snapshot failures are tolerated (the batch proceeds as
// if nothing were completed); story and configuration failures are setup
// failures and no queue is built.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/storyforge/internal/backend"
	"github.com/jackzampolin/storyforge/internal/optimize"
	"github.com/jackzampolin/storyforge/internal/queue"
	"github.com/jackzampolin/storyforge/internal/status"
)

// ErrSetup marks failures that happen before any job runs.
var ErrSetup = errors.New("setup failed")

// errStopped is reported in Result.Error when a batch was stopped.
var errStopped = errors.New("batch stopped")

// DefaultStaggerInterval spaces out the first remote calls of a batch.
const DefaultStaggerInterval = 3 * time.Second

// DefaultOptimizeCeiling bounds concurrent prompt optimizations.
const DefaultOptimizeCeiling = 3

// Backend is everything the planner needs from the remote service.
// *backend.Client implements it.
type Backend interface {
	FetchStatus(ctx context.Context) (*status.Snapshot, error)
	RunUnit(ctx context.Context, kind status.Kind, unit int, lang status.Lang) error
	Concurrency(ctx context.Context) (backend.Concurrency, error)
	Story(ctx context.Context) (*backend.Story, error)
	UpdatePrompt(ctx context.Context, page int, field backend.PromptField, value string) error
	GenerateSRT(ctx context.Context) error
}

// Recorder receives batch-level telemetry. Job-level events arrive through
// the embedded queue.Observer.
type Recorder interface {
	queue.Observer
	StatusUnavailable()
	BatchFinished(kind, outcome string, elapsed time.Duration)
}

// Config configures a planner.
type Config struct {
	Backend   Backend
	Optimizer optimize.Optimizer // Required for optimize batches

	ImageCeiling    int // 0 = ask the backend
	VideoCeiling    int // 0 = ask the backend
	OptimizeCeiling int // default 3

	StaggerInterval time.Duration // default 3s
	Sheets          []status.Kind // default character, scene
	Languages       []status.Lang // default cn, en

	Recorder Recorder // Optional
	Logger   *slog.Logger
}

// Planner plans and runs generation batches.
type Planner struct {
	backend   Backend
	optimizer optimize.Optimizer

	imageCeiling    int
	videoCeiling    int
	optimizeCeiling int

	interval  time.Duration
	sheets    []status.Kind
	languages []status.Lang

	recorder Recorder
	logger   *slog.Logger

	// Clock hooks; replaced in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a planner.
func New(cfg Config) *Planner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StaggerInterval <= 0 {
		cfg.StaggerInterval = DefaultStaggerInterval
	}
	if cfg.OptimizeCeiling == 0 {
		cfg.OptimizeCeiling = DefaultOptimizeCeiling
	}
	if len(cfg.Sheets) == 0 {
		cfg.Sheets = []status.Kind{status.KindCharacterSheet, status.KindSceneSheet}
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = status.Languages
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Planner{
		backend:         cfg.Backend,
		optimizer:       cfg.Optimizer,
		imageCeiling:    cfg.ImageCeiling,
		videoCeiling:    cfg.VideoCeiling,
		optimizeCeiling: cfg.OptimizeCeiling,
		interval:        cfg.StaggerInterval,
		sheets:          cfg.Sheets,
		languages:       cfg.Languages,
		recorder:        recorder,
		logger:          logger,
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

// Outcome classifies how a batch ended.
type Outcome string

const (
	OutcomeNoop        Outcome = "noop"
	OutcomeCompleted   Outcome = "completed"
	OutcomeSetupFailed Outcome = "setup_failed"
)

// Result summarizes one batch. Pipelines nest their stage results.
type Result struct {
	Outcome   Outcome       `json:"outcome" yaml:"outcome"`
	Kind      string        `json:"kind" yaml:"kind"`
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Aborted   bool          `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	SRT       string        `json:"srt,omitempty" yaml:"srt,omitempty"`
	Stages    []Result      `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// ProgressFunc receives human-readable progress messages.
type ProgressFunc func(msg string)

// Request narrows a batch and wires caller hooks.
type Request struct {
	Pages        []int                // Restrict to these page indexes (empty = all)
	OnlySelected bool                 // Restrict to pages flagged selected
	Progress     ProgressFunc         // Optional
	OnQueue      func(q *queue.Queue) // Optional; called before the queue starts
	Stopped      func() bool          // Optional; checked between sheets and stages
}

// AudioRequest extends Request for narration batches.
type AudioRequest struct {
	Request
	Languages   []status.Lang // default: planner languages
	GenerateSRT bool          // build subtitles after the batch drains
}

// stopped reports whether the caller asked the batch to wind down. A
// stopped batch starts no new sheets or stages; queued jobs are discarded
// by queue.Stop and in-flight jobs keep their context.
func (r Request) stopped() bool {
	return r.Stopped != nil && r.Stopped()
}

func (r Request) progress(format string, args ...any) {
	if r.Progress != nil {
		r.Progress(fmt.Sprintf(format, args...))
	}
}

type nopRecorder struct{}

func (nopRecorder) JobStarted(string)                           {}
func (nopRecorder) JobFinished(string, error, time.Duration)    {}
func (nopRecorder) StatusUnavailable()                          {}
func (nopRecorder) BatchFinished(string, string, time.Duration) {}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
