package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/storyforge/internal/backend"
	"github.com/jackzampolin/storyforge/internal/config"
	"github.com/jackzampolin/storyforge/internal/queue"
	"github.com/jackzampolin/storyforge/internal/status"
)

// unit is one pending piece of work before it becomes a queue.Job.
type unit struct {
	name string
	run  func(ctx context.Context) error
}

type batch struct {
	kind    string
	ceiling int
	units   []unit
	skipped int
}

// run executes a batch through a fresh queue and waits for it to drain.
func (p *Planner) run(ctx context.Context, b batch, req Request, started time.Time) Result {
	logger := p.logger.With("kind", b.kind)
	q := queue.New(queue.Config{
		Ceiling:  b.ceiling,
		Logger:   logger,
		Observer: p.recorder,
	})

	// Offsets are measured from the moment the queue starts. batchStart is
	// written before Start, which happens-before every job goroutine.
	stagger := q.Ceiling() >= 2
	var batchStart time.Time
	for i, u := range b.units {
		q.Append(queue.Job{Name: u.name, Run: p.jobFunc(i, u, stagger, &batchStart, req)})
	}
	if req.OnQueue != nil {
		req.OnQueue(q)
	}

	logger.Info("batch started", "pending", len(b.units), "skipped", b.skipped)
	req.progress("%s: starting %d jobs (%d skipped, ceiling %d)", b.kind, len(b.units), b.skipped, q.Ceiling())

	batchStart = p.now()
	q.Start(ctx)
	if err := q.WaitIdle(ctx); err != nil {
		logger.Warn("batch interrupted", "error", err)
		q.Stop()
		// In-flight calls observe the cancelled context and fail fast.
		_ = q.WaitIdle(context.Background())
	}

	stats := q.Stats()
	res := Result{
		Outcome:   OutcomeCompleted,
		Kind:      b.kind,
		Total:     stats.Total,
		Succeeded: stats.Completed,
		Failed:    stats.Failed,
		Skipped:   b.skipped,
	}
	switch {
	case ctx.Err() != nil:
		res.Aborted = true
		res.Error = ctx.Err().Error()
	case req.stopped():
		res.Aborted = true
		res.Error = errStopped.Error()
	}
	return p.finish(res, started, req)
}

func (p *Planner) jobFunc(i int, u unit, stagger bool, batchStart *time.Time, req Request) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if stagger && i > 0 {
			wait := batchStart.Add(time.Duration(i) * p.interval).Sub(p.now())
			if wait > 0 {
				if err := p.sleep(ctx, wait); err != nil {
					return err
				}
			}
		}
		req.progress("%s started", u.name)
		return u.run(ctx)
	}
}

func (p *Planner) finish(res Result, started time.Time, req Request) Result {
	res.Elapsed = p.now().Sub(started)
	p.recorder.BatchFinished(res.Kind, string(res.Outcome), res.Elapsed)

	switch res.Outcome {
	case OutcomeNoop:
		req.progress("%s: nothing to do (%d already completed)", res.Kind, res.Skipped)
	case OutcomeCompleted:
		p.logger.Info("batch finished",
			"kind", res.Kind,
			"total", res.Total,
			"succeeded", res.Succeeded,
			"failed", res.Failed,
			"skipped", res.Skipped,
			"elapsed", res.Elapsed,
		)
		req.progress("%s: done, %d succeeded, %d failed, %d skipped", res.Kind, res.Succeeded, res.Failed, res.Skipped)
	}
	return res
}

func (p *Planner) noop(kind string, skipped int, started time.Time, req Request) Result {
	return p.finish(Result{Outcome: OutcomeNoop, Kind: kind, Skipped: skipped}, started, req)
}

func (p *Planner) setupFailed(kind string, started time.Time, req Request, err error) (Result, error) {
	p.logger.Error("batch setup failed", "kind", kind, "error", err)
	req.progress("%s: setup failed: %v", kind, err)
	res := p.finish(Result{Outcome: OutcomeSetupFailed, Kind: kind, Error: err.Error()}, started, req)
	return res, err
}

// snapshot fetches a fresh status snapshot, failing open to an empty one.
func (p *Planner) snapshot(ctx context.Context, logger *slog.Logger) *status.Snapshot {
	snap, err := p.backend.FetchStatus(ctx)
	if err != nil {
		logger.Warn("status unavailable, treating every unit as pending", "error", err)
		p.recorder.StatusUnavailable()
		return status.Empty()
	}
	return snap
}

// prepare loads the story, applies page filters and fetches a snapshot.
// The snapshot is only fetched when needed.
func (p *Planner) prepare(ctx context.Context, kind string, req Request, needSnapshot bool) ([]backend.Page, *status.Snapshot, error) {
	logger := p.logger.With("kind", kind)

	story, err := p.backend.Story(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	pages := story.Pages
	if len(req.Pages) > 0 {
		pages = make([]backend.Page, 0, len(req.Pages))
		for _, idx := range dedupe(req.Pages) {
			page, ok := story.Page(idx)
			if !ok {
				logger.Warn("page not in story, ignoring", "page", idx)
				continue
			}
			pages = append(pages, page)
		}
	}

	snap := status.Empty()
	switch {
	case req.OnlySelected:
		// Selection lives only in the snapshot, so it cannot fail open.
		s, err := p.backend.FetchStatus(ctx)
		if err != nil {
			p.recorder.StatusUnavailable()
			return nil, nil, fmt.Errorf("%w: page selection unknown: %w", ErrSetup, err)
		}
		snap = s
	case needSnapshot:
		snap = p.snapshot(ctx, logger)
	}

	if req.OnlySelected {
		selected := make([]backend.Page, 0, len(pages))
		for _, page := range pages {
			if snap.Selected(page.Index) {
				selected = append(selected, page)
			}
		}
		pages = selected
	}

	return pages, snap, nil
}

// ceiling resolves the concurrency ceiling for a kind. It is read once per
// batch.
func (p *Planner) ceiling(ctx context.Context, kind status.Kind) (int, error) {
	var configured int
	switch kind {
	case status.KindAudio:
		return 1, nil
	case status.KindImage:
		configured = p.imageCeiling
	case status.KindVideo:
		configured = p.videoCeiling
	default:
		return 1, nil
	}

	if configured < 0 {
		return 0, fmt.Errorf("%w: %s concurrency %d: %w", ErrSetup, kind, configured, config.ErrInvalid)
	}
	if configured > 0 {
		return configured, nil
	}

	conc, err := p.backend.Concurrency(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if kind == status.KindVideo {
		p.logger.Debug("video retries are enforced by the backend", "video_max_retries", conc.VideoMaxRetries)
		return conc.Video, nil
	}
	return conc.Image, nil
}

func jobName(kind status.Kind, page int, lang status.Lang) string {
	parts := []string{string(kind)}
	if !kind.IsSheet() {
		parts = append(parts, fmt.Sprint(page))
	}
	if lang != "" {
		parts = append(parts, string(lang))
	}
	return strings.Join(parts, "/")
}

func dedupe(idx []int) []int {
	seen := make(map[int]bool, len(idx))
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// add folds a stage result into a pipeline result.
func (r *Result) add(stage Result) {
	r.Total += stage.Total
	r.Succeeded += stage.Succeeded
	r.Failed += stage.Failed
	r.Skipped += stage.Skipped
	r.Stages = append(r.Stages, stage)
}
