package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/jackzampolin/storyforge/internal/status"
)

// Sheets generates the configured design sheets in order. Sheets are
// singletons, so they run as direct calls rather than through a queue.
// The first failure stops the remaining sheets.
func (p *Planner) Sheets(ctx context.Context, req Request) (Result, error) {
	started := p.now()
	snap := p.snapshot(ctx, p.logger.With("kind", "sheets"))
	return p.sheetStage(ctx, snap, req, false, started), nil
}

func (p *Planner) sheetStage(ctx context.Context, snap *status.Snapshot, req Request, stage bool, started time.Time) Result {
	res := Result{Outcome: OutcomeCompleted, Kind: "sheets"}

	var pending []status.Kind
	for _, kind := range p.sheets {
		if snap.Completed(kind, 0, "") {
			res.Skipped++
			continue
		}
		pending = append(pending, kind)
	}
	if len(pending) == 0 && !stage {
		return p.noop(res.Kind, res.Skipped, started, req)
	}

	res.Total = len(pending)
	for _, kind := range pending {
		if req.stopped() {
			res.Aborted = true
			res.Error = errStopped.Error()
			break
		}
		req.progress("%s started", kind)
		name := jobName(kind, 0, "")
		p.recorder.JobStarted(name)
		t := p.now()

		err := p.backend.RunUnit(ctx, kind, 0, "")
		p.recorder.JobFinished(name, err, p.now().Sub(t))

		if err != nil {
			p.logger.Warn("sheet failed, stopping", "kind", kind, "error", err)
			res.Failed++
			res.Aborted = true
			res.Error = err.Error()
			break
		}
		res.Succeeded++
	}

	return p.finish(res, started, req)
}

// Pipeline runs sheets, then images, then videos. It refuses to start
// unless the backend answers a status request, and it stops after the
// sheet stage if any sheet fails because later stages depend on them.
func (p *Planner) Pipeline(ctx context.Context, req Request) (Result, error) {
	started := p.now()
	const label = "pipeline"

	snap, err := p.backend.FetchStatus(ctx)
	if err != nil {
		return p.setupFailed(label, started, req, fmt.Errorf("%w: backend not reachable: %w", ErrSetup, err))
	}

	res := Result{Outcome: OutcomeCompleted, Kind: label}
	done := func() (Result, error) {
		res.Elapsed = p.now().Sub(started)
		p.recorder.BatchFinished(label, string(res.Outcome), res.Elapsed)
		p.logger.Info("pipeline finished",
			"outcome", res.Outcome,
			"succeeded", res.Succeeded,
			"failed", res.Failed,
			"aborted", res.Aborted,
			"elapsed", res.Elapsed,
		)
		return res, nil
	}

	sheets := p.sheetStage(ctx, snap, req, true, p.now())
	res.add(sheets)
	if sheets.Aborted {
		res.Aborted = true
		res.Error = "sheet stage failed: " + sheets.Error
		if req.stopped() {
			res.Error = errStopped.Error()
		}
		return done()
	}

	for _, kind := range []status.Kind{status.KindImage, status.KindVideo} {
		if ctx.Err() != nil {
			res.Aborted = true
			res.Error = ctx.Err().Error()
			return done()
		}
		if req.stopped() {
			res.Aborted = true
			res.Error = errStopped.Error()
			return done()
		}
		stageRes, err := p.pageBatch(ctx, kind, req, true)
		res.add(stageRes)
		if err != nil {
			res.Outcome = OutcomeSetupFailed
			res.Error = err.Error()
			res.Elapsed = p.now().Sub(started)
			return res, err
		}
		if stageRes.Aborted {
			res.Aborted = true
			res.Error = stageRes.Error
			return done()
		}
	}

	return done()
}

// RetryUnit regenerates one unit with a single direct call. It does not
// consult the snapshot, so completed units are regenerated too.
func (p *Planner) RetryUnit(ctx context.Context, kind status.Kind, page int, lang status.Lang) (Result, error) {
	started := p.now()
	req := Request{}
	label := string(kind)

	if kind == status.KindAudio {
		if lang == "" {
			lang = status.LangCN
		}
		if _, err := status.ParseLang(string(lang)); err != nil {
			return p.setupFailed(label, started, req, fmt.Errorf("%w: %w", ErrSetup, err))
		}
	} else {
		lang = ""
	}

	name := jobName(kind, page, lang)
	p.recorder.JobStarted(name)
	t := p.now()
	err := p.backend.RunUnit(ctx, kind, page, lang)
	p.recorder.JobFinished(name, err, p.now().Sub(t))

	res := Result{Outcome: OutcomeCompleted, Kind: label, Total: 1}
	if err != nil {
		p.logger.Warn("retry failed", "unit", name, "error", err)
		res.Failed = 1
		res.Error = err.Error()
	} else {
		res.Succeeded = 1
	}
	return p.finish(res, started, req), nil
}
