package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/storyforge/internal/backend"
	"github.com/jackzampolin/storyforge/internal/config"
	"github.com/jackzampolin/storyforge/internal/status"
)

// Images generates every page image that is not yet completed.
func (p *Planner) Images(ctx context.Context, req Request) (Result, error) {
	return p.pageBatch(ctx, status.KindImage, req, false)
}

// Videos generates every page video that is not yet completed.
func (p *Planner) Videos(ctx context.Context, req Request) (Result, error) {
	return p.pageBatch(ctx, status.KindVideo, req, false)
}

// pageBatch runs one job per pending page. In stage mode an empty batch
// still runs (and reports zero jobs) instead of returning a noop.
func (p *Planner) pageBatch(ctx context.Context, kind status.Kind, req Request, stage bool) (Result, error) {
	started := p.now()
	label := string(kind)

	pages, snap, err := p.prepare(ctx, label, req, true)
	if err != nil {
		return p.setupFailed(label, started, req, err)
	}

	var units []unit
	skipped := 0
	for _, page := range pages {
		idx := page.Index
		if snap.Completed(kind, idx, "") {
			skipped++
			continue
		}
		units = append(units, unit{
			name: jobName(kind, idx, ""),
			run: func(ctx context.Context) error {
				return p.backend.RunUnit(ctx, kind, idx, "")
			},
		})
	}

	if len(units) == 0 && !stage {
		return p.noop(label, skipped, started, req), nil
	}

	ceiling, err := p.ceiling(ctx, kind)
	if err != nil {
		return p.setupFailed(label, started, req, err)
	}

	return p.run(ctx, batch{kind: label, ceiling: ceiling, units: units, skipped: skipped}, req, started), nil
}

// Audio generates narration for every page and language that is not yet
// completed. Audio always runs serially. Jobs are ordered page-major.
func (p *Planner) Audio(ctx context.Context, req AudioRequest) (Result, error) {
	started := p.now()
	label := string(status.KindAudio)

	langs := req.Languages
	if len(langs) == 0 {
		langs = p.languages
	}

	pages, snap, err := p.prepare(ctx, label, req.Request, true)
	if err != nil {
		return p.setupFailed(label, started, req.Request, err)
	}

	var units []unit
	skipped := 0
	for _, page := range pages {
		for _, lang := range langs {
			idx := page.Index
			if snap.Completed(status.KindAudio, idx, lang) {
				skipped++
				continue
			}
			units = append(units, unit{
				name: jobName(status.KindAudio, idx, lang),
				run: func(ctx context.Context) error {
					return p.backend.RunUnit(ctx, status.KindAudio, idx, lang)
				},
			})
		}
	}

	var res Result
	if len(units) == 0 {
		res = p.noop(label, skipped, started, req.Request)
	} else {
		ceiling, err := p.ceiling(ctx, status.KindAudio)
		if err != nil {
			return p.setupFailed(label, started, req.Request, err)
		}
		res = p.run(ctx, batch{kind: label, ceiling: ceiling, units: units, skipped: skipped}, req.Request, started)
	}

	if req.GenerateSRT && !res.Aborted {
		if res.Outcome == OutcomeNoop && snap.SRT == status.Completed {
			return res, nil
		}
		res.SRT = p.generateSRT(ctx, req.Request)
	}
	return res, nil
}

func (p *Planner) generateSRT(ctx context.Context, req Request) string {
	req.progress("srt: generating subtitles")
	if err := p.backend.GenerateSRT(ctx); err != nil {
		p.logger.Warn("srt generation failed", "error", err)
		req.progress("srt: failed: %v", err)
		return string(status.Failed)
	}
	req.progress("srt: done")
	return string(status.Completed)
}

// OptimizeImagePrompts rewrites and persists every non-empty image prompt.
func (p *Planner) OptimizeImagePrompts(ctx context.Context, req Request) (Result, error) {
	return p.optimizeBatch(ctx, backend.PromptImage, req)
}

// OptimizeVideoPrompts rewrites and persists every non-empty video prompt.
func (p *Planner) OptimizeVideoPrompts(ctx context.Context, req Request) (Result, error) {
	return p.optimizeBatch(ctx, backend.PromptVideo, req)
}

func (p *Planner) optimizeBatch(ctx context.Context, field backend.PromptField, req Request) (Result, error) {
	started := p.now()
	label := "optimize_" + strings.TrimSuffix(string(field), "_prompt")

	if p.optimizer == nil {
		return p.setupFailed(label, started, req, fmt.Errorf("%w: no prompt optimizer configured", ErrSetup))
	}
	if p.optimizeCeiling < 0 {
		err := fmt.Errorf("%w: optimize concurrency %d: %w", ErrSetup, p.optimizeCeiling, config.ErrInvalid)
		return p.setupFailed(label, started, req, err)
	}

	pages, _, err := p.prepare(ctx, label, req, false)
	if err != nil {
		return p.setupFailed(label, started, req, err)
	}

	var units []unit
	skipped := 0
	for _, page := range pages {
		if strings.TrimSpace(field.Of(page)) == "" {
			skipped++
			continue
		}
		units = append(units, unit{
			name: fmt.Sprintf("%s/%d", label, page.Index),
			run: func(ctx context.Context) error {
				optimized, err := p.optimizer.Optimize(ctx, field, page)
				if err != nil {
					return fmt.Errorf("optimize page %d: %w", page.Index, err)
				}
				return p.backend.UpdatePrompt(ctx, page.Index, field, optimized)
			},
		})
	}

	if len(units) == 0 {
		return p.noop(label, skipped, started, req), nil
	}

	return p.run(ctx, batch{kind: label, ceiling: p.optimizeCeiling, units: units, skipped: skipped}, req, started), nil
}
