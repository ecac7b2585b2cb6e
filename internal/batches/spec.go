package batches

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/storyforge/internal/planner"
	"github.com/jackzampolin/storyforge/internal/queue"
	"github.com/jackzampolin/storyforge/internal/status"
)

// Kind names a batch type.
type Kind string

const (
	KindSheets         Kind = "sheets"
	KindImages         Kind = "images"
	KindVideos         Kind = "videos"
	KindAudio          Kind = "audio"
	KindOptimizeImages Kind = "optimize-images"
	KindOptimizeVideos Kind = "optimize-videos"
	KindPipeline       Kind = "pipeline"
)

// Kinds lists every batch kind in display order.
var Kinds = []Kind{
	KindSheets, KindImages, KindVideos, KindAudio,
	KindOptimizeImages, KindOptimizeVideos, KindPipeline,
}

// ParseKind accepts a batch kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown batch kind %q", s)
}

// Spec describes a batch to run.
type Spec struct {
	Kind         Kind     `json:"kind" yaml:"kind"`
	Pages        []int    `json:"pages,omitempty" yaml:"pages,omitempty"`
	OnlySelected bool     `json:"only_selected,omitempty" yaml:"only_selected,omitempty"`
	Languages    []string `json:"languages,omitempty" yaml:"languages,omitempty"` // audio only
	SRT          bool     `json:"srt,omitempty" yaml:"srt,omitempty"`             // audio only
}

// Validate checks the kind and languages.
func (s Spec) Validate() error {
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return err
	}
	for _, p := range s.Pages {
		if p < 0 {
			return fmt.Errorf("invalid page index %d", p)
		}
	}
	if _, err := s.langs(); err != nil {
		return err
	}
	return nil
}

func (s Spec) langs() ([]status.Lang, error) {
	var out []status.Lang
	for _, l := range s.Languages {
		lang, err := status.ParseLang(l)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, nil
}

// Planner is the subset of *planner.Planner a batch dispatches to.
type Planner interface {
	Sheets(ctx context.Context, req planner.Request) (planner.Result, error)
	Images(ctx context.Context, req planner.Request) (planner.Result, error)
	Videos(ctx context.Context, req planner.Request) (planner.Result, error)
	Audio(ctx context.Context, req planner.AudioRequest) (planner.Result, error)
	OptimizeImagePrompts(ctx context.Context, req planner.Request) (planner.Result, error)
	OptimizeVideoPrompts(ctx context.Context, req planner.Request) (planner.Result, error)
	Pipeline(ctx context.Context, req planner.Request) (planner.Result, error)
}

// Hooks are caller callbacks threaded into the planner request.
type Hooks struct {
	Progress planner.ProgressFunc
	OnQueue  func(q *queue.Queue)
	Stopped  func() bool
}

// Execute runs spec against p and blocks until the batch drains.
func Execute(ctx context.Context, p Planner, spec Spec, hooks Hooks) (planner.Result, error) {
	kind, err := ParseKind(string(spec.Kind))
	if err != nil {
		return planner.Result{}, err
	}
	langs, err := spec.langs()
	if err != nil {
		return planner.Result{}, err
	}

	req := planner.Request{
		Pages:        spec.Pages,
		OnlySelected: spec.OnlySelected,
		Progress:     hooks.Progress,
		OnQueue:      hooks.OnQueue,
		Stopped:      hooks.Stopped,
	}

	switch kind {
	case KindSheets:
		return p.Sheets(ctx, req)
	case KindImages:
		return p.Images(ctx, req)
	case KindVideos:
		return p.Videos(ctx, req)
	case KindAudio:
		return p.Audio(ctx, planner.AudioRequest{Request: req, Languages: langs, GenerateSRT: spec.SRT})
	case KindOptimizeImages:
		return p.OptimizeImagePrompts(ctx, req)
	case KindOptimizeVideos:
		return p.OptimizeVideoPrompts(ctx, req)
	default:
		return p.Pipeline(ctx, req)
	}
}
