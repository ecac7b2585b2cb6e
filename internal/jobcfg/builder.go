// Package jobcfg builds backend, optimizer and planner configurations from
// the loaded config. `storyforge run` and `storyforge serve` both go through
// it, so one-shot and server batches share ceilings, stagger and sheets.
package jobcfg

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/storyforge/internal/backend"
	"github.com/jackzampolin/storyforge/internal/batches"
	"github.com/jackzampolin/storyforge/internal/config"
	"github.com/jackzampolin/storyforge/internal/optimize"
	"github.com/jackzampolin/storyforge/internal/planner"
)

// Builder turns a config snapshot into component configs.
type Builder struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder planner.Recorder
}

// NewBuilder creates a builder. recorder may be nil.
func NewBuilder(cfg *config.Config, logger *slog.Logger, recorder planner.Recorder) *Builder {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger, recorder: recorder}
}

// BackendConfig builds the backend client configuration.
func (b *Builder) BackendConfig() backend.Config {
	c := b.cfg.Backend
	return backend.Config{
		BaseURL:           c.URL,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		StatusRetries:     c.StatusRetries,
		Logger:            b.logger,
	}
}

// Backend creates a backend client.
func (b *Builder) Backend() *backend.Client {
	return backend.New(b.BackendConfig())
}

// Optimizer creates the configured prompt optimizer. In openai mode a
// missing API key is an error; callers may run without an optimizer.
func (b *Builder) Optimizer(client *backend.Client) (optimize.Optimizer, error) {
	c := b.cfg.Optimize
	switch optimize.Mode(c.Mode) {
	case optimize.ModeOpenAI:
		o, err := optimize.NewOpenAI(optimize.OpenAIConfig{
			APIKey:        c.ResolvedAPIKey(),
			BaseURL:       c.BaseURL,
			Model:         c.Model,
			ImageTemplate: c.ImageTemplate,
			VideoTemplate: c.VideoTemplate,
			Timeout:       c.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		return o, nil
	case optimize.ModeBackend, "":
		return optimize.NewBackend(client), nil
	default:
		return nil, fmt.Errorf("%w: unknown optimize mode %q", config.ErrInvalid, c.Mode)
	}
}

// PlannerConfig builds the planner configuration around client.
func (b *Builder) PlannerConfig(client *backend.Client) (planner.Config, error) {
	sheets, err := b.cfg.Pipeline.SheetKinds()
	if err != nil {
		return planner.Config{}, fmt.Errorf("pipeline.sheets: %w", err)
	}
	langs, err := b.cfg.Audio.Langs()
	if err != nil {
		return planner.Config{}, fmt.Errorf("audio.languages: %w", err)
	}

	optimizer, err := b.Optimizer(client)
	if err != nil {
		// Optimize batches report a setup failure; everything else runs.
		b.logger.Warn("prompt optimizer unavailable", "mode", b.cfg.Optimize.Mode, "error", err)
		optimizer = nil
	}

	return planner.Config{
		Backend:         client,
		Optimizer:       optimizer,
		ImageCeiling:    b.cfg.Concurrency.Image,
		VideoCeiling:    b.cfg.Concurrency.Video,
		OptimizeCeiling: b.cfg.Concurrency.Optimize,
		StaggerInterval: b.cfg.Stagger.Interval,
		Sheets:          sheets,
		Languages:       langs,
		Recorder:        b.recorder,
		Logger:          b.logger,
	}, nil
}

// Planner creates a planner around client.
func (b *Builder) Planner(client *backend.Client) (*planner.Planner, error) {
	pc, err := b.PlannerConfig(client)
	if err != nil {
		return nil, err
	}
	return planner.New(pc), nil
}

// PlannerFactory returns a function that rebuilds the planner from a new
// config while keeping the existing backend client.
func PlannerFactory(client *backend.Client, logger *slog.Logger, recorder planner.Recorder) func(*config.Config) (batches.Planner, error) {
	return func(cfg *config.Config) (batches.Planner, error) {
		return NewBuilder(cfg, logger, recorder).Planner(client)
	}
}
