package config

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/storyforge/internal/status"
)

// defaultValues flattens defaults to dotted keys so env overrides and
// partial config files merge per leaf.
func defaultValues(d *Config) map[string]any {
	return map[string]any{
		"backend.url":                 d.Backend.URL,
		"backend.timeout":             d.Backend.Timeout,
		"backend.requests_per_second": d.Backend.RequestsPerSecond,
		"backend.status_retries":      d.Backend.StatusRetries,
		"concurrency.image":           d.Concurrency.Image,
		"concurrency.video":           d.Concurrency.Video,
		"concurrency.optimize":        d.Concurrency.Optimize,
		"stagger.interval":            d.Stagger.Interval,
		"pipeline.sheets":             d.Pipeline.Sheets,
		"audio.languages":             d.Audio.Languages,
		"optimize.mode":               d.Optimize.Mode,
		"optimize.base_url":           d.Optimize.BaseURL,
		"optimize.api_key":            d.Optimize.APIKey,
		"optimize.model":              d.Optimize.Model,
		"optimize.image_template":     d.Optimize.ImageTemplate,
		"optimize.video_template":     d.Optimize.VideoTemplate,
		"optimize.timeout":            d.Optimize.Timeout,
		"log.level":                   d.Log.Level,
		"log.format":                  d.Log.Format,
		"server.host":                 d.Server.Host,
		"server.port":                 d.Server.Port,
	}
}

// document renders a config as ordered YAML with human-readable durations.
func document(c *Config) yaml.MapSlice {
	return yaml.MapSlice{
		{Key: "backend", Value: yaml.MapSlice{
			{Key: "url", Value: c.Backend.URL},
			{Key: "timeout", Value: c.Backend.Timeout.String()},
			{Key: "requests_per_second", Value: c.Backend.RequestsPerSecond},
			{Key: "status_retries", Value: c.Backend.StatusRetries},
		}},
		{Key: "concurrency", Value: yaml.MapSlice{
			{Key: "image", Value: c.Concurrency.Image},
			{Key: "video", Value: c.Concurrency.Video},
			{Key: "optimize", Value: c.Concurrency.Optimize},
		}},
		{Key: "stagger", Value: yaml.MapSlice{
			{Key: "interval", Value: c.Stagger.Interval.String()},
		}},
		{Key: "pipeline", Value: yaml.MapSlice{
			{Key: "sheets", Value: c.Pipeline.Sheets},
		}},
		{Key: "audio", Value: yaml.MapSlice{
			{Key: "languages", Value: c.Audio.Languages},
		}},
		{Key: "optimize", Value: yaml.MapSlice{
			{Key: "mode", Value: c.Optimize.Mode},
			{Key: "base_url", Value: c.Optimize.BaseURL},
			{Key: "api_key", Value: c.Optimize.APIKey},
			{Key: "model", Value: c.Optimize.Model},
			{Key: "image_template", Value: c.Optimize.ImageTemplate},
			{Key: "video_template", Value: c.Optimize.VideoTemplate},
			{Key: "timeout", Value: c.Optimize.Timeout.String()},
		}},
		{Key: "log", Value: yaml.MapSlice{
			{Key: "level", Value: c.Log.Level},
			{Key: "format", Value: c.Log.Format},
		}},
		{Key: "server", Value: yaml.MapSlice{
			{Key: "host", Value: c.Server.Host},
			{Key: "port", Value: c.Server.Port},
		}},
	}
}

// SheetKinds returns the configured pipeline sheets in order.
func (p PipelineCfg) SheetKinds() ([]status.Kind, error) {
	kinds := make([]status.Kind, 0, len(p.Sheets))
	for _, s := range p.Sheets {
		k, err := status.ParseKind(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if !k.IsSheet() {
			return nil, fmt.Errorf("%w: %q is not a sheet", ErrInvalid, s)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Langs returns the configured narration languages.
func (a AudioCfg) Langs() ([]status.Lang, error) {
	langs := make([]status.Lang, 0, len(a.Languages))
	for _, s := range a.Languages {
		l, err := status.ParseLang(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		langs = append(langs, l)
	}
	return langs, nil
}

// ResolvedAPIKey returns the optimize API key with ${ENV_VAR} references expanded.
func (o OptimizeCfg) ResolvedAPIKey() string {
	return ResolveEnvVars(o.APIKey)
}
