package config

import (
	"time"
)

// Config holds storyforge configuration.
// Stored at: ~/.storyforge/config.yaml
type Config struct {
	Backend     BackendCfg     `mapstructure:"backend" yaml:"backend"`
	Concurrency ConcurrencyCfg `mapstructure:"concurrency" yaml:"concurrency"`
	Stagger     StaggerCfg     `mapstructure:"stagger" yaml:"stagger"`
	Pipeline    PipelineCfg    `mapstructure:"pipeline" yaml:"pipeline"`
	Audio       AudioCfg       `mapstructure:"audio" yaml:"audio"`
	Optimize    OptimizeCfg    `mapstructure:"optimize" yaml:"optimize"`
	Log         LogCfg         `mapstructure:"log" yaml:"log"`
	Server      ServerCfg      `mapstructure:"server" yaml:"server"`
}

// BackendCfg points at the generation backend.
type BackendCfg struct {
	URL               string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`                         // Per-request timeout
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"` // 0 = unlimited
	StatusRetries     int           `mapstructure:"status_retries" yaml:"status_retries" validate:"gte=0"`           // Attempts for idempotent reads
}

// ConcurrencyCfg sets batch ceilings. Zero image/video ceilings defer to
// the backend's own configuration. Audio is always serial.
type ConcurrencyCfg struct {
	Image    int `mapstructure:"image" yaml:"image" validate:"gte=0"`
	Video    int `mapstructure:"video" yaml:"video" validate:"gte=0"`
	Optimize int `mapstructure:"optimize" yaml:"optimize" validate:"gte=0"`
}

// StaggerCfg spaces out the first calls of a concurrent batch.
type StaggerCfg struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`
}

// PipelineCfg selects which design sheets the pipeline generates.
type PipelineCfg struct {
	Sheets []string `mapstructure:"sheets" yaml:"sheets" validate:"dive,oneof=character scene item character_sheet scene_sheet item_sheet"`
}

// AudioCfg selects narration languages.
type AudioCfg struct {
	Languages []string `mapstructure:"languages" yaml:"languages" validate:"dive,oneof=cn en"`
}

// OptimizeCfg configures prompt optimization.
type OptimizeCfg struct {
	Mode          string        `mapstructure:"mode" yaml:"mode" validate:"oneof=backend openai"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model         string        `mapstructure:"model" yaml:"model"`
	ImageTemplate string        `mapstructure:"image_template" yaml:"image_template"`
	VideoTemplate string        `mapstructure:"video_template" yaml:"video_template"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// LogCfg configures the process logger.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// ServerCfg configures `storyforge serve`.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendCfg{
			URL:           "http://127.0.0.1:5000",
			Timeout:       10 * time.Minute,
			StatusRetries: 3,
		},
		Concurrency: ConcurrencyCfg{
			Optimize: 3,
		},
		Stagger: StaggerCfg{
			Interval: 3 * time.Second,
		},
		Pipeline: PipelineCfg{
			Sheets: []string{"character", "scene"},
		},
		Audio: AudioCfg{
			Languages: []string{"cn", "en"},
		},
		Optimize: OptimizeCfg{
			Mode:    "backend",
			APIKey:  "${OPENAI_API_KEY}",
			Model:   "gpt-4.1-mini",
			Timeout: 60 * time.Second,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8090",
		},
	}
}
