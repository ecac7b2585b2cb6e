package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/storyforge/internal/api"
	"github.com/jackzampolin/storyforge/internal/config"
	"github.com/jackzampolin/storyforge/internal/home"
	"github.com/jackzampolin/storyforge/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "storyforge",
	Short: "Batch orchestrator for story image, video and narration generation",
	Long: `storyforge drives a story-generation backend through long-running batches.

It reads what the backend has already produced, skips completed work and
runs the rest under a concurrency ceiling with staggered starts:
  - Character, scene and item design sheets
  - Per-page images and videos
  - Bilingual narration audio and subtitles
  - Prompt optimization

Run batches directly with "storyforge run", or start "storyforge serve"
and drive it with "storyforge api".`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.storyforge/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "storyforge home directory (default: ~/.storyforge)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "override log.level (debug, info, warn, error)",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutputFormat(format)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// app bundles what every local command needs.
type app struct {
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger
}

// loadApp resolves the home directory, loads .env files and configuration
// and builds the logger.
func loadApp(cmd *cobra.Command) (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	// Secrets first so ${ENV_VAR} references and STORYFORGE_* overrides see them.
	config.LoadDotEnv(".env", h.EnvPath())

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := mgr.Get()
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}

	return &app{home: h, config: mgr, logger: logger}, nil
}

// newLogger builds a text or JSON slog logger at the given level.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// stderrProgress prints planner progress lines to stderr so stdout carries
// only the structured result.
func stderrProgress(cmd *cobra.Command) func(string) {
	return func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
}
