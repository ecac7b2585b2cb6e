package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/storyforge/internal/status"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Stagger.Interval != 3*time.Second {
		t.Errorf("Stagger.Interval = %v, want 3s", cfg.Stagger.Interval)
	}
	if cfg.Concurrency.Image != 0 || cfg.Concurrency.Video != 0 {
		t.Error("image/video concurrency should defer to the backend by default")
	}
	if cfg.Optimize.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected optimize api key placeholder")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		path := writeConfig(t, `
backend:
  url: http://10.0.0.5:5000
concurrency:
  image: 4
stagger:
  interval: 500ms
audio:
  languages: [en]
`)
		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}

		cfg := mgr.Get()
		if cfg.Backend.URL != "http://10.0.0.5:5000" {
			t.Errorf("Backend.URL = %s", cfg.Backend.URL)
		}
		if cfg.Concurrency.Image != 4 {
			t.Errorf("Concurrency.Image = %d, want 4", cfg.Concurrency.Image)
		}
		if cfg.Stagger.Interval != 500*time.Millisecond {
			t.Errorf("Stagger.Interval = %v, want 500ms", cfg.Stagger.Interval)
		}
		// untouched keys keep their defaults
		if cfg.Backend.StatusRetries != 3 || cfg.Concurrency.Optimize != 3 {
			t.Errorf("defaults lost: %+v %+v", cfg.Backend, cfg.Concurrency)
		}
		if len(cfg.Audio.Languages) != 1 || cfg.Audio.Languages[0] != "en" {
			t.Errorf("Audio.Languages = %v, want [en]", cfg.Audio.Languages)
		}
		if mgr.ConfigFileUsed() != path {
			t.Errorf("ConfigFileUsed() = %s, want %s", mgr.ConfigFileUsed(), path)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "concurrency:\n  video: 2\n")
		t.Setenv("STORYFORGE_CONCURRENCY_VIDEO", "5")
		t.Setenv("STORYFORGE_BACKEND_URL", "http://backend:5000")

		mgr, err := NewManager(path)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if cfg.Concurrency.Video != 5 {
			t.Errorf("Concurrency.Video = %d, want 5", cfg.Concurrency.Video)
		}
		if cfg.Backend.URL != "http://backend:5000" {
			t.Errorf("Backend.URL = %s", cfg.Backend.URL)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
		}{
			{"negative ceiling", "concurrency:\n  image: -1\n"},
			{"bad language", "audio:\n  languages: [fr]\n"},
			{"bad sheet", "pipeline:\n  sheets: [poster]\n"},
			{"bad mode", "optimize:\n  mode: magic\n"},
			{"bad url", "backend:\n  url: not a url\n"},
			{"bad log level", "log:\n  level: loud\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewManager(writeConfig(t, tt.content))
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("NewManager() error = %v, want ErrInvalid", err)
				}
			})
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "backend: [")); err == nil {
			t.Error("NewManager() expected error for malformed yaml")
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# storyforge configuration") {
		t.Error("missing header comment")
	}
	if !strings.Contains(content, "interval: 3s") {
		t.Errorf("durations should be human readable:\n%s", content)
	}
	if strings.Index(content, "backend:") > strings.Index(content, "server:") {
		t.Error("sections out of order")
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager(default file) error = %v", err)
	}
	cfg := mgr.Get()
	want := DefaultConfig()
	if cfg.Stagger.Interval != want.Stagger.Interval || cfg.Backend.Timeout != want.Backend.Timeout {
		t.Errorf("round trip lost durations: %+v", cfg)
	}
	if cfg.Server.Port != want.Server.Port {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, want.Server.Port)
	}
}

func TestSheetKinds(t *testing.T) {
	kinds, err := PipelineCfg{Sheets: []string{"character", "scene_sheet", "item"}}.SheetKinds()
	if err != nil {
		t.Fatalf("SheetKinds() error = %v", err)
	}
	want := []status.Kind{status.KindCharacterSheet, status.KindSceneSheet, status.KindItemSheet}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("SheetKinds()[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	if _, err := (PipelineCfg{Sheets: []string{"image"}}).SheetKinds(); !errors.Is(err, ErrInvalid) {
		t.Errorf("SheetKinds(image) error = %v, want ErrInvalid", err)
	}
}

func TestLangs(t *testing.T) {
	langs, err := AudioCfg{Languages: []string{"en", "cn"}}.Langs()
	if err != nil {
		t.Fatalf("Langs() error = %v", err)
	}
	if len(langs) != 2 || langs[0] != status.LangEN {
		t.Errorf("Langs() = %v", langs)
	}
	if _, err := (AudioCfg{Languages: []string{"de"}}).Langs(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Langs(de) error = %v, want ErrInvalid", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STORYFORGE_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("STORYFORGE_TEST_DOTENV") })

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	if got := os.Getenv("STORYFORGE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("STORYFORGE_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_WatchConfig(t *testing.T) {
	path := writeConfig(t, "concurrency:\n  image: 1\n")
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	changed := make(chan *Config, 16)
	mgr.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	mgr.WatchConfig()

	if err := os.WriteFile(path, []byte("concurrency:\n  image: 6\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	// A write can surface as several events (truncate, then content).
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Concurrency.Image != 6 {
				continue
			}
			if mgr.Get().Concurrency.Image != 6 {
				t.Errorf("Get() not updated after reload")
			}
			return
		case <-timeout:
			t.Fatal("config change not observed")
		}
	}
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Log.Level
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
