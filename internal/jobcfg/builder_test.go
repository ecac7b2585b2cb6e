package jobcfg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackzampolin/storyforge/internal/config"
	"github.com/jackzampolin/storyforge/internal/optimize"
	"github.com/jackzampolin/storyforge/internal/planner"
	"github.com/jackzampolin/storyforge/internal/status"
	"github.com/jackzampolin/storyforge/internal/testutil"
)

func TestBuilder_BackendConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend.URL = "http://backend:5000"
	cfg.Backend.RequestsPerSecond = 2.5
	cfg.Backend.StatusRetries = 5

	bc := NewBuilder(cfg, nil, nil).BackendConfig()
	if bc.BaseURL != "http://backend:5000" {
		t.Errorf("BaseURL = %q", bc.BaseURL)
	}
	if bc.RequestsPerSecond != 2.5 || bc.StatusRetries != 5 {
		t.Errorf("BackendConfig() = %+v", bc)
	}
	if bc.Timeout != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", bc.Timeout)
	}
}

func TestBuilder_Optimizer(t *testing.T) {
	t.Run("backend mode", func(t *testing.T) {
		b := NewBuilder(config.DefaultConfig(), nil, nil)
		o, err := b.Optimizer(b.Backend())
		if err != nil {
			t.Fatalf("Optimizer() error = %v", err)
		}
		if _, ok := o.(*optimize.Backend); !ok {
			t.Errorf("Optimizer() = %T, want *optimize.Backend", o)
		}
	})

	t.Run("openai mode", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Optimize.Mode = "openai"
		cfg.Optimize.APIKey = "sk-test"
		o, err := NewBuilder(cfg, nil, nil).Optimizer(nil)
		if err != nil {
			t.Fatalf("Optimizer() error = %v", err)
		}
		if _, ok := o.(*optimize.OpenAI); !ok {
			t.Errorf("Optimizer() = %T, want *optimize.OpenAI", o)
		}
	})

	t.Run("openai without key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := config.DefaultConfig()
		cfg.Optimize.Mode = "openai"
		_, err := NewBuilder(cfg, nil, nil).Optimizer(nil)
		if !errors.Is(err, config.ErrInvalid) {
			t.Errorf("Optimizer() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Optimize.Mode = "magic"
		if _, err := NewBuilder(cfg, nil, nil).Optimizer(nil); !errors.Is(err, config.ErrInvalid) {
			t.Errorf("Optimizer() error = %v, want ErrInvalid", err)
		}
	})
}

func TestBuilder_PlannerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Concurrency.Image = 4
	cfg.Pipeline.Sheets = []string{"character", "item"}
	cfg.Audio.Languages = []string{"en"}

	b := NewBuilder(cfg, nil, nil)
	pc, err := b.PlannerConfig(b.Backend())
	if err != nil {
		t.Fatalf("PlannerConfig() error = %v", err)
	}
	if pc.ImageCeiling != 4 || pc.VideoCeiling != 0 || pc.OptimizeCeiling != 3 {
		t.Errorf("ceilings = %d/%d/%d", pc.ImageCeiling, pc.VideoCeiling, pc.OptimizeCeiling)
	}
	if pc.StaggerInterval != 3*time.Second {
		t.Errorf("StaggerInterval = %v", pc.StaggerInterval)
	}
	wantSheets := []status.Kind{status.KindCharacterSheet, status.KindItemSheet}
	if len(pc.Sheets) != 2 || pc.Sheets[0] != wantSheets[0] || pc.Sheets[1] != wantSheets[1] {
		t.Errorf("Sheets = %v, want %v", pc.Sheets, wantSheets)
	}
	if len(pc.Languages) != 1 || pc.Languages[0] != status.LangEN {
		t.Errorf("Languages = %v, want [en]", pc.Languages)
	}
	if pc.Optimizer == nil {
		t.Error("Optimizer should default to backend mode")
	}

	t.Run("invalid sheets", func(t *testing.T) {
		bad := config.DefaultConfig()
		bad.Pipeline.Sheets = []string{"image"}
		b := NewBuilder(bad, nil, nil)
		if _, err := b.PlannerConfig(b.Backend()); !errors.Is(err, config.ErrInvalid) {
			t.Errorf("PlannerConfig() error = %v, want ErrInvalid", err)
		}
	})

	t.Run("optimizer failure is not fatal", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		oc := config.DefaultConfig()
		oc.Optimize.Mode = "openai"
		b := NewBuilder(oc, nil, nil)
		pc, err := b.PlannerConfig(b.Backend())
		if err != nil {
			t.Fatalf("PlannerConfig() error = %v", err)
		}
		if pc.Optimizer != nil {
			t.Error("Optimizer should be nil when openai has no key")
		}
	})
}

func TestPlannerFactory(t *testing.T) {
	fake := testutil.NewFakeBackend(t, 2)

	cfg := config.DefaultConfig()
	cfg.Backend.URL = fake.URL
	cfg.Stagger.Interval = time.Millisecond
	b := NewBuilder(cfg, testutil.Logger(), nil)
	client := b.Backend()

	factory := PlannerFactory(client, testutil.Logger(), nil)
	p, err := factory(cfg)
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}

	res, err := p.Images(context.Background(), planner.Request{})
	if err != nil {
		t.Fatalf("Images() error = %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Errorf("Images() = %+v, want 2 succeeded", res)
	}
	if calls := fake.Calls(); len(calls) != 2 {
		t.Errorf("backend calls = %v, want 2", calls)
	}
}
