package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/redraft/internal/refiner"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Oracle.Provider != "ollama" {
		t.Errorf("expected default provider ollama, got %q", s.Oracle.Provider)
	}
	if s.MaxRounds != refiner.DefaultMaxRounds {
		t.Errorf("expected max rounds %d, got %d", refiner.DefaultMaxRounds, s.MaxRounds)
	}
	if s.Oracle.Timeout != 2*time.Minute {
		t.Errorf("expected 2m timeout, got %v", s.Oracle.Timeout)
	}
	if len(s.StopMarkers) == 0 {
		t.Error("expected default stop markers")
	}

	cfg := s.LoopConfig()
	if cfg.ScoreThreshold != nil {
		t.Error("threshold should be unset by default")
	}
	if cfg.OnFailure != refiner.Abort {
		t.Errorf("expected abort policy, got %v", cfg.OnFailure)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("REDRAFT_ORACLE_PROVIDER", "openrouter")
	t.Setenv("REDRAFT_ORACLE_API_KEY", "secret")
	t.Setenv("REDRAFT_MAX_ROUNDS", "5")
	t.Setenv("REDRAFT_ON_FAILURE", "propagate")
	t.Setenv("REDRAFT_RETRY_DELAY", "2s")

	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Oracle.Provider != "openrouter" || s.Oracle.APIKey != "secret" {
		t.Errorf("env not applied to oracle: %+v", s.Oracle)
	}
	if s.MaxRounds != 5 {
		t.Errorf("expected 5 rounds, got %d", s.MaxRounds)
	}
	if s.RetryDelay != 2*time.Second {
		t.Errorf("expected 2s retry delay, got %v", s.RetryDelay)
	}
	if s.LoopConfig().OnFailure != refiner.Propagate {
		t.Error("expected propagate policy")
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redraft.yaml")
	yml := `
oracle:
  provider: openai
  model: gpt-4o-mini
critic:
  provider: ollama
  model: qwen3:14b
score_threshold: 8
stop_markers:
  - ship it
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	v := NewViper()
	if err := ReadFile(v, path, ""); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	s, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Oracle.Provider != "openai" || s.CriticSettings().Model != "qwen3:14b" {
		t.Errorf("unexpected oracles %+v / %+v", s.Oracle, s.CriticSettings())
	}
	if s.JudgeSettings().Provider != "openai" {
		t.Errorf("judge should fall back to main oracle, got %+v", s.JudgeSettings())
	}
	if s.CriticSettings().Timeout != 2*time.Minute {
		t.Errorf("critic should inherit timeout, got %v", s.CriticSettings().Timeout)
	}
	cfg := s.LoopConfig()
	if cfg.ScoreThreshold == nil || *cfg.ScoreThreshold != 8 {
		t.Errorf("expected threshold 8, got %v", cfg.ScoreThreshold)
	}
	if len(cfg.StopMarkers) != 1 || cfg.StopMarkers[0] != "ship it" {
		t.Errorf("unexpected stop markers %v", cfg.StopMarkers)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if err := ReadFile(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Error("expected error for explicit missing file")
	}
	if err := ReadFile(NewViper(), "", t.TempDir()); err != nil {
		t.Errorf("missing default file should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"negative rounds", "max_rounds", -1},
		{"negative threshold", "score_threshold", -2.0},
		{"bad policy", "on_failure", "retry"},
		{"bad level", "log_level", "loud"},
		{"no parallelism", "parallel", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			v.Set(tt.key, tt.val)
			if _, err := Load(v); err == nil {
				t.Errorf("expected error for %s=%v", tt.key, tt.val)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", s, err)
		}
	}
}
