// Package config loads redraft settings from flags, REDRAFT_* environment
// variables and an optional config file through viper.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/redraft/internal/oracle"
	"github.com/valpere/redraft/internal/refiner"
)

const EnvPrefix = "REDRAFT"

// Settings is the merged configuration of one invocation.
type Settings struct {
	// Oracle is used for every stage unless Critic or Judge override it.
	Oracle oracle.Settings `mapstructure:"oracle"`
	Critic oracle.Settings `mapstructure:"critic"`
	Judge  oracle.Settings `mapstructure:"judge"`

	MaxRounds      int      `mapstructure:"max_rounds"`
	StopMarkers    []string `mapstructure:"stop_markers"`
	ScoreThreshold float64  `mapstructure:"score_threshold"`
	OnFailure      string   `mapstructure:"on_failure"`
	ProtectMarkup  bool     `mapstructure:"protect_markup"`

	RateLimit   float64       `mapstructure:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`

	Parallel   int           `mapstructure:"parallel"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`

	DBPath   string `mapstructure:"db"`
	LogLevel string `mapstructure:"log_level"`
}

// SetDefaults registers every key so that AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	d := refiner.DefaultConfig()

	for _, prefix := range []string{"oracle", "critic", "judge"} {
		v.SetDefault(prefix+".provider", "")
		v.SetDefault(prefix+".model", "")
		v.SetDefault(prefix+".api_key", "")
		v.SetDefault(prefix+".base_url", "")
		v.SetDefault(prefix+".timeout", 2*time.Minute)
	}
	v.SetDefault("oracle.provider", "ollama")

	v.SetDefault("max_rounds", d.MaxRounds)
	v.SetDefault("stop_markers", d.StopMarkers)
	v.SetDefault("score_threshold", 0.0)
	v.SetDefault("on_failure", d.OnFailure.String())
	v.SetDefault("protect_markup", false)

	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("max_attempts", oracle.DefaultMaxAttempts)
	v.SetDefault("retry_delay", oracle.DefaultRetryDelay)

	v.SetDefault("parallel", 2)
	v.SetDefault("job_timeout", 10*time.Minute)

	v.SetDefault("db", "./data/redraft.db")
	v.SetDefault("log_level", "warn")
}

// NewViper returns a viper instance with defaults and REDRAFT_* env
// binding. Nested keys map to underscores: oracle.api_key is read from
// REDRAFT_ORACLE_API_KEY.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads an explicit config file, or else the first of
// ./redraft.yaml and $HOME/.redraft.yaml that exists. Having no config
// file at all is fine.
func ReadFile(v *viper.Viper, path, home string) error {
	if path == "" {
		candidates := []string{"redraft.yaml"}
		if home != "" {
			candidates = append(candidates, filepath.Join(home, ".redraft.yaml"))
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
		if path == "" {
			return nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Load unmarshals and validates settings.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if s.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must be >= 0, got %d", s.MaxRounds)
	}
	if s.ScoreThreshold < 0 {
		return fmt.Errorf("score_threshold must be >= 0, got %v", s.ScoreThreshold)
	}
	if _, err := ParseFailurePolicy(s.OnFailure); err != nil {
		return err
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	if s.Parallel < 1 {
		return fmt.Errorf("parallel must be >= 1, got %d", s.Parallel)
	}
	return nil
}

// LoopConfig converts settings to a loop configuration. The scorer, the
// criteria and the language are per-run and filled in by the caller.
func (s *Settings) LoopConfig() refiner.Config {
	policy, _ := ParseFailurePolicy(s.OnFailure)
	cfg := refiner.Config{
		MaxRounds:     s.MaxRounds,
		StopMarkers:   s.StopMarkers,
		OnFailure:     policy,
		ProtectMarkup: s.ProtectMarkup,
	}
	if s.ScoreThreshold > 0 {
		cfg.ScoreThreshold = refiner.Threshold(s.ScoreThreshold)
	}
	return cfg
}

// CriticSettings returns the settings for the critique stage, falling back
// to the main oracle.
func (s *Settings) CriticSettings() oracle.Settings {
	return orDefault(s.Critic, s.Oracle)
}

// JudgeSettings returns the settings for scoring and selection, falling
// back to the main oracle.
func (s *Settings) JudgeSettings() oracle.Settings {
	return orDefault(s.Judge, s.Oracle)
}

func orDefault(o, def oracle.Settings) oracle.Settings {
	if o.Provider == "" {
		return def
	}
	if o.Timeout == 0 {
		o.Timeout = def.Timeout
	}
	return o
}

func ParseFailurePolicy(s string) (refiner.FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "abort":
		return refiner.Abort, nil
	case "propagate":
		return refiner.Propagate, nil
	default:
		return refiner.Abort, fmt.Errorf("unknown failure policy %q (want abort or propagate)", s)
	}
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
