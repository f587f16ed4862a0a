/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/redraft/internal/config"
)

var version = "0.1.0"

var (
	cfgFile  string
	v        = config.NewViper()
	settings *config.Settings
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "redraft",
	Short: "Iterative LLM draft refinement",
	Long: `A CLI application that produces text with a language model through a bounded
generate, critique and revise loop, stopping when the critic is satisfied, a
judge's score reaches a threshold, or the round budget runs out.

Supported providers: Ollama, OpenRouter, OpenAI and OpenAI-compatible APIs (DeepSeek)

Settings come from flags, REDRAFT_* environment variables and an optional
config file (./redraft.yaml or $HOME/.redraft.yaml).

Use "redraft run --help" for refinement options.`,
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() error {
	home, _ := os.UserHomeDir()
	if err := config.ReadFile(v, cfgFile, home); err != nil {
		return err
	}

	s, err := config.Load(v)
	if err != nil {
		return err
	}
	settings = s

	level, _ := config.ParseLevel(s.LogLevel)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if f := v.ConfigFileUsed(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&cfgFile, "config", "", "Config file (default ./redraft.yaml or $HOME/.redraft.yaml)")
	pf.String("db", "./data/redraft.db", "Database path for run history, draft memory and checkpoints")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")

	pf.StringP("provider", "p", "ollama", "Oracle provider: ollama, openrouter, openai, deepseek")
	pf.StringP("model", "m", "", "Model name (provider default if empty)")
	pf.String("base-url", "", "Provider base URL (provider default if empty)")
	pf.String("api-key", "", "Provider API key")
	pf.Duration("timeout", 0, "Per-request timeout (default 2m)")

	pf.IntP("max-rounds", "r", 3, "Maximum critique/revise rounds")
	pf.StringSlice("stop-marker", nil, "Critique text that ends the loop (repeatable, case-insensitive)")
	pf.Float64("threshold", 0, "Stop once the judge scores a draft at or above this (0-10, 0 = off)")
	pf.String("on-failure", "abort", "On oracle failure: abort (keep partial result) or propagate (exit with error)")
	pf.Bool("protect-markup", false, "Keep code blocks and HTML tags unchanged across revisions")

	pf.Float64("rate-limit", 0, "Maximum oracle requests per second (0 = unlimited)")
	pf.Int("max-attempts", 3, "Total attempts per oracle call including the first (1 = no retries)")

	for key, flag := range map[string]string{
		"db":              "db",
		"log_level":       "log-level",
		"oracle.provider": "provider",
		"oracle.model":    "model",
		"oracle.base_url": "base-url",
		"oracle.api_key":  "api-key",
		"oracle.timeout":  "timeout",
		"max_rounds":      "max-rounds",
		"stop_markers":    "stop-marker",
		"score_threshold": "threshold",
		"on_failure":      "on-failure",
		"protect_markup":  "protect-markup",
		"rate_limit":      "rate-limit",
		"max_attempts":    "max-attempts",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}
