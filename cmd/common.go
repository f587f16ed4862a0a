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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/valpere/redraft/internal/arbiter"
	"github.com/valpere/redraft/internal/config"
	"github.com/valpere/redraft/internal/language"
	"github.com/valpere/redraft/internal/oracle"
	"github.com/valpere/redraft/internal/refiner"
	"github.com/valpere/redraft/internal/store"
)

// writerPersonas give each best-of-N approach a different voice.
var writerPersonas = []string{
	oracle.RoleWriter,
	"a concise copywriter who prefers short, concrete sentences",
	"a vivid storyteller who favours imagery and rhythm",
	"a precise technical writer who values accuracy over flourish",
	"a persuasive marketer focused on the reader's benefit",
}

// limiter is shared by every oracle of the process so that parallel runs
// respect one request budget.
var limiter *rate.Limiter

func sharedLimiter() *rate.Limiter {
	if limiter == nil {
		limiter = oracle.NewLimiter(settings.RateLimit, settings.RateBurst)
	}
	return limiter
}

// buildOracle creates a provider oracle with retries and throttling.
func buildOracle(s oracle.Settings) (oracle.TextOracle, error) {
	o, err := oracle.New(s)
	if err != nil {
		return nil, err
	}
	return oracle.Retrying(oracle.Throttled(o, sharedLimiter()), settings.MaxAttempts, settings.RetryDelay), nil
}

// buildOracles wires the three loop stages. One provider oracle serves
// writing and editing; the critic uses its own settings when configured.
// With a known language, drafts in any other language are rejected.
func buildOracles(writer, lang string, det *language.Detector) (refiner.Oracles, error) {
	base, err := buildOracle(settings.Oracle)
	if err != nil {
		return refiner.Oracles{}, fmt.Errorf("failed to create oracle: %w", err)
	}

	critic := base
	if cs := settings.CriticSettings(); cs != settings.Oracle {
		if critic, err = buildOracle(cs); err != nil {
			return refiner.Oracles{}, fmt.Errorf("failed to create critic oracle: %w", err)
		}
	}

	var generate, revise oracle.TextOracle = oracle.Persona(writer, base), oracle.Persona(oracle.RoleEditor, base)
	if lang != "" && det != nil {
		generate = language.Guard(generate, det, lang)
		revise = language.Guard(revise, det, lang)
	}

	return refiner.Oracles{
		Generate: generate,
		Critique: oracle.Persona(oracle.RoleCritic, critic),
		Revise:   revise,
	}, nil
}

func buildJudge() (*arbiter.OracleJudge, error) {
	o, err := buildOracle(settings.JudgeSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to create judge oracle: %w", err)
	}
	return arbiter.NewOracleJudge(o), nil
}

// resolveLanguage turns the --lang flag into an ISO 639-1 code. "auto"
// detects it from text; "" and "none" disable the language guard.
func resolveLanguage(flag, text string, det *language.Detector) string {
	switch strings.ToLower(flag) {
	case "", "none":
		return ""
	case "auto":
		if code, ok := det.Detect(text); ok {
			logger.Info("detected task language", "lang", code)
			return code
		}
		return ""
	default:
		return strings.ToLower(flag)
	}
}

// resolveCriteria merges a stored criteria set, a YAML file and
// name=description flags, later sources overriding earlier ones. Stop
// markers from the file are returned separately.
func resolveCriteria(ctx context.Context, db *store.Store, setName, file string, pairs []string) (refiner.Criteria, []string, error) {
	var fromSet, fromFile map[string]string
	var markers []string

	if setName != "" {
		if db == nil {
			return nil, nil, fmt.Errorf("--criteria-set requires a database")
		}
		c, err := db.GetCriteriaSet(ctx, setName)
		if err != nil {
			return nil, nil, err
		}
		fromSet = c
	}
	if file != "" {
		f, err := config.LoadCriteriaFile(file)
		if err != nil {
			return nil, nil, err
		}
		fromFile, markers = f.Criteria, f.StopMarkers
	}
	fromFlags, err := config.ParseCriteria(pairs)
	if err != nil {
		return nil, nil, err
	}
	return config.Merge(fromSet, fromFile, fromFlags), markers, nil
}

// memoryKey identifies the settings that shape a final draft, so the draft
// memory only answers for runs that would have been configured the same.
func memoryKey(cfg refiner.Config, approaches int) string {
	var sb strings.Builder
	cs := settings.CriticSettings()
	fmt.Fprintf(&sb, "%s|%s|%s|%s|", settings.Oracle.Provider, settings.Oracle.Model, cs.Provider, cs.Model)
	fmt.Fprintf(&sb, "rounds=%d|approaches=%d|lang=%s|markup=%v|", cfg.MaxRounds, approaches, cfg.Language, cfg.ProtectMarkup)
	if cfg.ScoreThreshold != nil {
		fmt.Fprintf(&sb, "threshold=%g|", *cfg.ScoreThreshold)
	}
	for _, name := range cfg.Criteria.Names() {
		fmt.Fprintf(&sb, "%s=%s|", name, cfg.Criteria[name])
	}
	// Markers match case-insensitively, so only their folded set matters.
	markers := make([]string, len(cfg.StopMarkers))
	for i, m := range cfg.StopMarkers {
		markers[i] = strings.ToLower(strings.TrimSpace(m))
	}
	slices.Sort(markers)
	markers = slices.Compact(markers)
	fmt.Fprintf(&sb, "markers=%q|", markers)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sb.String())).String()
}

// openStore opens the database, creating its directory. It returns nil
// without error when no database path is configured.
func openStore() (*store.Store, error) {
	if settings.DBPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(settings.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func writeOutput(path, text string) error {
	if path == "" {
		fmt.Println(text)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// oracleName labels a run by its editor, whose name does not depend on
// the writer persona.
func oracleName(o refiner.Oracles) string {
	return o.Revise.Name()
}
