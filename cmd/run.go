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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/redraft/internal"
	"github.com/valpere/redraft/internal/arbiter"
	"github.com/valpere/redraft/internal/language"
	"github.com/valpere/redraft/internal/orchestrator"
	"github.com/valpere/redraft/internal/refiner"
	"github.com/valpere/redraft/internal/report"
	"github.com/valpere/redraft/internal/store"
)

var (
	inputFile  string
	outputFile string
	reportFile string
	taskLang   string
	jsonOutput bool

	criteriaSetName string
	criteriaFile    string
	criteriaPairs   []string

	approaches int
	useScorer  bool
	noCache    bool
	fuzzyMatch float64
)

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Produce and refine a draft for a task",
	Long: `Generate a draft for the task, then critique and revise it until the critic
says no further changes are needed, the judge's score reaches --threshold, or
--max-rounds critique/revise rounds have been spent.

The task is taken from the arguments or from --input. The final draft is
printed, or written to --output.

Best of N:
  --approaches N  Run N independent loops with different writer personas
                  in parallel and let the judge pick the best final draft

Criteria (merged in this order, later wins):
  --criteria-set NAME      a set stored with "redraft criteria add"
  --criteria-file FILE     a YAML file with a "criteria:" mapping
  --criterion name=desc    repeatable

Example:
  redraft run "Write a one-sentence product tagline for a bakery" -r 2
  redraft run -i brief.md -o draft.md --criterion tone=warm --report report.html`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := readTask(args)
		if err != nil {
			return err
		}
		if inputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		if approaches < 1 {
			return fmt.Errorf("--approaches must be at least 1")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		db, err := openStore()
		if err != nil {
			logger.Warn("running without history", "error", err)
		}
		if db != nil {
			defer db.Close()
		}

		det := language.NewDetector()
		lang := resolveLanguage(taskLang, task, det)

		criteria, fileMarkers, err := resolveCriteria(ctx, db, criteriaSetName, criteriaFile, criteriaPairs)
		if err != nil {
			return err
		}

		cfg := settings.LoopConfig()
		cfg.Criteria = criteria
		cfg.Language = lang
		cfg.Logger = logger
		cfg.StopMarkers = append(append([]string{}, cfg.StopMarkers...), fileMarkers...)

		key := memoryKey(cfg, approaches)
		if db != nil && canReuseMemory() {
			if cached, ok := lookupMemory(ctx, db, task, key); ok {
				fmt.Fprintf(os.Stderr, "Using remembered draft (--no-cache for a fresh run)\n")
				return writeOutput(outputFile, cached)
			}
		}

		var judge *arbiter.OracleJudge
		if cfg.ScoreThreshold != nil || useScorer || approaches > 1 {
			if judge, err = buildJudge(); err != nil {
				return err
			}
		}
		if judge != nil && (cfg.ScoreThreshold != nil || useScorer) {
			cfg.Scorer = judge.ScoreFunc(task)
		}

		start := time.Now()
		res, oracleLabel, selection, runErr := refine(ctx, task, lang, det, cfg, judge)
		if runErr != nil && res.Trace.Reason == "" {
			return runErr
		}

		reqID := uuid.New().String()
		req := internal.RunRequest{ID: reqID, Task: task, Language: lang, Settings: key, Timestamp: start}
		if db != nil {
			if err := db.SaveRun(ctx, req, res); err != nil {
				logger.Warn("failed to save run", "error", err)
			}
			if !noCache && !res.Trace.Failed() && res.Trace.Reason != refiner.StopCancelled {
				if err := db.SaveToMemory(ctx, task, key, res.Final.Content, reqID); err != nil {
					logger.Warn("failed to save draft memory", "error", err)
				}
			}
		}

		if reportFile != "" {
			meta := report.Meta{RunID: reqID, Oracle: oracleLabel, Criteria: criteria, CreatedAt: start, Selection: selection}
			if err := report.Write(reportFile, task, res, meta); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Report written to %s\n", reportFile)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(runSummary{ID: reqID, Task: task, Result: res, Failure: failureText(res)}); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
		} else if res.Final.Content != "" {
			if err := writeOutput(outputFile, res.Final.Content); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stderr, "Stopped: %s after %d round(s) [run %s]\n", res.Trace.Reason, res.Final.Round, shortID(reqID))
		if f := res.Trace.Failure; f != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", f)
		}
		return runErr
	},
}

// refine runs one loop, or several with different writer personas when
// --approaches is above one, and returns the chosen result.
func refine(ctx context.Context, task, lang string, det *language.Detector, cfg refiner.Config, judge *arbiter.OracleJudge) (refiner.Result, string, string, error) {
	if approaches == 1 {
		oracles, err := buildOracles(writerPersonas[0], lang, det)
		if err != nil {
			return refiner.Result{}, "", "", err
		}
		res, err := refiner.Run(ctx, task, oracles, cfg)
		return res, oracleName(oracles), "", err
	}

	jobs := make([]orchestrator.Job, 0, approaches)
	for i := 0; i < approaches; i++ {
		persona := writerPersonas[i%len(writerPersonas)]
		oracles, err := buildOracles(persona, lang, det)
		if err != nil {
			return refiner.Result{}, "", "", err
		}
		jobs = append(jobs, orchestrator.Job{Name: fmt.Sprintf("approach-%d", i+1), Task: task, Oracles: oracles, Config: cfg})
	}

	orch := orchestrator.New(orchestrator.OrchestratorConfig{
		Timeout:     settings.JobTimeout,
		MaxParallel: settings.Parallel,
		OnDone: func(jr orchestrator.JobResult) {
			fmt.Fprintf(os.Stderr, "%s: %s after %d round(s) in %s\n", jr.Name, jr.Result.Trace.Reason, jr.Result.Final.Round, jr.Duration.Round(time.Millisecond))
		},
	})
	out := orch.Execute(ctx, jobs)

	ok := out.Successful()
	if len(ok) == 0 {
		first := out.Results[0]
		return first.Result, oracleName(jobs[0].Oracles), "", fmt.Errorf("all %d approaches failed: %w", len(jobs), first.Err)
	}

	candidates := make([]arbiter.Candidate, len(ok))
	for i, jr := range ok {
		candidates[i] = arbiter.Candidate{Name: jr.Name, Draft: jr.Result.Final}
	}
	sel, err := judge.Select(ctx, task, candidates)
	if err != nil {
		logger.Warn("judge failed, using first successful approach", "error", err)
		return ok[0].Result, oracleName(jobs[ok[0].Index].Oracles), "", nil
	}

	chosen := ok[sel.Index]
	fmt.Fprintf(os.Stderr, "Judge selected: %s\n", chosen.Name)
	note := fmt.Sprintf("%s selected from %d approaches: %s", chosen.Name, len(jobs), sel.Reasoning)
	return chosen.Result, oracleName(jobs[chosen.Index].Oracles), note, nil
}

// canReuseMemory reports whether a remembered draft can answer the run.
// A report or JSON output needs the trace, which the memory does not keep.
func canReuseMemory() bool {
	return !noCache && reportFile == "" && !jsonOutput
}

func lookupMemory(ctx context.Context, db *store.Store, task, key string) (string, bool) {
	if cached, found, err := db.GetCachedDraft(ctx, task, key); err == nil && found {
		return cached, true
	} else if err != nil {
		logger.Warn("draft memory lookup failed", "error", err)
	}
	if fuzzyMatch > 0 {
		if cached, found, err := db.FuzzyGetCachedDraft(ctx, task, key, fuzzyMatch); err == nil && found {
			return cached, true
		}
	}
	return "", false
}

func readTask(args []string) (string, error) {
	if inputFile != "" && len(args) > 0 {
		return "", fmt.Errorf("give the task either as arguments or with --input, not both")
	}
	task := strings.Join(args, " ")
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		task = string(data)
	}
	if strings.TrimSpace(task) == "" {
		return "", errors.New("a task is required")
	}
	return task, nil
}

type runSummary struct {
	ID      string         `json:"id"`
	Task    string         `json:"task"`
	Result  refiner.Result `json:"result"`
	Failure string         `json:"failure,omitempty"`
}

func failureText(res refiner.Result) string {
	if res.Trace.Failure == nil {
		return ""
	}
	return res.Trace.Failure.Error()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "File containing the task")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for the final draft (default stdout)")
	runCmd.Flags().StringVar(&reportFile, "report", "", "Write a report of every round (.html or .md)")
	runCmd.Flags().StringVarP(&taskLang, "lang", "l", "auto", "Language of the drafts: ISO 639-1 code, auto, or none")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result and trace as JSON")

	runCmd.Flags().StringVar(&criteriaSetName, "criteria-set", "", "Stored criteria set to apply")
	runCmd.Flags().StringVar(&criteriaFile, "criteria-file", "", "YAML criteria file")
	runCmd.Flags().StringSliceVarP(&criteriaPairs, "criterion", "c", nil, "Criterion as name=description (repeatable)")

	runCmd.Flags().IntVarP(&approaches, "approaches", "n", 1, "Number of independent approaches to compare")
	runCmd.Flags().BoolVar(&useScorer, "score", false, "Score every draft with the judge even without --threshold")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "Do not read or write the draft memory")
	runCmd.Flags().Float64Var(&fuzzyMatch, "fuzzy", 0, "Reuse a remembered draft for a similar task (similarity 0-1, 0 = off)")
}
