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
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/redraft/internal"
	"github.com/valpere/redraft/internal/arbiter"
	"github.com/valpere/redraft/internal/language"
	"github.com/valpere/redraft/internal/orchestrator"
	"github.com/valpere/redraft/internal/refiner"
	"github.com/valpere/redraft/internal/store"
)

var (
	batchInputFile  string
	batchOutputFile string
	batchColumn     int
	batchHeader     bool
	batchLang       string
	batchResume     string

	batchCriteriaSet  string
	batchCriteriaFile string
	batchCriteria     []string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Refine one draft per row of a CSV file",
	Long: `Run the refinement loop for every task in a CSV column.

The output CSV repeats each input row followed by three columns: the final
draft, the stop reason and the number of critique/revise rounds spent.
Rows run in parallel, up to --parallel at a time, each bounded by
--job-timeout.

A checkpoint ID is printed at the start of each run. If the job is interrupted,
use --resume with that ID to skip rows that already finished.

Example:
  redraft batch -i tasks.csv -o drafts.csv --header --column 1 --parallel 4
  redraft batch -i tasks.csv -o drafts.csv --resume cp_0f8c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchInputFile == batchOutputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		records, err := readCSV(batchInputFile)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		db, err := openStore()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		checkpointID, done, err := batchCheckpoint(ctx, db)
		if err != nil {
			return err
		}

		criteria, fileMarkers, err := resolveCriteria(ctx, db, batchCriteriaSet, batchCriteriaFile, batchCriteria)
		if err != nil {
			return err
		}

		det := language.NewDetector()
		cfg := settings.LoopConfig()
		cfg.Criteria = criteria
		cfg.Logger = logger
		cfg.StopMarkers = append(append([]string{}, cfg.StopMarkers...), fileMarkers...)

		var judge *arbiter.OracleJudge
		if cfg.ScoreThreshold != nil {
			if judge, err = buildJudge(); err != nil {
				return err
			}
		}

		first := 0
		if batchHeader {
			first = 1
		}

		var jobs []orchestrator.Job
		var rowOf []int
		for rowIdx := first; rowIdx < len(records); rowIdx++ {
			if _, ok := done[rowIdx]; ok {
				continue
			}
			row := records[rowIdx]
			if batchColumn >= len(row) || strings.TrimSpace(row[batchColumn]) == "" {
				continue
			}
			task := row[batchColumn]

			jobCfg := cfg
			jobCfg.Language = resolveLanguage(batchLang, task, det)
			if judge != nil {
				jobCfg.Scorer = judge.ScoreFunc(task)
			}
			oracles, err := buildOracles(writerPersonas[0], jobCfg.Language, det)
			if err != nil {
				return err
			}
			jobs = append(jobs, orchestrator.Job{Name: "row-" + strconv.Itoa(rowIdx), Task: task, Oracles: oracles, Config: jobCfg})
			rowOf = append(rowOf, rowIdx)
		}
		if len(done) > 0 {
			fmt.Fprintf(os.Stderr, "Resuming checkpoint %s (%d rows already done)\n", checkpointID, len(done))
		}

		orch := orchestrator.New(orchestrator.OrchestratorConfig{
			Timeout:     settings.JobTimeout,
			MaxParallel: settings.Parallel,
			OnDone: func(jr orchestrator.JobResult) {
				rowIdx := rowOf[jr.Index]
				if !jr.OK() {
					fmt.Fprintf(os.Stderr, "Row %d: %v\n", rowIdx, jr.Err)
				}
				saveBatchRow(ctx, db, checkpointID, rowIdx, jobs[jr.Index], jr)
			},
		})
		out := orch.Execute(ctx, jobs)

		for i, jr := range out.Results {
			if jr.Result.Trace.Reason == "" {
				continue
			}
			done[rowOf[i]] = batchRow(jr.Result)
		}

		if err := writeBatchCSV(batchOutputFile, records, first, done); err != nil {
			return err
		}

		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "Interrupted; resume with --resume %s\n", checkpointID)
			return ctx.Err()
		}
		// A configuration error fails every row the same way; report it
		// instead of a batch of empty results.
		for _, jr := range out.Results {
			var cfgErr *refiner.ConfigurationError
			if errors.As(jr.Err, &cfgErr) {
				return fmt.Errorf("batch not run: %w", cfgErr)
			}
		}
		if db != nil && checkpointID != "" {
			_ = db.CompleteBatchCheckpoint(context.Background(), checkpointID)
		}

		fmt.Printf("Batch finished: %d succeeded, %d failed, output %s\n", out.Succeeded, out.Failed, batchOutputFile)
		return nil
	},
}

func batchRow(res refiner.Result) store.BatchRow {
	return store.BatchRow{FinalText: res.Final.Content, Reason: string(res.Trace.Reason), Rounds: res.Final.Round}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}
	return records, nil
}

// batchCheckpoint loads the --resume checkpoint or creates a new one.
func batchCheckpoint(ctx context.Context, db *store.Store) (string, map[int]store.BatchRow, error) {
	if batchResume != "" {
		if db == nil {
			return "", nil, fmt.Errorf("--resume requires a database (--db)")
		}
		if _, err := db.GetBatchCheckpoint(ctx, batchResume); err != nil {
			return "", nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		rows, err := db.GetBatchRows(ctx, batchResume)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load checkpoint rows: %w", err)
		}
		return batchResume, rows, nil
	}

	done := make(map[int]store.BatchRow)
	if db == nil {
		return "", done, nil
	}
	id, err := db.CreateBatchCheckpoint(ctx, batchInputFile, batchOutputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create checkpoint: %v\n", err)
		return "", done, nil
	}
	fmt.Fprintf(os.Stderr, "Checkpoint ID: %s (use --resume %s to resume if interrupted)\n", id, id)
	return id, done, nil
}

// saveBatchRow records a finished row in history and in the checkpoint.
// Cancelled and failed rows are left out of the checkpoint so a resumed
// run retries them.
func saveBatchRow(ctx context.Context, db *store.Store, checkpointID string, rowIdx int, job orchestrator.Job, jr orchestrator.JobResult) {
	if db == nil || jr.Result.Trace.Reason == "" {
		return
	}
	// Saving must survive the interrupt that cancelled ctx.
	saveCtx := context.WithoutCancel(ctx)

	req := internal.RunRequest{
		ID:        uuid.NewString(),
		Task:      job.Task,
		Language:  job.Config.Language,
		Settings:  memoryKey(job.Config, 1),
		Timestamp: time.Now().Add(-jr.Duration),
	}
	if err := db.SaveRun(saveCtx, req, jr.Result); err != nil {
		logger.Warn("failed to save run", "row", rowIdx, "error", err)
	}

	reason := jr.Result.Trace.Reason
	if checkpointID == "" || reason == refiner.StopCancelled || reason == refiner.StopOracleFailure {
		return
	}
	if err := db.SaveBatchRow(saveCtx, checkpointID, rowIdx, batchRow(jr.Result)); err != nil {
		logger.Warn("failed to save checkpoint row", "row", rowIdx, "error", err)
	}
}

func writeBatchCSV(path string, records [][]string, first int, done map[int]store.BatchRow) error {
	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output CSV: %w", err)
	}
	defer outFile.Close()

	writer := csv.NewWriter(outFile)
	for rowIdx, row := range records {
		line := append([]string{}, row...)
		switch {
		case rowIdx < first:
			line = append(line, "final", "reason", "rounds")
		default:
			r, ok := done[rowIdx]
			if !ok {
				line = append(line, "", "", "")
				break
			}
			line = append(line, r.FinalText, r.Reason, strconv.Itoa(r.Rounds))
		}
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write output CSV: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush output CSV: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchInputFile, "input", "i", "", "Input CSV file (required)")
	batchCmd.Flags().StringVarP(&batchOutputFile, "output", "o", "", "Output CSV file (required)")
	batchCmd.Flags().IntVar(&batchColumn, "column", 0, "Column holding the task (0-indexed)")
	batchCmd.Flags().BoolVar(&batchHeader, "header", false, "First row is a header")
	batchCmd.Flags().StringVarP(&batchLang, "lang", "l", "auto", "Language of the drafts: ISO 639-1 code, auto, or none")
	batchCmd.Flags().StringVar(&batchResume, "resume", "", "Resume from checkpoint ID (printed at start of original run)")

	batchCmd.Flags().StringVar(&batchCriteriaSet, "criteria-set", "", "Stored criteria set to apply")
	batchCmd.Flags().StringVar(&batchCriteriaFile, "criteria-file", "", "YAML criteria file")
	batchCmd.Flags().StringSliceVarP(&batchCriteria, "criterion", "c", nil, "Criterion as name=description (repeatable)")

	batchCmd.Flags().Int("parallel", 2, "Rows refined at the same time")
	batchCmd.Flags().Duration("job-timeout", 10*time.Minute, "Timeout per row")
	_ = v.BindPFlag("parallel", batchCmd.Flags().Lookup("parallel"))
	_ = v.BindPFlag("job_timeout", batchCmd.Flags().Lookup("job-timeout"))

	batchCmd.MarkFlagRequired("input")
	batchCmd.MarkFlagRequired("output")
}
