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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/redraft/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored runs",
	Long:  `List, inspect, and clear the run history kept in the SQLite database.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			runs, err := db.ListRuns(ctx, historyLimit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No runs in history.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tREASON\tROUNDS\tSCORE\tTASK")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					shortID(r.ID), r.CreatedAt.Format("2006-01-02 15:04"),
					r.Reason, r.FinalRound, formatScore(r.FinalScore), snippet(r.Task, 40))
			}
			return w.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every step of a run (ID or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			r, err := db.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run:      %s\n", r.ID)
			fmt.Printf("Created:  %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Language: %s\n", orNone(r.Language))
			fmt.Printf("Stopped:  %s after %d round(s)\n", r.Reason, r.FinalRound)
			if r.Failure != "" {
				fmt.Printf("Failure:  %s\n", r.Failure)
			}
			fmt.Printf("\nTask:\n%s\n", r.Task)

			for _, s := range r.Steps {
				fmt.Printf("\n--- %s (round %d)%s\n", s.Kind, s.Round, formatStepScore(s.Score))
				if s.Failed {
					fmt.Printf("FAILED: %s\n", s.Error)
					continue
				}
				if s.Content != "" {
					fmt.Println(s.Content)
				}
			}

			fmt.Printf("\n=== Final draft\n%s\n", r.FinalText)
			return nil
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run and draft memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			stats, err := db.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			fmt.Printf("Total runs:      %d\n", stats.TotalRuns)
			fmt.Printf("Satisfied:       %d\n", stats.Satisfied)
			fmt.Printf("Budget reached:  %d\n", stats.Exhausted)
			fmt.Printf("Failed:          %d\n", stats.Failed)
			fmt.Printf("Cancelled:       %d\n", stats.Cancelled)
			fmt.Printf("Average rounds:  %.2f\n", stats.AvgRounds)
			if m := stats.MemoryStats; m != nil {
				fmt.Printf("Memory entries:  %d (%d active, %d invalid)\n", m.TotalEntries, m.ActiveEntries, m.InvalidEntries)
				fmt.Printf("Memory reuses:   %d\n", m.TotalUsage)
			}
			return nil
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a run by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			if err := db.DeleteRun(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete run: %w", err)
			}
			fmt.Printf("Deleted run: %s\n", args[0])
			return nil
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all runs from history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			n, err := db.ClearRuns(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Printf("Cleared %d runs from history.\n", n)
			return nil
		})
	},
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage remembered final drafts",
	Long: `The draft memory returns a previous final draft when the same task is run
again with the same settings. Invalidate an entry to force a fresh run.`,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			entries, err := db.ListMemory(ctx)
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No entries in draft memory.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tRUN\tUSED\tLAST USED\tINVALID\tTASK")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%v\t%s\n",
					e.ID, shortID(e.RunID), e.UsageCount,
					e.LastUsed.Format("2006-01-02 15:04"), e.Invalidated, snippet(e.Task, 40))
			}
			return w.Flush()
		})
	},
}

var memoryInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Stop reusing a remembered draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			if err := db.InvalidateMemory(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to invalidate entry: %w", err)
			}
			fmt.Printf("Invalidated entry: %s\n", args[0])
			return nil
		})
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a remembered draft by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			if err := db.DeleteMemory(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete entry: %w", err)
			}
			fmt.Printf("Deleted entry: %s\n", args[0])
			return nil
		})
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all remembered drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			n, err := db.ClearMemory(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear memory: %w", err)
			}
			fmt.Printf("Cleared %d entries from draft memory.\n", n)
			return nil
		})
	},
}

// withStore opens the configured database for a maintenance command.
func withStore(fn func(ctx context.Context, db *store.Store) error) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("no database configured (--db)")
	}
	defer db.Close()
	return fn(context.Background(), db)
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *s)
}

func formatStepScore(s *float64) string {
	if s == nil {
		return ""
	}
	return " score " + formatScore(s)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(memoryCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 = all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)

	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryInvalidateCmd)
	memoryCmd.AddCommand(memoryDeleteCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}
