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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/redraft/internal/config"
	"github.com/valpere/redraft/internal/refiner"
	"github.com/valpere/redraft/internal/store"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Manage named criteria sets",
	Long: `Add, list, export, and delete named criteria sets.

A criteria set is a named group of quality criteria that the critic and the
editor are asked to respect. Use it with "redraft run --criteria-set NAME".`,
}

var (
	criteriaAddPairs []string
	criteriaAddFile  string
)

var criteriaAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create or replace a criteria set",
	Long: `Create or replace a criteria set from --criterion pairs and/or a YAML file.

Example:
  redraft criteria add tagline -c "brevity=at most twelve words" -c "tone=warm"
  redraft criteria add blog --file blog-criteria.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var fromFile map[string]string
		if criteriaAddFile != "" {
			f, err := config.LoadCriteriaFile(criteriaAddFile)
			if err != nil {
				return err
			}
			fromFile = f.Criteria
		}
		fromFlags, err := config.ParseCriteria(criteriaAddPairs)
		if err != nil {
			return err
		}
		criteria := config.Merge(fromFile, fromFlags)
		if len(criteria) == 0 {
			return fmt.Errorf("give at least one --criterion or a --file")
		}

		return withStore(func(ctx context.Context, db *store.Store) error {
			if err := db.SaveCriteriaSet(ctx, args[0], criteria); err != nil {
				return fmt.Errorf("failed to save criteria set: %w", err)
			}
			fmt.Printf("Saved criteria set %q with %d criteria.\n", args[0], len(criteria))
			return nil
		})
	},
}

var criteriaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List criteria sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			sets, err := db.ListCriteriaSets(ctx)
			if err != nil {
				return fmt.Errorf("failed to list criteria sets: %w", err)
			}
			if len(sets) == 0 {
				fmt.Println("No criteria sets.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCRITERIA")
			for _, s := range sets {
				fmt.Fprintf(w, "%s\t%d\n", s.Name, s.Count)
			}
			return w.Flush()
		})
	},
}

var criteriaShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the criteria of a set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			set, err := db.GetCriteriaSet(ctx, args[0])
			if err != nil {
				return err
			}
			criteria := refiner.Criteria(set)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CRITERION\tDESCRIPTION")
			for _, name := range criteria.Names() {
				fmt.Fprintf(w, "%s\t%s\n", name, criteria[name])
			}
			return w.Flush()
		})
	},
}

var criteriaExportCmd = &cobra.Command{
	Use:   "export <name> <file>",
	Short: "Write a criteria set to a YAML file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			set, err := db.GetCriteriaSet(ctx, args[0])
			if err != nil {
				return err
			}
			if err := config.WriteCriteriaFile(args[1], &config.CriteriaFile{Criteria: set}); err != nil {
				return err
			}
			fmt.Printf("Exported %q to %s\n", args[0], args[1])
			return nil
		})
	},
}

var criteriaDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a criteria set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, db *store.Store) error {
			if err := db.DeleteCriteriaSet(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete criteria set: %w", err)
			}
			fmt.Printf("Deleted criteria set: %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(criteriaCmd)

	criteriaAddCmd.Flags().StringSliceVarP(&criteriaAddPairs, "criterion", "c", nil, "Criterion as name=description (repeatable)")
	criteriaAddCmd.Flags().StringVarP(&criteriaAddFile, "file", "f", "", "YAML file with a criteria mapping")

	criteriaCmd.AddCommand(criteriaAddCmd)
	criteriaCmd.AddCommand(criteriaListCmd)
	criteriaCmd.AddCommand(criteriaShowCmd)
	criteriaCmd.AddCommand(criteriaExportCmd)
	criteriaCmd.AddCommand(criteriaDeleteCmd)
}
