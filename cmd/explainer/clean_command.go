package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"explainer/internal/workspace"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove work directories left behind by interrupted renders",
		Long: "Remove run directories under paths.work_dir that are older than\n" +
			"render.stale_work_hours. Directories locked by a running render are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			manager := workspace.NewManager(cfg.Paths.WorkDir, logger)
			out := cmd.OutOrStdout()

			if listOnly {
				dirs, err := manager.List()
				if err != nil {
					return err
				}
				if len(dirs) == 0 {
					fmt.Fprintln(out, "No work directories")
					return nil
				}
				rows := make([][]string, 0, len(dirs))
				for _, d := range dirs {
					rows = append(rows, []string{d.Name, formatBytes(d.Size), formatAge(d.ModTime), yesNo(d.Locked)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Directory", "Size", "Modified", "In use"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			}

			age := cfg.StaleWorkAge()
			if cmd.Flags().Changed("older-than") {
				age = olderThan
			}
			result := manager.CleanStale(cmd.Context(), age)
			fmt.Fprintf(out, "Removed %s", pluralize(len(result.Removed), "work directory", "work directories"))
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, ", skipped %d in use", len(result.Skipped))
			}
			fmt.Fprintln(out)
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", e.Path, e.Error)
				}
				return fmt.Errorf("failed to remove %d work directories", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum age to remove (overrides render.stale_work_hours)")
	cmd.Flags().BoolVar(&listOnly, "list", false, "List work directories without removing anything")
	return cmd
}
