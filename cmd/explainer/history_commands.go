package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"explainer/internal/api"
	"explainer/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage past renders",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryRemoveCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]history.Status, 0, len(statusFlags))
			for _, value := range statusFlags {
				status, ok := history.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}

			store, err := ctx.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			renders, err := store.List(cmd.Context(), limit, statuses...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.RenderListResponse{Items: api.FromRenders(renders)})
			}
			out := cmd.OutOrStdout()
			if len(renders) == 0 {
				fmt.Fprintln(out, "No renders recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(renders, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of renders to show (0 for all)")
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print renders as JSON")
	return cmd
}

func renderHistoryTable(renders []*history.Render, colorize bool) string {
	rows := make([][]string, 0, len(renders))
	for _, r := range renders {
		rows = append(rows, []string{
			shortID(r.ID),
			r.Title,
			colorizeText(string(r.Status), renderStatusKind(string(r.Status)), colorize),
			fmt.Sprintf("%d/%d", r.SegmentCount, r.SceneCount),
			formatSeconds(r.DurationSeconds),
			formatBytes(r.SizeBytes),
			formatAge(r.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Status", "Scenes", "Duration", "Size", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			record, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("render %s not found", args[0])
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromRender(record))
			}
			out := cmd.OutOrStdout()
			printRenderDetails(out, record, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the render as JSON")
	return cmd
}

func printRenderDetails(out io.Writer, r *history.Render, colorize bool) {
	for _, line := range renderSectionHeader(r.Title, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "ID:        %s\n", r.ID)
	fmt.Fprintf(out, "Status:    %s\n", colorizeText(string(r.Status), renderStatusKind(string(r.Status)), colorize))
	if r.Stage != "" {
		fmt.Fprintf(out, "Stage:     %s\n", r.Stage)
	}
	if r.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest:  %s\n", r.ManifestPath)
	}
	if r.OutputPath != "" {
		fmt.Fprintf(out, "Output:    %s\n", r.OutputPath)
	}
	fmt.Fprintf(out, "Scenes:    %d encoded of %d\n", r.SegmentCount, r.SceneCount)
	fmt.Fprintf(out, "Duration:  %s\n", formatSeconds(r.DurationSeconds))
	fmt.Fprintf(out, "Size:      %s\n", formatBytes(r.SizeBytes))
	fmt.Fprintf(out, "Created:   %s (%s)\n", r.CreatedAt.Local().Format(time.DateTime), formatAge(r.CreatedAt))
	if r.CompletedAt != nil {
		fmt.Fprintf(out, "Completed: %s\n", r.CompletedAt.Local().Format(time.DateTime))
	}
	if r.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", r.ErrorMessage)
	}
	printSkipped(out, r.Skipped)
}

func newHistoryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id> [id...]",
		Aliases: []string{"remove"},
		Short:   "Remove renders and their video files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			svc := api.NewRenderService(store, nil, logger)
			out := cmd.OutOrStdout()
			var errs []error
			for _, arg := range args {
				id := strings.TrimSpace(arg)
				found, err := svc.Remove(cmd.Context(), id)
				switch {
				case err != nil:
					errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
				case !found:
					fmt.Fprintf(out, "Render %s not found\n", id)
				default:
					fmt.Fprintf(out, "Render %s removed\n", id)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove finished renders past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			retention := cfg.Retention()
			if cmd.Flags().Changed("days") {
				if days < 1 {
					return errors.New("--days must be at least 1")
				}
				retention = time.Duration(days) * 24 * time.Hour
			}
			out := cmd.OutOrStdout()
			if retention <= 0 {
				fmt.Fprintln(out, "Retention disabled (outputs.retention_days = 0); nothing pruned")
				return nil
			}

			store, err := ctx.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			result, err := api.NewRenderService(store, nil, logger).Prune(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %s\n", pluralize(len(result.Removed), "render", "renders"))
			return errors.Join(result.Errors...)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Override outputs.retention_days")
	return cmd
}
