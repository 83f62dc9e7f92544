package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"explainer/internal/api"
	"explainer/internal/config"
	"explainer/internal/deps"
	"explainer/internal/history"
	"explainer/internal/render"
	"explainer/internal/script"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var concurrency int
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "render <manifest>",
		Short: "Render a manifest of scenes into a video",
		Long: "Render a manifest into a single MP4.\n\n" +
			"The manifest is a JSON document with the finalized script, the generated\n" +
			"images, and the narration clips. Relative asset paths are resolved against\n" +
			"the manifest's directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if outputDir != "" {
				expanded, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output dir: %w", err)
				}
				cfg.Paths.OutputDir = expanded
				if err := cfg.EnsureDirectories(); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("concurrency") {
				if concurrency < 1 {
					return errors.New("--concurrency must be at least 1")
				}
				cfg.Render.Concurrency = concurrency
			}

			if missing := deps.MissingRequired(deps.CheckBinaries(deps.RenderRequirements(cfg))); len(missing) > 0 {
				return fmt.Errorf("%s unavailable: %s (run `explainer deps`)", missing[0].Name, missing[0].Detail)
			}

			manifestPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve manifest path: %w", err)
			}
			req, err := render.LoadRequest(manifestPath)
			if err != nil {
				return err
			}
			if runID != "" {
				req.ID = runID
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			store, err := ctx.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc := newRenderService(cfg, store, logger)
			record, _, runErr := svc.Run(signalCtx, req, manifestPath)
			if jsonOutput {
				if record != nil {
					if err := writeJSON(cmd, api.FromRender(record)); err != nil {
						return err
					}
				}
				return runErr
			}
			if runErr != nil {
				if record != nil {
					printSkipped(cmd.ErrOrStderr(), record.Skipped)
				}
				return runErr
			}
			printRenderResult(cmd.OutOrStdout(), record, req.Script.Scenes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the finished video (overrides paths.output_dir)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Number of scenes to encode in parallel (overrides render.concurrency)")
	cmd.Flags().StringVar(&runID, "id", "", "Run identifier (defaults to the manifest id or a new UUID)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the render record as JSON")
	return cmd
}

func printRenderResult(out io.Writer, record *history.Render, scenes []script.Scene) {
	if record == nil {
		return
	}
	fmt.Fprintf(out, "Rendered %q\n", record.Title)
	fmt.Fprintf(out, "  Output:   %s\n", record.OutputPath)
	fmt.Fprintf(out, "  Duration: %s\n", formatSeconds(record.DurationSeconds))
	fmt.Fprintf(out, "  Size:     %s\n", formatBytes(record.SizeBytes))
	fmt.Fprintf(out, "  Scenes:   %d of %d\n", record.SegmentCount, record.SceneCount)
	fmt.Fprintf(out, "  Visuals:  %s\n", formatVisuals(scenes))
	fmt.Fprintf(out, "  Run ID:   %s\n", record.ID)
	printSkipped(out, record.Skipped)
}

func printSkipped(out io.Writer, skipped []history.SkippedScene) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(out, "Skipped %s:\n", pluralize(len(skipped), "scene", "scenes"))
	for _, s := range skipped {
		fmt.Fprintf(out, "  - scene %d: %s\n", s.SceneID, s.Reason)
	}
}
