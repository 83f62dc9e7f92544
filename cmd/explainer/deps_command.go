package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"explainer/internal/api"
	"explainer/internal/config"
	"explainer/internal/deps"
)

// requiredFilters are the ffmpeg filters every segment encode uses.
var requiredFilters = []string{"scale", "pad", "setsar", "format", "anullsrc"}

type depsReport struct {
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Version      string                 `json:"ffmpegVersion,omitempty"`
	Missing      []string               `json:"missingCapabilities,omitempty"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check that ffmpeg and ffprobe are installed and capable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			statuses := deps.CheckBinaries(deps.RenderRequirements(cfg))
			report := depsReport{Dependencies: api.FromDependencies(statuses)}
			var capErr error
			if statuses[0].Available {
				report.Version, report.Missing, capErr = probeFFmpeg(checkCtx, cfg)
			}

			missing := deps.MissingRequired(statuses)
			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, status := range statuses {
					fmt.Fprintln(out, renderStatusLine(status.Name, dependencyKind(status), dependencyMessage(status), colorize))
				}
				if report.Version != "" {
					fmt.Fprintln(out, renderStatusLine("Version", statusInfo, report.Version, colorize))
				}
				switch {
				case capErr != nil:
					fmt.Fprintln(out, renderStatusLine("Capabilities", statusWarn, capErr.Error(), colorize))
				case len(report.Missing) > 0:
					fmt.Fprintln(out, renderStatusLine("Capabilities", statusError, "missing "+strings.Join(report.Missing, ", "), colorize))
				case statuses[0].Available:
					fmt.Fprintln(out, renderStatusLine("Capabilities", statusOK, "encoders and filters present", colorize))
				}
			}

			if len(missing) > 0 {
				names := make([]string, len(missing))
				for i, m := range missing {
					names[i] = m.Name
				}
				return fmt.Errorf("missing required dependencies: %s", strings.Join(names, ", "))
			}
			if len(report.Missing) > 0 {
				return errors.New("ffmpeg lacks required capabilities")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func probeFFmpeg(ctx context.Context, cfg *config.Config) (string, []string, error) {
	version, err := deps.FFmpegVersion(ctx, cfg.FFmpeg.Binary)
	if err != nil {
		return "", nil, err
	}
	encoders := []string{cfg.FFmpeg.VideoCodec, cfg.FFmpeg.AudioCodec}
	missing, err := deps.MissingCapabilities(ctx, cfg.FFmpeg.Binary, encoders, requiredFilters)
	return version, missing, err
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(status deps.Status) string {
	if status.Available {
		if status.Path != "" {
			return status.Path
		}
		return status.Command
	}
	msg := status.Command + " not found"
	if status.Detail != "" {
		msg = status.Detail
	}
	if status.Optional {
		msg += " (optional: " + status.Description + ")"
	}
	return msg
}
