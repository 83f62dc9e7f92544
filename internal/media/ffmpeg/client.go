package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"

	"explainer/internal/logging"
	"explainer/internal/media/ffprobe"
	"explainer/internal/services"
)

// CommandRunner executes an external command and returns an error that
// includes its output when it fails.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Client encodes segments and concatenates them with one fixed profile.
type Client struct {
	binary      string
	probeBinary string
	profile     Profile
	logger      *slog.Logger
	run         CommandRunner
	probe       ProbeFunc
}

// New constructs a client. Empty binary names fall back to ffmpeg and ffprobe
// on PATH.
func New(binary, probeBinary string, profile Profile, logger *slog.Logger) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	probeBinary = strings.TrimSpace(probeBinary)
	if probeBinary == "" {
		probeBinary = "ffprobe"
	}
	return &Client{
		binary:      binary,
		probeBinary: probeBinary,
		profile:     profile,
		logger:      logging.NewComponentLogger(logger, "ffmpeg"),
		run:         defaultCommandRunner,
		probe:       ffprobe.Inspect,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (c *Client) WithCommandRunner(r CommandRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

// WithProbe replaces the stream inspector used for segment verification.
func (c *Client) WithProbe(p ProbeFunc) {
	if c != nil && p != nil {
		c.probe = p
	}
}

// Profile returns the client's encoding profile.
func (c *Client) Profile() Profile {
	return c.profile
}

func (c *Client) exec(ctx context.Context, args []string) error {
	c.logger.Debug("executing ffmpeg",
		logging.String("binary", c.binary),
		logging.String("args", strings.Join(args, " ")),
	)
	err := c.run(ctx, c.binary, args...)
	if err == nil {
		return nil
	}
	if notStarted(err) {
		return fmt.Errorf("%w: %s: %w", services.ErrExternalTool, c.binary, err)
	}
	// A killed process reports "signal: killed"; surface the cancellation cause.
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// notStarted reports whether err means the binary never ran, as opposed to
// ffmpeg exiting with an error.
func notStarted(err error) bool {
	var startErr *exec.Error
	if errors.As(err, &startErr) {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(strings.TrimSpace(string(output)), 2048))
	}
	return nil
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return "…" + s[len(s)-limit:]
}
