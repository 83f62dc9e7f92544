package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"explainer/internal/api"
	"explainer/internal/config"
	"explainer/internal/deps"
	"explainer/internal/history"
	"explainer/internal/logging"
	"explainer/internal/workspace"
)

const serveLockName = "explainer.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve render submission, history, and playback over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.API.Bind = bind
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServer(signalCtx, cfg, logger, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides api.bind)")
	return cmd
}

// runServer holds the single-instance lock, recovers state left by a previous
// crash, and serves until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(addr string)) error {
	logger = logging.NewComponentLogger(logger, "serve")
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Paths.StateDir, serveLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire server lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another explainer server is already running (lock %s)", lock.Path())
	}
	defer func() {
		_ = lock.Unlock()
	}()

	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	recoverState(ctx, cfg, store, logger)

	svc := newRenderService(cfg, store, logger)
	checker := func(context.Context) []deps.Status {
		return deps.CheckBinaries(deps.RenderRequirements(cfg))
	}
	srv, err := api.NewServer(cfg, svc, store.Path(), checker, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	if ready != nil {
		ready(srv.Addr())
	}

	<-ctx.Done()
	srv.Stop()
	logger.Info("api server stopped")
	return nil
}

func recoverState(ctx context.Context, cfg *config.Config, store *history.Store, logger *slog.Logger) {
	if n, err := store.ResetInterrupted(ctx); err != nil {
		logging.WarnWithContext(logger, "failed to reset interrupted renders", "history_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "interrupted renders stay in the rendering state"),
		)
	} else if n > 0 {
		logger.Info("marked interrupted renders as failed",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "history_reset"),
		)
	}

	result := workspace.NewManager(cfg.Paths.WorkDir, logger).CleanStale(ctx, cfg.StaleWorkAge())
	if len(result.Removed) > 0 {
		logger.Info("removed stale work directories",
			logging.Int("count", len(result.Removed)),
			logging.String(logging.FieldEventType, "workspace_cleaned"),
		)
	}

	if retention := cfg.Retention(); retention > 0 {
		pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := api.NewRenderService(store, nil, logger).Prune(pruneCtx, retention); err != nil {
			logging.WarnWithContext(logger, "failed to prune expired renders", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "expired videos remain until the next prune"),
			)
		}
	}
}
