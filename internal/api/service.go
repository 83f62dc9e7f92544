package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"explainer/internal/history"
	"explainer/internal/logging"
	"explainer/internal/render"
	"explainer/internal/services"
)

// Renderer runs one render request.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Artifact, error)
}

// ErrRenderActive rejects removal of a render that has not finished.
var ErrRenderActive = errors.New("render is still in progress")

// RenderService records render runs in the history store.
type RenderService struct {
	store    *history.Store
	renderer Renderer
	logger   *slog.Logger
	active   atomic.Int64
}

// NewRenderService constructs a service around store and renderer.
func NewRenderService(store *history.Store, renderer Renderer, logger *slog.Logger) *RenderService {
	return &RenderService{
		store:    store,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "render-service"),
	}
}

// StageRecorder returns an observer that persists non-terminal stage
// transitions. Terminal states are written by RenderService.Run.
func StageRecorder(store *history.Store, logger *slog.Logger) render.Observer {
	logger = logging.NewComponentLogger(logger, "render-service")
	return func(ctx context.Context, runID string, state render.State) {
		if state == render.StateDone || state == render.StateFailed {
			return
		}
		if err := store.UpdateStage(context.WithoutCancel(ctx), runID, string(state)); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				return
			}
			logging.WarnWithContext(logger, "failed to record render stage", "history_update_failed",
				logging.String(logging.FieldRunID, runID),
				logging.String(logging.FieldStage, string(state)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "history shows a stale stage for this run"),
			)
		}
	}
}

// Active returns the number of runs in progress.
func (s *RenderService) Active() int64 {
	return s.active.Load()
}

// Run renders req and records the outcome. The history row is returned in both
// the success and failure cases once it exists.
func (s *RenderService) Run(ctx context.Context, req render.Request, manifestPath string) (*history.Render, *render.Artifact, error) {
	if req.ID == "" {
		req.ID = render.NewRunID()
	}
	if _, err := s.store.Create(ctx, history.Render{
		ID:           req.ID,
		Title:        req.Script.Title,
		ManifestPath: manifestPath,
		SceneCount:   len(req.Script.Scenes),
	}); err != nil {
		return nil, nil, fmt.Errorf("record render: %w", err)
	}

	s.active.Add(1)
	artifact, runErr := s.renderer.Render(ctx, req)
	s.active.Add(-1)

	persistCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		stage := ""
		var skipped []render.SkippedScene
		var re *render.RunError
		if errors.As(runErr, &re) {
			stage = string(re.Stage)
			skipped = re.Skipped
		}
		if err := s.store.Fail(persistCtx, req.ID, services.FailureStatus(runErr), stage, runErr.Error(), ToHistorySkipped(skipped)); err != nil {
			s.logFailure("failed to record render failure", req.ID, err)
		}
		record, _ := s.store.Get(persistCtx, req.ID)
		return record, nil, runErr
	}

	if err := s.store.Complete(persistCtx, req.ID, history.Outcome{
		OutputPath:      artifact.Path,
		SizeBytes:       artifact.SizeBytes,
		DurationSeconds: artifact.TotalDurationSeconds,
		SegmentCount:    artifact.SegmentCount,
		Skipped:         ToHistorySkipped(artifact.Skipped),
	}); err != nil {
		s.logFailure("failed to record render completion", req.ID, err)
	}
	record, err := s.store.Get(persistCtx, req.ID)
	if err != nil {
		return nil, artifact, err
	}
	return record, artifact, nil
}

// List returns recent renders, newest first.
func (s *RenderService) List(ctx context.Context, limit int, statuses ...history.Status) ([]*history.Render, error) {
	return s.store.List(ctx, limit, statuses...)
}

// Describe fetches one render, or nil when the ID is unknown.
func (s *RenderService) Describe(ctx context.Context, id string) (*history.Render, error) {
	return s.store.Get(ctx, id)
}

// Stats returns counts per status.
func (s *RenderService) Stats(ctx context.Context) (map[history.Status]int, error) {
	return s.store.Stats(ctx)
}

// Remove deletes a finished render's video file and its history row. It
// reports whether the render existed.
func (s *RenderService) Remove(ctx context.Context, id string) (bool, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil || record == nil {
		return false, err
	}
	if !record.Status.IsTerminal() {
		return true, ErrRenderActive
	}
	if record.OutputPath != "" {
		if err := os.Remove(record.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return true, fmt.Errorf("remove output: %w", err)
		}
	}
	return s.store.Delete(ctx, id)
}

// Prune removes renders older than retention. A non-positive retention keeps
// everything.
func (s *RenderService) Prune(ctx context.Context, retention time.Duration) (history.PruneResult, error) {
	if retention <= 0 {
		return history.PruneResult{}, nil
	}
	result, err := s.store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		return result, err
	}
	for _, pruneErr := range result.Errors {
		logging.WarnWithContext(s.logger, "failed to prune render", "history_prune_failed",
			logging.Error(pruneErr),
			logging.String(logging.FieldImpact, "expired video remains on disk"),
		)
	}
	if len(result.Removed) > 0 {
		s.logger.Info("pruned expired renders",
			logging.Int("removed", len(result.Removed)),
			logging.String(logging.FieldEventType, "history_pruned"),
		)
	}
	return result, nil
}

func (s *RenderService) logFailure(msg, runID string, err error) {
	logging.ErrorWithContext(s.logger, msg, "history_update_failed",
		logging.String(logging.FieldRunID, runID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
	)
}
