package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"explainer/internal/assets"
	"explainer/internal/config"
	"explainer/internal/fileutil"
	"explainer/internal/logging"
	"explainer/internal/media/ffmpeg"
	"explainer/internal/script"
	"explainer/internal/services"
	"explainer/internal/textutil"
	"explainer/internal/workspace"
)

// Encoder produces segments and joins them. *ffmpeg.Client satisfies it.
type Encoder interface {
	EncodeSegment(ctx context.Context, req ffmpeg.SegmentRequest) (string, error)
	Concatenate(ctx context.Context, req ffmpeg.ConcatRequest) (string, error)
}

// Workspace hands out locked per-run scratch directories.
type Workspace interface {
	Allocate(runID string) (*workspace.Dir, error)
}

// Options tune an Orchestrator. Zero durations disable the matching timeout.
type Options struct {
	OutputDir     string
	Concurrency   int
	SceneTimeout  time.Duration
	ConcatTimeout time.Duration
	Pacer         *Pacer
	Retry         RetryPolicy
	Observer      Observer
}

// OptionsFromConfig maps the [paths] and [render] config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		OutputDir:     cfg.Paths.OutputDir,
		Concurrency:   cfg.Render.Concurrency,
		SceneTimeout:  cfg.SceneTimeout(),
		ConcatTimeout: cfg.ConcatTimeout(),
		Pacer:         NewPacer(cfg.MinSceneInterval()),
	}
	if cfg.Render.EncodeRetries > 0 {
		opts.Retry = RetryPolicy{
			Attempts:   cfg.Render.EncodeRetries,
			Backoff:    cfg.RetryBackoff(),
			MaxBackoff: cfg.RetryMaxBackoff(),
		}
	}
	return opts
}

// Orchestrator runs render requests. It is safe for concurrent use; each
// Render call owns its own working directory.
type Orchestrator struct {
	encoder   Encoder
	workspace Workspace
	opts      Options
	logger    *slog.Logger
}

// New constructs an orchestrator.
func New(encoder Encoder, ws Workspace, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		encoder:   encoder,
		workspace: ws,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "render"),
	}
}

// sceneJob is one scene that has an image and will be encoded.
type sceneJob struct {
	index int
	res   assets.Resolution
}

// sceneResult is written once per scene index by its worker.
type sceneResult struct {
	path    string
	err     error
	skipped bool
}

// run carries per-call state through the stages.
type run struct {
	id       string
	title    string
	scenes   []script.Scene
	script   script.Script
	logger   *slog.Logger
	dir      *workspace.Dir
	skipped  []SkippedScene
	segments []string
	duration float64
}

// Render executes one request. On failure the returned error is a *RunError.
func (o *Orchestrator) Render(ctx context.Context, req Request) (*Artifact, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &run{id: req.ID}
	if r.id == "" {
		r.id = NewRunID()
	}
	ctx = services.WithRunID(ctx, r.id)
	r.logger = o.logger.With(logging.String(logging.FieldRunID, r.id))

	o.transition(ctx, r, StateInit)
	if err := req.Script.Validate(); err != nil {
		return nil, o.fail(ctx, r, StateInit, 0, services.Wrap(services.ErrInvalidScript, string(StateInit), "validate script", "", err))
	}
	r.script = req.Script
	r.script.Scenes = append([]script.Scene(nil), req.Script.Scenes...)
	r.script.Normalize()
	r.scenes = r.script.Scenes
	r.title = r.script.Title

	dir, err := o.workspace.Allocate(r.id)
	if err != nil {
		return nil, o.fail(ctx, r, StateInit, 0, services.Wrap(services.ErrTransient, string(StateInit), "allocate working directory", "", err))
	}
	r.dir = dir
	release := sync.OnceFunc(func() { o.release(r) })
	defer release()

	o.transition(ctx, r, StateResolving)
	jobs := o.resolve(r, req)

	o.transition(ctx, r, StateEncoding)
	results := o.encodeAll(ctx, r, jobs)
	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, r, StateEncoding, interruptedScene(r, results), err)
	}
	o.collect(r, results)
	if len(r.segments) == 0 {
		return nil, o.fail(ctx, r, StateEncoding, 0, services.Wrap(services.ErrNoValidSegments, string(StateEncoding), "collect segments",
			fmt.Sprintf("all %d scenes were skipped", len(r.scenes)), nil))
	}

	o.transition(ctx, r, StateConcatenating)
	joined, err := o.concatenate(ctx, r)
	if err != nil {
		return nil, o.fail(ctx, r, StateConcatenating, 0, err)
	}

	o.transition(ctx, r, StateFinalizing)
	artifact, err := o.finalize(r, joined)
	if err != nil {
		return nil, o.fail(ctx, r, StateFinalizing, 0, err)
	}
	release()

	o.transition(ctx, r, StateDone)
	r.logger.Info("render complete",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("output_path", artifact.Path),
		logging.Int64("size_bytes", artifact.SizeBytes),
		logging.Float64("duration_seconds", artifact.TotalDurationSeconds),
		logging.Int("segments", artifact.SegmentCount),
		logging.Int("skipped", len(artifact.Skipped)),
	)
	return artifact, nil
}

func (o *Orchestrator) resolve(r *run, req Request) []sceneJob {
	resolver := assets.NewResolver(req.Images, req.Audio, r.logger)
	jobs := make([]sceneJob, 0, len(r.scenes))
	for idx, scene := range r.scenes {
		res := resolver.Resolve(scene)
		if !res.HasImage {
			o.skip(r, idx, scene.ID, services.Wrap(services.ErrMissingSceneAsset, string(StateResolving), fmt.Sprintf("scene %d", scene.ID), "no image for scene", nil))
			continue
		}
		jobs = append(jobs, sceneJob{index: idx, res: res})
	}
	return jobs
}

func (o *Orchestrator) encodeAll(ctx context.Context, r *run, jobs []sceneJob) []sceneResult {
	results := make([]sceneResult, len(r.scenes))
	for i := range results {
		results[i].skipped = true
	}

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			path, err := o.encodeScene(ctx, r, job)
			results[job.index] = sceneResult{path: path, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) encodeScene(ctx context.Context, r *run, job sceneJob) (string, error) {
	scene := job.res.Scene
	sceneCtx := services.WithSceneID(services.WithStage(ctx, string(StateEncoding)), scene.ID)
	req := ffmpeg.SegmentRequest{
		Index:           job.index,
		SceneID:         scene.ID,
		ImagePath:       job.res.ImagePath,
		AudioPath:       job.res.AudioPath,
		DurationSeconds: scene.DurationSeconds,
		OutputPath:      r.dir.SegmentPath(job.index),
	}

	var lastErr error
	for attempt := 0; attempt <= o.opts.Retry.Attempts; attempt++ {
		if attempt > 0 {
			delay := o.opts.Retry.Delay(attempt)
			logging.WarnWithContext(r.logger, "retrying scene encode", "scene_encode_retry",
				logging.Int(logging.FieldSceneID, scene.ID),
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", o.opts.Retry.Attempts),
				logging.Duration("backoff", delay),
				logging.Error(lastErr),
				logging.String(logging.FieldImpact, "scene encode delayed"),
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return "", err
			}
		}
		if err := o.opts.Pacer.Wait(ctx); err != nil {
			return "", err
		}
		path, err := o.encodeOnce(sceneCtx, req)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

func (o *Orchestrator) encodeOnce(ctx context.Context, req ffmpeg.SegmentRequest) (string, error) {
	if o.opts.SceneTimeout <= 0 {
		return o.encoder.EncodeSegment(ctx, req)
	}
	sceneCtx, cancel := context.WithTimeout(ctx, o.opts.SceneTimeout)
	defer cancel()
	path, err := o.encoder.EncodeSegment(sceneCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(sceneCtx.Err(), context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, string(StateEncoding), fmt.Sprintf("scene %d", req.SceneID),
			fmt.Sprintf("exceeded %s", o.opts.SceneTimeout), err)
	}
	return path, err
}

// collect walks results in script order so segment order never depends on
// completion order.
func (o *Orchestrator) collect(r *run, results []sceneResult) {
	for idx, res := range results {
		scene := r.scenes[idx]
		switch {
		case res.skipped:
		case res.err != nil:
			err := res.err
			if !errors.Is(err, services.ErrEncodingFailure) {
				err = services.Wrap(services.ErrEncodingFailure, string(StateEncoding), fmt.Sprintf("scene %d", scene.ID), "", err)
			}
			o.skip(r, idx, scene.ID, err)
		default:
			r.segments = append(r.segments, res.path)
			r.duration += scene.DurationSeconds
		}
	}
}

// interruptedScene returns the first scene whose encode was cut short by
// cancellation, or 0.
func interruptedScene(r *run, results []sceneResult) int {
	for idx, res := range results {
		if res.err != nil && (errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)) {
			return r.scenes[idx].ID
		}
	}
	return 0
}

func (o *Orchestrator) concatenate(ctx context.Context, r *run) (string, error) {
	concatCtx := services.WithStage(ctx, string(StateConcatenating))
	if o.opts.ConcatTimeout > 0 {
		var cancel context.CancelFunc
		concatCtx, cancel = context.WithTimeout(concatCtx, o.opts.ConcatTimeout)
		defer cancel()
	}
	joined, err := o.encoder.Concatenate(concatCtx, ffmpeg.ConcatRequest{
		Segments:   r.segments,
		ListPath:   r.dir.ListPath(),
		OutputPath: r.dir.OutputPath(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		} else if ctxErr == nil && errors.Is(concatCtx.Err(), context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, string(StateConcatenating), "concat", fmt.Sprintf("exceeded %s", o.opts.ConcatTimeout), err)
		}
		if !errors.Is(err, services.ErrConcatenationFailure) {
			err = services.Wrap(services.ErrConcatenationFailure, string(StateConcatenating), "concat", "", err)
		}
		return "", err
	}
	return joined, nil
}

func (o *Orchestrator) finalize(r *run, joined string) (*Artifact, error) {
	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(StateFinalizing), "create output directory", o.opts.OutputDir, err)
	}
	name := fmt.Sprintf("%s-%s.mp4", textutil.Slug(r.title, "video"), textutil.SanitizeToken(r.id))
	final := filepath.Join(o.opts.OutputDir, name)
	if err := fileutil.MoveFile(joined, final); err != nil {
		return nil, services.Wrap(services.ErrTransient, string(StateFinalizing), "move output", final, err)
	}
	info, err := os.Stat(final)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, string(StateFinalizing), "stat output", final, err)
	}
	return &Artifact{
		ID:                    r.id,
		Title:                 r.title,
		Path:                  final,
		SizeBytes:             info.Size(),
		TotalDurationSeconds:  r.duration,
		ScriptDurationSeconds: r.script.TotalDurationSeconds,
		SceneCount:            len(r.scenes),
		SegmentCount:          len(r.segments),
		Skipped:               r.skipped,
	}, nil
}

func (o *Orchestrator) skip(r *run, index, sceneID int, err error) {
	r.skipped = append(r.skipped, SkippedScene{SceneID: sceneID, Index: index, Reason: err.Error()})
	hint := "check the ffmpeg output in the error field"
	switch {
	case errors.Is(err, services.ErrMissingSceneAsset):
		hint = "regenerate the image for this scene"
	case errors.Is(err, services.ErrExternalTool):
		hint = "run explainer deps to check the ffmpeg installation"
	case errors.Is(err, services.ErrTimeout):
		hint = "raise render.scene_timeout_seconds or shorten the scene"
	}
	logging.WarnWithContext(r.logger, "scene skipped", "scene_skipped",
		logging.Int(logging.FieldSceneID, sceneID),
		logging.Int(logging.FieldSceneIndex, index),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "scene omitted from the rendered video"),
	)
}

func (o *Orchestrator) release(r *run) {
	if r.dir == nil {
		return
	}
	if err := r.dir.Release(); err != nil {
		logging.WarnWithContext(r.logger, "failed to remove working directory", "cleanup_warning",
			logging.String("path", r.dir.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run the clean command to reclaim it"),
			logging.String(logging.FieldImpact, "temporary files remain on disk"),
		)
	}
}

func (o *Orchestrator) transition(ctx context.Context, r *run, state State) {
	r.logger.Info("render stage",
		logging.String(logging.FieldStage, string(state)),
		logging.String(logging.FieldEventType, "stage_transition"),
	)
	if o.opts.Observer != nil {
		o.opts.Observer(ctx, r.id, state)
	}
}

func (o *Orchestrator) fail(ctx context.Context, r *run, stage State, sceneID int, err error) error {
	runErr := &RunError{RunID: r.id, Stage: stage, SceneID: sceneID, Skipped: r.skipped, Err: err}
	logging.ErrorWithContext(r.logger, "render failed", "render_failed",
		logging.String(logging.FieldStage, string(stage)),
		logging.Error(err),
		logging.Int("skipped", len(r.skipped)),
	)
	o.transition(context.WithoutCancel(ctx), r, StateFailed)
	return runErr
}
