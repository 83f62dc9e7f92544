package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"explainer/internal/api"
	"explainer/internal/config"
	"explainer/internal/history"
	"explainer/internal/logging"
	"explainer/internal/media/ffmpeg"
	"explainer/internal/render"
	"explainer/internal/workspace"
)

// encoderHook lets tests adjust the ffmpeg client before a render starts.
var encoderHook func(*ffmpeg.Client)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// openHistory opens the history store. Callers close it.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

// newRenderService wires the ffmpeg encoder, workspace manager, orchestrator
// and history store together.
func newRenderService(cfg *config.Config, store *history.Store, logger *slog.Logger) *api.RenderService {
	client := ffmpeg.New(cfg.FFmpeg.Binary, cfg.FFmpeg.ProbeBinary, ffmpeg.ProfileFromConfig(cfg.FFmpeg), logger)
	if encoderHook != nil {
		encoderHook(client)
	}
	ws := workspace.NewManager(cfg.Paths.WorkDir, logger)
	opts := render.OptionsFromConfig(cfg)
	opts.Observer = api.StageRecorder(store, logger)
	orchestrator := render.New(client, ws, opts, logger)
	return api.NewRenderService(store, orchestrator, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
