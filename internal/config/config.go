package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// FFmpeg contains the encoder binaries and the uniform segment profile.
// Every segment of a run is produced with these settings so the final
// concatenation can stream-copy.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	ProbeBinary    string `toml:"probe_binary"`
	VideoCodec     string `toml:"video_codec"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	PixelFormat    string `toml:"pixel_format"`
	FrameRate      int    `toml:"frame_rate"`
	AudioCodec     string `toml:"audio_codec"`
	AudioBitrate   string `toml:"audio_bitrate"`
	SampleRate     int    `toml:"sample_rate"`
	Channels       int    `toml:"channels"`
	VerifySegments bool   `toml:"verify_segments"`
}

// Render contains pipeline scheduling knobs.
type Render struct {
	Concurrency          int `toml:"concurrency"`
	SceneTimeoutSeconds  int `toml:"scene_timeout_seconds"`
	ConcatTimeoutSeconds int `toml:"concat_timeout_seconds"`
	// MinSceneIntervalMillis spaces scene-level operations apart. Zero disables pacing.
	MinSceneIntervalMillis int `toml:"min_scene_interval_ms"`
	EncodeRetries          int `toml:"encode_retries"`
	RetryBackoffSeconds    int `toml:"retry_backoff_seconds"`
	// RetryMaxBackoffSeconds caps the doubling backoff. Zero leaves it uncapped.
	RetryMaxBackoffSeconds int `toml:"retry_max_backoff_seconds"`
	StaleWorkHours         int `toml:"stale_work_hours"`
}

// Outputs controls the lifecycle of rendered files.
type Outputs struct {
	// RetentionDays removes rendered videos older than this many days during
	// pruning. Zero keeps outputs forever.
	RetentionDays int `toml:"retention_days"`
}

// API contains the HTTP server settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for explainer.
//
// Configuration sections by subsystem:
//   - Paths: working, output, state, and log directories
//   - FFmpeg: binaries and the segment encoding profile
//   - Render: concurrency, timeouts, pacing, and retries
//   - Outputs: retention of rendered files
//   - API: HTTP bind address and bearer token
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Render  Render  `toml:"render"`
	Outputs Outputs `toml:"outputs"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/explainer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("explainer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the renderer writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SceneTimeout returns the per-scene encode timeout.
func (c *Config) SceneTimeout() time.Duration {
	return time.Duration(c.Render.SceneTimeoutSeconds) * time.Second
}

// ConcatTimeout returns the concatenation timeout.
func (c *Config) ConcatTimeout() time.Duration {
	return time.Duration(c.Render.ConcatTimeoutSeconds) * time.Second
}

// MinSceneInterval returns the minimum spacing between scene operations.
func (c *Config) MinSceneInterval() time.Duration {
	return time.Duration(c.Render.MinSceneIntervalMillis) * time.Millisecond
}

// RetryBackoff returns the initial backoff between encode attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Render.RetryBackoffSeconds) * time.Second
}

// RetryMaxBackoff returns the ceiling for the doubling encode backoff.
func (c *Config) RetryMaxBackoff() time.Duration {
	return time.Duration(c.Render.RetryMaxBackoffSeconds) * time.Second
}

// StaleWorkAge returns the age after which orphaned run directories are removed.
func (c *Config) StaleWorkAge() time.Duration {
	return time.Duration(c.Render.StaleWorkHours) * time.Hour
}

// Retention returns how long rendered outputs are kept. Zero means forever.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Outputs.RetentionDays) * 24 * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
