package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable. Every violation is reported.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateFFmpeg(),
		c.validateRender(),
		c.validateOutputs(),
		c.validateLogging(),
	)
}

func (c *Config) validateFFmpeg() error {
	var errs []error
	if c.FFmpeg.VideoCodec == "" {
		errs = append(errs, errors.New("ffmpeg.video_codec must be set"))
	}
	if c.FFmpeg.PixelFormat == "" {
		errs = append(errs, errors.New("ffmpeg.pixel_format must be set"))
	}
	if c.FFmpeg.AudioCodec == "" {
		errs = append(errs, errors.New("ffmpeg.audio_codec must be set"))
	}
	if c.FFmpeg.AudioBitrate == "" {
		errs = append(errs, errors.New("ffmpeg.audio_bitrate must be set"))
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		errs = append(errs, fmt.Errorf("ffmpeg.crf must be between 0 and 51, got %d", c.FFmpeg.CRF))
	}
	if c.FFmpeg.FrameRate <= 0 || c.FFmpeg.FrameRate > 120 {
		errs = append(errs, fmt.Errorf("ffmpeg.frame_rate must be between 1 and 120, got %d", c.FFmpeg.FrameRate))
	}
	if c.FFmpeg.SampleRate <= 0 {
		errs = append(errs, errors.New("ffmpeg.sample_rate must be positive"))
	}
	if c.FFmpeg.Channels != 1 && c.FFmpeg.Channels != 2 {
		errs = append(errs, fmt.Errorf("ffmpeg.channels must be 1 or 2, got %d", c.FFmpeg.Channels))
	}
	return errors.Join(errs...)
}

func (c *Config) validateRender() error {
	var errs []error
	if c.Render.Concurrency < 1 {
		errs = append(errs, errors.New("render.concurrency must be at least 1"))
	}
	if c.Render.SceneTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("render.scene_timeout_seconds must be positive"))
	}
	if c.Render.ConcatTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("render.concat_timeout_seconds must be positive"))
	}
	if c.Render.MinSceneIntervalMillis < 0 {
		errs = append(errs, errors.New("render.min_scene_interval_ms must be >= 0"))
	}
	if c.Render.EncodeRetries < 0 {
		errs = append(errs, errors.New("render.encode_retries must be >= 0"))
	}
	if c.Render.RetryBackoffSeconds < 0 {
		errs = append(errs, errors.New("render.retry_backoff_seconds must be >= 0"))
	}
	if c.Render.RetryMaxBackoffSeconds < 0 {
		errs = append(errs, errors.New("render.retry_max_backoff_seconds must be >= 0"))
	}
	if c.Render.StaleWorkHours <= 0 {
		errs = append(errs, errors.New("render.stale_work_hours must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateOutputs() error {
	if c.Outputs.RetentionDays < 0 {
		return errors.New("outputs.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	var errs []error
	if !slices.Contains([]string{"console", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}
