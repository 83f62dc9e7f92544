package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"explainer/internal/logging"
	"explainer/internal/services"
)

// SegmentRequest describes one scene to encode.
type SegmentRequest struct {
	Index           int
	SceneID         int
	ImagePath       string
	AudioPath       string
	DurationSeconds float64
	OutputPath      string
}

// EncodeSegment renders the still image for exactly DurationSeconds with the
// narration clip, or with silence when the clip is absent or empty. The output
// path is returned on success. On failure no output file is left behind;
// inputs are never touched.
func (c *Client) EncodeSegment(ctx context.Context, req SegmentRequest) (string, error) {
	if c == nil {
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", "segment", "ffmpeg client not initialized", nil)
	}
	op := fmt.Sprintf("scene %d", req.SceneID)
	if strings.TrimSpace(req.OutputPath) == "" {
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "output path is required", nil)
	}
	if req.DurationSeconds <= 0 || math.IsNaN(req.DurationSeconds) || math.IsInf(req.DurationSeconds, 0) {
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, fmt.Sprintf("invalid duration %v", req.DurationSeconds), nil)
	}
	if info, err := os.Stat(req.ImagePath); err != nil {
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "image not readable", err)
	} else if info.IsDir() {
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "image path is a directory", nil)
	}

	audio := c.usableAudio(req)
	args := c.segmentArgs(req, audio)
	if err := c.exec(ctx, args); err != nil {
		c.discard(req.OutputPath)
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "ffmpeg failed", err)
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "ffmpeg produced no output", err)
	}
	if info.Size() == 0 {
		c.discard(req.OutputPath)
		return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "ffmpeg produced an empty file", nil)
	}

	if c.profile.Verify {
		result, err := c.probe(ctx, c.probeBinary, req.OutputPath)
		if err != nil {
			c.discard(req.OutputPath)
			return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "inspect segment", err)
		}
		if err := result.CheckLayout(c.profile.SegmentLayout(req.DurationSeconds)); err != nil {
			c.discard(req.OutputPath)
			return "", services.Wrap(services.ErrEncodingFailure, "encoding", op, "unexpected stream layout", err)
		}
	}

	c.logger.Debug("segment encoded",
		logging.Int(logging.FieldSceneID, req.SceneID),
		logging.Int(logging.FieldSceneIndex, req.Index),
		logging.String("segment_path", req.OutputPath),
		logging.Int64("size_bytes", info.Size()),
		logging.Bool("silent", audio == ""),
	)
	return req.OutputPath, nil
}

// usableAudio returns the narration path when it names a non-empty regular
// file, otherwise "" to request silence.
func (c *Client) usableAudio(req SegmentRequest) string {
	path := strings.TrimSpace(req.AudioPath)
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		logging.WarnWithContext(c.logger, "narration clip unreadable; using silence", "audio_fallback_silence",
			logging.Int(logging.FieldSceneID, req.SceneID),
			logging.String("audio_path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scene renders without narration"),
		)
		return ""
	case info.IsDir() || info.Size() == 0:
		logging.WarnWithContext(c.logger, "narration clip empty; using silence", "audio_fallback_silence",
			logging.Int(logging.FieldSceneID, req.SceneID),
			logging.String("audio_path", path),
			logging.String(logging.FieldImpact, "scene renders without narration"),
		)
		return ""
	}
	return path
}

func (c *Client) segmentArgs(req SegmentRequest, audioPath string) []string {
	p := c.profile
	duration := formatSeconds(req.DurationSeconds)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-loop", "1", "-framerate", strconv.Itoa(p.FrameRate), "-t", duration, "-i", req.ImagePath,
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	} else {
		args = append(args, "-f", "lavfi", "-t", duration, "-i", p.silenceSource())
	}
	args = append(args,
		"-map", "0:v:0", "-map", "1:a:0",
		"-vf", p.VideoFilter(),
		"-c:v", p.VideoCodec,
	)
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	args = append(args, "-crf", strconv.Itoa(p.CRF))
	if p.VideoCodec == "libx264" {
		args = append(args, "-tune", "stillimage")
	}
	args = append(args,
		"-pix_fmt", p.PixelFormat,
		"-r", strconv.Itoa(p.FrameRate),
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-t", duration,
	)
	if audioPath != "" {
		args = append(args, "-shortest")
	}
	return append(args, "-movflags", "+faststart", req.OutputPath)
}

func (c *Client) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(c.logger, "failed to remove partial output", "cleanup_warning",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "partial file remains until the run directory is removed"),
		)
	}
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
