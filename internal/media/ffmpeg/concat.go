package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"explainer/internal/fileutil"
	"explainer/internal/logging"
	"explainer/internal/services"
)

// ConcatRequest lists segments in playback order.
type ConcatRequest struct {
	Segments   []string
	ListPath   string
	OutputPath string
}

// Concatenate joins the segments in the given order without re-encoding. The
// result is written to a hidden partial file beside OutputPath and renamed
// into place, so OutputPath only ever holds a complete file.
func (c *Client) Concatenate(ctx context.Context, req ConcatRequest) (string, error) {
	if c == nil {
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "ffmpeg client not initialized", nil)
	}
	if len(req.Segments) == 0 {
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "no segments to join", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" || strings.TrimSpace(req.ListPath) == "" {
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "list and output paths are required", nil)
	}
	if err := WriteConcatList(req.ListPath, req.Segments); err != nil {
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "write list", "", err)
	}

	partial := fileutil.PartialPath(req.OutputPath)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "concat", "-safe", "0", "-i", req.ListPath,
		"-c", "copy", "-movflags", "+faststart",
		"-f", "mp4", partial,
	}
	if err := c.exec(ctx, args); err != nil {
		c.discard(partial)
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "ffmpeg failed", err)
	}

	info, err := os.Stat(partial)
	if err != nil {
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "ffmpeg produced no output", err)
	}
	if info.Size() == 0 {
		c.discard(partial)
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "concat", "ffmpeg produced an empty file", nil)
	}
	if err := os.Rename(partial, req.OutputPath); err != nil {
		c.discard(partial)
		return "", services.Wrap(services.ErrConcatenationFailure, "concatenating", "promote output", "", err)
	}

	c.logger.Debug("segments concatenated",
		logging.Int("segment_count", len(req.Segments)),
		logging.String("output_path", req.OutputPath),
		logging.Int64("size_bytes", info.Size()),
	)
	return req.OutputPath, nil
}

// WriteConcatList writes an ffmpeg concat demuxer manifest, one file line per
// segment in the given order. Paths are made absolute and single quotes
// escaped.
func WriteConcatList(path string, segments []string) error {
	var b strings.Builder
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return errors.New("empty segment path")
		}
		if strings.ContainsAny(segment, "\r\n") {
			return fmt.Errorf("segment path %q contains a line break", segment)
		}
		abs, err := filepath.Abs(segment)
		if err != nil {
			return fmt.Errorf("resolve segment path: %w", err)
		}
		b.WriteString("file '")
		b.WriteString(escapeConcatPath(abs))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
