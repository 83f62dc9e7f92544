package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	PixFmt     string `json:"pix_fmt"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Layout is the stream shape a segment is expected to have. Zero fields are
// not checked.
type Layout struct {
	VideoCodec         string
	Width              int
	Height             int
	PixelFormat        string
	AudioCodec         string
	SampleRate         int
	Channels           int
	MaxDurationSeconds float64
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes an ffprobe JSON report.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

func (r Result) firstOfType(kind string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	value := parseFloat(r.Format.Duration)
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}

// CheckLayout reports every way the file deviates from exactly one video
// stream plus one audio stream in the expected shape. Codec names are
// compared against ffprobe's codec_name, not the encoder name.
func (r Result) CheckLayout(want Layout) error {
	var problems []string
	if n := r.VideoStreamCount(); n != 1 {
		problems = append(problems, fmt.Sprintf("expected 1 video stream, found %d", n))
	}
	if n := r.AudioStreamCount(); n != 1 {
		problems = append(problems, fmt.Sprintf("expected 1 audio stream, found %d", n))
	}
	if video, ok := r.firstOfType("video"); ok {
		if want.VideoCodec != "" && video.CodecName != "" && !strings.EqualFold(video.CodecName, want.VideoCodec) {
			problems = append(problems, fmt.Sprintf("video codec %s, expected %s", video.CodecName, want.VideoCodec))
		}
		if want.Width > 0 && want.Height > 0 && (video.Width != want.Width || video.Height != want.Height) {
			problems = append(problems, fmt.Sprintf("resolution %dx%d, expected %dx%d", video.Width, video.Height, want.Width, want.Height))
		}
		if want.PixelFormat != "" && video.PixFmt != "" && video.PixFmt != want.PixelFormat {
			problems = append(problems, fmt.Sprintf("pixel format %s, expected %s", video.PixFmt, want.PixelFormat))
		}
	}
	if audio, ok := r.firstOfType("audio"); ok {
		if want.AudioCodec != "" && audio.CodecName != "" && !strings.EqualFold(audio.CodecName, want.AudioCodec) {
			problems = append(problems, fmt.Sprintf("audio codec %s, expected %s", audio.CodecName, want.AudioCodec))
		}
		if want.SampleRate > 0 {
			if rate, err := strconv.Atoi(strings.TrimSpace(audio.SampleRate)); err == nil && rate != want.SampleRate {
				problems = append(problems, fmt.Sprintf("sample rate %d, expected %d", rate, want.SampleRate))
			}
		}
		if want.Channels > 0 && audio.Channels != want.Channels {
			problems = append(problems, fmt.Sprintf("%d audio channels, expected %d", audio.Channels, want.Channels))
		}
	}
	if want.MaxDurationSeconds > 0 {
		if got := r.DurationSeconds(); got > want.MaxDurationSeconds {
			problems = append(problems, fmt.Sprintf("duration %.3fs exceeds %.3fs", got, want.MaxDurationSeconds))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, "; "))
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
