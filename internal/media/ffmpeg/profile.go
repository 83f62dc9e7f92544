package ffmpeg

import (
	"fmt"
	"strings"

	"explainer/internal/config"
	"explainer/internal/media/ffprobe"
)

// Segment frame size. Fixed so every segment concatenates cleanly.
const (
	FrameWidth  = 1920
	FrameHeight = 1080
)

// Profile is the encoding recipe shared by every segment of a run.
type Profile struct {
	Width        int
	Height       int
	VideoCodec   string
	Preset       string
	CRF          int
	PixelFormat  string
	FrameRate    int
	AudioCodec   string
	AudioBitrate string
	SampleRate   int
	Channels     int
	Verify       bool
}

// DefaultProfile returns H.264/AAC at 1080p30, stereo 44.1 kHz.
func DefaultProfile() Profile {
	return Profile{
		Width:        FrameWidth,
		Height:       FrameHeight,
		VideoCodec:   "libx264",
		Preset:       "medium",
		CRF:          23,
		PixelFormat:  "yuv420p",
		FrameRate:    30,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
		SampleRate:   44100,
		Channels:     2,
		Verify:       true,
	}
}

// ProfileFromConfig builds a profile from the [ffmpeg] config section.
func ProfileFromConfig(cfg config.FFmpeg) Profile {
	p := DefaultProfile()
	if v := strings.TrimSpace(cfg.VideoCodec); v != "" {
		p.VideoCodec = v
	}
	p.Preset = strings.TrimSpace(cfg.Preset)
	p.CRF = cfg.CRF
	if v := strings.TrimSpace(cfg.PixelFormat); v != "" {
		p.PixelFormat = v
	}
	if cfg.FrameRate > 0 {
		p.FrameRate = cfg.FrameRate
	}
	if v := strings.TrimSpace(cfg.AudioCodec); v != "" {
		p.AudioCodec = v
	}
	if v := strings.TrimSpace(cfg.AudioBitrate); v != "" {
		p.AudioBitrate = v
	}
	if cfg.SampleRate > 0 {
		p.SampleRate = cfg.SampleRate
	}
	if cfg.Channels > 0 {
		p.Channels = cfg.Channels
	}
	p.Verify = cfg.VerifySegments
	return p
}

// segmentDurationSlack absorbs container rounding: one AAC frame plus one
// video frame at low frame rates.
const segmentDurationSlack = 0.25

// encoderCodecs maps ffmpeg encoder names to the codec_name ffprobe reports.
var encoderCodecs = map[string]string{
	"libx264":    "h264",
	"h264_nvenc": "h264",
	"h264_qsv":   "h264",
	"h264_vaapi": "h264",
	"libx265":    "hevc",
	"hevc_nvenc": "hevc",
	"libvpx-vp9": "vp9",
	"libaom-av1": "av1",
	"libsvtav1":  "av1",
	"aac":        "aac",
	"libfdk_aac": "aac",
	"libopus":    "opus",
	"libmp3lame": "mp3",
}

// CodecName returns the codec ffprobe reports for streams produced by the
// given encoder, or "" when the encoder is not known.
func CodecName(encoder string) string {
	return encoderCodecs[strings.ToLower(strings.TrimSpace(encoder))]
}

// Layout is the stream shape segments produced with this profile must have.
func (p Profile) Layout() ffprobe.Layout {
	return ffprobe.Layout{
		VideoCodec:  CodecName(p.VideoCodec),
		Width:       p.Width,
		Height:      p.Height,
		PixelFormat: p.PixelFormat,
		AudioCodec:  CodecName(p.AudioCodec),
		SampleRate:  p.SampleRate,
		Channels:    p.Channels,
	}
}

// SegmentLayout is Layout bounded to the scene's duration. Narration shorter
// than the scene may end a segment early, so only the upper bound is checked.
func (p Profile) SegmentLayout(durationSeconds float64) ffprobe.Layout {
	layout := p.Layout()
	layout.MaxDurationSeconds = durationSeconds + segmentDurationSlack
	return layout
}

// VideoFilter letterboxes any input image into the frame without distortion.
func (p Profile) VideoFilter() string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=%s",
		p.Width, p.Height, p.Width, p.Height, p.PixelFormat,
	)
}

func (p Profile) channelLayout() string {
	if p.Channels == 1 {
		return "mono"
	}
	return "stereo"
}

func (p Profile) silenceSource() string {
	return fmt.Sprintf("anullsrc=r=%d:cl=%s", p.SampleRate, p.channelLayout())
}
