package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"explainer/internal/config"
	"explainer/internal/media/ffprobe"
	"explainer/internal/services"
)

type fakeRunner struct {
	calls   [][]string
	payload []byte
	err     error
}

func (f *fakeRunner) run(_ context.Context, _ string, args ...string) error {
	f.calls = append(f.calls, append([]string(nil), args...))
	if f.payload != nil {
		if err := os.WriteFile(args[len(args)-1], f.payload, 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func goodProbe(context.Context, string, string) (ffprobe.Result, error) {
	return ffprobe.Result{Streams: []ffprobe.Stream{
		{CodecName: "h264", CodecType: "video", Width: FrameWidth, Height: FrameHeight, PixFmt: "yuv420p"},
		{CodecName: "aac", CodecType: "audio", SampleRate: "44100", Channels: 2},
	}}, nil
}

func newTestClient(t *testing.T, runner *fakeRunner) *Client {
	t.Helper()
	client := New("", "", DefaultProfile(), nil)
	client.WithCommandRunner(runner.run)
	client.WithProbe(goodProbe)
	return client
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func valueAfter(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestEncodeSegmentWithNarration(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene1.png"), []byte("png"))
	audio := writeFile(t, filepath.Join(dir, "scene1.mp3"), []byte("mp3"))
	out := filepath.Join(dir, "segment_0000.mp4")

	runner := &fakeRunner{payload: []byte("mp4")}
	client := newTestClient(t, runner)
	got, err := client.EncodeSegment(context.Background(), SegmentRequest{
		SceneID: 1, ImagePath: image, AudioPath: audio, DurationSeconds: 30, OutputPath: out,
	})
	if err != nil {
		t.Fatalf("EncodeSegment: %v", err)
	}
	if got != out {
		t.Fatalf("unexpected output path %q", got)
	}
	args := runner.calls[0]
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-loop 1 -framerate 30 -t 30.000 -i " + image,
		"-i " + audio,
		"-map 0:v:0 -map 1:a:0",
		"-c:v libx264 -preset medium -crf 23 -tune stillimage -pix_fmt yuv420p -r 30",
		"-c:a aac -b:a 192k -ar 44100 -ac 2",
		"-shortest",
		"-movflags +faststart " + out,
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args: %s", fragment, joined)
		}
	}
	if strings.Contains(joined, "anullsrc") {
		t.Fatalf("narrated scene must not synthesize silence: %s", joined)
	}
	if vf := valueAfter(args, "-vf"); vf != "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,setsar=1,format=yuv420p" {
		t.Fatalf("unexpected filter %q", vf)
	}
	if !slices.Contains(args, image) || !slices.Contains(args, audio) {
		t.Fatal("inputs missing from args")
	}
	for _, input := range []string{image, audio} {
		if _, err := os.Stat(input); err != nil {
			t.Fatalf("input %s should be untouched: %v", input, err)
		}
	}
}

func TestEncodeSegmentSynthesizesSilence(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene.png"), []byte("png"))
	empty := writeFile(t, filepath.Join(dir, "empty.mp3"), nil)

	cases := map[string]string{
		"no audio":      "",
		"missing file":  filepath.Join(dir, "missing.mp3"),
		"empty file":    empty,
		"directory":     dir,
		"blank spacing": "   ",
	}
	for name, audio := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{payload: []byte("mp4")}
			client := newTestClient(t, runner)
			out := filepath.Join(t.TempDir(), "segment.mp4")
			if _, err := client.EncodeSegment(context.Background(), SegmentRequest{
				SceneID: 2, ImagePath: image, AudioPath: audio, DurationSeconds: 45, OutputPath: out,
			}); err != nil {
				t.Fatalf("EncodeSegment: %v", err)
			}
			args := runner.calls[0]
			if got := valueAfter(args, "lavfi"); got != "-t" {
				t.Fatalf("expected lavfi silence input, got args %v", args)
			}
			if !slices.Contains(args, "anullsrc=r=44100:cl=stereo") {
				t.Fatalf("expected stereo silence source in %v", args)
			}
			if slices.Contains(args, "-shortest") {
				t.Fatalf("silent segment should not use -shortest: %v", args)
			}
			if !slices.Contains(args, "45.000") {
				t.Fatalf("expected scene duration in args: %v", args)
			}
		})
	}
}

func TestEncodeSegmentFailuresRemovePartialOutput(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene.png"), []byte("png"))

	tests := []struct {
		name   string
		runner *fakeRunner
		probe  ProbeFunc
	}{
		{name: "non-zero exit", runner: &fakeRunner{payload: []byte("partial"), err: errors.New("exit status 1")}},
		{name: "empty output", runner: &fakeRunner{payload: []byte{}}},
		{name: "no output", runner: &fakeRunner{}},
		{
			name:   "video only",
			runner: &fakeRunner{payload: []byte("mp4")},
			probe: func(context.Context, string, string) (ffprobe.Result, error) {
				return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Width: FrameWidth, Height: FrameHeight}}}, nil
			},
		},
		{
			name:   "wrong video codec",
			runner: &fakeRunner{payload: []byte("mp4")},
			probe: func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
				result, _ := goodProbe(ctx, binary, path)
				result.Streams[0].CodecName = "mpeg4"
				return result, nil
			},
		},
		{
			name:   "longer than scene",
			runner: &fakeRunner{payload: []byte("mp4")},
			probe: func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
				result, _ := goodProbe(ctx, binary, path)
				result.Format.Duration = "9.000000"
				return result, nil
			},
		},
		{
			name:   "probe error",
			runner: &fakeRunner{payload: []byte("mp4")},
			probe: func(context.Context, string, string) (ffprobe.Result, error) {
				return ffprobe.Result{}, errors.New("moov atom not found")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.runner)
			if tt.probe != nil {
				client.WithProbe(tt.probe)
			}
			out := filepath.Join(t.TempDir(), "segment.mp4")
			_, err := client.EncodeSegment(context.Background(), SegmentRequest{
				SceneID: 7, ImagePath: image, DurationSeconds: 5, OutputPath: out,
			})
			if !errors.Is(err, services.ErrEncodingFailure) {
				t.Fatalf("expected ErrEncodingFailure, got %v", err)
			}
			if !strings.Contains(err.Error(), "scene 7") {
				t.Fatalf("expected scene id in error, got %v", err)
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Fatalf("expected partial output to be removed, stat err=%v", statErr)
			}
		})
	}
}

func TestEncodeSegmentRejectsBadInputsWithoutRunning(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene.png"), []byte("png"))
	out := filepath.Join(dir, "segment.mp4")
	requests := map[string]SegmentRequest{
		"missing image": {ImagePath: filepath.Join(dir, "nope.png"), DurationSeconds: 5, OutputPath: out},
		"zero duration": {ImagePath: image, DurationSeconds: 0, OutputPath: out},
		"no output":     {ImagePath: image, DurationSeconds: 5},
	}
	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{payload: []byte("mp4")}
			client := newTestClient(t, runner)
			if _, err := client.EncodeSegment(context.Background(), req); !errors.Is(err, services.ErrEncodingFailure) {
				t.Fatalf("expected ErrEncodingFailure, got %v", err)
			}
			if len(runner.calls) != 0 {
				t.Fatalf("ffmpeg should not run, got %d calls", len(runner.calls))
			}
		})
	}
}

func TestEncodeSegmentTagsMissingBinary(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene.png"), []byte("png"))
	binaries := map[string]string{
		"not on PATH":   "explainer-test-no-such-ffmpeg",
		"absolute path": filepath.Join(dir, "bin", "ffmpeg"),
	}
	for name, binary := range binaries {
		t.Run(name, func(t *testing.T) {
			client := New(binary, "ffprobe", DefaultProfile(), nil)
			client.WithProbe(goodProbe)
			_, err := client.EncodeSegment(context.Background(), SegmentRequest{
				SceneID: 1, ImagePath: image, DurationSeconds: 5, OutputPath: filepath.Join(dir, "segment.mp4"),
			})
			if !errors.Is(err, services.ErrExternalTool) || !errors.Is(err, services.ErrEncodingFailure) {
				t.Fatalf("expected external tool error inside encoding failure, got %v", err)
			}
		})
	}

	runner := &fakeRunner{payload: []byte("partial"), err: errors.New("exit status 1")}
	client := newTestClient(t, runner)
	_, err := client.EncodeSegment(context.Background(), SegmentRequest{
		SceneID: 2, ImagePath: image, DurationSeconds: 5, OutputPath: filepath.Join(dir, "segment2.mp4"),
	})
	if errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("a failed encode is not a missing tool: %v", err)
	}
}

func TestEncodeSegmentSurfacesCancellation(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene.png"), []byte("png"))
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{payload: []byte("partial")}
	runner.err = errors.New("signal: killed")
	client := newTestClient(t, runner)
	client.WithCommandRunner(func(c context.Context, name string, args ...string) error {
		cancel()
		return runner.run(c, name, args...)
	})

	out := filepath.Join(dir, "segment.mp4")
	_, err := client.EncodeSegment(ctx, SegmentRequest{SceneID: 1, ImagePath: image, DurationSeconds: 5, OutputPath: out})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, services.ErrEncodingFailure) {
		t.Fatalf("expected cancellation wrapped in encoding failure, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("partial output should be removed after cancellation")
	}
}

func TestSkipVerificationWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	image := writeFile(t, filepath.Join(dir, "scene.png"), []byte("png"))
	profile := DefaultProfile()
	profile.Verify = false
	client := New("ffmpeg", "ffprobe", profile, nil)
	runner := &fakeRunner{payload: []byte("mp4")}
	client.WithCommandRunner(runner.run)
	client.WithProbe(func(context.Context, string, string) (ffprobe.Result, error) {
		t.Fatal("probe should not run when verification is disabled")
		return ffprobe.Result{}, nil
	})
	if _, err := client.EncodeSegment(context.Background(), SegmentRequest{ImagePath: image, DurationSeconds: 1, OutputPath: filepath.Join(dir, "s.mp4")}); err != nil {
		t.Fatalf("EncodeSegment: %v", err)
	}
}

func TestConcatenateWritesOrderedListAndPromotesOutput(t *testing.T) {
	dir := t.TempDir()
	segments := []string{
		filepath.Join(dir, "segment_0000.mp4"),
		filepath.Join(dir, "it's segment_0001.mp4"),
		filepath.Join(dir, "segment_0002.mp4"),
	}
	list := filepath.Join(dir, "concat.txt")
	out := filepath.Join(dir, "output.mp4")

	runner := &fakeRunner{payload: []byte("joined")}
	client := newTestClient(t, runner)
	got, err := client.Concatenate(context.Background(), ConcatRequest{Segments: segments, ListPath: list, OutputPath: out})
	if err != nil {
		t.Fatalf("Concatenate: %v", err)
	}
	if got != out {
		t.Fatalf("unexpected output %q", got)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "joined" {
		t.Fatalf("unexpected output content %q (err=%v)", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".output.mp4.partial")); !os.IsNotExist(err) {
		t.Fatal("partial file should have been renamed")
	}

	manifest, err := os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	want := "file '" + segments[0] + "'\n" +
		"file '" + filepath.Join(dir, `it'\''s segment_0001.mp4`) + "'\n" +
		"file '" + segments[2] + "'\n"
	if string(manifest) != want {
		t.Fatalf("unexpected manifest:\n%s\nwant:\n%s", manifest, want)
	}

	joined := strings.Join(runner.calls[0], " ")
	if !strings.Contains(joined, "-f concat -safe 0 -i "+list+" -c copy -movflags +faststart") {
		t.Fatalf("unexpected concat args: %s", joined)
	}
}

func TestConcatenateFailures(t *testing.T) {
	dir := t.TempDir()
	segment := filepath.Join(dir, "segment_0000.mp4")

	tests := []struct {
		name   string
		req    ConcatRequest
		runner *fakeRunner
	}{
		{name: "no segments", req: ConcatRequest{ListPath: filepath.Join(dir, "l"), OutputPath: filepath.Join(dir, "o.mp4")}, runner: &fakeRunner{}},
		{name: "non-zero exit", req: ConcatRequest{Segments: []string{segment}, ListPath: filepath.Join(dir, "l"), OutputPath: filepath.Join(dir, "o.mp4")}, runner: &fakeRunner{payload: []byte("x"), err: errors.New("exit status 1")}},
		{name: "empty output", req: ConcatRequest{Segments: []string{segment}, ListPath: filepath.Join(dir, "l"), OutputPath: filepath.Join(dir, "o.mp4")}, runner: &fakeRunner{payload: []byte{}}},
		{name: "unwritable list", req: ConcatRequest{Segments: []string{segment}, ListPath: filepath.Join(dir, "missing", "l"), OutputPath: filepath.Join(dir, "o.mp4")}, runner: &fakeRunner{payload: []byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.runner)
			_, err := client.Concatenate(context.Background(), tt.req)
			if !errors.Is(err, services.ErrConcatenationFailure) {
				t.Fatalf("expected ErrConcatenationFailure, got %v", err)
			}
			for _, p := range []string{tt.req.OutputPath, filepath.Join(dir, ".o.mp4.partial")} {
				if _, statErr := os.Stat(p); !os.IsNotExist(statErr) {
					t.Fatalf("expected %s to be absent", p)
				}
			}
		})
	}
}

func TestProfileFromConfig(t *testing.T) {
	profile := ProfileFromConfig(config.FFmpeg{
		VideoCodec:     "libx265",
		Preset:         "",
		CRF:            28,
		PixelFormat:    "yuv420p",
		FrameRate:      24,
		AudioCodec:     "aac",
		AudioBitrate:   "128k",
		SampleRate:     48000,
		Channels:       1,
		VerifySegments: false,
	})
	if profile.Width != FrameWidth || profile.Height != FrameHeight {
		t.Fatalf("frame size must stay fixed, got %dx%d", profile.Width, profile.Height)
	}
	if profile.VideoCodec != "libx265" || profile.CRF != 28 || profile.FrameRate != 24 || profile.Verify {
		t.Fatalf("unexpected profile %+v", profile)
	}
	layout := profile.SegmentLayout(2.5)
	if layout.VideoCodec != "hevc" || layout.AudioCodec != "aac" || layout.MaxDurationSeconds <= 2.5 {
		t.Fatalf("unexpected segment layout %+v", layout)
	}
	if got := CodecName("some_new_encoder"); got != "" {
		t.Fatalf("unknown encoders should not be checked, got %q", got)
	}
	if got := profile.silenceSource(); got != "anullsrc=r=48000:cl=mono" {
		t.Fatalf("unexpected silence source %q", got)
	}

	client := New("ffmpeg", "ffprobe", profile, nil)
	args := client.segmentArgs(SegmentRequest{ImagePath: "in.png", DurationSeconds: 2.5, OutputPath: "out.mp4"}, "")
	if slices.Contains(args, "-preset") || slices.Contains(args, "-tune") {
		t.Fatalf("preset and stillimage tune only apply when configured for x264: %v", args)
	}
}
