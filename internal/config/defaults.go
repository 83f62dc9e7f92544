package config

const (
	defaultWorkDir                = "~/.local/share/explainer/work"
	defaultOutputDir              = "~/.local/share/explainer/videos"
	defaultStateDir               = "~/.local/share/explainer"
	defaultLogDir                 = "~/.local/share/explainer/logs"
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultVideoCodec             = "libx264"
	defaultPreset                 = "medium"
	defaultCRF                    = 23
	defaultPixelFormat            = "yuv420p"
	defaultFrameRate              = 30
	defaultAudioCodec             = "aac"
	defaultAudioBitrate           = "192k"
	defaultSampleRate             = 44100
	defaultChannels               = 2
	defaultConcurrency            = 2
	defaultSceneTimeoutSeconds    = 600
	defaultConcatTimeoutSeconds   = 1800
	defaultRetryBackoffSeconds    = 2
	defaultRetryMaxBackoffSeconds = 60
	defaultStaleWorkHours         = 24
	defaultAPIBind                = "127.0.0.1:8790"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			ProbeBinary:    defaultFFprobeBinary,
			VideoCodec:     defaultVideoCodec,
			Preset:         defaultPreset,
			CRF:            defaultCRF,
			PixelFormat:    defaultPixelFormat,
			FrameRate:      defaultFrameRate,
			AudioCodec:     defaultAudioCodec,
			AudioBitrate:   defaultAudioBitrate,
			SampleRate:     defaultSampleRate,
			Channels:       defaultChannels,
			VerifySegments: true,
		},
		Render: Render{
			Concurrency:            defaultConcurrency,
			SceneTimeoutSeconds:    defaultSceneTimeoutSeconds,
			ConcatTimeoutSeconds:   defaultConcatTimeoutSeconds,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			RetryMaxBackoffSeconds: defaultRetryMaxBackoffSeconds,
			StaleWorkHours:         defaultStaleWorkHours,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
