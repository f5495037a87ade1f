package config

const (
	defaultOutputDir          = "~/Videos/klyppr"
	defaultMusicDir           = "~/.local/share/klyppr/music"
	defaultMusicLibrary       = "~/.local/share/klyppr/music/library.json"
	defaultStateDir           = "~/.local/state/klyppr"
	defaultLogDir             = "~/.local/state/klyppr/logs"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultThresholdDB        = -35.0
	defaultMinSilence         = 0.5
	defaultPadding            = 0.1
	defaultCrossfadeSeconds   = 4.0
	defaultExtractBatchSize   = 4
	defaultWatchSettleSeconds = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 20
	defaultLogMaxBackups      = 5
	defaultLogMaxAgeDays      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			MusicDir:     defaultMusicDir,
			MusicLibrary: defaultMusicLibrary,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Silence: Silence{
			AutoCut:     true,
			ThresholdDB: defaultThresholdDB,
			MinDuration: defaultMinSilence,
			Padding:     defaultPadding,
		},
		Audio: Audio{
			Normalize: true,
		},
		Music: Music{
			CrossfadeSeconds: defaultCrossfadeSeconds,
		},
		Workflow: Workflow{
			ExtractBatchSize:   defaultExtractBatchSize,
			WatchSettleSeconds: defaultWatchSettleSeconds,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
