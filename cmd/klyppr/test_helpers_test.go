package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"klyppr/internal/config"
	"klyppr/internal/testsupport"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "30/1"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"duration": "20.000000", "size": "1024"}
}`

// fakeFFmpeg reports one silence for silencedetect runs and otherwise writes
// its last argument, which is always the output file.
const fakeFFmpeg = `last=""
for arg in "$@"; do last="$arg"; done
case "$*" in
  *silencedetect*)
    echo "[silencedetect @ 0x1] silence_start: 5" >&2
    echo "[silencedetect @ 0x1] silence_end: 10 | silence_duration: 5" >&2
    ;;
  *)
    printf 'fake media' > "$last"
    ;;
esac
exit 0`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, key := range []string{"KLYPPR_FFMPEG", "KLYPPR_FFPROBE", "KLYPPR_OUTPUT_DIR", "KLYPPR_MUSIC_DIR", "KLYPPR_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	binDir := filepath.Join(base, "bin")
	cfg.FFmpeg.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.FFmpeg.FFprobeBinary = filepath.Join(binDir, "ffprobe")
	testsupport.WriteScript(t, cfg.FFmpeg.FFmpegBinary, "if [ \"$1\" = \"-version\" ]; then echo 'ffmpeg version 7.1-test'; exit 0; fi\n"+fakeFFmpeg)
	testsupport.WriteScript(t, cfg.FFmpeg.FFprobeBinary, "if [ \"$1\" = \"-version\" ]; then echo 'ffprobe version 7.1-test'; exit 0; fi\ncat <<'JSON'\n"+probeJSON+"\nJSON")

	configPath := filepath.Join(base, "klyppr.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
output_dir = %q
music_dir = %q
music_library = %q
state_dir = %q
log_dir = %q

[ffmpeg]
ffmpeg_binary = %q
ffprobe_binary = %q
`,
		cfg.Paths.OutputDir,
		cfg.Paths.MusicDir,
		cfg.Paths.MusicLibrary,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.FFmpeg.FFmpegBinary,
		cfg.FFmpeg.FFprobeBinary,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
