package main

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"klyppr/internal/music"
	"klyppr/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	stdout, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, target) {
		t.Fatalf("expected target in output, got %q", stdout)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	stdout, _, err = runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(stdout, "Configuration valid") || !strings.Contains(stdout, env.configPath) {
		t.Fatalf("unexpected validate output %q", stdout)
	}

	stdout, _, err = runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(stdout, "[paths]") || !strings.Contains(stdout, "ffmpeg_binary") {
		t.Fatalf("expected toml output, got %q", stdout)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[silence]\nthreshold_db = 3.0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, bad, "config", "validate"); err == nil || !strings.Contains(err.Error(), "threshold_db") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestMusicCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	track := filepath.Join(env.baseDir, "incoming", "Calm Piano.mp3")
	testsupport.WriteFile(t, track, 2048)

	stdout, _, err := runCLI(t, env.configPath, "music", "add", track, "--select")
	if err != nil {
		t.Fatalf("music add: %v", err)
	}
	if !strings.Contains(stdout, "Added Calm Piano") {
		t.Fatalf("unexpected add output %q", stdout)
	}

	for _, args := range [][]string{
		{"music", "mode", "sequence"},
		{"music", "volume", "--", "-18"},
		{"music", "enable"},
	} {
		if _, _, err := runCLI(t, env.configPath, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	if _, _, err := runCLI(t, env.configPath, "music", "volume", "--", "-90"); err == nil {
		t.Fatal("expected out of range volume to fail")
	}
	if _, _, err := runCLI(t, env.configPath, "music", "mode", "shuffle"); err == nil {
		t.Fatal("expected unknown mode to fail")
	}

	lib := readLibrary(t, env)
	if len(lib.Tracks) != 1 || lib.Tracks[0].Origin != music.OriginUser {
		t.Fatalf("unexpected tracks %+v", lib.Tracks)
	}
	settings := lib.Settings
	if !settings.Enabled || settings.Mode != music.ModeSequence || settings.VolumeDB != -18 {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if len(settings.SelectedTrackIDs) != 1 || settings.SelectedTrackIDs[0] != lib.Tracks[0].ID {
		t.Fatalf("added track not selected: %+v", settings)
	}
	copied := filepath.Join(env.cfg.Paths.MusicDir, "user", lib.Tracks[0].Filename)
	if _, err := os.Stat(copied); err != nil {
		t.Fatalf("expected copied track: %v", err)
	}

	stdout, _, err = runCLI(t, env.configPath, "music", "list")
	if err != nil {
		t.Fatalf("music list: %v", err)
	}
	if !strings.Contains(stdout, "Calm Piano") || !strings.Contains(stdout, "sequence") {
		t.Fatalf("unexpected list output %q", stdout)
	}

	if _, _, err := runCLI(t, env.configPath, "music", "select", "--clear"); err != nil {
		t.Fatalf("music select --clear: %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "music", "select", "calm piano"); err != nil {
		t.Fatalf("music select by name: %v", err)
	}
	if got := readLibrary(t, env).Settings.SelectedTrackIDs; len(got) != 1 {
		t.Fatalf("expected one selected track, got %v", got)
	}
	if _, _, err := runCLI(t, env.configPath, "music", "volume", "--reset"); err != nil {
		t.Fatalf("music volume --reset: %v", err)
	}
	if got := readLibrary(t, env).Settings.VolumeDB; got != music.DefaultVolumeDB {
		t.Fatalf("volume after reset = %v", got)
	}

	if _, _, err := runCLI(t, env.configPath, "music", "remove", "Calm Piano"); err != nil {
		t.Fatalf("music remove: %v", err)
	}
	lib = readLibrary(t, env)
	if len(lib.Tracks) != 0 || len(lib.Settings.SelectedTrackIDs) != 0 {
		t.Fatalf("expected empty library, got %+v", lib)
	}
	if _, err := os.Stat(copied); !os.IsNotExist(err) {
		t.Fatalf("expected user file removed, stat err %v", err)
	}
}

func readLibrary(t *testing.T, env *cliTestEnv) music.Library {
	t.Helper()
	stdout, _, err := runCLI(t, env.configPath, "music", "list", "--json")
	if err != nil {
		t.Fatalf("music list --json: %v", err)
	}
	var lib music.Library
	if err := json.Unmarshal([]byte(stdout), &lib); err != nil {
		t.Fatalf("decode library: %v\n%s", err, stdout)
	}
	return lib
}

func TestProcessCommandWritesOutputAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "recordings", "talk.mp4")
	testsupport.WriteFile(t, input, 4096)

	stdout, _, err := runCLI(t, env.configPath, "process", input, "--json")
	if err != nil {
		t.Fatalf("process: %v\n%s", err, stdout)
	}
	var result processResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, stdout)
	}
	want := filepath.Join(env.cfg.Paths.OutputDir, "processed_talk.mp4")
	if !result.Success || result.Output != want {
		t.Fatalf("unexpected result %+v", result)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "fake media" {
		t.Fatalf("unexpected output %q (%v)", data, err)
	}

	state, err := loadState(env.cfg.StatePath())
	if err != nil {
		t.Fatalf("loadState: %v", err)
	}
	if state.LastOutputPath != env.cfg.Paths.OutputDir {
		t.Fatalf("last output path = %q", state.LastOutputPath)
	}

	stdout, _, err = runCLI(t, env.configPath, "jobs", "list", "--json")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	var views []jobView
	if err := json.Unmarshal([]byte(stdout), &views); err != nil {
		t.Fatalf("decode jobs: %v\n%s", err, stdout)
	}
	if len(views) != 1 {
		t.Fatalf("expected one job, got %d", len(views))
	}
	job := views[0]
	if job.Status != "completed" || job.Output != want || job.Segments != 2 {
		t.Fatalf("unexpected job %+v", job)
	}

	stdout, _, err = runCLI(t, env.configPath, "jobs", "show", job.ID[:8])
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	if !strings.Contains(stdout, "completed") || !strings.Contains(stdout, input) {
		t.Fatalf("unexpected show output %q", stdout)
	}

	stdout, _, err = runCLI(t, env.configPath, "jobs", "clear")
	if err != nil || !strings.Contains(stdout, "Removed 1 job(s)") {
		t.Fatalf("jobs clear: %q %v", stdout, err)
	}
}

func TestProcessCommandReportsFailedPhase(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env.configPath, "process", filepath.Join(env.baseDir, "missing.mp4"))
	if err == nil {
		t.Fatal("expected missing input to fail")
	}
	if !strings.Contains(err.Error(), "processing failed during") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestProbeCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, input, 16)

	stdout, _, err := runCLI(t, env.configPath, "probe", input, "--json")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	var info struct {
		Duration float64 `json:"duration_seconds"`
		HasAudio bool    `json:"has_audio"`
		HasVideo bool    `json:"has_video"`
		Width    int     `json:"width"`
	}
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("decode probe: %v", err)
	}
	if info.Duration != 20 || !info.HasAudio || !info.HasVideo || info.Width != 1280 {
		t.Fatalf("unexpected probe %+v", info)
	}

	stdout, _, err = runCLI(t, env.configPath, "probe", input)
	if err != nil {
		t.Fatalf("probe table: %v", err)
	}
	if !strings.Contains(stdout, "1280x720") || !strings.Contains(stdout, "48000 Hz") {
		t.Fatalf("unexpected probe table %q", stdout)
	}
}

func TestDetectCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, input, 16)

	stdout, _, err := runCLI(t, env.configPath, "detect", input, "--json")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	var result detectResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decode detect: %v\n%s", err, stdout)
	}
	if len(result.Intervals) != 1 || !near(result.Intervals[0].Start, 5.1) || !near(result.Intervals[0].End, 9.9) {
		t.Fatalf("unexpected silences %+v", result.Intervals)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
	if !near(result.ExpectedDuration, 15.2) {
		t.Fatalf("expected duration = %v", result.ExpectedDuration)
	}
}

func TestDoctorCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout, _, err := runCLI(t, env.configPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, stdout)
	}
	for _, want := range []string{"Engine & Paths", "FFmpeg", "7.1-test", "Music Library", "Job History"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("doctor output missing %q:\n%s", want, stdout)
		}
	}
}

func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}
