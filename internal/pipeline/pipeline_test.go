package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"klyppr/internal/config"
	"klyppr/internal/jobs"
	"klyppr/internal/media"
	"klyppr/internal/music"
	"klyppr/internal/services"
	"klyppr/internal/testsupport"
)

var silenceLines = []string{
	"[silencedetect @ 0x1] silence_start: 5",
	"[silencedetect @ 0x1] silence_end: 10 | silence_duration: 5",
}

type recordingReporter struct {
	mu     sync.Mutex
	phases []Phase
	last   Progress
	lines  []string
}

func (r *recordingReporter) Progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.phases); n == 0 || r.phases[n-1] != p.Phase {
		r.phases = append(r.phases, p.Phase)
	}
	r.last = p
}

func (r *recordingReporter) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingReporter) logged(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

type harness struct {
	t        *testing.T
	cfg      *config.Config
	engine   *testsupport.FakeEngine
	prober   *testsupport.StaticProber
	library  *music.LibraryStore
	input    string
	reporter *recordingReporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	input := filepath.Join(testsupport.BaseDir(cfg), "in", "talk.mp4")
	testsupport.WriteFile(t, input, 64)
	prober := &testsupport.StaticProber{Default: media.Info{HasAudio: true, HasVideo: true, DurationSeconds: 20}}
	return &harness{
		t:        t,
		cfg:      cfg,
		engine:   &testsupport.FakeEngine{Lines: map[string][]string{"silencedetect": silenceLines}},
		prober:   prober,
		library:  music.NewLibraryStore(cfg.Paths.MusicLibrary, cfg.Paths.MusicDir, prober),
		input:    input,
		reporter: &recordingReporter{},
	}
}

func (h *harness) job() Job {
	job := JobFromConfig(h.cfg, h.input, h.cfg.Paths.OutputDir)
	job.NormalizeAudio = true
	return job
}

func (h *harness) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{WithLibrary(h.library), WithBatchSize(2)}
	return New(h.prober, h.engine, append(base, opts...)...)
}

func (h *harness) selectMusic(mode music.Mode, names ...string) {
	h.t.Helper()
	lib := &music.Library{Settings: music.DefaultSettings()}
	lib.Settings.Enabled = true
	lib.Settings.Mode = mode
	for _, name := range names {
		track := music.Track{ID: name, Name: name, Filename: name + ".mp3", Origin: music.OriginBundled}
		testsupport.WriteFile(h.t, h.library.TrackPath(track), 16)
		lib.Tracks = append(lib.Tracks, track)
		lib.Settings.SelectedTrackIDs = append(lib.Settings.SelectedTrackIDs, track.ID)
	}
	if err := h.library.Save(lib); err != nil {
		h.t.Fatalf("save library: %v", err)
	}
}

func (h *harness) assertNoLeftovers() {
	h.t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(h.cfg.Paths.OutputDir, ".klyppr-*"))
	if err != nil {
		h.t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		h.t.Fatalf("job directory not removed: %v", leftovers)
	}
	locks, _ := filepath.Glob(filepath.Join(h.cfg.Paths.OutputDir, "*.lock"))
	if len(locks) != 0 {
		h.t.Fatalf("lock file not removed: %v", locks)
	}
}

func assertPhases(t *testing.T, got []Phase, want ...Phase) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
}

func TestRunFullChain(t *testing.T) {
	h := newHarness(t)
	completion, err := h.orchestrator().Run(context.Background(), h.job(), h.reporter)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := filepath.Join(h.cfg.Paths.OutputDir, "processed_talk.mp4")
	if !completion.Success || completion.OutputPath != want {
		t.Fatalf("unexpected completion %+v", completion)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "fake media" {
		t.Fatalf("output = %q, %v", data, err)
	}

	assertPhases(t, h.reporter.phases,
		PhaseDetectingSilence, PhasePlanningSegments, PhaseExtractingSegments,
		PhaseConcatenating, PhaseMixingMusic, PhaseCompleted)
	if h.reporter.last.Percent != 100 {
		t.Fatalf("expected 100%% at completion, got %v", h.reporter.last.Percent)
	}

	cuts := h.engine.CallsContaining("-ss")
	if len(cuts) != 2 {
		t.Fatalf("expected 2 segment cuts, got %d", len(cuts))
	}
	for _, cut := range cuts {
		if !strings.Contains(strings.Join(cut, " "), "loudnorm") {
			t.Fatalf("expected loudnorm during extraction: %v", cut)
		}
	}
	if len(h.engine.CallsContaining("-f concat")) != 1 {
		t.Fatalf("expected one concat run, got %v", h.engine.Calls())
	}
	if !h.reporter.logged("segments planned") || !h.reporter.logged("reduction_percent=") {
		t.Fatalf("expected planning summary in job log, got %v", h.reporter.lines)
	}
	h.assertNoLeftovers()
}

func TestRunWithoutDetectedSilenceNormalizes(t *testing.T) {
	h := newHarness(t)
	h.engine.Lines = nil
	if _, err := h.orchestrator().Run(context.Background(), h.job(), h.reporter); err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertPhases(t, h.reporter.phases,
		PhaseDetectingSilence, PhaseNormalizingAudio, PhaseMixingMusic, PhaseCompleted)
	calls := h.engine.CallsContaining("loudnorm")
	if len(calls) != 1 || !strings.Contains(strings.Join(calls[0], " "), "-c:v copy") {
		t.Fatalf("expected one stream-copy loudnorm run, got %v", h.engine.Calls())
	}
	h.assertNoLeftovers()
}

func TestRunWithoutAutoCutCopiesSilentInput(t *testing.T) {
	h := newHarness(t)
	h.prober.Default = media.Info{HasVideo: true, DurationSeconds: 20}
	job := h.job()
	job.AutoCutSilence = false
	completion, err := h.orchestrator().Run(context.Background(), job, h.reporter)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertPhases(t, h.reporter.phases, PhaseNormalizingAudio, PhaseMixingMusic, PhaseCompleted)
	if len(h.engine.Calls()) != 0 {
		t.Fatalf("expected no engine runs, got %v", h.engine.Calls())
	}
	info, err := os.Stat(completion.OutputPath)
	if err != nil || info.Size() != 64 {
		t.Fatalf("expected a copy of the input, stat = %v, %v", info, err)
	}
	if _, err := os.Stat(h.input); err != nil {
		t.Fatalf("input must be left in place: %v", err)
	}
}

func TestRunMixesLoopedMusic(t *testing.T) {
	h := newHarness(t)
	h.selectMusic(music.ModeLoop, "calm", "upbeat")
	job := h.job()
	job.BackgroundMusicEnabled = true
	if _, err := h.orchestrator().Run(context.Background(), job, h.reporter); err != nil {
		t.Fatalf("Run: %v", err)
	}
	mixes := h.engine.CallsContaining("amix")
	if len(mixes) != 1 {
		t.Fatalf("expected one mix run, got %v", h.engine.Calls())
	}
	joined := strings.Join(mixes[0], " ")
	if !strings.Contains(joined, "aloop=loop=-1") || !strings.Contains(joined, "calm.mp3") {
		t.Fatalf("expected looped first track, got %q", joined)
	}
	// Expected duration after cutting 5.1..9.9 out of 20s.
	if !strings.Contains(joined, "atrim=0:15.2") {
		t.Fatalf("expected music trimmed to the cut duration, got %q", joined)
	}
	if len(h.engine.CallsContaining("acrossfade")) != 0 {
		t.Fatal("loop mode must not crossfade")
	}
	h.assertNoLeftovers()
}

func TestRunCrossfadesSequence(t *testing.T) {
	h := newHarness(t)
	h.selectMusic(music.ModeSequence, "one", "two", "three")
	job := h.job()
	job.AutoCutSilence = false
	job.BackgroundMusicEnabled = true
	if _, err := h.orchestrator().Run(context.Background(), job, h.reporter); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.engine.CallsContaining("[xf1][2:a]acrossfade")) != 1 {
		t.Fatalf("expected one chained crossfade render, got %v", h.engine.Calls())
	}
	mixes := h.engine.CallsContaining("amix")
	if len(mixes) != 1 || !strings.Contains(strings.Join(mixes[0], " "), music.CrossfadeFileName) {
		t.Fatalf("expected mix over the rendered sequence, got %v", mixes)
	}
	if strings.Contains(strings.Join(mixes[0], " "), "aloop") {
		t.Fatal("sequence mix must not loop")
	}
}

func TestRunMixFailureFallsBackToCopy(t *testing.T) {
	h := newHarness(t)
	h.selectMusic(music.ModeLoop, "calm")
	h.engine.FailOn = []string{"amix"}
	job := h.job()
	job.BackgroundMusicEnabled = true
	completion, err := h.orchestrator().Run(context.Background(), job, h.reporter)
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if _, err := os.Stat(completion.OutputPath); err != nil {
		t.Fatalf("expected fallback output: %v", err)
	}
	if !h.reporter.logged("background music failed") {
		t.Fatalf("expected fallback warning, got %v", h.reporter.lines)
	}
	h.assertNoLeftovers()
}

func TestRunEmptySelectionSkipsMusic(t *testing.T) {
	h := newHarness(t)
	h.selectMusic(music.ModeLoop)
	job := h.job()
	job.BackgroundMusicEnabled = true
	if _, err := h.orchestrator().Run(context.Background(), job, h.reporter); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.engine.CallsContaining("amix")) != 0 {
		t.Fatal("expected no mix without a selection")
	}
	if !h.reporter.logged("no music selected") {
		t.Fatalf("expected skip notice, got %v", h.reporter.lines)
	}
}

func TestRunExtractionFailure(t *testing.T) {
	h := newHarness(t)
	h.engine.FailOn = []string{"-ss"}
	store := testsupport.MustOpenStore(t, h.cfg)
	completion, err := h.orchestrator(WithRecorder(store)).Run(context.Background(), h.job(), h.reporter)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if completion.Success || completion.FailedPhase != PhaseExtractingSegments {
		t.Fatalf("unexpected completion %+v", completion)
	}
	if services.PhaseOf(err) != string(PhaseExtractingSegments) {
		t.Fatalf("expected phase in error, got %q", services.PhaseOf(err))
	}
	if _, statErr := os.Stat(completion.OutputPath); !os.IsNotExist(statErr) {
		t.Fatalf("no output expected after failure, stat err=%v", statErr)
	}
	if h.reporter.phases[len(h.reporter.phases)-1] != PhaseFailed {
		t.Fatalf("expected failed to be reported last, got %v", h.reporter.phases)
	}
	h.assertNoLeftovers()

	history, err := store.List(context.Background(), jobs.ListOptions{})
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v, %v", history, err)
	}
	if history[0].Status != jobs.StatusFailed || history[0].Phase != string(PhaseExtractingSegments) {
		t.Fatalf("unexpected history %#v", history[0])
	}
}

func TestRunRecordsCompletedJob(t *testing.T) {
	h := newHarness(t)
	store := testsupport.MustOpenStore(t, h.cfg)
	completion, err := h.orchestrator(WithRecorder(store)).Run(context.Background(), h.job(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	history, err := store.List(context.Background(), jobs.ListOptions{})
	if err != nil || len(history) != 1 {
		t.Fatalf("history = %v, %v", history, err)
	}
	got := history[0]
	if got.Status != jobs.StatusCompleted || got.OutputPath != completion.OutputPath {
		t.Fatalf("unexpected record %#v", got)
	}
	if got.SegmentCount != 2 || got.InputDuration != 20 || got.ExpectedDuration < 15.19 || got.ExpectedDuration > 15.21 {
		t.Fatalf("plan not recorded: %#v", got)
	}
}

func TestRunRequiresVideoToCut(t *testing.T) {
	h := newHarness(t)
	h.prober.Default = media.Info{HasAudio: true, DurationSeconds: 20}
	_, err := h.orchestrator().Run(context.Background(), h.job(), h.reporter)
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
}

func TestRunFullySilentInputHasNoContent(t *testing.T) {
	h := newHarness(t)
	h.engine.Lines = map[string][]string{"silencedetect": {
		"[silencedetect @ 0x1] silence_start: 0",
		"[silencedetect @ 0x1] silence_end: 20 | silence_duration: 20",
	}}
	job := h.job()
	job.PaddingDuration = 0
	completion, err := h.orchestrator().Run(context.Background(), job, h.reporter)
	if !errors.Is(err, services.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if completion.FailedPhase != PhasePlanningSegments {
		t.Fatalf("unexpected failed phase %q", completion.FailedPhase)
	}
}

func TestRunRejectsLockedOutput(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.OutputPath = filepath.Join(h.cfg.Paths.OutputDir, "out.mp4")
	held := flock.New(job.OutputPath + ".lock")
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	_, err := h.orchestrator().Run(context.Background(), job, h.reporter)
	if !errors.Is(err, services.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if len(h.engine.Calls()) != 0 {
		t.Fatal("locked job must not start")
	}
}

func TestRunValidatesParameters(t *testing.T) {
	h := newHarness(t)
	cases := map[string]func(*Job){
		"missing input":  func(j *Job) { j.InputPath = filepath.Join(t.TempDir(), "nope.mp4") },
		"positive noise": func(j *Job) { j.SilenceThresholdDB = 3 },
		"negative pad":   func(j *Job) { j.PaddingDuration = -0.1 },
		"same file":      func(j *Job) { j.OutputPath = j.InputPath },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			job := h.job()
			mutate(&job)
			_, err := h.orchestrator().Run(context.Background(), job, nil)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateAcceptsPaddingWiderThanSilence(t *testing.T) {
	h := newHarness(t)
	job := h.job()
	job.MinSilenceDuration = 1.0
	job.PaddingDuration = 0.5
	if err := job.Validate(); err != nil {
		t.Fatalf("expected wide padding to validate, got %v", err)
	}
	job.PaddingDuration = 2
	if err := job.Validate(); err != nil {
		t.Fatalf("expected padding above the silence length to validate, got %v", err)
	}
}

func TestRunCancelledContextFails(t *testing.T) {
	h := newHarness(t)
	h.selectMusic(music.ModeLoop, "calm")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := h.job()
	job.AutoCutSilence = false
	job.NormalizeAudio = false
	job.BackgroundMusicEnabled = true
	completion, err := h.orchestrator().Run(ctx, job, h.reporter)
	if err == nil || completion.Success {
		t.Fatal("expected cancelled job to fail")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
