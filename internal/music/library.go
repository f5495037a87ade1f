package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"klyppr/internal/fileutil"
	"klyppr/internal/media"
	"klyppr/internal/services"
)

// Origin records where a track file lives.
type Origin string

const (
	OriginBundled Origin = "default"
	OriginUser    Origin = "user"
)

// Mode selects how selected tracks become a music bed.
type Mode string

const (
	ModeLoop     Mode = "loop"
	ModeSequence Mode = "sequence"
)

// DefaultVolumeDB is the music gain before the user changes it.
const DefaultVolumeDB = -24.0

// Track is one entry in the music library.
type Track struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Filename        string    `json:"filename"`
	DurationSeconds float64   `json:"duration"`
	Origin          Origin    `json:"source"`
	AddedAt         time.Time `json:"addedDate"`
}

// Settings are the user's music choices.
type Settings struct {
	Enabled          bool     `json:"enabled"`
	Mode             Mode     `json:"mode"`
	SelectedTrackIDs []string `json:"selectedMusicIds"`
	VolumeDB         float64  `json:"volume"`
	DefaultVolumeDB  float64  `json:"defaultVolume"`
}

// Library is the persisted library document.
type Library struct {
	Tracks   []Track  `json:"musics"`
	Settings Settings `json:"settings"`
}

// DefaultSettings returns the settings of a fresh library.
func DefaultSettings() Settings {
	return Settings{
		Mode:             ModeLoop,
		SelectedTrackIDs: []string{},
		VolumeDB:         DefaultVolumeDB,
		DefaultVolumeDB:  DefaultVolumeDB,
	}
}

// FindByID returns the track with the given ID.
func (l *Library) FindByID(id string) (Track, bool) {
	for _, track := range l.Tracks {
		if track.ID == id {
			return track, true
		}
	}
	return Track{}, false
}

// minIDPrefix is the shortest ID prefix Find accepts.
const minIDPrefix = 4

// Find resolves ref as a track ID, then as a unique ID prefix, then as a
// case-insensitive track name. Ambiguous names are an error.
func (l *Library) Find(ref string) (Track, error) {
	ref = strings.TrimSpace(ref)
	if track, ok := l.FindByID(ref); ok {
		return track, nil
	}
	if len(ref) >= minIDPrefix {
		var byPrefix []Track
		for _, track := range l.Tracks {
			if strings.HasPrefix(track.ID, ref) {
				byPrefix = append(byPrefix, track)
			}
		}
		if len(byPrefix) == 1 {
			return byPrefix[0], nil
		}
	}
	folder := cases.Fold()
	folded := folder.String(ref)
	var matches []Track
	for _, track := range l.Tracks {
		if folder.String(track.Name) == folded {
			matches = append(matches, track)
		}
	}
	switch len(matches) {
	case 0:
		return Track{}, fmt.Errorf("no track matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return Track{}, fmt.Errorf("%d tracks are named %q; select by id", len(matches), ref)
	}
}

// LibraryStore reads and writes the library document.
type LibraryStore struct {
	path     string
	musicDir string
	prober   media.Prober
	now      func() time.Time
}

// StoreOption configures a LibraryStore.
type StoreOption func(*LibraryStore)

// WithClock overrides time.Now (primarily for tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *LibraryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLibraryStore returns a store for the library document at path with
// track files under musicDir. prober measures imported tracks.
func NewLibraryStore(path, musicDir string, prober media.Prober, opts ...StoreOption) *LibraryStore {
	s := &LibraryStore{path: path, musicDir: musicDir, prober: prober, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackPath returns the absolute location of a track's file.
func (s *LibraryStore) TrackPath(track Track) string {
	folder := string(OriginBundled)
	if track.Origin == OriginUser {
		folder = string(OriginUser)
	}
	return filepath.Join(s.musicDir, folder, track.Filename)
}

// Load reads the library. A missing document yields an empty library with
// default settings.
func (s *LibraryStore) Load() (*Library, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Library{Tracks: []Track{}, Settings: DefaultSettings()}, nil
		}
		return nil, fmt.Errorf("read music library: %w", err)
	}
	lib := &Library{Settings: DefaultSettings()}
	if err := json.Unmarshal(data, lib); err != nil {
		return nil, fmt.Errorf("parse music library %s: %w", s.path, err)
	}
	if lib.Settings.Mode == "" {
		lib.Settings.Mode = ModeLoop
	}
	if lib.Tracks == nil {
		lib.Tracks = []Track{}
	}
	return lib, nil
}

// Save writes the library document.
func (s *LibraryStore) Save(lib *Library) error {
	data, err := json.MarshalIndent(lib, "", "  ")
	if err != nil {
		return fmt.Errorf("encode music library: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write music library: %w", err)
	}
	return nil
}

// AddUserTrack copies src into the user folder under a fresh ID, measures it
// and records it in the library.
func (s *LibraryStore) AddUserTrack(ctx context.Context, src string) (Track, error) {
	lib, err := s.Load()
	if err != nil {
		return Track{}, err
	}
	info, err := s.prober.Probe(ctx, src)
	if err != nil {
		return Track{}, err
	}
	if !info.HasAudio {
		return Track{}, services.Wrap(services.ErrValidation, "", "add track", src+" has no audio stream", nil)
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".mp3"
	}
	track := Track{
		ID:              id,
		Name:            strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		Filename:        id + ext,
		DurationSeconds: info.DurationSeconds,
		Origin:          OriginUser,
		AddedAt:         s.now().UTC(),
	}
	dst := s.TrackPath(track)
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return Track{}, fmt.Errorf("import %s: %w", src, err)
	}

	lib.Tracks = append(lib.Tracks, track)
	if err := s.Save(lib); err != nil {
		_ = os.Remove(dst)
		return Track{}, err
	}
	return track, nil
}

// RemoveTrack drops a track from the library and the selection. User track
// files are deleted; bundled files are left in place.
func (s *LibraryStore) RemoveTrack(ref string) (Track, error) {
	lib, err := s.Load()
	if err != nil {
		return Track{}, err
	}
	track, err := lib.Find(ref)
	if err != nil {
		return Track{}, err
	}
	lib.Tracks = slices.DeleteFunc(lib.Tracks, func(t Track) bool { return t.ID == track.ID })
	lib.Settings.SelectedTrackIDs = slices.DeleteFunc(lib.Settings.SelectedTrackIDs, func(id string) bool { return id == track.ID })
	if err := s.Save(lib); err != nil {
		return Track{}, err
	}
	if track.Origin == OriginUser {
		if err := os.Remove(s.TrackPath(track)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return track, fmt.Errorf("remove track file: %w", err)
		}
	}
	return track, nil
}

// UpdateSettings loads the library, applies fn to its settings and saves it.
func (s *LibraryStore) UpdateSettings(fn func(lib *Library) error) (*Library, error) {
	lib, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(lib); err != nil {
		return nil, err
	}
	if err := s.Save(lib); err != nil {
		return nil, err
	}
	return lib, nil
}

// SyncBundled registers audio files found in the default folder that the
// library does not know yet and returns how many were added.
func (s *LibraryStore) SyncBundled(ctx context.Context) (int, error) {
	dir := filepath.Join(s.musicDir, string(OriginBundled))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read bundled music: %w", err)
	}
	lib, err := s.Load()
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(lib.Tracks))
	for _, track := range lib.Tracks {
		if track.Origin == OriginBundled {
			known[track.Filename] = true
		}
	}
	added := 0
	for _, entry := range entries {
		if entry.IsDir() || known[entry.Name()] || !IsAudioFile(entry.Name()) {
			continue
		}
		info, err := s.prober.Probe(ctx, filepath.Join(dir, entry.Name()))
		if err != nil || !info.HasAudio {
			continue
		}
		lib.Tracks = append(lib.Tracks, Track{
			ID:              uuid.NewString(),
			Name:            strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Filename:        entry.Name(),
			DurationSeconds: info.DurationSeconds,
			Origin:          OriginBundled,
			AddedAt:         s.now().UTC(),
		})
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.Save(lib)
}

var audioExtensions = []string{".mp3", ".m4a", ".aac", ".wav", ".flac", ".ogg", ".opus"}

// IsAudioFile reports whether name has a supported audio extension.
func IsAudioFile(name string) bool {
	return slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(name)))
}
