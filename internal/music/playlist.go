package music

import (
	"errors"
	"io/fs"
	"os"

	"klyppr/internal/services"
)

const playlistPhase = "mixing_music"

// ResolvedTrack pairs a library track with its file on disk.
type ResolvedTrack struct {
	Track Track
	Path  string
}

// Playlist is the music resolved for one job.
type Playlist struct {
	Mode           Mode
	Tracks         []ResolvedTrack
	TargetDuration float64
}

// LoopPath returns the track looped in loop mode.
func (p Playlist) LoopPath() string {
	if len(p.Tracks) == 0 {
		return ""
	}
	return p.Tracks[0].Path
}

// Paths returns the track files in play order.
func (p Playlist) Paths() []string {
	out := make([]string, len(p.Tracks))
	for i, rt := range p.Tracks {
		out[i] = rt.Path
	}
	return out
}

// BuildPlaylist resolves the selected tracks of lib in selection order.
// Unknown IDs are skipped and every resolved file must exist. Loop mode then
// keeps only the first resolved track.
func (s *LibraryStore) BuildPlaylist(lib *Library, videoDuration float64) (Playlist, error) {
	settings := lib.Settings
	resolved := make([]ResolvedTrack, 0, len(settings.SelectedTrackIDs))
	for _, id := range settings.SelectedTrackIDs {
		track, ok := lib.FindByID(id)
		if !ok {
			continue
		}
		resolved = append(resolved, ResolvedTrack{Track: track, Path: s.TrackPath(track)})
	}
	if len(resolved) == 0 {
		return Playlist{}, services.Wrap(services.ErrNoMusicSelected, playlistPhase, "resolve playlist", "", nil)
	}

	for _, rt := range resolved {
		if _, err := os.Stat(rt.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Playlist{}, services.Wrap(services.ErrMissingMusicFile, playlistPhase, "resolve playlist", rt.Track.Name+": "+rt.Path, nil)
			}
			return Playlist{}, services.Wrap(services.ErrMissingMusicFile, playlistPhase, "resolve playlist", rt.Path, err)
		}
	}

	mode := settings.Mode
	if mode != ModeSequence {
		mode = ModeLoop
		resolved = resolved[:1]
	}
	return Playlist{Mode: mode, Tracks: resolved, TargetDuration: videoDuration}, nil
}
