// Package music manages the background music library and prepares the music
// bed that is mixed under a processed video.
//
// Key types:
//   - LibraryStore: the JSON library document and the track files under the
//     default and user folders
//   - Playlist: the tracks resolved for one job from the library settings
//   - CrossfadeBuilder: renders a track sequence into one crossfaded file
//   - Mixer: lays the music bed under the video's own audio
package music
