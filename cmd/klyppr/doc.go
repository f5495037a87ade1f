// Command klyppr removes silent sections from recorded videos, normalizes
// their loudness and lays a background music bed under the result.
//
// Typical usage:
//
//	klyppr process talk.mp4
//	klyppr music add ~/Music/calm.mp3
//	klyppr music select calm
//	klyppr watch ~/Recordings
package main
