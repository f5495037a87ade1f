// Package media exposes the probe contract the pipeline relies on: duration
// and stream composition of a media file, reduced from raw ffprobe output to
// the fields the silence and music phases need.
package media
