// Package silence finds silent intervals in a media file's audio.
//
// Detection streams a silencedetect analysis run through ffmpeg and folds the
// "silence_start" and "silence_end" markers into padded intervals with an
// explicit two-state parser. Only closed start/end pairs become intervals.
package silence
