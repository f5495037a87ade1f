// Package filters builds the ffmpeg filter specification strings used by the
// pipeline. Every builder is pure so graphs can be asserted on directly.
package filters

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Loudness normalization targets applied during extraction and the
// audio-only normalize step.
const (
	LoudnessTargetLUFS = -16.0
	LoudnessTruePeakDB = -1.5
	LoudnessRangeLU    = 11.0
)

// Music bed constants.
const (
	MusicFadeOutSeconds = 3.0
	OriginalMixWeight   = 1.0
	MusicMixWeight      = 0.3
	// LoopBufferSize is the aloop sample buffer; large enough to hold any
	// track whole.
	LoopBufferSize = "2e9"
)

// Stream labels shared between the music prep chain and the mixer.
const (
	MusicLabel = "bg_music"
	MixLabel   = "aout"
)

// SilenceDetect returns the silencedetect filter for the given noise floor
// and minimum silence duration.
func SilenceDetect(thresholdDB, minDuration float64) string {
	return fmt.Sprintf("silencedetect=noise=%sdB:d=%s", Number(thresholdDB), Number(minDuration))
}

// Loudnorm returns the single-pass EBU R128 loudness filter.
func Loudnorm() string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s",
		Number(LoudnessTargetLUFS), Number(LoudnessTruePeakDB), Number(LoudnessRangeLU))
}

// Crossfade returns one acrossfade stage joining left and right into out.
// Labels are given without brackets.
func Crossfade(left, right, out string, seconds float64) string {
	return fmt.Sprintf("[%s][%s]acrossfade=d=%s:c1=tri:c2=tri[%s]", left, right, Number(seconds), out)
}

// MusicBed prepares the music input at label in: an infinite loop when loop
// is set, a trim to duration, a fade-out ending at duration and a gain of
// volumeDB. The result is written to MusicLabel.
func MusicBed(in string, loop bool, duration, volumeDB float64) string {
	stages := make([]string, 0, 4)
	if loop {
		stages = append(stages, "aloop=loop=-1:size="+LoopBufferSize)
	}
	fadeStart := math.Max(0, duration-MusicFadeOutSeconds)
	stages = append(stages,
		"atrim=0:"+Number(duration),
		fmt.Sprintf("afade=t=out:st=%s:d=%s", Number(fadeStart), Number(MusicFadeOutSeconds)),
		"volume="+Number(volumeDB)+"dB",
	)
	return fmt.Sprintf("[%s]%s[%s]", in, strings.Join(stages, ","), MusicLabel)
}

// Mix blends the original audio with the music bed. The original stream
// governs the output duration.
func Mix(original string) string {
	return fmt.Sprintf("[%s][%s]amix=inputs=2:duration=first:weights=%s %s[%s]",
		original, MusicLabel, Number(OriginalMixWeight), Number(MusicMixWeight), MixLabel)
}

// Graph joins filter chains into a filter_complex argument.
func Graph(chains ...string) string {
	parts := make([]string, 0, len(chains))
	for _, chain := range chains {
		if chain = strings.TrimSpace(chain); chain != "" {
			parts = append(parts, chain)
		}
	}
	return strings.Join(parts, ";")
}

// Number formats seconds and decibel values the way ffmpeg accepts them,
// rounded to the millisecond with no trailing zeros.
func Number(v float64) string {
	rounded := math.Round(v*1000) / 1000
	if rounded == 0 {
		rounded = 0
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
