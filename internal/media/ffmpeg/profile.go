package ffmpeg

// Target audio profile shared by every re-encoding phase.
const (
	AudioCodec      = "aac"
	AudioBitrate    = "192k"
	AudioSampleRate = "48000"
	AudioChannels   = "2"
)

// AudioProfileArgs returns the encoder flags for the target audio profile.
func AudioProfileArgs() []string {
	return []string{"-c:a", AudioCodec, "-b:a", AudioBitrate, "-ar", AudioSampleRate, "-ac", AudioChannels}
}

// FastStartArgs moves the moov atom to the front for progressive playback.
func FastStartArgs() []string {
	return []string{"-movflags", "+faststart"}
}
