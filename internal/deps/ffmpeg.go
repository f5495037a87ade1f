package deps

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// EngineRequirements lists the ffmpeg and ffprobe binaries configured for
// the pipeline.
func EngineRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for silence analysis, cutting and mixing",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for media inspection",
		},
	}
}

// CheckEngine checks both engine binaries and fills in the version each one
// reports.
func CheckEngine(ctx context.Context, ffmpegBinary, ffprobeBinary string) []Status {
	statuses := ResolveAll(EngineRequirements(ffmpegBinary, ffprobeBinary))
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		version, err := BinaryVersion(ctx, statuses[i].Path)
		if err != nil {
			statuses[i].Detail = "version check failed: " + err.Error()
			continue
		}
		statuses[i].Version = version
	}
	return statuses
}

// BinaryVersion runs `<binary> -version` and returns the version token of
// the banner line ("ffmpeg version 7.1 Copyright ..." yields "7.1").
func BinaryVersion(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", err
	}
	return ParseVersionBanner(output), nil
}

// ParseVersionBanner extracts the version from ffmpeg-style -version output.
func ParseVersionBanner(output []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	if !scanner.Scan() {
		return ""
	}
	fields := strings.Fields(scanner.Text())
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
