package ffmpeg

import (
	"regexp"
	"strconv"
)

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	timePattern     = regexp.MustCompile(`time=\s*(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	clockPattern    = regexp.MustCompile(`^(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)$`)
)

type progressTracker struct {
	total  float64
	seeded bool
	last   float64
}

func newProgressTracker(duration float64) *progressTracker {
	return &progressTracker{total: duration, seeded: duration > 0, last: -1}
}

// observe consumes a stderr line and returns a new percentage when the line
// advances progress.
func (p *progressTracker) observe(line string) (float64, bool) {
	if !p.seeded {
		if m := durationPattern.FindStringSubmatch(line); m != nil {
			if total := clockSeconds(m[1], m[2], m[3]); total > 0 {
				// The first Duration header belongs to the first input.
				p.total = total
				p.seeded = true
			}
			return 0, false
		}
	}
	m := timePattern.FindStringSubmatch(line)
	if m == nil || p.total <= 0 {
		return 0, false
	}
	elapsed := clockSeconds(m[1], m[2], m[3])
	if elapsed < 0 {
		elapsed = 0
	}
	percent := elapsed / p.total * 100
	if percent > 100 {
		percent = 100
	}
	if percent <= p.last {
		return 0, false
	}
	p.last = percent
	return percent, true
}

// ParseClock converts an HH:MM:SS.ms timestamp into seconds.
func ParseClock(value string) (float64, bool) {
	m := clockPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	return clockSeconds(m[1], m[2], m[3]), true
}

func clockSeconds(h, m, s string) float64 {
	hours, _ := strconv.ParseFloat(h, 64)
	minutes, _ := strconv.ParseFloat(m, 64)
	seconds, _ := strconv.ParseFloat(s, 64)
	if hours < 0 {
		return hours*3600 - minutes*60 - seconds
	}
	return hours*3600 + minutes*60 + seconds
}
