package silence

import (
	"regexp"
	"strconv"
)

// MinSilenceInterval is the shortest padded interval worth cutting, in
// seconds.
const MinSilenceInterval = 0.05

// Interval is a padded silent range, in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

type parserState int

const (
	awaitingStart parserState = iota
	awaitingEnd
)

// ffmpeg prints marker times with %.6g, so near-zero values arrive in
// exponent form ("2.08333e-05").
var (
	startPattern = regexp.MustCompile(`silence_start:\s*([-+]?[\d.]+(?:[eE][-+]?\d+)?)`)
	endPattern   = regexp.MustCompile(`silence_end:\s*([-+]?[\d.]+(?:[eE][-+]?\d+)?)`)
)

// Parser folds silencedetect markers into intervals.
type Parser struct {
	padding   float64
	state     parserState
	start     float64
	intervals []Interval
	rejected  int
}

// NewParser returns a parser that shrinks each interval by padding at both
// ends.
func NewParser(padding float64) *Parser {
	return &Parser{padding: padding}
}

// Feed consumes one line of analysis output.
func (p *Parser) Feed(line string) {
	if m := startPattern.FindStringSubmatch(line); m != nil {
		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return
		}
		if t < 0 {
			t = 0
		}
		// A start while already awaiting an end replaces the pending one.
		p.start = t
		p.state = awaitingEnd
		return
	}
	m := endPattern.FindStringSubmatch(line)
	if m == nil || p.state != awaitingEnd {
		return
	}
	t, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return
	}
	p.state = awaitingStart
	interval := Interval{Start: p.start + p.padding, End: t - p.padding}
	if interval.Duration() > MinSilenceInterval {
		p.intervals = append(p.intervals, interval)
		return
	}
	p.rejected++
}

// Finish ends the stream and returns the accumulated intervals. It reports
// whether a trailing start was pending and has been discarded.
func (p *Parser) Finish() ([]Interval, bool) {
	discarded := p.state == awaitingEnd
	p.state = awaitingStart
	return p.intervals, discarded
}

// Rejected returns how many closed pairs were too short after padding.
func (p *Parser) Rejected() int {
	return p.rejected
}
