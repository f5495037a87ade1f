package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"klyppr/internal/pipeline"
)

const progressBarWidth = 30

// progressView renders job progress. On a terminal the bar is redrawn in
// place; elsewhere one line is printed per phase and per 10% step.
type progressView struct {
	out      io.Writer
	tty      bool
	colorize bool

	mu        sync.Mutex
	phase     pipeline.Phase
	percent   float64
	lastStep  int
	barDrawn  bool
	showLines bool
}

func newProgressView(out io.Writer, tty, showLines bool) *progressView {
	return &progressView{out: out, tty: tty, colorize: tty, lastStep: -1, showLines: showLines}
}

// pump drains reporter until it is closed.
func (v *progressView) pump(reporter *pipeline.ChannelReporter) {
	progress := reporter.ProgressC()
	logs := reporter.LogC()
	for progress != nil || logs != nil {
		select {
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			v.progress(p)
		case line, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			v.line(line)
		}
	}
	v.finish()
}

func (v *progressView) progress(p pipeline.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()
	changed := p.Phase != v.phase
	v.phase = p.Phase
	v.percent = p.Percent
	if v.tty {
		v.drawBar()
		return
	}
	step := int(math.Floor(p.Percent / 10))
	if changed {
		v.lastStep = step
		fmt.Fprintf(v.out, "%s: %.0f%%\n", p.Phase.Label(), p.Percent)
		return
	}
	if step > v.lastStep {
		v.lastStep = step
		fmt.Fprintf(v.out, "%s: %.0f%%\n", p.Phase.Label(), p.Percent)
	}
}

func (v *progressView) line(text string) {
	if !v.showLines {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tty && v.barDrawn {
		fmt.Fprint(v.out, ansiClearLine)
	}
	fmt.Fprintln(v.out, "  "+text)
	if v.tty && v.phase != "" {
		v.drawBar()
	}
}

func (v *progressView) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tty && v.barDrawn {
		fmt.Fprintln(v.out)
		v.barDrawn = false
	}
}

func (v *progressView) drawBar() {
	fmt.Fprint(v.out, ansiClearLine+renderProgressBar(v.phase.Label(), v.percent, v.colorize))
	v.barDrawn = true
}

func renderProgressBar(label string, percent float64, colorize bool) string {
	percent = math.Max(0, math.Min(100, percent))
	filled := int(math.Round(percent / 100 * progressBarWidth))
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
	if colorize {
		bar = ansiGreen + bar + ansiReset
	}
	return fmt.Sprintf("%-22s [%s] %3.0f%%", label, bar, percent)
}
