package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phase is one state of the job machine.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseDetectingSilence   Phase = "detecting_silence"
	PhasePlanningSegments   Phase = "planning_segments"
	PhaseExtractingSegments Phase = "extracting_segments"
	PhaseConcatenating      Phase = "concatenating"
	PhaseNormalizingAudio   Phase = "normalizing_audio"
	PhaseMixingMusic        Phase = "mixing_music"
	PhaseCompleted          Phase = "completed"
	PhaseFailed             Phase = "failed"
)

var transitions = map[Phase][]Phase{
	PhaseIdle:               {PhaseDetectingSilence, PhaseNormalizingAudio},
	PhaseDetectingSilence:   {PhasePlanningSegments, PhaseNormalizingAudio},
	PhasePlanningSegments:   {PhaseExtractingSegments},
	PhaseExtractingSegments: {PhaseConcatenating},
	PhaseConcatenating:      {PhaseMixingMusic},
	PhaseNormalizingAudio:   {PhaseMixingMusic},
	PhaseMixingMusic:        {PhaseCompleted},
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// CanTransition reports whether the machine may move from p to next. Failed
// is reachable from every non-terminal phase.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Label renders the phase for humans ("extracting_segments" becomes
// "Extracting Segments"). A Caser is stateful, so each call builds its own.
func (p Phase) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(p), "_", " "))
}

// TransitionError reports a move the phase table does not allow.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition %s -> %s", e.From, e.To)
}
