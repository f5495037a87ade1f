package segments

import (
	"klyppr/internal/services"
	"klyppr/internal/silence"
)

// MinSegmentDuration is the shortest piece of content worth keeping, in
// seconds. Shorter pieces are dropped, never merged into a neighbour.
const MinSegmentDuration = 0.05

// Segment is a time range of the source to keep, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Plan returns the kept segments between the silent intervals, in order.
// With no intervals the whole source is kept, even when it is shorter than
// MinSegmentDuration. An empty result fails with services.ErrNoContent.
func Plan(intervals []silence.Interval, totalDuration float64) ([]Segment, error) {
	if len(intervals) == 0 {
		return []Segment{{Start: 0, End: totalDuration}}, nil
	}

	segments := make([]Segment, 0, len(intervals)+1)
	keep := func(start, end float64) {
		if end-start > MinSegmentDuration {
			segments = append(segments, Segment{Start: start, End: end})
		}
	}

	keep(0, intervals[0].Start)
	for i := 0; i < len(intervals)-1; i++ {
		keep(intervals[i].End, intervals[i+1].Start)
	}
	keep(intervals[len(intervals)-1].End, totalDuration)

	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrNoContent, "planning_segments", "plan", "entire input judged silent", nil)
	}
	return segments, nil
}

// TotalDuration sums the duration of all segments.
func TotalDuration(segments []Segment) float64 {
	total := 0.0
	for _, seg := range segments {
		total += seg.Duration()
	}
	return total
}
