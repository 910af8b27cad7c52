// Package normalizer validates raw transcript segments and derives the
// per-segment fields the rest of the pipeline relies on.
package normalizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"speech-analytics-go/internal/types"
)

// UnknownSpeaker labels segments that arrive without a speaker.
const UnknownSpeaker = "Unknown"

// Normalize validates segs, sorts them by start time and computes word counts
// and same-speaker gaps. The input slice is not modified.
func Normalize(segs []types.Segment) ([]types.NormalizedSegment, error) {
	for i, s := range segs {
		if err := validate(i, s); err != nil {
			return nil, err
		}
	}

	out := make([]types.NormalizedSegment, len(segs))
	for i, s := range segs {
		if strings.TrimSpace(s.Speaker) == "" {
			s.Speaker = UnknownSpeaker
		}
		out[i] = types.NormalizedSegment{Segment: s, WordCount: len(strings.Fields(s.Text))}
	}
	// stable so equal starts keep input order
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	lastEnd := map[string]float64{}
	for i := range out {
		seg := &out[i]
		if prev, ok := lastEnd[seg.Speaker]; ok {
			gap := math.Max(0, seg.Start-prev)
			seg.GapBefore = &gap
		}
		lastEnd[seg.Speaker] = seg.End
	}
	return out, nil
}

func validate(i int, s types.Segment) error {
	switch {
	case !finite(s.Start) || !finite(s.End):
		return &types.InvalidSegmentError{Index: i, Message: "start and end must be finite"}
	case s.End <= s.Start:
		return &types.InvalidSegmentError{Index: i, Message: fmt.Sprintf("end %.3f must be after start %.3f", s.End, s.Start)}
	case !finite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1:
		return &types.InvalidSegmentError{Index: i, Message: fmt.Sprintf("confidence %v outside [0,1]", s.Confidence)}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
