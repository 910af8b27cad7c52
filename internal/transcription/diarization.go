package transcription

import (
	"math"

	"speech-analytics-go/internal/types"
)

// UnknownSpeaker labels segments no diarization turn overlaps.
const UnknownSpeaker = "Unknown"

// Turn is one diarization span.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// AssignSpeakers labels each segment with the speaker whose turn overlaps it
// the most. Existing labels are overwritten; segs is not modified.
func AssignSpeakers(segs []types.Segment, turns []Turn) []types.Segment {
	out := make([]types.Segment, len(segs))
	for i, s := range segs {
		best, bestSpk := 0.0, UnknownSpeaker
		for _, t := range turns {
			overlap := math.Min(s.End, t.End) - math.Max(s.Start, t.Start)
			if overlap > best {
				best = overlap
				bestSpk = t.Speaker
			}
		}
		s.Speaker = bestSpk
		out[i] = s
	}
	return out
}
