package aggregator

import (
	"sort"

	"speech-analytics-go/internal/types"
)

// DefaultPauseThreshold is the minimum gap, in seconds, counted as a pause.
const DefaultPauseThreshold = 1.0

type tally struct {
	words       int
	duration    float64
	confidences []float64
	pauses      []types.Pause
}

// Aggregate groups segments by speaker in first-appearance order and computes
// per-speaker statistics. Gaps of at least pauseThreshold seconds are pauses.
func Aggregate(segs []types.NormalizedSegment, pauseThreshold float64) []types.SpeakerStats {
	order := []string{}
	bySpeaker := map[string]*tally{}
	for _, s := range segs {
		t, ok := bySpeaker[s.Speaker]
		if !ok {
			t = &tally{}
			bySpeaker[s.Speaker] = t
			order = append(order, s.Speaker)
		}
		t.words += s.WordCount
		t.duration += s.Duration()
		t.confidences = append(t.confidences, s.Confidence)
		if s.GapBefore != nil && *s.GapBefore >= pauseThreshold {
			t.pauses = append(t.pauses, types.Pause{Duration: *s.GapBefore, Position: s.Start})
		}
	}

	out := make([]types.SpeakerStats, 0, len(order))
	for _, spk := range order {
		t := bySpeaker[spk]
		st := types.SpeakerStats{
			Speaker:       spk,
			WordCount:     t.words,
			TotalDuration: t.duration,
			Pauses:        t.pauses,
		}
		if st.Pauses == nil {
			st.Pauses = []types.Pause{}
		}
		sort.SliceStable(st.Pauses, func(i, j int) bool { return st.Pauses[i].Position < st.Pauses[j].Position })
		if t.duration > 0 {
			st.WordsPerMinute = float64(t.words) / (t.duration / 60)
			st.AverageConfidence = mean(t.confidences)
		}
		out = append(out, st)
	}
	return out
}

// Turns collapses consecutive segments of the same speaker into turns.
func Turns(segs []types.NormalizedSegment) []types.Turn {
	turns := []types.Turn{}
	for _, s := range segs {
		if n := len(turns); n > 0 && turns[n-1].Speaker == s.Speaker {
			turns[n-1].Duration += s.Duration()
			continue
		}
		turns = append(turns, types.Turn{Speaker: s.Speaker, Duration: s.Duration()})
	}
	return turns
}

// PrimarySpeaker returns the speaker with the longest total duration.
// Ties go to the earliest speaker; "" when there are no speakers.
func PrimarySpeaker(stats []types.SpeakerStats) string {
	best := ""
	longest := -1.0
	for _, st := range stats {
		if st.TotalDuration > longest {
			longest = st.TotalDuration
			best = st.Speaker
		}
	}
	return best
}

// TotalDuration sums speaking time across speakers.
func TotalDuration(stats []types.SpeakerStats) float64 {
	total := 0.0
	for _, st := range stats {
		total += st.TotalDuration
	}
	return total
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
