package actionable

import "speech-analytics-go/internal/types"

// Suggestion texts, in rule order.
const (
	SpeakFaster   = "Speak a little more quickly and fill long pauses to keep the conversation engaging"
	SlowDown      = "Slow down for clarity"
	LowConfidence = "Speech was hard to transcribe: check articulation, audio quality, or ambiguous phrasing"
	FewerPauses   = "Reduce the frequency and length of pauses"
)

const (
	paceFloor     = 0.5
	confidenceMin = 0.6
	pauseScoreMin = 0.5
)

type rule struct {
	text  string
	fires func(st types.SpeakerStats, sc types.Score, idealPace float64) bool
}

var rules = []rule{
	{SpeakFaster, func(st types.SpeakerStats, sc types.Score, ideal float64) bool {
		return sc.PaceScore < paceFloor && st.WordsPerMinute < ideal
	}},
	{SlowDown, func(st types.SpeakerStats, sc types.Score, ideal float64) bool {
		return sc.PaceScore < paceFloor && st.WordsPerMinute > ideal
	}},
	{LowConfidence, func(_ types.SpeakerStats, sc types.Score, _ float64) bool {
		return sc.ConfidenceScore < confidenceMin
	}},
	{FewerPauses, func(_ types.SpeakerStats, sc types.Score, _ float64) bool {
		return sc.PauseScore < pauseScoreMin
	}},
}

// Generate returns the suggestions whose rules fire for one speaker, in rule
// declaration order and without duplicates.
func Generate(st types.SpeakerStats, sc types.Score, idealPace float64) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, r := range rules {
		if seen[r.text] || !r.fires(st, sc, idealPace) {
			continue
		}
		seen[r.text] = true
		out = append(out, r.text)
	}
	return out
}
