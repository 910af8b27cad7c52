// Package scoring maps speaker statistics onto 0-1 quality scores.
// Everything here is pure and deterministic.
package scoring

import (
	"math"

	"speech-analytics-go/internal/actionable"
	"speech-analytics-go/internal/types"
)

const (
	pausePenaltyPerPause = 0.05
	maxPausePenalty      = 0.5
	maxSilencePenalty    = 0.5
)

// PaceScore is 1 at the ideal pace and falls linearly to 0 half the bounds
// range away, symmetrically on both sides.
func PaceScore(wpm float64, cfg Config) float64 {
	return math.Max(0, 1-math.Abs(wpm-cfg.IdealPaceWPM)/cfg.halfRange())
}

// PauseScore penalizes both the number of pauses and the share of speaking
// time spent silent.
func PauseScore(st types.SpeakerStats) float64 {
	total := 0.0
	for _, p := range st.Pauses {
		total += p.Duration
	}
	score := 1 - math.Min(maxPausePenalty, pausePenaltyPerPause*float64(len(st.Pauses)))
	if st.TotalDuration > 0 {
		score -= math.Min(maxSilencePenalty, total/st.TotalDuration)
	}
	return math.Max(0, score)
}

// Score computes one speaker's sub-scores, weighted overall score and
// suggestions.
func Score(st types.SpeakerStats, cfg Config) (types.Score, error) {
	if err := cfg.Validate(); err != nil {
		return types.Score{}, err
	}
	sc := types.Score{
		PaceScore:       PaceScore(st.WordsPerMinute, cfg),
		ConfidenceScore: types.Clamp01(st.AverageConfidence),
		PauseScore:      PauseScore(st),
	}
	w := cfg.Weights
	sc.OverallScore = types.Clamp01(w.Pace*sc.PaceScore + w.Confidence*sc.ConfidenceScore + w.Pause*sc.PauseScore)
	sc.Suggestions = actionable.Generate(st, sc, cfg.IdealPaceWPM)
	return sc, nil
}

// ScoreAll scores every speaker, preserving order.
func ScoreAll(stats []types.SpeakerStats, cfg Config) ([]types.SpeakerScore, error) {
	out := make([]types.SpeakerScore, 0, len(stats))
	for _, st := range stats {
		sc, err := Score(st, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, types.SpeakerScore{Speaker: st.Speaker, Score: sc, Rating: sc.Rating()})
	}
	return out, nil
}

// OverallScore is the duration-weighted mean of per-speaker overall scores.
// Speakers with no duration count equally when nobody has duration.
func OverallScore(stats []types.SpeakerStats, scores []types.SpeakerScore) float64 {
	if len(scores) == 0 || len(stats) != len(scores) {
		return 0
	}
	weighted, total, plain := 0.0, 0.0, 0.0
	for i, sc := range scores {
		d := stats[i].TotalDuration
		weighted += d * sc.OverallScore
		total += d
		plain += sc.OverallScore
	}
	if total == 0 {
		return types.Clamp01(plain / float64(len(scores)))
	}
	return types.Clamp01(weighted / total)
}
