// Package comparator contrasts a fresh analysis with prior analyses that
// share its comparison key. It never touches the history store itself.
package comparator

import (
	"sort"

	"speech-analytics-go/internal/scoring"
	"speech-analytics-go/internal/types"
)

// trendTolerance is how far a score may drift from its historical mean and
// still count as steady.
const trendTolerance = 0.05

// Current is the fresh analysis being compared.
type Current struct {
	Stats        []types.SpeakerStats
	Scores       []types.SpeakerScore
	OverallScore float64
}

// Compare returns nil when history is empty.
func Compare(cur Current, history []types.HistoricalRecord, cfg scoring.Config) *types.HistoricalComparison {
	if len(history) == 0 {
		return nil
	}
	chrono := make([]types.HistoricalRecord, len(history))
	copy(chrono, history)
	sort.SliceStable(chrono, func(i, j int) bool { return chrono[i].Timestamp.Before(chrono[j].Timestamp) })

	patterns := Patterns(chrono, cfg.HistoryTopN, cfg.HistoryTopK)
	hc := &types.HistoricalComparison{
		Patterns:             patterns,
		TopScores:            patterns.TopScores,
		SuccessfulStructures: patterns.SuccessfulStructures,
		Speakers:             []types.SpeakerComparison{},
	}

	for i, st := range cur.Stats {
		speakerScore := 0.0
		if i < len(cur.Scores) {
			speakerScore = cur.Scores[i].OverallScore
		}
		if sc, ok := compareSpeaker(st, speakerScore, chrono); ok {
			hc.Speakers = append(hc.Speakers, sc)
		}
	}

	sum, atOrBelow := 0.0, 0
	for _, r := range chrono {
		sum += r.OverallScore
		if r.OverallScore <= cur.OverallScore {
			atOrBelow++
		}
	}
	hc.ScoreDelta = cur.OverallScore - sum/float64(len(chrono))
	hc.Percentile = float64(atOrBelow) / float64(len(chrono))
	return hc
}

// Patterns summarizes chronologically ordered history.
func Patterns(history []types.HistoricalRecord, topN, topK int) types.HistoricalPatterns {
	p := types.HistoricalPatterns{
		TopScores:            []types.ScoredAt{},
		SuccessfulStructures: [][]types.Turn{},
		RecordCount:          len(history),
	}
	if len(history) == 0 {
		return p
	}

	paceSum, paceN, durSum := 0.0, 0, 0.0
	for _, r := range history {
		for _, s := range r.Speakers {
			paceSum += s.Pace
			paceN++
		}
		durSum += r.TotalDuration
	}
	if paceN > 0 {
		p.AvgPace = paceSum / float64(paceN)
	}
	p.AvgDuration = durSum / float64(len(history))

	ranked := rank(history)
	for i := 0; i < len(ranked) && i < topN; i++ {
		p.TopScores = append(p.TopScores, types.ScoredAt{Score: ranked[i].OverallScore, Timestamp: ranked[i].Timestamp})
	}
	for i := 0; i < len(ranked) && i < topK; i++ {
		p.SuccessfulStructures = append(p.SuccessfulStructures, structureOf(ranked[i]))
	}
	return p
}

// rank orders records by overall score, best first; ties favour the newer record.
func rank(history []types.HistoricalRecord) []types.HistoricalRecord {
	ranked := make([]types.HistoricalRecord, len(history))
	copy(ranked, history)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].OverallScore != ranked[j].OverallScore {
			return ranked[i].OverallScore > ranked[j].OverallScore
		}
		return ranked[i].Timestamp.After(ranked[j].Timestamp)
	})
	return ranked
}

func structureOf(r types.HistoricalRecord) []types.Turn {
	if len(r.Structure) > 0 {
		out := make([]types.Turn, len(r.Structure))
		copy(out, r.Structure)
		return out
	}
	out := make([]types.Turn, 0, len(r.Speakers))
	for _, s := range r.Speakers {
		out = append(out, types.Turn{Speaker: s.Speaker, Duration: s.TotalDuration})
	}
	return out
}

func compareSpeaker(st types.SpeakerStats, current float64, history []types.HistoricalRecord) (types.SpeakerComparison, bool) {
	paceSum, scoreSum := 0.0, 0.0
	scores := []types.ScoredAt{}
	for _, r := range history {
		snap, ok := r.Speaker(st.Speaker)
		if !ok {
			continue
		}
		paceSum += snap.Pace
		scoreSum += snap.OverallScore
		scores = append(scores, types.ScoredAt{Score: snap.OverallScore, Timestamp: r.Timestamp})
	}
	if len(scores) == 0 {
		return types.SpeakerComparison{}, false
	}
	n := float64(len(scores))
	avgScore := scoreSum / n
	return types.SpeakerComparison{
		Speaker:                st.Speaker,
		CurrentPace:            st.WordsPerMinute,
		HistoricalAvgPace:      paceSum / n,
		Difference:             st.WordsPerMinute - paceSum/n,
		HistoricalScores:       scores,
		AverageHistoricalScore: avgScore,
		Trend:                  trend(current, avgScore),
	}, true
}

func trend(current, historical float64) string {
	switch {
	case current > historical+trendTolerance:
		return types.TrendImproving
	case current < historical-trendTolerance:
		return types.TrendDeclining
	}
	return types.TrendSteady
}
