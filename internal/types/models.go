// internal/types/models.go
package types

import "time"

// --------------------------------------------
// Transcript input
// --------------------------------------------

// Segment is one timed utterance as returned by the transcription provider.
// Times are seconds from the start of the recording.
type Segment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker"`
	Confidence float64 `json:"confidence"` // 0-1
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// NormalizedSegment is a validated Segment with derived fields.
// GapBefore is the silence since the previous segment of the same speaker;
// nil for the speaker's first segment. It is never negative.
type NormalizedSegment struct {
	Segment
	WordCount int      `json:"word_count"`
	GapBefore *float64 `json:"gap_before"`
}

// --------------------------------------------
// Per-speaker statistics
// --------------------------------------------

// Pause is a notable silence between two segments of one speaker.
// Position is the start time of the segment that ends the pause.
type Pause struct {
	Duration float64 `json:"duration"`
	Position float64 `json:"position"`
}

type SpeakerStats struct {
	Speaker           string  `json:"speaker"`
	WordCount         int     `json:"word_count"`
	TotalDuration     float64 `json:"total_duration"`
	WordsPerMinute    float64 `json:"words_per_minute"`
	AverageConfidence float64 `json:"average_confidence"`
	Pauses            []Pause `json:"pauses"`
}

// Turn is a contiguous run of segments by one speaker.
type Turn struct {
	Speaker  string  `json:"speaker"`
	Duration float64 `json:"duration"`
}

// --------------------------------------------
// Scores
// --------------------------------------------

// Score holds the sub-scores of one speaker. Every *Score field is a 0-1
// fraction; use Rating for the 0-10 display scale.
type Score struct {
	PaceScore       float64  `json:"pace_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	PauseScore      float64  `json:"pause_score"`
	OverallScore    float64  `json:"overall_score"`
	Suggestions     []string `json:"suggestions"`
}

// Rating is Score on the 0-10 scale, rounded to two decimals.
type Rating struct {
	Pace       float64 `json:"pace"`
	Confidence float64 `json:"confidence"`
	Pause      float64 `json:"pause"`
	Overall    float64 `json:"overall"`
}

// Rating converts the 0-1 sub-scores to the 0-10 scale.
func (s Score) Rating() Rating {
	return Rating{
		Pace:       ToTen(s.PaceScore),
		Confidence: ToTen(s.ConfidenceScore),
		Pause:      ToTen(s.PauseScore),
		Overall:    ToTen(s.OverallScore),
	}
}

// SpeakerScore pairs a speaker label with its score.
type SpeakerScore struct {
	Speaker string `json:"speaker"`
	Score
	Rating Rating `json:"rating"` // 0-10
}

// --------------------------------------------
// History
// --------------------------------------------

// SpeakerSnapshot is what a HistoricalRecord keeps per speaker.
type SpeakerSnapshot struct {
	Speaker       string  `json:"speaker"`
	Pace          float64 `json:"pace"`
	TotalDuration float64 `json:"total_duration"`
	OverallScore  float64 `json:"overall_score"` // 0-1
}

// HistoricalRecord is one persisted analysis. Records are append-only.
type HistoricalRecord struct {
	ID            string            `json:"id"`
	Key           string            `json:"key"`
	Timestamp     time.Time         `json:"timestamp"`
	OverallScore  float64           `json:"overall_score"` // 0-1
	TotalDuration float64           `json:"total_duration"`
	Speakers      []SpeakerSnapshot `json:"speakers"`
	Structure     []Turn            `json:"structure"`
}

// Speaker returns the snapshot for label, if present.
func (r HistoricalRecord) Speaker(label string) (SpeakerSnapshot, bool) {
	for _, s := range r.Speakers {
		if s.Speaker == label {
			return s, true
		}
	}
	return SpeakerSnapshot{}, false
}

// ScoredAt is a 0-1 score with the time it was recorded.
type ScoredAt struct {
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// --------------------------------------------
// Comparison
// --------------------------------------------

type HistoricalPatterns struct {
	AvgPace              float64    `json:"avg_pace"`
	AvgDuration          float64    `json:"avg_duration"`
	TopScores            []ScoredAt `json:"top_scores"`
	SuccessfulStructures [][]Turn   `json:"successful_structures"`
	RecordCount          int        `json:"record_count"`
}

// Trend values for SpeakerComparison.Trend.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendSteady    = "steady"
)

type SpeakerComparison struct {
	Speaker                string     `json:"speaker"`
	CurrentPace            float64    `json:"current_pace"`
	HistoricalAvgPace      float64    `json:"historical_avg_pace"`
	Difference             float64    `json:"difference"`
	HistoricalScores       []ScoredAt `json:"historical_scores"`
	AverageHistoricalScore float64    `json:"average_historical_score"`
	Trend                  string     `json:"trend"`
}

type HistoricalComparison struct {
	Patterns             HistoricalPatterns  `json:"patterns"`
	TopScores            []ScoredAt          `json:"top_scores"`
	SuccessfulStructures [][]Turn            `json:"successful_structures"`
	Speakers             []SpeakerComparison `json:"speakers"`
	ScoreDelta           float64             `json:"score_delta"`
	Percentile           float64             `json:"percentile"`
}

// History status values reported on every result.
const (
	HistoryAvailable   = "available"
	HistoryEmpty       = "empty"
	HistoryUnavailable = "unavailable"
)

// --------------------------------------------
// Final result
// --------------------------------------------

type SpeakerAnalysis struct {
	SpeakerSegments []NormalizedSegment `json:"speaker_segments"`
	SpeakerStats    []SpeakerStats      `json:"speaker_stats"`
	TotalSpeakers   int                 `json:"total_speakers"`
	PrimarySpeaker  string              `json:"primary_speaker,omitempty"`
}

type Comparison struct {
	OverallScore           float64               `json:"overall_score"`  // 0-1
	OverallRating          float64               `json:"overall_rating"` // 0-10
	SpeakerScores          []SpeakerScore        `json:"speaker_scores"`
	ImprovementSuggestions map[string][]string   `json:"improvement_suggestions"`
	HistoricalComparison   *HistoricalComparison `json:"historical_comparison,omitempty"`
}

type AnalysisResult struct {
	ID              string          `json:"id"`
	Key             string          `json:"key"`
	Timestamp       time.Time       `json:"timestamp"`
	Transcription   string          `json:"transcription"`
	Sentiment       string          `json:"sentiment"`
	SpeakerAnalysis SpeakerAnalysis `json:"speaker_analysis"`
	Comparison      Comparison      `json:"comparison"`
	HistoryStatus   string          `json:"history_status"`
	Warnings        []string        `json:"warnings,omitempty"`
}
