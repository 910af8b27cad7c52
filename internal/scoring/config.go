package scoring

import (
	"fmt"
	"math"

	"speech-analytics-go/internal/aggregator"
	"speech-analytics-go/internal/types"
)

// Weights combine sub-scores into the overall score. They must sum to 1.
type Weights struct {
	Pace       float64 `json:"pace"`
	Confidence float64 `json:"confidence"`
	Pause      float64 `json:"pause"`
}

// Config tunes scoring and history comparison.
type Config struct {
	IdealPaceWPM   float64 `json:"ideal_pace_wpm"`
	PaceLow        float64 `json:"pace_low"`
	PaceHigh       float64 `json:"pace_high"`
	Weights        Weights `json:"weights"`
	PauseThreshold float64 `json:"pause_threshold_s"`
	HistoryTopN    int     `json:"history_top_n"`
	HistoryTopK    int     `json:"history_top_k"`
}

const weightTolerance = 1e-9

func DefaultConfig() Config {
	return Config{
		IdealPaceWPM:   150,
		PaceLow:        80,
		PaceHigh:       220,
		Weights:        Weights{Pace: 0.4, Confidence: 0.3, Pause: 0.3},
		PauseThreshold: aggregator.DefaultPauseThreshold,
		HistoryTopN:    5,
		HistoryTopK:    3,
	}
}

// Validate reports the first problem as an *types.InvalidConfigError.
func (c Config) Validate() error {
	w := c.Weights
	switch {
	case w.Pace < 0 || w.Confidence < 0 || w.Pause < 0:
		return &types.InvalidConfigError{Field: "weights", Message: "weights must not be negative"}
	case math.Abs(w.Pace+w.Confidence+w.Pause-1) > weightTolerance:
		return &types.InvalidConfigError{Field: "weights", Message: fmt.Sprintf("weights sum to %.6f, want 1", w.Pace+w.Confidence+w.Pause)}
	case c.PaceLow >= c.PaceHigh:
		return &types.InvalidConfigError{Field: "pace_bounds", Message: fmt.Sprintf("low %.1f must be below high %.1f", c.PaceLow, c.PaceHigh)}
	case c.PaceLow < 0:
		return &types.InvalidConfigError{Field: "pace_bounds", Message: "low bound must not be negative"}
	case c.IdealPaceWPM < c.PaceLow || c.IdealPaceWPM > c.PaceHigh:
		return &types.InvalidConfigError{Field: "ideal_pace_wpm", Message: fmt.Sprintf("%.1f outside bounds [%.1f, %.1f]", c.IdealPaceWPM, c.PaceLow, c.PaceHigh)}
	case c.PauseThreshold < 0:
		return &types.InvalidConfigError{Field: "pause_threshold_s", Message: "must not be negative"}
	case c.HistoryTopN < 1:
		return &types.InvalidConfigError{Field: "history_top_n", Message: "must be at least 1"}
	case c.HistoryTopK < 1:
		return &types.InvalidConfigError{Field: "history_top_k", Message: "must be at least 1"}
	}
	return nil
}

// halfRange is the distance from the ideal pace at which the pace score hits 0.
func (c Config) halfRange() float64 { return (c.PaceHigh - c.PaceLow) / 2 }

// Overrides holds optional scoring options under their configuration names.
// Nil fields keep the value of the config they are applied to.
type Overrides struct {
	IdealPaceWPM    *float64  `json:"ideal_pace_wpm,omitempty" yaml:"ideal_pace_wpm"`
	PaceBounds      []float64 `json:"pace_bounds,omitempty" yaml:"pace_bounds"`
	Weights         []float64 `json:"weights,omitempty" yaml:"weights"`
	PauseThresholdS *float64  `json:"pause_threshold_s,omitempty" yaml:"pause_threshold_s"`
	HistoryTopN     *int      `json:"history_top_n,omitempty" yaml:"history_top_n"`
	HistoryTopK     *int      `json:"history_top_k,omitempty" yaml:"history_top_k"`
}

// Apply returns base with every set option replaced, validated. On error
// base is returned unchanged.
func (o Overrides) Apply(base Config) (Config, error) {
	c := base
	if o.IdealPaceWPM != nil {
		c.IdealPaceWPM = *o.IdealPaceWPM
	}
	if o.PaceBounds != nil {
		if len(o.PaceBounds) != 2 {
			return base, &types.InvalidConfigError{Field: "pace_bounds", Message: "want [low, high]"}
		}
		c.PaceLow, c.PaceHigh = o.PaceBounds[0], o.PaceBounds[1]
	}
	if o.Weights != nil {
		if len(o.Weights) != 3 {
			return base, &types.InvalidConfigError{Field: "weights", Message: "want [pace, confidence, pause]"}
		}
		c.Weights = Weights{Pace: o.Weights[0], Confidence: o.Weights[1], Pause: o.Weights[2]}
	}
	if o.PauseThresholdS != nil {
		c.PauseThreshold = *o.PauseThresholdS
	}
	if o.HistoryTopN != nil {
		c.HistoryTopN = *o.HistoryTopN
	}
	if o.HistoryTopK != nil {
		c.HistoryTopK = *o.HistoryTopK
	}
	if err := c.Validate(); err != nil {
		return base, err
	}
	return c, nil
}
