// Package observe defines the lifecycle hook the analysis engine reports
// through, plus logrus and OpenTelemetry implementations of it.
//
// The engine holds no logger of its own: callers decide where lifecycle
// events go by passing an Observer, or several via Multi.
package observe

import (
	"context"
	"time"
)

// Stage names one step of the analysis pipeline.
type Stage string

const (
	StageValidate      Stage = "validate"
	StageNormalize     Stage = "normalize"
	StageAggregate     Stage = "aggregate"
	StageScore         Stage = "score"
	StageFetchHistory  Stage = "fetch_history"
	StageCompare       Stage = "compare"
	StageNarrate       Stage = "narrate"
	StageAssemble      Stage = "assemble"
	StageAppendHistory Stage = "append_history"
)

// Observer receives pipeline lifecycle events. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	PipelineStart(ctx context.Context, key string, segments int)
	StageComplete(ctx context.Context, stage Stage, elapsed time.Duration)
	// PipelineError reports a fatal failure; the run returns err.
	PipelineError(ctx context.Context, stage Stage, err error)
	// HistoryDegraded reports a non-fatal history store failure.
	HistoryDegraded(ctx context.Context, op string, err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) PipelineStart(context.Context, string, int) {}
func (Nop) StageComplete(context.Context, Stage, time.Duration) {}
func (Nop) PipelineError(context.Context, Stage, error) {}
func (Nop) HistoryDegraded(context.Context, string, error) {}

// Multi fans events out to every observer in order.
type Multi []Observer

func (m Multi) PipelineStart(ctx context.Context, key string, segments int) {
	for _, o := range m {
		o.PipelineStart(ctx, key, segments)
	}
}

func (m Multi) StageComplete(ctx context.Context, stage Stage, elapsed time.Duration) {
	for _, o := range m {
		o.StageComplete(ctx, stage, elapsed)
	}
}

func (m Multi) PipelineError(ctx context.Context, stage Stage, err error) {
	for _, o := range m {
		o.PipelineError(ctx, stage, err)
	}
}

func (m Multi) HistoryDegraded(ctx context.Context, op string, err error) {
	for _, o := range m {
		o.HistoryDegraded(ctx, op, err)
	}
}
