package observe

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// LogObserver writes lifecycle events to a logrus entry.
type LogObserver struct {
	Entry *logrus.Entry
}

var _ Observer = LogObserver{}

func NewLogObserver(entry *logrus.Entry) LogObserver {
	return LogObserver{Entry: entry.WithField("component", "analysis")}
}

func (l LogObserver) PipelineStart(_ context.Context, key string, segments int) {
	l.Entry.WithFields(logrus.Fields{
		"comparison_key": key,
		"segments":       segments,
	}).Info("pipeline started")
}

func (l LogObserver) StageComplete(_ context.Context, stage Stage, elapsed time.Duration) {
	l.Entry.WithFields(logrus.Fields{
		"stage":      string(stage),
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
	}).Debug("stage complete")
}

func (l LogObserver) PipelineError(_ context.Context, stage Stage, err error) {
	l.Entry.WithField("stage", string(stage)).WithField("error", err.Error()).Error("pipeline failed")
}

func (l LogObserver) HistoryDegraded(_ context.Context, op string, err error) {
	l.Entry.WithField("op", op).WithField("error", err.Error()).Warn("history unavailable")
}
