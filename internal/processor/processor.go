// internal/processor/processor.go
package processor

import (
	"context"
	"fmt"
	"time"

	"speech-analytics-go/internal/pipeline"
	"speech-analytics-go/internal/transcription"
	"speech-analytics-go/internal/types"
)

// CallResult is returned by /process.
type CallResult struct {
	AudioURL   string                `json:"audio_url"`
	Result     *types.AnalysisResult `json:"result,omitempty"`
	DurationMs int64                 `json:"duration_ms"`
	Error      string                `json:"error,omitempty"`
	ErrorKind  string                `json:"error_kind,omitempty"`
}

// ProcessCall transcribes audioURL and analyses the transcript under key.
// The timeout covers transcription only; analysis is not interruptible
// once the transcript is in hand.
func ProcessCall(ctx context.Context, p transcription.Provider, eng *pipeline.Engine, audioURL, key string, timeout time.Duration) (CallResult, error) {
	start := time.Now()
	res := CallResult{AudioURL: audioURL}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	tr, err := p.Transcribe(tctx, audioURL)
	cancel()
	if err != nil {
		res.Error = fmt.Sprintf("transcription error: %v", err)
		res.DurationMs = time.Since(start).Milliseconds()
		return res, err
	}

	out, err := eng.Run(ctx, pipeline.Request{Key: key, Segments: tr.Segments, Transcript: tr.Text})
	if err != nil {
		res.Error = fmt.Sprintf("analysis error: %v", err)
		res.ErrorKind = types.ErrorKind(err)
		res.DurationMs = time.Since(start).Milliseconds()
		return res, err
	}
	res.Result = &out
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}
