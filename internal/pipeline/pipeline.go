// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"speech-analytics-go/internal/aggregator"
	"speech-analytics-go/internal/comparator"
	"speech-analytics-go/internal/history"
	"speech-analytics-go/internal/narrator"
	"speech-analytics-go/internal/normalizer"
	"speech-analytics-go/internal/observe"
	"speech-analytics-go/internal/scoring"
	"speech-analytics-go/internal/transcription"
	"speech-analytics-go/internal/types"
)

// DefaultKey is the comparison key used when a request carries none.
const DefaultKey = "default"

// Request is one analysis. Config overrides individual options of the
// engine's scoring config. Transcript defaults to the segment texts joined
// together.
type Request struct {
	Key        string             `json:"key"`
	Segments   []types.Segment    `json:"segments"`
	Transcript string             `json:"transcript,omitempty"`
	Config     *scoring.Overrides `json:"config,omitempty"`
}

// NormalizeKey trims key and maps a blank key to DefaultKey.
func NormalizeKey(key string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return DefaultKey
}

// Engine runs normalize -> aggregate -> score -> fetch history -> compare
// -> assemble, then appends the new record to history. Store, Narrator and
// Observer are optional.
type Engine struct {
	Store    history.Store
	Narrator narrator.Narrator
	Observer observe.Observer
	Config   scoring.Config
	Now      func() time.Time
	NewID    func() string
}

func NewEngine(store history.Store) *Engine {
	return &Engine{Store: store, Config: scoring.DefaultConfig()}
}

// Run analyses req. Only InvalidSegmentError, InvalidConfigError and context
// errors are returned; history and narrator failures end up in Warnings.
func (e *Engine) Run(ctx context.Context, req Request) (types.AnalysisResult, error) {
	obs := e.observer()
	key := NormalizeKey(req.Key)
	obs.PipelineStart(ctx, key, len(req.Segments))

	cfg := e.Config
	if cfg == (scoring.Config{}) {
		cfg = scoring.DefaultConfig()
	}
	t := time.Now()
	var err error
	if req.Config != nil {
		cfg, err = req.Config.Apply(cfg)
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		obs.PipelineError(ctx, observe.StageValidate, err)
		return types.AnalysisResult{}, err
	}
	t = e.stageDone(ctx, observe.StageValidate, t)

	segs, err := normalizer.Normalize(req.Segments)
	if err != nil {
		obs.PipelineError(ctx, observe.StageNormalize, err)
		return types.AnalysisResult{}, err
	}
	t = e.stageDone(ctx, observe.StageNormalize, t)

	stats := aggregator.Aggregate(segs, cfg.PauseThreshold)
	t = e.stageDone(ctx, observe.StageAggregate, t)

	scores, err := scoring.ScoreAll(stats, cfg)
	if err != nil {
		obs.PipelineError(ctx, observe.StageScore, err)
		return types.AnalysisResult{}, err
	}
	overall := scoring.OverallScore(stats, scores)
	t = e.stageDone(ctx, observe.StageScore, t)

	var warnings []string
	past, status, herr := e.fetch(ctx, key)
	if herr != nil {
		obs.HistoryDegraded(ctx, "fetch", herr)
		warnings = append(warnings, herr.Error())
	}
	t = e.stageDone(ctx, observe.StageFetchHistory, t)

	hc := comparator.Compare(comparator.Current{Stats: stats, Scores: scores, OverallScore: overall}, past, cfg)
	t = e.stageDone(ctx, observe.StageCompare, t)

	text := req.Transcript
	if text == "" {
		text = transcription.JoinText(req.Segments)
	}
	sentiment := ""
	if e.Narrator != nil {
		if sentiment, err = e.Narrator.Narrate(ctx, text); err != nil {
			sentiment = ""
			warnings = append(warnings, "sentiment unavailable: "+err.Error())
		}
	}
	t = e.stageDone(ctx, observe.StageNarrate, t)

	res := types.AnalysisResult{
		ID:            e.newID(),
		Key:           key,
		Timestamp:     e.now(),
		Transcription: text,
		Sentiment:     sentiment,
		SpeakerAnalysis: types.SpeakerAnalysis{
			SpeakerSegments: segs,
			SpeakerStats:    stats,
			TotalSpeakers:   len(stats),
			PrimarySpeaker:  aggregator.PrimarySpeaker(stats),
		},
		Comparison: types.Comparison{
			OverallScore:           overall,
			OverallRating:          types.ToTen(overall),
			SpeakerScores:          scores,
			ImprovementSuggestions: suggestions(scores),
			HistoricalComparison:   hc,
		},
		HistoryStatus: status,
	}
	t = e.stageDone(ctx, observe.StageAssemble, t)

	// nothing has been written yet, so a cancelled caller sees no side effect
	if err := ctx.Err(); err != nil {
		obs.PipelineError(ctx, observe.StageAppendHistory, err)
		return types.AnalysisResult{}, err
	}
	if e.Store != nil {
		if err := e.Store.Append(ctx, key, Record(res, segs)); err != nil {
			herr := &types.HistoryUnavailableError{Op: "append", Key: key, Err: err}
			obs.HistoryDegraded(ctx, "append", herr)
			warnings = append(warnings, herr.Error())
		}
		e.stageDone(ctx, observe.StageAppendHistory, t)
	}
	res.Warnings = warnings
	return res, nil
}

// fetch never fails the run: store errors come back as a
// HistoryUnavailableError alongside "unavailable" status and no records.
func (e *Engine) fetch(ctx context.Context, key string) ([]types.HistoricalRecord, string, error) {
	if e.Store == nil {
		return nil, types.HistoryEmpty, nil
	}
	recs, err := e.Store.Fetch(ctx, key)
	if err != nil {
		return nil, types.HistoryUnavailable, &types.HistoryUnavailableError{Op: "fetch", Key: key, Err: err}
	}
	if len(recs) == 0 {
		return nil, types.HistoryEmpty, nil
	}
	return recs, types.HistoryAvailable, nil
}

// Record converts a result into the history entry persisted for it.
func Record(res types.AnalysisResult, segs []types.NormalizedSegment) types.HistoricalRecord {
	stats := res.SpeakerAnalysis.SpeakerStats
	rec := types.HistoricalRecord{
		ID:            res.ID,
		Key:           res.Key,
		Timestamp:     res.Timestamp,
		OverallScore:  res.Comparison.OverallScore,
		TotalDuration: aggregator.TotalDuration(stats),
		Speakers:      make([]types.SpeakerSnapshot, 0, len(stats)),
		Structure:     aggregator.Turns(segs),
	}
	for i, st := range stats {
		snap := types.SpeakerSnapshot{Speaker: st.Speaker, Pace: st.WordsPerMinute, TotalDuration: st.TotalDuration}
		if i < len(res.Comparison.SpeakerScores) {
			snap.OverallScore = res.Comparison.SpeakerScores[i].OverallScore
		}
		rec.Speakers = append(rec.Speakers, snap)
	}
	return rec
}

func suggestions(scores []types.SpeakerScore) map[string][]string {
	out := make(map[string][]string, len(scores))
	for _, sc := range scores {
		out[sc.Speaker] = sc.Suggestions
	}
	return out
}

func (e *Engine) stageDone(ctx context.Context, stage observe.Stage, start time.Time) time.Time {
	now := time.Now()
	e.observer().StageComplete(ctx, stage, now.Sub(start))
	return now
}

func (e *Engine) observer() observe.Observer {
	if e.Observer == nil {
		return observe.Nop{}
	}
	return e.Observer
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.New().String()
}
