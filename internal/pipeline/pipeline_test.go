package pipeline

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"speech-analytics-go/internal/actionable"
	"speech-analytics-go/internal/history"
	"speech-analytics-go/internal/narrator"
	"speech-analytics-go/internal/observe"
	"speech-analytics-go/internal/scoring"
	"speech-analytics-go/internal/types"
)

var fixedTime = time.Date(2025, 7, 4, 15, 30, 0, 0, time.UTC)

func exampleSegments() []types.Segment {
	return []types.Segment{
		{Text: "hello there how are you", Start: 0, End: 4, Speaker: "A", Confidence: 0.9},
		{Text: "I am good thanks", Start: 4.5, End: 6.5, Speaker: "B", Confidence: 0.95},
	}
}

func fixedEngine(store history.Store) *Engine {
	eng := NewEngine(store)
	eng.Now = func() time.Time { return fixedTime }
	eng.NewID = func() string { return "run-1" }
	return eng
}

type recorder struct {
	mu       sync.Mutex
	stages   []observe.Stage
	errStage observe.Stage
	degraded []string
}

func (r *recorder) PipelineStart(context.Context, string, int) {}

func (r *recorder) StageComplete(_ context.Context, s observe.Stage, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
}

func (r *recorder) PipelineError(_ context.Context, s observe.Stage, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errStage = s
}

func (r *recorder) HistoryDegraded(_ context.Context, op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = append(r.degraded, op)
}

type brokenStore struct {
	fetchErr, appendErr error
	appends             int
}

func (b *brokenStore) Fetch(context.Context, string) ([]types.HistoricalRecord, error) {
	return nil, b.fetchErr
}

func (b *brokenStore) Append(context.Context, string, types.HistoricalRecord) error {
	b.appends++
	return b.appendErr
}

func TestRun_Example(t *testing.T) {
	store := history.NewMemoryStore()
	rec := &recorder{}
	eng := fixedEngine(store)
	eng.Observer = rec

	res, err := eng.Run(context.Background(), Request{Key: "support", Segments: exampleSegments()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sa := res.SpeakerAnalysis
	if sa.TotalSpeakers != 2 || sa.PrimarySpeaker != "A" {
		t.Errorf("speakers = %d primary = %q", sa.TotalSpeakers, sa.PrimarySpeaker)
	}
	a, b := sa.SpeakerStats[0], sa.SpeakerStats[1]
	if a.WordsPerMinute != 75 || b.WordsPerMinute != 120 {
		t.Errorf("wpm = %v, %v; want 75, 120", a.WordsPerMinute, b.WordsPerMinute)
	}

	scores := res.Comparison.SpeakerScores
	if scores[0].PaceScore != 0 {
		t.Errorf("A pace = %v, want 0", scores[0].PaceScore)
	}
	if math.Abs(scores[1].PaceScore-(1-30.0/70)) > 1e-9 {
		t.Errorf("B pace = %v, want ~0.571", scores[1].PaceScore)
	}
	if got := res.Comparison.ImprovementSuggestions["A"]; !reflect.DeepEqual(got, []string{actionable.SpeakFaster}) {
		t.Errorf("A suggestions = %v", got)
	}
	if got := res.Comparison.ImprovementSuggestions["B"]; len(got) != 0 {
		t.Errorf("B suggestions = %v, want none", got)
	}

	wantOverall := (4*scores[0].OverallScore + 2*scores[1].OverallScore) / 6
	if math.Abs(res.Comparison.OverallScore-wantOverall) > 1e-9 {
		t.Errorf("OverallScore = %v, want %v", res.Comparison.OverallScore, wantOverall)
	}
	if res.Comparison.OverallRating != types.ToTen(wantOverall) {
		t.Errorf("OverallRating = %v", res.Comparison.OverallRating)
	}

	if res.HistoryStatus != types.HistoryEmpty || res.Comparison.HistoricalComparison != nil {
		t.Errorf("first run: status %q, comparison %+v", res.HistoryStatus, res.Comparison.HistoricalComparison)
	}
	if res.Transcription != "hello there how are you I am good thanks" {
		t.Errorf("Transcription = %q", res.Transcription)
	}
	if res.ID != "run-1" || !res.Timestamp.Equal(fixedTime) || res.Key != "support" {
		t.Errorf("id/timestamp/key = %q %v %q", res.ID, res.Timestamp, res.Key)
	}

	wantStages := []observe.Stage{
		observe.StageValidate, observe.StageNormalize, observe.StageAggregate, observe.StageScore,
		observe.StageFetchHistory, observe.StageCompare, observe.StageNarrate, observe.StageAssemble,
		observe.StageAppendHistory,
	}
	if !reflect.DeepEqual(rec.stages, wantStages) {
		t.Errorf("stages = %v", rec.stages)
	}

	stored, _ := store.Fetch(context.Background(), "support")
	if len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}
	if r := stored[0]; r.ID != "run-1" || len(r.Speakers) != 2 || r.TotalDuration != 6 || len(r.Structure) != 2 {
		t.Errorf("stored record = %+v", r)
	}
}

func TestRun_ComparesAgainstHistory(t *testing.T) {
	store := history.NewMemoryStore()
	past := types.HistoricalRecord{
		ID: "old", Key: "support", Timestamp: fixedTime.Add(-time.Hour), OverallScore: 0.6, TotalDuration: 5,
		Speakers: []types.SpeakerSnapshot{{Speaker: "A", Pace: 100, TotalDuration: 5, OverallScore: 0.6}},
	}
	if err := store.Append(context.Background(), "support", past); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := fixedEngine(store).Run(context.Background(), Request{Key: "support", Segments: exampleSegments()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.HistoryStatus != types.HistoryAvailable {
		t.Errorf("HistoryStatus = %q", res.HistoryStatus)
	}
	hc := res.Comparison.HistoricalComparison
	if hc == nil {
		t.Fatal("no historical comparison")
	}
	if hc.Patterns.AvgPace != 100 {
		t.Errorf("AvgPace = %v, want 100", hc.Patterns.AvgPace)
	}
	if len(hc.Speakers) != 1 || hc.Speakers[0].Speaker != "A" || hc.Speakers[0].Difference != -25 {
		t.Errorf("Speakers = %+v", hc.Speakers)
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() types.AnalysisResult {
		res, err := fixedEngine(history.NewMemoryStore()).Run(context.Background(), Request{Key: "k", Segments: exampleSegments()})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Errorf("results differ:\n%+v\n%+v", a, b)
	}
}

func TestRun_FatalErrors(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		kind  string
		stage observe.Stage
	}{
		{"invalid segment", Request{Segments: []types.Segment{{Start: 3, End: 1, Confidence: 1}}}, types.KindInvalidSegment, observe.StageNormalize},
		{"invalid weights", Request{Segments: exampleSegments(), Config: &scoring.Overrides{Weights: []float64{0.9, 0.3, 0.3}}}, types.KindInvalidConfig, observe.StageValidate},
		{"short bounds", Request{Segments: exampleSegments(), Config: &scoring.Overrides{PaceBounds: []float64{80}}}, types.KindInvalidConfig, observe.StageValidate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := history.NewMemoryStore()
			rec := &recorder{}
			eng := fixedEngine(store)
			eng.Observer = rec

			_, err := eng.Run(context.Background(), tc.req)
			if got := types.ErrorKind(err); got != tc.kind {
				t.Fatalf("kind = %q (err %v), want %q", got, err, tc.kind)
			}
			if rec.errStage != tc.stage {
				t.Errorf("error stage = %q, want %q", rec.errStage, tc.stage)
			}
			stored, _ := store.Fetch(context.Background(), DefaultKey)
			if len(stored) != 0 {
				t.Error("failed run appended history")
			}
		})
	}
}

func TestRun_FetchFailureDegrades(t *testing.T) {
	store := &brokenStore{fetchErr: errors.New("connection refused")}
	rec := &recorder{}
	eng := fixedEngine(store)
	eng.Observer = rec

	res, err := eng.Run(context.Background(), Request{Key: "k", Segments: exampleSegments()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.HistoryStatus != types.HistoryUnavailable {
		t.Errorf("HistoryStatus = %q, want unavailable", res.HistoryStatus)
	}
	if res.Comparison.HistoricalComparison != nil {
		t.Error("comparison present without history")
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "connection refused") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if !reflect.DeepEqual(rec.degraded, []string{"fetch"}) {
		t.Errorf("degraded = %v", rec.degraded)
	}
	if store.appends != 1 {
		t.Errorf("appends = %d, want 1", store.appends)
	}
}

func TestRun_AppendFailureIsWarning(t *testing.T) {
	store := &brokenStore{appendErr: errors.New("read-only file system")}
	res, err := fixedEngine(store).Run(context.Background(), Request{Segments: exampleSegments()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.HistoryStatus != types.HistoryEmpty {
		t.Errorf("HistoryStatus = %q, want empty", res.HistoryStatus)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "read-only") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if res.Key != DefaultKey {
		t.Errorf("Key = %q, want %q", res.Key, DefaultKey)
	}
}

func TestRun_CancelledBeforeAppend(t *testing.T) {
	store := history.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixedEngine(store).Run(ctx, Request{Key: "k", Segments: exampleSegments()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	stored, _ := store.Fetch(context.Background(), "k")
	if len(stored) != 0 {
		t.Error("cancelled run appended history")
	}
}

func TestRun_EmptySegments(t *testing.T) {
	res, err := fixedEngine(nil).Run(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SpeakerAnalysis.TotalSpeakers != 0 || res.Comparison.OverallScore != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.HistoryStatus != types.HistoryEmpty {
		t.Errorf("HistoryStatus = %q", res.HistoryStatus)
	}
}

func TestRun_Narrator(t *testing.T) {
	eng := fixedEngine(nil)
	eng.Narrator = narrator.MockNarrator{Text: "positive"}
	res, err := eng.Run(context.Background(), Request{Segments: exampleSegments(), Transcript: "custom"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Sentiment != "positive" || res.Transcription != "custom" {
		t.Errorf("sentiment %q transcription %q", res.Sentiment, res.Transcription)
	}

	eng.Narrator = narrator.MockNarrator{Err: errors.New("gateway down")}
	res, err = eng.Run(context.Background(), Request{Segments: exampleSegments()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Sentiment != "" || len(res.Warnings) != 1 {
		t.Errorf("sentiment %q warnings %v", res.Sentiment, res.Warnings)
	}
}

func ptr[T any](v T) *T { return &v }

func TestRun_RequestConfigOverrides(t *testing.T) {
	res, err := fixedEngine(nil).Run(context.Background(), Request{
		Segments: exampleSegments(),
		Config:   &scoring.Overrides{IdealPaceWPM: ptr(100.0)},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 75 wpm is 25 from ideal 100 over a half range of 70
	if got := res.Comparison.SpeakerScores[0].PaceScore; math.Abs(got-(1-25.0/70)) > 1e-9 {
		t.Errorf("A pace = %v", got)
	}
}

func TestRun_PartialOverrideKeepsEngineConfig(t *testing.T) {
	eng := fixedEngine(nil)
	eng.Config.PaceLow, eng.Config.PaceHigh = 50, 250

	res, err := eng.Run(context.Background(), Request{
		Segments: exampleSegments(),
		Config:   &scoring.Overrides{IdealPaceWPM: ptr(100.0)},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// bounds stay 50..250, so the half range is 100
	if got := res.Comparison.SpeakerScores[0].PaceScore; math.Abs(got-0.75) > 1e-9 {
		t.Errorf("A pace = %v, want 0.75", got)
	}
	if eng.Config.IdealPaceWPM != 150 {
		t.Errorf("engine config mutated: %+v", eng.Config)
	}
}

func TestNormalizeKey(t *testing.T) {
	for in, want := range map[string]string{"support": "support", "  support\t": "support", "": DefaultKey, "   ": DefaultKey} {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}
