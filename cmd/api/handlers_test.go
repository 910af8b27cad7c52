package main

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"speech-analytics-go/internal/history"
	"speech-analytics-go/internal/pipeline"
	"speech-analytics-go/internal/transcription"
	"speech-analytics-go/internal/types"
)

const exampleBody = `{"key":"support","segments":[
  {"text":"hello there how are you","start":0,"end":4,"speaker":"A","confidence":0.9},
  {"text":"I am good thanks","start":4.5,"end":6.5,"speaker":"B","confidence":0.95}
]}`

func newHandlers() *handlers {
	store := history.NewMemoryStore()
	return &handlers{engine: pipeline.NewEngine(store), store: store, provider: transcription.MockProvider{}}
}

func TestAnalyze(t *testing.T) {
	h := newHandlers()
	rec := httptest.NewRecorder()
	h.analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(exampleBody)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var res types.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Key != "support" || res.SpeakerAnalysis.TotalSpeakers != 2 || res.HistoryStatus != types.HistoryEmpty {
		t.Errorf("result = %+v", res)
	}

	rec = httptest.NewRecorder()
	h.history(rec, httptest.NewRequest(http.MethodGet, "/history?key=support", nil))
	var recs []types.HistoricalRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != res.ID {
		t.Errorf("history = %+v", recs)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
		kind   string
	}{
		{"invalid segment", http.MethodPost, `{"segments":[{"start":5,"end":1,"confidence":1}]}`, http.StatusBadRequest, types.KindInvalidSegment},
		{"invalid config", http.MethodPost, `{"segments":[],"config":{"weights":[1,1,1]}}`, http.StatusBadRequest, types.KindInvalidConfig},
		{"unknown field", http.MethodPost, `{"segmentz":[]}`, http.StatusBadRequest, "bad_request"},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHandlers().analyze(rec, httptest.NewRequest(tc.method, "/analyze", strings.NewReader(tc.body)))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.kind == "" {
				return
			}
			var eb errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &eb); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if eb.Kind != tc.kind {
				t.Errorf("kind = %q, want %q", eb.Kind, tc.kind)
			}
		})
	}
}

func TestAnalyze_ConfigOverrides(t *testing.T) {
	segments := `"segments":[{"text":"hello there how are you","start":0,"end":4,"speaker":"A","confidence":0.9}]`
	tests := []struct {
		name     string
		config   string
		wantPace float64
	}{
		{"partial", `{"ideal_pace_wpm":140}`, 1 - 65.0/70},
		{"all options", `{"ideal_pace_wpm":100,"pace_bounds":[80,220],"weights":[0.4,0.3,0.3],"pause_threshold_s":1.0,"history_top_n":5,"history_top_k":3}`, 1 - 25.0/70},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := `{` + segments + `,"config":` + tc.config + `}`
			rec := httptest.NewRecorder()
			newHandlers().analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body)))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
			var res types.AnalysisResult
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := res.Comparison.SpeakerScores[0].PaceScore; math.Abs(got-tc.wantPace) > 1e-9 {
				t.Errorf("pace = %v, want %v", got, tc.wantPace)
			}
		})
	}
}

func TestHistory_TrimsKey(t *testing.T) {
	h := newHandlers()
	rec := httptest.NewRecorder()
	h.analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(exampleBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d", rec.Code)
	}

	for _, target := range []string{"/history?key=%20support%20", "/history?key=support"} {
		rec = httptest.NewRecorder()
		h.history(rec, httptest.NewRequest(http.MethodGet, target, nil))
		var recs []types.HistoricalRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
		if len(recs) != 1 {
			t.Errorf("%s returned %d records, want 1", target, len(recs))
		}
	}
}

func TestProcess(t *testing.T) {
	h := newHandlers()
	rec := httptest.NewRecorder()
	h.process(rec, httptest.NewRequest(http.MethodGet, "/process?audio_url=https://a/1.mp3&key=calls", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.process(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing audio_url status = %d", rec.Code)
	}
}
