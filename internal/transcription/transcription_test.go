package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"speech-analytics-go/internal/types"
)

func TestAssignSpeakers(t *testing.T) {
	segs := []types.Segment{
		{Text: "a", Start: 0, End: 2, Speaker: "stale"},
		{Text: "b", Start: 2, End: 5},
		{Text: "c", Start: 10, End: 11},
	}
	turns := []Turn{
		{Start: 0, End: 2.5, Speaker: "Agent"},
		{Start: 2.5, End: 6, Speaker: "Customer"},
	}
	got := AssignSpeakers(segs, turns)
	want := []string{"Agent", "Customer", UnknownSpeaker}
	for i, w := range want {
		if got[i].Speaker != w {
			t.Errorf("segment %d speaker = %q, want %q", i, got[i].Speaker, w)
		}
	}
	if segs[0].Speaker != "stale" {
		t.Error("input segments were modified")
	}
}

func TestJoinText(t *testing.T) {
	got := JoinText([]types.Segment{{Text: " hello "}, {Text: ""}, {Text: "world"}})
	if got != "hello world" {
		t.Errorf("JoinText = %q", got)
	}
}

func TestHTTPProvider_Transcribe(t *testing.T) {
	doc := Transcription{Segments: []types.Segment{
		{Text: "hi there", Start: 0, End: 1, Speaker: "A", Confidence: 0.9},
		{Text: "hello", Start: 1.2, End: 2, Speaker: "B", Confidence: 0.8},
	}}
	polls := 0

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("callRecordingLink") != "https://audio/call.mp3" || r.FormValue("callType") != "PNS" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		w.Write([]byte(`{"Code":200,"Status":"ok","Data":{"MediaId":"m-1","Status":"Queued"}}`))
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mediaId") != "m-1" {
			t.Errorf("mediaId = %q", r.URL.Query().Get("mediaId"))
		}
		polls++
		if polls < 2 {
			w.Write([]byte(`{"Code":200,"Data":{"Status":"Processing"}}`))
			return
		}
		w.Write([]byte(`{"Code":200,"Data":{"Status":"Success","TranscriptionURL":"` + srv.URL + `/doc"}}`))
	})
	mux.HandleFunc("/doc", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(doc)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	p := &HTTPProvider{Host: srv.URL, PollInterval: time.Millisecond, MaxPolls: 5}
	got, err := p.Transcribe(context.Background(), "https://audio/call.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !reflect.DeepEqual(got.Segments, doc.Segments) {
		t.Errorf("Segments = %+v", got.Segments)
	}
	if got.Text != "hi there hello" {
		t.Errorf("Text = %q", got.Text)
	}
	if polls != 2 {
		t.Errorf("polls = %d, want 2", polls)
	}
}

func TestHTTPProvider_DownloadLabelsFromTurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"segments":[
			{"text":"hi there","start":0,"end":1,"confidence":0.9},
			{"text":"hello","start":1.2,"end":2,"confidence":0.8},
			{"text":"bye","start":5,"end":6,"confidence":0.7}
		],"turns":[
			{"start":0,"end":1.1,"speaker":"agent"},
			{"start":1.1,"end":3,"speaker":"caller"}
		]}`))
	}))
	defer srv.Close()

	p := &HTTPProvider{Host: srv.URL}
	got, err := p.download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	var speakers []string
	for _, s := range got.Segments {
		speakers = append(speakers, s.Speaker)
	}
	if want := []string{"agent", "caller", UnknownSpeaker}; !reflect.DeepEqual(speakers, want) {
		t.Errorf("speakers = %v, want %v", speakers, want)
	}
	if got.Text != "hi there hello bye" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestHTTPProvider_PublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown call type", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := &HTTPProvider{Host: srv.URL}
	if _, err := p.Transcribe(context.Background(), "x"); err == nil {
		t.Fatal("want error for rejected publish")
	}
}

func TestHTTPProvider_FailedTranscription(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"Code":200,"Data":{"MediaId":"m-2"}}`))
	})
	mux.HandleFunc("/getstatus", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"Code":200,"Reason":"corrupt audio","Data":{"Status":"Failed"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &HTTPProvider{Host: srv.URL, PollInterval: time.Millisecond}
	if _, err := p.Transcribe(context.Background(), "x"); err == nil {
		t.Fatal("want error for failed transcription")
	}
}

func TestMockProvider(t *testing.T) {
	tr, err := MockProvider{}.Transcribe(context.Background(), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(tr.Segments) == 0 || tr.Text != JoinText(tr.Segments) {
		t.Errorf("mock transcription = %+v", tr)
	}
}
