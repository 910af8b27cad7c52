package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"speech-analytics-go/internal/types"
)

// Transcription is the structured output of a provider. When the provider
// returns diarization turns separately, Segments are labelled from them.
type Transcription struct {
	Text     string          `json:"text"`
	Language string          `json:"language,omitempty"`
	Segments []types.Segment `json:"segments"`
	Turns    []Turn          `json:"turns,omitempty"`
}

// Provider turns an audio reference into timed, speaker-labelled segments.
type Provider interface {
	Transcribe(ctx context.Context, audioURL string) (Transcription, error)
}

type PublishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaId          string `json:"MediaId"`
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type StatusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

// HTTPProvider talks to a publish / poll / download transcription service
// whose final document is a JSON Transcription.
type HTTPProvider struct {
	Host         string
	CallType     string
	PollInterval time.Duration
	MaxPolls     int
	Client       *http.Client
}

// FromEnv returns a MockProvider when USE_MOCK_TRANSCRIBE=true, otherwise
// an HTTPProvider for TRANSCRIBE_URL.
func FromEnv() (Provider, error) {
	if os.Getenv("USE_MOCK_TRANSCRIBE") == "true" {
		return MockProvider{}, nil
	}
	host := os.Getenv("TRANSCRIBE_URL")
	if host == "" {
		return nil, errors.New("TRANSCRIBE_URL not set")
	}
	return &HTTPProvider{Host: host}, nil
}

func (p *HTTPProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 12 * time.Second}
}

func (p *HTTPProvider) Transcribe(ctx context.Context, audioURL string) (Transcription, error) {
	mediaID, existingURL, err := p.publish(ctx, audioURL)
	if err != nil {
		return Transcription{}, err
	}
	if existingURL != "" {
		return p.download(ctx, existingURL)
	}
	finalURL, err := p.poll(ctx, mediaID)
	if err != nil {
		return Transcription{}, err
	}
	return p.download(ctx, finalURL)
}

func (p *HTTPProvider) publish(ctx context.Context, audioURL string) (string, string, error) {
	endpoint := strings.TrimRight(p.Host, "/") + "/transcribe"
	callType := p.CallType
	if callType == "" {
		callType = "PNS"
	}
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	w.WriteField("callRecordingLink", audioURL)
	w.WriteField("callType", callType)
	_ = w.Close()
	body := b.Bytes()

	var resp PublishResponse
	err := p.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.Code != 200 {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return "", resp.Data.TranscriptionURL, nil
	}
	return resp.Data.MediaId, "", nil
}

func (p *HTTPProvider) poll(ctx context.Context, mediaID string) (string, error) {
	interval, maxPolls := p.PollInterval, p.MaxPolls
	if interval == 0 {
		interval = 1500 * time.Millisecond
	}
	if maxPolls == 0 {
		maxPolls = 40
	}
	u, err := url.Parse(strings.TrimRight(p.Host, "/") + "/getstatus")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mediaId", mediaID)
	u.RawQuery = q.Encode()

	for i := 0; i < maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
		var s StatusResponse
		err := p.doJSON(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}, &s)
		if err != nil {
			continue
		}
		switch s.Data.Status {
		case "Success":
			return s.Data.TranscriptionURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			return "", fmt.Errorf("transcription failed: %s", s.Reason)
		}
	}
	return "", fmt.Errorf("transcription timeout")
}

func (p *HTTPProvider) download(ctx context.Context, docURL string) (Transcription, error) {
	var out Transcription
	err := p.doJSON(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	}, &out)
	if err != nil {
		return Transcription{}, fmt.Errorf("download transcript: %w", err)
	}
	if len(out.Turns) > 0 {
		out.Segments = AssignSpeakers(out.Segments, out.Turns)
	}
	if out.Text == "" {
		out.Text = JoinText(out.Segments)
	}
	return out, nil
}

func (p *HTTPProvider) doJSON(ctx context.Context, newReq func() (*http.Request, error), target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second
	var lastErr error
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.client().Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if len(body) == 0 {
			lastErr = fmt.Errorf("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			return err
		}
		return lastErr
	}
	return nil
}

// JoinText concatenates segment texts with single spaces.
func JoinText(segs []types.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// MockProvider returns a short two-speaker call.
type MockProvider struct{}

func (MockProvider) Transcribe(context.Context, string) (Transcription, error) {
	segs := []types.Segment{
		{Text: "hello thank you for calling how can I help you today", Start: 0, End: 4, Speaker: "Customer Support", Confidence: 0.92},
		{Text: "hi I want a refund for my last order", Start: 4.5, End: 7, Speaker: "Customer", Confidence: 0.88},
		{Text: "sure let me look that up for you", Start: 7.4, End: 9.6, Speaker: "Customer Support", Confidence: 0.9},
		{Text: "I have started the refund it will arrive in five days", Start: 12, End: 15.5, Speaker: "Customer Support", Confidence: 0.86},
	}
	return Transcription{Text: JoinText(segs), Language: "en", Segments: segs}, nil
}
