// internal/narrator/narrator.go
package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Narrator turns a transcript into a free-text sentiment and quality
// critique. The text is opaque to the analysis engine.
type Narrator interface {
	Narrate(ctx context.Context, transcript string) (string, error)
}

const prompt = `You are a call quality reviewer. Read the conversation transcript below and
write a short critique covering overall sentiment, tone of each speaker,
clarity, and what could have gone better. Plain prose, no JSON.

TRANSCRIPT:
%s
`

// GatewayNarrator calls an OpenAI-compatible chat completions gateway.
type GatewayNarrator struct {
	URL          string
	APIKey       string
	Model        string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
	Client       *http.Client
}

// FromEnv returns a MockNarrator when USE_MOCK_LLM=true, a GatewayNarrator
// when LLM_GATEWAY_URL and LLM_API_KEY are set, and nil otherwise.
func FromEnv() Narrator {
	if os.Getenv("USE_MOCK_LLM") == "true" {
		return MockNarrator{}
	}
	url, key := os.Getenv("LLM_GATEWAY_URL"), os.Getenv("LLM_API_KEY")
	if url == "" || key == "" {
		return nil
	}
	return &GatewayNarrator{URL: url, APIKey: key, Model: os.Getenv("LLM_MODEL")}
}

func (g *GatewayNarrator) Narrate(ctx context.Context, transcript string) (string, error) {
	httpTimeout := g.HTTPTimeout
	if httpTimeout == 0 {
		httpTimeout = 25 * time.Second
	}
	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	reqBody := map[string]any{
		"model": g.Model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(prompt, transcript)},
		},
		"temperature": 0.2,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode narrator request: %w", err)
	}

	var text string
	var lastErr error
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, httpTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.URL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("narrator gateway %s: %s", resp.Status, strings.TrimSpace(string(body)))
			if resp.StatusCode < 500 {
				// client errors will not improve on retry
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}
		content, ok := contentFromChoices(body)
		if !ok {
			lastErr = fmt.Errorf("no content in narrator response")
			return lastErr
		}
		text = content
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.MaxRetryTime
	if b.MaxElapsedTime == 0 {
		b.MaxElapsedTime = 45 * time.Second
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", fmt.Errorf("narrate failed: %w", lastErr)
	}
	return text, nil
}

// contentFromChoices reads choices[0].message.content.
func contentFromChoices(body []byte) (string, bool) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", false
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	return content, content != ""
}

// MockNarrator returns Text, or a fixed critique when Text is empty.
type MockNarrator struct {
	Text string
	Err  error
}

func (m MockNarrator) Narrate(context.Context, string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return "MOCK NARRATION: neutral tone overall; the agent was polite but could summarize next steps more clearly.", nil
}
