package gspeech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

// Adapter talks to a cloud speech-to-text API. Every call declares the
// audio encoding, sample rate and language; the service answers with
// ranked alternatives per recognized segment.
type Adapter struct {
	key      string
	language string
	baseURL  string
	client   *http.Client
	sleep    func(time.Duration)
}

const (
	attemptTimeout = 30 * time.Second
	maxRetries     = 2

	defaultLanguage = "en-US"
)

func New(apiKey, language, baseURL string) *Adapter {
	if language == "" {
		language = defaultLanguage
	}
	baseURL = normalizeBaseURL(baseURL)
	return &Adapter{
		key:      apiKey,
		language: language,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: attemptTimeout},
		sleep:    time.Sleep,
	}
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize sends the WAV to the recognition endpoint and joins the top
// alternative of every result, in service order, into one string. A
// missing or zero-length file short-circuits to ("", nil) without a
// network call. Transient failures are retried with increasing backoff.
func (a *Adapter) Recognize(ctx context.Context, wavPath string) (string, error) {
	fi, err := os.Stat(wavPath)
	if err != nil || fi.Size() == 0 {
		return "", nil
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	body, err := json.Marshal(recognizeRequest{
		Config: recognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: 16000,
			LanguageCode:    a.language,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			a.sleep(time.Duration(attempt) * time.Second)
		}
		text, retryable, err := a.recognizeOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (a *Adapter) recognizeOnce(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", a.baseURL+"/v1/speech:recognize", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", true, fmt.Errorf("speech timeout after %s", attemptTimeout)
		}
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", false, fmt.Errorf("speech status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		err := fmt.Errorf("speech status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
		// 429 and 5xx are worth another attempt; other 4xx are not.
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, err
	}

	var raw recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	return joinTranscripts(raw), false, nil
}

func joinTranscripts(raw recognizeResponse) string {
	var parts []string
	for _, r := range raw.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
