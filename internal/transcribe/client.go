// Package transcribe provides the speech-to-text provider client.
// It uploads episode audio to a Deepgram-compatible endpoint and returns
// the typed diarized transcript.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"podbase/internal/retry"
	"podbase/internal/transcript"
)

// Transcription request parameters. Diarization and paragraph grouping
// are required downstream; the formatter consumes the paragraph stream.
var defaultParams = url.Values{
	"model":        {"nova-3"},
	"language":     {"en"},
	"smart_format": {"true"},
	"punctuate":    {"true"},
	"paragraphs":   {"true"},
	"diarize":      {"true"},
	"filler_words": {"false"},
}

const maxErrorBody = 2048

// Client calls the transcription API.
type Client struct {
	baseURL string
	apiKey  string
	rawDir  string
	httpc   *http.Client
	log     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for tests).
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = httpc }
}

// WithRawDir sets the directory where raw provider responses are saved.
// Saved responses let format-only runs work from disk without
// re-transcribing. Empty disables saving.
func WithRawDir(dir string) ClientOption {
	return func(c *Client) { c.rawDir = dir }
}

// NewClient validates the API key and builds a client.
func NewClient(baseURL, apiKey string, log *slog.Logger, opts ...ClientOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("transcription API key is empty (set DEEPGRAM_API_KEY)")
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("transcription API key looks invalid (too short)")
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Transcribe uploads the audio file and returns the parsed response.
// A missing file or a 4xx response is permanent; timeouts, 429 and 5xx
// classify as transient for the retry layer.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (*transcript.RawTranscript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, retry.Permanent(fmt.Errorf("audio file not found: %s", audioPath))
		}
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	reqURL := c.baseURL + "?" + defaultParams.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, file)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(audioPath))

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &retry.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var tr transcript.RawTranscript
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode transcription response: %w", err))
	}
	tr.Source = filepath.Base(audioPath)

	c.log.Debug("transcription complete",
		"audio", tr.Source, "bytes", len(raw), "duration", time.Since(start))

	if c.rawDir != "" {
		if err := c.saveRaw(raw, audioPath); err != nil {
			return nil, err
		}
	}
	return &tr, nil
}

// RawPathFor returns where the raw response for an audio file is saved.
func (c *Client) RawPathFor(audioPath string) string {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return filepath.Join(c.rawDir, stem+".json")
}

func (c *Client) saveRaw(raw []byte, audioPath string) error {
	if err := os.MkdirAll(c.rawDir, 0755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	path := c.RawPathFor(audioPath)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("save raw transcript: %w", err)
	}
	c.log.Debug("raw transcript saved", "path", path)
	return nil
}

// LoadRaw reads a previously saved raw response from disk. Used by
// format-only runs that skip transcription.
func LoadRaw(path string) (*transcript.RawTranscript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw transcript: %w", err)
	}
	var tr transcript.RawTranscript
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode raw transcript %s: %w", path, err)
	}
	tr.Source = filepath.Base(path)
	return &tr, nil
}

func contentTypeFor(audioPath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(audioPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
