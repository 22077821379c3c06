package transcribe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podbase/internal/retry"
	"podbase/internal/transcribe"
)

const fixtureResponse = `{
	"results": {
		"channels": [{
			"alternatives": [{
				"transcript": "Hi. Good.",
				"paragraphs": {
					"paragraphs": [
						{"speaker": 0, "sentences": [{"text": "Hi."}]},
						{"speaker": 1, "sentences": [{"text": "Good."}]}
					]
				}
			}]
		}]
	}
}`

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AGD-180.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake-mp3-bytes"), 0644))
	return path
}

func TestNewClientValidatesKey(t *testing.T) {
	_, err := transcribe.NewClient("http://example.com", "", nil)
	require.Error(t, err, "empty key must be rejected")

	_, err = transcribe.NewClient("http://example.com", "short", nil)
	require.Error(t, err, "too-short key must be rejected")

	_, err = transcribe.NewClient("http://example.com", "dg_0123456789", nil)
	require.NoError(t, err)
}

func TestTranscribe(t *testing.T) {
	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fixtureResponse))
	}))
	defer server.Close()

	rawDir := t.TempDir()
	client, err := transcribe.NewClient(server.URL, "dg_0123456789", nil, transcribe.WithRawDir(rawDir))
	require.NoError(t, err)

	audioPath := writeAudioFile(t)
	tr, err := client.Transcribe(context.Background(), audioPath)
	require.NoError(t, err)

	require.NotNil(t, gotReq, "server never saw the request")
	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "Token dg_0123456789", gotReq.Header.Get("Authorization"))
	assert.Equal(t, "audio/mpeg", gotReq.Header.Get("Content-Type"))

	query := gotReq.URL.Query()
	assert.Equal(t, "nova-3", query.Get("model"))
	assert.Equal(t, "true", query.Get("diarize"))
	assert.Equal(t, "true", query.Get("paragraphs"))
	assert.Equal(t, "false", query.Get("filler_words"))

	assert.Equal(t, "AGD-180.mp3", tr.Source)
	utterances, err := tr.Utterances()
	require.NoError(t, err)
	require.Len(t, utterances, 2)
	assert.Equal(t, 1, utterances[0].Slot, "wire speaker 0 maps to slot 1")

	saved, err := os.ReadFile(filepath.Join(rawDir, "AGD-180.json"))
	require.NoError(t, err, "raw response must be saved for format-only runs")
	assert.JSONEq(t, fixtureResponse, string(saved))
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := transcribe.NewClient(server.URL, "dg_0123456789", nil)
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeAudioFile(t))
	require.Error(t, err)

	var statusErr *retry.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, 7*time.Second, statusErr.RetryAfter)
	assert.True(t, retry.IsTransient(err), "5xx must classify transient")
}

func TestTranscribeAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := transcribe.NewClient(server.URL, "dg_0123456789", nil)
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeAudioFile(t))
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err), "auth failure must not retry")
}

func TestTranscribeMissingAudio(t *testing.T) {
	client, err := transcribe.NewClient("http://localhost:1", "dg_0123456789", nil)
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"))
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err), "missing audio is a permanent failure")
	assert.Contains(t, err.Error(), "audio file not found")
}

func TestTranscribeMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client, err := transcribe.NewClient(server.URL, "dg_0123456789", nil)
	require.NoError(t, err)

	_, err = client.Transcribe(context.Background(), writeAudioFile(t))
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err), "malformed body must not retry")
}

func TestLoadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AGD-181.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureResponse), 0644))

	tr, err := transcribe.LoadRaw(path)
	require.NoError(t, err)
	assert.Equal(t, "AGD-181.json", tr.Source)

	utterances, err := tr.Utterances()
	require.NoError(t, err)
	assert.Len(t, utterances, 2)

	_, err = transcribe.LoadRaw(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
