package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"podbase/internal/catalog"
	"podbase/internal/models"
	"podbase/internal/retry"
	"podbase/internal/snapshot"
	"podbase/internal/transcript"
)

type fakeStore struct {
	mu       sync.Mutex
	episodes map[int]*models.Episode
	statuses map[int][]models.EpisodeStatus
	segments map[int][]models.Segment
	speakers map[int][]models.Speaker
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		episodes: map[int]*models.Episode{},
		statuses: map[int][]models.EpisodeStatus{},
		segments: map[int][]models.Segment{},
		speakers: map[int][]models.Speaker{},
	}
}

func (s *fakeStore) UpsertEpisode(ctx context.Context, number int, title, audio string) (*models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[number]
	if !ok {
		ep = &models.Episode{Number: number, Status: models.StatusUnprocessed}
		s.episodes[number] = ep
	}
	ep.Title = title
	ep.Audio = audio
	got := *ep
	return &got, nil
}

func (s *fakeStore) SetEpisodeStatus(ctx context.Context, number int, status models.EpisodeStatus, lastErr *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[number]
	if !ok {
		return fmt.Errorf("episode %d not registered", number)
	}
	ep.Status = status
	ep.LastError = lastErr
	s.statuses[number] = append(s.statuses[number], status)
	return nil
}

func (s *fakeStore) StoreSegments(ctx context.Context, number int, speakers []models.Speaker, segments []models.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakers[number] = speakers
	s.segments[number] = segments
	return nil
}

func (s *fakeStore) GetEpisode(ctx context.Context, number int) (*models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[number]
	if !ok {
		return nil, nil
	}
	got := *ep
	return &got, nil
}

func (s *fakeStore) episode(t *testing.T, number int) models.Episode {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[number]
	if !ok {
		t.Fatalf("episode %d not in store", number)
	}
	return *ep
}

type fakeTranscriber struct {
	mu     sync.Mutex
	calls  []string
	errFor map[string]error
	raw    *transcript.RawTranscript
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (*transcript.RawTranscript, error) {
	f.mu.Lock()
	f.calls = append(f.calls, audioPath)
	f.mu.Unlock()
	if err := f.errFor[filepath.Base(audioPath)]; err != nil {
		return nil, err
	}
	if f.raw != nil {
		return f.raw, nil
	}
	return rawFixture(), nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBatchEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (f *fakeBatchEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, models.EmbeddingDimension)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func rawFixture() *transcript.RawTranscript {
	return &transcript.RawTranscript{
		Results: &transcript.Results{Channels: []transcript.Channel{{
			Alternatives: []transcript.Alternative{{
				Paragraphs: &transcript.Paragraphs{Paragraphs: []transcript.Paragraph{
					{Speaker: 0, Sentences: []transcript.Sentence{{Text: "Welcome back to the show."}}},
					{Speaker: 1, Sentences: []transcript.Sentence{{Text: "Glad to be here."}}},
					{Speaker: 0, Sentences: []transcript.Sentence{{Text: "Let's get into it."}}},
				}},
			}},
		}}},
	}
}

func emptyFixture() *transcript.RawTranscript {
	return &transcript.RawTranscript{
		Results: &transcript.Results{Channels: []transcript.Channel{{
			Alternatives: []transcript.Alternative{{
				Paragraphs: &transcript.Paragraphs{},
			}},
		}}},
	}
}

func testEntry(id int) catalog.EpisodeEntry {
	return catalog.EpisodeEntry{
		ID:    id,
		Title: fmt.Sprintf("Episode %d", id),
		Audio: fmt.Sprintf("ep_%d.mp3", id),
		Speakers: map[int]catalog.SpeakerEntry{
			1: {Name: "Mark", Role: models.RoleHost},
			2: {Name: "Paul", Role: models.RoleHost},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProcessor(t *testing.T, tr Transcriber, em Embedder, fromSnapshot bool) (*Processor, *snapshot.Exporter) {
	t.Helper()
	exporter, err := snapshot.NewExporter(t.TempDir())
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	p := NewProcessor(ProcessorConfig{
		Transcriber:  tr,
		Embedder:     em,
		Exporter:     exporter,
		Log:          discardLogger(),
		FromSnapshot: fromSnapshot,
	})
	return p, exporter
}

func TestProcessSuccess(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeBatchEmbedder{}
	proc, exporter := testProcessor(t, &fakeTranscriber{}, embedder, false)

	out := proc.Process(context.Background(), store, testEntry(1))
	if out.Status != OutcomeSucceeded || out.Err != nil {
		t.Fatalf("outcome = %+v, want succeeded", out)
	}

	ep := store.episode(t, 1)
	if ep.Status != models.StatusProcessed {
		t.Errorf("episode status = %q, want processed", ep.Status)
	}
	wantHistory := []models.EpisodeStatus{models.StatusProcessing, models.StatusProcessed}
	if got := store.statuses[1]; len(got) != 2 || got[0] != wantHistory[0] || got[1] != wantHistory[1] {
		t.Errorf("status history = %v, want %v", got, wantHistory)
	}

	segments := store.segments[1]
	if len(segments) != 3 {
		t.Fatalf("stored %d segments, want 3", len(segments))
	}
	wantSpeakers := []string{"Mark", "Paul", "Mark"}
	for i, seg := range segments {
		if seg.Ordinal != i {
			t.Errorf("segment %d ordinal = %d", i, seg.Ordinal)
		}
		if seg.Speaker != wantSpeakers[i] {
			t.Errorf("segment %d speaker = %q, want %q", i, seg.Speaker, wantSpeakers[i])
		}
		if len(seg.Embedding) != models.EmbeddingDimension {
			t.Errorf("segment %d embedding dimension = %d", i, len(seg.Embedding))
		}
	}

	if speakers := store.speakers[1]; len(speakers) != 2 || speakers[0].Name != "Mark" || speakers[1].Name != "Paul" {
		t.Errorf("stored speakers = %+v", speakers)
	}
	if !exporter.Exists("ep_1") {
		t.Error("snapshot checkpoint not exported")
	}
}

func TestProcessTranscribeFailure(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{errFor: map[string]error{
		"ep_3.mp3": retry.Permanent(errors.New("bad audio reference")),
	}}
	proc, _ := testProcessor(t, tr, &fakeBatchEmbedder{}, false)

	out := proc.Process(context.Background(), store, testEntry(3))
	if out.Status != OutcomeFailed || out.Err == nil {
		t.Fatalf("outcome = %+v, want failed", out)
	}

	ep := store.episode(t, 3)
	if ep.Status != models.StatusFailed {
		t.Errorf("episode status = %q, want failed", ep.Status)
	}
	if ep.LastError == nil || !strings.Contains(*ep.LastError, "bad audio reference") {
		t.Errorf("last error = %v, want the transcribe failure", ep.LastError)
	}
	if len(store.segments[3]) != 0 {
		t.Error("segments stored despite transcribe failure")
	}
}

func TestProcessEmbedFailureKeepsCheckpoint(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeBatchEmbedder{err: retry.Permanent(errors.New("provider rejected batch"))}
	proc, exporter := testProcessor(t, &fakeTranscriber{}, embedder, false)

	out := proc.Process(context.Background(), store, testEntry(2))
	if out.Status != OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", out)
	}

	if ep := store.episode(t, 2); ep.Status != models.StatusFailed {
		t.Errorf("episode status = %q, want failed", ep.Status)
	}
	// The stage-3 snapshot stays valid for a later --from-snapshot run.
	if !exporter.Exists("ep_2") {
		t.Error("snapshot checkpoint missing after embed failure")
	}
	if len(store.segments[2]) != 0 {
		t.Error("segments stored despite embed failure")
	}
}

func TestProcessFromSnapshot(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{}
	embedder := &fakeBatchEmbedder{}
	proc, exporter := testProcessor(t, tr, embedder, true)

	saved := []models.FormattedSegment{
		{Speaker: "Mark", Text: "From disk."},
		{Speaker: "Paul", Text: "Indeed."},
	}
	if _, err := exporter.Export("ep_7", saved); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	out := proc.Process(context.Background(), store, testEntry(7))
	if out.Status != OutcomeSucceeded {
		t.Fatalf("outcome = %+v, want succeeded", out)
	}
	if tr.callCount() != 0 {
		t.Errorf("transcriber called %d times in snapshot mode", tr.callCount())
	}

	if len(embedder.batches) != 1 {
		t.Fatalf("embedder called %d times, want 1", len(embedder.batches))
	}
	wantTexts := []string{"From disk.", "Indeed."}
	for i, text := range embedder.batches[0] {
		if text != wantTexts[i] {
			t.Errorf("embedded text %d = %q, want %q", i, text, wantTexts[i])
		}
	}

	segments := store.segments[7]
	if len(segments) != 2 || segments[0].Speaker != "Mark" || segments[1].Speaker != "Paul" {
		t.Errorf("stored segments = %+v", segments)
	}
}

func TestProcessFromSnapshotMissing(t *testing.T) {
	store := newFakeStore()
	proc, _ := testProcessor(t, &fakeTranscriber{}, &fakeBatchEmbedder{}, true)

	out := proc.Process(context.Background(), store, testEntry(9))
	if out.Status != OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", out)
	}
	var valErr *ValidationError
	if !errors.As(out.Err, &valErr) {
		t.Fatalf("error = %T, want *ValidationError", out.Err)
	}
	if len(store.episodes) != 0 {
		t.Error("store touched for an episode that failed validation")
	}
}

func TestProcessRejectsInvalidEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry catalog.EpisodeEntry
	}{
		{"zero id", catalog.EpisodeEntry{ID: 0, Audio: "ep.mp3"}},
		{"no audio", catalog.EpisodeEntry{ID: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			proc, _ := testProcessor(t, &fakeTranscriber{}, &fakeBatchEmbedder{}, false)

			out := proc.Process(context.Background(), store, tt.entry)
			if out.Status != OutcomeFailed {
				t.Fatalf("outcome = %+v, want failed", out)
			}
			var valErr *ValidationError
			if !errors.As(out.Err, &valErr) {
				t.Fatalf("error = %T, want *ValidationError", out.Err)
			}
			if len(store.episodes) != 0 {
				t.Error("store touched for a rejected entry")
			}
		})
	}
}

func TestProcessEmptyTranscriptFails(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{raw: emptyFixture()}
	proc, _ := testProcessor(t, tr, &fakeBatchEmbedder{}, false)

	out := proc.Process(context.Background(), store, testEntry(4))
	if out.Status != OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", out)
	}
	if !strings.Contains(out.Err.Error(), "no segments") {
		t.Errorf("error = %v, want empty-transcript failure", out.Err)
	}
	if ep := store.episode(t, 4); ep.Status != models.StatusFailed {
		t.Errorf("episode status = %q, want failed", ep.Status)
	}
}

func TestProcessTranscriptFromDisk(t *testing.T) {
	store := newFakeStore()
	tr := &fakeTranscriber{}
	proc, _ := testProcessor(t, tr, &fakeBatchEmbedder{}, false)

	raw, err := json.Marshal(rawFixture())
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ep_5.json")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	entry := testEntry(5)
	entry.Transcript = path

	out := proc.Process(context.Background(), store, entry)
	if out.Status != OutcomeSucceeded {
		t.Fatalf("outcome = %+v, want succeeded", out)
	}
	if tr.callCount() != 0 {
		t.Errorf("transcriber called %d times with a saved transcript", tr.callCount())
	}
	if len(store.segments[5]) != 3 {
		t.Errorf("stored %d segments, want 3", len(store.segments[5]))
	}
}

type cancelingTranscriber struct {
	cancel context.CancelFunc
}

func (c *cancelingTranscriber) Transcribe(context.Context, string) (*transcript.RawTranscript, error) {
	c.cancel()
	return nil, retry.Permanent(errors.New("interrupted"))
}

func TestProcessFailureMarkSurvivesCancellation(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc, _ := testProcessor(t, &cancelingTranscriber{cancel: cancel}, &fakeBatchEmbedder{}, false)

	out := proc.Process(ctx, store, testEntry(6))
	if out.Status != OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", out)
	}
	// The failed mark must land even though the run context died mid-stage.
	if ep := store.episode(t, 6); ep.Status != models.StatusFailed {
		t.Errorf("episode status = %q, want failed", ep.Status)
	}
}
