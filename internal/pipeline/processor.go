// Package pipeline runs catalog episodes through transcription,
// formatting, embedding and storage with bounded parallelism. Each
// episode is an independent unit of work: its failure is recorded and
// isolated, never propagated to sibling episodes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"podbase/internal/catalog"
	"podbase/internal/metrics"
	"podbase/internal/models"
	"podbase/internal/retry"
	"podbase/internal/snapshot"
	"podbase/internal/transcribe"
	"podbase/internal/transcript"
)

// ValidationError reports an episode descriptor that cannot enter the
// pipeline. It is raised before any stage runs.
type ValidationError struct {
	Episode int
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("episode %d: %s", e.Episode, e.Reason)
}

// Transcriber provides speech-to-text for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*transcript.RawTranscript, error)
}

// Embedder turns segment texts into vectors, order preserved.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EpisodeStore is the persistence surface one episode's run needs.
// *store.Client satisfies it; tests use fakes.
type EpisodeStore interface {
	UpsertEpisode(ctx context.Context, number int, title, audio string) (*models.Episode, error)
	SetEpisodeStatus(ctx context.Context, number int, status models.EpisodeStatus, lastErr *string) error
	StoreSegments(ctx context.Context, number int, speakers []models.Speaker, segments []models.Segment) error
	GetEpisode(ctx context.Context, number int) (*models.Episode, error)
}

// OutcomeStatus classifies the result of one episode's run.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeAborted   OutcomeStatus = "aborted"
)

// Outcome is the terminal result of one episode's run. Errors are
// captured here, never propagated.
type Outcome struct {
	Episode int
	Status  OutcomeStatus
	Err     error
}

// ProcessorConfig wires a Processor's collaborators.
type ProcessorConfig struct {
	Transcriber Transcriber
	Embedder    Embedder
	Exporter    *snapshot.Exporter
	Metrics     *metrics.Collector
	Log         *slog.Logger

	// AudioDir is joined to relative audio references from the catalog.
	AudioDir string

	// FromSnapshot skips transcription and formatting, reloading each
	// episode's exported snapshot for the embed and store stages.
	FromSnapshot bool
}

// Processor runs one episode through the pipeline stages in order:
// transcribe, format, export snapshot, embed, store. The snapshot export
// is a durable checkpoint; a later run can resume from it.
type Processor struct {
	transcriber  Transcriber
	embedder     Embedder
	exporter     *snapshot.Exporter
	metrics      *metrics.Collector
	audioDir     string
	fromSnapshot bool
	log          *slog.Logger

	transcribeTask *retry.Task
	embedTask      *retry.Task
	storeTask      *retry.Task
}

// NewProcessor creates a processor from its configuration.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	return &Processor{
		transcriber:    cfg.Transcriber,
		embedder:       cfg.Embedder,
		exporter:       cfg.Exporter,
		metrics:        cfg.Metrics,
		audioDir:       cfg.AudioDir,
		fromSnapshot:   cfg.FromSnapshot,
		log:            cfg.Log,
		transcribeTask: retry.New("transcribe", cfg.Log),
		embedTask:      retry.New("embed segments", cfg.Log),
		storeTask:      retry.New("store segments", cfg.Log),
	}
}

// Metrics returns the processor's collector for run reporting.
func (p *Processor) Metrics() *metrics.Collector {
	return p.metrics
}

// Process runs the episode through all stages on the given store client.
// The returned outcome is terminal. On failure the episode's stored
// status is set to failed with the error message; it is never left at
// processing.
func (p *Processor) Process(ctx context.Context, store EpisodeStore, entry catalog.EpisodeEntry) Outcome {
	log := p.log.With("episode", entry.ID)

	if err := p.validate(entry); err != nil {
		log.Warn("episode rejected", "error", err)
		return Outcome{Episode: entry.ID, Status: OutcomeFailed, Err: err}
	}

	if _, err := store.UpsertEpisode(ctx, entry.ID, entry.Title, entry.Audio); err != nil {
		return Outcome{Episode: entry.ID, Status: OutcomeFailed, Err: fmt.Errorf("register episode: %w", err)}
	}
	if err := store.SetEpisodeStatus(ctx, entry.ID, models.StatusProcessing, nil); err != nil {
		return Outcome{Episode: entry.ID, Status: OutcomeFailed, Err: fmt.Errorf("mark processing: %w", err)}
	}

	segments, err := p.prepareSegments(ctx, entry, log)
	if err != nil {
		return p.fail(ctx, store, entry.ID, err, log)
	}
	if len(segments) == 0 {
		return p.fail(ctx, store, entry.ID, fmt.Errorf("transcript produced no segments"), log)
	}

	rows, err := p.embedSegments(ctx, entry, segments)
	if err != nil {
		return p.fail(ctx, store, entry.ID, err, log)
	}

	start := time.Now()
	err = p.storeTask.Do(ctx, func(ctx context.Context) error {
		return store.StoreSegments(ctx, entry.ID, catalog.ModelSpeakers(entry), rows)
	})
	p.metrics.Record(metrics.OpStore, time.Since(start), err)
	if err != nil {
		return p.fail(ctx, store, entry.ID, err, log)
	}

	if err := store.SetEpisodeStatus(ctx, entry.ID, models.StatusProcessed, nil); err != nil {
		return p.fail(ctx, store, entry.ID, fmt.Errorf("mark processed: %w", err), log)
	}

	log.Info("episode processed", "segments", len(rows))
	return Outcome{Episode: entry.ID, Status: OutcomeSucceeded}
}

// validate checks the descriptor before any stage runs. Validation never
// touches the store; a rejected episode keeps whatever status it has.
func (p *Processor) validate(entry catalog.EpisodeEntry) error {
	if entry.ID <= 0 {
		return &ValidationError{Episode: entry.ID, Reason: "id must be positive"}
	}
	if p.fromSnapshot {
		if entry.Audio == "" || !p.exporter.Exists(entry.Stem()) {
			return &ValidationError{
				Episode: entry.ID,
				Reason:  fmt.Sprintf("no snapshot at %s", p.exporter.PathFor(entry.Stem())),
			}
		}
		return nil
	}
	if entry.Audio == "" {
		return &ValidationError{Episode: entry.ID, Reason: "audio file not set"}
	}
	return nil
}

// prepareSegments produces formatted segments, either by transcribing and
// formatting or by reloading the exported snapshot checkpoint.
func (p *Processor) prepareSegments(ctx context.Context, entry catalog.EpisodeEntry, log *slog.Logger) ([]models.FormattedSegment, error) {
	if p.fromSnapshot {
		segments, err := p.exporter.Import(entry.Stem())
		if err != nil {
			return nil, fmt.Errorf("reload snapshot: %w", err)
		}
		log.Info("snapshot reloaded", "segments", len(segments))
		return segments, nil
	}

	raw, err := p.obtainTranscript(ctx, entry, log)
	if err != nil {
		return nil, err
	}

	formatter := transcript.NewFormatter(entry.SpeakerNames())
	start := time.Now()
	segments, err := formatter.FormatTranscript(raw)
	p.metrics.Record(metrics.OpFormat, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("format transcript: %w", err)
	}

	start = time.Now()
	path, err := p.exporter.Export(entry.Stem(), segments)
	p.metrics.Record(metrics.OpExport, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	log.Debug("snapshot exported", "path", path, "segments", len(segments))
	return segments, nil
}

// obtainTranscript returns the raw transcript, from disk when the catalog
// names a saved one, otherwise from the transcription provider.
func (p *Processor) obtainTranscript(ctx context.Context, entry catalog.EpisodeEntry, log *slog.Logger) (*transcript.RawTranscript, error) {
	if entry.Transcript != "" {
		raw, err := transcribe.LoadRaw(entry.Transcript)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
		log.Info("raw transcript loaded from disk", "path", entry.Transcript)
		return raw, nil
	}

	if p.transcriber == nil {
		return nil, retry.Permanent(errors.New("no transcription client configured"))
	}

	audioPath := entry.Audio
	if p.audioDir != "" && !filepath.IsAbs(audioPath) {
		audioPath = filepath.Join(p.audioDir, audioPath)
	}

	var raw *transcript.RawTranscript
	start := time.Now()
	err := p.transcribeTask.Do(ctx, func(ctx context.Context) error {
		var terr error
		raw, terr = p.transcriber.Transcribe(ctx, audioPath)
		return terr
	})
	p.metrics.Record(metrics.OpTranscribe, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// embedSegments generates one vector per segment and pairs them into
// storable rows. Ordinals follow segment order from zero.
func (p *Processor) embedSegments(ctx context.Context, entry catalog.EpisodeEntry, segments []models.FormattedSegment) ([]models.Segment, error) {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}

	var vectors [][]float32
	start := time.Now()
	err := p.embedTask.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedBatch(ctx, texts)
		return embedErr
	})
	p.metrics.Record(metrics.OpEmbed, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(segments) {
		return nil, fmt.Errorf("embed segments: got %d vectors for %d segments", len(vectors), len(segments))
	}

	rows := make([]models.Segment, len(segments))
	for i, s := range segments {
		rows[i] = models.Segment{
			Episode:   models.EpisodeRecordID(entry.ID),
			Ordinal:   i,
			Speaker:   s.Speaker,
			Text:      s.Text,
			Embedding: vectors[i],
		}
	}
	return rows, nil
}

// fail records the terminal failure. The status write runs detached from
// the run context so a cancellation cannot leave the episode stuck at
// processing.
func (p *Processor) fail(ctx context.Context, store EpisodeStore, episode int, cause error, log *slog.Logger) Outcome {
	msg := cause.Error()
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := store.SetEpisodeStatus(markCtx, episode, models.StatusFailed, &msg); err != nil {
		log.Error("recording episode failure failed", "error", err, "cause", cause)
	}
	log.Warn("episode failed", "error", cause)
	return Outcome{Episode: episode, Status: OutcomeFailed, Err: cause}
}
