package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"podbase/internal/catalog"
	"podbase/internal/llm"
	"podbase/internal/metrics"
)

// EventType classifies orchestrator progress events.
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventStarted   EventType = "started"
	EventSkipped   EventType = "skipped"
	EventFinished  EventType = "finished"
	EventFailed    EventType = "failed"
)

// Event is a progress notification for one episode.
type Event struct {
	Type    EventType
	Episode int
	Err     error
}

// Failure pairs an episode with its terminal error.
type Failure struct {
	Episode int
	Err     error
}

// RunSummary aggregates a full pipeline run for operator reporting.
// Outcomes holds the per-episode results in completion order, which is
// arbitrary across episodes; the sorted lists are derived from it.
type RunSummary struct {
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Total     int
	Skipped   []int
	Succeeded []int
	Failed    []Failure
	Aborted   []int
	Fatal     error
	Outcomes  []Outcome
	Stages    metrics.Snapshot
}

// StorePool hands out store clients to workers. *store.Pool is adapted
// to it via PoolSource.
type StorePool interface {
	Acquire(ctx context.Context) (EpisodeStore, error)
	Release(s EpisodeStore)
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Processor *Processor
	Pool      StorePool

	// Workers bounds concurrent episode processing. Values below 1
	// fall back to 4.
	Workers int

	// Events receives progress notifications when non-nil. Sends never
	// block: a consumer that falls behind loses events, not throughput.
	// Run closes the channel when the run completes.
	Events chan<- Event

	Log *slog.Logger
}

// Orchestrator fans episodes out to a bounded worker pool. One episode's
// failure never cancels or blocks its siblings. A fatal provider error
// (auth, billing) stops dispatching new work while in-flight episodes
// finish; context cancellation does the same.
type Orchestrator struct {
	processor *Processor
	pool      StorePool
	workers   int
	events    chan<- Event
	log       *slog.Logger
}

// NewOrchestrator creates an orchestrator from its configuration.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Orchestrator{
		processor: cfg.Processor,
		pool:      cfg.Pool,
		workers:   cfg.Workers,
		events:    cfg.Events,
		log:       cfg.Log,
	}
}

// Run processes the given episodes and always returns a complete summary
// once work has started; an error is returned only when the run could
// not start at all. Episodes already processed in the store are skipped
// before submission, so re-runs are cheap and idempotent.
func (o *Orchestrator) Run(ctx context.Context, entries []catalog.EpisodeEntry) (*RunSummary, error) {
	if o.events != nil {
		defer close(o.events)
	}

	summary := &RunSummary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Total:   len(entries),
	}
	log := o.log.With("run_id", summary.RunID)

	pending, skipped, err := o.partition(ctx, entries)
	if err != nil {
		return nil, err
	}
	summary.Skipped = skipped
	for _, n := range skipped {
		o.emit(Event{Type: EventSkipped, Episode: n})
	}

	log.Info("pipeline run starting",
		"episodes", len(pending), "skipped", len(skipped), "workers", o.workers)

	queue := make(chan catalog.EpisodeEntry, len(pending))
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		aborted atomic.Bool
		fatal   error
	)

	record := func(out Outcome) {
		mu.Lock()
		summary.Outcomes = append(summary.Outcomes, out)
		mu.Unlock()
	}

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for entry := range queue {
				if ctx.Err() != nil || aborted.Load() {
					record(Outcome{Episode: entry.ID, Status: OutcomeAborted})
					continue
				}

				o.emit(Event{Type: EventStarted, Episode: entry.ID})
				log.Info("processing episode", "worker", workerID, "episode", entry.ID)

				out := o.runOne(ctx, entry)
				if out.Err != nil && errors.Is(out.Err, llm.ErrFatalAPI) {
					mu.Lock()
					if fatal == nil {
						fatal = out.Err
					}
					mu.Unlock()
					aborted.Store(true)
					log.Error("fatal provider error, stopping new work",
						"episode", entry.ID, "error", out.Err)
				}
				record(out)

				switch out.Status {
				case OutcomeSucceeded:
					o.emit(Event{Type: EventFinished, Episode: entry.ID})
				case OutcomeFailed:
					o.emit(Event{Type: EventFailed, Episode: entry.ID, Err: out.Err})
				}
			}
		}(i)
	}

	for _, entry := range pending {
		o.emit(Event{Type: EventSubmitted, Episode: entry.ID})
		queue <- entry
	}
	close(queue)
	wg.Wait()

	for _, out := range summary.Outcomes {
		switch out.Status {
		case OutcomeSucceeded:
			summary.Succeeded = append(summary.Succeeded, out.Episode)
		case OutcomeFailed:
			summary.Failed = append(summary.Failed, Failure{Episode: out.Episode, Err: out.Err})
		case OutcomeAborted:
			summary.Aborted = append(summary.Aborted, out.Episode)
		}
	}
	sort.Ints(summary.Succeeded)
	sort.Ints(summary.Aborted)
	sort.Slice(summary.Failed, func(i, j int) bool {
		return summary.Failed[i].Episode < summary.Failed[j].Episode
	})
	summary.Fatal = fatal
	summary.Duration = time.Since(summary.Started)
	summary.Stages = o.processor.metrics.Snapshot()

	log.Info("pipeline run complete",
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
		"skipped", len(summary.Skipped),
		"aborted", len(summary.Aborted),
		"duration", summary.Duration)
	return summary, nil
}

// runOne acquires a store client for the episode and releases it on
// every exit path.
func (o *Orchestrator) runOne(ctx context.Context, entry catalog.EpisodeEntry) Outcome {
	client, err := o.pool.Acquire(ctx)
	if err != nil {
		return Outcome{Episode: entry.ID, Status: OutcomeFailed, Err: fmt.Errorf("acquire store client: %w", err)}
	}
	defer o.pool.Release(client)

	return o.processor.Process(ctx, client, entry)
}

// partition splits entries into pending work and already-processed skips.
func (o *Orchestrator) partition(ctx context.Context, entries []catalog.EpisodeEntry) (pending []catalog.EpisodeEntry, skipped []int, err error) {
	client, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire store client: %w", err)
	}
	defer o.pool.Release(client)

	for _, entry := range entries {
		ep, err := client.GetEpisode(ctx, entry.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("episode %d status: %w", entry.ID, err)
		}
		if ep != nil && !ep.Retryable() {
			skipped = append(skipped, entry.ID)
			continue
		}
		pending = append(pending, entry)
	}
	return pending, skipped, nil
}

func (o *Orchestrator) emit(ev Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- ev:
	default:
	}
}
