package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"podbase/internal/catalog"
	"podbase/internal/llm"
	"podbase/internal/metrics"
	"podbase/internal/pipeline"
	"podbase/internal/snapshot"
	"podbase/internal/store"
	"podbase/internal/transcribe"
)

var (
	processWorkers      int
	processEpisodes     []int
	processFromSnapshot bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Transcribe, embed and store catalog episodes",
	Long: `Run the full ingestion pipeline over the episode catalog.

Each pending episode is transcribed, formatted into speaker-attributed
segments, embedded and stored. Episodes already marked processed are
skipped, so re-running after a partial failure only picks up the
remainder. A run lock under the data directory keeps two runs from
interleaving.

Examples:
  podbase process
  podbase process --episode 3 --episode 7
  podbase process --from-snapshot
  podbase process --workers 8`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().IntVarP(&processWorkers, "workers", "w", 0, "concurrent episode workers (default PODBASE_MAX_WORKERS)")
	processCmd.Flags().IntSliceVarP(&processEpisodes, "episode", "e", nil, "episode ids to process (default: whole catalog)")
	processCmd.Flags().BoolVar(&processFromSnapshot, "from-snapshot", false, "reload formatted snapshots instead of transcribing")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	entries := cat.Episodes
	if len(processEpisodes) > 0 {
		entries, err = cat.Select(processEpisodes)
		if err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		fmt.Println("Catalog has no episodes.")
		return nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.DataDir, "podbase.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return errors.New("another podbase process run is already running")
	}
	defer func() { _ = lock.Unlock() }()

	workers := processWorkers
	if workers < 1 {
		workers = cfg.MaxWorkers
	}

	exporter, err := snapshot.NewExporter(cfg.ProcessedDir())
	if err != nil {
		return err
	}

	// The transcription client is only needed when some selected episode
	// lacks a saved transcript, so catalog-only runs work without a key.
	var transcriber pipeline.Transcriber
	if !processFromSnapshot && needsTranscription(entries) {
		tc, err := transcribe.NewClient(cfg.DeepgramURL, cfg.DeepgramAPIKey, slog.Default(),
			transcribe.WithRawDir(cfg.RawDir()))
		if err != nil {
			return fmt.Errorf("init transcription client: %w", err)
		}
		transcriber = tc
	}

	em, err := llm.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	pool, err := store.NewPool(ctx, storeConfig(), workers, slog.Default())
	if err != nil {
		return fmt.Errorf("open store pool: %w", err)
	}
	defer func() {
		if err := pool.Close(context.Background()); err != nil {
			slog.Warn("closing store pool", "error", err)
		}
	}()

	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Transcriber:  transcriber,
		Embedder:     em,
		Exporter:     exporter,
		Log:          slog.Default(),
		AudioDir:     cfg.AudioDir(),
		FromSnapshot: processFromSnapshot,
	})

	interactive := interactiveTerminal(os.Stdout)
	var events chan pipeline.Event
	if interactive {
		events = make(chan pipeline.Event, 256)
	}
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Processor: processor,
		Pool:      pipeline.PoolSource(pool),
		Workers:   workers,
		Events:    events,
		Log:       slog.Default(),
	})

	var summary *pipeline.RunSummary
	if interactive {
		summary, err = runWithProgress(ctx, orch, entries, events)
	} else {
		summary, err = orch.Run(ctx, entries)
	}
	if err != nil {
		return err
	}

	printRunSummary(summary)

	if summary.Fatal != nil {
		return fmt.Errorf("run aborted: %w", summary.Fatal)
	}
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d of %d episodes failed", len(summary.Failed), summary.Total)
	}
	return nil
}

// needsTranscription reports whether any entry will call the
// transcription provider rather than load a saved transcript.
func needsTranscription(entries []catalog.EpisodeEntry) bool {
	for _, e := range entries {
		if e.Transcript == "" {
			return true
		}
	}
	return false
}

// interactiveTerminal reports whether f is an interactive terminal.
func interactiveTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printRunSummary renders per-episode results and stage timings.
func printRunSummary(s *pipeline.RunSummary) {
	fmt.Printf("\nRun %s: %d processed, %d failed, %d skipped",
		s.RunID, len(s.Succeeded), len(s.Failed), len(s.Skipped))
	if len(s.Aborted) > 0 {
		fmt.Printf(", %d aborted", len(s.Aborted))
	}
	fmt.Printf(" in %s\n", s.Duration.Round(time.Millisecond))

	if rows := summaryRows(s); len(rows) > 0 {
		fmt.Println(renderTable(
			[]string{"EPISODE", "RESULT", "DETAIL"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft},
		))
	}

	if len(s.Stages.Operations) > 0 {
		fmt.Println(renderTable(
			[]string{"STAGE", "CALLS", "ERRORS", "AVG MS", "MIN MS", "MAX MS"},
			stageRows(s.Stages),
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}
}

func summaryRows(s *pipeline.RunSummary) [][]string {
	type row struct {
		episode int
		result  string
		detail  string
	}
	all := make([]row, 0, s.Total)
	for _, n := range s.Skipped {
		all = append(all, row{n, "skipped", "already processed"})
	}
	for _, n := range s.Succeeded {
		all = append(all, row{n, "processed", ""})
	}
	for _, f := range s.Failed {
		detail := ""
		if f.Err != nil {
			detail = f.Err.Error()
		}
		all = append(all, row{f.Episode, "failed", truncate(detail, 60)})
	}
	for _, n := range s.Aborted {
		all = append(all, row{n, "aborted", "not started"})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].episode < all[j].episode })

	rows := make([][]string, 0, len(all))
	for _, r := range all {
		rows = append(rows, []string{strconv.Itoa(r.episode), r.result, r.detail})
	}
	return rows
}

func stageRows(snap metrics.Snapshot) [][]string {
	rows := make([][]string, 0, len(snap.Operations))
	for _, op := range snap.Operations {
		rows = append(rows, []string{
			op.Name,
			strconv.FormatInt(op.Count, 10),
			strconv.FormatInt(op.Errors, 10),
			fmt.Sprintf("%.1f", op.AvgTimeMs),
			strconv.FormatInt(op.MinTimeMs, 10),
			strconv.FormatInt(op.MaxTimeMs, 10),
		})
	}
	return rows
}
