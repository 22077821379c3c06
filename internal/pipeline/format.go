package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podbase/internal/catalog"
	"podbase/internal/metrics"
	"podbase/internal/snapshot"
	"podbase/internal/transcribe"
	"podbase/internal/transcript"
)

// FormatExisting formats every saved raw transcript in rawDir and
// exports the snapshots, without touching providers or the store. Files
// are matched to catalog episodes by audio stem to resolve speaker
// names; unmatched files format with default labels. Unreadable files
// are skipped with a warning. Returns the exported snapshot paths.
func FormatExisting(rawDir string, exporter *snapshot.Exporter, cat *catalog.Catalog, collector *metrics.Collector, log *slog.Logger) ([]string, error) {
	if log == nil {
		log = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	files, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("read raw dir: %w", err)
	}

	stems := make(map[string]catalog.EpisodeEntry, len(cat.Episodes))
	for _, ep := range cat.Episodes {
		stems[ep.Stem()] = ep
	}

	var exported []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		stem := strings.TrimSuffix(f.Name(), ".json")

		raw, err := transcribe.LoadRaw(filepath.Join(rawDir, f.Name()))
		if err != nil {
			log.Warn("skipping unreadable raw transcript", "file", f.Name(), "error", err)
			continue
		}

		var names map[int]string
		if ep, ok := stems[stem]; ok {
			names = ep.SpeakerNames()
		} else {
			log.Warn("no catalog entry for raw transcript, using default speaker labels", "file", f.Name())
		}

		formatter := transcript.NewFormatter(names)
		start := time.Now()
		segments, err := formatter.FormatTranscript(raw)
		collector.Record(metrics.OpFormat, time.Since(start), err)
		if err != nil {
			log.Warn("formatting failed", "file", f.Name(), "error", err)
			continue
		}

		start = time.Now()
		path, err := exporter.Export(stem, segments)
		collector.Record(metrics.OpExport, time.Since(start), err)
		if err != nil {
			return exported, fmt.Errorf("export %s: %w", stem, err)
		}

		exported = append(exported, path)
		log.Info("snapshot exported", "file", f.Name(), "segments", len(segments), "path", path)
	}
	return exported, nil
}
