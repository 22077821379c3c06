// Package snapshot persists formatted transcript segments as JSON
// checkpoints on disk. A snapshot is the durable output of the format
// stage: once written, later pipeline runs can rebuild embeddings from
// it without re-transcribing the audio.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"podbase/internal/models"
)

// Exporter writes and reads segment snapshots under a single directory.
type Exporter struct {
	dir string
}

// NewExporter returns an Exporter rooted at dir, creating it if needed.
func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot: output directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create output directory: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

// PathFor returns the snapshot path for a given key, typically the
// audio file stem (e.g. "episode_5" -> <dir>/episode_5.json).
func (e *Exporter) PathFor(key string) string {
	return filepath.Join(e.dir, key+".json")
}

// Export writes segments to <dir>/<key>.json and returns the path.
// The write goes through a temp file and rename so a crash mid-write
// never leaves a truncated snapshot behind. Existing snapshots are
// overwritten, which makes re-running the format stage idempotent.
func (e *Exporter) Export(key string, segments []models.FormattedSegment) (string, error) {
	if key == "" {
		return "", fmt.Errorf("snapshot: empty key")
	}
	if segments == nil {
		segments = []models.FormattedSegment{}
	}

	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal segments: %w", err)
	}
	data = append(data, '\n')

	dest := e.PathFor(key)
	tmp, err := os.CreateTemp(e.dir, key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return dest, nil
}

// Import reads the snapshot for key back into memory. A missing file
// satisfies errors.Is(err, fs.ErrNotExist) so callers can distinguish
// "never formatted" from a corrupt snapshot.
func (e *Exporter) Import(key string) ([]models.FormattedSegment, error) {
	data, err := os.ReadFile(e.PathFor(key))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", key, err)
	}
	var segments []models.FormattedSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", key, err)
	}
	return segments, nil
}

// Exists reports whether a snapshot for key is present on disk.
func (e *Exporter) Exists(key string) bool {
	_, err := os.Stat(e.PathFor(key))
	return err == nil
}
