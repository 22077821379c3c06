package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"podbase/internal/catalog"
	"podbase/internal/pipeline"
	"podbase/internal/snapshot"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Format saved raw transcripts into snapshots",
	Long: `Re-run formatting over previously saved raw transcription responses.

Every raw response under the data directory is formatted into
speaker-attributed segments and written as the snapshot that
'process --from-snapshot' reloads. No transcription, embedding or
storage happens, so this is the place to test formatting changes.

Examples:
  podbase format`,
	Args: cobra.NoArgs,
	RunE: runFormat,
}

func runFormat(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	exporter, err := snapshot.NewExporter(cfg.ProcessedDir())
	if err != nil {
		return err
	}

	exported, err := pipeline.FormatExisting(cfg.RawDir(), exporter, cat, nil, slog.Default())
	if err != nil {
		return err
	}

	if len(exported) == 0 {
		fmt.Println("No raw transcripts found.")
		return nil
	}

	fmt.Printf("Exported %d snapshots:\n", len(exported))
	for _, path := range exported {
		fmt.Printf("  %s\n", path)
	}
	return nil
}
