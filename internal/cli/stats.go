package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Long: `Show aggregate statistics for the stored knowledge base.

Counts episodes by status and segments by speaker, and buckets segment
lengths by word count.

Examples:
  podbase stats`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	stats, err := storeClient.CollectStats(ctx)
	if err != nil {
		return fmt.Errorf("collect stats: %w", err)
	}

	fmt.Printf("Knowledge Base Statistics\n")
	fmt.Printf("═══════════════════════════════════════\n\n")

	fmt.Printf("Episodes: %d\n", stats.Episodes)
	for _, sc := range stats.ByStatus {
		fmt.Printf("  %-12s %6d\n", sc.Status, sc.Count)
	}

	fmt.Printf("\nSpeakers: %d\n", stats.Speakers)
	fmt.Printf("Segments: %d\n", stats.Segments)

	if len(stats.SpeakerCounts) > 0 {
		fmt.Printf("\nSegments by Speaker:\n")
		for _, sp := range stats.SpeakerCounts {
			fmt.Printf("  %-20s %6d\n", sp.Speaker, sp.Count)
		}
	}

	if stats.Segments > 0 {
		fmt.Printf("\nSegment Length (words):\n")
		fmt.Printf("  %-20s %6d\n", "short (< 100)", stats.Short)
		fmt.Printf("  %-20s %6d\n", "medium (< 500)", stats.Medium)
		fmt.Printf("  %-20s %6d\n", "long", stats.Long)
	}

	return nil
}
