package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podbase/internal/catalog"
	"podbase/internal/models"
)

var episodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "Show catalog episodes and their processing state",
	Long: `List catalog episodes joined with their stored processing state.

Episodes present in the store but no longer in the catalog are listed
too, so stale rows stay visible.

Examples:
  podbase episodes
  podbase episodes -v`,
	Args: cobra.NoArgs,
	RunE: runEpisodes,
}

func runEpisodes(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	stored, err := storeClient.ListEpisodes(ctx)
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	counts, err := storeClient.SegmentCounts(ctx)
	if err != nil {
		return fmt.Errorf("segment counts: %w", err)
	}

	byNumber := make(map[int]models.Episode, len(stored))
	for _, ep := range stored {
		byNumber[ep.Number] = ep
	}

	headers := []string{"ID", "TITLE", "SPEAKERS", "STATUS", "SEGMENTS"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}
	if verbose {
		headers = append(headers, "LAST ERROR")
		aligns = append(aligns, alignLeft)
	}

	var rows [][]string
	seen := make(map[int]bool, len(cat.Episodes))
	for _, entry := range cat.Episodes {
		seen[entry.ID] = true
		rows = append(rows, episodeRow(entry.ID, entry.Title, speakerList(entry), byNumber, counts))
	}

	// Store rows whose catalog entry was removed.
	var orphans []int
	for n := range byNumber {
		if !seen[n] {
			orphans = append(orphans, n)
		}
	}
	sort.Ints(orphans)
	for _, n := range orphans {
		rows = append(rows, episodeRow(n, byNumber[n].Title, "", byNumber, counts))
	}

	fmt.Println(renderTable(headers, rows, aligns))
	return nil
}

// episodeRow builds one table row. Status defaults to unprocessed for
// episodes the store has never seen.
func episodeRow(n int, title, speakers string, byNumber map[int]models.Episode, counts map[int]int) []string {
	status := string(models.StatusUnprocessed)
	lastErr := ""
	if ep, ok := byNumber[n]; ok {
		status = string(ep.Status)
		if ep.LastError != nil {
			lastErr = *ep.LastError
		}
	}
	row := []string{
		strconv.Itoa(n),
		title,
		speakers,
		status,
		strconv.Itoa(counts[n]),
	}
	if verbose {
		row = append(row, truncate(lastErr, 60))
	}
	return row
}

// speakerList joins the catalog speaker names in slot order.
func speakerList(entry catalog.EpisodeEntry) string {
	slots := make([]int, 0, len(entry.Speakers))
	for slot := range entry.Speakers {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	names := make([]string, 0, len(slots))
	for _, slot := range slots {
		names = append(names, entry.Speakers[slot].Name)
	}
	return strings.Join(names, ", ")
}
