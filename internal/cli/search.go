package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchLimit         int
	searchMinSimilarity float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find transcript segments without LLM synthesis",
	Long: `Search stored transcript segments by semantic similarity.

Returns the best-matching segments with their scores and speakers.
Use 'ask' for an LLM-synthesized answer.

Examples:
  podbase search "monad tutorials"
  podbase search "keyboard layouts" -n 10
  podbase search "static typing" --min-similarity 0.6`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "max results (default PODBASE_TOP_K)")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0, "similarity threshold (default PODBASE_MIN_SIMILARITY)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	ctx := context.Background()

	applyRetrievalFlags(searchLimit, searchMinSimilarity)

	searcher, err := getSearcher()
	if err != nil {
		return err
	}

	candidates, err := searcher.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Println("No matching segments found.")
		return nil
	}

	fmt.Printf("Found %d segments:\n\n", len(candidates))
	for i, c := range candidates {
		fmt.Printf("%d. [%.2f] %s in episode %d\n", i+1, c.Similarity, c.Speaker, c.Episode)
		text := c.Text
		if !verbose {
			text = truncate(text, 200)
		}
		fmt.Printf("   %s\n\n", text)
	}

	return nil
}
