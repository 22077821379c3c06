package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"podbase/internal/models"
	"podbase/internal/retrieval"
)

var (
	askTopK          int
	askMinSimilarity float64
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and get a cited answer",
	Long: `Ask a question about the podcast and get an LLM-synthesized answer.

The question is embedded, the most similar transcript segments are
retrieved from the store, and the configured model answers from that
context only. The segments used are listed as sources.

Examples:
  podbase ask "What did Mark say about type classes?"
  podbase ask "Why did they stop using Vim?" -n 10
  podbase ask "What editor does Paul use?" --min-similarity 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "limit", "n", 0, "max context segments (default PODBASE_TOP_K)")
	askCmd.Flags().Float64Var(&askMinSimilarity, "min-similarity", 0, "similarity threshold (default PODBASE_MIN_SIMILARITY)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := context.Background()

	applyRetrievalFlags(askTopK, askMinSimilarity)

	searcher, err := getSearcher()
	if err != nil {
		return err
	}
	assembler, err := getAssembler(ctx)
	if err != nil {
		return err
	}

	answer, err := answerQuestion(ctx, searcher, assembler, question)
	if err != nil {
		return err
	}

	printAnswer(answer)
	return nil
}

// applyRetrievalFlags overrides the configured retrieval bounds with
// explicit flag values.
func applyRetrievalFlags(topK int, minSimilarity float64) {
	if topK > 0 {
		cfg.TopK = topK
	}
	if minSimilarity > 0 {
		cfg.MinSimilarity = minSimilarity
	}
}

// answerQuestion runs retrieval and answer assembly for one question.
func answerQuestion(ctx context.Context, searcher *retrieval.Searcher, assembler *retrieval.Assembler, question string) (*models.Answer, error) {
	candidates, err := searcher.Search(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return assembler.Answer(ctx, question, candidates)
}

// printAnswer writes the answer text and its sources.
func printAnswer(answer *models.Answer) {
	fmt.Println(answer.Text)

	if len(answer.Used) == 0 {
		return
	}
	fmt.Printf("\nSources:\n")
	ids := answer.CitationIDs()
	for i, c := range answer.Used {
		fmt.Printf("  %-14s episode %d, %s (similarity %.2f)\n", ids[i], c.Episode, c.Speaker, c.Similarity)
	}
}
