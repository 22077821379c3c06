package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"podbase/internal/metrics"
	"podbase/internal/retrieval"
)

// chatTurn is one answered question in the session transcript.
type chatTurn struct {
	question string
	answer   string
	sources  []string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question-answering session",
	Long: `Start an interactive session against the knowledge base.

Every question is answered from retrieved transcript segments. The
session keeps a transcript of previous turns: type "history" to replay
it and "stats" for timing statistics. Type "exit" or "quit" (or press
Ctrl+D) to leave.

Examples:
  podbase chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	searcher, err := getSearcher()
	if err != nil {
		return err
	}
	assembler, err := getAssembler(ctx)
	if err != nil {
		return err
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	if width > 100 {
		width = 100
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(defaultTheme.Status)
	answerStyle := lipgloss.NewStyle().Width(width)
	sourceStyle := defaultTheme.hintStyle()
	errStyle := defaultTheme.errorStyle()

	fmt.Println(titleStyle.Render(cfg.PodcastTitle + " chat"))
	fmt.Println(defaultTheme.hintStyle().Render(`Ask about the podcast. Type "exit" or "quit" to leave.`))
	fmt.Println()

	stats := metrics.NewCollector()
	var session []chatTurn

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			printSessionStats(stats)
			return nil
		case "history":
			printHistory(session, sourceStyle)
			continue
		case "stats":
			printSessionStats(stats)
			continue
		}

		turn, err := answerTurn(ctx, searcher, assembler, stats, line)
		if err != nil {
			fmt.Println(errStyle.Render(err.Error()))
			continue
		}

		session = append(session, turn)
		fmt.Println(answerStyle.Render(turn.answer))
		for _, src := range turn.sources {
			fmt.Println(sourceStyle.Render("  " + src))
		}
		fmt.Println()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	printSessionStats(stats)
	return nil
}

// answerTurn asks one question and records stage timings.
func answerTurn(ctx context.Context, searcher *retrieval.Searcher, assembler *retrieval.Assembler, stats *metrics.Collector, question string) (chatTurn, error) {
	start := time.Now()
	candidates, err := searcher.Search(ctx, question)
	stats.Record(metrics.OpSearch, time.Since(start), err)
	if err != nil {
		return chatTurn{}, fmt.Errorf("search: %w", err)
	}

	start = time.Now()
	answer, err := assembler.Answer(ctx, question, candidates)
	stats.Record(metrics.OpGenerate, time.Since(start), err)
	if err != nil {
		return chatTurn{}, err
	}

	turn := chatTurn{question: question, answer: answer.Text}
	ids := answer.CitationIDs()
	for i, c := range answer.Used {
		turn.sources = append(turn.sources, fmt.Sprintf("%s  episode %d, %s", ids[i], c.Episode, c.Speaker))
	}
	return turn, nil
}

// printHistory replays the session transcript.
func printHistory(session []chatTurn, hint lipgloss.Style) {
	if len(session) == 0 {
		fmt.Println("No questions answered yet.")
		return
	}
	for i, turn := range session {
		fmt.Printf("%d. %s\n", i+1, turn.question)
		fmt.Println(hint.Render("   " + truncate(turn.answer, 160)))
	}
	fmt.Println()
}

// printSessionStats prints timing statistics recorded this session.
func printSessionStats(stats *metrics.Collector) {
	snap := stats.Snapshot()
	if len(snap.Operations) == 0 {
		return
	}
	fmt.Printf("\nSession statistics\n")
	fmt.Printf("══════════════════\n")
	for _, op := range snap.Operations {
		fmt.Printf("%-10s calls %d, errors %d, avg %.0fms, min %dms, max %dms\n",
			op.Name, op.Count, op.Errors, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}
