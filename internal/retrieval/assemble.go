package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"podbase/internal/models"
	"podbase/internal/retry"
)

// NoContextAnswer is returned without invoking generation when retrieval
// produced no candidates above the threshold.
const NoContextAnswer = "No relevant transcript segments were found for this question."

// GenerationUnavailableError reports that answer generation failed after
// retries. The retrieved candidates were fine; only the generation call
// could not complete. Callers must not present a fabricated answer.
type GenerationUnavailableError struct {
	Err error
}

func (e *GenerationUnavailableError) Error() string {
	return fmt.Sprintf("generation unavailable: %v", e.Err)
}

func (e *GenerationUnavailableError) Unwrap() error {
	return e.Err
}

// Generator produces text from a system and user prompt.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Assembler builds a bounded prompt context from ranked candidates and
// generates an answer grounded in it.
type Assembler struct {
	gen          Generator
	podcastTitle string
	maxChars     int
	task         *retry.Task
}

// NewAssembler builds an Assembler. maxContextChars bounds the assembled
// segment context; candidates that do not fit whole are dropped.
func NewAssembler(gen Generator, podcastTitle string, maxContextChars int, log *slog.Logger) *Assembler {
	return &Assembler{
		gen:          gen,
		podcastTitle: podcastTitle,
		maxChars:     maxContextChars,
		task:         retry.New("generate answer", log),
	}
}

// Assemble renders candidates into prompt context in rank order, keeping
// each segment whole. A candidate whose rendering would push the context
// past the budget is skipped entirely, never truncated; later smaller
// candidates may still fit. Returns the rendered context and the
// candidates actually included, in rank order.
func (a *Assembler) Assemble(candidates []models.RetrievalCandidate) (string, []models.RetrievalCandidate) {
	var b strings.Builder
	used := make([]models.RetrievalCandidate, 0, len(candidates))

	for _, c := range candidates {
		block := fmt.Sprintf("Speaker: %s\nText: %s\nSimilarity: %.2f\n--------------------------------\n",
			c.Speaker, c.Text, c.Similarity)
		if a.maxChars > 0 && b.Len()+len(block) > a.maxChars {
			continue
		}
		b.WriteString(block)
		used = append(used, c)
	}
	return b.String(), used
}

// Answer generates a grounded answer for the question from the given
// ranked candidates. With no candidates it reports the missing context
// explicitly instead of calling the generator. Generation runs under
// retry; exhaustion surfaces GenerationUnavailableError.
func (a *Assembler) Answer(ctx context.Context, question string, candidates []models.RetrievalCandidate) (*models.Answer, error) {
	if len(candidates) == 0 {
		return &models.Answer{Text: NoContextAnswer}, nil
	}

	contextBlock, used := a.Assemble(candidates)
	systemPrompt, userPrompt := a.buildPrompt(contextBlock, question)

	var text string
	err := a.task.Do(ctx, func(ctx context.Context) error {
		var genErr error
		text, genErr = a.gen.GenerateWithSystem(ctx, systemPrompt, userPrompt)
		return genErr
	})
	if err != nil {
		return nil, &GenerationUnavailableError{Err: err}
	}

	return &models.Answer{Text: text, Used: used}, nil
}

func (a *Assembler) buildPrompt(contextBlock, question string) (systemPrompt, userPrompt string) {
	systemPrompt = fmt.Sprintf(`You are an expert analyst of **%s**. Your task is to provide insightful answers based on the provided transcript segments.

Instructions:
- Use the relevant transcript segments below to answer the user's question
- If the segments aren't relevant to the question, clearly state this
- Maintain the conversational tone of the podcast in your analysis`, a.podcastTitle)

	userPrompt = fmt.Sprintf(`## Available Transcript Segments
%s
## User Question
**%s**

## Your Response
Please provide a comprehensive answer based on the transcript segments and your knowledge of the podcast:`, contextBlock, question)

	return systemPrompt, userPrompt
}
