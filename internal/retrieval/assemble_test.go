package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"podbase/internal/models"
	"podbase/internal/retry"
)

type fakeGenerator struct {
	calls      int
	lastSystem string
	lastUser   string
	reply      string
	errs       []error
}

func (f *fakeGenerator) GenerateWithSystem(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

func candidate(n int, speaker, text string, similarity float64) models.RetrievalCandidate {
	return models.RetrievalCandidate{
		ID:         surrealmodels.NewRecordID("segment", n),
		Episode:    1,
		Ordinal:    n,
		Speaker:    speaker,
		Text:       text,
		Similarity: similarity,
	}
}

func TestAnswerGeneratesFromContext(t *testing.T) {
	gen := &fakeGenerator{reply: "Mark argues the opposite."}
	a := NewAssembler(gen, "A Gentleman's Disagreement", 6000, nil)

	candidates := []models.RetrievalCandidate{
		candidate(1, "Mark", "I disagree entirely.", 0.91),
		candidate(2, "Paul", "Let me push back on that.", 0.84),
	}

	answer, err := a.Answer(context.Background(), "Where do they disagree?", candidates)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if answer.Text != gen.reply {
		t.Errorf("answer text = %q, want %q", answer.Text, gen.reply)
	}
	if len(answer.Used) != 2 {
		t.Fatalf("answer cites %d segments, want 2", len(answer.Used))
	}
	wantIDs := []string{"segment:1", "segment:2"}
	for i, id := range answer.CitationIDs() {
		if id != wantIDs[i] {
			t.Errorf("citation %d = %q, want %q", i, id, wantIDs[i])
		}
	}

	if !strings.Contains(gen.lastSystem, "A Gentleman's Disagreement") {
		t.Error("system prompt missing podcast title")
	}
	if !strings.Contains(gen.lastUser, "Where do they disagree?") {
		t.Error("user prompt missing question")
	}
	if !strings.Contains(gen.lastUser, "Speaker: Mark") || !strings.Contains(gen.lastUser, "I disagree entirely.") {
		t.Error("user prompt missing segment context")
	}
}

func TestAssembleSkipsOversizedCandidates(t *testing.T) {
	a := NewAssembler(&fakeGenerator{}, "Test", 200, nil)

	candidates := []models.RetrievalCandidate{
		candidate(1, "Mark", "short one", 0.9),
		candidate(2, "Paul", strings.Repeat("x", 5000), 0.8),
		candidate(3, "Mark", "short two", 0.7),
	}

	contextBlock, used := a.Assemble(candidates)

	if len(used) != 2 {
		t.Fatalf("Assemble() kept %d candidates, want 2", len(used))
	}
	if used[0].Text != "short one" || used[1].Text != "short two" {
		t.Errorf("Assemble() kept wrong candidates: %q, %q", used[0].Text, used[1].Text)
	}
	if strings.Contains(contextBlock, "xxxx") {
		t.Error("oversized candidate leaked into context")
	}
	if len(contextBlock) > 200 {
		t.Errorf("context is %d chars, budget 200", len(contextBlock))
	}
}

func TestAssembleKeepsSegmentsWhole(t *testing.T) {
	// Budget too small for any block: nothing is included, nothing is
	// truncated to fit.
	a := NewAssembler(&fakeGenerator{}, "Test", 10, nil)

	contextBlock, used := a.Assemble([]models.RetrievalCandidate{
		candidate(1, "Mark", "this will not fit", 0.9),
	})

	if contextBlock != "" || len(used) != 0 {
		t.Errorf("Assemble() = %q with %d used, want empty", contextBlock, len(used))
	}
}

func TestAssembleUnlimitedBudget(t *testing.T) {
	a := NewAssembler(&fakeGenerator{}, "Test", 0, nil)

	_, used := a.Assemble([]models.RetrievalCandidate{
		candidate(1, "Mark", strings.Repeat("a", 10000), 0.9),
		candidate(2, "Paul", strings.Repeat("b", 10000), 0.8),
	})

	if len(used) != 2 {
		t.Errorf("Assemble() kept %d candidates with no budget, want 2", len(used))
	}
}

func TestAnswerWithoutCandidates(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be called"}
	a := NewAssembler(gen, "Test", 6000, nil)

	answer, err := a.Answer(context.Background(), "anything?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != NoContextAnswer {
		t.Errorf("answer text = %q, want %q", answer.Text, NoContextAnswer)
	}
	if len(answer.Used) != 0 {
		t.Errorf("answer cites %d segments, want 0", len(answer.Used))
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times for empty candidates, want 0", gen.calls)
	}
}

func TestAnswerGenerationUnavailable(t *testing.T) {
	cause := errors.New("invalid api key")
	gen := &fakeGenerator{errs: []error{retry.Permanent(cause)}}
	a := NewAssembler(gen, "Test", 6000, nil)

	_, err := a.Answer(context.Background(), "q", []models.RetrievalCandidate{
		candidate(1, "Mark", "context", 0.9),
	})
	if err == nil {
		t.Fatal("Answer() succeeded with failing generator")
	}

	var unavailable *GenerationUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %T, want *GenerationUnavailableError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("error chain lost the underlying cause")
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times for permanent error, want 1", gen.calls)
	}
}

func TestAnswerRetriesTransientFailure(t *testing.T) {
	gen := &fakeGenerator{
		reply: "recovered",
		errs:  []error{errors.New("upstream hiccup")},
	}
	a := NewAssembler(gen, "Test", 6000, nil)

	answer, err := a.Answer(context.Background(), "q", []models.RetrievalCandidate{
		candidate(1, "Mark", "context", 0.9),
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "recovered" {
		t.Errorf("answer text = %q, want %q", answer.Text, "recovered")
	}
	if gen.calls != 2 {
		t.Errorf("generator called %d times, want 2", gen.calls)
	}
}
