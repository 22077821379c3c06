package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"podbase/internal/models"
)

// Embedder turns query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SegmentSearcher is the store-side KNN search.
type SegmentSearcher interface {
	SearchSegments(ctx context.Context, embedding []float32, k int) ([]models.RetrievalCandidate, error)
}

// Searcher retrieves the most relevant stored segments for a question.
// The store does the KNN shortlist; scores are re-checked here against
// the same threshold and ordering rules as the in-memory path.
type Searcher struct {
	embedder Embedder
	store    SegmentSearcher
	topK     int
	minScore float64
	log      *slog.Logger
}

// NewSearcher builds a Searcher. topK and minScore bound every query;
// both filters apply independently.
func NewSearcher(embedder Embedder, store SegmentSearcher, topK int, minScore float64, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
		log:      log,
	}
}

// Search embeds the query and returns ranked candidates at or above the
// similarity threshold, at most topK, best first. No candidates above
// threshold is an empty result, not an error.
func (s *Searcher) Search(ctx context.Context, query string) ([]models.RetrievalCandidate, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.SearchSegments(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}

	ranked := finalize(candidates, s.minScore, s.topK)
	s.log.Debug("retrieval complete",
		"query_len", len(query),
		"shortlist", len(candidates),
		"returned", len(ranked),
		"min_similarity", s.minScore,
	)
	return ranked, nil
}
