// Package retrieval ranks stored segments against query embeddings and
// assembles grounded answers from the best matches.
package retrieval

import (
	"fmt"
	"math"
	"sort"

	"podbase/internal/models"
)

// DimensionMismatchError reports an embedding whose dimensionality does
// not match the index. A mismatch always fails loudly; comparing vectors
// of different lengths would produce a silently wrong score.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}

// Cosine computes cosine similarity between two equal-length vectors.
// Accumulation runs in float64 so long vectors of small components do
// not lose precision. A zero-norm vector has similarity 0 to everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Got: len(b), Want: len(a)}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Rank scores every stored vector against the query and returns those at
// or above threshold, best first, at most topK. Ties in similarity are
// broken by ascending (episode, ordinal) so results are deterministic.
func Rank(vectors []models.SegmentVector, query []float32, threshold float64, topK int) ([]models.RetrievalCandidate, error) {
	if len(query) != models.EmbeddingDimension {
		return nil, &DimensionMismatchError{Got: len(query), Want: models.EmbeddingDimension}
	}

	candidates := make([]models.RetrievalCandidate, 0, len(vectors))
	for _, v := range vectors {
		similarity, err := Cosine(query, v.Embedding)
		if err != nil {
			return nil, fmt.Errorf("segment %d/%d: %w", v.Episode, v.Ordinal, err)
		}
		candidates = append(candidates, models.RetrievalCandidate{
			ID:         v.ID,
			Episode:    v.Episode,
			Ordinal:    v.Ordinal,
			Speaker:    v.Speaker,
			Text:       v.Text,
			Similarity: similarity,
		})
	}

	return finalize(candidates, threshold, topK), nil
}

// finalize applies the shared ordering and filtering rules: descending
// similarity with (episode, ordinal) tie-break, drop below-threshold
// candidates, cap at topK. Both the in-memory and the store-backed path
// go through it so their semantics cannot drift apart.
func finalize(candidates []models.RetrievalCandidate, threshold float64, topK int) []models.RetrievalCandidate {
	kept := make([]models.RetrievalCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= threshold {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		if kept[i].Episode != kept[j].Episode {
			return kept[i].Episode < kept[j].Episode
		}
		return kept[i].Ordinal < kept[j].Ordinal
	})

	if topK >= 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
