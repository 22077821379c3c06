package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RetrievalCandidate is a segment scored against a query embedding.
// Transient: built per query, never persisted.
type RetrievalCandidate struct {
	ID         surrealmodels.RecordID `json:"id"`
	Episode    int                    `json:"episode"`
	Ordinal    int                    `json:"ordinal"`
	Speaker    string                 `json:"speaker"`
	Text       string                 `json:"text"`
	Similarity float64                `json:"similarity"`
}

// SegmentVector is a stored segment with its embedding, as loaded for
// in-memory ranking. Episode carries the episode number rather than the
// record link so rank ordering can break ties without another lookup.
type SegmentVector struct {
	ID        surrealmodels.RecordID `json:"id"`
	Episode   int                    `json:"episode"`
	Ordinal   int                    `json:"ordinal"`
	Speaker   string                 `json:"speaker"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding"`
}

// Answer is a generated response grounded in retrieved segments.
// Used holds the candidates whose text was included in the prompt
// context, in rank order; they are the answer's citations.
type Answer struct {
	Text string
	Used []RetrievalCandidate
}

// CitationIDs returns the segment identifiers backing the answer.
func (a *Answer) CitationIDs() []string {
	ids := make([]string, 0, len(a.Used))
	for _, c := range a.Used {
		ids = append(ids, fmt.Sprintf("%s:%v", c.ID.Table, c.ID.ID))
	}
	return ids
}
