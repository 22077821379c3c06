package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// EmbeddingDimension is the fixed dimensionality of segment embeddings.
// The HNSW index and every embed call enforce it; see retrieval and llm.
const EmbeddingDimension = 1536

// Segment is one contiguous speaker turn within an episode, immutable
// once exported. Ordinal is the position within the episode and defines
// the total order used to reconstruct dialogue context.
type Segment struct {
	ID        surrealmodels.RecordID `json:"id"`
	Episode   surrealmodels.RecordID `json:"episode"`
	Ordinal   int                    `json:"ordinal"`
	Speaker   string                 `json:"speaker"`
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding,omitempty"`
	Created   time.Time              `json:"created,omitempty"`
}

// FormattedSegment is a formatter output segment before embedding and
// persistence. It is also the snapshot unit: the export/import round-trip
// preserves Speaker and Text exactly.
type FormattedSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}
