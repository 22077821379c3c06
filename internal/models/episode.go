// Package models defines data structures for the podbase knowledge base.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// EpisodeStatus is the durable processing state of an episode.
type EpisodeStatus string

const (
	StatusUnprocessed EpisodeStatus = "unprocessed"
	StatusProcessing  EpisodeStatus = "processing"
	StatusProcessed   EpisodeStatus = "processed"
	StatusFailed      EpisodeStatus = "failed"
)

// Episode represents a stored podcast episode and its processing state.
// The status transition is the only durable side effect visible across
// pipeline runs: unprocessed -> processing -> processed | failed.
type Episode struct {
	ID          surrealmodels.RecordID `json:"id"`
	Number      int                    `json:"number"`
	Title       string                 `json:"title,omitempty"`
	Audio       string                 `json:"audio"`
	Status      EpisodeStatus          `json:"status"`
	LastError   *string                `json:"last_error,omitempty"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	Created     time.Time              `json:"created,omitempty"`
}

// Retryable reports whether the episode is eligible for (re)submission.
// Failed episodes keep their recorded error but stay retryable; only
// processed episodes are skipped.
func (e *Episode) Retryable() bool {
	return e.Status != StatusProcessed
}
