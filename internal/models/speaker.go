package models

import (
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SpeakerRole tags a speaker's part in an episode.
type SpeakerRole string

const (
	RoleHost  SpeakerRole = "host"
	RoleGuest SpeakerRole = "guest"
)

// Speaker binds a diarization slot to a person for one episode.
// The binding is established once per episode and never changes:
// one name per slot, one slot per name (unique indexes in the schema).
// The same name may recur across episodes under a different slot.
type Speaker struct {
	ID      surrealmodels.RecordID `json:"id"`
	Episode surrealmodels.RecordID `json:"episode"`
	Slot    int                    `json:"slot"`
	Name    string                 `json:"name"`
	Role    SpeakerRole            `json:"role"`
}
