// Package models defines data structures for the podbase knowledge base.
package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// EpisodeRecordID builds the record ID for an episode number.
// Episodes are addressed as episode:<number> so upserts are natural.
func EpisodeRecordID(number int) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("episode", number)
}

// RecordIDInt safely extracts an integer ID from a SurrealDB RecordID.
// CBOR decoding may yield any of the integer widths depending on value.
func RecordIDInt(id surrealmodels.RecordID) (int, error) {
	switch v := id.ID.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("unexpected ID type: %T (expected integer)", id.ID)
	}
}

// MustRecordIDInt extracts the integer ID, panicking if not an integer.
// Use only after DB operations that are known to return integer IDs.
func MustRecordIDInt(id surrealmodels.RecordID) int {
	n, err := RecordIDInt(id)
	if err != nil {
		panic(err)
	}
	return n
}
