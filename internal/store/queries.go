// Package store provides SurrealDB query functions for episode, speaker
// and segment operations.
package store

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"podbase/internal/models"
	"podbase/internal/transcript"
)

// knnEF is the HNSW search width. Matches the index construction defaults
// well enough for podcast-scale corpora.
const knnEF = 40

// UpsertEpisode creates or updates the episode row for a catalog entry.
// Status, created and processing history are preserved on update so
// re-registering the catalog never resets pipeline state.
func (c *Client) UpsertEpisode(ctx context.Context, number int, title, audio string) (*models.Episode, error) {
	sql := `
		UPSERT type::record("episode", $number) SET
			number = $number,
			title = $title,
			audio = $audio,
			status = IF status THEN status ELSE "unprocessed" END,
			created = IF created THEN created ELSE time::now() END
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Episode](ctx, c.db, sql, map[string]any{
		"number": number,
		"title":  title,
		"audio":  audio,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert episode: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("upsert episode: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// SetEpisodeStatus records a status transition. Moving to processed stamps
// processed_at and clears last_error; moving to failed records the error;
// moving to processing clears last_error from a prior failed run.
func (c *Client) SetEpisodeStatus(ctx context.Context, number int, status models.EpisodeStatus, lastErr *string) error {
	var sql string
	vars := map[string]any{
		"number": number,
		"status": string(status),
	}

	switch status {
	case models.StatusProcessed:
		sql = `
			UPDATE type::record("episode", $number) SET
				status = $status,
				last_error = NONE,
				processed_at = time::now()
		`
	case models.StatusFailed:
		sql = `
			UPDATE type::record("episode", $number) SET
				status = $status,
				last_error = $err
		`
		if lastErr != nil {
			vars["err"] = *lastErr
		} else {
			vars["err"] = "unknown error"
		}
	default:
		sql = `
			UPDATE type::record("episode", $number) SET
				status = $status,
				last_error = NONE
		`
	}

	_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	if err != nil {
		return fmt.Errorf("set episode status: %w", wrapQueryError(err))
	}
	return nil
}

// GetEpisode retrieves an episode by number. Returns nil if not found.
func (c *Client) GetEpisode(ctx context.Context, number int) (*models.Episode, error) {
	results, err := surrealdb.Query[[]models.Episode](ctx, c.db, `
		SELECT * FROM type::record("episode", $number)
	`, map[string]any{"number": number})

	if err != nil {
		return nil, fmt.Errorf("get episode: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// ListEpisodes returns all episodes ordered by number.
func (c *Client) ListEpisodes(ctx context.Context) ([]models.Episode, error) {
	results, err := surrealdb.Query[[]models.Episode](ctx, c.db, `
		SELECT * FROM episode ORDER BY number ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Episode{}, nil
	}
	return (*results)[0].Result, nil
}

// StoreSegments replaces an episode's speakers and segments in a single
// transaction. Prior rows for the episode are deleted first, so re-running
// a pipeline stage never duplicates and a failure mid-write leaves the
// previous state intact.
func (c *Client) StoreSegments(ctx context.Context, number int, speakers []models.Speaker, segments []models.Segment) error {
	speakerRows := make([]map[string]any, 0, len(speakers))
	for _, sp := range speakers {
		speakerRows = append(speakerRows, map[string]any{
			"episode": models.EpisodeRecordID(number),
			"slot":    sp.Slot,
			"name":    sp.Name,
			"role":    string(sp.Role),
		})
	}

	segmentRows := make([]map[string]any, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Embedding) != models.EmbeddingDimension {
			return fmt.Errorf("store segments: segment %d embedding dimension %d, want %d",
				seg.Ordinal, len(seg.Embedding), models.EmbeddingDimension)
		}
		segmentRows = append(segmentRows, map[string]any{
			"episode":   models.EpisodeRecordID(number),
			"ordinal":   seg.Ordinal,
			"speaker":   seg.Speaker,
			"text":      seg.Text,
			"embedding": seg.Embedding,
		})
	}

	sql := `
		BEGIN TRANSACTION;
		DELETE segment WHERE episode = type::record("episode", $number);
		DELETE speaker WHERE episode = type::record("episode", $number);
		INSERT INTO speaker $speakers;
		INSERT INTO segment $segments;
		COMMIT TRANSACTION;
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"number":   number,
		"speakers": speakerRows,
		"segments": segmentRows,
	})
	if err != nil {
		return fmt.Errorf("store segments: %w", wrapQueryError(err))
	}
	return nil
}

// SearchSegments performs KNN search over the HNSW index and returns the
// k nearest segments with cosine similarity scores, best first. Threshold
// filtering happens in the retrieval layer, which re-checks scores.
func (c *Client) SearchSegments(ctx context.Context, embedding []float32, k int) ([]models.RetrievalCandidate, error) {
	if len(embedding) != models.EmbeddingDimension {
		return nil, fmt.Errorf("search segments: query dimension %d, want %d", len(embedding), models.EmbeddingDimension)
	}
	if k < 1 {
		return []models.RetrievalCandidate{}, nil
	}

	// KNN operator requires literal k and ef
	sql := fmt.Sprintf(`
		SELECT id, record::id(episode) AS episode, ordinal, speaker, text,
			vector::similarity::cosine(embedding, $emb) AS similarity
		FROM segment
		WHERE embedding <|%d,%d|> $emb
		ORDER BY similarity DESC
	`, k, knnEF)

	results, err := surrealdb.Query[[]models.RetrievalCandidate](ctx, c.db, sql, map[string]any{
		"emb": embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.RetrievalCandidate{}, nil
	}
	return (*results)[0].Result, nil
}

// ListSegmentVectors loads every stored segment with its embedding for
// in-memory ranking, ordered by (episode, ordinal).
func (c *Client) ListSegmentVectors(ctx context.Context) ([]models.SegmentVector, error) {
	results, err := surrealdb.Query[[]models.SegmentVector](ctx, c.db, `
		SELECT id, record::id(episode) AS episode, ordinal, speaker, text, embedding
		FROM segment
		ORDER BY episode ASC, ordinal ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list segment vectors: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.SegmentVector{}, nil
	}
	return (*results)[0].Result, nil
}

// SegmentCounts returns the number of stored segments per episode number.
func (c *Client) SegmentCounts(ctx context.Context) (map[int]int, error) {
	type row struct {
		Episode int `json:"episode"`
		Count   int `json:"count"`
	}

	results, err := surrealdb.Query[[]row](ctx, c.db, `
		SELECT record::id(episode) AS episode, count() AS count
		FROM segment GROUP BY episode
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("segment counts: %w", wrapQueryError(err))
	}

	counts := make(map[int]int)
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			counts[r.Episode] = r.Count
		}
	}
	return counts, nil
}

// SpeakerCount is a speaker label with its stored segment total.
type SpeakerCount struct {
	Speaker string `json:"speaker"`
	Count   int    `json:"count"`
}

// StatusCount is an episode status with its episode total.
type StatusCount struct {
	Status models.EpisodeStatus `json:"status"`
	Count  int                  `json:"count"`
}

// Stats summarizes the stored knowledge base.
type Stats struct {
	Episodes      int
	ByStatus      []StatusCount
	Speakers      int
	Segments      int
	SpeakerCounts []SpeakerCount

	// Length distribution of segment texts by word count.
	Short  int
	Medium int
	Long   int
}

// CollectStats gathers knowledge-base statistics: episode totals by
// status, per-speaker segment counts and the segment length distribution.
func (c *Client) CollectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	statusResults, err := surrealdb.Query[[]StatusCount](ctx, c.db, `
		SELECT status, count() AS count FROM episode GROUP BY status ORDER BY count DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: episode counts: %w", wrapQueryError(err))
	}
	if statusResults != nil && len(*statusResults) > 0 {
		stats.ByStatus = (*statusResults)[0].Result
		for _, sc := range stats.ByStatus {
			stats.Episodes += sc.Count
		}
	}

	type countRow struct {
		Count int `json:"count"`
	}
	speakerTotal, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM speaker GROUP ALL
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: speaker count: %w", wrapQueryError(err))
	}
	if speakerTotal != nil && len(*speakerTotal) > 0 && len((*speakerTotal)[0].Result) > 0 {
		stats.Speakers = (*speakerTotal)[0].Result[0].Count
	}

	perSpeaker, err := surrealdb.Query[[]SpeakerCount](ctx, c.db, `
		SELECT speaker, count() AS count FROM segment GROUP BY speaker ORDER BY count DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: speaker segments: %w", wrapQueryError(err))
	}
	if perSpeaker != nil && len(*perSpeaker) > 0 {
		stats.SpeakerCounts = (*perSpeaker)[0].Result
	}

	// Length categories are computed client-side from the text spans.
	type textRow struct {
		Text string `json:"text"`
	}
	texts, err := surrealdb.Query[[]textRow](ctx, c.db, `
		SELECT text FROM segment
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: segment texts: %w", wrapQueryError(err))
	}
	if texts != nil && len(*texts) > 0 {
		for _, row := range (*texts)[0].Result {
			stats.Segments++
			switch transcript.LengthCategory(transcript.WordCount(row.Text)) {
			case "short":
				stats.Short++
			case "medium":
				stats.Medium++
			default:
				stats.Long++
			}
		}
	}

	return stats, nil
}
