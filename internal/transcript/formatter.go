package transcript

import (
	"fmt"
	"strings"

	"podbase/internal/models"
)

// Formatter merges consecutive same-speaker utterances into contiguous
// speaker-attributed segments. Formatting is pure computation: it never
// performs I/O and never fails on missing name mappings.
type Formatter struct {
	names map[int]string
}

// NewFormatter creates a formatter with a slot-to-name mapping. The map
// may be nil or partial; unmapped slots fall back to "Speaker {slot}".
func NewFormatter(names map[int]string) *Formatter {
	return &Formatter{names: names}
}

// SpeakerLabel resolves a slot to its display name.
func (f *Formatter) SpeakerLabel(slot int) string {
	if name, ok := f.names[slot]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Speaker %d", slot)
}

// Format scans utterances in order, accumulating text per speaker and
// closing a segment at every speaker change. Sentence fragments join with
// single spaces; buffers that are empty after trimming are skipped.
//
// Guarantees: output order matches input order, no segment has empty
// text, and no two adjacent segments share a speaker label. The last
// guarantee holds even when a skipped empty buffer would otherwise leave
// the same label on both sides of a boundary; such runs merge into the
// earlier segment.
func (f *Formatter) Format(utterances []Utterance) []models.FormattedSegment {
	segments := []models.FormattedSegment{}

	emit := func(slot int, buf []string) {
		text := NormalizeSpacing(strings.Join(buf, " "))
		if text == "" {
			return
		}
		label := f.SpeakerLabel(slot)
		if n := len(segments); n > 0 && segments[n-1].Speaker == label {
			segments[n-1].Text = segments[n-1].Text + " " + text
			return
		}
		segments = append(segments, models.FormattedSegment{Speaker: label, Text: text})
	}

	var (
		current int
		buf     []string
	)
	for i, u := range utterances {
		if i == 0 {
			current = u.Slot
		} else if u.Slot != current {
			emit(current, buf)
			current = u.Slot
			buf = buf[:0]
		}
		buf = append(buf, u.Sentences...)
	}
	if len(utterances) > 0 {
		emit(current, buf)
	}

	return segments
}

// FormatTranscript extracts utterances from a raw response and formats
// them. This is the single entry point the pipeline uses.
func (f *Formatter) FormatTranscript(t *RawTranscript) ([]models.FormattedSegment, error) {
	utterances, err := t.Utterances()
	if err != nil {
		return nil, err
	}
	return f.Format(utterances), nil
}

// LengthCategory buckets a word count for reporting: short (< 100),
// medium (< 500), or long.
func LengthCategory(wordCount int) string {
	switch {
	case wordCount < 100:
		return "short"
	case wordCount < 500:
		return "medium"
	default:
		return "long"
	}
}

// WordCount counts whitespace-separated words in a segment text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
