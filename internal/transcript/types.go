// Package transcript turns raw diarized transcription responses into
// ordered, speaker-attributed segments.
package transcript

// RawTranscript is the typed transcription provider response for one
// episode. The nested shape mirrors the provider wire format; use
// Utterances to extract the diarized paragraph sequence safely.
type RawTranscript struct {
	// Source is the audio reference or file the transcript came from,
	// carried for diagnostics only.
	Source string `json:"-"`

	Results *Results `json:"results"`
}

// Results holds per-channel transcription alternatives.
type Results struct {
	Channels []Channel `json:"channels"`
}

// Channel is one audio channel's transcription.
type Channel struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Alternative is one transcription hypothesis.
type Alternative struct {
	Transcript string      `json:"transcript"`
	Paragraphs *Paragraphs `json:"paragraphs"`
}

// Paragraphs wraps the diarized paragraph list.
type Paragraphs struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is a diarized utterance group: one speaker, one or more
// sentence fragments.
type Paragraph struct {
	Speaker   int        `json:"speaker"`
	Sentences []Sentence `json:"sentences"`
	Start     float64    `json:"start,omitempty"`
	End       float64    `json:"end,omitempty"`
}

// Sentence is a single sentence-level text fragment.
type Sentence struct {
	Text  string  `json:"text"`
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
}

// Utterance is the formatter's input unit: a 1-based speaker slot plus
// the sentence fragments spoken in that turn.
type Utterance struct {
	Slot      int
	Sentences []string
}

// Utterances extracts the ordered utterance sequence from the response.
// Provider speaker identifiers are 0-based; slots are shifted to 1-based
// so the first diarized voice is slot 1. Returns MalformedTranscriptError
// when the expected results/channels/alternatives/paragraphs structure is
// missing.
func (t *RawTranscript) Utterances() ([]Utterance, error) {
	if t.Results == nil {
		return nil, &MalformedTranscriptError{Source: t.Source, Reason: "missing results"}
	}
	if len(t.Results.Channels) == 0 {
		return nil, &MalformedTranscriptError{Source: t.Source, Reason: "no channels"}
	}
	alternatives := t.Results.Channels[0].Alternatives
	if len(alternatives) == 0 {
		return nil, &MalformedTranscriptError{Source: t.Source, Reason: "no alternatives"}
	}
	paragraphs := alternatives[0].Paragraphs
	if paragraphs == nil {
		return nil, &MalformedTranscriptError{Source: t.Source, Reason: "missing paragraphs"}
	}

	utterances := make([]Utterance, 0, len(paragraphs.Paragraphs))
	for _, p := range paragraphs.Paragraphs {
		u := Utterance{Slot: p.Speaker + 1, Sentences: make([]string, 0, len(p.Sentences))}
		for _, s := range p.Sentences {
			u.Sentences = append(u.Sentences, s.Text)
		}
		utterances = append(utterances, u)
	}
	return utterances, nil
}
