package transcript

import "fmt"

// MalformedTranscriptError reports a transcription response that lacks
// the expected structure. It carries the source reference so the failing
// episode can be diagnosed without re-running transcription.
type MalformedTranscriptError struct {
	Source string
	Reason string
}

func (e *MalformedTranscriptError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("malformed transcript: %s", e.Reason)
	}
	return fmt.Sprintf("malformed transcript %q: %s", e.Source, e.Reason)
}
