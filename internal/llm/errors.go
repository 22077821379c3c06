package llm

import (
	"errors"
	"fmt"
	"strings"

	"podbase/internal/retry"
)

// ErrFatalAPI marks account-level provider failures: bad credentials,
// exhausted credits, billing problems. Retrying cannot fix these, and a
// pipeline run hitting one should stop instead of burning through every
// remaining episode.
var ErrFatalAPI = errors.New("fatal API error")

// fatalIndicators are matched case-insensitively against provider error
// text. Providers surface these as plain strings, so substring matching
// is the best available signal. Rate limiting is deliberately absent:
// that is a transient condition the retry layer backs off on.
var fatalIndicators = []string{
	"credit balance",
	"quota",
	"billing",
	"api key",
	"authentication",
	"unauthorized",
	"forbidden",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range fatalIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// wrapFatalError tags account-level failures with ErrFatalAPI and marks
// them permanent so the retry layer gives up immediately. Other errors
// pass through unchanged.
func wrapFatalError(err error) error {
	if err == nil || !isFatalAPIError(err) {
		return err
	}
	return retry.Permanent(fmt.Errorf("%w: %w", ErrFatalAPI, err))
}
