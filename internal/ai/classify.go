package ai

import "strings"

// ErrorClass buckets provider errors for retry and fallback decisions.
type ErrorClass int

const (
	// ClassTransient errors (timeouts, connection drops, rate limits)
	// consume retry budget with backoff.
	ClassTransient ErrorClass = iota
	// ClassTerminal errors (auth, malformed request, schema violation,
	// content filter) propagate immediately without retries.
	ClassTerminal
	// ClassModelUnavailable means the model itself is gone; the candidate
	// is abandoned instantly and the chain moves on.
	ClassModelUnavailable
)

// No provider exposes a stable error-code contract for decommissioned
// models, so detection is message matching. This function is the single
// place to update when providers change their error text.
var modelUnavailableMarkers = []string{
	"decommissioned",
	"no longer supported",
	"model not found",
	"invalid model",
	"model has been deprecated",
}

var terminalMarkers = []string{
	"401",
	"403",
	"invalid api key",
	"content_filter",
	"schema",
	"422",
	"bad request",
}

// Classify maps a provider error onto its handling class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())

	for _, marker := range modelUnavailableMarkers {
		if strings.Contains(msg, marker) {
			return ClassModelUnavailable
		}
	}
	for _, marker := range terminalMarkers {
		if strings.Contains(msg, marker) {
			return ClassTerminal
		}
	}
	return ClassTransient
}
