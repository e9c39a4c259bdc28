// Package velocity computes the size-normalized significance score of a
// single GitHub event. The score is the shared contract between poller
// filtering and processor metric computation.
package velocity

import "math"

// StarEvent is the event type that drives stars_delta.
const StarEvent = "WatchEvent"

// DefaultWeight applies to supported event types without an explicit weight.
const DefaultWeight = 0.1

// Weights are the base weights per event type.
var Weights = map[string]float64{
	"WatchEvent":        1.0,
	"ForkEvent":         0.8,
	"PullRequestEvent":  0.6,
	"ReleaseEvent":      0.5,
	"IssuesEvent":       0.4,
	"PushEvent":         0.3,
	"CreateEvent":       0.2,
	"IssueCommentEvent": 0.1,
}

// SupportedEvents is the set of event types the pipeline accepts.
var SupportedEvents = map[string]struct{}{
	"WatchEvent":        {},
	"ForkEvent":         {},
	"PushEvent":         {},
	"IssuesEvent":       {},
	"PullRequestEvent":  {},
	"CreateEvent":       {},
	"ReleaseEvent":      {},
	"IssueCommentEvent": {},
}

func IsSupported(eventType string) bool {
	_, ok := SupportedEvents[eventType]
	return ok
}

func IsStarEvent(eventType string) bool {
	return eventType == StarEvent
}

// Score returns the velocity score for one event, rounded to 4 decimal
// places. Smaller repositories score higher for the same activity; the
// floor of 10 stars keeps the logarithm away from zero for new repos.
func Score(eventType string, totalStars int64) float64 {
	baseWeight, ok := Weights[eventType]
	if !ok {
		baseWeight = DefaultWeight
	}

	stars := totalStars
	if stars < 10 {
		stars = 10
	}
	sizeFactor := 1.0 / math.Log(float64(stars)+1)

	return math.Round(baseWeight*sizeFactor*10*10000) / 10000
}
