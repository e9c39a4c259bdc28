package model

import (
	"time"

	"github.com/minhct/gh-event-pipeline/internal/githubapi"
)

// EventMessage is the structure published to the events topic: the raw
// source event with the ingestion timestamp appended.
type EventMessage struct {
	githubapi.RawEvent
	IngestedAt time.Time `json:"ingested_at"`
}
