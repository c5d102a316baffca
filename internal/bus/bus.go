// Package bus announces pipeline activity on NATS subjects so other
// services can react to new events without polling the store.
package bus

import (
	"context"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// Topic constants
const (
	TopicEventCreated    = "campusevents.event.created"
	TopicEventsPruned    = "campusevents.events.pruned"
	TopicRunCompleted    = "campusevents.run.completed"
	TopicReplayCompleted = "campusevents.replay.completed"

	// TopicAll matches every campusevents subject.
	TopicAll = "campusevents.>"

	// SubjectPrefix starts every campusevents subject.
	SubjectPrefix = "campusevents."
)

// Subject returns the full subject for name, which may omit SubjectPrefix
// ("run.completed" and "campusevents.run.completed" are the same subject).
func Subject(name string) string {
	return SubjectPrefix + strings.TrimPrefix(name, SubjectPrefix)
}

// EventCreated is published once per newly stored event.
type EventCreated struct {
	Event *model.Event `json:"event"`
	RunID string       `json:"run_id,omitempty"`
}

// EventsPruned is published after an administrative prune.
type EventsPruned struct {
	Before  time.Time `json:"before"`
	Deleted int64     `json:"deleted"`
}

// RunCompleted summarizes one ingestion or replay run.
type RunCompleted struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Documents  int            `json:"documents"`
	Candidates int            `json:"candidates"`
	Malformed  int            `json:"malformed"`
	Stored     int            `json:"stored"`
	Duplicates int            `json:"duplicates"`
	Errors     map[string]int `json:"errors,omitempty"` // stage -> count
}

// Publisher is the interface for emitting bus messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg any) error
	Close() error
}
