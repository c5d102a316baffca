package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// Store defines the persistence interface for events.
type Store interface {
	// CreateEvent inserts e unless an event with the same ID or identity
	// key already exists, in which case it returns model.ErrDuplicateEvent.
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// GetEventByKey returns sql.ErrNoRows when no event has the key.
	GetEventByKey(ctx context.Context, identityKey string) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, int, error) // returns events, total count, error

	// DeleteEventsBefore removes events starting before t and returns how many were deleted.
	DeleteEventsBefore(ctx context.Context, t time.Time) (int64, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
