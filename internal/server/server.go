// Package server exposes stored events and their aggregate views as a JSON
// HTTP API, and relays bus messages to browsers over server-sent events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/activity"
	"github.com/alfredjeanlab/campusevents/internal/aggregate"
	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/store"
)

// EventsServer serves the read API over a store and an aggregator.
type EventsServer struct {
	store     store.Store
	agg       *aggregate.Aggregator
	publisher bus.Publisher
	feed      *feedHub
	senders   *activity.Tracker
	logger    *slog.Logger
	now       func() time.Time
}

// NewEventsServer returns a server reading from s through agg. A nil
// publisher discards bus messages.
func NewEventsServer(s store.Store, agg *aggregate.Aggregator, p bus.Publisher, logger *slog.Logger) *EventsServer {
	if p == nil {
		p = &bus.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsServer{
		store:     s,
		agg:       agg,
		publisher: p,
		feed:      newFeedHub(),
		senders:   activity.New(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// inputError indicates invalid user input. Handlers map it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// Senders returns the roster of senders fed by Relay.
func (s *EventsServer) Senders() *activity.Tracker { return s.senders }

// Relay forwards bus messages to stream clients until msgs closes or ctx ends.
// Created events are also recorded in the sender roster.
func (s *EventsServer) Relay(ctx context.Context, msgs <-chan bus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var event *model.Event
			if m.Topic == bus.TopicEventCreated {
				var created bus.EventCreated
				if err := json.Unmarshal(m.Data, &created); err != nil {
					s.logger.Warn("malformed event.created message", "err", err)
				} else {
					event = created.Event
					s.senders.Record(created.Event, created.RunID)
				}
			}
			s.feed.publish(m.Topic, m.Data, event)
		}
	}
}

// Prune deletes events that started before the given time and announces it.
func (s *EventsServer) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.DeleteEventsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	s.logger.Info("pruned events", "before", before, "deleted", n)
	s.publish(ctx, bus.TopicEventsPruned, bus.EventsPruned{Before: before, Deleted: n})
	return n, nil
}

// publish sends msg on the bus and to local stream clients. Failures are
// logged and never block the caller.
func (s *EventsServer) publish(ctx context.Context, topic string, msg any) {
	if err := s.publisher.Publish(ctx, topic, msg); err != nil {
		s.logger.Warn("failed to publish", "topic", topic, "err", err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to marshal stream message", "topic", topic, "err", err)
		return
	}
	s.feed.publish(topic, payload, nil)
}
