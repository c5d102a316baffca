package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

func newEvent(id, key, title string, start time.Time) *model.Event {
	return &model.Event{ID: id, IdentityKey: key, Title: title, StartTime: start}
}

func TestCreateEvent_Duplicate(t *testing.T) {
	s := New(time.UTC)
	ctx := context.Background()
	start := time.Date(2024, 11, 5, 18, 0, 0, 0, time.UTC)

	if err := s.CreateEvent(ctx, newEvent("ev-1", "k1", "Talk", start)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := s.CreateEvent(ctx, newEvent("ev-2", "k1", "Talk", start)); !errors.Is(err, model.ErrDuplicateEvent) {
		t.Fatalf("same key: expected ErrDuplicateEvent, got %v", err)
	}
	if err := s.CreateEvent(ctx, newEvent("ev-1", "k2", "Talk", start)); !errors.Is(err, model.ErrDuplicateEvent) {
		t.Fatalf("same id: expected ErrDuplicateEvent, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	got, err := s.GetEventByKey(ctx, "k1")
	if err != nil || got.ID != "ev-1" {
		t.Fatalf("GetEventByKey = %v, %v", got, err)
	}
	if _, err := s.GetEvent(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListEvents_Filter(t *testing.T) {
	s := New(time.UTC)
	ctx := context.Background()
	nov := time.Date(2024, 11, 5, 18, 0, 0, 0, time.UTC)
	dec := time.Date(2024, 12, 1, 18, 0, 0, 0, time.UTC)

	a := newEvent("ev-a", "a", "Poetry Reading", nov)
	a.Location, a.MapLocation, a.Categories = "Frost Library 2nd floor", "Frost Library", []string{"Arts"}
	b := newEvent("ev-b", "b", "Basketball", dec)
	b.Location, b.MapLocation = "LeFrak Gym", "Alumni Gymnasium"
	for _, e := range []*model.Event{b, a} {
		if err := s.CreateEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	startDate := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name   string
		filter model.EventFilter
		want   []string
	}{
		{"All", model.EventFilter{}, []string{"ev-a", "ev-b"}},
		{"Descending", model.EventFilter{Sort: "-start_time"}, []string{"ev-b", "ev-a"}},
		{"November", model.EventFilter{StartDate: &startDate, EndDate: &endDate}, []string{"ev-a"}},
		{"Search", model.EventFilter{Search: "basket"}, []string{"ev-b"}},
		{"Location", model.EventFilter{Location: "gym"}, []string{"ev-b"}},
		{"Category", model.EventFilter{Category: "arts"}, []string{"ev-a"}},
		{"MapLocations", model.EventFilter{MapLocations: []string{"Frost Library"}}, []string{"ev-a"}},
		{"Limit", model.EventFilter{Limit: 1}, []string{"ev-a"}},
		{"Offset", model.EventFilter{Offset: 1}, []string{"ev-b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := s.ListEvents(ctx, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tc.want))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Errorf("event %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	s := New(time.UTC)
	ctx := context.Background()
	now := time.Date(2024, 11, 5, 18, 0, 0, 0, time.UTC)
	_ = s.CreateEvent(ctx, newEvent("old", "old", "Old", now.Add(-3*time.Hour)))
	_ = s.CreateEvent(ctx, newEvent("new", "new", "New", now))

	n, err := s.DeleteEventsBefore(ctx, now.Add(-2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteEventsBefore = %d, %v", n, err)
	}
	// The identity key is free again.
	if err := s.CreateEvent(ctx, newEvent("old", "old", "Old", now)); err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
}
