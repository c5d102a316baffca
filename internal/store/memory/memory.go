// Package memory implements store.Store in process memory. It backs dry
// runs, where nothing is written to PostgreSQL, and package tests.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/store"
)

// Store is a map-backed store.Store. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	loc    *time.Location
	events map[string]*model.Event
	keys   map[string]string // identity key -> id

	// CreateErr, when set, is returned by CreateEvent instead of inserting.
	CreateErr error
	// PingErr, when set, is returned by Ping.
	PingErr error
}

var _ store.Store = (*Store)(nil)

// New returns an empty store that reports times in loc.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		loc:    loc,
		events: make(map[string]*model.Event),
		keys:   make(map[string]string),
	}
}

func (s *Store) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(e)
}

func (s *Store) createLocked(e *model.Event) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, ok := s.events[e.ID]; ok {
		return model.ErrDuplicateEvent
	}
	if _, ok := s.keys[e.IdentityKey]; ok {
		return model.ErrDuplicateEvent
	}
	cp := *e
	s.events[e.ID] = &cp
	s.keys[e.IdentityKey] = e.ID
	return nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.copyOut(e), nil
}

func (s *Store) GetEventByKey(_ context.Context, identityKey string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[identityKey]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s.copyOut(s.events[id]), nil
}

// ListEvents applies the same predicates as the SQL store. Results are
// ordered by start time, then ID.
func (s *Store) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Event
	for _, e := range s.events {
		if s.matches(e, filter) {
			out = append(out, s.copyOut(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if strings.HasPrefix(filter.Sort, "-") {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	total := len(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (s *Store) matches(e *model.Event, f model.EventFilter) bool {
	if f.StartDate != nil && e.StartTime.Before(startOfDay(*f.StartDate, s.loc)) {
		return false
	}
	if f.EndDate != nil && !e.StartTime.Before(startOfDay(*f.EndDate, s.loc).AddDate(0, 0, 1)) {
		return false
	}
	if f.Search != "" && !containsFold(e.Title, f.Search) {
		return false
	}
	if f.Location != "" && !containsFold(e.Location, f.Location) && !containsFold(e.MapLocation, f.Location) {
		return false
	}
	if f.Category != "" {
		found := false
		for _, c := range e.Categories {
			if strings.EqualFold(c, f.Category) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.MapLocations) > 0 {
		found := false
		for _, m := range f.MapLocations {
			if e.MapLocation == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) DeleteEventsBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.events {
		if e.StartTime.Before(t) {
			delete(s.events, id)
			delete(s.keys, e.IdentityKey)
			n++
		}
	}
	return n, nil
}

// RunInTransaction runs fn against the store itself. Writes made by fn are
// not rolled back on error.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) copyOut(e *model.Event) *model.Event {
	cp := *e
	cp.StartTime = cp.StartTime.In(s.loc)
	if cp.EndTime != nil {
		t := cp.EndTime.In(s.loc)
		cp.EndTime = &t
	}
	return &cp
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
