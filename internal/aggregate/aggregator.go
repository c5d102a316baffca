package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
	"github.com/alfredjeanlab/campusevents/internal/store"
)

// Aggregator runs the views against a store. The configured exclusion list
// applies to every query and may be replaced while serving.
type Aggregator struct {
	store       store.Store
	loc         *time.Location
	categorizer *normalize.Categorizer

	mu         sync.RWMutex
	exclusions []string
}

// New returns an Aggregator over s. A nil categorizer uses the built-in
// category rules.
func New(s store.Store, loc *time.Location, cat *normalize.Categorizer, exclusions []string) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if cat == nil {
		cat = defaultCategorizer
	}
	return &Aggregator{store: s, loc: loc, categorizer: cat, exclusions: append([]string(nil), exclusions...)}
}

// Location returns the canonical zone.
func (a *Aggregator) Location() *time.Location { return a.loc }

// SetExclusions replaces the configured exclusion list.
func (a *Aggregator) SetExclusions(exclusions []string) {
	a.mu.Lock()
	a.exclusions = append([]string(nil), exclusions...)
	a.mu.Unlock()
}

// Exclusions returns a copy of the configured exclusion list.
func (a *Aggregator) Exclusions() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.exclusions...)
}

// FilterEvents queries the store with the criteria it can evaluate and then
// applies Filter, so the result equals Filter over the full event set. The
// configured exclusions are added to c.ExcludeLocations.
func (a *Aggregator) FilterEvents(ctx context.Context, c model.Criteria) ([]*model.Event, error) {
	if err := ValidateRange(c.StartDate, c.EndDate); err != nil {
		return nil, err
	}

	limit, offset := c.Limit, c.Offset
	f := c.EventFilter
	f.Category = normalize.CleanCategory(c.Category)
	f.Limit, f.Offset = 0, 0
	events, _, err := a.store.ListEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	c.ExcludeLocations = append(append([]string(nil), c.ExcludeLocations...), a.Exclusions()...)
	c.Limit, c.Offset = 0, 0
	out, err := Filter(events, c, a.loc)
	if err != nil {
		return nil, err
	}
	return page(out, offset, limit), nil
}

func page(events []*model.Event, offset, limit int) []*model.Event {
	if offset > 0 {
		if offset >= len(events) {
			return []*model.Event{}
		}
		events = events[offset:]
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}

// CategoryData counts the events matching c per category label.
func (a *Aggregator) CategoryData(ctx context.Context, c model.Criteria) ([]CategoryCount, error) {
	events, err := a.FilterEvents(ctx, c)
	if err != nil {
		return nil, err
	}
	return CategoryDataWith(events, a.categorizer), nil
}

// EventsByHour buckets the events matching c by start hour in the canonical
// zone.
func (a *Aggregator) EventsByHour(ctx context.Context, c model.Criteria, minHour, maxHour int) ([]HourCount, error) {
	events, err := a.FilterEvents(ctx, c)
	if err != nil {
		return nil, err
	}
	return EventsByHour(events, minHour, maxHour, a.loc)
}

// CategoryHours returns category/hour pairs for the events matching c.
func (a *Aggregator) CategoryHours(ctx context.Context, c model.Criteria) ([]CategoryHour, error) {
	events, err := a.FilterEvents(ctx, c)
	if err != nil {
		return nil, err
	}
	return CategoryHours(events, a.categorizer, a.loc), nil
}

// UniqueLocations returns the map locations of the events matching c.
func (a *Aggregator) UniqueLocations(ctx context.Context, c model.Criteria) ([]string, error) {
	events, err := a.FilterEvents(ctx, c)
	if err != nil {
		return nil, err
	}
	return UniqueLocations(events), nil
}
