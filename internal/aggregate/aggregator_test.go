package aggregate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/store/memory"
)

func TestAggregator_FilterEventsMatchesFilter(t *testing.T) {
	loc := newYork(t)
	s := memory.New(loc)
	events := sampleEvents(loc)
	for _, e := range events {
		e.IdentityKey = "key-" + e.ID
		if err := s.CreateEvent(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	a := New(s, loc, nil, nil)

	for _, c := range []model.Criteria{
		{},
		{EventFilter: model.EventFilter{StartDate: date(2024, 11, 5), EndDate: date(2024, 11, 20)}},
		{EventFilter: model.EventFilter{Category: "Arts"}},
		{EventFilter: model.EventFilter{Search: "ball"}},
		{ExcludeLocations: []string{"keefe"}},
	} {
		got, err := a.FilterEvents(context.Background(), c)
		if err != nil {
			t.Fatal(err)
		}
		want, err := Filter(events, c, loc)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(ids(got), ids(want)) {
			t.Errorf("criteria %+v: FilterEvents = %v, Filter = %v", c, ids(got), ids(want))
		}
	}
}

func TestAggregator_Exclusions(t *testing.T) {
	loc := newYork(t)
	s := memory.New(loc)
	for _, e := range sampleEvents(loc) {
		e.IdentityKey = e.ID
		_ = s.CreateEvent(context.Background(), e)
	}
	a := New(s, loc, nil, []string{"Science Center"})

	locs, err := a.UniqueLocations(context.Background(), model.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Frost Library", "Alumni Gymnasium", "Other", "Keefe Campus Center"}
	if !reflect.DeepEqual(locs, want) {
		t.Errorf("UniqueLocations = %v, want %v", locs, want)
	}

	a.SetExclusions(nil)
	locs, _ = a.UniqueLocations(context.Background(), model.Criteria{})
	if len(locs) != 5 {
		t.Errorf("after clearing exclusions got %v", locs)
	}
}

func TestAggregator_Views(t *testing.T) {
	loc := newYork(t)
	s := memory.New(loc)
	for _, e := range sampleEvents(loc) {
		e.IdentityKey = e.ID
		_ = s.CreateEvent(context.Background(), e)
	}
	a := New(s, loc, nil, nil)
	ctx := context.Background()

	hours, err := a.EventsByHour(ctx, model.Criteria{}, DefaultMinHour, DefaultMaxHour)
	if err != nil {
		t.Fatal(err)
	}
	if len(hours) != DefaultMaxHour-DefaultMinHour+1 {
		t.Errorf("got %d hour buckets", len(hours))
	}
	if hours[14-DefaultMinHour].Count != 1 || hours[20-DefaultMinHour].Count != 1 {
		t.Errorf("hours = %+v", hours)
	}

	cats, err := a.CategoryData(ctx, model.Criteria{})
	if err != nil || len(cats) == 0 || cats[0].Category != "arts" {
		t.Errorf("CategoryData = %+v, %v", cats, err)
	}

	pairs, err := a.CategoryHours(ctx, model.Criteria{EventFilter: model.EventFilter{Search: "basketball"}})
	if err != nil || len(pairs) != 1 || pairs[0] != (CategoryHour{Category: "athletics", Hour: 14}) {
		t.Errorf("CategoryHours = %+v, %v", pairs, err)
	}

	page, err := a.FilterEvents(ctx, model.Criteria{EventFilter: model.EventFilter{Offset: 1, Limit: 2}})
	if err != nil || !reflect.DeepEqual(ids(page), []string{"2", "3"}) {
		t.Errorf("paged = %v, %v", ids(page), err)
	}

	_, err = a.FilterEvents(ctx, model.Criteria{EventFilter: model.EventFilter{StartDate: date(2024, 12, 2), EndDate: date(2024, 12, 1)}})
	if !errors.Is(err, model.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}
