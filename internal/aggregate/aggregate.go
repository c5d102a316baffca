// Package aggregate computes the read-only views served to the map and
// dashboard: filtered events, category counts, hourly distributions and
// unique map locations.
//
// The view functions are pure. They keep no state between calls and give
// the same output for the same input.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
)

// Default hour window of the dashboard heatmap.
const (
	DefaultMinHour = 7
	DefaultMaxHour = 22
)

// CategoryCount is the number of events carrying one category label.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// HourCount is the number of events starting within one hour of the day.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// CategoryHour pairs a category label with an event's start hour.
type CategoryHour struct {
	Category string `json:"category"`
	Hour     int    `json:"hour"`
}

var defaultCategorizer = normalize.NewCategorizer(model.DefaultCategoryRules(), 0)

// ValidateRange returns model.ErrInvalidRange when start is after end.
func ValidateRange(start, end *time.Time) error {
	if start != nil && end != nil && dateOf(*start).After(dateOf(*end)) {
		return fmt.Errorf("%w: start date %s is after end date %s",
			model.ErrInvalidRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return nil
}

// Filter returns the events matching c, in input order. The date range
// compares the calendar date of StartTime in loc with the calendar dates of
// c.StartDate and c.EndDate. Exclusions drop events whose location or map
// location contains any entry, ignoring case.
func Filter(events []*model.Event, c model.Criteria, loc *time.Location) ([]*model.Event, error) {
	if err := ValidateRange(c.StartDate, c.EndDate); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	var startDay, endDay time.Time
	if c.StartDate != nil {
		startDay = dateOf(*c.StartDate)
	}
	if c.EndDate != nil {
		endDay = dateOf(*c.EndDate)
	}
	search := strings.ToLower(strings.TrimSpace(c.Search))
	location := strings.ToLower(strings.TrimSpace(c.Location))
	category := normalize.CleanCategory(c.Category)
	var excludes []string
	for _, x := range c.ExcludeLocations {
		if x = strings.ToLower(strings.TrimSpace(x)); x != "" {
			excludes = append(excludes, x)
		}
	}
	mapSet := make(map[string]bool, len(c.MapLocations))
	for _, m := range c.MapLocations {
		mapSet[m] = true
	}

	out := make([]*model.Event, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		day := dateOf(e.StartTime.In(loc))
		if c.StartDate != nil && day.Before(startDay) {
			continue
		}
		if c.EndDate != nil && day.After(endDay) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Title), search) {
			continue
		}
		place, mapLoc := strings.ToLower(e.Location), strings.ToLower(e.MapLocation)
		if location != "" && !strings.Contains(place, location) && !strings.Contains(mapLoc, location) {
			continue
		}
		if category != "" && !hasCategory(e, category) {
			continue
		}
		if len(mapSet) > 0 && !mapSet[e.MapLocation] {
			continue
		}
		if excluded(place, mapLoc, excludes) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func hasCategory(e *model.Event, cleaned string) bool {
	for _, c := range e.Categories {
		if normalize.CleanCategory(c) == cleaned {
			return true
		}
	}
	return false
}

func excluded(loc, mapLoc string, excludes []string) bool {
	for _, x := range excludes {
		if strings.Contains(loc, x) || strings.Contains(mapLoc, x) {
			return true
		}
	}
	return false
}

// dateOf returns the calendar date of t in its own zone as midnight UTC, so
// dates compare by wall-clock day.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CategoryData counts events per category using the built-in keyword rules
// for events without explicit categories.
func CategoryData(events []*model.Event) []CategoryCount {
	return CategoryDataWith(events, defaultCategorizer)
}

// CategoryDataWith counts events per category label. An event with several
// categories counts once for each. Results are sorted by count descending,
// then label ascending.
func CategoryDataWith(events []*model.Event, cat *normalize.Categorizer) []CategoryCount {
	counts := make(map[string]int)
	for _, e := range events {
		if e == nil {
			continue
		}
		for _, label := range Labels(e, cat) {
			counts[label]++
		}
	}

	out := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, CategoryCount{Category: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Labels returns the cleaned category labels of e: its explicit categories,
// else the keyword match over title and description, else "other".
func Labels(e *model.Event, cat *normalize.Categorizer) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range e.Categories {
		if l := normalize.CleanCategory(c); l != "" && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	if len(out) > 0 {
		return out
	}
	return []string{normalize.CleanCategory(cat.Categorize(e.Title + " " + e.EventDescription))}
}

// EventsByHour counts events by start hour in loc over [minHour, maxHour].
// Every hour in the range is present, zero or not. Bounds outside 0..23 or
// minHour > maxHour return model.ErrInvalidRange.
func EventsByHour(events []*model.Event, minHour, maxHour int, loc *time.Location) ([]HourCount, error) {
	if err := ValidateHours(minHour, maxHour); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	out := make([]HourCount, maxHour-minHour+1)
	for i := range out {
		out[i].Hour = minHour + i
	}
	for _, e := range events {
		if e == nil || e.StartTime.IsZero() {
			continue
		}
		if h := e.StartTime.In(loc).Hour(); h >= minHour && h <= maxHour {
			out[h-minHour].Count++
		}
	}
	return out, nil
}

// ValidateHours returns model.ErrInvalidRange unless 0 <= minHour <=
// maxHour <= 23.
func ValidateHours(minHour, maxHour int) error {
	if minHour < 0 || maxHour > 23 || minHour > maxHour {
		return fmt.Errorf("%w: hours [%d, %d]", model.ErrInvalidRange, minHour, maxHour)
	}
	return nil
}

// UniqueLocations returns the distinct non-empty map locations in
// first-seen order.
func UniqueLocations(events []*model.Event) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, e := range events {
		if e == nil || e.MapLocation == "" || seen[e.MapLocation] {
			continue
		}
		seen[e.MapLocation] = true
		out = append(out, e.MapLocation)
	}
	return out
}

// CategoryHours returns one (label, hour) pair per event and label, in
// event order, with hours taken in loc.
func CategoryHours(events []*model.Event, cat *normalize.Categorizer, loc *time.Location) []CategoryHour {
	if cat == nil {
		cat = defaultCategorizer
	}
	if loc == nil {
		loc = time.UTC
	}
	out := []CategoryHour{}
	for _, e := range events {
		if e == nil || e.StartTime.IsZero() {
			continue
		}
		h := e.StartTime.In(loc).Hour()
		for _, l := range Labels(e, cat) {
			out = append(out, CategoryHour{Category: l, Hour: h})
		}
	}
	return out
}
