package model

import "time"

// EventFilter holds criteria for querying the event store.
// StartDate and EndDate are inclusive calendar dates in the canonical zone.
type EventFilter struct {
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Search       string     `json:"search,omitempty"`   // case-insensitive title substring
	Location     string     `json:"location,omitempty"` // substring over location and map_location
	Category     string     `json:"category,omitempty"`
	MapLocations []string   `json:"map_locations,omitempty"`
	Sort         string     `json:"sort,omitempty"` // e.g. "-start_time"; prefix "-" = descending
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

// Criteria is the aggregator-level filter: a store filter plus the
// location exclusion list applied to map views.
type Criteria struct {
	EventFilter
	ExcludeLocations []string `json:"exclude_locations,omitempty"`
}
