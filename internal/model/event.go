package model

import (
	"strings"
	"time"
)

// MapLocationOther is the map location assigned when no bucket matches.
const MapLocationOther = "Other"

// CategoryOther is the fallback category label.
const CategoryOther = "Other"

// Event is the canonical campus-event record.
// StartTime and EndTime are always expressed in the canonical timezone.
type Event struct {
	ID               string     `json:"id"`
	IdentityKey      string     `json:"identity_key"`
	Title            string     `json:"title"`
	EventDescription string     `json:"event_description,omitempty"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Location         string     `json:"location,omitempty"`
	MapLocation      string     `json:"map_location,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	AuthorName       string     `json:"author_name,omitempty"`
	AuthorEmail      string     `json:"author_email,omitempty"`
	PictureLink      string     `json:"picture_link,omitempty"`
	Link             string     `json:"link,omitempty"`
	Host             []string   `json:"host,omitempty"`
	Categories       []string   `json:"categories,omitempty"`
	Source           string     `json:"source,omitempty"`
	PubDate          *time.Time `json:"pub_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// IdentityKey builds the normalized (title, start time, location) key used
// to detect duplicate events. Title and location are lowercased with
// whitespace collapsed; the start time is rendered in UTC.
func IdentityKey(title string, start time.Time, location string) string {
	return CollapseLower(title) + "|" + start.UTC().Format(time.RFC3339) + "|" + CollapseLower(location)
}

// CollapseLower lowercases s and collapses every whitespace run to one space.
func CollapseLower(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
