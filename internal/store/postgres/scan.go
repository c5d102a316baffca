package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// eventScan holds the nullable destinations for one events row.
type eventScan struct {
	e           model.Event
	description sql.NullString
	endTime     sql.NullTime
	location    sql.NullString
	mapLocation sql.NullString
	latitude    sql.NullFloat64
	longitude   sql.NullFloat64
	authorName  sql.NullString
	authorEmail sql.NullString
	pictureLink sql.NullString
	link        sql.NullString
	host        []byte
	categories  []byte
	source      sql.NullString
	pubDate     sql.NullTime
}

func (s *eventScan) dest() []any {
	return []any{
		&s.e.ID,
		&s.e.IdentityKey,
		&s.e.Title,
		&s.description,
		&s.e.StartTime,
		&s.endTime,
		&s.location,
		&s.mapLocation,
		&s.latitude,
		&s.longitude,
		&s.authorName,
		&s.authorEmail,
		&s.pictureLink,
		&s.link,
		&s.host,
		&s.categories,
		&s.source,
		&s.pubDate,
		&s.e.CreatedAt,
	}
}

func (s *eventScan) event(loc *time.Location) *model.Event {
	e := s.e
	e.EventDescription = s.description.String
	e.Location = s.location.String
	e.MapLocation = s.mapLocation.String
	e.AuthorName = s.authorName.String
	e.AuthorEmail = s.authorEmail.String
	e.PictureLink = s.pictureLink.String
	e.Link = s.link.String
	e.Source = s.source.String

	e.StartTime = e.StartTime.In(loc)
	if s.endTime.Valid {
		t := s.endTime.Time.In(loc)
		e.EndTime = &t
	}
	if s.pubDate.Valid {
		t := s.pubDate.Time.In(loc)
		e.PubDate = &t
	}
	if s.latitude.Valid {
		v := s.latitude.Float64
		e.Latitude = &v
	}
	if s.longitude.Valid {
		v := s.longitude.Float64
		e.Longitude = &v
	}
	if len(s.host) > 0 {
		_ = json.Unmarshal(s.host, &e.Host)
	}
	if len(s.categories) > 0 {
		_ = json.Unmarshal(s.categories, &e.Categories)
	}
	return &e
}

// scanEvent scans a single row into a model.Event.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable, loc *time.Location) (*model.Event, error) {
	var s eventScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.event(loc), nil
}

// scanEventWithTotal scans a row that has a leading total_count column
// followed by the standard event columns. Used by queryListEvents with
// COUNT(*) OVER().
func scanEventWithTotal(row scannable, loc *time.Location) (*model.Event, int, error) {
	var total int
	var s eventScan
	if err := row.Scan(append([]any{&total}, s.dest()...)...); err != nil {
		return nil, 0, err
	}
	return s.event(loc), total, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullFloatPtr converts a *float64 to a sql.NullFloat64.
func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// jsonbList encodes a string list for a JSONB column; empty lists are null.
func jsonbList(v []string) []byte {
	if len(v) == 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
