package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, identity_key, title, event_description, start_time, end_time,
	location, map_location, latitude, longitude, author_name, author_email,
	picture_link, link, host, categories, source, pub_date, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateEvent(ctx context.Context, db executor, e *model.Event) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO events (
			id, identity_key, title, event_description, start_time, end_time,
			location, map_location, latitude, longitude, author_name, author_email,
			picture_link, link, host, categories, source, pub_date, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT DO NOTHING`,
		e.ID,
		e.IdentityKey,
		e.Title,
		nullString(e.EventDescription),
		e.StartTime,
		nullTimePtr(e.EndTime),
		nullString(e.Location),
		nullString(e.MapLocation),
		nullFloatPtr(e.Latitude),
		nullFloatPtr(e.Longitude),
		nullString(e.AuthorName),
		nullString(e.AuthorEmail),
		nullString(e.PictureLink),
		nullString(e.Link),
		jsonbList(e.Host),
		jsonbList(e.Categories),
		nullString(e.Source),
		nullTimePtr(e.PubDate),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrDuplicateEvent
	}
	return nil
}

func queryGetEvent(ctx context.Context, db executor, loc *time.Location, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row, loc)
}

func queryGetEventByKey(ctx context.Context, db executor, loc *time.Location, identityKey string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE identity_key = $1`, identityKey)
	return scanEvent(row, loc)
}

func queryListEvents(ctx context.Context, db executor, loc *time.Location, filter model.EventFilter) ([]*model.Event, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	// Date bounds are calendar dates in the canonical zone; the end is inclusive.
	if filter.StartDate != nil {
		whereClauses = append(whereClauses, "start_time >= "+nextArg())
		args = append(args, startOfDay(*filter.StartDate, loc))
	}
	if filter.EndDate != nil {
		whereClauses = append(whereClauses, "start_time < "+nextArg())
		args = append(args, startOfDay(*filter.EndDate, loc).AddDate(0, 0, 1))
	}

	if filter.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("title ILIKE '%%' || %s || '%%'", nextArg()))
		args = append(args, filter.Search)
	}

	if filter.Location != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(location ILIKE '%%' || %s || '%%' OR map_location ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Location)
	}

	if filter.Category != "" {
		whereClauses = append(whereClauses,
			fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements_text(COALESCE(categories, '[]'::jsonb)) c WHERE lower(c) = lower(%s))", nextArg()))
		args = append(args, filter.Category)
	}

	if len(filter.MapLocations) > 0 {
		placeholders := make([]string, len(filter.MapLocations))
		for i, m := range filter.MapLocations {
			placeholders[i] = nextArg()
			args = append(args, m)
		}
		whereClauses = append(whereClauses, "map_location IN ("+strings.Join(placeholders, ", ")+")")
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + eventColumns + " FROM events" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	var total int
	for rows.Next() {
		e, t, err := scanEventWithTotal(rows, loc)
		if err != nil {
			return nil, 0, fmt.Errorf("scan events: %w", err)
		}
		total = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan events: %w", err)
	}

	return events, total, nil
}

func queryDeleteEventsBefore(ctx context.Context, db executor, t time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM events WHERE start_time < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// parseSortClause converts a sort key like "-start_time" into an ORDER BY
// clause. Unknown columns fall back to start time ascending.
func parseSortClause(sort string) string {
	if sort == "" {
		return "start_time ASC, id ASC"
	}
	desc := strings.HasPrefix(sort, "-")
	col := strings.TrimPrefix(sort, "-")
	allowed := map[string]bool{
		"start_time": true, "end_time": true, "created_at": true,
		"title": true, "map_location": true,
	}
	if !allowed[col] {
		return "start_time ASC, id ASC"
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
