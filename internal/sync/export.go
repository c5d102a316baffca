package sync

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/store"
)

// FormatVersion is the backup format written by ExportJSONL.
const FormatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	EventCount int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ExportJSONL writes every stored event as JSONL to w, sorted by ID.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) (int, error) {
	events, _, err := s.ListEvents(ctx, model.EventFilter{Sort: "start_time"})
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ID < events[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    FormatVersion,
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		EventCount: len(events),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		if err := enc.Encode(record{Type: "event", Data: data}); err != nil {
			return 0, fmt.Errorf("encode event %s: %w", e.ID, err)
		}
	}
	return len(events), nil
}

// backupEventCount reads the event count from the header of a backup.
func backupEventCount(r io.Reader) (int, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	var h header
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return 0, fmt.Errorf("missing backup header")
	}
	return h.EventCount, nil
}

// ImportStats counts what ImportJSONL did.
type ImportStats struct {
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
}

// ImportJSONL restores events written by ExportJSONL. Events whose ID or
// identity key already exists are counted as duplicates and skipped.
func ImportJSONL(ctx context.Context, s store.Store, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		if line == 1 {
			var h header
			if err := json.Unmarshal(raw, &h); err != nil || h.Type != "header" {
				return stats, fmt.Errorf("line 1: missing backup header")
			}
			if h.Version != FormatVersion {
				return stats, fmt.Errorf("unsupported backup version %q", h.Version)
			}
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Type != "event" {
			continue
		}
		var e model.Event
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			return stats, fmt.Errorf("line %d: decode event: %w", line, err)
		}
		if e.IdentityKey == "" {
			e.IdentityKey = model.IdentityKey(e.Title, e.StartTime, e.Location)
		}

		err := s.RunInTransaction(ctx, func(tx store.Store) error {
			if _, err := tx.GetEventByKey(ctx, e.IdentityKey); err == nil {
				return model.ErrDuplicateEvent
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return tx.CreateEvent(ctx, &e)
		})
		switch {
		case err == nil:
			stats.Created++
		case errors.Is(err, model.ErrDuplicateEvent):
			stats.Duplicates++
		default:
			return stats, fmt.Errorf("line %d: restore event %s: %w", line, e.ID, err)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read backup: %w", err)
	}
	if line == 0 {
		return stats, fmt.Errorf("empty backup")
	}
	return stats, nil
}
