package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/campusevents/internal/aggregate"
	"github.com/alfredjeanlab/campusevents/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// GET /metrics) must include a valid Authorization: Bearer <token> header.
func (s *EventsServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("GET /v1/stats/categories", s.handleCategoryStats)
	mux.HandleFunc("GET /v1/stats/hours", s.handleHourStats)
	mux.HandleFunc("GET /v1/stats/category-hours", s.handleCategoryHours)
	mux.HandleFunc("GET /v1/locations", s.handleLocations)
	mux.HandleFunc("GET /v1/senders", s.handleSenders)
	mux.HandleFunc("POST /v1/prune", s.handlePrune)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return RecoveryMiddleware(s.logger, LoggingMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *EventsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListEvents handles GET /v1/events.
func (s *EventsServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	c, err := s.parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := c.Limit, c.Offset
	c.Limit, c.Offset = 0, 0

	events, err := s.agg.FilterEvents(r.Context(), c)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	total := len(events)
	if offset > 0 {
		if offset >= len(events) {
			events = nil
		} else {
			events = events[offset:]
		}
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}

	// Ensure events is never null in JSON output.
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
	})
}

// handleGetEvent handles GET /v1/events/{id}.
func (s *EventsServer) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	e, err := s.store.GetEvent(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && e == nil) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleCategoryStats handles GET /v1/stats/categories.
func (s *EventsServer) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	c, err := s.parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	counts, err := s.agg.CategoryData(r.Context(), c)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": counts})
}

// handleHourStats handles GET /v1/stats/hours.
func (s *EventsServer) handleHourStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := s.parseCriteria(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minHour, err := intParam(q, "min_hour", aggregate.DefaultMinHour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxHour, err := intParam(q, "max_hour", aggregate.DefaultMaxHour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := s.agg.EventsByHour(r.Context(), c, minHour, maxHour)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hours": hours})
}

// handleCategoryHours handles GET /v1/stats/category-hours.
func (s *EventsServer) handleCategoryHours(w http.ResponseWriter, r *http.Request) {
	c, err := s.parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pairs, err := s.agg.CategoryHours(r.Context(), c)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if pairs == nil {
		pairs = []aggregate.CategoryHour{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}

// handleLocations handles GET /v1/locations.
func (s *EventsServer) handleLocations(w http.ResponseWriter, r *http.Request) {
	c, err := s.parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	locs, err := s.agg.UniqueLocations(r.Context(), c)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

// handleSenders handles GET /v1/senders. The optional active_within
// duration drops senders idle for longer.
func (s *EventsServer) handleSenders(w http.ResponseWriter, r *http.Request) {
	var within time.Duration
	if v := r.URL.Query().Get("active_within"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "active_within must be a non-negative duration")
			return
		}
		within = d
	}
	writeJSON(w, http.StatusOK, map[string]any{"senders": s.senders.Roster(within)})
}

// handlePrune handles POST /v1/prune?older_than=2h.
func (s *EventsServer) handlePrune(w http.ResponseWriter, r *http.Request) {
	age := 2 * time.Hour
	if v := r.URL.Query().Get("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "older_than must be a non-negative duration")
			return
		}
		age = d
	}
	before := s.now().Add(-age)
	n, err := s.Prune(r.Context(), before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to prune events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"before": before, "deleted": n})
}

// parseCriteria reads the shared filter parameters. Dates are YYYY-MM-DD in
// the canonical zone or RFC 3339 timestamps.
func (s *EventsServer) parseCriteria(q url.Values) (model.Criteria, error) {
	c := model.Criteria{
		EventFilter: model.EventFilter{
			Search:   q.Get("search"),
			Location: q.Get("location"),
			Category: q.Get("category"),
			Sort:     q.Get("sort"),
		},
	}
	var err error
	if c.StartDate, err = s.dateParam(q, "start_date"); err != nil {
		return c, err
	}
	if c.EndDate, err = s.dateParam(q, "end_date"); err != nil {
		return c, err
	}
	c.MapLocations = listParam(q, "map_locations")
	c.ExcludeLocations = listParam(q, "exclude")
	if c.Limit, err = intParam(q, "limit", 0); err != nil {
		return c, err
	}
	if c.Offset, err = intParam(q, "offset", 0); err != nil {
		return c, err
	}
	if c.Limit < 0 || c.Offset < 0 {
		return c, inputError("limit and offset must be non-negative")
	}
	return c, nil
}

func (s *EventsServer) dateParam(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, s.agg.Location()); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, inputError(key + " must be YYYY-MM-DD or RFC 3339")
	}
	t = t.In(s.agg.Location())
	return &t, nil
}

func intParam(q url.Values, key string, fallback int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, inputError(key + " must be an integer")
	}
	return n, nil
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// writeQueryError maps aggregator errors to a status code.
func (s *EventsServer) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrInvalidRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("query failed", "err", err)
	writeError(w, http.StatusInternalServerError, "query failed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
