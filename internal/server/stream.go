package server

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
)

const (
	// feedBacklog is how many recent messages a reconnecting client can
	// catch up on.
	feedBacklog = 1000

	// feedQueue is the per-client buffer; a client further behind loses
	// messages.
	feedQueue = 64

	feedKeepalive = 15 * time.Second
	feedRetry     = 3 * time.Second
)

// feedItem is one bus message as kept in the backlog. Created events carry
// their map location and cleaned categories for filtering.
type feedItem struct {
	seq         uint64
	topic       string
	data        []byte
	mapLocation string
	categories  []string
}

// feedFilter selects what one stream client receives. Place and category
// only constrain event.created messages; run and prune notices pass them.
type feedFilter struct {
	topics   []string
	places   map[string]bool
	category string
}

func (f feedFilter) admits(it *feedItem) bool {
	if len(f.topics) > 0 && !slices.ContainsFunc(f.topics, func(p string) bool { return subjectMatches(p, it.topic) }) {
		return false
	}
	if it.topic != bus.TopicEventCreated {
		return true
	}
	if len(f.places) > 0 && !f.places[it.mapLocation] {
		return false
	}
	return f.category == "" || slices.Contains(it.categories, f.category)
}

// subjectMatches reports whether subject matches a NATS-style pattern,
// where "*" stands for one token and a trailing ">" for one or more.
func subjectMatches(pattern, subject string) bool {
	for {
		p, prest, pmore := strings.Cut(pattern, ".")
		if p == ">" {
			return subject != ""
		}
		s, srest, smore := strings.Cut(subject, ".")
		if subject == "" || (p != "*" && p != s) {
			return false
		}
		if !pmore || !smore {
			return pmore == smore
		}
		pattern, subject = prest, srest
	}
}

type feedClient struct {
	filter feedFilter
	out    chan *feedItem
}

// feedHub numbers bus messages, keeps the most recent ones and fans them
// out to stream clients.
type feedHub struct {
	mu      sync.Mutex
	seq     uint64
	backlog []*feedItem // oldest first
	clients map[*feedClient]struct{}
}

func newFeedHub() *feedHub {
	return &feedHub{clients: make(map[*feedClient]struct{})}
}

// publish records a message and delivers it to matching clients without
// blocking. e is the decoded event of an event.created message, else nil.
func (h *feedHub) publish(topic string, data []byte, e *model.Event) uint64 {
	it := &feedItem{topic: topic, data: data}
	if e != nil {
		it.mapLocation = e.MapLocation
		for _, c := range e.Categories {
			it.categories = append(it.categories, normalize.CleanCategory(c))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	it.seq = h.seq
	if len(h.backlog) == feedBacklog {
		copy(h.backlog, h.backlog[1:])
		h.backlog = h.backlog[:feedBacklog-1]
	}
	h.backlog = append(h.backlog, it)

	for c := range h.clients {
		if !c.filter.admits(it) {
			continue
		}
		select {
		case c.out <- it:
		default:
			metrics.StreamDropped.Inc()
		}
	}
	return it.seq
}

// attach registers a client and returns the backlog after since that it
// should see first. Registration and the backlog snapshot happen under one
// lock, so nothing is missed or delivered twice. gap is true when messages
// after since have already left the backlog.
func (h *feedHub) attach(f feedFilter, since *uint64) (c *feedClient, missed []*feedItem, gap bool) {
	c = &feedClient{filter: f, out: make(chan *feedItem, feedQueue)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if since == nil {
		return c, nil, false
	}
	if len(h.backlog) > 0 && h.backlog[0].seq > *since+1 {
		gap = true
	}
	for _, it := range h.backlog {
		if it.seq > *since && f.admits(it) {
			missed = append(missed, it)
		}
	}
	return c, missed, gap
}

func (h *feedHub) detach(c *feedClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// handleEventStream handles GET /v1/events/stream, a server-sent event feed
// of bus messages. Query parameters:
//
//	topics        comma-separated subject patterns; the campusevents. prefix may be omitted
//	map_location  map locations of created events (repeatable or comma-separated)
//	category      category of created events
//	since         sequence to resume after, like the Last-Event-ID header
//
// A client resuming from a sequence older than the backlog first gets a
// "reset" event and should reload its views.
func (s *EventsServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := feedFilter{category: normalize.CleanCategory(q.Get("category"))}
	for _, t := range listParam(q, "topics") {
		f.topics = append(f.topics, bus.Subject(t))
	}
	if places := listParam(q, "map_location"); len(places) > 0 {
		f.places = make(map[string]bool, len(places))
		for _, p := range places {
			f.places[p] = true
		}
	}

	var since *uint64
	resume := r.Header.Get("Last-Event-ID")
	if resume == "" {
		resume = q.Get("since")
	}
	if resume != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(resume), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a stream sequence number")
			return
		}
		since = &n
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client, missed, gap := s.feed.attach(f, since)
	defer s.feed.detach(client)
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	fmt.Fprintf(w, "retry: %d\n\n", feedRetry.Milliseconds())
	if gap {
		fmt.Fprintf(w, "event: reset\ndata: {\"since\":%d}\n\n", *since)
	}
	for _, it := range missed {
		writeFeedItem(w, it)
	}
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream cannot flush", "err", err)
		return
	}

	keepalive := time.NewTicker(feedKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case it := <-client.out:
			writeFeedItem(w, it)
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeFeedItem writes one SSE message. Each payload line gets its own data
// field.
func writeFeedItem(w http.ResponseWriter, it *feedItem) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "id: %d\nevent: %s\n", it.seq, it.topic)
	for _, line := range bytes.Split(it.data, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	w.Write(b.Bytes())
}
