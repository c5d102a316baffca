package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/model"
)

// streamMessage is one message read back from the event stream.
type streamMessage struct {
	ID    string
	Event string
	Data  string
}

// scanStream parses SSE messages from r and hands each to emit until emit
// returns false or r ends. Comments and retry fields are skipped.
func scanStream(r io.Reader, emit func(streamMessage) bool) {
	sc := bufio.NewScanner(r)
	var cur streamMessage
	var data []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if cur.Event != "" || len(data) > 0 {
				cur.Data = strings.Join(data, "\n")
				if !emit(cur) {
					return
				}
			}
			cur, data = streamMessage{}, nil
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			cur.ID = value
		case "event":
			cur.Event = value
		case "data":
			data = append(data, value)
		}
	}
}

// runStream serves one stream request until the handler has written its
// initial output, then disconnects and returns the parsed messages.
func runStream(t *testing.T, h http.Handler, target string, header http.Header) (int, []streamMessage) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", target, nil).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after disconnect")
	}
	var msgs []streamMessage
	scanStream(rec.Body, func(m streamMessage) bool {
		msgs = append(msgs, m)
		return true
	})
	return rec.Code, msgs
}

func createdEvent(id, place string, categories ...string) (*model.Event, []byte) {
	e := &model.Event{ID: id, Title: id, MapLocation: place, Categories: categories}
	return e, []byte(fmt.Sprintf(`{"event":{"id":%q}}`, id))
}

func TestSubjectMatches(t *testing.T) {
	for _, tc := range []struct {
		pattern, subject string
		want             bool
	}{
		{bus.TopicEventCreated, bus.TopicEventCreated, true},
		{bus.TopicEventCreated, bus.TopicEventsPruned, false},
		{"campusevents.*.created", bus.TopicEventCreated, true},
		{"campusevents.*", bus.TopicEventCreated, false},
		{"campusevents.*.*", bus.TopicRunCompleted, true},
		{bus.TopicAll, bus.TopicReplayCompleted, true},
		{bus.TopicAll, "campusevents", false},
		{"campusevents.run.>", bus.TopicRunCompleted, true},
		{"campusevents.run.>", bus.TopicEventCreated, false},
		{"campusevents.event.created.x", bus.TopicEventCreated, false},
		{"other.>", bus.TopicEventCreated, false},
	} {
		if got := subjectMatches(tc.pattern, tc.subject); got != tc.want {
			t.Errorf("subjectMatches(%q, %q) = %v, want %v", tc.pattern, tc.subject, got, tc.want)
		}
	}
}

func TestFeedFilter_Admits(t *testing.T) {
	hub := newFeedHub()
	keefe, keefeData := createdEvent("ev-poetry", "Keefe Campus Center", "Arts")
	gym, gymData := createdEvent("ev-fair", "Alumni Gymnasium", "Career")
	hub.publish(bus.TopicEventCreated, keefeData, keefe)
	hub.publish(bus.TopicEventCreated, gymData, gym)
	hub.publish(bus.TopicRunCompleted, []byte(`{"run_id":"r1"}`), nil)
	items := hub.backlog

	for _, tc := range []struct {
		name   string
		filter feedFilter
		want   []uint64
	}{
		{"everything", feedFilter{}, []uint64{1, 2, 3}},
		{"created only", feedFilter{topics: []string{bus.TopicEventCreated}}, []uint64{1, 2}},
		{"place", feedFilter{places: map[string]bool{"Alumni Gymnasium": true}}, []uint64{2, 3}},
		{"category", feedFilter{category: "arts"}, []uint64{1, 3}},
		{"place and category", feedFilter{places: map[string]bool{"Alumni Gymnasium": true}, category: "arts"}, []uint64{3}},
		{"run topics", feedFilter{topics: []string{"campusevents.run.>"}, category: "arts"}, []uint64{3}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got []uint64
			for _, it := range items {
				if tc.filter.admits(it) {
					got = append(got, it.seq)
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Errorf("admitted %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFeedHub_BacklogIsBounded(t *testing.T) {
	hub := newFeedHub()
	for i := 0; i < feedBacklog+5; i++ {
		hub.publish(bus.TopicRunCompleted, []byte(`{}`), nil)
	}
	if len(hub.backlog) != feedBacklog {
		t.Fatalf("backlog = %d, want %d", len(hub.backlog), feedBacklog)
	}
	if first := hub.backlog[0].seq; first != 6 {
		t.Errorf("oldest kept seq = %d, want 6", first)
	}

	since := uint64(5)
	c, missed, gap := hub.attach(feedFilter{}, &since)
	hub.detach(c)
	if gap || len(missed) != feedBacklog {
		t.Errorf("resume after 5: gap=%v missed=%d, want no gap and %d", gap, len(missed), feedBacklog)
	}

	since = 2
	c, missed, gap = hub.attach(feedFilter{}, &since)
	hub.detach(c)
	if !gap || len(missed) != feedBacklog {
		t.Errorf("resume after 2: gap=%v missed=%d, want gap and %d", gap, len(missed), feedBacklog)
	}
}

func TestFeedHub_SlowClientDropsMessages(t *testing.T) {
	hub := newFeedHub()
	c, _, _ := hub.attach(feedFilter{}, nil)
	defer hub.detach(c)

	before := testutil.ToFloat64(metrics.StreamDropped)
	for i := 0; i < feedQueue+3; i++ {
		hub.publish(bus.TopicRunCompleted, []byte(`{}`), nil)
	}
	if got := testutil.ToFloat64(metrics.StreamDropped) - before; got != 3 {
		t.Errorf("dropped = %v, want 3", got)
	}
	if len(c.out) != feedQueue {
		t.Errorf("queued = %d, want %d", len(c.out), feedQueue)
	}
}

func TestFeedHub_DetachStopsDelivery(t *testing.T) {
	hub := newFeedHub()
	c, _, _ := hub.attach(feedFilter{}, nil)
	hub.detach(c)
	hub.publish(bus.TopicRunCompleted, []byte(`{}`), nil)
	if len(c.out) != 0 {
		t.Errorf("detached client received %d messages", len(c.out))
	}
}

func TestHandleEventStream_ResumeWithFilters(t *testing.T) {
	srv, _, h := newTestServer(t)
	for _, e := range testEvents() {
		srv.feed.publish(bus.TopicEventCreated, []byte(fmt.Sprintf(`{"event":{"id":%q}}`, e.ID)), e)
	}
	srv.feed.publish(bus.TopicRunCompleted, []byte(`{"run_id":"r1"}`), nil)

	for _, tc := range []struct {
		name  string
		query string
		want  []string
	}{
		{"all after zero", "?since=0", []string{"1", "2", "3", "4", "5"}},
		{"after two", "?since=2", []string{"3", "4", "5"}},
		{"arts", "?since=0&category=Arts&topics=event.created", []string{"1", "4"}},
		{"places", "?since=0&map_location=Other,Alumni%20Gymnasium", []string{"2", "3", "5"}},
		{"run topics", "?since=0&topics=run.*", []string{"5"}},
		{"live only", "", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			code, msgs := runStream(t, h, "/v1/events/stream"+tc.query, nil)
			if code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			var ids []string
			for _, m := range msgs {
				ids = append(ids, m.ID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tc.want) {
				t.Errorf("ids = %v, want %v", ids, tc.want)
			}
		})
	}
}

func TestHandleEventStream_LastEventIDHeader(t *testing.T) {
	srv, _, h := newTestServer(t)
	for i := 1; i <= 3; i++ {
		srv.feed.publish(bus.TopicRunCompleted, []byte(fmt.Sprintf(`{"n":%d}`, i)), nil)
	}
	header := http.Header{"Last-Event-Id": []string{"2"}}
	_, msgs := runStream(t, h, "/v1/events/stream?since=0", header)
	if len(msgs) != 1 || msgs[0].Data != `{"n":3}` || msgs[0].Event != bus.TopicRunCompleted {
		t.Errorf("messages = %+v, want only n=3", msgs)
	}
}

func TestHandleEventStream_ResetAfterGap(t *testing.T) {
	srv, _, h := newTestServer(t)
	for i := 0; i < feedBacklog+2; i++ {
		srv.feed.publish(bus.TopicRunCompleted, []byte(`{}`), nil)
	}
	_, msgs := runStream(t, h, "/v1/events/stream?since=1", nil)
	if len(msgs) == 0 || msgs[0].Event != "reset" {
		t.Fatalf("first message = %+v, want reset", msgs)
	}
	if msgs[0].Data != `{"since":1}` {
		t.Errorf("reset data = %s", msgs[0].Data)
	}
	if len(msgs) != feedBacklog+1 {
		t.Errorf("messages = %d, want reset plus %d", len(msgs), feedBacklog)
	}
}

func TestHandleEventStream_BadSince(t *testing.T) {
	_, _, h := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/events/stream?since=yesterday", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWriteFeedItem_MultilineData(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFeedItem(rec, &feedItem{seq: 7, topic: bus.TopicEventsPruned, data: []byte("{\n\"deleted\":2\n}")})
	want := "id: 7\nevent: campusevents.events.pruned\ndata: {\ndata: \"deleted\":2\ndata: }\n\n"
	if rec.Body.String() != want {
		t.Errorf("wrote %q, want %q", rec.Body.String(), want)
	}
	var got []streamMessage
	scanStream(strings.NewReader(rec.Body.String()), func(m streamMessage) bool {
		got = append(got, m)
		return true
	})
	if len(got) != 1 || got[0].Data != "{\n\"deleted\":2\n}" {
		t.Errorf("read back %+v", got)
	}
}

func TestPrune_ReachesStreamClients(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c, _, _ := srv.feed.attach(feedFilter{topics: []string{bus.TopicEventsPruned}}, nil)
	defer srv.feed.detach(c)

	n, err := srv.Prune(context.Background(), time.Date(2024, 10, 18, 0, 0, 0, 0, eastern))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	select {
	case it := <-c.out:
		if it.topic != bus.TopicEventsPruned || !strings.Contains(string(it.data), `"deleted":2`) {
			t.Errorf("message = %s %s", it.topic, it.data)
		}
	case <-time.After(time.Second):
		t.Fatal("no pruned message")
	}
}
