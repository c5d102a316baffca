package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/nats-io/nats.go"
)

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicEventCreated, EventCreated{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestSubject(t *testing.T) {
	for in, want := range map[string]string{
		"run.completed":              TopicRunCompleted,
		"campusevents.run.completed": TopicRunCompleted,
		"event.*":                    "campusevents.event.*",
		">":                          TopicAll,
	} {
		if got := Subject(in); got != want {
			t.Errorf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Subscriber = (*NATSSubscriber)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicEventCreated, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	msg := EventCreated{Event: &model.Event{ID: "ev-1", Title: "Jazz Night"}, RunID: "run-1"}
	if err := pub.Publish(context.Background(), TopicEventCreated, msg); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := pub.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	select {
	case m := <-ch:
		var got EventCreated
		if err := json.Unmarshal(m.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Event.ID != "ev-1" || got.RunID != "run-1" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if err := pub.Publish(context.Background(), TopicRunCompleted, RunCompleted{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestNATSPublisher_Unreachable(t *testing.T) {
	if _, err := NewNATSPublisher("nats://127.0.0.1:1"); err == nil {
		t.Fatal("expected connection error")
	}
}
