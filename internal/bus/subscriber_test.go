package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNATSSubscriber_ReceivesAllTopics(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	_ = pub.Publish(ctx, TopicEventCreated, EventCreated{})
	_ = pub.Publish(ctx, TopicEventsPruned, EventsPruned{Deleted: 3})
	_ = pub.Publish(ctx, TopicRunCompleted, RunCompleted{RunID: "run-x", Stored: 2})
	pub.Flush()

	want := []string{TopicEventCreated, TopicEventsPruned, TopicRunCompleted}
	for i, topic := range want {
		select {
		case msg := <-ch:
			if msg.Topic != topic {
				t.Errorf("message %d topic = %s, want %s", i, msg.Topic, topic)
			}
			if topic == TopicRunCompleted {
				var rc RunCompleted
				if err := json.Unmarshal(msg.Data, &rc); err != nil || rc.RunID != "run-x" || rc.Stored != 2 {
					t.Errorf("RunCompleted = %+v, %v", rc, err)
				}
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", topic)
		}
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(TopicAll)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
