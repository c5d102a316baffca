package hooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticRules(rules ...model.HookRule) func() []model.HookRule {
	return func() []model.HookRule { return rules }
}

func runMessage(t *testing.T, stored int) bus.Message {
	t.Helper()
	data, err := json.Marshal(bus.RunCompleted{RunID: "run-7", Stored: stored, Duplicates: 2})
	if err != nil {
		t.Fatal(err)
	}
	return bus.Message{Topic: bus.TopicRunCompleted, Data: data}
}

func TestHandleMessage_NoMatchingRule(t *testing.T) {
	h := NewHandler(staticRules(model.HookRule{On: "events.pruned", Command: "exit 1"}), quietLogger())
	if out := h.HandleMessage(context.Background(), runMessage(t, 1)); len(out) != 0 {
		t.Errorf("expected no hooks to run, got %+v", out)
	}
}

func TestHandleMessage_PassesRunFields(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(staticRules(model.HookRule{
		Name:    "record",
		On:      "campusevents.run.completed",
		Command: `printf '%s %s %s' "$CAMPUSEVENTS_RUN_ID" "$CAMPUSEVENTS_STORED" "$CAMPUSEVENTS_DUPLICATES" > out.txt`,
		Dir:     dir,
	}), quietLogger())

	out := h.HandleMessage(context.Background(), runMessage(t, 3))
	if len(out) != 1 || out[0].Hook != "record" || out[0].Result.Err != nil {
		t.Fatalf("outcomes = %+v", out)
	}
	got, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "run-7 3 2" {
		t.Errorf("hook saw %q, want %q", got, "run-7 3 2")
	}
}

func TestHandleMessage_OnlyWhenStored(t *testing.T) {
	h := NewHandler(staticRules(model.HookRule{On: "run.completed", Command: "true", OnlyWhenStored: true}), quietLogger())
	if out := h.HandleMessage(context.Background(), runMessage(t, 0)); len(out) != 0 {
		t.Errorf("a run that stored nothing must not trigger, got %+v", out)
	}
	if out := h.HandleMessage(context.Background(), runMessage(t, 1)); len(out) != 1 {
		t.Errorf("expected the hook to run, got %+v", out)
	}
}

func TestHandleMessage_FailureContinues(t *testing.T) {
	h := NewHandler(staticRules(
		model.HookRule{Name: "broken", On: "run.completed", Command: "echo nope >&2; exit 3"},
		model.HookRule{Name: "fine", On: "run.completed", Command: "echo ok"},
	), quietLogger())

	out := h.HandleMessage(context.Background(), runMessage(t, 1))
	if len(out) != 2 {
		t.Fatalf("expected both hooks to run, got %+v", out)
	}
	if out[0].Result.Err == nil || out[0].Result.Output != "nope" {
		t.Errorf("broken hook = %+v", out[0].Result)
	}
	if out[1].Result.Err != nil || out[1].Result.Output != "ok" {
		t.Errorf("fine hook = %+v", out[1].Result)
	}
}

func TestHandleMessage_RulesReload(t *testing.T) {
	rules := []model.HookRule{}
	h := NewHandler(func() []model.HookRule { return rules }, quietLogger())
	msg := bus.Message{Topic: bus.TopicEventsPruned, Data: []byte(`{"deleted":4}`)}

	if out := h.HandleMessage(context.Background(), msg); len(out) != 0 {
		t.Fatalf("expected nothing before reload, got %+v", out)
	}
	rules = []model.HookRule{{On: "events.pruned", Command: `echo "$CAMPUSEVENTS_DELETED"`}}
	out := h.HandleMessage(context.Background(), msg)
	if len(out) != 1 || out[0].Result.Output != "4" {
		t.Errorf("outcomes = %+v", out)
	}
}

func TestExecute_Timeout(t *testing.T) {
	start := time.Now()
	res := Execute(context.Background(), "exec sleep 5", 1, "", nil)
	if res.Err == nil || !strings.Contains(res.Err.Error(), "timed out") {
		t.Errorf("expected a timeout error, got %v", res.Err)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("command was not killed at the timeout")
	}
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	h := NewHandler(staticRules(), quietLogger())
	ch := make(chan bus.Message, 1)
	ch <- runMessage(t, 1)
	close(ch)

	done := make(chan struct{})
	go func() {
		h.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the channel closed")
	}
}
