// Package hooks runs operator-configured shell commands in response to bus
// messages, such as rebuilding a static map after an ingest run stores new
// events.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/model"
)

// OnFailure values of a hook rule.
const (
	OnFailureWarn   = "warn"
	OnFailureIgnore = "ignore"
)

// Handler matches bus messages against hook rules and runs the commands.
type Handler struct {
	rules  func() []model.HookRule
	logger *slog.Logger
}

// NewHandler returns a handler reading the current rules from rules on
// every message, so reloaded rules apply without a restart.
func NewHandler(rules func() []model.HookRule, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{rules: rules, logger: logger}
}

// Outcome is one executed hook.
type Outcome struct {
	Hook   string
	Result Result
}

// HandleMessage runs every hook whose trigger matches msg.Topic, in rule
// order, and returns what each did. The message payload is passed to the
// command in CAMPUSEVENTS_PAYLOAD along with a few decoded fields.
func (h *Handler) HandleMessage(ctx context.Context, msg bus.Message) []Outcome {
	var matched []model.HookRule
	for _, r := range h.rules() {
		if bus.Subject(r.On) == msg.Topic {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	env := messageEnv(msg)
	var out []Outcome
	for _, r := range matched {
		if r.OnlyWhenStored && env["CAMPUSEVENTS_STORED"] == "0" {
			continue
		}
		name := r.Name
		if name == "" {
			name = r.Command
		}

		res := Execute(ctx, r.Command, r.Timeout, r.Dir, env)
		out = append(out, Outcome{Hook: name, Result: res})

		if res.Err != nil {
			metrics.HooksExecuted.WithLabelValues(msg.Topic, "error").Inc()
			if r.OnFailure != OnFailureIgnore {
				h.logger.Warn("hook failed", "hook", name, "topic", msg.Topic, "err", res.Err, "output", res.Output)
			}
			continue
		}
		metrics.HooksExecuted.WithLabelValues(msg.Topic, "ok").Inc()
		h.logger.Info("hook executed", "hook", name, "topic", msg.Topic)
	}
	return out
}

// messageEnv returns the environment handed to hook commands for msg.
func messageEnv(msg bus.Message) map[string]string {
	env := map[string]string{
		"CAMPUSEVENTS_TOPIC":   msg.Topic,
		"CAMPUSEVENTS_PAYLOAD": string(msg.Data),
	}
	switch msg.Topic {
	case bus.TopicRunCompleted, bus.TopicReplayCompleted:
		var m bus.RunCompleted
		if json.Unmarshal(msg.Data, &m) == nil {
			env["CAMPUSEVENTS_RUN_ID"] = m.RunID
			env["CAMPUSEVENTS_STORED"] = strconv.Itoa(m.Stored)
			env["CAMPUSEVENTS_DUPLICATES"] = strconv.Itoa(m.Duplicates)
		}
	case bus.TopicEventsPruned:
		var m bus.EventsPruned
		if json.Unmarshal(msg.Data, &m) == nil {
			env["CAMPUSEVENTS_DELETED"] = strconv.FormatInt(m.Deleted, 10)
		}
	case bus.TopicEventCreated:
		var m bus.EventCreated
		if json.Unmarshal(msg.Data, &m) == nil && m.Event != nil {
			env["CAMPUSEVENTS_RUN_ID"] = m.RunID
			env["CAMPUSEVENTS_EVENT_ID"] = m.Event.ID
		}
	}
	return env
}

// Run handles messages until msgs closes or ctx ends. Hooks run one at a
// time in arrival order.
func (h *Handler) Run(ctx context.Context, msgs <-chan bus.Message) {
	h.logger.Info("hooks: handler started")
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: handler stopping")
			return
		case msg, ok := <-msgs:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return
			}
			h.HandleMessage(ctx, msg)
		}
	}
}

// StartSubscriber subscribes sub to every campusevents topic and runs Run
// over the messages. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub bus.Subscriber) error {
	ch, cancel, err := sub.Subscribe(bus.TopicAll)
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()
	h.Run(ctx, ch)
	return nil
}
