package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Print bus messages as ingest runs publish them",
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		if cfg.NATSURL == "" {
			return errors.New("CAMPUSEVENTS_NATS_URL is not set")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := bus.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer cancel()

		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				printMessage(out, msg, time.Now())
			}
		}
	},
}

// printMessage writes one bus message. With --json the payload is written
// as received, one message per line.
func printMessage(w io.Writer, msg bus.Message, at time.Time) {
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"data\":%s}\n", msg.Topic, msg.Data)
		return
	}
	prefix := ui.RenderMuted(at.Format("15:04:05")) + " " + ui.RenderAccent(msg.Topic)
	switch msg.Topic {
	case bus.TopicEventCreated:
		var m bus.EventCreated
		if err := json.Unmarshal(msg.Data, &m); err == nil && m.Event != nil {
			fmt.Fprintf(w, "%s %s @ %s (%s)\n", prefix, m.Event.Title, m.Event.MapLocation,
				m.Event.StartTime.Format(eventTimeFormat))
			return
		}
	case bus.TopicRunCompleted, bus.TopicReplayCompleted:
		var m bus.RunCompleted
		if err := json.Unmarshal(msg.Data, &m); err == nil {
			fmt.Fprintf(w, "%s %s: %d stored, %d duplicates, %d documents\n", prefix, m.RunID,
				m.Stored, m.Duplicates, m.Documents)
			return
		}
	case bus.TopicEventsPruned:
		var m bus.EventsPruned
		if err := json.Unmarshal(msg.Data, &m); err == nil {
			fmt.Fprintf(w, "%s %d events before %s\n", prefix, m.Deleted, m.Before.Format(time.RFC3339))
			return
		}
	}
	fmt.Fprintf(w, "%s %s\n", prefix, msg.Data)
}

func init() {
	watchCmd.Flags().String("topic", bus.TopicAll, "subject to subscribe to")
}
