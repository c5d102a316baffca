package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/ui"
)

var pruneCmd = &cobra.Command{
	Use:     "prune",
	Short:   "Delete events that started before a cutoff",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		age, _ := cmd.Flags().GetDuration("older-than")
		if age <= 0 {
			age = cfg.PruneAge
		}
		if age <= 0 {
			return fmt.Errorf("--older-than must be positive, got %s", age)
		}

		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()
		pub, err := openPublisher(false)
		if err != nil {
			return err
		}
		defer pub.Close()

		ctx := context.Background()
		before := time.Now().Add(-age)
		deleted, err := s.DeleteEventsBefore(ctx, before)
		if err != nil {
			return fmt.Errorf("pruning events: %w", err)
		}
		msg := bus.EventsPruned{Before: before, Deleted: deleted}
		if err := pub.Publish(ctx, bus.TopicEventsPruned, msg); err != nil {
			logger.Warn("failed to publish prune", "err", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), msg)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d events before %s\n",
			ui.RenderOK("pruned"), deleted, before.Format(time.RFC3339))
		return nil
	},
}

func init() {
	pruneCmd.Flags().Duration("older-than", 0, "delete events starting earlier than now minus this (default from CAMPUSEVENTS_PRUNE_AGE)")
}
