package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

var listCmd = &cobra.Command{
	Use:     "list [event-id]",
	Short:   "List stored events, or show one",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		agg, s, err := newAggregator()
		if err != nil {
			return err
		}
		defer s.Close()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			e, err := s.GetEvent(ctx, args[0])
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("event %s not found", args[0])
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, e)
			}
			printEventDetail(out, e)
			return nil
		}

		c, err := criteriaFromFlags(cmd, agg.Location())
		if err != nil {
			return err
		}
		c.Sort, _ = cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := agg.FilterEvents(ctx, c)
		if err != nil {
			return err
		}
		total := len(events)
		if limit > 0 && limit < total {
			events = events[:limit]
		}
		if jsonOutput {
			if events == nil {
				events = []*model.Event{}
			}
			return printJSON(out, events)
		}
		printEventTable(out, events, total)
		return nil
	},
}

func init() {
	addFilterFlags(listCmd.Flags())
	listCmd.Flags().String("sort", "start_time", "sort field; prefix with - for descending")
	listCmd.Flags().Int("limit", 50, "maximum events to show (0 for all)")
}
