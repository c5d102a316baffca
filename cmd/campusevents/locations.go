package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var locationsCmd = &cobra.Command{
	Use:     "locations",
	Short:   "List the distinct map locations of matching events",
	GroupID: "views",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		agg, s, err := newAggregator()
		if err != nil {
			return err
		}
		defer s.Close()
		c, err := criteriaFromFlags(cmd, agg.Location())
		if err != nil {
			return err
		}
		locs, err := agg.UniqueLocations(ctx, c)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), locs)
		}
		for _, l := range locs {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

func init() {
	addFilterFlags(locationsCmd.Flags())
}
