package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/aggregate"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show event counts by category and hour",
	GroupID: "views",
}

var statsCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Count events per category",
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
		counts, err := agg.CategoryData(ctx, c)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), counts)
		}
		printCategoryCounts(cmd.OutOrStdout(), counts)
		return nil
	},
}

var statsHoursCmd = &cobra.Command{
	Use:   "hours",
	Short: "Count events per start hour",
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
		minHour, _ := cmd.Flags().GetInt("min-hour")
		maxHour, _ := cmd.Flags().GetInt("max-hour")
		hours, err := agg.EventsByHour(ctx, c, minHour, maxHour)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), hours)
		}
		printHourCounts(cmd.OutOrStdout(), hours)
		return nil
	},
}

var statsHeatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show a category by hour grid",
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
		minHour, _ := cmd.Flags().GetInt("min-hour")
		maxHour, _ := cmd.Flags().GetInt("max-hour")
		if err := aggregate.ValidateHours(minHour, maxHour); err != nil {
			return err
		}
		pairs, err := agg.CategoryHours(ctx, c)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), pairs)
		}
		printHeatmap(cmd.OutOrStdout(), pairs, minHour, maxHour)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{statsCategoriesCmd, statsHoursCmd, statsHeatmapCmd} {
		addFilterFlags(c.Flags())
		statsCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{statsHoursCmd, statsHeatmapCmd} {
		c.Flags().Int("min-hour", aggregate.DefaultMinHour, "first hour shown")
		c.Flags().Int("max-hour", aggregate.DefaultMaxHour, "last hour shown")
	}
}
