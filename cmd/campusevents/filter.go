package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// addFilterFlags registers the event filter flags shared by the view
// commands.
func addFilterFlags(fs *pflag.FlagSet) {
	fs.String("from", "", "first start date, YYYY-MM-DD")
	fs.String("to", "", "last start date, YYYY-MM-DD")
	fs.String("search", "", "case-insensitive title substring")
	fs.String("location", "", "location or map location substring")
	fs.String("category", "", "category label")
	fs.StringSlice("map-location", nil, "keep only these map locations (repeatable)")
	fs.StringSlice("exclude", nil, "drop events whose location contains this (repeatable)")
}

// criteriaFromFlags builds filter criteria from the shared flags. Dates are
// calendar days in loc.
func criteriaFromFlags(cmd *cobra.Command, loc *time.Location) (model.Criteria, error) {
	var c model.Criteria
	fs := cmd.Flags()
	for _, d := range []struct {
		flag string
		dst  **time.Time
	}{{"from", &c.StartDate}, {"to", &c.EndDate}} {
		v, _ := fs.GetString(d.flag)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return c, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", d.flag, v)
		}
		*d.dst = &t
	}
	c.Search, _ = fs.GetString("search")
	c.Location, _ = fs.GetString("location")
	c.Category, _ = fs.GetString("category")
	c.MapLocations, _ = fs.GetStringSlice("map-location")
	c.ExcludeLocations, _ = fs.GetStringSlice("exclude")
	return c, nil
}
