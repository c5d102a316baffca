package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/aggregate"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/pipeline"
	"github.com/alfredjeanlab/campusevents/internal/ui"
)

const eventTimeFormat = "Mon Jan 2 15:04"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printEventTable(w io.Writer, events []*model.Event, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tTITLE\tMAP LOCATION\tCATEGORIES")
	titleWidth := max(ui.Width()/3, 20)
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.StartTime.Format(eventTimeFormat),
			ui.Truncate(e.Title, titleWidth),
			e.MapLocation,
			strings.Join(e.Categories, ", "),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events (%d total)\n", len(events), total)
}

func printEventDetail(w io.Writer, e *model.Event) {
	fmt.Fprintf(w, "ID:           %s\n", e.ID)
	fmt.Fprintf(w, "Title:        %s\n", e.Title)
	fmt.Fprintf(w, "Start:        %s\n", e.StartTime.Format(time.RFC1123))
	if e.EndTime != nil {
		fmt.Fprintf(w, "End:          %s\n", e.EndTime.Format(time.RFC1123))
	}
	fmt.Fprintf(w, "Location:     %s\n", e.Location)
	fmt.Fprintf(w, "Map Location: %s\n", e.MapLocation)
	if e.HasCoordinates() {
		fmt.Fprintf(w, "Coordinates:  %.5f, %.5f\n", *e.Latitude, *e.Longitude)
	}
	if len(e.Categories) > 0 {
		fmt.Fprintf(w, "Categories:   %s\n", strings.Join(e.Categories, ", "))
	}
	if e.AuthorName != "" || e.AuthorEmail != "" {
		fmt.Fprintf(w, "Author:       %s <%s>\n", e.AuthorName, e.AuthorEmail)
	}
	if e.Link != "" {
		fmt.Fprintf(w, "Link:         %s\n", e.Link)
	}
	if e.EventDescription != "" {
		fmt.Fprintf(w, "\n%s\n", e.EventDescription)
	}
}

func printSummary(w io.Writer, s *pipeline.RunSummary) {
	fmt.Fprintf(w, "%s %s (%s)\n", ui.RenderAccent("Run"), s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  documents\t%s\n", ui.RenderCount(s.Documents, false))
	fmt.Fprintf(tw, "  candidates\t%s\n", ui.RenderCount(s.Candidates, false))
	fmt.Fprintf(tw, "  malformed\t%s\n", ui.RenderCount(s.Malformed, true))
	fmt.Fprintf(tw, "  stored\t%s\n", ui.RenderCount(s.Stored, false))
	fmt.Fprintf(tw, "  duplicates\t%s\n", ui.RenderCount(s.Duplicates, false))
	fmt.Fprintf(tw, "  invalid\t%s\n", ui.RenderCount(s.Invalid, true))
	fmt.Fprintf(tw, "  store failed\t%s\n", ui.RenderCount(s.StoreFailed, true))
	tw.Flush()

	if n := s.ErrorCount(); n > 0 {
		stages := make([]string, 0, len(s.Errors))
		for stage, c := range s.Errors {
			if c > 0 {
				stages = append(stages, fmt.Sprintf("%s=%d", stage, c))
			}
		}
		sort.Strings(stages)
		fmt.Fprintf(w, "%s %s\n", ui.RenderWarn("errors:"), strings.Join(stages, " "))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s %s: %s\n", ui.RenderMuted(f.Stage), f.Source, f.Error)
		}
	}
	if s.AuditFile != "" {
		fmt.Fprintf(w, "audit: %s\n", s.AuditFile)
	}
}

func printCategoryCounts(w io.Writer, counts []aggregate.CategoryCount) {
	top := 0
	for _, c := range counts {
		top = max(top, c.Count)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Category, c.Count, ui.RenderBar(c.Count, top, 30))
	}
	tw.Flush()
}

func printHourCounts(w io.Writer, hours []aggregate.HourCount) {
	top := 0
	for _, h := range hours {
		top = max(top, h.Count)
	}
	for _, h := range hours {
		fmt.Fprintf(w, "%02d:00 %4d %s\n", h.Hour, h.Count, ui.RenderBar(h.Count, top, 30))
	}
}

// printHeatmap renders category/hour pairs as a grid of counts with one
// row per category and one column per hour in [minHour, maxHour].
func printHeatmap(w io.Writer, pairs []aggregate.CategoryHour, minHour, maxHour int) {
	grid := make(map[string][]int)
	var cats []string
	for _, p := range pairs {
		if p.Hour < minHour || p.Hour > maxHour {
			continue
		}
		row, ok := grid[p.Category]
		if !ok {
			row = make([]int, maxHour-minHour+1)
			cats = append(cats, p.Category)
		}
		row[p.Hour-minHour]++
		grid[p.Category] = row
	}
	sort.Strings(cats)

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "\t")
	for h := minHour; h <= maxHour; h++ {
		fmt.Fprintf(tw, "%02d\t", h)
	}
	fmt.Fprintln(tw)
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t", c)
		for _, n := range grid[c] {
			if n == 0 {
				fmt.Fprint(tw, ".\t")
				continue
			}
			fmt.Fprintf(tw, "%d\t", n)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}
