package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultTimezone is the canonical zone when none is configured.
const DefaultTimezone = "America/New_York"

// ErrUnparseableTime means no accepted layout matched.
var ErrUnparseableTime = errors.New("unrecognized date/time format")

// zonedLayouts carry their own offset or zone name.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05 -0700",
}

// zoneOffsets resolves the North American abbreviations that campus mail
// and feeds carry, in seconds east of UTC.
var zoneOffsets = map[string]int{
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"AKST": -9 * 3600, "AKDT": -8 * 3600,
	"HST": -10 * 3600,
}

// naiveLayouts are wall-clock times in the canonical zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 3 PM",
	"2006-01-02 3PM",
	"2006-01-02",
	"Monday, January 2, 2006 3:04 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 3:04PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"01/02/2006",
}

// clockLayouts have no date; the date comes from a reference.
var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

var (
	amSuffix = regexp.MustCompile(`(?i)([0-9\s])a\.?m\.?(\s|$)`)
	pmSuffix = regexp.MustCompile(`(?i)([0-9\s])p\.?m\.?(\s|$)`)
)

// ParseTime parses s into loc. Values with an offset or zone are converted
// into loc; values without one are read as wall-clock time in loc.
// Time-only values take their date from ref (in loc), or from now when ref
// is nil.
func ParseTime(s string, ref *time.Time, loc *time.Location, now func() time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseableTime
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range zonedLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "MST") {
			if t, err = resolveZone(t, loc); err != nil {
				return time.Time{}, err
			}
		}
		return t.In(loc), nil
	}

	// Layouts expect upper-case AM/PM without dots.
	clean := amSuffix.ReplaceAllString(s, "${1}AM${2}")
	clean = pmSuffix.ReplaceAllString(clean, "${1}PM${2}")
	clean = strings.Join(strings.Fields(clean), " ")

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, clean, loc); err == nil {
			return t, nil
		}
	}

	for _, layout := range clockLayouts {
		c, err := time.Parse(layout, clean)
		if err != nil {
			continue
		}
		var day time.Time
		switch {
		case ref != nil:
			day = ref.In(loc)
		case now != nil:
			day = now().In(loc)
		default:
			day = time.Now().In(loc)
		}
		y, m, d := day.Date()
		return time.Date(y, m, d, c.Hour(), c.Minute(), c.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
}

// resolveZone corrects a time parsed with a zone abbreviation that loc does
// not define. time.ParseInLocation gives such a zone a zero offset, so
// "11:00 PST" would otherwise read as 11:00 UTC.
func resolveZone(t time.Time, loc *time.Location) (time.Time, error) {
	if t.Location() == loc || t.Location() == time.UTC {
		return t, nil
	}
	name, offset := t.Zone()
	if offset != 0 {
		return t, nil
	}
	switch name {
	case "", "GMT", "UT", "UTC", "Z":
		return t, nil
	}
	off, ok := zoneOffsets[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown time zone %q", ErrUnparseableTime, name)
	}
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.FixedZone(name, off)), nil
}
