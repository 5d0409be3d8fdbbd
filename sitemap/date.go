package sitemap

import (
	"regexp"
	"strings"
	"time"
)

// isoDateOnly matches the ISO forms that are read as UTC.
var isoDateOnly = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

var isoDateOnlyLayouts = []string{"2006-01-02", "2006-01", "2006"}

// zonedLayouts carry a numeric offset. Zone names are rewritten to offsets
// by replaceZoneName before these are tried.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04 -0700",
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Monday, 02-Jan-06 15:04:05 -0700",
	time.RFC822Z,
	"Mon Jan _2 15:04:05 -0700 2006",
	time.RubyDate,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"2 Jan 2006 15:04:05 -0700",
	"January 2, 2006 15:04:05 -0700",
}

// zoneOffsets are the only zone names Date.parse understands. Any other
// alphabetic zone token makes the string invalid.
var zoneOffsets = map[string]string{
	"Z":   "+0000",
	"UT":  "+0000",
	"UTC": "+0000",
	"GMT": "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// calendarWords are alphabetic tokens that are not zone names.
var calendarWords = func() map[string]bool {
	words := map[string]bool{"AM": true, "PM": true}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToUpper(m.String())
		words[name] = true
		words[name[:3]] = true
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToUpper(d.String())
		words[name] = true
		words[name[:3]] = true
	}
	return words
}()

// localLayouts are read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006-1-2 15:04:05",
	"January 2, 2006 15:04:05",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"2 January 2006 15:04:05",
	"2 January 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
	"Mon Jan 02 2006 15:04:05",
	"Mon Jan 02 2006",
	time.ANSIC,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006",
}

// parseDate reads s the way browsers and Node read date strings: ISO date-only
// forms are UTC, everything without an explicit zone is local to loc.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	if isoDateOnly.MatchString(s) {
		for _, layout := range isoDateOnlyLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}

	s, zoned, ok := replaceZoneName(s)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if zoned {
		return time.Time{}, false
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// replaceZoneName swaps a zone name such as PST for its numeric offset so
// the time package never invents a zero-offset zone for it. It reports
// whether a zone name was replaced, and fails on an unknown name or more
// than one.
func replaceZoneName(s string) (string, bool, bool) {
	fields := strings.Fields(s)
	zoned := false
	for i, f := range fields {
		if !isAlpha(f) {
			continue
		}
		name := strings.ToUpper(f)
		if calendarWords[name] {
			continue
		}
		offset, ok := zoneOffsets[name]
		if !ok || zoned {
			return s, false, false
		}
		fields[i] = offset
		zoned = true
	}
	if !zoned {
		return s, false, true
	}
	return strings.Join(fields, " "), true, true
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return s != ""
}
