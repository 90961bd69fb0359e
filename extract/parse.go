package extract

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// obsZones are the RFC 5322 obsolete zone names and their offsets in hours.
var obsZones = map[string]int{
	"UT": 0, "UTC": 0, "GMT": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// directLayouts are tried after net/mail.ParseDate. Numeric day/month forms
// with slashes, dashes or dots are absent on purpose: they are day-first and
// only resolved by the normalization table.
var directLayouts = [...]string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",

	// RFC 5322 without a zone, seen in hand-edited exports.
	"Mon, _2 Jan 2006 15:04:05",
	"_2 Jan 2006 15:04:05",
	"_2 Jan 2006",
	"_2 January 2006 15:04:05",
	"_2 January 2006",

	// Outlook "Sent:" lines.
	"Monday, January 2, 2006 3:04 PM",
	"Monday, January 2, 2006 3:04:05 PM",
	"Monday, January 2, 2006 15:04",
	"Mon, Jan 2, 2006 at 3:04 PM",

	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006 15:04:05",
	"January 2, 2006",
	"January 2 2006",
	"Mon Jan _2 15:04:05 2006",
	"Mon Jan _2 15:04:05 MST 2006",
	"Mon Jan _2 15:04:05 -0700 2006",
}

// ParseDirect parses a calendar date string in one of the well-known mail
// and ISO layouts. It reports false when no layout matches the whole string.
func ParseDirect(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	s = numericZones(s)

	if t, err := mail.ParseDate(s); err == nil {
		return detach(t, s), true
	}

	for _, layout := range directLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return detach(t, s), true
		}
	}

	return time.Time{}, false
}

// numericZones rewrites obsolete zone names as numeric offsets. A trailing
// military letter counts as -0000, as RFC 5322 section 4.3 asks.
func numericZones(s string) string {
	fields := strings.Fields(s)
	changed := false
	for i, f := range fields {
		if h, ok := obsZones[strings.ToUpper(f)]; ok {
			fields[i] = fmt.Sprintf("%+03d00", h)
			changed = true
			continue
		}
		if i == len(fields)-1 && i > 0 && militaryZone(f) {
			fields[i] = "-0000"
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(fields, " ")
}

func militaryZone(f string) bool {
	return len(f) == 1 && f[0] >= 'A' && f[0] <= 'Z' && f[0] != 'J'
}

// detach moves t off time.Local. time.Parse reads a zone abbreviation with
// the local offset when the host zone uses that name; such a value is read
// at offset zero instead, as on any other host.
func detach(t time.Time, s string) time.Time {
	if loc := t.Location(); loc != time.Local || loc == time.UTC {
		return t
	}
	name, offset := t.Zone()
	for _, f := range strings.Fields(s) {
		if f == name {
			offset = 0
			break
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, offset))
}
