package extract

import (
	"regexp"
	"strings"
	"time"
)

var (
	parentheticalRe = regexp.MustCompile(`\([^)]+\)`)
	zoneYearRe      = regexp.MustCompile(`[A-Z]{3,5}\s*-\s*\d{4}`)
	weekdayRe       = regexp.MustCompile(`(?i)\b(Mon|Tue|Wed|Thu|Fri|Sat|Sun)[a-z]*,\s*`)
	spaceRunRe      = regexp.MustCompile(`\s+`)
)

// fallbackFormat is one entry of the explicit format table. A format with a
// four digit year also accepts a two digit year through its short layout.
type fallbackFormat struct {
	name   string
	layout string
	short  string
}

// fallbackFormats is tried in order against the cleaned string. Numeric
// forms are always day first.
var fallbackFormats = [...]fallbackFormat{
	{"d/m/Y H:i:s", "2/1/2006 15:04:05", "2/1/06 15:04:05"},
	{"d/m/Y H:i", "2/1/2006 15:04", "2/1/06 15:04"},
	{"d/m/Y", "2/1/2006", "2/1/06"},
	{"d-m-Y H:i:s", "2-1-2006 15:04:05", "2-1-06 15:04:05"},
	{"d-m-Y H:i", "2-1-2006 15:04", "2-1-06 15:04"},
	{"d-m-Y", "2-1-2006", "2-1-06"},
	{"d.m.Y H:i:s", "2.1.2006 15:04:05", "2.1.06 15:04:05"},
	{"d.m.Y H:i", "2.1.2006 15:04", "2.1.06 15:04"},
	{"d.m.Y", "2.1.2006", "2.1.06"},
	{"Y-m-d H:i:s", "2006-1-2 15:04:05", ""},
	{"Y-m-d H:i", "2006-1-2 15:04", ""},
	{"Y-m-d", "2006-1-2", ""},
	{"M j, Y H:i:s", "Jan 2, 2006 15:04:05", ""},
	{"M j, Y", "Jan 2, 2006", ""},
	{"j M Y H:i:s", "2 Jan 2006 15:04:05", ""},
	{"j M Y", "2 Jan 2006", ""},
}

func (f fallbackFormat) parse(s string) (time.Time, bool) {
	if t, err := time.Parse(f.layout, s); err == nil {
		return t, true
	}
	if f.short == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(f.short, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Clean strips the decorations that commonly break date parsing: comments
// in parentheses, "ZONE - YEAR" artifacts and leading weekday names. Runs of
// whitespace collapse to a single space.
func Clean(raw string) string {
	cleaned := parentheticalRe.ReplaceAllString(raw, " ")
	cleaned = zoneYearRe.ReplaceAllString(cleaned, " ")
	cleaned = weekdayRe.ReplaceAllString(cleaned, " ")
	cleaned = spaceRunRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// Normalize retries a date string that failed direct parsing: first the
// cleaned string is parsed directly, then every fallback format is tried in
// order.
func (e *Extractor) Normalize(raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return time.Time{}, false
	}

	if t, ok := ParseDirect(cleaned); ok {
		return t, true
	}

	for _, f := range fallbackFormats {
		if t, ok := f.parse(cleaned); ok {
			e.debug("date matched fallback format", "raw", raw, "format", f.name)
			return t, true
		}
	}

	return time.Time{}, false
}
