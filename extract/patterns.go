package extract

import (
	"regexp"
	"strings"
	"time"
)

// labelPatterns capture the value after a header-like label, in priority
// order. Only the first occurrence of each label is considered.
var labelPatterns = [...]*regexp.Regexp{
	regexp.MustCompile(`(?i)\bDate:\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bSent:\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bCreation-Date:\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bDelivery-Date:\s*([^\r\n]+)`),
	regexp.MustCompile(`(?i)\bReceived:\s*([^\r\n]+)`),
}

// contentPatterns find free-form dates anywhere in the text, in priority
// order.
var contentPatterns = [...]*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4}\b`),
	regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{2,4}\b`),
}

// candidate is one date string found in the content.
type candidate struct {
	source string
	value  string
}

// candidates lists every date string worth trying, labelled values first.
func candidates(content string) []candidate {
	var out []candidate
	for _, re := range labelPatterns {
		m := re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			out = append(out, candidate{source: "label", value: v})
		}
	}
	for _, re := range contentPatterns {
		if m := re.FindString(content); m != "" {
			out = append(out, candidate{source: "content", value: strings.TrimSpace(m)})
		}
	}
	return out
}

// FromPatterns scans loosely structured text, such as an Outlook .msg
// file, for a date. The first candidate that parses wins; a labelled value
// that cannot be parsed does not stop the scan.
func (e *Extractor) FromPatterns(content string) (time.Time, bool) {
	for _, c := range candidates(content) {
		if t, ok := ParseDirect(c.value); ok {
			return t, true
		}

		e.debug("date candidate unparseable, trying alternative formats", "source", c.source, "date", c.value)
		if t, ok := e.Normalize(c.value); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
