package extract

import (
	"regexp"
	"strings"
	"time"
)

var headerLineRe = regexp.MustCompile(`^([^:]+):\s*(.+)$`)

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// HeaderMap maps lower-cased header names to trimmed values.
type HeaderMap map[string]string

// Get returns the value stored under the lower-cased name.
func (h HeaderMap) Get(name string) (string, bool) {
	v, ok := h[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// ParseHeaders reads the header block, i.e. every line before the first
// blank one. Folded continuation lines are not joined and a repeated header
// keeps its last value.
func ParseHeaders(content string) HeaderMap {
	headers := make(HeaderMap)
	for _, line := range strings.Split(lineBreaks.Replace(content), "\n") {
		if strings.TrimSpace(line) == "" {
			break
		}

		m := headerLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(m[1]))] = strings.TrimSpace(m[2])
	}
	return headers
}

// FromHeaders resolves the Date header of an RFC 5322 message.
func (e *Extractor) FromHeaders(content string) (time.Time, bool) {
	date, ok := ParseHeaders(content).Get("date")
	if !ok || date == "" {
		return time.Time{}, false
	}

	if t, ok := ParseDirect(date); ok {
		return t, true
	}

	e.debug("header date unparseable, trying alternative formats", "date", date)
	return e.Normalize(date)
}
