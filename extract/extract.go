// Package extract recovers the date an email was sent from an uploaded .eml
// or .msg file. Extraction is best effort: a missing or unreadable date is
// reported as absent, never as an error.
package extract

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Supported file extensions.
const (
	ExtEML = "eml"
	ExtMSG = "msg"
)

// Extractor is immutable and safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// New returns an Extractor that reports its fallback steps at debug level.
// A nil logger disables logging.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

var defaultExtractor = New(nil)

// Extract is shorthand for an Extractor without logging.
func Extract(content []byte, extension string) (time.Time, bool) {
	return defaultExtractor.Extract(content, extension)
}

// Extract dispatches on the lower-cased extension without a leading dot.
// Any extension other than "eml" and "msg" yields no date and the content is
// not inspected.
func (e *Extractor) Extract(content []byte, extension string) (time.Time, bool) {
	var (
		t  time.Time
		ok bool
	)

	switch extension {
	case ExtEML:
		t, ok = e.FromHeaders(string(content))
	case ExtMSG:
		t, ok = e.FromPatterns(string(content))
		if !ok {
			if text, wide := utf16View(content); wide {
				t, ok = e.FromPatterns(text)
			}
		}
	default:
		return time.Time{}, false
	}

	if !ok {
		e.debug("no date could be extracted", "extension", extension)
	}
	return t, ok
}

// ExtensionOf returns the lower-cased extension of a file name without the
// dot, the form Extract expects.
func ExtensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// utf16View decodes content as UTF-16LE when it contains NUL bytes, which is
// how Outlook stores most string properties.
func utf16View(content []byte) (string, bool) {
	if bytes.IndexByte(content, 0) < 0 {
		return "", false
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(content)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func (e *Extractor) debug(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Debug(msg, args...)
}
