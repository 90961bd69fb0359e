package model

import "time"

// DateLayout is how extracted dates are stored alongside an upload.
const DateLayout = "2006-01-02 15:04:05"

// Document is a single uploaded email file.
type Document struct {
	Name      string
	Extension string
	Source    string
	Hash      string
	Size      int64
	Raw       []byte
}

// Envelope wraps a document alongside an optional error encountered while reading it.
type Envelope struct {
	Document Document
	Err      error
}

// Result is the outcome of date extraction for one document.
type Result struct {
	Document Document
	Date     time.Time
	Found    bool
	Cached   bool
}

// DateString renders the extracted date, or nil when none was found.
func (r Result) DateString() *string {
	return FormatDate(r.Date, r.Found)
}

// FormatDate renders t in DateLayout when ok is set.
func FormatDate(t time.Time, ok bool) *string {
	if !ok {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
