// Package filter decides which documents a scan extracts.
package filter

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

// Options captures the filtering configuration. Include and exclude
// patterns are mutually exclusive.
type Options struct {
	Extensions    []string
	IncludeName   []string
	IncludeHeader []string
	IncludeBody   []string
	ExcludeName   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// DefaultExtensions are the document types the extractor understands.
var DefaultExtensions = []string{extract.ExtEML, extract.ExtMSG}

// Reason explains why a document was rejected.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonExtension Reason = "extension"
	ReasonInclude   Reason = "include"
	ReasonExclude   Reason = "exclude"
)

// Filter holds compiled patterns and counts how often each one matched.
type Filter struct {
	extensions  map[string]struct{}
	includeMode bool
	excludeMode bool
	include     []*pattern
	exclude     []*pattern

	mu   sync.Mutex
	hits map[string]int
}

type part string

const (
	partName   part = "name"
	partHeader part = "header"
	partBody   part = "body"
)

type pattern struct {
	part part
	re   *regexp.Regexp
}

func (p *pattern) key() string {
	return string(p.part) + ":" + p.re.String()
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	f := &Filter{
		extensions: make(map[string]struct{}),
		hits:       make(map[string]int),
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			f.extensions[ext] = struct{}{}
		}
	}

	groups := []struct {
		label string
		part  part
		raw   []string
		dst   *[]*pattern
	}{
		{"include-name", partName, opts.IncludeName, &f.include},
		{"include-header", partHeader, opts.IncludeHeader, &f.include},
		{"include-body", partBody, opts.IncludeBody, &f.include},
		{"exclude-name", partName, opts.ExcludeName, &f.exclude},
		{"exclude-header", partHeader, opts.ExcludeHeader, &f.exclude},
		{"exclude-body", partBody, opts.ExcludeBody, &f.exclude},
	}
	for _, g := range groups {
		compiled, err := compilePatterns(g.raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern: %w", g.label, err)
		}
		for _, re := range compiled {
			*g.dst = append(*g.dst, &pattern{part: g.part, re: re})
		}
	}

	f.includeMode = len(f.include) > 0
	f.excludeMode = len(f.exclude) > 0
	if f.includeMode && f.excludeMode {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}
	return f, nil
}

// Allows reports whether doc should be extracted, and why not when it
// should not.
func (f *Filter) Allows(doc model.Document) (bool, Reason) {
	if _, ok := f.extensions[doc.Extension]; !ok {
		return false, ReasonExtension
	}

	if !f.includeMode && !f.excludeMode {
		return true, ReasonNone
	}

	header, body := documentParts(doc)
	texts := map[part]string{
		partName:   doc.Name,
		partHeader: string(header),
		partBody:   string(body),
	}

	if f.includeMode {
		if f.matchAny(f.include, texts) {
			return true, ReasonNone
		}
		return false, ReasonInclude
	}

	if f.matchAny(f.exclude, texts) {
		return false, ReasonExclude
	}
	return true, ReasonNone
}

// Stats reports how many documents each pattern matched.
type Stats struct {
	Include map[string]int
	Exclude map[string]int
}

func (f *Filter) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Stats{Include: make(map[string]int), Exclude: make(map[string]int)}
	for _, p := range f.include {
		s.Include[p.key()] = f.hits[p.key()]
	}
	for _, p := range f.exclude {
		s.Exclude[p.key()] = f.hits[p.key()]
	}
	return s
}

func (f *Filter) matchAny(patterns []*pattern, texts map[part]string) bool {
	for _, p := range patterns {
		if p.re.MatchString(texts[p.part]) {
			f.mu.Lock()
			f.hits[p.key()]++
			f.mu.Unlock()
			return true
		}
	}
	return false
}

// documentParts splits an .eml into header and body. An .msg has no
// reliable boundary, so both parts are the whole content.
func documentParts(doc model.Document) (header, body []byte) {
	if doc.Extension == extract.ExtMSG {
		return doc.Raw, doc.Raw
	}
	return SplitRawMessage(doc.Raw)
}

// SplitRawMessage splits a raw email message into header and body parts.
func SplitRawMessage(raw []byte) (header, body []byte) {
	if len(raw) == 0 {
		return nil, nil
	}

	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:]
	}

	return raw, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
