package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageSource  Stage = "source"
	StageExtract Stage = "extract"
	StageIMAP    Stage = "imap"
	StageUpload  Stage = "upload"
)

type EventType string

const (
	EventTypeScanned       EventType = "scanned"
	EventTypeSkipped       EventType = "skipped"
	EventTypeExtracted     EventType = "extracted"
	EventTypeUndated       EventType = "undated"
	EventTypeDuplicate     EventType = "duplicate"
	EventTypeArchived      EventType = "archived"
	EventTypeDryRunArchive EventType = "dry_run_archived"
	EventTypeFiled         EventType = "filed"
	EventTypeError         EventType = "error"
)

type Event struct {
	Stage    Stage
	Type     EventType
	Document string
	Err      error
	Detail   string
	// Date is set on extracted events.
	Date time.Time
}

type Summary struct {
	Scanned         int
	Skipped         int
	Extracted       int
	Undated         int
	Duplicates      int
	Archived        int
	DryRunArchived  int
	Filed           int
	Errors          int
	LastError       error
	ByMonth         map[string]int
	SkippedByReason map[string]int
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"skipped", s.Skipped,
		"extracted", s.Extracted,
		"undated", s.Undated,
		"duplicates", s.Duplicates,
		"archived", s.Archived,
		"dryRunArchived", s.DryRunArchived,
		"filed", s.Filed,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{summary: Summary{
		ByMonth:         make(map[string]int),
		SkippedByReason: make(map[string]int),
	}}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}

// Snapshot returns a copy safe to read while collection continues.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := c.summary
	summary.ByMonth = copyCounts(c.summary.ByMonth)
	summary.SkippedByReason = copyCounts(c.summary.SkippedByReason)
	return summary
}

func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeSkipped:
		c.summary.Skipped++
		c.summary.SkippedByReason[evt.Detail]++
	case EventTypeExtracted:
		c.summary.Extracted++
		if !evt.Date.IsZero() {
			c.summary.ByMonth[evt.Date.Format("2006-01")]++
		}
	case EventTypeUndated:
		c.summary.Undated++
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeArchived:
		c.summary.Archived++
	case EventTypeDryRunArchive:
		c.summary.DryRunArchived++
	case EventTypeFiled:
		c.summary.Filed++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// PrettyPrintTop writes the top N most frequent items in a map, ties
// broken by key.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	pairs := make([]pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
