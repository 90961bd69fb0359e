package progress

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/Jacob-Makopo/FileWhatwhat/stats"
)

// Bar tracks scanned documents on a pterm progress bar.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	cached  int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar when logLevel is "info". cached is the number
// of documents the extraction cache already knows.
func New(total, cached int, logLevel string) *Bar {
	bar := &Bar{
		total:   total,
		cached:  cached,
		enabled: logLevel == "info" && total > 0,
	}

	if bar.enabled {
		pterm.Info.Printf("Documents to scan: %d\n", total)
		pterm.Info.Printf("Known to the extraction cache: %d\n", cached)
		pterm.Println()

		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Extracting dates").
			WithWriter(os.Stderr).
			Start()
		bar.pb = pb
	}

	return bar
}

// Update advances the bar on every scanned document.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		b.pb.Increment()
		if evt.Document != "" {
			b.pb.UpdateTitle("Scanning: " + truncate(evt.Document, 40))
		}
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	_, _ = b.pb.Stop()
	pterm.Success.Println("Scan complete!")
}

// Subscriber feeds runner events into the bar and stops it when the stream
// ends.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// Reporter prints a pterm summary once the event stream ends.
type Reporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewReporter subscribes the bar and a summary collector when the bar is
// enabled. It returns nil otherwise.
func NewReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *Reporter {
	if bar == nil || !bar.enabled {
		return nil
	}

	reporter := &Reporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("progress-bar", bar.Subscriber)
	stream.SubscribeStats("progress-stats", reporter.collectStats)
	return reporter
}

func (pr *Reporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	pr.collector.Run(ctx, events)
	summary := pr.collector.Snapshot()

	pterm.Println()
	pterm.DefaultSection.Println("Summary")
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Metric", "Count"},
		{"Scanned", itoa(summary.Scanned)},
		{"Skipped", itoa(summary.Skipped)},
		{"Dated", itoa(summary.Extracted)},
		{"Undated", itoa(summary.Undated)},
		{"Cached (duplicates)", itoa(summary.Duplicates)},
		{"Archived", itoa(summary.Archived)},
		{"Dry-run archived", itoa(summary.DryRunArchived)},
		{"Uploads filed", itoa(summary.Filed)},
		{"Errors", itoa(summary.Errors)},
	}).Render()
	pterm.Info.Printf("Duration: %v\n", time.Since(pr.started).Round(time.Millisecond))
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
	if len(summary.ByMonth) > 0 {
		pterm.DefaultSection.WithLevel(2).Println("Busiest months")
		stats.PrettyPrintTop(os.Stdout, summary.ByMonth, 5)
	}

	return nil
}
