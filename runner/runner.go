// Package runner wires the scan pipeline: a source stage feeds documents
// through the filter and the extraction cache to a pool of extraction
// workers, whose results are handed to every registered sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/filter"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
	"github.com/Jacob-Makopo/FileWhatwhat/state"
	"github.com/Jacob-Makopo/FileWhatwhat/stats"
)

var ErrHashMissing = errors.New("document missing content hash")

type StageFunc func(context.Context) error

// Sink consumes extraction results. Handle is called from a single
// goroutine; Finish runs once after the last result.
type Sink interface {
	Handle(ctx context.Context, res model.Result) error
	Finish(ctx context.Context) error
}

type Options struct {
	Workers   int
	Filter    *filter.Filter
	Tracker   state.Tracker
	Extractor *extract.Extractor
}

type Runner struct {
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	documents chan model.Envelope
	jobs      chan model.Document
	results   chan model.Result
	events    chan stats.Event

	sinks       []namedSink
	subscribers []chan stats.Event

	workWG   sync.WaitGroup
	statsWG  sync.WaitGroup
	fanoutWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSourceOnce sync.Once
	closeJobsOnce   sync.Once
	closeEventsOnce sync.Once
	since           time.Time
}

type namedSink struct {
	name string
	sink Sink
}

func New(opts Options, logger *slog.Logger) (*Runner, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Tracker == nil {
		opts.Tracker = state.NewMemoryTracker()
	}
	if opts.Filter == nil {
		f, err := filter.New(filter.Options{})
		if err != nil {
			return nil, fmt.Errorf("default filter: %w", err)
		}
		opts.Filter = f
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		documents: make(chan model.Envelope, 32),
		jobs:      make(chan model.Document, 32),
		results:   make(chan model.Result, 32),
		events:    make(chan stats.Event, 128),
	}

	r.AddStage("bridge", r.bridge)
	r.AddStage("extract", r.extractAll)
	return r, nil
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Tracker() state.Tracker {
	return r.opts.Tracker
}

func (r *Runner) SourceWriter() chan<- model.Envelope {
	return r.documents
}

func (r *Runner) CloseSource() {
	r.closeSourceOnce.Do(func() {
		close(r.documents)
	})
}

// AddSink registers a consumer of results. Sinks must be added before Start.
func (r *Runner) AddSink(name string, s Sink) {
	r.sinks = append(r.sinks, namedSink{name: name, sink: s})
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

// SubscribeStats gives fn its own copy of every event. Subscribers must be
// added before Start.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	ch := make(chan stats.Event, cap(r.events))
	r.subscribers = append(r.subscribers, ch)

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

// Start runs the pipeline to completion and returns the first stage error.
func (r *Runner) Start() error {
	r.since = time.Now()
	r.AddStage("sinks", r.dispatch)

	r.fanoutWG.Add(1)
	go r.fanout()

	r.workWG.Wait()
	r.closeEvents()
	r.fanoutWG.Wait()
	r.statsWG.Wait()

	r.cancel()

	r.errMu.Lock()
	err := r.err
	r.errMu.Unlock()

	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

// bridge filters documents and answers cached ones without extraction.
func (r *Runner) bridge(ctx context.Context) error {
	defer r.closeJobs()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.documents:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Err: envelope.Err})
				continue
			}

			doc := envelope.Document
			r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeScanned, Document: doc.Name})

			if allowed, reason := r.opts.Filter.Allows(doc); !allowed {
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeSkipped, Document: doc.Name, Detail: string(reason)})
				continue
			}

			if doc.Hash == "" {
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Document: doc.Name, Err: ErrHashMissing})
				continue
			}

			if entry, seen := r.opts.Tracker.Lookup(doc.Hash); seen {
				r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeDuplicate, Document: doc.Name})
				res, err := cachedResult(doc, entry)
				if err != nil {
					r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Document: doc.Name, Err: err})
					continue
				}
				if err := r.sendResult(ctx, res); err != nil {
					return err
				}
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.jobs <- doc:
			}
		}
	}
}

// extractAll runs the worker pool and closes results once all are done.
func (r *Runner) extractAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, r.opts.Workers)

	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.worker(ctx); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(r.results)
	close(errs)
	return <-errs
}

func (r *Runner) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case doc, ok := <-r.jobs:
			if !ok {
				return nil
			}

			date, found := r.opts.Extractor.Extract(doc.Raw, doc.Extension)
			res := model.Result{Document: doc, Date: date, Found: found}

			if err := r.opts.Tracker.Record(doc.Hash, state.Entry{Name: doc.Name, Date: res.DateString()}); err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeError, Document: doc.Name, Err: err})
				return fmt.Errorf("record %s: %w", doc.Name, err)
			}

			if found {
				r.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeExtracted, Document: doc.Name, Date: date})
				if r.logger != nil {
					r.logger.Debug("date extracted", "document", doc.Name, "date", date)
				}
			} else {
				r.EmitEvent(stats.Event{Stage: stats.StageExtract, Type: stats.EventTypeUndated, Document: doc.Name})
			}

			if err := r.sendResult(ctx, res); err != nil {
				return err
			}
		}
	}
}

// sendResult is safe from both bridge and workers: results closes only
// after every worker has returned, and workers only return after bridge
// has closed jobs.
func (r *Runner) sendResult(ctx context.Context, res model.Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.results <- res:
		return nil
	}
}

func (r *Runner) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-r.results:
			if !ok {
				for _, s := range r.sinks {
					if err := s.sink.Finish(ctx); err != nil {
						return fmt.Errorf("%s finish: %w", s.name, err)
					}
				}
				return nil
			}
			for _, s := range r.sinks {
				if err := s.sink.Handle(ctx, res); err != nil {
					return fmt.Errorf("%s: %w", s.name, err)
				}
			}
		}
	}
}

func (r *Runner) fanout() {
	defer r.fanoutWG.Done()
	defer func() {
		for _, ch := range r.subscribers {
			close(ch)
		}
	}()

	for evt := range r.events {
		for _, ch := range r.subscribers {
			select {
			case <-r.ctx.Done():
			case ch <- evt:
			}
		}
	}
}

func cachedResult(doc model.Document, entry state.Entry) (model.Result, error) {
	res := model.Result{Document: doc, Cached: true}
	if entry.Date == nil {
		return res, nil
	}
	t, err := time.Parse(model.DateLayout, *entry.Date)
	if err != nil {
		return model.Result{}, fmt.Errorf("cached date for %s: %w", doc.Name, err)
	}
	res.Date, res.Found = t, true
	return res, nil
}

func (r *Runner) closeJobs() {
	r.closeJobsOnce.Do(func() {
		close(r.jobs)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
