package upload

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
	"github.com/Jacob-Makopo/FileWhatwhat/stats"
)

type EventEmitter interface {
	EmitEvent(stats.Event)
}

// Filer collects scan results and files them as one upload per company
// when the scan finishes. Results are filed in source order.
type Filer struct {
	svc            *Service
	events         EventEmitter
	companyIDs     []int64
	municipalityID int64
	dryRun         bool

	mu      sync.Mutex
	results []model.Result
	filed   []model.Upload
}

func NewFiler(svc *Service, companyIDs []int64, municipalityID int64, dryRun bool, events EventEmitter) *Filer {
	return &Filer{
		svc:            svc,
		events:         events,
		companyIDs:     companyIDs,
		municipalityID: municipalityID,
		dryRun:         dryRun,
	}
}

func (f *Filer) Handle(_ context.Context, res model.Result) error {
	res.Document.Raw = nil
	f.mu.Lock()
	f.results = append(f.results, res)
	f.mu.Unlock()
	return nil
}

func (f *Filer) Finish(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.results) == 0 {
		return nil
	}
	sort.SliceStable(f.results, func(i, j int) bool {
		return f.results[i].Document.Source < f.results[j].Document.Source
	})

	if f.dryRun {
		if f.svc.logger != nil {
			f.svc.logger.Info("dry-run: upload not filed", "files", len(f.results), "companies", len(f.companyIDs))
		}
		return nil
	}

	uploads, err := f.svc.File(ctx, Filing{
		CompanyIDs:     f.companyIDs,
		MunicipalityID: f.municipalityID,
		Results:        f.results,
	})
	for _, u := range uploads {
		f.emit(stats.Event{Stage: stats.StageUpload, Type: stats.EventTypeFiled, Document: u.Reference})
	}
	f.filed = uploads
	if err != nil {
		f.emit(stats.Event{Stage: stats.StageUpload, Type: stats.EventTypeError, Err: err})
		return fmt.Errorf("file upload: %w", err)
	}
	return nil
}

// Filed returns the uploads created by Finish.
func (f *Filer) Filed() []model.Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filed
}

func (f *Filer) emit(evt stats.Event) {
	if f.events != nil {
		f.events.EmitEvent(evt)
	}
}
