// Package upload files submitted email documents as upload records, one per
// company, with the date extracted from each document.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
	"github.com/Jacob-Makopo/FileWhatwhat/store"
)

var (
	ErrNoFiles     = errors.New("at least one original file is required")
	ErrNoCompanies = errors.New("at least one company is required")
)

const referenceLength = 10

// File is one submitted file. Only its name is recorded.
type File struct {
	Name    string
	Content []byte
}

// Request carries a submission as received from a client.
type Request struct {
	CompanyIDs        []int64
	MunicipalityID    int64
	OriginalFiles     []File
	WorkingsFile      *File
	SystemsImportFile *File
}

// Filing carries documents whose dates are already known.
type Filing struct {
	CompanyIDs            []int64
	MunicipalityID        int64
	Results               []model.Result
	WorkingsFileName      *string
	SystemsImportFileName *string
}

type Options struct {
	Now       func() time.Time
	NewID     func() string
	Extractor *extract.Extractor
}

type Service struct {
	store     store.Store
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	extractor *extract.Extractor
}

func NewService(s store.Store, opts Options, logger *slog.Logger) *Service {
	svc := &Service{
		store:     s,
		logger:    logger,
		now:       opts.Now,
		newID:     opts.NewID,
		extractor: opts.Extractor,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	if svc.extractor == nil {
		svc.extractor = extract.New(logger)
	}
	return svc
}

// Create extracts a date from every original file and files the result.
// A file without a recoverable date is recorded with a null date.
func (s *Service) Create(ctx context.Context, req Request) ([]model.Upload, error) {
	if len(req.OriginalFiles) == 0 {
		return nil, ErrNoFiles
	}

	results := make([]model.Result, 0, len(req.OriginalFiles))
	for i, f := range req.OriginalFiles {
		doc := model.Document{
			Name:      f.Name,
			Extension: extract.ExtensionOf(f.Name),
			Size:      int64(len(f.Content)),
		}
		date, ok := s.extractor.Extract(f.Content, doc.Extension)
		res := model.Result{Document: doc, Date: date, Found: ok}
		s.logFile(i, res)
		results = append(results, res)
	}

	filing := Filing{
		CompanyIDs:     req.CompanyIDs,
		MunicipalityID: req.MunicipalityID,
		Results:        results,
	}
	if req.WorkingsFile != nil {
		filing.WorkingsFileName = &req.WorkingsFile.Name
	}
	if req.SystemsImportFile != nil {
		filing.SystemsImportFileName = &req.SystemsImportFile.Name
	}
	return s.File(ctx, filing)
}

// File stores one upload per company. Every record shares the same file
// names and extracted dates.
func (s *Service) File(ctx context.Context, f Filing) ([]model.Upload, error) {
	if len(f.Results) == 0 {
		return nil, ErrNoFiles
	}
	if len(f.CompanyIDs) == 0 {
		return nil, ErrNoCompanies
	}

	names := make([]string, len(f.Results))
	dates := make([]*string, len(f.Results))
	for i, r := range f.Results {
		names[i] = r.Document.Name
		dates[i] = r.DateString()
	}

	now := s.now()
	var importDate *time.Time
	if f.SystemsImportFileName != nil {
		importDate = &now
	}

	uploads := make([]model.Upload, 0, len(f.CompanyIDs))
	for _, companyID := range f.CompanyIDs {
		u := model.Upload{
			ID:                    s.newID(),
			Reference:             s.reference(),
			CompanyID:             companyID,
			MunicipalityID:        f.MunicipalityID,
			Status:                model.StatusPending,
			OriginalFileNames:     slices.Clone(names),
			ExtractedDates:        cloneDates(dates),
			WorkingsFileName:      clonePtr(f.WorkingsFileName),
			SystemsImportFileName: clonePtr(f.SystemsImportFileName),
			SystemImportDate:      clonePtr(importDate),
			SubmittedAt:           now,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := s.store.Save(ctx, u); err != nil {
			return uploads, fmt.Errorf("save upload for company %d: %w", companyID, err)
		}
		if s.logger != nil {
			s.logger.Info("upload filed", "id", u.ID, "reference", u.Reference, "company", companyID, "files", len(names))
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// cloneDates copies dates and the strings they point at, so records filed
// together never share state.
func cloneDates(dates []*string) []*string {
	out := make([]*string, len(dates))
	for i, d := range dates {
		out[i] = clonePtr(d)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SetStatus moves an upload to status.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (model.Upload, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Upload{}, err
	}
	u.Status = status
	u.UpdatedAt = s.now()
	if err := s.store.Save(ctx, u); err != nil {
		return model.Upload{}, fmt.Errorf("update status of %s: %w", id, err)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Upload, error) {
	return s.store.Get(ctx, id)
}

// List applies f, defaulting an open date range to the last month.
func (s *Service) List(ctx context.Context, f store.Filter) ([]model.Upload, error) {
	if f.From.IsZero() && f.To.IsZero() {
		f.From, f.To = DefaultRange(s.now())
	}
	return s.store.List(ctx, f)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// DefaultRange is the listing window used when none is given: one month
// back from now.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, -1, 0), now
}

// reference is ten upper-case characters derived from a fresh id.
func (s *Service) reference() string {
	id := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(id) < referenceLength {
		id += strings.Repeat("X", referenceLength-len(id))
	}
	return id[:referenceLength]
}

func (s *Service) logFile(index int, r model.Result) {
	if s.logger == nil {
		return
	}
	date := "null"
	if d := r.DateString(); d != nil {
		date = *d
	}
	s.logger.Info("file processed", "index", index, "name", r.Document.Name, "extractedDate", date)
}
