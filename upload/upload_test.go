package upload

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
	"github.com/Jacob-Makopo/FileWhatwhat/stats"
	"github.com/Jacob-Makopo/FileWhatwhat/store"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	n := 0
	svc := NewService(s, Options{
		Now: func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("%08x-0000-4000-8000-%012x", n, n)
		},
	}, nil)
	return svc, s
}

func TestCreate_OneRecordPerCompany(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	req := Request{
		CompanyIDs:     []int64{11, 12},
		MunicipalityID: 4,
		OriginalFiles: []File{
			{Name: "March.EML", Content: []byte("Date: Tue, 07 Mar 2023 10:15:00 +0000\r\n\r\nbody")},
			{Name: "note.msg", Content: []byte("nothing useful here")},
			{Name: "scan.pdf", Content: []byte("Date: Tue, 07 Mar 2023 10:15:00 +0000")},
		},
		WorkingsFile: &File{Name: "workings.xlsx"},
	}

	uploads, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Len(t, uploads, 2)

	for i, u := range uploads {
		assert.Equal(t, req.CompanyIDs[i], u.CompanyID)
		assert.Equal(t, int64(4), u.MunicipalityID)
		assert.Equal(t, model.StatusPending, u.Status)
		assert.Len(t, u.Reference, referenceLength)
		assert.Equal(t, []string{"March.EML", "note.msg", "scan.pdf"}, u.OriginalFileNames)
		require.Len(t, u.ExtractedDates, 3)

		date, ok := u.ExtractedDate(0)
		assert.True(t, ok)
		assert.Equal(t, "2023-03-07 10:15:00", date)
		_, ok = u.ExtractedDate(1)
		assert.False(t, ok)
		_, ok = u.ExtractedDate(2)
		assert.False(t, ok)

		assert.Equal(t, "workings.xlsx", *u.WorkingsFileName)
		assert.Nil(t, u.SystemsImportFileName)
		assert.Nil(t, u.SystemImportDate)
		assert.Equal(t, fixedNow, u.SubmittedAt)

		stored, err := s.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Reference, stored.Reference)
	}
	assert.NotEqual(t, uploads[0].Reference, uploads[1].Reference)
}

func TestCreate_RecordsDoNotShareFields(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	uploads, err := svc.Create(ctx, Request{
		CompanyIDs:     []int64{1, 2},
		OriginalFiles:  []File{{Name: "a.eml", Content: []byte("Date: Tue, 07 Mar 2023 10:15:00 +0000\r\n\r\nbody")}},
		WorkingsFile:   &File{Name: "workings.xlsx"},
		MunicipalityID: 3,
	})
	require.NoError(t, err)
	require.Len(t, uploads, 2)

	first := uploads[0]
	first.OriginalFileNames[0] = "changed.eml"
	*first.ExtractedDates[0] = "1999-01-01 00:00:00"
	first.ExtractedDates = append(first.ExtractedDates[:0], nil)
	*first.WorkingsFileName = "other.xlsx"

	second := uploads[1]
	assert.Equal(t, []string{"a.eml"}, second.OriginalFileNames)
	date, ok := second.ExtractedDate(0)
	require.True(t, ok)
	assert.Equal(t, "2023-03-07 10:15:00", date)
	assert.Equal(t, "workings.xlsx", *second.WorkingsFileName)

	stored, err := s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.eml"}, stored.OriginalFileNames)
	assert.Equal(t, "workings.xlsx", *stored.WorkingsFileName)
}

func TestCreate_SystemsImportSetsDate(t *testing.T) {
	svc, _ := newTestService(t)

	uploads, err := svc.Create(context.Background(), Request{
		CompanyIDs:        []int64{1},
		MunicipalityID:    2,
		OriginalFiles:     []File{{Name: "a.eml"}},
		SystemsImportFile: &File{Name: "import.csv"},
	})
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	require.NotNil(t, uploads[0].SystemImportDate)
	assert.Equal(t, fixedNow, *uploads[0].SystemImportDate)
	assert.Equal(t, "import.csv", *uploads[0].SystemsImportFileName)
}

func TestCreate_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Request{CompanyIDs: []int64{1}})
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = svc.Create(ctx, Request{OriginalFiles: []File{{Name: "a.eml"}}})
	assert.ErrorIs(t, err, ErrNoCompanies)
}

func TestSetStatusAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	uploads, err := svc.File(ctx, Filing{
		CompanyIDs: []int64{9},
		Results:    []model.Result{{Document: model.Document{Name: "a.eml"}}},
	})
	require.NoError(t, err)
	id := uploads[0].ID

	u, err := svc.SetStatus(ctx, id, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, u.Status)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	require.NoError(t, svc.Delete(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.SetStatus(ctx, id, model.StatusRejected)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestList_DefaultRange(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	old := model.Upload{ID: "old", Reference: "OLDOLDOLDO", Status: model.StatusPending, SubmittedAt: fixedNow.AddDate(0, -2, 0)}
	recent := model.Upload{ID: "recent", Reference: "RECENTRECE", Status: model.StatusPending, SubmittedAt: fixedNow.AddDate(0, 0, -3)}
	require.NoError(t, s.Save(ctx, old))
	require.NoError(t, s.Save(ctx, recent))

	got, err := svc.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].ID)

	got, err = svc.List(ctx, store.Filter{From: fixedNow.AddDate(-1, 0, 0)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDefaultRange(t *testing.T) {
	from, to := DefaultRange(fixedNow)
	assert.Equal(t, time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC), from)
	assert.Equal(t, fixedNow, to)
}

type eventLog struct {
	events []stats.Event
}

func (e *eventLog) EmitEvent(evt stats.Event) {
	e.events = append(e.events, evt)
}

func TestFiler(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	events := &eventLog{}
	date := time.Date(2023, time.March, 7, 10, 15, 0, 0, time.UTC)

	f := NewFiler(svc, []int64{1, 2}, 5, false, events)
	require.NoError(t, f.Handle(ctx, model.Result{Document: model.Document{Name: "b.msg", Source: "in/b.msg", Raw: []byte("x")}}))
	require.NoError(t, f.Handle(ctx, model.Result{Document: model.Document{Name: "a.eml", Source: "in/a.eml"}, Date: date, Found: true}))
	require.NoError(t, f.Finish(ctx))

	filed := f.Filed()
	require.Len(t, filed, 2)
	assert.Equal(t, []string{"a.eml", "b.msg"}, filed[0].OriginalFileNames)
	assert.Equal(t, "2023-03-07 10:15:00", *filed[0].ExtractedDates[0])
	assert.Nil(t, filed[0].ExtractedDates[1])
	assert.Equal(t, int64(5), filed[1].MunicipalityID)

	require.Len(t, events.events, 2)
	assert.Equal(t, stats.EventTypeFiled, events.events[0].Type)
}

func TestFiler_DryRunAndEmpty(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	empty := NewFiler(svc, []int64{1}, 5, false, nil)
	require.NoError(t, empty.Finish(ctx))
	assert.Empty(t, empty.Filed())

	dry := NewFiler(svc, []int64{1}, 5, true, nil)
	require.NoError(t, dry.Handle(ctx, model.Result{Document: model.Document{Name: "a.eml"}}))
	require.NoError(t, dry.Finish(ctx))
	assert.Empty(t, dry.Filed())

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
