// Package store persists upload records.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

var ErrNotFound = errors.New("upload not found")

// Store is implemented by every upload backend.
type Store interface {
	Save(ctx context.Context, u model.Upload) error
	Get(ctx context.Context, id string) (model.Upload, error)
	List(ctx context.Context, f Filter) ([]model.Upload, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Filter narrows a listing. Zero fields do not constrain the result.
// From and To bound SubmittedAt inclusively.
type Filter struct {
	Status model.Status
	Search string
	From   time.Time
	To     time.Time
	Limit  int
}

// Match reports whether u satisfies every set field of f.
func (f Filter) Match(u model.Upload) bool {
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		if !strings.Contains(strings.ToLower(u.Reference), strings.ToLower(s)) {
			return false
		}
	}
	if !f.From.IsZero() && u.SubmittedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && u.SubmittedAt.After(f.To) {
		return false
	}
	return true
}

// apply filters, orders newest first and truncates to the limit.
func (f Filter) apply(all []model.Upload) []model.Upload {
	out := make([]model.Upload, 0, len(all))
	for _, u := range all {
		if f.Match(u) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Open returns a PostgresStore when dsn is set and a FileStore in dir
// otherwise.
func Open(ctx context.Context, dsn, dir string) (Store, error) {
	if strings.TrimSpace(dsn) != "" {
		return NewPostgresStore(ctx, dsn)
	}
	return NewFileStore(dir)
}
