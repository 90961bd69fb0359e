package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
	id                       TEXT PRIMARY KEY,
	reference                TEXT NOT NULL UNIQUE,
	company_id               BIGINT NOT NULL,
	municipality_id          BIGINT NOT NULL,
	status                   TEXT NOT NULL,
	original_file_names      TEXT NOT NULL,
	extracted_dates          TEXT NOT NULL,
	workings_file_name       TEXT NULL,
	systems_import_file_name TEXT NULL,
	system_import_date       TIMESTAMPTZ NULL,
	submitted_at             TIMESTAMPTZ NOT NULL,
	created_at               TIMESTAMPTZ NOT NULL,
	updated_at               TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS uploads_submitted_at_idx ON uploads (submitted_at);
`

const uploadColumns = `id, reference, company_id, municipality_id, status,
	original_file_names, extracted_dates, workings_file_name,
	systems_import_file_name, system_import_date, submitted_at, created_at, updated_at`

// uploadRow is the table shape; the parallel arrays are JSON text.
type uploadRow struct {
	ID                    string         `db:"id"`
	Reference             string         `db:"reference"`
	CompanyID             int64          `db:"company_id"`
	MunicipalityID        int64          `db:"municipality_id"`
	Status                string         `db:"status"`
	OriginalFileNames     string         `db:"original_file_names"`
	ExtractedDates        string         `db:"extracted_dates"`
	WorkingsFileName      sql.NullString `db:"workings_file_name"`
	SystemsImportFileName sql.NullString `db:"systems_import_file_name"`
	SystemImportDate      sql.NullTime   `db:"system_import_date"`
	SubmittedAt           time.Time      `db:"submitted_at"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func toRow(u model.Upload) (uploadRow, error) {
	names, err := json.Marshal(nonNilNames(u.OriginalFileNames))
	if err != nil {
		return uploadRow{}, fmt.Errorf("encode file names: %w", err)
	}
	dates, err := json.Marshal(nonNilDates(u.ExtractedDates))
	if err != nil {
		return uploadRow{}, fmt.Errorf("encode extracted dates: %w", err)
	}

	row := uploadRow{
		ID:                u.ID,
		Reference:         u.Reference,
		CompanyID:         u.CompanyID,
		MunicipalityID:    u.MunicipalityID,
		Status:            string(u.Status),
		OriginalFileNames: string(names),
		ExtractedDates:    string(dates),
		SubmittedAt:       u.SubmittedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	if u.WorkingsFileName != nil {
		row.WorkingsFileName = sql.NullString{String: *u.WorkingsFileName, Valid: true}
	}
	if u.SystemsImportFileName != nil {
		row.SystemsImportFileName = sql.NullString{String: *u.SystemsImportFileName, Valid: true}
	}
	if u.SystemImportDate != nil {
		row.SystemImportDate = sql.NullTime{Time: *u.SystemImportDate, Valid: true}
	}
	return row, nil
}

func (r uploadRow) upload() (model.Upload, error) {
	u := model.Upload{
		ID:             r.ID,
		Reference:      r.Reference,
		CompanyID:      r.CompanyID,
		MunicipalityID: r.MunicipalityID,
		Status:         model.Status(r.Status),
		SubmittedAt:    r.SubmittedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.OriginalFileNames), &u.OriginalFileNames); err != nil {
		return model.Upload{}, fmt.Errorf("decode file names of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.ExtractedDates), &u.ExtractedDates); err != nil {
		return model.Upload{}, fmt.Errorf("decode extracted dates of %s: %w", r.ID, err)
	}
	if r.WorkingsFileName.Valid {
		u.WorkingsFileName = &r.WorkingsFileName.String
	}
	if r.SystemsImportFileName.Valid {
		u.SystemsImportFileName = &r.SystemsImportFileName.String
	}
	if r.SystemImportDate.Valid {
		t := r.SystemImportDate.Time
		u.SystemImportDate = &t
	}
	return u, nil
}

// PostgresStore keeps uploads in a PostgreSQL table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to dsn and creates the uploads table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Save(ctx context.Context, u model.Upload) error {
	row, err := toRow(u)
	if err != nil {
		return err
	}

	const query = `
INSERT INTO uploads (` + uploadColumns + `)
VALUES (:id, :reference, :company_id, :municipality_id, :status,
	:original_file_names, :extracted_dates, :workings_file_name,
	:systems_import_file_name, :system_import_date, :submitted_at, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	original_file_names = EXCLUDED.original_file_names,
	extracted_dates = EXCLUDED.extracted_dates,
	workings_file_name = EXCLUDED.workings_file_name,
	systems_import_file_name = EXCLUDED.systems_import_file_name,
	system_import_date = EXCLUDED.system_import_date,
	updated_at = EXCLUDED.updated_at`

	if _, err := p.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save upload %s: %w", u.ID, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (model.Upload, error) {
	var row uploadRow
	err := p.db.GetContext(ctx, &row, `SELECT `+uploadColumns+` FROM uploads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Upload{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Upload{}, fmt.Errorf("get %s: %w", id, err)
	}
	return row.upload()
}

func (p *PostgresStore) List(ctx context.Context, f Filter) ([]model.Upload, error) {
	query, args := listQuery(f)

	var rows []uploadRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	out := make([]model.Upload, 0, len(rows))
	for _, row := range rows {
		u, err := row.upload()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// listQuery renders f as a bindvar query, mirroring Filter.Match.
func listQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `reference ILIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, likeEscaper.Replace(s))
	}
	if !f.From.IsZero() {
		where = append(where, "submitted_at >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "submitted_at <= ?")
		args = append(args, f.To)
	}

	query := `SELECT ` + uploadColumns + ` FROM uploads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func nonNilNames(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilDates(v []*string) []*string {
	if v == nil {
		return []*string{}
	}
	return v
}
