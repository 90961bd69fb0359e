package model

import (
	"fmt"
	"time"
)

// Status is the review state of an upload.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusRejected   Status = "Rejected"
)

// Statuses lists every valid status in workflow order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusRejected}

// ParseStatus accepts a status name as stored.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown upload status %q", s)
}

// Upload is the record filed for one company when documents are submitted
// to a municipality. ExtractedDates[i] belongs to OriginalFileNames[i].
type Upload struct {
	ID                    string     `json:"id" db:"id"`
	Reference             string     `json:"reference" db:"reference"`
	CompanyID             int64      `json:"company_id" db:"company_id"`
	MunicipalityID        int64      `json:"municipality_id" db:"municipality_id"`
	Status                Status     `json:"status" db:"status"`
	OriginalFileNames     []string   `json:"original_file_names" db:"-"`
	ExtractedDates        []*string  `json:"extracted_dates" db:"-"`
	WorkingsFileName      *string    `json:"workings_file_name" db:"workings_file_name"`
	SystemsImportFileName *string    `json:"systems_import_file_name" db:"systems_import_file_name"`
	SystemImportDate      *time.Time `json:"system_import_date" db:"system_import_date"`
	SubmittedAt           time.Time  `json:"submitted_at" db:"submitted_at"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// ExtractedDate returns the date recorded for the i-th original file.
func (u Upload) ExtractedDate(i int) (string, bool) {
	if i < 0 || i >= len(u.ExtractedDates) || u.ExtractedDates[i] == nil {
		return "", false
	}
	return *u.ExtractedDates[i], true
}
