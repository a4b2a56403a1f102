package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType names the report families the generator knows how to build.
type ReportType string

const (
	ReportTypeCourseDates ReportType = "course_dates"
	ReportTypeValidation  ReportType = "validation"
)

// Valid reports whether t is a supported report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeCourseDates, ReportTypeValidation:
		return true
	}
	return false
}

// ReportFormat names the document formats an export can be rendered to.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Valid reports whether f is a renderable format.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// ReportStatus tracks a job through its lifecycle. QUEUED and PROCESSING are
// transient, FINISHED and FAILED are terminal.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob is one persisted export request.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams is the request payload stored alongside the job as JSONB.
type ReportJobParams struct {
	CourseID string            `json:"courseId"`
	Format   ReportFormat      `json:"format"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// Value implements driver.Valuer so params can be written to the JSONB column.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report params: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner for JSONB payloads read back from the column.
func (p *ReportJobParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan report params: unsupported type %T", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report params: %w", err)
	}
	return nil
}
