package models

import (
	"time"

	"labxtract/internal/extract"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusEmpty      = "empty"
	StatusFailed     = "failed"
)

type Batch struct {
	BatchID   string    `json:"batch_id"`
	InputDir  string    `json:"input_dir"`
	Variant   string    `json:"variant"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is one uploaded or discovered PDF. ReportID is the sha256 of its bytes.
type Report struct {
	ReportID     string    `json:"report_id"`
	BatchID      string    `json:"batch_id,omitempty"`
	Filename     string    `json:"filename"`
	SourcePath   string    `json:"source_path"`
	Variant      string    `json:"variant"`
	Status       string    `json:"status"`
	FailReason   string    `json:"fail_reason,omitempty"`
	PageCount    int       `json:"page_count"`
	RecordCount  int       `json:"record_count"`
	WorkbookPath string    `json:"workbook_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Result is a stored record; Ord keeps document order.
type Result struct {
	ReportID string `json:"report_id"`
	Variant  string `json:"variant"`
	Ord      int    `json:"ord"`
	extract.Record
}
