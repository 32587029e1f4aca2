package activities

import "labxtract/internal/extract"

type ListPDFsInput struct {
	InputDir string `json:"input_dir"`
}

type ListPDFsOutput struct {
	Paths []string `json:"paths"`
}

type ComputeReportIDInput struct {
	ReportPath string `json:"report_path"`
}

type ComputeReportIDOutput struct {
	ReportID string `json:"report_id"`
}

type ReadPagesInput struct {
	ReportPath string `json:"report_path"`
}

type ReadPagesOutput struct {
	Pages []extract.Page `json:"pages"`
}

type ExtractResultsInput struct {
	Variant string         `json:"variant"`
	Pages   []extract.Page `json:"pages"`
}

// ExtractResultsOutput.Empty is set when the document had no pages or no
// records; that is an outcome, not an activity failure.
type ExtractResultsOutput struct {
	Records []extract.Record      `json:"records"`
	Summary []extract.PageSummary `json:"summary"`
	Log     []string              `json:"log"`
	Empty   bool                  `json:"empty"`
}

type UpsertResultsInput struct {
	ReportID string           `json:"report_id"`
	Variant  string           `json:"variant"`
	Records  []extract.Record `json:"records"`
}

type WriteWorkbookInput struct {
	ReportID string           `json:"report_id"`
	Filename string           `json:"filename"`
	Variant  string           `json:"variant"`
	Pages    []extract.Page   `json:"pages"`
	Records  []extract.Record `json:"records"`
	Log      []string         `json:"log"`
}

type WriteWorkbookOutput struct {
	Path string `json:"path"`
}

type WriteReportArtifactsInput struct {
	ReportID      string           `json:"report_id"`
	Metadata      map[string]any   `json:"metadata"`
	Records       []extract.Record `json:"records"`
	ProcessingLog map[string]any   `json:"processing_log"`
}

type UpdateReportStatusInput struct {
	ReportID     string `json:"report_id"`
	BatchID      string `json:"batch_id"`
	Filename     string `json:"filename"`
	SourcePath   string `json:"source_path"`
	Variant      string `json:"variant"`
	Status       string `json:"status"`
	FailReason   string `json:"fail_reason"`
	PageCount    int    `json:"page_count"`
	RecordCount  int    `json:"record_count"`
	WorkbookPath string `json:"workbook_path"`
}

type SetReportStatusInput struct {
	ReportID   string `json:"report_id"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
}

type WriteBatchSummaryInput struct {
	BatchID string         `json:"batch_id"`
	Summary map[string]any `json:"summary"`
}

type ListReportsInput struct {
	Status string `json:"status,omitempty"`
}

type ReportRef struct {
	ReportID   string `json:"report_id"`
	BatchID    string `json:"batch_id,omitempty"`
	Filename   string `json:"filename"`
	SourcePath string `json:"source_path"`
	Variant    string `json:"variant"`
	Status     string `json:"status"`
}

type ListReportsOutput struct {
	Reports []ReportRef `json:"reports"`
}

type WriteRunManifestInput struct {
	RunID    string         `json:"run_id"`
	Manifest map[string]any `json:"manifest"`
}

type WriteRunManifestOutput struct {
	Path string `json:"path"`
}
