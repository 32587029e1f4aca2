package workflows

type BatchConvertInput struct {
	BatchID               string `json:"batch_id"`
	InputDir              string `json:"input_dir"`
	Variant               string `json:"variant"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
}

type ReportProcessInput struct {
	BatchID    string `json:"batch_id,omitempty"`
	ReportPath string `json:"report_path"`
	// Filename overrides the base of ReportPath, for uploads stored under a hash.
	Filename string `json:"filename,omitempty"`
	Variant  string `json:"variant"`
}

type BackfillInput struct {
	Mode string `json:"mode"`
	// Variant, when set, replaces each report's stored variant.
	Variant string `json:"variant,omitempty"`
}

type ReportStatus struct {
	ReportID    string            `json:"report_id"`
	ReportPath  string            `json:"report_path"`
	Variant     string            `json:"variant"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	PageCount   int               `json:"page_count"`
	RecordCount int               `json:"record_count"`
	Workbook    string            `json:"workbook,omitempty"`
	Steps       map[string]string `json:"steps"`
}

type BatchProgress struct {
	BatchID       string            `json:"batch_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	Empty         int               `json:"empty"`
	// PerReport and ChildWorkflow are keyed by file name.
	PerReport     map[string]string `json:"per_report_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}
