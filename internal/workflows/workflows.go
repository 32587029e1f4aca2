package workflows

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"labxtract/internal/activities"
	"labxtract/internal/models"
)

const (
	QueryGetReportStatus = "GetReportStatus"
	QueryGetProgress     = "GetProgress"

	ModeRetryFailed  = "RETRY_FAILED_REPORTS"
	ModeReextractAll = "REEXTRACT_ALL_REPORTS"
)

// ReportWorkflowID is the workflow id used for a report; batches prefix it
// with the batch id so the same file can appear in several batches. Names
// that sanitizing changes get a short hash of the raw name, so run_1.pdf and
// run-1.pdf do not collide.
func ReportWorkflowID(batchID, name string) string {
	id := sanitizeID(name)
	if id != name {
		sum := sha256.Sum256([]byte(name))
		id += "-" + hex.EncodeToString(sum[:4])
	}
	if batchID == "" {
		return "report-" + id
	}
	return "report-" + sanitizeID(batchID) + "-" + id
}

func BatchConvertWorkflow(ctx workflow.Context, input BatchConvertInput) (string, error) {
	progress := BatchProgress{
		BatchID:       input.BatchID,
		PerReport:     map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (BatchProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListPDFsOutput
	if err := workflow.ExecuteActivity(ctx, "ListPDFsActivity", activities.ListPDFsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerReport[filepath.Base(path)] = models.StatusProcessing
			workflowID := ReportWorkflowID(input.BatchID, filepath.Base(path))
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			f := workflow.ExecuteChildWorkflow(childCtx, ReportProcessWorkflow, ReportProcessInput{
				BatchID:    input.BatchID,
				ReportPath: path,
				Variant:    input.Variant,
			})
			futures = append(futures, f)
			childPaths = append(childPaths, path)
			progress.ChildWorkflow[filepath.Base(path)] = workflowID
		}

		for idx, f := range futures {
			var childStatus string
			err := f.Get(ctx, &childStatus)
			path := childPaths[idx]
			progress.Done++
			if err != nil {
				logger.Warn("report workflow failed", "path", path, "error", err)
				progress.Failed++
				progress.PerReport[filepath.Base(path)] = models.StatusFailed
				continue
			}
			switch childStatus {
			case models.StatusFailed:
				progress.Failed++
			case models.StatusEmpty:
				progress.Empty++
			}
			progress.PerReport[filepath.Base(path)] = childStatus
		}
	}
	_ = workflow.ExecuteActivity(ctx, "WriteBatchSummaryActivity", activities.WriteBatchSummaryInput{
		BatchID: input.BatchID,
		Summary: map[string]any{
			"batch_id":          input.BatchID,
			"variant":           input.Variant,
			"input_dir":         input.InputDir,
			"total":             progress.Total,
			"done":              progress.Done,
			"failed":            progress.Failed,
			"empty":             progress.Empty,
			"per_report_status": progress.PerReport,
			"generated_at":      workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	return "completed", nil
}

// ReportProcessWorkflow converts one PDF and returns processed, empty or
// failed. Activity errors other than a rejected input are returned as-is.
func ReportProcessWorkflow(ctx workflow.Context, input ReportProcessInput) (string, error) {
	status := ReportStatus{
		ReportPath:  input.ReportPath,
		Variant:     input.Variant,
		CurrentStep: "init",
		Status:      models.StatusProcessing,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetReportStatus, func() (ReportStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}
	logger := workflow.GetLogger(ctx)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	filename := input.Filename
	if filename == "" {
		filename = filepath.Base(input.ReportPath)
	}
	update := func(st, reason string) activities.UpdateReportStatusInput {
		return activities.UpdateReportStatusInput{
			ReportID:     status.ReportID,
			BatchID:      input.BatchID,
			Filename:     filename,
			SourcePath:   input.ReportPath,
			Variant:      input.Variant,
			Status:       st,
			FailReason:   reason,
			PageCount:    status.PageCount,
			RecordCount:  status.RecordCount,
			WorkbookPath: status.Workbook,
		}
	}
	begin := func(step string) {
		status.CurrentStep = step
		status.Steps[step] = "processing"
	}
	finish := func() {
		status.Steps[status.CurrentStep] = "done"
	}

	begin("compute_report_id")
	var computeOut activities.ComputeReportIDOutput
	if err := workflow.ExecuteActivity(ctx, "ComputeReportIDActivity", activities.ComputeReportIDInput{ReportPath: input.ReportPath}).Get(ctx, &computeOut); err != nil {
		return "", err
	}
	status.ReportID = computeOut.ReportID
	finish()

	_ = workflow.ExecuteActivity(ctx, "UpdateReportStatusActivity", update(models.StatusProcessing, "")).Get(ctx, nil)

	begin("read_pages")
	var pagesOut activities.ReadPagesOutput
	if err := workflow.ExecuteActivity(ctx, "ReadPagesActivity", activities.ReadPagesInput{ReportPath: input.ReportPath}).Get(ctx, &pagesOut); err != nil {
		if !isInvalidReportError(err) {
			return "", err
		}
		status.Status = models.StatusFailed
		status.FailReason = "not a readable report pdf: " + rootMessage(err)
		status.Steps[status.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateReportStatusActivity", update(status.Status, status.FailReason)).Get(ctx, nil)
		return status.Status, nil
	}
	status.PageCount = len(pagesOut.Pages)
	finish()

	begin("extract_results")
	var extractOut activities.ExtractResultsOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractResultsActivity", activities.ExtractResultsInput{Variant: input.Variant, Pages: pagesOut.Pages}).Get(ctx, &extractOut); err != nil {
		if !isUnknownVariantError(err) {
			return "", err
		}
		status.Status = models.StatusFailed
		status.FailReason = rootMessage(err)
		status.Steps[status.CurrentStep] = "failed"
		_ = workflow.ExecuteActivity(ctx, "UpdateReportStatusActivity", update(status.Status, status.FailReason)).Get(ctx, nil)
		return status.Status, nil
	}
	status.RecordCount = len(extractOut.Records)
	finish()

	begin("upsert_results")
	if err := workflow.ExecuteActivity(ctx, "UpsertResultsActivity", activities.UpsertResultsInput{ReportID: status.ReportID, Variant: input.Variant, Records: extractOut.Records}).Get(ctx, nil); err != nil {
		return "", err
	}
	finish()

	final := models.StatusProcessed
	if extractOut.Empty {
		final = models.StatusEmpty
		logger.Info("report has no result records", "report_id", status.ReportID, "pages", status.PageCount)
	} else {
		begin("write_workbook")
		var wbOut activities.WriteWorkbookOutput
		if err := workflow.ExecuteActivity(ctx, "WriteWorkbookActivity", activities.WriteWorkbookInput{
			ReportID: status.ReportID,
			Filename: filename,
			Variant:  input.Variant,
			Pages:    pagesOut.Pages,
			Records:  extractOut.Records,
			Log:      extractOut.Log,
		}).Get(ctx, &wbOut); err != nil {
			return "", err
		}
		status.Workbook = wbOut.Path
		finish()
	}

	begin("write_artifacts")
	if err := workflow.ExecuteActivity(ctx, "WriteReportArtifactsActivity", activities.WriteReportArtifactsInput{
		ReportID: status.ReportID,
		Metadata: map[string]any{
			"report_id":    status.ReportID,
			"filename":     filename,
			"variant":      input.Variant,
			"page_count":   status.PageCount,
			"record_count": status.RecordCount,
			"workbook":     status.Workbook,
		},
		Records: extractOut.Records,
		ProcessingLog: map[string]any{
			"status":       final,
			"steps":        status.Steps,
			"pages":        extractOut.Summary,
			"log":          extractOut.Log,
			"generated_at": workflow.Now(ctx),
		},
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	finish()

	begin("mark_" + final)
	if err := workflow.ExecuteActivity(ctx, "UpdateReportStatusActivity", update(final, "")).Get(ctx, nil); err != nil {
		return "", err
	}
	finish()
	status.CurrentStep = "done"
	status.Status = final
	return status.Status, nil
}

func BackfillWorkflow(ctx workflow.Context, input BackfillInput) (string, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	info := workflow.GetInfo(ctx)
	runID := info.WorkflowExecution.RunID
	mode := strings.ToUpper(strings.TrimSpace(input.Mode))
	manifest := map[string]any{
		"run_id":     runID,
		"mode":       mode,
		"variant":    input.Variant,
		"started_at": workflow.Now(ctx),
	}

	var list activities.ListReportsInput
	switch mode {
	case ModeRetryFailed:
		list.Status = models.StatusFailed
	case ModeReextractAll:
	default:
		return "", fmt.Errorf("unsupported backfill mode: %s", input.Mode)
	}
	var reports activities.ListReportsOutput
	if err := workflow.ExecuteActivity(ctx, "ListReportsActivity", list).Get(ctx, &reports); err != nil {
		return "", err
	}

	outcomes := map[string]int{}
	for _, r := range reports.Reports {
		if strings.TrimSpace(r.SourcePath) == "" {
			outcomes["skipped"]++
			continue
		}
		variant := r.Variant
		if input.Variant != "" {
			variant = input.Variant
		}
		if err := workflow.ExecuteActivity(ctx, "SetReportStatusActivity", activities.SetReportStatusInput{
			ReportID: r.ReportID,
			Status:   models.StatusQueued,
		}).Get(ctx, nil); err != nil {
			outcomes[models.StatusFailed]++
			continue
		}
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: ReportWorkflowID("backfill-"+runID, r.ReportID),
		})
		var out string
		if err := workflow.ExecuteChildWorkflow(childCtx, ReportProcessWorkflow, ReportProcessInput{
			BatchID:    r.BatchID,
			ReportPath: r.SourcePath,
			Filename:   r.Filename,
			Variant:    variant,
		}).Get(ctx, &out); err != nil {
			outcomes[models.StatusFailed]++
			continue
		}
		outcomes[out]++
	}
	manifest["reports_seen"] = len(reports.Reports)
	manifest["outcomes"] = outcomes
	manifest["finished_at"] = workflow.Now(ctx)

	var out activities.WriteRunManifestOutput
	if err := workflow.ExecuteActivity(ctx, "WriteRunManifestActivity", activities.WriteRunManifestInput{
		RunID:    runID,
		Manifest: manifest,
	}).Get(ctx, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

func isInvalidReportError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "file is not a pdf") || strings.Contains(e, "pdf has no pages")
}

func isUnknownVariantError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unknown variant")
}

// rootMessage drops the activity-error wrapping Temporal adds around the
// application error text.
func rootMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
