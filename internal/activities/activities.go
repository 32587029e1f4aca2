package activities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"labxtract/internal/config"
	"labxtract/internal/extract"
	"labxtract/internal/models"
	"labxtract/internal/pdftext"
	"labxtract/internal/storage"
	"labxtract/internal/util"
	"labxtract/internal/workbook"
)

type Activities struct {
	cfg        config.Config
	registry   *extract.Registry
	reportRepo *storage.ReportRepo
	resultRepo *storage.ResultRepo
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	reg, err := extract.LoadRegistry(cfg.ProfilesPath)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:        cfg,
		registry:   reg,
		reportRepo: storage.NewReportRepo(db),
		resultRepo: storage.NewResultRepo(db),
	}, nil
}

func (a *Activities) ListPDFsActivity(ctx context.Context, in ListPDFsInput) (ListPDFsOutput, error) {
	_ = ctx
	paths, err := util.ListFiles(in.InputDir, ".pdf")
	if err != nil {
		return ListPDFsOutput{}, fmt.Errorf("list pdfs: %w", err)
	}
	return ListPDFsOutput{Paths: paths}, nil
}

func (a *Activities) ComputeReportIDActivity(ctx context.Context, in ComputeReportIDInput) (ComputeReportIDOutput, error) {
	_ = ctx
	id, err := util.SHA256File(in.ReportPath)
	if err != nil {
		return ComputeReportIDOutput{}, err
	}
	return ComputeReportIDOutput{ReportID: id}, nil
}

// ReadPagesActivity decodes the PDF. Files that are not PDFs or have no pages
// fail without retries.
func (a *Activities) ReadPagesActivity(ctx context.Context, in ReadPagesInput) (ReadPagesOutput, error) {
	pages, err := pdftext.ReadFile(in.ReportPath, pdftext.DefaultOptions())
	switch {
	case errors.Is(err, pdftext.ErrNotPDF), errors.Is(err, pdftext.ErrNoPages):
		return ReadPagesOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidReport", nil)
	case err != nil:
		return ReadPagesOutput{}, fmt.Errorf("read pages: %w", err)
	}
	activity.GetLogger(ctx).Info("read report pages", "path", in.ReportPath, "pages", len(pages))
	return ReadPagesOutput{Pages: pages}, nil
}

func (a *Activities) ExtractResultsActivity(ctx context.Context, in ExtractResultsInput) (ExtractResultsOutput, error) {
	engine, err := a.registry.Engine(in.Variant)
	if err != nil {
		return ExtractResultsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "UnknownVariant", nil)
	}
	doc, err := engine.ExtractDocument(in.Pages)
	out := ExtractResultsOutput{Records: doc.Records, Summary: doc.Summary, Log: doc.Log}
	switch {
	case errors.Is(err, extract.ErrNoPages), errors.Is(err, extract.ErrNoRecords):
		out.Empty = true
	case err != nil:
		return ExtractResultsOutput{}, fmt.Errorf("extract results: %w", err)
	}
	activity.GetLogger(ctx).Info("extracted results", "variant", in.Variant, "records", len(doc.Records))
	return out, nil
}

func (a *Activities) UpsertResultsActivity(ctx context.Context, in UpsertResultsInput) error {
	return a.resultRepo.ReplaceResults(ctx, in.ReportID, in.Variant, in.Records)
}

func (a *Activities) reportDir(reportID string) string {
	return filepath.Join(a.cfg.DataOutRoot, "reports", reportID)
}

func (a *Activities) WriteWorkbookActivity(ctx context.Context, in WriteWorkbookInput) (WriteWorkbookOutput, error) {
	_ = ctx
	v, err := a.registry.Lookup(in.Variant)
	if err != nil {
		return WriteWorkbookOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "UnknownVariant", nil)
	}
	doc := extract.Document{
		Variant: v.Name,
		Columns: v.Columns(),
		Pages:   in.Pages,
		Records: in.Records,
		Log:     in.Log,
	}
	opts := workbook.Options{
		Source:     in.Filename,
		IncludeRaw: a.cfg.IncludeRawSheet,
		IncludeLog: a.cfg.IncludeLogSheet,
	}
	path := filepath.Join(a.reportDir(in.ReportID), util.Stem(in.Filename)+".xlsx")
	err = util.WriteFileAtomic(path, func(w io.Writer) error {
		return workbook.Write(w, doc, opts)
	})
	if err != nil {
		return WriteWorkbookOutput{}, err
	}
	return WriteWorkbookOutput{Path: path}, nil
}

func (a *Activities) WriteReportArtifactsActivity(ctx context.Context, in WriteReportArtifactsInput) error {
	_ = ctx
	base := a.reportDir(in.ReportID)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), in.Metadata); err != nil {
		return err
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(base, "results.jsonl"), in.Records); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "processing_log.json"), in.ProcessingLog); err != nil {
		return err
	}
	return nil
}

func (a *Activities) UpdateReportStatusActivity(ctx context.Context, in UpdateReportStatusInput) error {
	return a.reportRepo.UpsertReport(ctx, models.Report{
		ReportID:     in.ReportID,
		BatchID:      in.BatchID,
		Filename:     in.Filename,
		SourcePath:   in.SourcePath,
		Variant:      in.Variant,
		Status:       in.Status,
		FailReason:   in.FailReason,
		PageCount:    in.PageCount,
		RecordCount:  in.RecordCount,
		WorkbookPath: in.WorkbookPath,
	})
}

// SetReportStatusActivity changes the status of a report that is already stored.
func (a *Activities) SetReportStatusActivity(ctx context.Context, in SetReportStatusInput) error {
	return a.reportRepo.UpdateReportStatus(ctx, in.ReportID, in.Status, in.FailReason)
}

func (a *Activities) WriteBatchSummaryActivity(ctx context.Context, in WriteBatchSummaryInput) error {
	_ = ctx
	outPath := filepath.Join(a.cfg.DataOutRoot, "batches", in.BatchID, "batch_summary.json")
	return util.WriteJSONAtomic(outPath, in.Summary)
}

func (a *Activities) ListReportsActivity(ctx context.Context, in ListReportsInput) (ListReportsOutput, error) {
	var (
		reports []models.Report
		err     error
	)
	if in.Status != "" {
		reports, err = a.reportRepo.ListReportsByStatus(ctx, in.Status)
	} else {
		reports, err = a.reportRepo.ListReports(ctx, "")
	}
	if err != nil {
		return ListReportsOutput{}, err
	}
	out := ListReportsOutput{Reports: make([]ReportRef, 0, len(reports))}
	for _, r := range reports {
		out.Reports = append(out.Reports, ReportRef{
			ReportID:   r.ReportID,
			BatchID:    r.BatchID,
			Filename:   r.Filename,
			SourcePath: r.SourcePath,
			Variant:    r.Variant,
			Status:     r.Status,
		})
	}
	return out, nil
}

func (a *Activities) WriteRunManifestActivity(ctx context.Context, in WriteRunManifestInput) (WriteRunManifestOutput, error) {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, "runs", in.RunID, "manifest.json")
	if err := util.WriteJSONAtomic(path, in.Manifest); err != nil {
		return WriteRunManifestOutput{}, err
	}
	return WriteRunManifestOutput{Path: path}, nil
}
