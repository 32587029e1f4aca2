package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"labxtract/internal/models"
	"labxtract/internal/util"
)

type ReportRepo struct {
	db *DB
}

func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

const reportColumns = `report_id, COALESCE(batch_id::text,''), filename, source_path, variant, status, COALESCE(fail_reason,''),
       page_count, record_count, COALESCE(workbook_path,''), created_at, updated_at`

func scanReport(row pgx.Row) (models.Report, error) {
	var p models.Report
	err := row.Scan(&p.ReportID, &p.BatchID, &p.Filename, &p.SourcePath, &p.Variant, &p.Status, &p.FailReason,
		&p.PageCount, &p.RecordCount, &p.WorkbookPath, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// UpsertReport writes a report row. Counts and the workbook path are only
// overwritten when the new values are set, so a status-only update keeps them.
func (r *ReportRepo) UpsertReport(ctx context.Context, p models.Report) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO reports (report_id, batch_id, filename, source_path, variant, status, fail_reason, page_count, record_count, workbook_path)
VALUES ($1, NULLIF($2,'')::uuid, $3, $4, $5, $6, NULLIF($7,''), $8, $9, NULLIF($10,''))
ON CONFLICT (report_id)
DO UPDATE SET
  batch_id = COALESCE(EXCLUDED.batch_id, reports.batch_id),
  filename = EXCLUDED.filename,
  source_path = EXCLUDED.source_path,
  variant = EXCLUDED.variant,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  page_count = CASE WHEN EXCLUDED.page_count > 0 THEN EXCLUDED.page_count ELSE reports.page_count END,
  record_count = CASE WHEN EXCLUDED.status IN ('processed','empty') THEN EXCLUDED.record_count ELSE reports.record_count END,
  workbook_path = COALESCE(EXCLUDED.workbook_path, reports.workbook_path),
  updated_at = NOW()`,
		p.ReportID, p.BatchID, p.Filename, p.SourcePath, p.Variant, p.Status, p.FailReason, p.PageCount, p.RecordCount, p.WorkbookPath,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

func (r *ReportRepo) UpdateReportStatus(ctx context.Context, reportID, status, failReason string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE reports SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE report_id=$1`, reportID, status, failReason)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update report status %s: %w", reportID, util.ErrNotFound)
	}
	return nil
}

func (r *ReportRepo) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	p, err := scanReport(r.db.Pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE report_id=$1`, reportID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Report{}, fmt.Errorf("get report %s: %w", reportID, util.ErrNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report: %w", err)
	}
	return p, nil
}

// ListReports returns reports newest first; an empty batchID lists all.
func (r *ReportRepo) ListReports(ctx context.Context, batchID string) ([]models.Report, error) {
	return r.list(ctx, "list reports", `SELECT `+reportColumns+` FROM reports
WHERE ($1 = '' OR batch_id::text = $1)
ORDER BY created_at DESC`, batchID)
}

func (r *ReportRepo) ListReportsByStatus(ctx context.Context, status string) ([]models.Report, error) {
	return r.list(ctx, "list reports by status", `SELECT `+reportColumns+` FROM reports
WHERE status=$1
ORDER BY updated_at DESC`, status)
}

func (r *ReportRepo) list(ctx context.Context, op, sql string, args ...any) ([]models.Report, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Report, 0)
	for rows.Next() {
		p, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}
