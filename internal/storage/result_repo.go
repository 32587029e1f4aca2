package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"labxtract/internal/extract"
	"labxtract/internal/models"
	"labxtract/internal/util"
)

var resultColumns = []string{
	"report_id", "variant", "ord", "page", "line", "identifier", "test_name", "result",
	"unit", "channel", "reagent_lot", "data_alarm", "rerun", "report_date", "reactivity",
}

type ResultRepo struct {
	db *DB
}

func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// ReplaceResults swaps a report's stored records for recs in one transaction.
func (r *ResultRepo) ReplaceResults(ctx context.Context, reportID, variant string, recs []extract.Record) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace results: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM results WHERE report_id=$1`, reportID); err != nil {
		return fmt.Errorf("delete results %s: %w", reportID, err)
	}
	if len(recs) > 0 {
		src := pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			return resultRow(reportID, variant, i, recs[i]), nil
		})
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"results"}, resultColumns, src); err != nil {
			return fmt.Errorf("copy results %s: %w", reportID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

func resultRow(reportID, variant string, ord int, rec extract.Record) []any {
	return []any{
		reportID, variant, ord, rec.Page, rec.Line, rec.Identifier, util.SanitizeText(rec.TestName), rec.Result,
		rec.Unit, rec.Channel, rec.ReagentLot, rec.DataAlarm, rec.Rerun, rec.Date, string(rec.Reactivity),
	}
}

func (r *ResultRepo) ListResults(ctx context.Context, reportID string) ([]models.Result, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT report_id, variant, ord, page, line, identifier, test_name, result, unit, channel,
       reagent_lot, data_alarm, rerun, report_date, reactivity
FROM results
WHERE report_id=$1
ORDER BY ord ASC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]models.Result, 0, 64)
	for rows.Next() {
		var x models.Result
		var reactivity string
		if err := rows.Scan(&x.ReportID, &x.Variant, &x.Ord, &x.Page, &x.Line, &x.Identifier, &x.TestName, &x.Result,
			&x.Unit, &x.Channel, &x.ReagentLot, &x.DataAlarm, &x.Rerun, &x.Date, &reactivity); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		x.Reactivity = extract.Reactivity(reactivity)
		out = append(out, x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}
