package storage

import (
	"context"
	"fmt"

	"labxtract/internal/models"
)

type BatchRepo struct {
	db *DB
}

func NewBatchRepo(db *DB) *BatchRepo {
	return &BatchRepo{db: db}
}

func (r *BatchRepo) CreateBatch(ctx context.Context, b models.Batch) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO batches (batch_id, input_dir, variant) VALUES ($1, $2, $3)`, b.BatchID, b.InputDir, b.Variant)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) ListBatches(ctx context.Context) ([]models.Batch, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT batch_id::text, input_dir, variant, created_at FROM batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := make([]models.Batch, 0)
	for rows.Next() {
		var b models.Batch
		if err := rows.Scan(&b.BatchID, &b.InputDir, &b.Variant, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}
