package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const batchColumns = `batch_no, batch_name, year, department, student_count, start_date, end_date, schedule_type`

// BatchRepository reads student batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindByKey loads a batch by its number or, failing that, its name.
func (r *BatchRepository) FindByKey(ctx context.Context, key string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE batch_no = $1 OR batch_name = $1
ORDER BY (batch_no = $1) DESC LIMIT 1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, key); err != nil {
		return nil, err
	}
	return &batch, nil
}

// List returns all batches.
func (r *BatchRepository) List(ctx context.Context) ([]models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY batch_no ASC`
	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}
