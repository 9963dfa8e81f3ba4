package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const allocationColumns = `id, batch_id, batch_name, subjects, created_at, updated_at`

type allocationRow struct {
	ID        string         `db:"id"`
	BatchID   string         `db:"batch_id"`
	BatchName string         `db:"batch_name"`
	Subjects  types.JSONText `db:"subjects"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row allocationRow) toModel() (models.Allocation, error) {
	allocation := models.Allocation{
		ID:        row.ID,
		BatchID:   row.BatchID,
		BatchName: row.BatchName,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Subjects:  []models.AllocationSubject{},
	}
	if len(row.Subjects) > 0 {
		if err := row.Subjects.Unmarshal(&allocation.Subjects); err != nil {
			return models.Allocation{}, fmt.Errorf("decode allocation %s subjects: %w", row.ID, err)
		}
	}
	return allocation, nil
}

func allocationRowFrom(allocation *models.Allocation) (allocationRow, error) {
	payload, err := json.Marshal(allocation.Subjects)
	if err != nil {
		return allocationRow{}, fmt.Errorf("encode allocation subjects: %w", err)
	}
	return allocationRow{
		ID:        allocation.ID,
		BatchID:   allocation.BatchID,
		BatchName: allocation.BatchName,
		Subjects:  types.JSONText(payload),
		CreatedAt: allocation.CreatedAt,
		UpdatedAt: allocation.UpdatedAt,
	}, nil
}

// AllocationRepository persists batch allocations with their ordered subject lists.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository constructs the repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// List returns every allocation ordered by batch.
func (r *AllocationRepository) List(ctx context.Context) ([]models.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations ORDER BY batch_name ASC, id ASC`
	var rows []allocationRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	result := make([]models.Allocation, 0, len(rows))
	for _, row := range rows {
		allocation, err := row.toModel()
		if err != nil {
			return nil, err
		}
		result = append(result, allocation)
	}
	return result, nil
}

// FindByID loads an allocation by id.
func (r *AllocationRepository) FindByID(ctx context.Context, id string) (*models.Allocation, error) {
	return r.findOne(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1`, id)
}

// FindByBatch loads the allocation owned by a batch.
func (r *AllocationRepository) FindByBatch(ctx context.Context, batchID string) (*models.Allocation, error) {
	return r.findOne(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE batch_id = $1`, batchID)
}

func (r *AllocationRepository) findOne(ctx context.Context, query string, arg string) (*models.Allocation, error) {
	var row allocationRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		return nil, err
	}
	allocation, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

// CountByLecturer counts allocations, other than excludeID, whose subjects reference the lecturer.
func (r *AllocationRepository) CountByLecturer(ctx context.Context, lecturerID, excludeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM allocations
WHERE id <> $2 AND subjects @> jsonb_build_array(jsonb_build_object('lecturerId', $1::text))`
	var count int
	if err := r.db.GetContext(ctx, &count, query, lecturerID, excludeID); err != nil {
		return 0, fmt.Errorf("count allocations by lecturer: %w", err)
	}
	return count, nil
}

// Create inserts a new allocation.
func (r *AllocationRepository) Create(ctx context.Context, allocation *models.Allocation) error {
	if allocation == nil {
		return fmt.Errorf("allocation payload is nil")
	}
	if allocation.ID == "" {
		allocation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	allocation.CreatedAt = now
	allocation.UpdatedAt = now

	row, err := allocationRowFrom(allocation)
	if err != nil {
		return err
	}
	const query = `INSERT INTO allocations (id, batch_id, batch_name, subjects, created_at, updated_at)
VALUES (:id, :batch_id, :batch_name, :subjects, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert allocation: %w", err)
	}
	return nil
}

// Update replaces the batch and subject list of an allocation.
func (r *AllocationRepository) Update(ctx context.Context, allocation *models.Allocation) error {
	if allocation == nil {
		return fmt.Errorf("allocation payload is nil")
	}
	allocation.UpdatedAt = time.Now().UTC()
	row, err := allocationRowFrom(allocation)
	if err != nil {
		return err
	}
	const query = `UPDATE allocations SET batch_id = :batch_id, batch_name = :batch_name, subjects = :subjects,
updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("update allocation: %w", err)
	}
	return requireAffected(result, "allocation")
}

// Delete removes an allocation.
func (r *AllocationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM allocations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return requireAffected(result, "allocation")
}
