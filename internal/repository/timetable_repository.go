package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const timetableColumns = `id, allocation_id, batch, created_at, updated_at`

const timetableSubjectColumns = `id, timetable_id, subject, subject_id, lecturer, lecturer_id, room,
to_char(date, 'YYYY-MM-DD') AS date, to_char(start_time, 'HH24:MI') AS time, duration, position`

// TimetableRepository persists timetables and their placed sessions.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns timetables with their sessions, optionally scoped to one batch.
// Ordering is stable: timetables by creation then id, sessions by position.
func (r *TimetableRepository) List(ctx context.Context, batch string) ([]models.Timetable, error) {
	return r.list(ctx, r.db, batch)
}

// ListTx is List evaluated inside the caller's transaction.
func (r *TimetableRepository) ListTx(ctx context.Context, exec sqlx.ExtContext, batch string) ([]models.Timetable, error) {
	return r.list(ctx, r.exec(exec), batch)
}

func (r *TimetableRepository) list(ctx context.Context, target sqlx.ExtContext, batch string) ([]models.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables`
	args := []interface{}{}
	if batch != "" {
		query += ` WHERE batch = $1`
		args = append(args, batch)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var timetables []models.Timetable
	if err := sqlx.SelectContext(ctx, target, &timetables, query, args...); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	if len(timetables) == 0 {
		return timetables, nil
	}

	ids := make([]string, len(timetables))
	for i, tt := range timetables {
		ids[i] = tt.ID
	}
	subjectQuery := `SELECT ` + timetableSubjectColumns + `
FROM timetable_subjects WHERE timetable_id = ANY($1) ORDER BY timetable_id ASC, position ASC`
	var subjects []models.TimetableSubject
	if err := sqlx.SelectContext(ctx, target, &subjects, subjectQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list timetable subjects: %w", err)
	}

	grouped := make(map[string][]models.TimetableSubject, len(timetables))
	for _, subject := range subjects {
		grouped[subject.TimetableID] = append(grouped[subject.TimetableID], subject)
	}
	for i := range timetables {
		timetables[i].Subjects = grouped[timetables[i].ID]
		if timetables[i].Subjects == nil {
			timetables[i].Subjects = []models.TimetableSubject{}
		}
	}
	return timetables, nil
}

// FindByID loads one timetable with its sessions.
func (r *TimetableRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error) {
	target := r.exec(exec)
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1`
	var timetable models.Timetable
	if err := sqlx.GetContext(ctx, target, &timetable, query, id); err != nil {
		return nil, err
	}
	subjectQuery := `SELECT ` + timetableSubjectColumns + `
FROM timetable_subjects WHERE timetable_id = $1 ORDER BY position ASC`
	var subjects []models.TimetableSubject
	if err := sqlx.SelectContext(ctx, target, &subjects, subjectQuery, id); err != nil {
		return nil, fmt.Errorf("load timetable subjects: %w", err)
	}
	if subjects == nil {
		subjects = []models.TimetableSubject{}
	}
	timetable.Subjects = subjects
	return &timetable, nil
}

// Create inserts a timetable and all of its sessions.
func (r *TimetableRepository) Create(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.Batch == "" {
		return fmt.Errorf("batch is required")
	}
	target := r.exec(exec)
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	const insertTimetable = `INSERT INTO timetables (id, allocation_id, batch, created_at, updated_at)
VALUES (:id, :allocation_id, :batch, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertTimetable, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}

	for i := range timetable.Subjects {
		subject := &timetable.Subjects[i]
		subject.TimetableID = timetable.ID
		subject.Position = i
		if err := r.insertSubject(ctx, target, subject); err != nil {
			return err
		}
	}
	return nil
}

func (r *TimetableRepository) insertSubject(ctx context.Context, target sqlx.ExtContext, subject *models.TimetableSubject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	const query = `INSERT INTO timetable_subjects
(id, timetable_id, subject, subject_id, lecturer, lecturer_id, room, date, start_time, duration, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := target.ExecContext(ctx, query,
		subject.ID, subject.TimetableID, subject.Subject, subject.SubjectID,
		subject.Lecturer, subject.LecturerID, subject.Room,
		subject.Date, subject.Time, subject.Duration, subject.Position,
	); err != nil {
		return fmt.Errorf("insert timetable subject: %w", err)
	}
	return nil
}

// UpdateSubject rewrites one session in place.
func (r *TimetableRepository) UpdateSubject(ctx context.Context, exec sqlx.ExtContext, subject *models.TimetableSubject) error {
	target := r.exec(exec)
	const query = `UPDATE timetable_subjects SET subject = $1, subject_id = $2, lecturer = $3, lecturer_id = $4,
room = $5, date = $6, start_time = $7, duration = $8 WHERE id = $9 AND timetable_id = $10`
	result, err := target.ExecContext(ctx, query,
		subject.Subject, subject.SubjectID, subject.Lecturer, subject.LecturerID,
		subject.Room, subject.Date, subject.Time, subject.Duration, subject.ID, subject.TimetableID,
	)
	if err != nil {
		return fmt.Errorf("update timetable subject: %w", err)
	}
	if err := requireAffected(result, "timetable subject"); err != nil {
		return err
	}
	return r.touch(ctx, target, subject.TimetableID)
}

// DeleteSubject removes one session from a timetable.
func (r *TimetableRepository) DeleteSubject(ctx context.Context, exec sqlx.ExtContext, timetableID, subjectID string) error {
	target := r.exec(exec)
	const query = `DELETE FROM timetable_subjects WHERE id = $1 AND timetable_id = $2`
	result, err := target.ExecContext(ctx, query, subjectID, timetableID)
	if err != nil {
		return fmt.Errorf("delete timetable subject: %w", err)
	}
	if err := requireAffected(result, "timetable subject"); err != nil {
		return err
	}
	return r.touch(ctx, target, timetableID)
}

// CountSubjects returns how many sessions a timetable still holds.
func (r *TimetableRepository) CountSubjects(ctx context.Context, exec sqlx.ExtContext, timetableID string) (int, error) {
	const query = `SELECT COUNT(*) FROM timetable_subjects WHERE timetable_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, timetableID); err != nil {
		return 0, fmt.Errorf("count timetable subjects: %w", err)
	}
	return count, nil
}

// CountByAllocation returns how many generated timetables reference an allocation.
func (r *TimetableRepository) CountByAllocation(ctx context.Context, exec sqlx.ExtContext, allocationID string) (int, error) {
	const query = `SELECT COUNT(*) FROM timetables WHERE allocation_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, allocationID); err != nil {
		return 0, fmt.Errorf("count timetables by allocation: %w", err)
	}
	return count, nil
}

// Delete removes a timetable; sessions cascade.
func (r *TimetableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return requireAffected(result, "timetable")
}

// DeleteByBatch removes every timetable of a batch and reports how many went.
func (r *TimetableRepository) DeleteByBatch(ctx context.Context, exec sqlx.ExtContext, batch string) (int64, error) {
	const query = `DELETE FROM timetables WHERE batch = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, batch)
	if err != nil {
		return 0, fmt.Errorf("delete timetables by batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timetable rows affected: %w", err)
	}
	return affected, nil
}

func (r *TimetableRepository) touch(ctx context.Context, target sqlx.ExtContext, timetableID string) error {
	const query = `UPDATE timetables SET updated_at = $1 WHERE id = $2`
	if _, err := target.ExecContext(ctx, query, time.Now().UTC(), timetableID); err != nil {
		return fmt.Errorf("touch timetable: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result, entity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
