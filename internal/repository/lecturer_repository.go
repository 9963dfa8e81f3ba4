package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

const lecturerColumns = `lecturer_id, name, department, schedule_type, skills`

// LecturerRepository reads lecturers and their skills.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository constructs the repository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

// List returns every lecturer ordered by id.
func (r *LecturerRepository) List(ctx context.Context) ([]models.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM lecturers ORDER BY lecturer_id ASC`
	var lecturers []models.Lecturer
	if err := r.db.SelectContext(ctx, &lecturers, query); err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	return lecturers, nil
}

// FindByID loads one lecturer.
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	query := `SELECT ` + lecturerColumns + ` FROM lecturers WHERE lecturer_id = $1`
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, query, id); err != nil {
		return nil, err
	}
	return &lecturer, nil
}
