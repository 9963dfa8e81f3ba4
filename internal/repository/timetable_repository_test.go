package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var subjectRowColumns = []string{"id", "timetable_id", "subject", "subject_id", "lecturer", "lecturer_id", "room", "date", "time", "duration", "position"}

func TestTimetableRepositoryListGroupsSubjects(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE batch = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("CS2024").
		WillReturnRows(sqlmock.NewRows([]string{"id", "allocation_id", "batch", "created_at", "updated_at"}).
			AddRow("tt-1", "alloc-1", "CS2024", now, now).
			AddRow("tt-2", nil, "CS2024", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_subjects WHERE timetable_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(subjectRowColumns).
			AddRow("s-1", "tt-1", "Math", "SUB1", "Jane", "L1", "L001", "2025-06-02", "09:00", 2, 0).
			AddRow("s-2", "tt-1", "Physics", "SUB2", "John", "L2", "L002", "2025-06-02", "10:00", 1, 1))

	list, err := repo.List(context.Background(), "CS2024")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Len(t, list[0].Subjects, 2)
	assert.Equal(t, "Math", list[0].Subjects[0].Subject)
	assert.Equal(t, "alloc-1", *list[0].AllocationID)
	assert.Nil(t, list[1].AllocationID)
	assert.NotNil(t, list[1].Subjects)
	assert.Empty(t, list[1].Subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListEmptySkipsSubjects(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables ORDER BY created_at ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "allocation_id", "batch", "created_at", "updated_at"}))

	list, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateInsertsSubjects(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	allocationID := "alloc-1"
	timetable := &models.Timetable{
		AllocationID: &allocationID,
		Batch:        "CS2024",
		Subjects: []models.TimetableSubject{
			{Subject: "Math", SubjectID: "SUB1", Lecturer: "Jane", LecturerID: "L1", Room: "L001", Date: "2025-06-02", Time: "08:00", Duration: 1},
			{Subject: "Physics", SubjectID: "SUB2", Lecturer: "John", LecturerID: "L2", Room: "L001", Date: "2025-06-02", Time: "09:00", Duration: 1},
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "alloc-1", "CS2024", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_subjects")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Math", "SUB1", "Jane", "L1", "L001", "2025-06-02", "08:00", 1, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_subjects")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Physics", "SUB2", "John", "L2", "L001", "2025-06-02", "09:00", 1, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), nil, timetable))
	assert.NotEmpty(t, timetable.ID)
	assert.Equal(t, timetable.ID, timetable.Subjects[1].TimetableID)
	assert.NotEmpty(t, timetable.Subjects[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteSubjectNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_subjects WHERE id = $1 AND timetable_id = $2")).
		WithArgs("s-9", "tt-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteSubject(context.Background(), nil, "tt-1", "s-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteSubjectTouchesTimetable(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_subjects")).
		WithArgs("s-1", "tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET updated_at = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteSubject(context.Background(), nil, "tt-1", "s-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteByBatch(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE batch = $1")).
		WithArgs("CS2024").
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteByBatch(context.Background(), nil, "CS2024")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCountSubjectsInTx(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_subjects WHERE timetable_id = $1")).
		WithArgs("tt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	count, err := repo.CountSubjects(context.Background(), tx, "tt-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
