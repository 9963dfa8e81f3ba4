package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type allocationByBatchStub map[string]models.Allocation

func (s allocationByBatchStub) FindByBatch(ctx context.Context, batchID string) (*models.Allocation, error) {
	allocation, ok := s[batchID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &allocation, nil
}

func newGeneratorUnderTest(t *testing.T, store *memTimetableStore, cache *cacheStub, rooms []models.Room, cfg TimetableGeneratorConfig) (*TimetableGeneratorService, sqlmock.Sqlmock) {
	tx, mock := newMockTxProvider(t)
	batches := batchStub{"cs": weekdayBatch(), "csw": weekendBatch()}
	allocations := allocationByBatchStub{
		"B-CS-2024": {ID: "alloc-1", BatchID: "B-CS-2024", BatchName: "CS2024", Subjects: []models.AllocationSubject{
			allocationSubject("Algorithms", "L1"),
			allocationSubject("Databases", "L2"),
			allocationSubject("Networks", "L1"),
		}},
		"B-CS-2024-W": {ID: "alloc-2", BatchID: "B-CS-2024-W", BatchName: "CS2024-W", Subjects: []models.AllocationSubject{
			allocationSubject("Maths", "L1"),
			allocationSubject("Physics", "L2"),
			allocationSubject("Chemistry", "L3"),
		}},
	}
	svc := NewTimetableGeneratorService(batches, roomStub(rooms), allocations, store, tx, cache, nil, newFixedClock(monday), nil, nil, cfg)
	return svc, mock
}

func TestTimetableGeneratorPlacesEverySubjectWithoutConflicts(t *testing.T) {
	other := models.Timetable{ID: "other", Batch: "EE2024", Subjects: []models.TimetableSubject{
		session("x", "R1", "L1", "2024-01-01", "08:00", 1),
	}}
	store := newMemTimetableStore(other)
	cache := newCacheStub()
	svc, mock := newGeneratorUnderTest(t, store, cache, []models.Room{lectureHall("R1"), lectureHall("R2")}, TimetableGeneratorConfig{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "CS2024"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, resp.Timetable.Subjects, 3)
	require.NotNil(t, resp.Timetable.AllocationID)
	assert.Equal(t, "alloc-1", *resp.Timetable.AllocationID)
	assert.Equal(t, "CS2024", resp.Timetable.Batch)
	assert.Equal(t, 0, resp.Replaced)
	for _, subject := range resp.Timetable.Subjects {
		assert.Equal(t, 1, subject.Duration)
		assert.Equal(t, "2024-01-01", subject.Date)
	}

	stored := store.All()
	require.Len(t, stored, 2)
	assertNoDoubleBooking(t, stored)
	assert.Contains(t, cache.invalidated, conflictCachePattern)
}

func TestTimetableGeneratorIsAllOrNothing(t *testing.T) {
	store := newMemTimetableStore(crowdedWeekend())
	svc, mock := newGeneratorUnderTest(t, store, newCacheStub(), []models.Room{lectureHall("R1")}, TimetableGeneratorConfig{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "CS2024-W"})
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, errors.Is(err, appErrors.ErrPlacementFailed))
	appErr := appErrors.FromError(err)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Chemistry", details["subject"])
	assert.Equal(t, "SUB-Chemistry", details["subjectId"])

	stored := store.All()
	require.Len(t, stored, 1, "nothing is persisted when a subject cannot be placed")
	assert.Equal(t, "crowded", stored[0].ID)
}

func TestTimetableGeneratorRejectsExistingWithoutReplace(t *testing.T) {
	allocationID := "alloc-1"
	previous := models.Timetable{ID: "prev", AllocationID: &allocationID, Batch: "CS2024", Subjects: []models.TimetableSubject{
		session("p", "R1", "L1", "2024-01-01", "08:00", 1),
	}}
	store := newMemTimetableStore(previous)
	svc, mock := newGeneratorUnderTest(t, store, newCacheStub(), []models.Room{lectureHall("R1")}, TimetableGeneratorConfig{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "CS2024"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Len(t, store.All(), 1)
}

func TestTimetableGeneratorReplaceDropsPreviousTimetable(t *testing.T) {
	allocationID := "alloc-1"
	previous := models.Timetable{ID: "prev", AllocationID: &allocationID, Batch: "CS2024", Subjects: []models.TimetableSubject{
		session("p", "R1", "L1", "2024-01-01", "08:00", 1),
	}}
	store := newMemTimetableStore(previous)
	svc, mock := newGeneratorUnderTest(t, store, newCacheStub(), []models.Room{lectureHall("R1")}, TimetableGeneratorConfig{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "B-CS-2024", Replace: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, resp.Replaced)
	assert.Equal(t, "08:00", resp.Timetable.Subjects[0].Time, "the replaced timetable no longer blocks its slots")
	stored := store.All()
	require.Len(t, stored, 1)
	assert.NotEqual(t, "prev", stored[0].ID)
}

func TestTimetableGeneratorUsesConfiguredDurationAndOverlapMode(t *testing.T) {
	other := models.Timetable{ID: "other", Batch: "EE2024", Subjects: []models.TimetableSubject{
		session("x", "R1", "L9", "2024-01-01", "09:00", 1),
	}}
	store := newMemTimetableStore(other)
	svc, mock := newGeneratorUnderTest(t, store, newCacheStub(), []models.Room{lectureHall("R1")}, TimetableGeneratorConfig{SessionDuration: 2})
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "CS2024"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	first := resp.Timetable.Subjects[0]
	assert.Equal(t, "10:00", first.Time)
	assert.Equal(t, 2, first.Duration)
	assertNoDoubleBooking(t, store.All())
}

func TestTimetableGeneratorUnknownBatch(t *testing.T) {
	svc, mock := newGeneratorUnderTest(t, newMemTimetableStore(), newCacheStub(), nil, TimetableGeneratorConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "missing"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableGeneratorMissingAllocation(t *testing.T) {
	tx, mock := newMockTxProvider(t)
	batches := batchStub{"ee": {BatchNo: "B-EE", BatchName: "EE2024", ScheduleType: models.ScheduleTypeWeekdays}}
	svc := NewTimetableGeneratorService(batches, roomStub(nil), allocationByBatchStub{}, newMemTimetableStore(), tx, nil, nil, newFixedClock(monday), nil, nil, TimetableGeneratorConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Batch: "EE2024"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableGeneratorValidatesRequest(t *testing.T) {
	svc, _ := newGeneratorUnderTest(t, newMemTimetableStore(), newCacheStub(), nil, TimetableGeneratorConfig{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	fields, ok := appErr.Details.([]appErrors.FieldError)
	require.True(t, ok)
	assert.Equal(t, "Batch", fields[0].Field)
}
