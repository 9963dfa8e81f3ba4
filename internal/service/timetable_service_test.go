package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/export"
)

func newTimetableServiceUnderTest(t *testing.T, store *memTimetableStore, cache *cacheStub) (*TimetableService, sqlmock.Sqlmock) {
	tx, mock := newMockTxProvider(t)
	batches := batchStub{"cs": weekdayBatch(), "csw": weekendBatch()}
	rooms := roomStub{lectureHall("R1"), lectureHall("R2"), {LID: "M1", HallType: models.HallTypeMeetingRoom}}
	svc := NewTimetableService(store, batches, rooms, tx, cache, export.NewCSVExporter(0), newFixedClock(monday), nil, nil)
	return svc, mock
}

func lecturerL001Timetable() models.Timetable {
	return models.Timetable{ID: "t1", Batch: "CS2024", Subjects: []models.TimetableSubject{
		session("a", "R1", "L001", "2024-01-01", "09:00", 2),
	}}
}

func manualRequest(room, lecturerID, clock string) dto.CreateTimetableRequest {
	return dto.CreateTimetableRequest{
		Batch:      "EE2024",
		Subject:    "Signals",
		SubjectID:  "SIG",
		Lecturer:   "Lecturer " + lecturerID,
		LecturerID: lecturerID,
		Room:       room,
		Date:       "2024-01-01",
		Time:       clock,
	}
}

func TestTimetableServiceCreateRejectsLecturerInsideExistingWindow(t *testing.T) {
	store := newMemTimetableStore(lecturerL001Timetable())
	svc, mock := newTimetableServiceUnderTest(t, store, newCacheStub())
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), manualRequest("R2", "L001", "10:00"))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	conflict, ok := appErrors.FromError(err).Details.(*models.ScheduleConflictError)
	require.True(t, ok)
	assert.Equal(t, models.ConflictDimensionLecturer, conflict.Type)
	assert.Equal(t, "a", conflict.Existing.ID)
	assert.Len(t, store.All(), 1)
}

func TestTimetableServiceCreateStoresFreeSession(t *testing.T) {
	store := newMemTimetableStore(lecturerL001Timetable())
	cache := newCacheStub()
	svc, mock := newTimetableServiceUnderTest(t, store, cache)
	mock.ExpectBegin()
	mock.ExpectCommit()

	created, err := svc.Create(context.Background(), manualRequest("R1", "L001", "11:00"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "EE2024", created.Batch)
	require.Len(t, created.Subjects, 1)
	assert.Equal(t, 1, created.Subjects[0].Duration)
	assert.Len(t, store.All(), 2)
	assertNoDoubleBooking(t, store.All())
	assert.Contains(t, cache.invalidated, conflictCachePattern)
}

func TestTimetableServiceCreateRequiresHourlyGrid(t *testing.T) {
	svc, mock := newTimetableServiceUnderTest(t, newMemTimetableStore(), newCacheStub())

	_, err := svc.Create(context.Background(), manualRequest("R1", "L001", "09:30"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	late := manualRequest("R1", "L001", "17:00")
	late.Duration = 2
	_, err = svc.Create(context.Background(), late)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), dto.CreateTimetableRequest{Batch: "EE2024"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceUpdateSubjectIgnoresOwnWindow(t *testing.T) {
	store := newMemTimetableStore(lecturerL001Timetable())
	svc, mock := newTimetableServiceUnderTest(t, store, newCacheStub())
	mock.ExpectBegin()
	mock.ExpectCommit()

	updated, err := svc.UpdateSubject(context.Background(), "t1", "a", dto.UpdateTimetableSubjectRequest{
		Subject: "Subject a", Lecturer: "Lecturer L001", LecturerID: "L001", Room: "R1",
		Date: "2024-01-01", Time: "10:00", Duration: 2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "10:00", updated.Time)
	assert.Equal(t, "t1", updated.TimetableID)

	stored, err := store.FindByID(context.Background(), nil, "t1")
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.Subjects[0].Time)
}

func TestTimetableServiceUpdateSubjectRejectsCollision(t *testing.T) {
	other := models.Timetable{ID: "t2", Batch: "EE2024", Subjects: []models.TimetableSubject{session("b", "R2", "L002", "2024-01-01", "13:00", 1)}}
	store := newMemTimetableStore(lecturerL001Timetable(), other)
	svc, mock := newTimetableServiceUnderTest(t, store, newCacheStub())
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.UpdateSubject(context.Background(), "t1", "a", dto.UpdateTimetableSubjectRequest{
		Subject: "Subject a", Lecturer: "Lecturer L001", LecturerID: "L001", Room: "R2",
		Date: "2024-01-01", Time: "12:00", Duration: 2,
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	conflict := appErrors.FromError(err).Details.(*models.ScheduleConflictError)
	assert.Equal(t, models.ConflictDimensionRoom, conflict.Type)
}

func TestTimetableServiceUpdateSubjectNotFound(t *testing.T) {
	store := newMemTimetableStore(lecturerL001Timetable())
	svc, mock := newTimetableServiceUnderTest(t, store, newCacheStub())
	req := dto.UpdateTimetableSubjectRequest{Subject: "X", Lecturer: "Y", Room: "R1", Date: "2024-01-01", Time: "08:00"}

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.UpdateSubject(context.Background(), "missing", "a", req)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.UpdateSubject(context.Background(), "t1", "missing", req)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceDeletes(t *testing.T) {
	store := newMemTimetableStore(
		lecturerL001Timetable(),
		models.Timetable{ID: "t2", Batch: "CS2024"},
		models.Timetable{ID: "t3", Batch: "EE2024"},
	)
	cache := newCacheStub()
	svc, _ := newTimetableServiceUnderTest(t, store, cache)

	require.NoError(t, svc.Delete(context.Background(), "t3"))
	assert.True(t, errors.Is(svc.Delete(context.Background(), "t3"), appErrors.ErrNotFound))

	result, err := svc.DeleteByBatch(context.Background(), "CS2024")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Empty(t, store.All())
	assert.Len(t, cache.invalidated, 2)

	_, err = svc.DeleteByBatch(context.Background(), "  ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimetableServiceExportCSV(t *testing.T) {
	store := newMemTimetableStore(lecturerL001Timetable())
	svc, _ := newTimetableServiceUnderTest(t, store, newCacheStub())

	content, contentType, err := svc.Export(context.Background(), dto.TimetableQuery{Batch: "CS2024"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timetable_id,batch,date,time,duration,subject,subject_id,lecturer,lecturer_id,room", lines[0])
	assert.Equal(t, "t1,CS2024,2024-01-01,09:00,2,Subject a,SUB-a,Lecturer L001,L001,R1", lines[1])
}

func TestTimetableServiceAvailabilityGrid(t *testing.T) {
	store := newMemTimetableStore(models.Timetable{ID: "t1", Batch: "CS2024-W", Subjects: []models.TimetableSubject{
		session("a", "R1", "L1", "2024-01-06", "08:00", 1),
	}})
	svc, _ := newTimetableServiceUnderTest(t, store, newCacheStub())

	grid, err := svc.Availability(context.Background(), "B-CS-2024-W")
	require.NoError(t, err)
	assert.Equal(t, "CS2024-W", grid.Batch)
	assert.Equal(t, "2024-01-01", grid.ReferenceDate)
	require.Len(t, grid.Cells, gridDays*gridSlots)

	saturday := grid.Cells[5*gridSlots]
	assert.Equal(t, "Saturday", saturday.Weekday)
	assert.Equal(t, "2024-01-06", saturday.Date)
	assert.Equal(t, "08:00", saturday.Time)
	assert.True(t, saturday.Allowed)
	assert.True(t, saturday.Occupied)
	assert.Equal(t, []string{"R2"}, saturday.FreeRooms, "meeting rooms are never offered")

	assert.False(t, grid.Cells[0].Allowed)
	assert.Equal(t, "17:00", grid.Cells[gridSlots-1].Time)

	_, err = svc.Availability(context.Background(), "nope")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
