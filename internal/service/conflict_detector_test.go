package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

func TestDetectConflictsLecturerOverlappingWindow(t *testing.T) {
	timetables := []models.Timetable{
		{ID: "t1", Batch: "CS2024", Subjects: []models.TimetableSubject{session("a", "R1", "L001", "2024-01-01", "09:00", 2)}},
		{ID: "t2", Batch: "EE2024", Subjects: []models.TimetableSubject{session("b", "R2", "L001", "2024-01-01", "10:00", 1)}},
	}

	conflicts := DetectConflicts(timetables)
	require.Len(t, conflicts, 1)
	assert.Equal(t, 0, conflicts[0].Index)
	assert.Equal(t, models.ConflictDimensionLecturer, conflicts[0].Dimension)
	assert.Equal(t, "t1", conflicts[0].Schedule1.ID)
	assert.Equal(t, "t2", conflicts[0].Schedule2.ID)
	assert.Equal(t, "a", conflicts[0].Subject1.ID)
	assert.Equal(t, "b", conflicts[0].Subject2.ID)
}

func TestDetectConflictsAdjacentSessionsDoNotCollide(t *testing.T) {
	timetables := []models.Timetable{
		{ID: "t1", Batch: "CS2024", Subjects: []models.TimetableSubject{
			session("a", "R1", "L001", "2024-01-01", "09:00", 1),
			session("b", "R1", "L001", "2024-01-01", "10:00", 1),
		}},
		{ID: "t2", Batch: "EE2024", Subjects: []models.TimetableSubject{session("c", "R1", "L001", "2024-01-02", "09:00", 1)}},
	}

	assert.Empty(t, DetectConflicts(timetables))
}

func TestDetectConflictsDimensions(t *testing.T) {
	timetables := []models.Timetable{
		{ID: "t1", Batch: "A", Subjects: []models.TimetableSubject{session("a", "R1", "L1", "2024-01-01", "08:00", 1)}},
		{ID: "t2", Batch: "B", Subjects: []models.TimetableSubject{session("b", "R1", "L2", "2024-01-01", "08:00", 1)}},
		{ID: "t3", Batch: "C", Subjects: []models.TimetableSubject{session("c", "R1", "L1", "2024-01-01", "08:00", 1)}},
	}

	conflicts := DetectConflicts(timetables)
	require.Len(t, conflicts, 3)
	assert.Equal(t, models.ConflictDimensionRoom, conflicts[0].Dimension)
	assert.Equal(t, models.ConflictDimensionBoth, conflicts[1].Dimension)
	assert.Equal(t, models.ConflictDimensionRoom, conflicts[2].Dimension)
	for i, c := range conflicts {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, "t2", conflicts[2].Schedule1.ID)
	assert.Equal(t, "t3", conflicts[2].Schedule2.ID)
}

func TestDetectConflictsMatchesLecturerByNameWhenIDMissing(t *testing.T) {
	a := session("a", "R1", "", "2024-01-01", "08:00", 1)
	a.Lecturer = "Jane Doe"
	b := session("b", "R2", "", "2024-01-01", "08:00", 1)
	b.Lecturer = " jane doe"
	timetables := []models.Timetable{
		{ID: "t1", Batch: "A", Subjects: []models.TimetableSubject{a}},
		{ID: "t2", Batch: "B", Subjects: []models.TimetableSubject{b}},
	}

	conflicts := DetectConflicts(timetables)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictDimensionLecturer, conflicts[0].Dimension)
}

func TestDetectConflictsDoesNotModifyInput(t *testing.T) {
	timetables := []models.Timetable{
		{ID: "t1", Batch: "A", Subjects: []models.TimetableSubject{session("a", "R1", "L1", "2024-01-01", "08:00", 1)}},
		{ID: "t2", Batch: "B", Subjects: []models.TimetableSubject{session("b", "R1", "L2", "2024-01-01", "08:00", 1)}},
	}
	before := []models.Timetable{cloneTimetable(timetables[0]), cloneTimetable(timetables[1])}

	DetectConflicts(timetables)
	assert.Equal(t, before, timetables)
}

func TestFindSessionConflictRejectsStartInsideExistingWindow(t *testing.T) {
	existing := []models.Timetable{
		{ID: "t1", Batch: "CS2024", Subjects: []models.TimetableSubject{session("a", "R1", "L001", "2024-01-01", "09:00", 2)}},
	}

	collision, dimension, err := findSessionConflict(existing, session("new", "R2", "L001", "2024-01-01", "10:00", 1), "")
	require.NoError(t, err)
	require.NotNil(t, collision)
	assert.Equal(t, "a", collision.ID)
	assert.Equal(t, models.ConflictDimensionLecturer, dimension)

	collision, _, err = findSessionConflict(existing, session("new", "R2", "L001", "2024-01-01", "11:00", 1), "")
	require.NoError(t, err)
	assert.Nil(t, collision)

	collision, _, err = findSessionConflict(existing, session("a", "R1", "L001", "2024-01-01", "10:00", 1), "a")
	require.NoError(t, err)
	assert.Nil(t, collision, "a session never collides with its own previous window")

	_, _, err = findSessionConflict(existing, session("bad", "R1", "L001", "2024-13-01", "10:00", 1), "")
	assert.Error(t, err)
}
