package models

import "time"

// Timetable groups the committed class sessions of one batch. Generated timetables
// reference the allocation they were built from; manual entries hold a single subject.
type Timetable struct {
	ID           string             `db:"id" json:"id"`
	AllocationID *string            `db:"allocation_id" json:"allocationId,omitempty"`
	Batch        string             `db:"batch" json:"batch"`
	Subjects     []TimetableSubject `db:"-" json:"subjects"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`
}

// TimetableSubject is one placed session: a subject taught in a room on a date.
// Date is YYYY-MM-DD and Time is HH:MM on the hourly grid; Duration is in hours.
type TimetableSubject struct {
	ID          string `db:"id" json:"id"`
	TimetableID string `db:"timetable_id" json:"timetableId"`
	Subject     string `db:"subject" json:"subject"`
	SubjectID   string `db:"subject_id" json:"subjectId"`
	Lecturer    string `db:"lecturer" json:"lecturer"`
	LecturerID  string `db:"lecturer_id" json:"lecturerId"`
	Room        string `db:"room" json:"room"`
	Date        string `db:"date" json:"date"`
	Time        string `db:"time" json:"time"`
	Duration    int    `db:"duration" json:"duration"`
	Position    int    `db:"position" json:"-"`
}

// Conflict dimensions.
const (
	ConflictDimensionRoom     = "ROOM"
	ConflictDimensionLecturer = "LECTURER"
	ConflictDimensionBoth     = "ROOM_AND_LECTURER"
)

// ConflictRecord pairs two timetable sessions whose windows overlap on a shared room or lecturer.
type ConflictRecord struct {
	Index     int              `json:"index"`
	Dimension string           `json:"dimension"`
	Schedule1 Timetable        `json:"schedule1"`
	Schedule2 Timetable        `json:"schedule2"`
	Subject1  TimetableSubject `json:"subject1"`
	Subject2  TimetableSubject `json:"subject2"`
}

// ScheduleConflictError is returned when a manual session collides with an existing one.
type ScheduleConflictError struct {
	Type     string           `json:"type"`
	Message  string           `json:"message"`
	Existing TimetableSubject `json:"existing"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
