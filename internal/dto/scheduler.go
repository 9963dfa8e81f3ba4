package dto

import (
	"time"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

// GenerateTimetableRequest triggers automatic placement for one batch.
type GenerateTimetableRequest struct {
	Batch   string `json:"batch" validate:"required"`
	Replace bool   `json:"replace"`
}

// GenerateTimetableResponse returns the persisted timetable.
type GenerateTimetableResponse struct {
	Timetable models.Timetable `json:"timetable"`
	Replaced  int              `json:"replaced"`
}

// TimetableQuery filters timetable listings.
type TimetableQuery struct {
	Batch string `form:"batch"`
}

// CreateTimetableRequest records one manual session.
type CreateTimetableRequest struct {
	Batch      string `json:"batch" validate:"required"`
	Subject    string `json:"subject" validate:"required"`
	SubjectID  string `json:"subjectId"`
	Lecturer   string `json:"lecturer" validate:"required"`
	LecturerID string `json:"lecturerId"`
	Room       string `json:"room" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string `json:"time" validate:"required,datetime=15:04"`
	Duration   int    `json:"duration" validate:"omitempty,min=1,max=10"`
}

// UpdateTimetableSubjectRequest edits one placed session.
type UpdateTimetableSubjectRequest struct {
	Subject    string `json:"subject" validate:"required"`
	SubjectID  string `json:"subjectId"`
	Lecturer   string `json:"lecturer" validate:"required"`
	LecturerID string `json:"lecturerId"`
	Room       string `json:"room" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string `json:"time" validate:"required,datetime=15:04"`
	Duration   int    `json:"duration" validate:"omitempty,min=1,max=10"`
}

// BulkDeleteResponse reports how many timetables were removed for a batch.
type BulkDeleteResponse struct {
	Batch   string `json:"batch"`
	Deleted int    `json:"deleted"`
}

// TimetableCSVRow is the export layout of one session.
type TimetableCSVRow struct {
	TimetableID string `csv:"timetable_id"`
	Batch       string `csv:"batch"`
	Date        string `csv:"date"`
	Time        string `csv:"time"`
	Duration    int    `csv:"duration"`
	Subject     string `csv:"subject"`
	SubjectID   string `csv:"subject_id"`
	Lecturer    string `csv:"lecturer"`
	LecturerID  string `csv:"lecturer_id"`
	Room        string `csv:"room"`
}

// Resolution modes.
const (
	ResolveDeleteBoth = "deleteBoth"
	ResolveKeepA      = "keep:A"
	ResolveKeepB      = "keep:B"
)

// Per-side resolution outcomes.
const (
	OutcomeSubjectRemoved = "SUBJECT_REMOVED"
	OutcomeEntryDeleted   = "ENTRY_DELETED"
	OutcomeUntouched      = "UNTOUCHED"
	OutcomeAlreadyRemoved = "ALREADY_REMOVED"
	OutcomeFailed         = "FAILED"
	OutcomeRolledBack     = "ROLLED_BACK"
)

// ResolveConflictRequest applies a resolution to the conflict at Index of the batch scan.
// Schedule ids, when supplied, guard against acting on a stale list.
type ResolveConflictRequest struct {
	Batch       string `json:"batch"`
	Index       int    `json:"index" validate:"min=0"`
	Mode        string `json:"mode" validate:"required,oneof=deleteBoth keep:A keep:B"`
	Schedule1ID string `json:"schedule1Id"`
	Schedule2ID string `json:"schedule2Id"`
}

// ResolutionSideResult describes what happened to one side of a conflict.
type ResolutionSideResult struct {
	Side        string `json:"side"`
	TimetableID string `json:"timetableId"`
	SubjectID   string `json:"subjectId"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

// ResolveConflictResponse summarises an applied resolution.
type ResolveConflictResponse struct {
	Mode     string                 `json:"mode"`
	Conflict models.ConflictRecord  `json:"conflict"`
	Sides    []ResolutionSideResult `json:"sides"`
}

// AllocationRequest is the create/update payload for an allocation.
type AllocationRequest struct {
	BatchID   string                     `json:"batchId" validate:"required"`
	BatchName string                     `json:"batchName"`
	Subjects  []models.AllocationSubject `json:"subjects" validate:"required,min=1,dive"`
}

// SubstituteSearchRequest starts an asynchronous substitute lookup.
type SubstituteSearchRequest struct {
	LecturerID   string `json:"lecturerId" validate:"required"`
	ScheduleType string `json:"scheduleType" validate:"required,oneof=Weekdays Weekend"`
	SubjectID    string `json:"subjectId"`
}

// Substitute search states.
const (
	SearchStatusPending   = "PENDING"
	SearchStatusFound     = "FOUND"
	SearchStatusNoMatch   = "NO_MATCH"
	SearchStatusCancelled = "CANCELLED"
	SearchStatusFailed    = "FAILED"
)

// SubstituteSearch is the pollable state of a substitute lookup.
type SubstituteSearch struct {
	SearchID     string           `json:"searchId"`
	Status       string           `json:"status"`
	LecturerID   string           `json:"lecturerId"`
	ScheduleType string           `json:"scheduleType"`
	SubjectID    string           `json:"subjectId,omitempty"`
	Substitute   *models.Lecturer `json:"substitute,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	ExpiresAt    time.Time        `json:"expiresAt"`
}

// AcceptSubstituteRequest swaps the lecturer of one subject and retries the save.
// AllocationID selects update instead of create.
type AcceptSubstituteRequest struct {
	AllocationID string            `json:"allocationId"`
	Allocation   AllocationRequest `json:"allocation"`
	SubjectID    string            `json:"subjectId" validate:"required"`
	SubstituteID string            `json:"substituteId" validate:"required"`
}

// MaxWorkloadSetting carries the per-lecturer allocation cap.
type MaxWorkloadSetting struct {
	Value     int        `json:"value" validate:"min=1"`
	Default   bool       `json:"default,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// AvailabilityCell is one weekday/hour cell of the availability grid.
type AvailabilityCell struct {
	Day       int      `json:"day"`
	Weekday   string   `json:"weekday"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Allowed   bool     `json:"allowed"`
	Occupied  bool     `json:"occupied"`
	FreeRooms []string `json:"freeRooms"`
}

// AvailabilityResponse is the batch's grid for the next seven days.
type AvailabilityResponse struct {
	Batch         string             `json:"batch"`
	ScheduleType  string             `json:"scheduleType"`
	ReferenceDate string             `json:"referenceDate"`
	Cells         []AvailabilityCell `json:"cells"`
}
