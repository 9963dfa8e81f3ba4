package models

import "time"

// AllocationSubject pairs a subject with the lecturer teaching it for a batch.
type AllocationSubject struct {
	SubjectName  string `json:"subjectName" validate:"required"`
	SubjectID    string `json:"subjectId" validate:"required"`
	LecturerName string `json:"lecturerName"`
	LecturerID   string `json:"lecturerId" validate:"required"`
}

// Allocation is the ordered subject-to-lecturer assignment set of one batch.
type Allocation struct {
	ID        string              `json:"allocationId"`
	BatchID   string              `json:"batchId"`
	BatchName string              `json:"batchName"`
	Subjects  []AllocationSubject `json:"subjects"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// WorkloadViolation describes the subject whose lecturer reached the workload cap.
type WorkloadViolation struct {
	Subject    string `json:"subject"`
	SubjectID  string `json:"subjectId"`
	LecturerID string `json:"lecturerId"`
	Lecturer   string `json:"lecturer,omitempty"`
	Limit      int    `json:"limit"`
	Current    int    `json:"current"`
	Message    string `json:"message"`
}
