package models

import "github.com/lib/pq"

// Lecturer teaches subjects; skills drive substitute matching.
type Lecturer struct {
	LecturerID   string         `db:"lecturer_id" json:"lecturerId"`
	Name         string         `db:"name" json:"name"`
	Department   string         `db:"department" json:"department"`
	ScheduleType ScheduleType   `db:"schedule_type" json:"scheduleType"`
	Skills       pq.StringArray `db:"skills" json:"skills"`
}
