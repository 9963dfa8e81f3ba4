package models

import "time"

// ScheduleType constrains the calendar days a batch or lecturer attends.
type ScheduleType string

const (
	ScheduleTypeWeekdays ScheduleType = "Weekdays"
	ScheduleTypeWeekend  ScheduleType = "Weekend"
)

// Batch is a cohort of students.
type Batch struct {
	BatchNo      string       `db:"batch_no" json:"batchNo"`
	BatchName    string       `db:"batch_name" json:"batchName"`
	Year         int          `db:"year" json:"year"`
	Department   string       `db:"department" json:"department"`
	StudentCount int          `db:"student_count" json:"studentCount"`
	StartDate    time.Time    `db:"start_date" json:"startDate"`
	EndDate      time.Time    `db:"end_date" json:"endDate"`
	ScheduleType ScheduleType `db:"schedule_type" json:"scheduleType"`
}
