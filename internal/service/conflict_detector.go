package service

import (
	"time"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

type scheduledItem struct {
	timetable *models.Timetable
	subject   models.TimetableSubject
	start     time.Time
	end       time.Time
	lecturer  string
}

// windowsOverlap is the half-open interval test [aStart, aEnd) x [bStart, bEnd).
func windowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func flattenTimetables(timetables []models.Timetable) []scheduledItem {
	items := make([]scheduledItem, 0, len(timetables))
	for i := range timetables {
		tt := &timetables[i]
		for _, subject := range tt.Subjects {
			start, err := parseSessionStart(subject.Date, subject.Time)
			if err != nil {
				continue
			}
			items = append(items, scheduledItem{
				timetable: tt,
				subject:   subject,
				start:     start,
				end:       start.Add(time.Duration(sessionDuration(subject.Duration)) * time.Hour),
				lecturer:  lecturerKey(subject.LecturerID, subject.Lecturer),
			})
		}
	}
	return items
}

func conflictDimension(a, b scheduledItem) (string, bool) {
	sameRoom := a.subject.Room != "" && a.subject.Room == b.subject.Room
	sameLecturer := a.lecturer != "" && a.lecturer == b.lecturer
	switch {
	case sameRoom && sameLecturer:
		return models.ConflictDimensionBoth, true
	case sameRoom:
		return models.ConflictDimensionRoom, true
	case sameLecturer:
		return models.ConflictDimensionLecturer, true
	default:
		return "", false
	}
}

// DetectConflicts pairs every two sessions whose windows overlap on a shared room or
// lecturer. Sessions are compared in timetable then position order and the earlier
// one is always side 1. The input is not modified.
func DetectConflicts(timetables []models.Timetable) []models.ConflictRecord {
	items := flattenTimetables(timetables)
	records := make([]models.ConflictRecord, 0)
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			a, b := items[i], items[j]
			if !windowsOverlap(a.start, a.end, b.start, b.end) {
				continue
			}
			dimension, ok := conflictDimension(a, b)
			if !ok {
				continue
			}
			records = append(records, models.ConflictRecord{
				Index:     len(records),
				Dimension: dimension,
				Schedule1: *a.timetable,
				Schedule2: *b.timetable,
				Subject1:  a.subject,
				Subject2:  b.subject,
			})
		}
	}
	return records
}

// findSessionConflict returns the first session in timetables that collides with the
// candidate, skipping the session identified by ignoreID.
func findSessionConflict(timetables []models.Timetable, candidate models.TimetableSubject, ignoreID string) (*models.TimetableSubject, string, error) {
	start, err := parseSessionStart(candidate.Date, candidate.Time)
	if err != nil {
		return nil, "", err
	}
	probe := scheduledItem{
		subject:  candidate,
		start:    start,
		end:      start.Add(time.Duration(sessionDuration(candidate.Duration)) * time.Hour),
		lecturer: lecturerKey(candidate.LecturerID, candidate.Lecturer),
	}
	for _, item := range flattenTimetables(timetables) {
		if ignoreID != "" && item.subject.ID == ignoreID {
			continue
		}
		if !windowsOverlap(probe.start, probe.end, item.start, item.end) {
			continue
		}
		if dimension, ok := conflictDimension(probe, item); ok {
			existing := item.subject
			return &existing, dimension, nil
		}
	}
	return nil, "", nil
}
