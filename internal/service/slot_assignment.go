package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/campus-timetable-api/internal/models"
	"github.com/noah-isme/campus-timetable-api/pkg/config"
)

const (
	overlapModeFull  = config.OverlapModeFull
	overlapModeStart = config.OverlapModeStart
)

// Clock supplies the reference date for placement searches.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// placementOptions tunes a placement search.
type placementOptions struct {
	OverlapMode string
	Duration    int
}

// slotPlacement is one subject committed to a day, hour and room.
type slotPlacement struct {
	Subject  models.AllocationSubject
	Day      int
	Slot     int
	Room     string
	Date     time.Time
	Duration int
}

// Hour returns the starting hour of the placement.
func (p slotPlacement) Hour() int {
	return slotHour(p.Slot)
}

func (p slotPlacement) toTimetableSubject() models.TimetableSubject {
	return models.TimetableSubject{
		Subject:    p.Subject.SubjectName,
		SubjectID:  p.Subject.SubjectID,
		Lecturer:   p.Subject.LecturerName,
		LecturerID: p.Subject.LecturerID,
		Room:       p.Room,
		Date:       p.Date.Format(dateLayout),
		Time:       fmt.Sprintf("%02d:00", p.Hour()),
		Duration:   p.Duration,
	}
}

// PlacementError names the subject no free slot could be found for.
type PlacementError struct {
	Subject   string
	SubjectID string
	Position  int
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("no free slot for subject %s within the next %d days", e.Subject, gridDays)
}

// placeSubjects runs the first-fit search over day offset x hour x room for each subject
// in order. Placements are reserved in the index as they are made, so the index is
// mutated; the call either places every subject or returns a *PlacementError.
func placeSubjects(index *AvailabilityIndex, subjects []models.AllocationSubject, opts placementOptions) ([]slotPlacement, error) {
	duration := sessionDuration(opts.Duration)
	mode := opts.OverlapMode
	if mode != overlapModeStart {
		mode = overlapModeFull
	}

	placements := make([]slotPlacement, 0, len(subjects))
	for position, subject := range subjects {
		placement, ok := firstFit(index, subject, duration, mode)
		if !ok {
			return nil, &PlacementError{Subject: subject.SubjectName, SubjectID: subject.SubjectID, Position: position}
		}
		index.Reserve(placement.Day, placement.Slot, duration, placement.Room, lecturerKey(subject.LecturerID, subject.LecturerName))
		placements = append(placements, placement)
	}
	return placements, nil
}

func firstFit(index *AvailabilityIndex, subject models.AllocationSubject, duration int, mode string) (slotPlacement, bool) {
	lecturer := lecturerKey(subject.LecturerID, subject.LecturerName)
	for offset := 0; offset < gridDays; offset++ {
		date := index.reference.AddDate(0, 0, offset)
		day := weekdayIndex(date)
		if !index.Allowed(day) {
			continue
		}
		for slot := 0; slot < gridSlots; slot++ {
			for _, room := range index.Rooms() {
				if !index.CanPlace(day, slot, duration, room, lecturer, mode) {
					continue
				}
				return slotPlacement{
					Subject:  subject,
					Day:      day,
					Slot:     slot,
					Room:     room,
					Date:     date,
					Duration: duration,
				}, true
			}
		}
	}
	return slotPlacement{}, false
}
