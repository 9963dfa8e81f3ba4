package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

// Operating grid: Monday=0 .. Sunday=6, hourly slots starting 08:00 through 17:00.
const (
	gridDays      = 7
	firstSlotHour = 8
	gridSlots     = 10
	dateLayout    = "2006-01-02"
	timeLayout    = "15:04"
)

var weekdayNames = [gridDays]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// weekdayIndex remaps time.Weekday so Monday is 0 and Sunday is 6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func slotHour(slot int) int {
	return firstSlotHour + slot
}

func slotOf(hour int) (int, bool) {
	slot := hour - firstSlotHour
	return slot, slot >= 0 && slot < gridSlots
}

func dayAllowed(scheduleType models.ScheduleType, day int) bool {
	weekend := day == 5 || day == 6
	if scheduleType == models.ScheduleTypeWeekend {
		return weekend
	}
	return !weekend
}

// lecturerKey identifies a lecturer by id, falling back to the display name.
func lecturerKey(id, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(name))
}

func sessionDuration(duration int) int {
	if duration <= 0 {
		return 1
	}
	return duration
}

// parseSessionStart returns the start instant of a session on the hourly grid.
func parseSessionStart(date, clock string) (time.Time, error) {
	start, err := time.Parse(dateLayout+" "+timeLayout, date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session start %q %q: %w", date, clock, err)
	}
	return start, nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type availabilityCell struct {
	allowed   bool
	occupied  bool
	busyRooms map[string]bool
	busyStaff map[string]bool
}

// AvailabilityCellView is a read-only snapshot of one grid cell.
type AvailabilityCellView struct {
	Day       int
	Slot      int
	Date      time.Time
	Allowed   bool
	Occupied  bool
	FreeRooms []string
}

// AvailabilityIndex is the weekday x hour grid of a batch's next seven days. Cells
// record whether the batch is already busy and which rooms and lecturers are taken.
type AvailabilityIndex struct {
	reference    time.Time
	scheduleType models.ScheduleType
	rooms        []string
	dates        [gridDays]time.Time
	cells        [gridDays][gridSlots]*availabilityCell
}

// NewAvailabilityIndex builds the grid for [reference, reference+7d). Sessions of the
// batch itself mark cells occupied; every session removes its room and lecturer.
// Sessions dated outside the window or with unparsable times are ignored.
func NewAvailabilityIndex(reference time.Time, batch models.Batch, rooms []models.Room, timetables []models.Timetable) *AvailabilityIndex {
	idx := &AvailabilityIndex{
		reference:    truncateToDate(reference),
		scheduleType: batch.ScheduleType,
		rooms:        make([]string, 0, len(rooms)),
	}
	for _, room := range rooms {
		idx.rooms = append(idx.rooms, room.LID)
	}
	for offset := 0; offset < gridDays; offset++ {
		date := idx.reference.AddDate(0, 0, offset)
		day := weekdayIndex(date)
		idx.dates[day] = date
		for slot := 0; slot < gridSlots; slot++ {
			idx.cells[day][slot] = &availabilityCell{
				allowed:   dayAllowed(batch.ScheduleType, day),
				busyRooms: make(map[string]bool),
				busyStaff: make(map[string]bool),
			}
		}
	}

	for _, timetable := range timetables {
		own := timetable.Batch == batch.BatchName
		for _, subject := range timetable.Subjects {
			idx.applySession(subject, own)
		}
	}
	return idx
}

func (idx *AvailabilityIndex) applySession(subject models.TimetableSubject, own bool) {
	start, err := parseSessionStart(subject.Date, subject.Time)
	if err != nil {
		return
	}
	day, ok := idx.dayFor(start)
	if !ok {
		return
	}
	idx.mark(day, start.Hour(), sessionDuration(subject.Duration), subject.Room, lecturerKey(subject.LecturerID, subject.Lecturer), own)
}

func (idx *AvailabilityIndex) dayFor(t time.Time) (int, bool) {
	date := truncateToDate(t)
	offset := int(date.Sub(idx.reference).Hours() / 24)
	if date.Before(idx.reference) || offset >= gridDays {
		return 0, false
	}
	return weekdayIndex(date), true
}

func (idx *AvailabilityIndex) mark(day, startHour, duration int, room, lecturer string, occupy bool) {
	for hour := startHour; hour < startHour+duration; hour++ {
		slot, ok := slotOf(hour)
		if !ok {
			continue
		}
		cell := idx.cells[day][slot]
		if occupy {
			cell.occupied = true
		}
		if room != "" {
			cell.busyRooms[room] = true
		}
		if lecturer != "" {
			cell.busyStaff[lecturer] = true
		}
	}
}

// Date returns the calendar date mapped to a weekday column.
func (idx *AvailabilityIndex) Date(day int) time.Time {
	return idx.dates[day]
}

// Rooms returns the candidate rooms in search order.
func (idx *AvailabilityIndex) Rooms() []string {
	return idx.rooms
}

// Allowed reports whether the batch's schedule type permits the weekday.
func (idx *AvailabilityIndex) Allowed(day int) bool {
	return day >= 0 && day < gridDays && dayAllowed(idx.scheduleType, day)
}

// Cell returns a snapshot of one grid cell.
func (idx *AvailabilityIndex) Cell(day, slot int) AvailabilityCellView {
	cell := idx.cells[day][slot]
	view := AvailabilityCellView{
		Day:       day,
		Slot:      slot,
		Date:      idx.dates[day],
		Allowed:   cell.allowed,
		Occupied:  cell.occupied,
		FreeRooms: make([]string, 0, len(idx.rooms)),
	}
	for _, room := range idx.rooms {
		if !cell.busyRooms[room] {
			view.FreeRooms = append(view.FreeRooms, room)
		}
	}
	return view
}

// Available lists every cell in day-major order.
func (idx *AvailabilityIndex) Available() []AvailabilityCellView {
	views := make([]AvailabilityCellView, 0, gridDays*gridSlots)
	for day := 0; day < gridDays; day++ {
		for slot := 0; slot < gridSlots; slot++ {
			views = append(views, idx.Cell(day, slot))
		}
	}
	return views
}

// RoomFree reports whether a room is unbooked at the cell.
func (idx *AvailabilityIndex) RoomFree(day, slot int, room string) bool {
	return !idx.cells[day][slot].busyRooms[room]
}

// LecturerFree reports whether a lecturer is unbooked at the cell.
func (idx *AvailabilityIndex) LecturerFree(day, slot int, lecturer string) bool {
	if lecturer == "" {
		return true
	}
	return !idx.cells[day][slot].busyStaff[lecturer]
}

// CanPlace reports whether a session of the given duration fits at (day, slot) in room.
// Full mode checks every hour the session covers inside the operating window; start
// mode only checks the starting cell.
func (idx *AvailabilityIndex) CanPlace(day, slot, duration int, room, lecturer, mode string) bool {
	if !idx.Allowed(day) || slot < 0 || slot >= gridSlots {
		return false
	}
	span := sessionDuration(duration)
	if mode == overlapModeStart {
		span = 1
	}
	for s := slot; s < slot+span && s < gridSlots; s++ {
		cell := idx.cells[day][s]
		if !cell.allowed || cell.occupied || cell.busyRooms[room] {
			return false
		}
		if lecturer != "" && cell.busyStaff[lecturer] {
			return false
		}
	}
	return true
}

// Reserve books the cells covered by a session placed in this run.
func (idx *AvailabilityIndex) Reserve(day, slot, duration int, room, lecturer string) {
	idx.mark(day, slotHour(slot), sessionDuration(duration), room, lecturer, true)
}
