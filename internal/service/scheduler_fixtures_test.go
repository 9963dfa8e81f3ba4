package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/internal/models"
)

// monday is 2024-01-01, a Monday, so grid day d maps to 2024-01-0(d+1).
var monday = time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sqlmockTxProvider struct {
	db *sqlx.DB
}

func newMockTxProvider(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &sqlmockTxProvider{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (p *sqlmockTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

// memTimetableStore keeps timetables in insertion order and ignores the executor.
type memTimetableStore struct {
	mu                sync.Mutex
	timetables        []models.Timetable
	seq               int
	failDeleteSubject map[string]error
	listCalls         int
}

func newMemTimetableStore(timetables ...models.Timetable) *memTimetableStore {
	store := &memTimetableStore{failDeleteSubject: map[string]error{}}
	for _, tt := range timetables {
		clone := cloneTimetable(tt)
		for i := range clone.Subjects {
			if clone.Subjects[i].TimetableID == "" {
				clone.Subjects[i].TimetableID = clone.ID
			}
		}
		store.timetables = append(store.timetables, clone)
	}
	return store
}

func cloneTimetable(tt models.Timetable) models.Timetable {
	clone := tt
	clone.Subjects = append([]models.TimetableSubject{}, tt.Subjects...)
	return clone
}

func (s *memTimetableStore) snapshot(batch string) []models.Timetable {
	result := make([]models.Timetable, 0, len(s.timetables))
	for _, tt := range s.timetables {
		if batch == "" || tt.Batch == batch {
			result = append(result, cloneTimetable(tt))
		}
	}
	return result
}

func (s *memTimetableStore) All() []models.Timetable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot("")
}

func (s *memTimetableStore) List(ctx context.Context, batch string) ([]models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.snapshot(batch), nil
}

func (s *memTimetableStore) ListTx(ctx context.Context, exec sqlx.ExtContext, batch string) ([]models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(batch), nil
}

func (s *memTimetableStore) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tt := range s.timetables {
		if tt.ID == id {
			clone := cloneTimetable(tt)
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memTimetableStore) Create(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if timetable.ID == "" {
		timetable.ID = fmt.Sprintf("tt-new-%d", s.seq)
	}
	for i := range timetable.Subjects {
		if timetable.Subjects[i].ID == "" {
			timetable.Subjects[i].ID = fmt.Sprintf("%s-s%d", timetable.ID, i+1)
		}
		timetable.Subjects[i].TimetableID = timetable.ID
		timetable.Subjects[i].Position = i
	}
	s.timetables = append(s.timetables, cloneTimetable(*timetable))
	return nil
}

func (s *memTimetableStore) UpdateSubject(ctx context.Context, exec sqlx.ExtContext, subject *models.TimetableSubject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timetables {
		for j := range s.timetables[i].Subjects {
			if s.timetables[i].Subjects[j].ID == subject.ID {
				s.timetables[i].Subjects[j] = *subject
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (s *memTimetableStore) DeleteSubject(ctx context.Context, exec sqlx.ExtContext, timetableID, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failDeleteSubject[subjectID]; err != nil {
		return err
	}
	for i := range s.timetables {
		if s.timetables[i].ID != timetableID {
			continue
		}
		subjects := s.timetables[i].Subjects
		for j := range subjects {
			if subjects[j].ID == subjectID {
				s.timetables[i].Subjects = append(subjects[:j:j], subjects[j+1:]...)
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (s *memTimetableStore) CountSubjects(ctx context.Context, exec sqlx.ExtContext, timetableID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tt := range s.timetables {
		if tt.ID == timetableID {
			return len(tt.Subjects), nil
		}
	}
	return 0, nil
}

func (s *memTimetableStore) CountByAllocation(ctx context.Context, exec sqlx.ExtContext, allocationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, tt := range s.timetables {
		if tt.AllocationID != nil && *tt.AllocationID == allocationID {
			count++
		}
	}
	return count, nil
}

func (s *memTimetableStore) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.timetables {
		if s.timetables[i].ID == id {
			s.timetables = append(s.timetables[:i:i], s.timetables[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *memTimetableStore) DeleteByBatch(ctx context.Context, exec sqlx.ExtContext, batch string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.timetables[:0:0]
	var deleted int64
	for _, tt := range s.timetables {
		if tt.Batch == batch {
			deleted++
			continue
		}
		kept = append(kept, tt)
	}
	s.timetables = kept
	return deleted, nil
}

type batchStub map[string]models.Batch

func (b batchStub) FindByKey(ctx context.Context, key string) (*models.Batch, error) {
	for _, batch := range b {
		if batch.BatchNo == key || batch.BatchName == key {
			found := batch
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

type roomStub []models.Room

func (r roomStub) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	return append([]models.Room(nil), r...), nil
}

type cacheStub struct {
	mu          sync.Mutex
	values      map[string]interface{}
	invalidated []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: map[string]interface{}{}}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	if !ok {
		return false, nil
	}
	if target, ok := dest.(*[]models.ConflictRecord); ok {
		*target = value.([]models.ConflictRecord)
	}
	return true, nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *cacheStub) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			delete(c.values, key)
		}
	}
	return nil
}

func lectureHall(lid string) models.Room {
	return models.Room{LID: lid, HallType: models.HallTypeLecturerHall, IsGeneralHall: true, TotalSeats: 60}
}

func weekdayBatch() models.Batch {
	return models.Batch{BatchNo: "B-CS-2024", BatchName: "CS2024", ScheduleType: models.ScheduleTypeWeekdays}
}

func weekendBatch() models.Batch {
	return models.Batch{BatchNo: "B-CS-2024-W", BatchName: "CS2024-W", ScheduleType: models.ScheduleTypeWeekend}
}

func session(id, room, lecturerID, date, clock string, duration int) models.TimetableSubject {
	return models.TimetableSubject{
		ID:         id,
		Subject:    "Subject " + id,
		SubjectID:  "SUB-" + id,
		Lecturer:   "Lecturer " + lecturerID,
		LecturerID: lecturerID,
		Room:       room,
		Date:       date,
		Time:       clock,
		Duration:   duration,
	}
}

func allocationSubject(name, lecturerID string) models.AllocationSubject {
	return models.AllocationSubject{SubjectName: name, SubjectID: "SUB-" + name, LecturerName: "Lecturer " + lecturerID, LecturerID: lecturerID}
}

// assertNoDoubleBooking fails when two sessions share a room or lecturer in overlapping windows.
func assertNoDoubleBooking(t *testing.T, timetables []models.Timetable) {
	t.Helper()
	conflicts := DetectConflicts(timetables)
	require.Empty(t, conflicts, "unexpected conflicts: %+v", conflicts)
}
