package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type timetableStore interface {
	List(ctx context.Context, batch string) ([]models.Timetable, error)
	ListTx(ctx context.Context, exec sqlx.ExtContext, batch string) ([]models.Timetable, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Timetable, error)
	Create(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	UpdateSubject(ctx context.Context, exec sqlx.ExtContext, subject *models.TimetableSubject) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteByBatch(ctx context.Context, exec sqlx.ExtContext, batch string) (int64, error)
}

type rowRenderer interface {
	Render(rows interface{}) ([]byte, error)
	ContentType() string
}

// TimetableService handles manual timetable edits, exports and availability lookups.
type TimetableService struct {
	timetables timetableStore
	batches    batchReader
	rooms      roomReader
	tx         txProvider
	cache      cacheInvalidator
	exporter   rowRenderer
	clock      Clock
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	timetables timetableStore,
	batches batchReader,
	rooms roomReader,
	tx txProvider,
	cache cacheInvalidator,
	exporter rowRenderer,
	clock Clock,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &TimetableService{
		timetables: timetables,
		batches:    batches,
		rooms:      rooms,
		tx:         tx,
		cache:      cache,
		exporter:   exporter,
		clock:      clock,
		validator:  validate,
		logger:     logger,
	}
}

// List returns the timetables of a batch, or all of them when batch is empty.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	timetables, err := s.timetables.List(ctx, strings.TrimSpace(query.Batch))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return timetables, nil
}

// Get returns one timetable with its sessions.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

// Create records a single manual session after checking it against every committed one.
func (s *TimetableService) Create(ctx context.Context, req dto.CreateTimetableRequest) (timetable *models.Timetable, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid timetable payload")
	}
	candidate := models.TimetableSubject{
		ID:         uuid.NewString(),
		Subject:    req.Subject,
		SubjectID:  req.SubjectID,
		Lecturer:   req.Lecturer,
		LecturerID: req.LecturerID,
		Room:       req.Room,
		Date:       req.Date,
		Time:       req.Time,
		Duration:   sessionDuration(req.Duration),
	}
	if err := checkGridTime(candidate.Time, candidate.Duration); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.timetables.ListTx(ctx, tx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}
	if err = rejectCollision(existing, candidate, ""); err != nil {
		return nil, err
	}

	timetable = &models.Timetable{Batch: req.Batch, Subjects: []models.TimetableSubject{candidate}}
	if err = s.timetables.Create(ctx, tx, timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
	}

	invalidateConflicts(ctx, s.cache)
	s.logger.Info("manual timetable created", zap.String("timetable_id", timetable.ID), zap.String("batch", timetable.Batch), zap.String("room", candidate.Room))
	return timetable, nil
}

// UpdateSubject edits one session. The session's own previous window is ignored by the collision check.
func (s *TimetableService) UpdateSubject(ctx context.Context, timetableID, subjectID string, req dto.UpdateTimetableSubjectRequest) (updated *models.TimetableSubject, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid timetable subject payload")
	}
	if err := checkGridTime(req.Time, sessionDuration(req.Duration)); err != nil {
		return nil, err
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	timetable, err := s.timetables.FindByID(ctx, tx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	var current *models.TimetableSubject
	for i := range timetable.Subjects {
		if timetable.Subjects[i].ID == subjectID {
			current = &timetable.Subjects[i]
			break
		}
	}
	if current == nil {
		err = appErrors.Clone(appErrors.ErrNotFound, "timetable subject not found")
		return nil, err
	}

	next := *current
	next.Subject = req.Subject
	next.SubjectID = req.SubjectID
	next.Lecturer = req.Lecturer
	next.LecturerID = req.LecturerID
	next.Room = req.Room
	next.Date = req.Date
	next.Time = req.Time
	next.Duration = sessionDuration(req.Duration)

	existing, err := s.timetables.ListTx(ctx, tx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}
	if err = rejectCollision(existing, next, next.ID); err != nil {
		return nil, err
	}

	if err = s.timetables.UpdateSubject(ctx, tx, &next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "timetable subject not found")
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable subject")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable subject")
	}

	invalidateConflicts(ctx, s.cache)
	s.logger.Info("timetable subject updated", zap.String("timetable_id", timetableID), zap.String("subject_id", subjectID))
	return &next, nil
}

// Delete removes a timetable with all of its sessions.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.timetables.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	invalidateConflicts(ctx, s.cache)
	s.logger.Info("timetable deleted", zap.String("timetable_id", id))
	return nil
}

// DeleteByBatch removes every timetable of a batch.
func (s *TimetableService) DeleteByBatch(ctx context.Context, batch string) (*dto.BulkDeleteResponse, error) {
	batch = strings.TrimSpace(batch)
	if batch == "" {
		return nil, appErrors.NewValidationError(nil, "batch is required", appErrors.FieldError{Field: "batch", Error: "is required"})
	}
	deleted, err := s.timetables.DeleteByBatch(ctx, nil, batch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetables")
	}
	if deleted > 0 {
		invalidateConflicts(ctx, s.cache)
	}
	s.logger.Info("batch timetables deleted", zap.String("batch", batch), zap.Int64("deleted", deleted))
	return &dto.BulkDeleteResponse{Batch: batch, Deleted: int(deleted)}, nil
}

// Export renders the sessions of a batch (or every batch) as CSV.
func (s *TimetableService) Export(ctx context.Context, query dto.TimetableQuery) ([]byte, string, error) {
	timetables, err := s.List(ctx, query)
	if err != nil {
		return nil, "", err
	}
	rows := make([]dto.TimetableCSVRow, 0)
	for _, tt := range timetables {
		for _, subject := range tt.Subjects {
			rows = append(rows, dto.TimetableCSVRow{
				TimetableID: tt.ID,
				Batch:       tt.Batch,
				Date:        subject.Date,
				Time:        subject.Time,
				Duration:    sessionDuration(subject.Duration),
				Subject:     subject.Subject,
				SubjectID:   subject.SubjectID,
				Lecturer:    subject.Lecturer,
				LecturerID:  subject.LecturerID,
				Room:        subject.Room,
			})
		}
	}
	content, err := s.exporter.Render(&rows)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return content, s.exporter.ContentType(), nil
}

// Availability returns the batch's grid for the seven days starting today.
func (s *TimetableService) Availability(ctx context.Context, batchKey string) (*dto.AvailabilityResponse, error) {
	if strings.TrimSpace(batchKey) == "" {
		return nil, appErrors.NewValidationError(nil, "batch is required", appErrors.FieldError{Field: "batch", Error: "is required"})
	}
	batch, err := s.batches.FindByKey(ctx, batchKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	rooms, err := s.rooms.List(ctx, models.RoomFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	timetables, err := s.timetables.List(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}

	reference := s.clock.Now()
	index := NewAvailabilityIndex(reference, *batch, bookableRooms(rooms, s.logger), timetables)
	views := index.Available()
	cells := make([]dto.AvailabilityCell, 0, len(views))
	for _, view := range views {
		cells = append(cells, dto.AvailabilityCell{
			Day:       view.Day,
			Weekday:   weekdayNames[view.Day],
			Date:      view.Date.Format(dateLayout),
			Time:      fmt.Sprintf("%02d:00", slotHour(view.Slot)),
			Allowed:   view.Allowed,
			Occupied:  view.Occupied,
			FreeRooms: view.FreeRooms,
		})
	}
	return &dto.AvailabilityResponse{
		Batch:         batch.BatchName,
		ScheduleType:  string(batch.ScheduleType),
		ReferenceDate: truncateToDate(reference).Format(dateLayout),
		Cells:         cells,
	}, nil
}

// checkGridTime keeps manual sessions on the hourly grid so they stay comparable with generated ones.
func checkGridTime(clock string, duration int) error {
	var hour, minute int
	if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil || minute != 0 {
		return appErrors.NewValidationError(err, "time must be on the hour", appErrors.FieldError{Field: "time", Error: "must be HH:00"})
	}
	slot, ok := slotOf(hour)
	if !ok || slot+duration > gridSlots {
		return appErrors.NewValidationError(nil, "session must fit inside 08:00-18:00", appErrors.FieldError{Field: "time", Error: "outside the teaching day"})
	}
	return nil
}

func rejectCollision(existing []models.Timetable, candidate models.TimetableSubject, ignoreID string) error {
	collision, dimension, err := findSessionConflict(existing, candidate, ignoreID)
	if err != nil {
		return appErrors.NewValidationError(err, "invalid session date or time")
	}
	if collision == nil {
		return nil
	}
	conflict := &models.ScheduleConflictError{
		Type:     dimension,
		Message:  describeCollision(dimension, *collision),
		Existing: *collision,
	}
	return appErrors.WithDetails(appErrors.ErrConflict, conflict.Message, conflict)
}

func describeCollision(dimension string, existing models.TimetableSubject) string {
	switch dimension {
	case models.ConflictDimensionRoom:
		return fmt.Sprintf("room %s is already booked on %s at %s", existing.Room, existing.Date, existing.Time)
	case models.ConflictDimensionLecturer:
		return fmt.Sprintf("lecturer %s is already teaching on %s at %s", existing.Lecturer, existing.Date, existing.Time)
	default:
		return fmt.Sprintf("room %s and lecturer %s are already booked on %s at %s", existing.Room, existing.Lecturer, existing.Date, existing.Time)
	}
}
