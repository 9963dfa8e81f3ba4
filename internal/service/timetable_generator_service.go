package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type batchReader interface {
	FindByKey(ctx context.Context, key string) (*models.Batch, error)
}

type roomReader interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
}

type allocationByBatchReader interface {
	FindByBatch(ctx context.Context, batchID string) (*models.Allocation, error)
}

type generatedTimetableWriter interface {
	ListTx(ctx context.Context, exec sqlx.ExtContext, batch string) ([]models.Timetable, error)
	CountByAllocation(ctx context.Context, exec sqlx.ExtContext, allocationID string) (int, error)
	DeleteByBatch(ctx context.Context, exec sqlx.ExtContext, batch string) (int64, error)
	Create(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
}

// TimetableGeneratorConfig governs placement behaviour.
type TimetableGeneratorConfig struct {
	OverlapMode     string
	SessionDuration int
}

// TimetableGeneratorService places a batch's allocated subjects into free slots and
// persists the result as one timetable.
type TimetableGeneratorService struct {
	batches     batchReader
	rooms       roomReader
	allocations allocationByBatchReader
	timetables  generatedTimetableWriter
	tx          txProvider
	cache       cacheInvalidator
	metrics     *MetricsService
	clock       Clock
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableGeneratorConfig
}

// NewTimetableGeneratorService wires generator dependencies.
func NewTimetableGeneratorService(
	batches batchReader,
	rooms roomReader,
	allocations allocationByBatchReader,
	timetables generatedTimetableWriter,
	tx txProvider,
	cache cacheInvalidator,
	metrics *MetricsService,
	clock Clock,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.OverlapMode != overlapModeStart {
		cfg.OverlapMode = overlapModeFull
	}
	cfg.SessionDuration = sessionDuration(cfg.SessionDuration)
	return &TimetableGeneratorService{
		batches:     batches,
		rooms:       rooms,
		allocations: allocations,
		timetables:  timetables,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		clock:       clock,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate places every subject of the batch's allocation or nothing at all.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (resp *dto.GenerateTimetableResponse, err error) {
	started := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			if errors.Is(err, appErrors.ErrPlacementFailed) {
				outcome = "placement_failed"
			}
		}
		s.metrics.ObserveGeneration(outcome, time.Since(started))
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid timetable generation payload")
	}

	batch, err := s.batches.FindByKey(ctx, req.Batch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewValidationError(err, "batch not found", appErrors.FieldError{Field: "batch", Error: fmt.Sprintf("batch %s does not exist", req.Batch)})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	allocation, err := s.allocations.FindByBatch(ctx, batch.BatchNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no allocation found for batch %s", batch.BatchName))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	if len(allocation.Subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "allocation has no subjects to place")
	}

	rooms, err := s.rooms.List(ctx, models.RoomFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	candidates := bookableRooms(rooms, s.logger)

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
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

	existing, err := s.timetables.CountByAllocation(ctx, tx, allocation.ID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing timetables")
		return nil, err
	}
	if existing > 0 && !req.Replace {
		err = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("batch %s already has a generated timetable; set replace to regenerate", batch.BatchName))
		return nil, err
	}

	snapshot, err := s.timetables.ListTx(ctx, tx, "")
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed timetables")
		return nil, err
	}
	if req.Replace {
		snapshot = excludeBatch(snapshot, batch.BatchName)
	}

	index := NewAvailabilityIndex(s.clock.Now(), *batch, candidates, snapshot)
	placements, placeErr := placeSubjects(index, allocation.Subjects, placementOptions{
		OverlapMode: s.cfg.OverlapMode,
		Duration:    s.cfg.SessionDuration,
	})
	if placeErr != nil {
		var pe *PlacementError
		if errors.As(placeErr, &pe) {
			s.logger.Warn("timetable placement failed",
				zap.String("batch", batch.BatchName),
				zap.String("subject", pe.Subject),
				zap.Int("position", pe.Position),
			)
			err = appErrors.WithDetails(appErrors.ErrPlacementFailed,
				fmt.Sprintf("unable to place subject %s", pe.Subject),
				map[string]interface{}{"subject": pe.Subject, "subjectId": pe.SubjectID},
			)
			return nil, err
		}
		err = appErrors.Wrap(placeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "placement search failed")
		return nil, err
	}

	var replaced int64
	if req.Replace {
		if replaced, err = s.timetables.DeleteByBatch(ctx, tx, batch.BatchName); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove previous timetables")
			return nil, err
		}
	}

	allocationID := allocation.ID
	timetable := &models.Timetable{
		AllocationID: &allocationID,
		Batch:        batch.BatchName,
		Subjects:     make([]models.TimetableSubject, 0, len(placements)),
	}
	for _, placement := range placements {
		timetable.Subjects = append(timetable.Subjects, placement.toTimetableSubject())
	}

	if err = s.timetables.Create(ctx, tx, timetable); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
		return nil, err
	}

	invalidateConflicts(ctx, s.cache)
	s.logger.Info("timetable generated",
		zap.String("batch", batch.BatchName),
		zap.String("timetable_id", timetable.ID),
		zap.Int("subjects", len(timetable.Subjects)),
		zap.Int64("replaced", replaced),
	)
	return &dto.GenerateTimetableResponse{Timetable: *timetable, Replaced: int(replaced)}, nil
}

// bookableRooms drops meeting rooms and lecturer halls with an invalid category flag set.
func bookableRooms(rooms []models.Room, logger *zap.Logger) []models.Room {
	result := make([]models.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.HallType == models.HallTypeMeetingRoom {
			continue
		}
		if !room.CategoryValid() {
			logger.Warn("skipping room with invalid category flags", zap.String("room", room.LID), zap.String("hall_type", string(room.HallType)))
			continue
		}
		result = append(result, room)
	}
	return result
}

func excludeBatch(timetables []models.Timetable, batch string) []models.Timetable {
	result := make([]models.Timetable, 0, len(timetables))
	for _, tt := range timetables {
		if tt.Batch == batch {
			continue
		}
		result = append(result, tt)
	}
	return result
}
