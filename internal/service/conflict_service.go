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

type conflictTimetableStore interface {
	List(ctx context.Context, batch string) ([]models.Timetable, error)
	ListTx(ctx context.Context, exec sqlx.ExtContext, batch string) ([]models.Timetable, error)
	DeleteSubject(ctx context.Context, exec sqlx.ExtContext, timetableID, subjectID string) error
	CountSubjects(ctx context.Context, exec sqlx.ExtContext, timetableID string) (int, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type conflictCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// ConflictService scans timetables for room and lecturer collisions and applies
// resolution choices.
type ConflictService struct {
	timetables conflictTimetableStore
	tx         txProvider
	cache      conflictCache
	cacheTTL   time.Duration
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewConflictService constructs the service. cache may be nil.
func NewConflictService(timetables conflictTimetableStore, tx txProvider, cache conflictCache, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		timetables: timetables,
		tx:         tx,
		cache:      cache,
		cacheTTL:   cacheTTL,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// List returns the conflicts of one batch, or of every timetable when batch is empty.
func (s *ConflictService) List(ctx context.Context, batch string) ([]models.ConflictRecord, error) {
	key := conflictCacheKey(batch)
	if s.cache != nil {
		var cached []models.ConflictRecord
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	timetables, err := s.timetables.List(ctx, batch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}
	conflicts := DetectConflicts(timetables)
	s.metrics.SetConflictCount(len(conflicts))

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, conflicts, s.cacheTTL)
	}
	return conflicts, nil
}

type resolutionStep struct {
	side    string
	subject models.TimetableSubject
}

// Resolve applies a resolution mode to one conflict of a fresh scan. Both removals run
// in one transaction; on failure nothing is changed and the error details list the
// outcome of each side.
func (s *ConflictService) Resolve(ctx context.Context, req dto.ResolveConflictRequest) (resp *dto.ResolveConflictResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid conflict resolution payload")
	}
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
			s.metrics.ObserveResolution(req.Mode, "failed")
		}
	}()

	timetables, err := s.timetables.ListTx(ctx, tx, req.Batch)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
		return nil, err
	}
	conflicts := DetectConflicts(timetables)
	if req.Index >= len(conflicts) {
		err = appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("conflict %d not found; %d conflicts currently reported", req.Index, len(conflicts)))
		return nil, err
	}
	conflict := conflicts[req.Index]
	if (req.Schedule1ID != "" && req.Schedule1ID != conflict.Schedule1.ID) ||
		(req.Schedule2ID != "" && req.Schedule2ID != conflict.Schedule2.ID) {
		err = appErrors.WithDetails(appErrors.ErrConflict, "conflict list is stale; rescan before resolving", conflict)
		return nil, err
	}

	sides := []dto.ResolutionSideResult{
		{Side: "A", TimetableID: conflict.Schedule1.ID, SubjectID: conflict.Subject1.ID, Outcome: dto.OutcomeUntouched},
		{Side: "B", TimetableID: conflict.Schedule2.ID, SubjectID: conflict.Subject2.ID, Outcome: dto.OutcomeUntouched},
	}
	var steps []int
	switch req.Mode {
	case dto.ResolveDeleteBoth:
		steps = []int{0, 1}
	case dto.ResolveKeepA:
		steps = []int{1}
	case dto.ResolveKeepB:
		steps = []int{0}
	}

	for _, i := range steps {
		outcome, stepErr := s.removeSession(ctx, tx, sides[i].TimetableID, sides[i].SubjectID)
		if stepErr != nil {
			sides[i].Outcome = dto.OutcomeFailed
			sides[i].Error = stepErr.Error()
			markRolledBack(sides, i)
			s.logger.Error("conflict resolution failed",
				zap.String("batch", req.Batch),
				zap.Int("index", req.Index),
				zap.String("side", sides[i].Side),
				zap.Error(stepErr),
			)
			err = appErrors.WithDetails(appErrors.ErrResolutionFailed,
				fmt.Sprintf("failed to resolve side %s; no changes were applied", sides[i].Side),
				map[string]interface{}{"sides": sides},
			)
			return nil, err
		}
		sides[i].Outcome = outcome
	}

	if err = tx.Commit(); err != nil {
		markRolledBack(sides, len(sides))
		err = appErrors.WithDetails(appErrors.ErrResolutionFailed, "failed to commit conflict resolution", map[string]interface{}{"sides": sides})
		return nil, err
	}

	invalidateConflicts(ctx, s.cache)
	s.metrics.ObserveResolution(req.Mode, "applied")
	s.logger.Info("conflict resolved",
		zap.String("batch", req.Batch),
		zap.Int("index", req.Index),
		zap.String("mode", req.Mode),
		zap.String("side_a", sides[0].Outcome),
		zap.String("side_b", sides[1].Outcome),
	)
	return &dto.ResolveConflictResponse{Mode: req.Mode, Conflict: conflict, Sides: sides}, nil
}

// removeSession deletes one session and drops its timetable once empty.
func (s *ConflictService) removeSession(ctx context.Context, tx *sqlx.Tx, timetableID, subjectID string) (string, error) {
	if err := s.timetables.DeleteSubject(ctx, tx, timetableID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dto.OutcomeAlreadyRemoved, nil
		}
		return "", err
	}
	remaining, err := s.timetables.CountSubjects(ctx, tx, timetableID)
	if err != nil {
		return "", err
	}
	if remaining > 0 {
		return dto.OutcomeSubjectRemoved, nil
	}
	if err := s.timetables.Delete(ctx, tx, timetableID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	return dto.OutcomeEntryDeleted, nil
}

// markRolledBack flags sides applied before position upto as undone by the rollback.
func markRolledBack(sides []dto.ResolutionSideResult, upto int) {
	for i := 0; i < upto && i < len(sides); i++ {
		switch sides[i].Outcome {
		case dto.OutcomeSubjectRemoved, dto.OutcomeEntryDeleted:
			sides[i].Outcome = dto.OutcomeRolledBack
		}
	}
}
