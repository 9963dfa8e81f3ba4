package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const pqUniqueViolation = "23505"

type allocationStore interface {
	List(ctx context.Context) ([]models.Allocation, error)
	FindByID(ctx context.Context, id string) (*models.Allocation, error)
	FindByBatch(ctx context.Context, batchID string) (*models.Allocation, error)
	Create(ctx context.Context, allocation *models.Allocation) error
	Update(ctx context.Context, allocation *models.Allocation) error
	Delete(ctx context.Context, id string) error
}

type lecturerReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

type maxWorkloadSource interface {
	MaxWorkload(ctx context.Context) (int, error)
}

type workloadChecker interface {
	Check(ctx context.Context, allocation models.Allocation, maxWorkload int) error
}

// AllocationService manages batch allocations behind the workload cap.
type AllocationService struct {
	repo      allocationStore
	batches   batchReader
	lecturers lecturerReader
	settings  maxWorkloadSource
	guard     workloadChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAllocationService wires allocation dependencies.
func NewAllocationService(repo allocationStore, batches batchReader, lecturers lecturerReader, settings maxWorkloadSource, guard workloadChecker, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		repo:      repo,
		batches:   batches,
		lecturers: lecturers,
		settings:  settings,
		guard:     guard,
		validator: validate,
		logger:    logger,
	}
}

// List returns every allocation.
func (s *AllocationService) List(ctx context.Context) ([]models.Allocation, error) {
	allocations, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list allocations")
	}
	return allocations, nil
}

// Get returns one allocation.
func (s *AllocationService) Get(ctx context.Context, id string) (*models.Allocation, error) {
	allocation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	return allocation, nil
}

// Create validates and stores a new allocation. A workload rejection stores nothing.
func (s *AllocationService) Create(ctx context.Context, req dto.AllocationRequest) (*models.Allocation, error) {
	allocation, err := s.prepare(ctx, "", req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, allocation); err != nil {
		return nil, s.persistError(err, "failed to create allocation")
	}
	s.logger.Info("allocation created", zap.String("allocation_id", allocation.ID), zap.String("batch_id", allocation.BatchID), zap.Int("subjects", len(allocation.Subjects)))
	return allocation, nil
}

// Update replaces an allocation's batch and subjects.
func (s *AllocationService) Update(ctx context.Context, id string, req dto.AllocationRequest) (*models.Allocation, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	allocation, err := s.prepare(ctx, id, req)
	if err != nil {
		return nil, err
	}
	allocation.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, allocation); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return nil, s.persistError(err, "failed to update allocation")
	}
	s.logger.Info("allocation updated", zap.String("allocation_id", id), zap.String("batch_id", allocation.BatchID))
	return allocation, nil
}

// Delete removes an allocation. Timetables already generated from it are kept.
func (s *AllocationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete allocation")
	}
	s.logger.Info("allocation deleted", zap.String("allocation_id", id))
	return nil
}

// AcceptSubstitute swaps the lecturer of one subject for the suggested substitute and
// saves the allocation again, creating it when no id is given.
func (s *AllocationService) AcceptSubstitute(ctx context.Context, req dto.AcceptSubstituteRequest) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid substitute acceptance payload")
	}
	substitute, err := s.lecturers.FindByID(ctx, req.SubstituteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewValidationError(err, "substitute lecturer not found", appErrors.FieldError{Field: "substituteId", Error: "does not exist"})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute lecturer")
	}

	payload := req.Allocation
	payload.Subjects = append([]models.AllocationSubject(nil), req.Allocation.Subjects...)
	replaced := false
	for i := range payload.Subjects {
		if payload.Subjects[i].SubjectID == req.SubjectID {
			payload.Subjects[i].LecturerID = substitute.LecturerID
			payload.Subjects[i].LecturerName = substitute.Name
			replaced = true
			break
		}
	}
	if !replaced {
		return nil, appErrors.NewValidationError(nil, "subject is not part of the allocation", appErrors.FieldError{Field: "subjectId", Error: "not found in allocation subjects"})
	}

	s.logger.Info("substitute accepted",
		zap.String("subject_id", req.SubjectID),
		zap.String("substitute_id", substitute.LecturerID),
		zap.String("allocation_id", req.AllocationID),
	)
	if req.AllocationID != "" {
		return s.Update(ctx, req.AllocationID, payload)
	}
	return s.Create(ctx, payload)
}

func (s *AllocationService) prepare(ctx context.Context, id string, req dto.AllocationRequest) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid allocation payload")
	}

	batch, err := s.batches.FindByKey(ctx, req.BatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewValidationError(err, "batch not found", appErrors.FieldError{Field: "batchId", Error: "does not exist"})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	subjects := make([]models.AllocationSubject, len(req.Subjects))
	for i, subject := range req.Subjects {
		lecturer, err := s.lecturers.FindByID(ctx, subject.LecturerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NewValidationError(err, "lecturer not found", appErrors.FieldError{
					Field: fmt.Sprintf("Subjects[%d].LecturerID", i),
					Error: "does not exist",
				})
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
		}
		if subject.LecturerName == "" {
			subject.LecturerName = lecturer.Name
		}
		subjects[i] = subject
	}

	existing, err := s.repo.FindByBatch(ctx, batch.BatchNo)
	switch {
	case err == nil && existing.ID != id:
		return nil, appErrors.WithDetails(appErrors.ErrConflict, "batch already has an allocation", map[string]string{"allocationId": existing.ID})
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check batch allocation")
	}

	allocation := &models.Allocation{
		ID:        id,
		BatchID:   batch.BatchNo,
		BatchName: batch.BatchName,
		Subjects:  subjects,
	}

	maxWorkload, err := s.settings.MaxWorkload(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, *allocation, maxWorkload); err != nil {
		return nil, err
	}
	return allocation, nil
}

func (s *AllocationService) persistError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return appErrors.Clone(appErrors.ErrConflict, "batch already has an allocation")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
