package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/jobs"
)

const substituteSearchJob = "substitute_search"

type substituteLookup interface {
	Find(ctx context.Context, lecturerID string, scheduleType models.ScheduleType) (*models.Lecturer, error)
}

// SubstituteSearchConfig tunes the asynchronous search pool.
type SubstituteSearchConfig struct {
	Workers    int
	BufferSize int
	TTL        time.Duration
}

type searchEntry struct {
	view   dto.SubstituteSearch
	cancel context.CancelFunc
}

// SubstituteSearchService runs substitute lookups in the background and keeps their
// results pollable until they expire.
type SubstituteSearchService struct {
	finder    substituteLookup
	queue     *jobs.Queue
	ttl       time.Duration
	clock     Clock
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	mu       sync.Mutex
	searches map[string]*searchEntry
}

// NewSubstituteSearchService builds the service and its worker queue. Searches are never retried.
func NewSubstituteSearchService(finder substituteLookup, cfg SubstituteSearchConfig, clock Clock, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubstituteSearchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	svc := &SubstituteSearchService{
		finder:    finder,
		ttl:       cfg.TTL,
		clock:     clock,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		searches:  make(map[string]*searchEntry),
	}
	svc.queue = jobs.NewQueue(substituteSearchJob, svc.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: -1,
		Logger:     logger,
	})
	return svc
}

// Start launches the worker pool.
func (s *SubstituteSearchService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains workers; pending searches stay PENDING until swept.
func (s *SubstituteSearchService) Stop() {
	s.queue.Stop()
}

// Submit registers a search and hands it to the worker pool.
func (s *SubstituteSearchService) Submit(ctx context.Context, req dto.SubstituteSearchRequest) (*dto.SubstituteSearch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid substitute search payload")
	}

	now := s.clock.Now().UTC()
	view := dto.SubstituteSearch{
		SearchID:     uuid.NewString(),
		Status:       dto.SearchStatusPending,
		LecturerID:   req.LecturerID,
		ScheduleType: req.ScheduleType,
		SubjectID:    req.SubjectID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	s.mu.Lock()
	s.searches[view.SearchID] = &searchEntry{view: view}
	s.mu.Unlock()

	if err := s.queue.Enqueue(ctx, jobs.Job{ID: view.SearchID, Type: substituteSearchJob}); err != nil {
		s.mu.Lock()
		delete(s.searches, view.SearchID)
		s.mu.Unlock()
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "substitute search queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue substitute search")
	}

	s.logger.Info("substitute search queued", zap.String("search_id", view.SearchID), zap.String("lecturer_id", req.LecturerID))
	return &view, nil
}

// Get returns the current state of a search. Expired or unknown searches are NOT_FOUND.
func (s *SubstituteSearchService) Get(ctx context.Context, id string) (*dto.SubstituteSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.searches[id]
	if !ok || s.clock.Now().After(entry.view.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute search not found")
	}
	view := entry.view
	return &view, nil
}

// Cancel stops a pending search. Finished searches are returned unchanged.
func (s *SubstituteSearchService) Cancel(ctx context.Context, id string) (*dto.SubstituteSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.searches[id]
	if !ok || s.clock.Now().After(entry.view.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "substitute search not found")
	}
	if entry.view.Status == dto.SearchStatusPending {
		if entry.cancel != nil {
			entry.cancel()
		}
		s.finish(entry, dto.SearchStatusCancelled, nil, "")
		s.logger.Info("substitute search cancelled", zap.String("search_id", id))
	}
	view := entry.view
	return &view, nil
}

// Sweep drops expired searches and reports how many were removed.
func (s *SubstituteSearchService) Sweep(ctx context.Context) int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.searches {
		if now.After(entry.view.ExpiresAt) {
			if entry.cancel != nil {
				entry.cancel()
			}
			delete(s.searches, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired substitute searches swept", zap.Int("removed", removed), zap.Int("remaining", len(s.searches)))
	}
	return removed
}

func (s *SubstituteSearchService) process(ctx context.Context, job jobs.Job) error {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	entry, ok := s.searches[job.ID]
	if !ok || entry.view.Status != dto.SearchStatusPending {
		s.mu.Unlock()
		return nil
	}
	entry.cancel = cancel
	lecturerID := entry.view.LecturerID
	scheduleType := models.ScheduleType(entry.view.ScheduleType)
	s.mu.Unlock()

	substitute, err := s.finder.Find(searchCtx, lecturerID, scheduleType)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok = s.searches[job.ID]
	if !ok || entry.view.Status != dto.SearchStatusPending {
		return nil
	}
	entry.cancel = nil
	switch {
	case err != nil && searchCtx.Err() != nil:
		s.finish(entry, dto.SearchStatusCancelled, nil, "")
	case err != nil:
		s.finish(entry, dto.SearchStatusFailed, nil, appErrors.FromError(err).Message)
		s.logger.Warn("substitute search failed", zap.String("search_id", job.ID), zap.Error(err))
	case substitute == nil:
		s.finish(entry, dto.SearchStatusNoMatch, nil, "")
	default:
		s.finish(entry, dto.SearchStatusFound, substitute, "")
	}
	return nil
}

// finish must be called with mu held.
func (s *SubstituteSearchService) finish(entry *searchEntry, status string, substitute *models.Lecturer, message string) {
	completed := s.clock.Now().UTC()
	entry.view.Status = status
	entry.view.Substitute = substitute
	entry.view.Error = message
	entry.view.CompletedAt = &completed
	s.metrics.ObserveSubstituteSearch(status)
}
