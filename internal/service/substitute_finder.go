package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type lecturerDirectory interface {
	List(ctx context.Context) ([]models.Lecturer, error)
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

// SubstituteFinderConfig tunes substitute matching.
type SubstituteFinderConfig struct {
	Delay           time.Duration
	MinSkillOverlap int
}

// SubstituteFinder looks for a lecturer able to take over from an overloaded one.
type SubstituteFinder struct {
	lecturers  lecturerDirectory
	delay      time.Duration
	minOverlap int
	logger     *zap.Logger
}

// NewSubstituteFinder constructs the finder. A zero delay makes Find synchronous.
func NewSubstituteFinder(lecturers lecturerDirectory, cfg SubstituteFinderConfig, logger *zap.Logger) *SubstituteFinder {
	if cfg.MinSkillOverlap <= 0 {
		cfg.MinSkillOverlap = 3
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubstituteFinder{lecturers: lecturers, delay: cfg.Delay, minOverlap: cfg.MinSkillOverlap, logger: logger}
}

// Find waits out the lookup delay, then returns the first other lecturer with the same
// schedule type sharing at least the configured number of skills. A nil lecturer with a
// nil error means no match. Cancelling ctx aborts the search with ctx.Err().
func (f *SubstituteFinder) Find(ctx context.Context, lecturerID string, scheduleType models.ScheduleType) (*models.Lecturer, error) {
	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	overloaded, err := f.lecturers.FindByID(ctx, lecturerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
	}
	candidates, err := f.lecturers.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecturers")
	}

	match := matchSubstitute(*overloaded, candidates, scheduleType, f.minOverlap)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if match == nil {
		f.logger.Info("no substitute lecturer found", zap.String("lecturer_id", lecturerID), zap.String("schedule_type", string(scheduleType)))
		return nil, nil
	}
	f.logger.Info("substitute lecturer found", zap.String("lecturer_id", lecturerID), zap.String("substitute_id", match.LecturerID))
	return match, nil
}

func matchSubstitute(overloaded models.Lecturer, candidates []models.Lecturer, scheduleType models.ScheduleType, minOverlap int) *models.Lecturer {
	skills := skillSet(overloaded.Skills)
	for _, candidate := range candidates {
		if candidate.LecturerID == overloaded.LecturerID {
			continue
		}
		if candidate.ScheduleType != scheduleType {
			continue
		}
		shared := 0
		for skill := range skillSet(candidate.Skills) {
			if skills[skill] {
				shared++
			}
		}
		if shared >= minOverlap {
			found := candidate
			return &found
		}
	}
	return nil
}

func skillSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, skill := range skills {
		if normalized := strings.ToLower(strings.TrimSpace(skill)); normalized != "" {
			set[normalized] = true
		}
	}
	return set
}
