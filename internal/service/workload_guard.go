package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

type lecturerAllocationCounter interface {
	CountByLecturer(ctx context.Context, lecturerID, excludeID string) (int, error)
}

// WorkloadGuard rejects allocations that would push a lecturer past the workload cap.
type WorkloadGuard struct {
	counter lecturerAllocationCounter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewWorkloadGuard constructs the guard.
func NewWorkloadGuard(counter lecturerAllocationCounter, metrics *MetricsService, logger *zap.Logger) *WorkloadGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkloadGuard{counter: counter, metrics: metrics, logger: logger}
}

// Check walks the subjects in order and fails on the first one whose lecturer is already
// referenced by maxWorkload or more other allocations. The allocation's own id is
// excluded from the count so updates are not counted against themselves.
func (g *WorkloadGuard) Check(ctx context.Context, allocation models.Allocation, maxWorkload int) error {
	if maxWorkload < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "max workload must be at least 1")
	}
	counts := make(map[string]int)
	for _, subject := range allocation.Subjects {
		current, seen := counts[subject.LecturerID]
		if !seen {
			var err error
			current, err = g.counter.CountByLecturer(ctx, subject.LecturerID, allocation.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lecturer workload")
			}
			counts[subject.LecturerID] = current
		}
		if current < maxWorkload {
			continue
		}

		message := fmt.Sprintf("lecturer %s already teaches %d allocations; the limit is %d", lecturerLabel(subject), current, maxWorkload)
		g.metrics.IncWorkloadRejection()
		g.logger.Warn("allocation rejected by workload cap",
			zap.String("batch_id", allocation.BatchID),
			zap.String("subject", subject.SubjectName),
			zap.String("lecturer_id", subject.LecturerID),
			zap.Int("current", current),
			zap.Int("limit", maxWorkload),
		)
		return appErrors.WithDetails(appErrors.ErrWorkloadExceeded,
			fmt.Sprintf("workload limit reached for subject %s", subject.SubjectName),
			models.WorkloadViolation{
				Subject:    subject.SubjectName,
				SubjectID:  subject.SubjectID,
				LecturerID: subject.LecturerID,
				Lecturer:   subject.LecturerName,
				Limit:      maxWorkload,
				Current:    current,
				Message:    message,
			},
		)
	}
	return nil
}

func lecturerLabel(subject models.AllocationSubject) string {
	if subject.LecturerName != "" {
		return subject.LecturerName
	}
	return subject.LecturerID
}
