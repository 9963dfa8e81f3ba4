package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
)

const conflictCachePattern = "conflicts:*"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

func conflictCacheKey(batch string) string {
	if batch == "" {
		return "conflicts:all"
	}
	return "conflicts:" + batch
}

// validationFailure converts validator output into a VALIDATION_ERROR with field details.
func validationFailure(err error, message string) *appErrors.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.NewValidationError(err, message)
	}
	fields := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, appErrors.FieldError{
			Field: fieldPath(fe.Namespace()),
			Error: describeFieldError(fe),
		})
	}
	return appErrors.NewValidationError(err, message, fields...)
}

// fieldPath drops the root struct name: "AllocationRequest.Subjects[0].LecturerID" -> "Subjects[0].LecturerID".
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func invalidateConflicts(ctx context.Context, cache cacheInvalidator) {
	if cache == nil {
		return
	}
	_ = cache.Invalidate(ctx, conflictCachePattern)
}
