package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrPlacementFailed, "unable to place subject Chemistry")
	wrapped := fmt.Errorf("generate: %w", typed)

	got := FromError(wrapped)
	assert.Equal(t, "PLACEMENT_FAILED", got.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, "boom", errors.Unwrap(got).Error())
}

func TestIsMatchesClonedSentinels(t *testing.T) {
	err := WithDetails(ErrWorkloadExceeded, "limit reached", map[string]int{"limit": 5})
	assert.True(t, errors.Is(err, ErrWorkloadExceeded))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Nil(t, ErrWorkloadExceeded.Details)
}

func TestNewValidationErrorDetails(t *testing.T) {
	err := NewValidationError(nil, "invalid allocation", FieldError{Field: "batchId", Error: "batch not found"})
	assert.Equal(t, ErrValidation.Code, err.Code)
	assert.Equal(t, []FieldError{{Field: "batchId", Error: "batch not found"}}, err.Details)
}
