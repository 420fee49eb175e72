package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	err := Clone(ErrNotFound, "course not found")
	got := FromError(fmt.Errorf("wrapped: %w", err))
	assert.Equal(t, "NOT_FOUND", got.Code)
	assert.Equal(t, "course not found", got.Message)

	internal := FromError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
}

func TestClonedErrorsMatchByCode(t *testing.T) {
	err := Clone(ErrAlreadyMarked, "custom message")
	assert.True(t, errors.Is(err, ErrAlreadyMarked))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("service: %w", NewDataError(KindPermissionDenied, "upsert submission", sql.ErrConnDone))
	assert.Equal(t, KindPermissionDenied, KindOf(err))
	assert.True(t, IsKind(err, KindPermissionDenied))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindUnknown))
	assert.Equal(t, "relation_missing", KindRelationMissing.String())
}
