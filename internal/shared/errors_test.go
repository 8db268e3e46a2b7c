package shared

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictErrorUnwrap(t *testing.T) {
	err := NewConflictError("room", []ConflictDetail{
		{ScheduleID: 1, ClassCode: "CS101-A", Description: "CS101-A occupies R101 day 1 periods 3-5"},
	})

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "room conflict")
	assert.Contains(t, err.Error(), "CS101-A")

	var conflictErr *ConflictError
	require.True(t, errors.As(fmt.Errorf("assign: %w", err), &conflictErr))
	assert.Len(t, conflictErr.Conflicts, 1)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("%w: room 9", ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: bad day", ErrValidation), http.StatusBadRequest},
		{"capacity", fmt.Errorf("%w: too small", ErrCapacity), http.StatusUnprocessableEntity},
		{"invalid state", fmt.Errorf("%w: locked", ErrInvalidState), http.StatusConflict},
		{"precondition", fmt.Errorf("%w: no teacher", ErrPrecondition), http.StatusConflict},
		{"conflict", NewConflictError("room", nil), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused to 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestWriteErrorIncludesConflictDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewConflictError("teacher", []ConflictDetail{
		{ScheduleID: 4, TeacherName: "Maria Santos", Description: "teacher busy"},
	}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "teacher busy")
	assert.Contains(t, rec.Body.String(), `"schedule_id":4`)
}
