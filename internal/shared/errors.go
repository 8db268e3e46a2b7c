package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input: bad date order, bad period order, missing field.
	ErrValidation = errors.New("validation failed")
	// ErrCapacity indicates a room smaller than the class capacity.
	ErrCapacity = errors.New("insufficient room capacity")
	// ErrInvalidState indicates an operation illegal for the current lifecycle status.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrPrecondition indicates a state-machine transition requirement is unmet.
	ErrPrecondition = errors.New("precondition failed")
	// ErrConflict indicates an overlapping booking was detected.
	ErrConflict = errors.New("scheduling conflict")
)

// ConflictDetail identifies one competing booking so callers can display
// "room X already booked by class Y".
type ConflictDetail struct {
	ScheduleID  int64  `json:"schedule_id,omitempty"`
	ExamID      int64  `json:"exam_id,omitempty"`
	ClassCode   string `json:"class_code,omitempty"`
	SubjectCode string `json:"subject_code,omitempty"`
	RoomCode    string `json:"room_code,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
	Description string `json:"description"`
}

// ConflictError wraps ErrConflict with the list of competing bookings.
type ConflictError struct {
	Resource  string
	Conflicts []ConflictDetail
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.Description)
	}
	return fmt.Sprintf("%s conflict: %s", e.Resource, strings.Join(parts, ", "))
}

// Unwrap makes errors.Is(err, ErrConflict) hold for every ConflictError.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError builds a ConflictError for the given resource kind.
func NewConflictError(resource string, conflicts []ConflictDetail) *ConflictError {
	return &ConflictError{Resource: resource, Conflicts: conflicts}
}
