package exam

import (
	"time"

	"github.com/atlas-campus/atlas-campus/internal/enrollment"
)

// ExamStatus tracks an exam through its run. Scheduled exams can start or
// be cancelled; in-progress exams finish; completed and cancelled are
// terminal.
type ExamStatus string

const (
	ExamScheduled  ExamStatus = "scheduled"
	ExamInProgress ExamStatus = "in-progress"
	ExamCompleted  ExamStatus = "completed"
	ExamCancelled  ExamStatus = "cancelled"
)

// Exam occupies a room for a continuous window on one date. Windows are
// half-open minute offsets from midnight, so an exam ending at minute 600
// does not collide with one starting at 600.
type Exam struct {
	ID             int64      `json:"id"`
	ExamCode       string     `json:"examCode"`
	ClassSectionID int64      `json:"classSectionId"`
	RoomID         int64      `json:"roomId"`
	ExamDate       time.Time  `json:"examDate"`
	StartMinute    int        `json:"startMinute"`
	EndMinute      int        `json:"endMinute"`
	MaxCapacity    int        `json:"maxCapacity"`
	Status         ExamStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type CreateExamRequest struct {
	ExamCode       string    `json:"examCode" validate:"required,max=32"`
	ClassSectionID int64     `json:"classSectionId" validate:"required,gt=0"`
	RoomID         int64     `json:"roomId" validate:"required,gt=0"`
	ExamDate       time.Time `json:"examDate" validate:"required"`
	StartMinute    int       `json:"startMinute" validate:"min=0,max=1439"`
	EndMinute      int       `json:"endMinute" validate:"min=1,max=1440"`
	MaxCapacity    int       `json:"maxCapacity" validate:"required,gt=0"`
	Force          bool      `json:"force"`
}

// UpdateExamRequest carries a partial exam update. Nil fields keep the
// stored value.
type UpdateExamRequest struct {
	RoomID      *int64     `json:"roomId" validate:"omitempty,gt=0"`
	ExamDate    *time.Time `json:"examDate"`
	StartMinute *int       `json:"startMinute" validate:"omitempty,min=0,max=1439"`
	EndMinute   *int       `json:"endMinute" validate:"omitempty,min=1,max=1440"`
	MaxCapacity *int       `json:"maxCapacity" validate:"omitempty,gt=0"`
	Force       bool       `json:"force"`
}

// RoomClash describes an existing exam occupying the requested room window.
type RoomClash struct {
	ExamID      int64  `json:"examId"`
	ExamCode    string `json:"examCode"`
	RoomCode    string `json:"roomCode"`
	StartMinute int    `json:"startMinute"`
	EndMinute   int    `json:"endMinute"`
}

// ConflictReport is returned alongside the exam rather than failing the
// call. Exam overlaps are common during exam weeks, so the caller decides
// whether to block or force through.
type ConflictReport struct {
	HasConflicts   bool                      `json:"hasConflicts"`
	RoomClashes    []RoomClash               `json:"roomClashes"`
	StudentClashes []enrollment.StudentClash `json:"studentClashes"`
}

type ListExamsRequest struct {
	ClassSectionID *int64
	RoomID         *int64
	DateFrom       *time.Time
	DateTo         *time.Time
	Status         *ExamStatus
	Limit          int
	Offset         int
}
