package timetable

import "time"

// SectionStatus tracks the lifecycle of a class section. Transitions only
// move forward: draft -> scheduled -> published -> locked.
type SectionStatus string

const (
	SectionDraft     SectionStatus = "draft"
	SectionScheduled SectionStatus = "scheduled"
	SectionPublished SectionStatus = "published"
	SectionLocked    SectionStatus = "locked"
)

// ScheduleStatus marks whether a schedule entry still occupies its slot.
type ScheduleStatus string

const (
	ScheduleActive  ScheduleStatus = "active"
	ScheduleRemoved ScheduleStatus = "removed"
)

// Interval is the recurring weekly occupancy claim of a schedule entry:
// a day of week, an inclusive discrete period range within that day, and
// an inclusive calendar date range bounding the recurrence.
type Interval struct {
	DayOfWeek   int       `json:"dayOfWeek"`
	StartPeriod int       `json:"startPeriod"`
	EndPeriod   int       `json:"endPeriod"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

type Schedule struct {
	ID             int64          `json:"id"`
	ClassSectionID int64          `json:"classSectionId"`
	RoomID         int64          `json:"roomId"`
	Interval       Interval       `json:"interval"`
	Status         ScheduleStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type ClassSection struct {
	ID          int64         `json:"id"`
	ClassCode   string        `json:"classCode"`
	ClassName   string        `json:"className"`
	SubjectID   int64         `json:"subjectId"`
	TeacherID   *int64        `json:"teacherId,omitempty"`
	MaxCapacity int           `json:"maxCapacity"`
	Status      SectionStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ScheduleDetail is a schedule row joined with the section, room and
// teacher names the timetable views display.
type ScheduleDetail struct {
	Schedule
	ClassCode   string `json:"classCode"`
	SubjectCode string `json:"subjectCode"`
	RoomCode    string `json:"roomCode"`
	TeacherName string `json:"teacherName,omitempty"`
}

type AssignScheduleRequest struct {
	RoomID      int64     `json:"roomId" validate:"required,gt=0"`
	DayOfWeek   int       `json:"dayOfWeek" validate:"required,min=1,max=7"`
	StartPeriod int       `json:"startPeriod" validate:"required,min=1,max=12"`
	EndPeriod   int       `json:"endPeriod" validate:"required,min=1,max=12"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required"`
}

func (r AssignScheduleRequest) Interval() Interval {
	return Interval{
		DayOfWeek:   r.DayOfWeek,
		StartPeriod: r.StartPeriod,
		EndPeriod:   r.EndPeriod,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
	}
}

// UpdateScheduleRequest carries a partial schedule update. Nil fields keep
// the stored value.
type UpdateScheduleRequest struct {
	RoomID      *int64     `json:"roomId" validate:"omitempty,gt=0"`
	DayOfWeek   *int       `json:"dayOfWeek" validate:"omitempty,min=1,max=7"`
	StartPeriod *int       `json:"startPeriod" validate:"omitempty,min=1,max=12"`
	EndPeriod   *int       `json:"endPeriod" validate:"omitempty,min=1,max=12"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// ConflictCheckRequest asks whether an interval collides with existing
// active schedules for a room, a teacher, or both. ExcludeClassSectionID
// removes the section's own entries from consideration so that editing a
// section never reports a conflict with itself.
type ConflictCheckRequest struct {
	RoomID                *int64    `json:"roomId" validate:"omitempty,gt=0"`
	TeacherID             *int64    `json:"teacherId" validate:"omitempty,gt=0"`
	DayOfWeek             int       `json:"dayOfWeek" validate:"required,min=1,max=7"`
	StartPeriod           int       `json:"startPeriod" validate:"required,min=1,max=12"`
	EndPeriod             int       `json:"endPeriod" validate:"required,min=1,max=12"`
	StartDate             time.Time `json:"startDate" validate:"required"`
	EndDate               time.Time `json:"endDate" validate:"required"`
	ExcludeClassSectionID *int64    `json:"excludeClassSectionId"`
}

func (r ConflictCheckRequest) Interval() Interval {
	return Interval{
		DayOfWeek:   r.DayOfWeek,
		StartPeriod: r.StartPeriod,
		EndPeriod:   r.EndPeriod,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
	}
}

type ConflictCheckResult struct {
	HasConflict      bool             `json:"hasConflict"`
	RoomConflicts    []ScheduleDetail `json:"roomConflicts"`
	TeacherConflicts []ScheduleDetail `json:"teacherConflicts"`
}
