package registration

import "time"

// PeriodStatus tracks a registration window. upcoming, active and closed
// derive from the clock; cancelled is set by staff and never leaves.
type PeriodStatus string

const (
	PeriodUpcoming  PeriodStatus = "upcoming"
	PeriodActive    PeriodStatus = "active"
	PeriodClosed    PeriodStatus = "closed"
	PeriodCancelled PeriodStatus = "cancelled"
)

// Period is a window during which students may register for sections. An
// empty AllowedCohorts list means the period is open to every cohort.
type Period struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	TermCode       string       `json:"termCode"`
	StartDate      time.Time    `json:"startDate"`
	EndDate        time.Time    `json:"endDate"`
	AllowedCohorts []int        `json:"allowedCohorts"`
	Status         PeriodStatus `json:"status"`
	CancelledAt    *time.Time   `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

type CreatePeriodRequest struct {
	Name           string    `json:"name" validate:"required,max=120"`
	TermCode       string    `json:"termCode" validate:"required,max=32"`
	StartDate      time.Time `json:"startDate" validate:"required"`
	EndDate        time.Time `json:"endDate" validate:"required"`
	AllowedCohorts []int     `json:"allowedCohorts" validate:"omitempty,dive,gt=0"`
}

// UpdatePeriodRequest carries a partial period update. Nil fields keep the
// stored value. Sending an empty cohort list lifts the restriction.
type UpdatePeriodRequest struct {
	Name           *string    `json:"name" validate:"omitempty,max=120"`
	StartDate      *time.Time `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
	AllowedCohorts *[]int     `json:"allowedCohorts" validate:"omitempty,dive,gt=0"`
}

type ListPeriodsRequest struct {
	TermCode *string
	Status   *PeriodStatus
	Limit    int
	Offset   int
}
