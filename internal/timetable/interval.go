package timetable

import (
	"fmt"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Overlaps reports whether two intervals claim at least one common period
// occurrence. Both the period range and the date range are inclusive, so
// touching boundaries (one entry ends period 4, another starts period 4)
// count as overlap. Entries on different days of the week never overlap.
func (a Interval) Overlaps(b Interval) bool {
	if a.DayOfWeek != b.DayOfWeek {
		return false
	}
	if a.StartPeriod > b.EndPeriod || b.StartPeriod > a.EndPeriod {
		return false
	}
	if a.StartDate.After(b.EndDate) || b.StartDate.After(a.EndDate) {
		return false
	}
	return true
}

func (a Interval) Validate() error {
	if a.DayOfWeek < 1 || a.DayOfWeek > 7 {
		return fmt.Errorf("%w: dayOfWeek must be between 1 and 7", shared.ErrValidation)
	}
	if a.StartPeriod < 1 || a.EndPeriod < 1 {
		return fmt.Errorf("%w: periods must be positive", shared.ErrValidation)
	}
	if a.StartPeriod > a.EndPeriod {
		return fmt.Errorf("%w: startPeriod must not be after endPeriod", shared.ErrValidation)
	}
	if a.StartDate.IsZero() || a.EndDate.IsZero() {
		return fmt.Errorf("%w: startDate and endDate are required", shared.ErrValidation)
	}
	if a.StartDate.After(a.EndDate) {
		return fmt.Errorf("%w: startDate must not be after endDate", shared.ErrValidation)
	}
	return nil
}
