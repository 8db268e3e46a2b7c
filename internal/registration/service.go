package registration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// PeriodRepository is the persistence surface the service depends on.
type PeriodRepository interface {
	GetPeriod(ctx context.Context, id int64) (*Period, error)
	CurrentActive(ctx context.Context, now time.Time, cohort *int) (*Period, error)
	ListPeriods(ctx context.Context, req ListPeriodsRequest) ([]Period, int, error)
	InsertPeriod(ctx context.Context, p Period) (int64, error)
	UpdatePeriod(ctx context.Context, p Period) error
	CancelPeriod(ctx context.Context, id int64, at time.Time) error
	DeletePeriod(ctx context.Context, id int64) error
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service manages registration periods and the status sweep that keeps
// them aligned with the clock.
type Service struct {
	repo   PeriodRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo PeriodRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create stores a period with its status derived from the current time, so
// a window opening today is active immediately instead of waiting for the
// next sweep.
func (s *Service) Create(ctx context.Context, req CreatePeriodRequest) (*Period, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("%w: endDate must be after startDate", shared.ErrValidation)
	}

	cohorts := req.AllowedCohorts
	if cohorts == nil {
		cohorts = []int{}
	}
	p := Period{
		Name:           req.Name,
		TermCode:       req.TermCode,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		AllowedCohorts: cohorts,
		Status:         deriveStatus(req.StartDate, req.EndDate, s.now()),
	}
	id, err := s.repo.InsertPeriod(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id

	s.logger.Info("registration period created",
		slog.Int64("period_id", id),
		slog.String("term_code", p.TermCode),
		slog.String("status", string(p.Status)),
	)
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Period, error) {
	return s.repo.GetPeriod(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListPeriodsRequest) ([]Period, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.ListPeriods(ctx, req)
}

// CurrentActive returns the open window containing now. With a cohort,
// restricted periods not listing that cohort are skipped; periods with an
// empty cohort list admit everyone.
func (s *Service) CurrentActive(ctx context.Context, cohort *int) (*Period, error) {
	return s.repo.CurrentActive(ctx, s.now(), cohort)
}

// Update adjusts a period's name or window. Closed and cancelled periods
// are immutable. The status is re-derived from the merged window, so
// stretching an upcoming period over today activates it.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePeriodRequest) (*Period, error) {
	current, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == PeriodClosed || current.Status == PeriodCancelled {
		return nil, fmt.Errorf("%w: %s periods cannot be updated", shared.ErrInvalidState, current.Status)
	}

	next := *current
	if req.Name != nil {
		next.Name = *req.Name
	}
	if req.StartDate != nil {
		next.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		next.EndDate = *req.EndDate
	}
	if req.AllowedCohorts != nil {
		next.AllowedCohorts = *req.AllowedCohorts
	}
	if !next.EndDate.After(next.StartDate) {
		return nil, fmt.Errorf("%w: endDate must be after startDate", shared.ErrValidation)
	}
	next.Status = deriveStatus(next.StartDate, next.EndDate, s.now())

	if err := s.repo.UpdatePeriod(ctx, next); err != nil {
		return nil, err
	}

	s.logger.Info("registration period updated", slog.Int64("period_id", id))
	return &next, nil
}

// Cancel withdraws a period. Cancellation is sticky: no sweep or update
// brings a cancelled period back.
func (s *Service) Cancel(ctx context.Context, id int64) (*Period, error) {
	current, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case PeriodCancelled:
		return nil, fmt.Errorf("%w: period already cancelled", shared.ErrInvalidState)
	case PeriodClosed:
		return nil, fmt.Errorf("%w: closed periods cannot be cancelled", shared.ErrInvalidState)
	}

	at := s.now()
	if err := s.repo.CancelPeriod(ctx, id, at); err != nil {
		return nil, err
	}

	current.Status = PeriodCancelled
	current.CancelledAt = &at
	s.logger.Info("registration period cancelled", slog.Int64("period_id", id))
	return current, nil
}

// Delete removes a period that never ran: only upcoming and cancelled
// periods qualify.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != PeriodUpcoming && current.Status != PeriodCancelled {
		return fmt.Errorf("%w: only upcoming or cancelled periods can be deleted", shared.ErrInvalidState)
	}

	if err := s.repo.DeletePeriod(ctx, id); err != nil {
		return err
	}

	s.logger.Info("registration period deleted", slog.Int64("period_id", id))
	return nil
}

// Sweep reconciles period statuses with the given time using two bulk
// conditional updates. It is idempotent: a second sweep at the same
// instant touches nothing.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int64, error) {
	activated, err := s.repo.ActivateDue(ctx, now)
	if err != nil {
		return 0, err
	}
	closed, err := s.repo.CloseExpired(ctx, now)
	if err != nil {
		return activated, err
	}

	total := activated + closed
	if total > 0 {
		s.logger.Info("registration sweep applied",
			slog.Int64("activated", activated),
			slog.Int64("closed", closed),
		)
	}
	return total, nil
}

func deriveStatus(start, end, now time.Time) PeriodStatus {
	switch {
	case now.Before(start):
		return PeriodUpcoming
	case now.After(end):
		return PeriodClosed
	default:
		return PeriodActive
	}
}
