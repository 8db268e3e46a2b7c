package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	periods map[int64]*Period
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{periods: make(map[int64]*Period), nextID: 1}
}

func (m *mockRepository) addPeriod(p Period) *Period {
	if p.ID == 0 {
		p.ID = m.nextID
		m.nextID++
	}
	m.periods[p.ID] = &p
	return &p
}

func (m *mockRepository) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	p, ok := m.periods[id]
	if !ok {
		return nil, fmt.Errorf("%w: registration period %d", shared.ErrNotFound, id)
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepository) CurrentActive(ctx context.Context, now time.Time, cohort *int) (*Period, error) {
	var best *Period
	for _, p := range m.periods {
		if p.Status != PeriodActive || now.Before(p.StartDate) || now.After(p.EndDate) {
			continue
		}
		if cohort != nil && len(p.AllowedCohorts) > 0 && !containsCohort(p.AllowedCohorts, *cohort) {
			continue
		}
		if best == nil || p.StartDate.After(best.StartDate) {
			best = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no active registration period", shared.ErrNotFound)
	}
	copied := *best
	return &copied, nil
}

func (m *mockRepository) ListPeriods(ctx context.Context, req ListPeriodsRequest) ([]Period, int, error) {
	var out []Period
	for _, p := range m.periods {
		if req.Status != nil && p.Status != *req.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockRepository) InsertPeriod(ctx context.Context, p Period) (int64, error) {
	return m.addPeriod(p).ID, nil
}

func (m *mockRepository) UpdatePeriod(ctx context.Context, p Period) error {
	stored, ok := m.periods[p.ID]
	if !ok {
		return fmt.Errorf("%w: registration period %d", shared.ErrNotFound, p.ID)
	}
	*stored = p
	return nil
}

func (m *mockRepository) CancelPeriod(ctx context.Context, id int64, at time.Time) error {
	p, ok := m.periods[id]
	if !ok || p.Status == PeriodCancelled {
		return fmt.Errorf("%w: registration period %d", shared.ErrNotFound, id)
	}
	p.Status = PeriodCancelled
	p.CancelledAt = &at
	return nil
}

func (m *mockRepository) DeletePeriod(ctx context.Context, id int64) error {
	if _, ok := m.periods[id]; !ok {
		return fmt.Errorf("%w: registration period %d", shared.ErrNotFound, id)
	}
	delete(m.periods, id)
	return nil
}

func (m *mockRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, p := range m.periods {
		if p.Status == PeriodUpcoming && !now.Before(p.StartDate) && !now.After(p.EndDate) {
			p.Status = PeriodActive
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, p := range m.periods {
		if (p.Status == PeriodUpcoming || p.Status == PeriodActive) && p.EndDate.Before(now) {
			p.Status = PeriodClosed
			n++
		}
	}
	return n, nil
}

func newTestService(now time.Time) (*Service, *mockRepository) {
	repo := newMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, logger)
	svc.now = func() time.Time { return now }
	return svc, repo
}

func ptr[T any](v T) *T {
	return &v
}

func containsCohort(cohorts []int, cohort int) bool {
	for _, c := range cohorts {
		if c == cohort {
			return true
		}
	}
	return false
}

// ============================================================================
// TESTS
// ============================================================================

var clock = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return clock.AddDate(0, 0, offset)
}

func TestCreateDerivesStatus(t *testing.T) {
	svc, _ := newTestService(clock)
	ctx := context.Background()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  PeriodStatus
	}{
		{"window in the future", day(5), day(10), PeriodUpcoming},
		{"window contains now", day(-2), day(3), PeriodActive},
		{"window already over", day(-10), day(-5), PeriodClosed},
		{"window opens this instant", clock, day(3), PeriodActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Create(ctx, CreatePeriodRequest{
				Name:      tt.name,
				TermCode:  "2026-FALL",
				StartDate: tt.start,
				EndDate:   tt.end,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Status)
		})
	}
}

func TestCreateRejectsInvertedWindow(t *testing.T) {
	svc, _ := newTestService(clock)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreatePeriodRequest{
		Name:      "bad",
		TermCode:  "2026-FALL",
		StartDate: day(5),
		EndDate:   day(1),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateRejectsZeroLengthWindow(t *testing.T) {
	svc, _ := newTestService(clock)
	ctx := context.Background()

	// The bound is strict: endDate must be after startDate, so a window
	// that opens and closes at the same instant is rejected.
	_, err := svc.Create(ctx, CreatePeriodRequest{
		Name:      "instant",
		TermCode:  "2026-FALL",
		StartDate: day(5),
		EndDate:   day(5),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateRejectsZeroLengthWindow(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p := repo.addPeriod(Period{Name: "soon", StartDate: day(5), EndDate: day(10), Status: PeriodUpcoming})

	_, err := svc.Update(ctx, p.ID, UpdatePeriodRequest{EndDate: ptr(day(5))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestCreateStoresCohorts(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreatePeriodRequest{
		Name:           "seniors only",
		TermCode:       "2026-FALL",
		StartDate:      day(-1),
		EndDate:        day(3),
		AllowedCohorts: []int{2023, 2024},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2024}, repo.periods[p.ID].AllowedCohorts)

	// Leaving the list out means unrestricted, stored as an empty list
	// rather than nil.
	open, err := svc.Create(ctx, CreatePeriodRequest{
		Name:      "everyone",
		TermCode:  "2026-FALL",
		StartDate: day(-1),
		EndDate:   day(3),
	})
	require.NoError(t, err)
	assert.NotNil(t, open.AllowedCohorts)
	assert.Empty(t, open.AllowedCohorts)
}

func TestSweep(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	due := repo.addPeriod(Period{Name: "due", StartDate: day(-1), EndDate: day(3), Status: PeriodUpcoming})
	expired := repo.addPeriod(Period{Name: "expired", StartDate: day(-10), EndDate: day(-5), Status: PeriodActive})
	neverRan := repo.addPeriod(Period{Name: "never ran", StartDate: day(-10), EndDate: day(-5), Status: PeriodUpcoming})
	future := repo.addPeriod(Period{Name: "future", StartDate: day(5), EndDate: day(10), Status: PeriodUpcoming})
	cancelled := repo.addPeriod(Period{Name: "cancelled", StartDate: day(-1), EndDate: day(3), Status: PeriodCancelled})

	changed, err := svc.Sweep(ctx, clock)
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	assert.Equal(t, PeriodActive, repo.periods[due.ID].Status)
	assert.Equal(t, PeriodClosed, repo.periods[expired.ID].Status)
	assert.Equal(t, PeriodClosed, repo.periods[neverRan.ID].Status)
	assert.Equal(t, PeriodUpcoming, repo.periods[future.ID].Status)
	// Cancelled is sticky.
	assert.Equal(t, PeriodCancelled, repo.periods[cancelled.ID].Status)
}

func TestSweepIdempotent(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	repo.addPeriod(Period{Name: "due", StartDate: day(-1), EndDate: day(3), Status: PeriodUpcoming})
	repo.addPeriod(Period{Name: "expired", StartDate: day(-10), EndDate: day(-5), Status: PeriodActive})

	changed, err := svc.Sweep(ctx, clock)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = svc.Sweep(ctx, clock)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestCancelSticky(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p := repo.addPeriod(Period{Name: "open", StartDate: day(-1), EndDate: day(3), Status: PeriodActive})

	got, err := svc.Cancel(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PeriodCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)

	// No update or second cancel brings it back.
	_, err = svc.Update(ctx, p.ID, UpdatePeriodRequest{EndDate: ptr(day(10))})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	_, err = svc.Cancel(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	// The sweep leaves it alone too.
	_, err = svc.Sweep(ctx, clock)
	require.NoError(t, err)
	assert.Equal(t, PeriodCancelled, repo.periods[p.ID].Status)
}

func TestCancelClosedRejected(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p := repo.addPeriod(Period{Name: "done", StartDate: day(-10), EndDate: day(-5), Status: PeriodClosed})

	_, err := svc.Cancel(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestUpdateReActivates(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p := repo.addPeriod(Period{Name: "soon", StartDate: day(5), EndDate: day(10), Status: PeriodUpcoming})

	// Stretching the window over today activates immediately.
	got, err := svc.Update(ctx, p.ID, UpdatePeriodRequest{StartDate: ptr(day(-1))})
	require.NoError(t, err)
	assert.Equal(t, PeriodActive, got.Status)
}

func TestUpdateClosedRejected(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p := repo.addPeriod(Period{Name: "done", StartDate: day(-10), EndDate: day(-5), Status: PeriodClosed})

	_, err := svc.Update(ctx, p.ID, UpdatePeriodRequest{Name: ptr("renamed")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestDeleteRules(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	upcoming := repo.addPeriod(Period{Name: "upcoming", StartDate: day(5), EndDate: day(10), Status: PeriodUpcoming})
	active := repo.addPeriod(Period{Name: "active", StartDate: day(-1), EndDate: day(3), Status: PeriodActive})
	closed := repo.addPeriod(Period{Name: "closed", StartDate: day(-10), EndDate: day(-5), Status: PeriodClosed})
	cancelled := repo.addPeriod(Period{Name: "cancelled", StartDate: day(-1), EndDate: day(3), Status: PeriodCancelled})

	require.NoError(t, svc.Delete(ctx, upcoming.ID))
	require.NoError(t, svc.Delete(ctx, cancelled.ID))

	err := svc.Delete(ctx, active.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	err = svc.Delete(ctx, closed.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestCurrentActive(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	_, err := svc.CurrentActive(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	p := repo.addPeriod(Period{Name: "open", StartDate: day(-1), EndDate: day(3), Status: PeriodActive})

	got, err := svc.CurrentActive(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestCurrentActiveCohortFilter(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	restricted := repo.addPeriod(Period{
		Name: "seniors only", StartDate: day(-1), EndDate: day(3),
		AllowedCohorts: []int{2023}, Status: PeriodActive,
	})

	got, err := svc.CurrentActive(ctx, ptr(2023))
	require.NoError(t, err)
	assert.Equal(t, restricted.ID, got.ID)

	// A cohort outside the list sees no open window.
	_, err = svc.CurrentActive(ctx, ptr(2026))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	// An unrestricted period admits that same cohort.
	open := repo.addPeriod(Period{
		Name: "everyone", StartDate: day(-2), EndDate: day(3),
		AllowedCohorts: []int{}, Status: PeriodActive,
	})
	got, err = svc.CurrentActive(ctx, ptr(2026))
	require.NoError(t, err)
	assert.Equal(t, open.ID, got.ID)
}

func TestUpdateLiftsCohortRestriction(t *testing.T) {
	svc, repo := newTestService(clock)
	ctx := context.Background()

	p := repo.addPeriod(Period{
		Name: "seniors only", StartDate: day(-1), EndDate: day(3),
		AllowedCohorts: []int{2023}, Status: PeriodActive,
	})

	got, err := svc.Update(ctx, p.ID, UpdatePeriodRequest{AllowedCohorts: ptr([]int{})})
	require.NoError(t, err)
	assert.Empty(t, got.AllowedCohorts)

	_, err = svc.CurrentActive(ctx, ptr(2026))
	require.NoError(t, err)
}
