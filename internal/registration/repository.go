package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for registration
// periods.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const periodSelect = `
		SELECT id, name, term_code, start_date, end_date, allowed_cohorts,
		       status, cancelled_at, created_at, updated_at
		FROM registration_periods`

func scanPeriod(row pgx.Row) (*Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.TermCode, &p.StartDate, &p.EndDate,
		&p.AllowedCohorts, &p.Status, &p.CancelledAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, periodSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: registration period %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// CurrentActive returns the active period containing now, preferring the
// one that opened most recently when windows overlap. A non-nil cohort
// filters out restricted periods that do not list it; an empty
// allowed_cohorts array admits every cohort.
func (r *Repository) CurrentActive(ctx context.Context, now time.Time, cohort *int) (*Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, periodSelect+`
		WHERE status = 'active' AND start_date <= $1 AND end_date >= $1
		  AND ($2::int IS NULL OR cardinality(allowed_cohorts) = 0 OR $2 = ANY(allowed_cohorts))
		ORDER BY start_date DESC, id DESC
		LIMIT 1
	`, now, cohort))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active registration period", shared.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) ListPeriods(ctx context.Context, req ListPeriodsRequest) ([]Period, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.TermCode != nil {
		conditions = append(conditions, fmt.Sprintf("term_code = $%d", argPos))
		args = append(args, *req.TermCode)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM registration_periods %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		%s
		%s
		ORDER BY start_date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, periodSelect, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var p Period
		err := rows.Scan(&p.ID, &p.Name, &p.TermCode, &p.StartDate, &p.EndDate,
			&p.AllowedCohorts, &p.Status, &p.CancelledAt, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		periods = append(periods, p)
	}
	return periods, total, rows.Err()
}

func (r *Repository) InsertPeriod(ctx context.Context, p Period) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO registration_periods (name, term_code, start_date, end_date, allowed_cohorts, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.Name, p.TermCode, p.StartDate, p.EndDate, p.AllowedCohorts, p.Status).Scan(&id)
	return id, err
}

func (r *Repository) UpdatePeriod(ctx context.Context, p Period) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE registration_periods
		SET name = $2, start_date = $3, end_date = $4, allowed_cohorts = $5, status = $6, updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.StartDate, p.EndDate, p.AllowedCohorts, p.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: registration period %d", shared.ErrNotFound, p.ID)
	}
	return nil
}

func (r *Repository) CancelPeriod(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE registration_periods
		SET status = 'cancelled', cancelled_at = $2, updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: registration period %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) DeletePeriod(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM registration_periods WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: registration period %d", shared.ErrNotFound, id)
	}
	return nil
}

// ActivateDue flips upcoming periods whose window contains now. The WHERE
// clause makes repeated sweeps no-ops.
func (r *Repository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE registration_periods
		SET status = 'active', updated_at = now()
		WHERE status = 'upcoming' AND start_date <= $1 AND end_date >= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CloseExpired closes periods whose window has passed, including upcoming
// ones that were never activated. Cancelled periods are never touched.
func (r *Repository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE registration_periods
		SET status = 'closed', updated_at = now()
		WHERE status IN ('upcoming', 'active') AND end_date < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
