package timetable

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for class sections and
// their schedules.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must run inside the scheduling
// transaction. AdvisoryLock serializes writers for a resource so that the
// conflict check and the write behave as one atomic step.
type TxRepository interface {
	AdvisoryLock(ctx context.Context, key int64) error
	RoomConflicts(ctx context.Context, roomID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error)
	TeacherConflicts(ctx context.Context, teacherID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error)
	InsertSchedule(ctx context.Context, s Schedule) (int64, error)
	UpdateSchedule(ctx context.Context, s Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	SetSectionStatus(ctx context.Context, sectionID int64, status SectionStatus) error
	CountSchedules(ctx context.Context, sectionID int64) (int, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repository) GetClassSection(ctx context.Context, id int64) (*ClassSection, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, class_code, class_name, subject_id, teacher_id, max_capacity,
		       status, created_at, updated_at
		FROM class_sections
		WHERE id = $1
	`, id)

	var cs ClassSection
	err := row.Scan(
		&cs.ID, &cs.ClassCode, &cs.ClassName, &cs.SubjectID, &cs.TeacherID,
		&cs.MaxCapacity, &cs.Status, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: class section %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &cs, nil
}

func (r *Repository) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, class_section_id, room_id, day_of_week, start_period, end_period,
		       start_date, end_date, status, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`, id)

	var s Schedule
	err := row.Scan(
		&s.ID, &s.ClassSectionID, &s.RoomID,
		&s.Interval.DayOfWeek, &s.Interval.StartPeriod, &s.Interval.EndPeriod,
		&s.Interval.StartDate, &s.Interval.EndDate,
		&s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: schedule %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListSchedulesByClass(ctx context.Context, sectionID int64) ([]ScheduleDetail, error) {
	return scanScheduleDetails(ctx, r.pool, `
		`+scheduleDetailSelect+`
		WHERE s.class_section_id = $1 AND s.status = 'active'
		ORDER BY s.day_of_week, s.start_period
	`, sectionID)
}

// ListRoomWeek returns every active schedule occupying a room, grouped by the
// caller into a weekly grid.
func (r *Repository) ListRoomWeek(ctx context.Context, roomID int64) ([]ScheduleDetail, error) {
	return scanScheduleDetails(ctx, r.pool, `
		`+scheduleDetailSelect+`
		WHERE s.room_id = $1 AND s.status = 'active'
		ORDER BY s.day_of_week, s.start_period
	`, roomID)
}

// CountSchedules reports active schedule entries for a section. Also exposed
// on the plain repository for read paths outside a transaction.
func (r *Repository) CountSchedules(ctx context.Context, sectionID int64) (int, error) {
	return countSchedules(ctx, r.pool, sectionID)
}

func (r *Repository) RoomConflicts(ctx context.Context, roomID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error) {
	return roomConflicts(ctx, r.pool, roomID, ival, excludeSectionID)
}

func (r *Repository) TeacherConflicts(ctx context.Context, teacherID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error) {
	return teacherConflicts(ctx, r.pool, teacherID, ival, excludeSectionID)
}

const scheduleDetailSelect = `
		SELECT s.id, s.class_section_id, s.room_id, s.day_of_week, s.start_period,
		       s.end_period, s.start_date, s.end_date, s.status, s.created_at, s.updated_at,
		       cs.class_code, subj.subject_code, rm.room_code,
		       COALESCE(t.full_name, '') AS teacher_name
		FROM schedules s
		JOIN class_sections cs ON s.class_section_id = cs.id
		JOIN subjects subj ON cs.subject_id = subj.id
		JOIN rooms rm ON s.room_id = rm.id
		LEFT JOIN teachers t ON cs.teacher_id = t.id`

// Overlap predicates mirror Interval.Overlaps: inclusive period and date
// ranges on the same day of week.
func roomConflicts(ctx context.Context, q querier, roomID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error) {
	query := scheduleDetailSelect + `
		WHERE s.status = 'active'
		  AND s.room_id = $1
		  AND s.day_of_week = $2
		  AND s.start_period <= $3 AND $4 <= s.end_period
		  AND s.start_date <= $5 AND $6 <= s.end_date
	`
	args := []any{roomID, ival.DayOfWeek, ival.EndPeriod, ival.StartPeriod, ival.EndDate, ival.StartDate}
	if excludeSectionID != nil {
		query += " AND s.class_section_id <> $7"
		args = append(args, *excludeSectionID)
	}
	query += " ORDER BY s.start_period, s.id"
	return scanScheduleDetails(ctx, q, query, args...)
}

func teacherConflicts(ctx context.Context, q querier, teacherID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error) {
	query := scheduleDetailSelect + `
		WHERE s.status = 'active'
		  AND cs.teacher_id = $1
		  AND s.day_of_week = $2
		  AND s.start_period <= $3 AND $4 <= s.end_period
		  AND s.start_date <= $5 AND $6 <= s.end_date
	`
	args := []any{teacherID, ival.DayOfWeek, ival.EndPeriod, ival.StartPeriod, ival.EndDate, ival.StartDate}
	if excludeSectionID != nil {
		query += " AND s.class_section_id <> $7"
		args = append(args, *excludeSectionID)
	}
	query += " ORDER BY s.start_period, s.id"
	return scanScheduleDetails(ctx, q, query, args...)
}

func scanScheduleDetails(ctx context.Context, q querier, query string, args ...any) ([]ScheduleDetail, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []ScheduleDetail
	for rows.Next() {
		var d ScheduleDetail
		err := rows.Scan(
			&d.ID, &d.ClassSectionID, &d.RoomID,
			&d.Interval.DayOfWeek, &d.Interval.StartPeriod, &d.Interval.EndPeriod,
			&d.Interval.StartDate, &d.Interval.EndDate,
			&d.Status, &d.CreatedAt, &d.UpdatedAt,
			&d.ClassCode, &d.SubjectCode, &d.RoomCode, &d.TeacherName,
		)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func countSchedules(ctx context.Context, q querier, sectionID int64) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		"SELECT COUNT(*) FROM schedules WHERE class_section_id = $1 AND status = 'active'",
		sectionID,
	).Scan(&n)
	return n, err
}

func (t *txRepo) AdvisoryLock(ctx context.Context, key int64) error {
	_, err := t.tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key)
	return err
}

func (t *txRepo) RoomConflicts(ctx context.Context, roomID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error) {
	return roomConflicts(ctx, t.tx, roomID, ival, excludeSectionID)
}

func (t *txRepo) TeacherConflicts(ctx context.Context, teacherID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error) {
	return teacherConflicts(ctx, t.tx, teacherID, ival, excludeSectionID)
}

func (t *txRepo) InsertSchedule(ctx context.Context, s Schedule) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO schedules (class_section_id, room_id, day_of_week, start_period,
		                       end_period, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		s.ClassSectionID, s.RoomID,
		s.Interval.DayOfWeek, s.Interval.StartPeriod, s.Interval.EndPeriod,
		s.Interval.StartDate, s.Interval.EndDate, s.Status,
	).Scan(&id)
	if err != nil {
		return 0, mapExclusionErr(err)
	}
	return id, nil
}

func (t *txRepo) UpdateSchedule(ctx context.Context, s Schedule) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE schedules
		SET room_id = $2, day_of_week = $3, start_period = $4, end_period = $5,
		    start_date = $6, end_date = $7, updated_at = now()
		WHERE id = $1
	`,
		s.ID, s.RoomID,
		s.Interval.DayOfWeek, s.Interval.StartPeriod, s.Interval.EndPeriod,
		s.Interval.StartDate, s.Interval.EndDate,
	)
	if err != nil {
		return mapExclusionErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: schedule %d", shared.ErrNotFound, s.ID)
	}
	return nil
}

func (t *txRepo) DeleteSchedule(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: schedule %d", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) SetSectionStatus(ctx context.Context, sectionID int64, status SectionStatus) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE class_sections SET status = $2, updated_at = now() WHERE id = $1",
		sectionID, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: class section %d", shared.ErrNotFound, sectionID)
	}
	return nil
}

func (t *txRepo) CountSchedules(ctx context.Context, sectionID int64) (int, error) {
	return countSchedules(ctx, t.tx, sectionID)
}

// The schedules table carries an exclusion constraint as a backstop for the
// advisory-lock protocol. A violation surfaces as SQLSTATE 23P01.
func mapExclusionErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return fmt.Errorf("%w: slot already taken", shared.ErrConflict)
	}
	return err
}
