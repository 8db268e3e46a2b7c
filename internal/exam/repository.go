package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Repository provides PostgreSQL backed persistence for exams.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that run inside the exam scheduling
// transaction.
type TxRepository interface {
	AdvisoryLock(ctx context.Context, key int64) error
	RoomClashes(ctx context.Context, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error)
	InsertExam(ctx context.Context, e Exam) (int64, error)
	UpdateExam(ctx context.Context, e Exam) error
	SetExamStatus(ctx context.Context, id int64, status ExamStatus) error
	DeleteExam(ctx context.Context, id int64) error
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

const examSelect = `
		SELECT id, exam_code, class_section_id, room_id, exam_date, start_minute,
		       end_minute, max_capacity, status, created_at, updated_at
		FROM exams`

func (r *Repository) GetExam(ctx context.Context, id int64) (*Exam, error) {
	row := r.pool.QueryRow(ctx, examSelect+" WHERE id = $1", id)

	var e Exam
	err := row.Scan(
		&e.ID, &e.ExamCode, &e.ClassSectionID, &e.RoomID, &e.ExamDate,
		&e.StartMinute, &e.EndMinute, &e.MaxCapacity, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: exam %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) ListExams(ctx context.Context, req ListExamsRequest) ([]Exam, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.ClassSectionID != nil {
		conditions = append(conditions, fmt.Sprintf("class_section_id = $%d", argPos))
		args = append(args, *req.ClassSectionID)
		argPos++
	}
	if req.RoomID != nil {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", argPos))
		args = append(args, *req.RoomID)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date <= $%d", argPos))
		args = append(args, *req.DateTo)
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

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM exams %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		%s
		%s
		ORDER BY exam_date, start_minute, id
		LIMIT $%d OFFSET $%d
	`, examSelect, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []Exam
	for rows.Next() {
		var e Exam
		err := rows.Scan(
			&e.ID, &e.ExamCode, &e.ClassSectionID, &e.RoomID, &e.ExamDate,
			&e.StartMinute, &e.EndMinute, &e.MaxCapacity, &e.Status,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

func (r *Repository) RoomClashes(ctx context.Context, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error) {
	return roomClashes(ctx, r.pool, roomID, date, startMinute, endMinute, excludeExamID)
}

// Half-open window overlap: existing.start < proposed.end AND
// proposed.start < existing.end.
func roomClashes(ctx context.Context, q querier, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error) {
	rows, err := q.Query(ctx, `
		SELECT e.id, e.exam_code, rm.room_code, e.start_minute, e.end_minute
		FROM exams e
		JOIN rooms rm ON e.room_id = rm.id
		WHERE e.room_id = $1
		  AND e.exam_date = $2
		  AND e.status <> 'cancelled'
		  AND e.start_minute < $4 AND $3 < e.end_minute
		  AND ($5::bigint IS NULL OR e.id <> $5)
		ORDER BY e.start_minute, e.id
	`, roomID, date, startMinute, endMinute, excludeExamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clashes []RoomClash
	for rows.Next() {
		var c RoomClash
		if err := rows.Scan(&c.ExamID, &c.ExamCode, &c.RoomCode, &c.StartMinute, &c.EndMinute); err != nil {
			return nil, err
		}
		clashes = append(clashes, c)
	}
	return clashes, rows.Err()
}

func (t *txRepo) AdvisoryLock(ctx context.Context, key int64) error {
	_, err := t.tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key)
	return err
}

func (t *txRepo) RoomClashes(ctx context.Context, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error) {
	return roomClashes(ctx, t.tx, roomID, date, startMinute, endMinute, excludeExamID)
}

func (t *txRepo) InsertExam(ctx context.Context, e Exam) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO exams (exam_code, class_section_id, room_id, exam_date,
		                   start_minute, end_minute, max_capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		e.ExamCode, e.ClassSectionID, e.RoomID, e.ExamDate,
		e.StartMinute, e.EndMinute, e.MaxCapacity, e.Status,
	).Scan(&id)
	if err != nil {
		return 0, mapUniqueErr(err)
	}
	return id, nil
}

func (t *txRepo) UpdateExam(ctx context.Context, e Exam) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE exams
		SET room_id = $2, exam_date = $3, start_minute = $4, end_minute = $5,
		    max_capacity = $6, updated_at = now()
		WHERE id = $1
	`, e.ID, e.RoomID, e.ExamDate, e.StartMinute, e.EndMinute, e.MaxCapacity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: exam %d", shared.ErrNotFound, e.ID)
	}
	return nil
}

func (t *txRepo) SetExamStatus(ctx context.Context, id int64, status ExamStatus) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE exams SET status = $2, updated_at = now() WHERE id = $1",
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: exam %d", shared.ErrNotFound, id)
	}
	return nil
}

func (t *txRepo) DeleteExam(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM exams WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: exam %d", shared.ErrNotFound, id)
	}
	return nil
}

// exam_code carries a unique index. SQLSTATE 23505 surfaces as ErrConflict.
func mapUniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: exam code already in use", shared.ErrConflict)
	}
	return err
}
