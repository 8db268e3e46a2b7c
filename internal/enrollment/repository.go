package enrollment

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to enrollments.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CountBySection(ctx context.Context, sectionID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM enrollments WHERE class_section_id = $1",
		sectionID,
	).Scan(&n)
	return n, err
}

func (r *Repository) StudentIDsBySection(ctx context.Context, sectionID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT student_id FROM enrollments WHERE class_section_id = $1 ORDER BY student_id",
		sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StudentClashes finds students enrolled in the given section whose other
// sections already hold an exam overlapping the proposed window on the same
// date. Exam windows are half-open, so back-to-back exams do not clash.
func (r *Repository) StudentClashes(ctx context.Context, sectionID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]StudentClash, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT target.student_id, e.id, e.exam_code
		FROM enrollments target
		JOIN enrollments other ON other.student_id = target.student_id
		                      AND other.class_section_id <> target.class_section_id
		JOIN exams e ON e.class_section_id = other.class_section_id
		WHERE target.class_section_id = $1
		  AND e.status <> 'cancelled'
		  AND e.exam_date = $2
		  AND e.start_minute < $4 AND $3 < e.end_minute
		  AND ($5::bigint IS NULL OR e.id <> $5)
		ORDER BY target.student_id, e.id
	`, sectionID, date, startMinute, endMinute, excludeExamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clashes []StudentClash
	for rows.Next() {
		var c StudentClash
		if err := rows.Scan(&c.StudentID, &c.ExamID, &c.ExamCode); err != nil {
			return nil, err
		}
		clashes = append(clashes, c)
	}
	return clashes, rows.Err()
}
