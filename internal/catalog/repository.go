package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Repository provides read access to rooms, teachers and subjects.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetRoom(ctx context.Context, id int64) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, room_code, name, building, capacity, is_active, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`, id)

	var rm Room
	err := row.Scan(&rm.ID, &rm.RoomCode, &rm.Name, &rm.Building, &rm.Capacity,
		&rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: room %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &rm, nil
}

func (r *Repository) GetTeacher(ctx context.Context, id int64) (*Teacher, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, teacher_code, full_name, email, is_active, created_at, updated_at
		FROM teachers
		WHERE id = $1
	`, id)

	var t Teacher
	err := row.Scan(&t.ID, &t.TeacherCode, &t.FullName, &t.Email,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: teacher %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetSubject(ctx context.Context, id int64) (*Subject, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, subject_code, name, credits, created_at, updated_at
		FROM subjects
		WHERE id = $1
	`, id)

	var s Subject
	err := row.Scan(&s.ID, &s.SubjectCode, &s.Name, &s.Credits, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: subject %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ListRooms(ctx context.Context, req ListRoomsRequest) ([]Room, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.MinCapacity != nil {
		conditions = append(conditions, fmt.Sprintf("capacity >= $%d", argPos))
		args = append(args, *req.MinCapacity)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM rooms %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, room_code, name, building, capacity, is_active, created_at, updated_at
		FROM rooms
		%s
		ORDER BY room_code
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var rm Room
		err := rows.Scan(&rm.ID, &rm.RoomCode, &rm.Name, &rm.Building, &rm.Capacity,
			&rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, total, rows.Err()
}
