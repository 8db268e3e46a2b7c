package exam

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

	"github.com/atlas-campus/atlas-campus/internal/catalog"
	"github.com/atlas-campus/atlas-campus/internal/enrollment"
	"github.com/atlas-campus/atlas-campus/internal/shared"
	"github.com/atlas-campus/atlas-campus/internal/timetable"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	exams  map[int64]*Exam
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{exams: make(map[int64]*Exam), nextID: 1}
}

func (m *mockRepository) addExam(e Exam) *Exam {
	if e.ID == 0 {
		e.ID = m.nextID
		m.nextID++
	}
	if e.Status == "" {
		e.Status = ExamScheduled
	}
	m.exams[e.ID] = &e
	return &e
}

func (m *mockRepository) GetExam(ctx context.Context, id int64) (*Exam, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, fmt.Errorf("%w: exam %d", shared.ErrNotFound, id)
	}
	copied := *e
	return &copied, nil
}

func (m *mockRepository) ListExams(ctx context.Context, req ListExamsRequest) ([]Exam, int, error) {
	var out []Exam
	for _, e := range m.exams {
		if req.RoomID != nil && e.RoomID != *req.RoomID {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockRepository) RoomClashes(ctx context.Context, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error) {
	var out []RoomClash
	for _, e := range m.exams {
		if e.RoomID != roomID || e.Status == ExamCancelled || !e.ExamDate.Equal(date) {
			continue
		}
		if excludeExamID != nil && e.ID == *excludeExamID {
			continue
		}
		if e.StartMinute < endMinute && startMinute < e.EndMinute {
			out = append(out, RoomClash{
				ExamID:      e.ID,
				ExamCode:    e.ExamCode,
				StartMinute: e.StartMinute,
				EndMinute:   e.EndMinute,
			})
		}
	}
	return out, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepo{mock: m})
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) AdvisoryLock(ctx context.Context, key int64) error { return nil }

func (t *mockTxRepo) RoomClashes(ctx context.Context, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error) {
	return t.mock.RoomClashes(ctx, roomID, date, startMinute, endMinute, excludeExamID)
}

func (t *mockTxRepo) InsertExam(ctx context.Context, e Exam) (int64, error) {
	return t.mock.addExam(e).ID, nil
}

func (t *mockTxRepo) UpdateExam(ctx context.Context, e Exam) error {
	stored, ok := t.mock.exams[e.ID]
	if !ok {
		return fmt.Errorf("%w: exam %d", shared.ErrNotFound, e.ID)
	}
	e.Status = stored.Status
	*stored = e
	return nil
}

func (t *mockTxRepo) SetExamStatus(ctx context.Context, id int64, status ExamStatus) error {
	e, ok := t.mock.exams[id]
	if !ok {
		return fmt.Errorf("%w: exam %d", shared.ErrNotFound, id)
	}
	e.Status = status
	return nil
}

func (t *mockTxRepo) DeleteExam(ctx context.Context, id int64) error {
	if _, ok := t.mock.exams[id]; !ok {
		return fmt.Errorf("%w: exam %d", shared.ErrNotFound, id)
	}
	delete(t.mock.exams, id)
	return nil
}

type mockCatalog struct {
	rooms map[int64]*catalog.Room
}

func (m *mockCatalog) GetRoom(ctx context.Context, id int64) (*catalog.Room, error) {
	r, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: room %d", shared.ErrNotFound, id)
	}
	return r, nil
}

type mockSections struct {
	sections map[int64]*timetable.ClassSection
}

func (m *mockSections) GetClassSection(ctx context.Context, id int64) (*timetable.ClassSection, error) {
	s, ok := m.sections[id]
	if !ok {
		return nil, fmt.Errorf("%w: class section %d", shared.ErrNotFound, id)
	}
	return s, nil
}

type mockEnrollments struct {
	clashes []enrollment.StudentClash
}

func (m *mockEnrollments) StudentClashes(ctx context.Context, sectionID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]enrollment.StudentClash, error) {
	return m.clashes, nil
}

type testEnv struct {
	svc         *Service
	repo        *mockRepository
	enrollments *mockEnrollments
}

func newTestService() testEnv {
	repo := newMockRepository()
	cat := &mockCatalog{rooms: map[int64]*catalog.Room{
		1: {ID: 1, RoomCode: "R101", Capacity: 60, IsActive: true},
		2: {ID: 2, RoomCode: "R201", Capacity: 30, IsActive: true},
	}}
	sections := &mockSections{sections: map[int64]*timetable.ClassSection{
		10: {ID: 10, ClassCode: "CS101-A", SubjectID: 1, MaxCapacity: 40, Status: timetable.SectionPublished},
	}}
	enrollments := &mockEnrollments{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, cat, sections, enrollments, logger)
	return testEnv{svc: svc, repo: repo, enrollments: enrollments}
}

func ptr[T any](v T) *T {
	return &v
}

// ============================================================================
// TESTS
// ============================================================================

var examDay = time.Date(2026, 12, 14, 0, 0, 0, 0, time.UTC)

func createReq() CreateExamRequest {
	return CreateExamRequest{
		ExamCode:       "CS101-FINAL",
		ClassSectionID: 10,
		RoomID:         1,
		ExamDate:       examDay,
		StartMinute:    540, // 09:00
		EndMinute:      660, // 11:00
		MaxCapacity:    40,
	}
}

func TestCreateExam(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	exam, report, err := env.svc.CreateExam(ctx, createReq())
	require.NoError(t, err)
	require.NotNil(t, exam)

	assert.NotZero(t, exam.ID)
	assert.Equal(t, ExamScheduled, exam.Status)
	assert.False(t, report.HasConflicts)
	assert.Empty(t, report.RoomClashes)
	assert.Empty(t, report.StudentClashes)
}

func TestCreateExamRoomClashBlocked(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	env.repo.addExam(Exam{ExamCode: "MATH201-FINAL", ClassSectionID: 11, RoomID: 1, ExamDate: examDay, StartMinute: 600, EndMinute: 720})

	exam, report, err := env.svc.CreateExam(ctx, createReq())
	require.NoError(t, err)

	// Without force, nothing is created and the report explains why.
	assert.Nil(t, exam)
	require.NotNil(t, report)
	assert.True(t, report.HasConflicts)
	require.Len(t, report.RoomClashes, 1)
	assert.Equal(t, "MATH201-FINAL", report.RoomClashes[0].ExamCode)
	assert.Len(t, env.repo.exams, 1)
}

func TestCreateExamForced(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	env.repo.addExam(Exam{ExamCode: "MATH201-FINAL", ClassSectionID: 11, RoomID: 1, ExamDate: examDay, StartMinute: 600, EndMinute: 720})

	req := createReq()
	req.Force = true
	exam, report, err := env.svc.CreateExam(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, exam)

	assert.True(t, report.HasConflicts)
	assert.Len(t, env.repo.exams, 2)
}

func TestCreateExamBackToBack(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	// Existing exam ends exactly when the new one starts: half-open
	// windows make this clash-free.
	env.repo.addExam(Exam{ExamCode: "MATH201-FINAL", ClassSectionID: 11, RoomID: 1, ExamDate: examDay, StartMinute: 420, EndMinute: 540})

	exam, report, err := env.svc.CreateExam(ctx, createReq())
	require.NoError(t, err)
	require.NotNil(t, exam)
	assert.False(t, report.HasConflicts)
}

func TestCreateExamStudentClashReported(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	env.enrollments.clashes = []enrollment.StudentClash{
		{StudentID: 1001, ExamID: 7, ExamCode: "PHYS110-FINAL"},
	}

	exam, report, err := env.svc.CreateExam(ctx, createReq())
	require.NoError(t, err)
	assert.Nil(t, exam)
	assert.True(t, report.HasConflicts)
	require.Len(t, report.StudentClashes, 1)
	assert.Equal(t, int64(1001), report.StudentClashes[0].StudentID)
}

func TestCreateExamCapacity(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	req := createReq()
	req.RoomID = 2 // holds 30, exam needs 40

	_, _, err := env.svc.CreateExam(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCapacity))
}

func TestCreateExamInvalidWindow(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	req := createReq()
	req.StartMinute = 660
	req.EndMinute = 540

	_, _, err := env.svc.CreateExam(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestUpdateExamSelfExclusion(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	exam, _, err := env.svc.CreateExam(ctx, createReq())
	require.NoError(t, err)

	// Widening the same exam's window must not clash with itself.
	updated, report, err := env.svc.UpdateExam(ctx, exam.ID, UpdateExamRequest{
		EndMinute: ptr(720),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.False(t, report.HasConflicts)
	assert.Equal(t, 720, updated.EndMinute)
	assert.Equal(t, 540, updated.StartMinute)
}

func TestUpdateExamOnlyWhenScheduled(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	e := env.repo.addExam(Exam{ExamCode: "CS101-FINAL", ClassSectionID: 10, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660, Status: ExamInProgress})

	_, _, err := env.svc.UpdateExam(ctx, e.ID, UpdateExamRequest{EndMinute: ptr(720)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestSetStatusTransitions(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	e := env.repo.addExam(Exam{ExamCode: "CS101-FINAL", ClassSectionID: 10, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660})

	got, err := env.svc.SetStatus(ctx, e.ID, ExamInProgress)
	require.NoError(t, err)
	assert.Equal(t, ExamInProgress, got.Status)

	got, err = env.svc.SetStatus(ctx, e.ID, ExamCompleted)
	require.NoError(t, err)
	assert.Equal(t, ExamCompleted, got.Status)

	// Completed is terminal.
	_, err = env.svc.SetStatus(ctx, e.ID, ExamInProgress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestSetStatusSkippingForbidden(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	e := env.repo.addExam(Exam{ExamCode: "CS101-FINAL", ClassSectionID: 10, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660})

	_, err := env.svc.SetStatus(ctx, e.ID, ExamCompleted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestCancelFromScheduled(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	e := env.repo.addExam(Exam{ExamCode: "CS101-FINAL", ClassSectionID: 10, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660})

	got, err := env.svc.SetStatus(ctx, e.ID, ExamCancelled)
	require.NoError(t, err)
	assert.Equal(t, ExamCancelled, got.Status)
}

func TestDeleteExamInProgress(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	e := env.repo.addExam(Exam{ExamCode: "CS101-FINAL", ClassSectionID: 10, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660, Status: ExamInProgress})

	err := env.svc.DeleteExam(ctx, e.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.Contains(t, env.repo.exams, e.ID)
}

func TestDeleteExam(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	e := env.repo.addExam(Exam{ExamCode: "CS101-FINAL", ClassSectionID: 10, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660})

	require.NoError(t, env.svc.DeleteExam(ctx, e.ID))
	assert.NotContains(t, env.repo.exams, e.ID)
}

func TestCancelledExamFreesRoom(t *testing.T) {
	env := newTestService()
	ctx := context.Background()

	env.repo.addExam(Exam{ExamCode: "MATH201-FINAL", ClassSectionID: 11, RoomID: 1, ExamDate: examDay, StartMinute: 540, EndMinute: 660, Status: ExamCancelled})

	exam, report, err := env.svc.CreateExam(ctx, createReq())
	require.NoError(t, err)
	require.NotNil(t, exam)
	assert.False(t, report.HasConflicts)
}
