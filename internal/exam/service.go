package exam

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atlas-campus/atlas-campus/internal/catalog"
	"github.com/atlas-campus/atlas-campus/internal/enrollment"
	"github.com/atlas-campus/atlas-campus/internal/shared"
	"github.com/atlas-campus/atlas-campus/internal/timetable"
)

// ExamRepository is the persistence surface the service depends on.
type ExamRepository interface {
	GetExam(ctx context.Context, id int64) (*Exam, error)
	ListExams(ctx context.Context, req ListExamsRequest) ([]Exam, int, error)
	RoomClashes(ctx context.Context, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]RoomClash, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// CatalogStore resolves rooms referenced by exams.
type CatalogStore interface {
	GetRoom(ctx context.Context, id int64) (*catalog.Room, error)
}

// SectionStore resolves the class section an exam belongs to.
type SectionStore interface {
	GetClassSection(ctx context.Context, id int64) (*timetable.ClassSection, error)
}

// EnrollmentStore answers which enrolled students already sit another exam
// in a window.
type EnrollmentStore interface {
	StudentClashes(ctx context.Context, sectionID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) ([]enrollment.StudentClash, error)
}

// Service schedules exams. Unlike class schedules, exam overlaps do not
// hard-fail: the service reports clashes and the caller chooses to block
// or force through, because exam weeks routinely need double-booked rooms
// split across invigilators.
type Service struct {
	repo        ExamRepository
	catalog     CatalogStore
	sections    SectionStore
	enrollments EnrollmentStore
	logger      *slog.Logger
}

func NewService(repo ExamRepository, catalog CatalogStore, sections SectionStore, enrollments EnrollmentStore, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		catalog:     catalog,
		sections:    sections,
		enrollments: enrollments,
		logger:      logger,
	}
}

// CreateExam validates the request, builds a conflict report and persists
// the exam. When the report carries clashes and Force is false the exam is
// not created and the report comes back alone.
func (s *Service) CreateExam(ctx context.Context, req CreateExamRequest) (*Exam, *ConflictReport, error) {
	if err := validateWindow(req.StartMinute, req.EndMinute); err != nil {
		return nil, nil, err
	}

	section, err := s.sections.GetClassSection(ctx, req.ClassSectionID)
	if err != nil {
		return nil, nil, err
	}
	room, err := s.catalog.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Capacity < req.MaxCapacity {
		return nil, nil, fmt.Errorf("%w: room %s holds %d, exam needs %d",
			shared.ErrCapacity, room.RoomCode, room.Capacity, req.MaxCapacity)
	}

	report, err := s.buildReport(ctx, section.ID, req.RoomID, req.ExamDate, req.StartMinute, req.EndMinute, nil)
	if err != nil {
		return nil, nil, err
	}
	if report.HasConflicts && !req.Force {
		return nil, report, nil
	}

	e := Exam{
		ExamCode:       req.ExamCode,
		ClassSectionID: req.ClassSectionID,
		RoomID:         req.RoomID,
		ExamDate:       req.ExamDate,
		StartMinute:    req.StartMinute,
		EndMinute:      req.EndMinute,
		MaxCapacity:    req.MaxCapacity,
		Status:         ExamScheduled,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AdvisoryLock(ctx, shared.ExamRoomLockKey(req.RoomID, dateKey(req.ExamDate))); err != nil {
			return err
		}
		// Re-scan under the lock so the persisted report reflects what was
		// true at commit time.
		clashes, err := tx.RoomClashes(ctx, req.RoomID, req.ExamDate, req.StartMinute, req.EndMinute, nil)
		if err != nil {
			return err
		}
		report.RoomClashes = clashes
		report.HasConflicts = len(clashes) > 0 || len(report.StudentClashes) > 0
		if report.HasConflicts && !req.Force {
			return nil
		}
		id, err := tx.InsertExam(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if e.ID == 0 {
		return nil, report, nil
	}

	s.logger.Info("exam created",
		slog.Int64("exam_id", e.ID),
		slog.String("exam_code", e.ExamCode),
		slog.Bool("forced", req.Force && report.HasConflicts),
	)
	return &e, report, nil
}

// UpdateExam moves an exam. Nil fields keep the stored values; the exam's
// own row is excluded from clash scans.
func (s *Service) UpdateExam(ctx context.Context, examID int64, req UpdateExamRequest) (*Exam, *ConflictReport, error) {
	current, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if current.Status != ExamScheduled {
		return nil, nil, fmt.Errorf("%w: only scheduled exams can be moved", shared.ErrInvalidState)
	}

	next := *current
	if req.RoomID != nil {
		next.RoomID = *req.RoomID
	}
	if req.ExamDate != nil {
		next.ExamDate = *req.ExamDate
	}
	if req.StartMinute != nil {
		next.StartMinute = *req.StartMinute
	}
	if req.EndMinute != nil {
		next.EndMinute = *req.EndMinute
	}
	if req.MaxCapacity != nil {
		next.MaxCapacity = *req.MaxCapacity
	}
	if err := validateWindow(next.StartMinute, next.EndMinute); err != nil {
		return nil, nil, err
	}

	room, err := s.catalog.GetRoom(ctx, next.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if room.Capacity < next.MaxCapacity {
		return nil, nil, fmt.Errorf("%w: room %s holds %d, exam needs %d",
			shared.ErrCapacity, room.RoomCode, room.Capacity, next.MaxCapacity)
	}

	report, err := s.buildReport(ctx, next.ClassSectionID, next.RoomID, next.ExamDate, next.StartMinute, next.EndMinute, &examID)
	if err != nil {
		return nil, nil, err
	}
	if report.HasConflicts && !req.Force {
		return nil, report, nil
	}

	updated := false
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AdvisoryLock(ctx, shared.ExamRoomLockKey(next.RoomID, dateKey(next.ExamDate))); err != nil {
			return err
		}
		clashes, err := tx.RoomClashes(ctx, next.RoomID, next.ExamDate, next.StartMinute, next.EndMinute, &examID)
		if err != nil {
			return err
		}
		report.RoomClashes = clashes
		report.HasConflicts = len(clashes) > 0 || len(report.StudentClashes) > 0
		if report.HasConflicts && !req.Force {
			return nil
		}
		if err := tx.UpdateExam(ctx, next); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !updated {
		return nil, report, nil
	}

	s.logger.Info("exam updated", slog.Int64("exam_id", examID))
	return &next, report, nil
}

// SetStatus drives the exam state machine.
func (s *Service) SetStatus(ctx context.Context, examID int64, status ExamStatus) (*Exam, error) {
	current, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !validTransition(current.Status, status) {
		return nil, fmt.Errorf("%w: cannot move exam from %s to %s",
			shared.ErrInvalidState, current.Status, status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetExamStatus(ctx, examID, status)
	})
	if err != nil {
		return nil, err
	}

	current.Status = status
	s.logger.Info("exam status changed",
		slog.Int64("exam_id", examID),
		slog.String("status", string(status)),
	)
	return current, nil
}

// DeleteExam removes an exam unless it is currently running.
func (s *Service) DeleteExam(ctx context.Context, examID int64) error {
	current, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	if current.Status == ExamInProgress {
		return fmt.Errorf("%w: exam is in progress", shared.ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteExam(ctx, examID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("exam deleted", slog.Int64("exam_id", examID))
	return nil
}

func (s *Service) GetExam(ctx context.Context, examID int64) (*Exam, error) {
	return s.repo.GetExam(ctx, examID)
}

func (s *Service) ListExams(ctx context.Context, req ListExamsRequest) ([]Exam, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.ListExams(ctx, req)
}

// buildReport runs the room and student scans in parallel; both read from
// the pool only.
func (s *Service) buildReport(ctx context.Context, sectionID, roomID int64, date time.Time, startMinute, endMinute int, excludeExamID *int64) (*ConflictReport, error) {
	report := &ConflictReport{
		RoomClashes:    []RoomClash{},
		StudentClashes: []enrollment.StudentClash{},
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clashes, err := s.repo.RoomClashes(gctx, roomID, date, startMinute, endMinute, excludeExamID)
		if err != nil {
			return err
		}
		report.RoomClashes = append(report.RoomClashes, clashes...)
		return nil
	})
	g.Go(func() error {
		clashes, err := s.enrollments.StudentClashes(gctx, sectionID, date, startMinute, endMinute, excludeExamID)
		if err != nil {
			return err
		}
		report.StudentClashes = append(report.StudentClashes, clashes...)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.HasConflicts = len(report.RoomClashes) > 0 || len(report.StudentClashes) > 0
	return report, nil
}

func validateWindow(startMinute, endMinute int) error {
	if startMinute < 0 || endMinute > 1440 {
		return fmt.Errorf("%w: exam window must fit within one day", shared.ErrValidation)
	}
	if startMinute >= endMinute {
		return fmt.Errorf("%w: startMinute must be before endMinute", shared.ErrValidation)
	}
	return nil
}

func validTransition(from, to ExamStatus) bool {
	switch from {
	case ExamScheduled:
		return to == ExamInProgress || to == ExamCancelled
	case ExamInProgress:
		return to == ExamCompleted || to == ExamCancelled
	default:
		return false
	}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
