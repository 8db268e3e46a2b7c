package timetable

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/atlas-campus/atlas-campus/internal/catalog"
	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// ScheduleRepository is the persistence surface the service depends on.
type ScheduleRepository interface {
	GetClassSection(ctx context.Context, id int64) (*ClassSection, error)
	GetSchedule(ctx context.Context, id int64) (*Schedule, error)
	ListSchedulesByClass(ctx context.Context, sectionID int64) ([]ScheduleDetail, error)
	ListRoomWeek(ctx context.Context, roomID int64) ([]ScheduleDetail, error)
	CountSchedules(ctx context.Context, sectionID int64) (int, error)
	RoomConflicts(ctx context.Context, roomID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error)
	TeacherConflicts(ctx context.Context, teacherID int64, ival Interval, excludeSectionID *int64) ([]ScheduleDetail, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// CatalogStore resolves the reference records schedules point at.
type CatalogStore interface {
	GetRoom(ctx context.Context, id int64) (*catalog.Room, error)
	GetTeacher(ctx context.Context, id int64) (*catalog.Teacher, error)
}

// Service coordinates schedule assignment and the class section lifecycle.
type Service struct {
	repo    ScheduleRepository
	catalog CatalogStore
	cache   *Cache
	logger  *slog.Logger
}

func NewService(repo ScheduleRepository, catalog CatalogStore, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, cache: cache, logger: logger}
}

// AssignSchedule attaches a new schedule entry to a class section. Checks
// run in a fixed order: section state, interval validity, room existence,
// capacity, then room and teacher conflicts. The conflict checks and the
// insert happen inside one transaction under advisory locks so two
// concurrent assignments for the same room or teacher cannot both pass.
func (s *Service) AssignSchedule(ctx context.Context, sectionID int64, req AssignScheduleRequest) (*Schedule, error) {
	section, err := s.repo.GetClassSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if section.Status == SectionLocked {
		return nil, fmt.Errorf("%w: locked sections cannot be modified", shared.ErrInvalidState)
	}

	ival := req.Interval()
	if err := ival.Validate(); err != nil {
		return nil, err
	}

	room, err := s.catalog.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Capacity < section.MaxCapacity {
		return nil, fmt.Errorf("%w: room %s holds %d, section needs %d",
			shared.ErrCapacity, room.RoomCode, room.Capacity, section.MaxCapacity)
	}

	sched := Schedule{
		ClassSectionID: sectionID,
		RoomID:         req.RoomID,
		Interval:       ival,
		Status:         ScheduleActive,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.lockResources(ctx, tx, req.RoomID, section.TeacherID); err != nil {
			return err
		}
		if err := s.checkConflictsTx(ctx, tx, req.RoomID, section.TeacherID, ival, &sectionID); err != nil {
			return err
		}
		id, err := tx.InsertSchedule(ctx, sched)
		if err != nil {
			return err
		}
		sched.ID = id
		if section.Status == SectionDraft {
			return tx.SetSectionStatus(ctx, sectionID, SectionScheduled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("schedule assigned",
		slog.Int64("schedule_id", sched.ID),
		slog.Int64("class_section_id", sectionID),
		slog.Int64("room_id", req.RoomID),
	)
	return &sched, nil
}

// UpdateSchedule moves or resizes an existing entry. Fields left nil in the
// request fall back to the stored values, and the merged interval goes
// through the same validation and conflict pipeline as a fresh assignment.
// The section's own entries are excluded from the conflict scan so a no-op
// update never conflicts with itself.
func (s *Service) UpdateSchedule(ctx context.Context, scheduleID int64, req UpdateScheduleRequest) (*Schedule, error) {
	current, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	section, err := s.repo.GetClassSection(ctx, current.ClassSectionID)
	if err != nil {
		return nil, err
	}
	if section.Status == SectionLocked {
		return nil, fmt.Errorf("%w: locked sections cannot be modified", shared.ErrInvalidState)
	}

	next := *current
	if req.RoomID != nil {
		next.RoomID = *req.RoomID
	}
	if req.DayOfWeek != nil {
		next.Interval.DayOfWeek = *req.DayOfWeek
	}
	if req.StartPeriod != nil {
		next.Interval.StartPeriod = *req.StartPeriod
	}
	if req.EndPeriod != nil {
		next.Interval.EndPeriod = *req.EndPeriod
	}
	if req.StartDate != nil {
		next.Interval.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		next.Interval.EndDate = *req.EndDate
	}
	if err := next.Interval.Validate(); err != nil {
		return nil, err
	}

	room, err := s.catalog.GetRoom(ctx, next.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Capacity < section.MaxCapacity {
		return nil, fmt.Errorf("%w: room %s holds %d, section needs %d",
			shared.ErrCapacity, room.RoomCode, room.Capacity, section.MaxCapacity)
	}

	sectionID := section.ID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.lockResources(ctx, tx, next.RoomID, section.TeacherID); err != nil {
			return err
		}
		if err := s.checkConflictsTx(ctx, tx, next.RoomID, section.TeacherID, next.Interval, &sectionID); err != nil {
			return err
		}
		return tx.UpdateSchedule(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("schedule updated",
		slog.Int64("schedule_id", scheduleID),
		slog.Int64("class_section_id", sectionID),
	)
	return &next, nil
}

// DeleteSchedule removes an entry, freeing its slot. Rejected while the
// owning section is locked.
func (s *Service) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	current, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	section, err := s.repo.GetClassSection(ctx, current.ClassSectionID)
	if err != nil {
		return err
	}
	if section.Status == SectionLocked {
		return fmt.Errorf("%w: locked sections cannot be modified", shared.ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteSchedule(ctx, scheduleID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.logger.Info("schedule deleted",
		slog.Int64("schedule_id", scheduleID),
		slog.Int64("class_section_id", section.ID),
	)
	return nil
}

// Publish moves a scheduled section to published. The section needs at
// least one schedule entry and an assigned teacher.
func (s *Service) Publish(ctx context.Context, sectionID int64) (*ClassSection, error) {
	section, err := s.repo.GetClassSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	switch section.Status {
	case SectionScheduled:
	case SectionPublished, SectionLocked:
		return nil, fmt.Errorf("%w: section already %s", shared.ErrInvalidState, section.Status)
	default:
		return nil, fmt.Errorf("%w: only scheduled sections can be published", shared.ErrInvalidState)
	}
	if section.TeacherID == nil {
		return nil, fmt.Errorf("%w: section has no assigned teacher", shared.ErrPrecondition)
	}
	n, err := s.repo.CountSchedules(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: section has no schedule entries", shared.ErrPrecondition)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetSectionStatus(ctx, sectionID, SectionPublished)
	})
	if err != nil {
		return nil, err
	}

	section.Status = SectionPublished
	s.logger.Info("class section published", slog.Int64("class_section_id", sectionID))
	return section, nil
}

// Lock freezes a published section. There is no unlock; locking is final
// for the term.
func (s *Service) Lock(ctx context.Context, sectionID int64) (*ClassSection, error) {
	section, err := s.repo.GetClassSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if section.Status != SectionPublished {
		return nil, fmt.Errorf("%w: only published sections can be locked", shared.ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetSectionStatus(ctx, sectionID, SectionLocked)
	})
	if err != nil {
		return nil, err
	}

	section.Status = SectionLocked
	s.logger.Info("class section locked", slog.Int64("class_section_id", sectionID))
	return section, nil
}

// CheckConflicts answers a dry-run availability query without writing
// anything. Room and teacher scans run in parallel against the pool.
func (s *Service) CheckConflicts(ctx context.Context, req ConflictCheckRequest) (*ConflictCheckResult, error) {
	ival := req.Interval()
	if err := ival.Validate(); err != nil {
		return nil, err
	}
	if req.RoomID == nil && req.TeacherID == nil {
		return nil, fmt.Errorf("%w: roomId or teacherId is required", shared.ErrValidation)
	}

	result := &ConflictCheckResult{
		RoomConflicts:    []ScheduleDetail{},
		TeacherConflicts: []ScheduleDetail{},
	}
	g, gctx := errgroup.WithContext(ctx)
	if req.RoomID != nil {
		roomID := *req.RoomID
		g.Go(func() error {
			found, err := s.repo.RoomConflicts(gctx, roomID, ival, req.ExcludeClassSectionID)
			if err != nil {
				return err
			}
			result.RoomConflicts = append(result.RoomConflicts, found...)
			return nil
		})
	}
	if req.TeacherID != nil {
		teacherID := *req.TeacherID
		g.Go(func() error {
			found, err := s.repo.TeacherConflicts(gctx, teacherID, ival, req.ExcludeClassSectionID)
			if err != nil {
				return err
			}
			result.TeacherConflicts = append(result.TeacherConflicts, found...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.HasConflict = len(result.RoomConflicts) > 0 || len(result.TeacherConflicts) > 0
	return result, nil
}

// GetSection returns a class section with its active schedule entries.
func (s *Service) GetSection(ctx context.Context, sectionID int64) (*ClassSection, []ScheduleDetail, error) {
	section, err := s.repo.GetClassSection(ctx, sectionID)
	if err != nil {
		return nil, nil, err
	}
	var details []ScheduleDetail
	err = s.cache.FetchJSON(ctx, keyClassSchedules(sectionID), &details, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListSchedulesByClass(ctx, sectionID)
	})
	if err != nil {
		return nil, nil, err
	}
	return section, details, nil
}

// RoomWeek returns the weekly occupancy of a room, cached per timetable
// version.
func (s *Service) RoomWeek(ctx context.Context, roomID int64) ([]ScheduleDetail, error) {
	if _, err := s.catalog.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	var details []ScheduleDetail
	err := s.cache.FetchJSON(ctx, keyRoomWeek(roomID), &details, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListRoomWeek(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// Locks are always taken room first, then teacher, so concurrent writers
// touching the same pair cannot deadlock.
func (s *Service) lockResources(ctx context.Context, tx TxRepository, roomID int64, teacherID *int64) error {
	if err := tx.AdvisoryLock(ctx, shared.RoomLockKey(roomID)); err != nil {
		return err
	}
	if teacherID != nil {
		return tx.AdvisoryLock(ctx, shared.TeacherLockKey(*teacherID))
	}
	return nil
}

func (s *Service) checkConflictsTx(ctx context.Context, tx TxRepository, roomID int64, teacherID *int64, ival Interval, excludeSectionID *int64) error {
	roomHits, err := tx.RoomConflicts(ctx, roomID, ival, excludeSectionID)
	if err != nil {
		return err
	}
	if len(roomHits) > 0 {
		return shared.NewConflictError("room", conflictDetails(roomHits))
	}
	if teacherID != nil {
		teacherHits, err := tx.TeacherConflicts(ctx, *teacherID, ival, excludeSectionID)
		if err != nil {
			return err
		}
		if len(teacherHits) > 0 {
			return shared.NewConflictError("teacher", conflictDetails(teacherHits))
		}
	}
	return nil
}

func conflictDetails(hits []ScheduleDetail) []shared.ConflictDetail {
	details := make([]shared.ConflictDetail, 0, len(hits))
	for _, h := range hits {
		details = append(details, shared.ConflictDetail{
			ScheduleID:  h.ID,
			ClassCode:   h.ClassCode,
			SubjectCode: h.SubjectCode,
			RoomCode:    h.RoomCode,
			TeacherName: h.TeacherName,
			Description: fmt.Sprintf("%s occupies %s day %d periods %d-%d",
				h.ClassCode, h.RoomCode, h.Interval.DayOfWeek, h.Interval.StartPeriod, h.Interval.EndPeriod),
		})
	}
	return details
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("timetable cache bump failed", slog.String("error", err.Error()))
	}
}
