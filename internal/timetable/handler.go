package timetable

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Handler manages timetable endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers timetable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/class-sections/{id}", func(r chi.Router) {
		r.Get("/", h.showSection)
		r.Post("/schedules", h.assignSchedule)
		r.Post("/publish", h.publishSection)
		r.Post("/lock", h.lockSection)
	})
	r.Route("/schedules", func(r chi.Router) {
		r.Patch("/{id}", h.updateSchedule)
		r.Delete("/{id}", h.deleteSchedule)
		r.Post("/check-conflicts", h.checkConflicts)
	})
	r.Get("/rooms/{id}/week", h.roomWeek)
}

func (h *Handler) showSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	section, schedules, err := h.service.GetSection(r.Context(), id)
	if err != nil {
		h.logger.Error("get class section failed", "error", err, "class_section_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"classSection": section,
		"schedules":    schedules,
	})
}

func (h *Handler) assignSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req AssignScheduleRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	sched, err := h.service.AssignSchedule(r.Context(), id, req)
	if err != nil {
		h.logger.Error("assign schedule failed", "error", err, "class_section_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, sched)
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req UpdateScheduleRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	sched, err := h.service.UpdateSchedule(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update schedule failed", "error", err, "schedule_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sched)
}

func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.DeleteSchedule(r.Context(), id); err != nil {
		h.logger.Error("delete schedule failed", "error", err, "schedule_id", id)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	section, err := h.service.Publish(r.Context(), id)
	if err != nil {
		h.logger.Error("publish section failed", "error", err, "class_section_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, section)
}

func (h *Handler) lockSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	section, err := h.service.Lock(r.Context(), id)
	if err != nil {
		h.logger.Error("lock section failed", "error", err, "class_section_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, section)
}

func (h *Handler) checkConflicts(w http.ResponseWriter, r *http.Request) {
	var req ConflictCheckRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.CheckConflicts(r.Context(), req)
	if err != nil {
		h.logger.Error("conflict check failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) roomWeek(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	details, err := h.service.RoomWeek(r.Context(), id)
	if err != nil {
		h.logger.Error("room week failed", "error", err, "room_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"roomId":    id,
		"schedules": details,
	})
}

func (h *Handler) decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: invalid request body", shared.ErrValidation)
	}
	if err := h.validate.Struct(dest); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return id, nil
}
