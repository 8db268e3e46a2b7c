package exam

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

// Handler manages exam endpoints.
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

// MountRoutes registers exam routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/exams", func(r chi.Router) {
		r.Get("/", h.listExams)
		r.Post("/", h.createExam)
		r.Get("/{id}", h.showExam)
		r.Patch("/{id}", h.updateExam)
		r.Delete("/{id}", h.deleteExam)
		r.Post("/{id}/status", h.setStatus)
	})
}

func (h *Handler) listExams(w http.ResponseWriter, r *http.Request) {
	var req ListExamsRequest
	req.Limit = 50
	q := r.URL.Query()
	if v := q.Get("class_section_id"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			req.ClassSectionID = &parsed
		}
	}
	if v := q.Get("room_id"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			req.RoomID = &parsed
		}
	}
	if v := q.Get("date_from"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			req.DateFrom = &parsed
		}
	}
	if v := q.Get("date_to"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			req.DateTo = &parsed
		}
	}
	if v := q.Get("status"); v != "" {
		status := ExamStatus(v)
		req.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}

	exams, total, err := h.service.ListExams(r.Context(), req)
	if err != nil {
		h.logger.Error("list exams failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"exams":      exams,
		"pagination": shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total),
	})
}

func (h *Handler) createExam(w http.ResponseWriter, r *http.Request) {
	var req CreateExamRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	exam, report, err := h.service.CreateExam(r.Context(), req)
	if err != nil {
		h.logger.Error("create exam failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	if exam == nil {
		shared.WriteJSON(w, http.StatusConflict, map[string]any{
			"error":    "exam conflicts detected",
			"conflict": report,
		})
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"exam":     exam,
		"conflict": report,
	})
}

func (h *Handler) showExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	exam, err := h.service.GetExam(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, exam)
}

func (h *Handler) updateExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req UpdateExamRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	exam, report, err := h.service.UpdateExam(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update exam failed", "error", err, "exam_id", id)
		shared.WriteError(w, err)
		return
	}
	if exam == nil {
		shared.WriteJSON(w, http.StatusConflict, map[string]any{
			"error":    "exam conflicts detected",
			"conflict": report,
		})
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"exam":     exam,
		"conflict": report,
	})
}

func (h *Handler) deleteExam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.DeleteExam(r.Context(), id); err != nil {
		h.logger.Error("delete exam failed", "error", err, "exam_id", id)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status ExamStatus `json:"status" validate:"required,oneof=scheduled in-progress completed cancelled"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req setStatusRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	exam, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("set exam status failed", "error", err, "exam_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, exam)
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

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}
