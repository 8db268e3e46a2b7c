package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-campus/atlas-campus/internal/shared"
)

type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rooms", h.listRooms)
	r.Get("/rooms/{id}", h.showRoom)
	r.Get("/teachers/{id}", h.showTeacher)
	r.Get("/subjects/{id}", h.showSubject)
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	var req ListRoomsRequest
	req.Limit = 50
	if v := r.URL.Query().Get("is_active"); v != "" {
		val := v == "true"
		req.IsActive = &val
	}
	if v := r.URL.Query().Get("min_capacity"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			req.MinCapacity = &parsed
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}

	rooms, total, err := h.repo.ListRooms(r.Context(), req)
	if err != nil {
		h.logger.Error("list rooms failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"rooms":      rooms,
		"pagination": shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total),
	})
}

func (h *Handler) showRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	room, err := h.repo.GetRoom(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, room)
}

func (h *Handler) showTeacher(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	teacher, err := h.repo.GetTeacher(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, teacher)
}

func (h *Handler) showSubject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	subject, err := h.repo.GetSubject(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, subject)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}
