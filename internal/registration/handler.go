package registration

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

// Handler manages registration period endpoints.
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

// MountRoutes registers registration period routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/registration-periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Post("/", h.createPeriod)
		r.Get("/current", h.currentPeriod)
		r.Get("/{id}", h.showPeriod)
		r.Patch("/{id}", h.updatePeriod)
		r.Post("/{id}/cancel", h.cancelPeriod)
		r.Delete("/{id}", h.deletePeriod)
	})
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	var req ListPeriodsRequest
	req.Limit = 50
	q := r.URL.Query()
	if v := q.Get("term_code"); v != "" {
		req.TermCode = &v
	}
	if v := q.Get("status"); v != "" {
		status := PeriodStatus(v)
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

	periods, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list periods failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"periods":    periods,
		"pagination": shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total),
	})
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	period, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create period failed", "error", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, period)
}

func (h *Handler) currentPeriod(w http.ResponseWriter, r *http.Request) {
	var cohort *int
	if v := r.URL.Query().Get("cohort"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			shared.WriteError(w, fmt.Errorf("%w: invalid cohort", shared.ErrValidation))
			return
		}
		cohort = &parsed
	}
	period, err := h.service.CurrentActive(r.Context(), cohort)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, period)
}

func (h *Handler) showPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	period, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, period)
}

func (h *Handler) updatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req UpdatePeriodRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	period, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update period failed", "error", err, "period_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, period)
}

func (h *Handler) cancelPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	period, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.logger.Error("cancel period failed", "error", err, "period_id", id)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, period)
}

func (h *Handler) deletePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete period failed", "error", err, "period_id", id)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
