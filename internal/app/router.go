package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-campus/atlas-campus/internal/catalog"
	"github.com/atlas-campus/atlas-campus/internal/exam"
	"github.com/atlas-campus/atlas-campus/internal/registration"
	"github.com/atlas-campus/atlas-campus/internal/timetable"
	"github.com/atlas-campus/atlas-campus/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	TimetableHandler    *timetable.Handler
	ExamHandler         *exam.Handler
	RegistrationHandler *registration.Handler
	CatalogHandler      *catalog.Handler
	JobHandler          *jobs.Handler
	Pool                *pgxpool.Pool
}

// NewRouter constructs the chi.Router with Atlas defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Warn("healthz db ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(api)
		}
		if params.TimetableHandler != nil {
			params.TimetableHandler.MountRoutes(api)
		}
		if params.ExamHandler != nil {
			params.ExamHandler.MountRoutes(api)
		}
		if params.RegistrationHandler != nil {
			params.RegistrationHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", func(jr chi.Router) {
				params.JobHandler.MountRoutes(jr)
			})
		}
	})

	return r
}
