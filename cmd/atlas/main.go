package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-campus/atlas-campus/internal/app"
	"github.com/atlas-campus/atlas-campus/internal/catalog"
	"github.com/atlas-campus/atlas-campus/internal/enrollment"
	"github.com/atlas-campus/atlas-campus/internal/exam"
	"github.com/atlas-campus/atlas-campus/internal/registration"
	"github.com/atlas-campus/atlas-campus/internal/timetable"
	"github.com/atlas-campus/atlas-campus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogRepo := catalog.NewRepository(dbpool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	timetableRepo := timetable.NewRepository(dbpool)
	timetableCache := timetable.NewCache(redisClient, cfg.TimetableCacheTTL)
	timetableService := timetable.NewService(timetableRepo, catalogRepo, timetableCache, logger)
	timetableHandler := timetable.NewHandler(logger, timetableService)

	enrollmentRepo := enrollment.NewRepository(dbpool)
	examRepo := exam.NewRepository(dbpool)
	examService := exam.NewService(examRepo, catalogRepo, timetableRepo, enrollmentRepo, logger)
	examHandler := exam.NewHandler(logger, examService)

	registrationRepo := registration.NewRepository(dbpool)
	registrationService := registration.NewService(registrationRepo, logger)
	registrationHandler := registration.NewHandler(logger, registrationService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		TimetableHandler:    timetableHandler,
		ExamHandler:         examHandler,
		RegistrationHandler: registrationHandler,
		CatalogHandler:      catalogHandler,
		JobHandler:          jobHandler,
		Pool:                dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
