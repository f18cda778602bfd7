// Package app wires configuration, storage and services into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/events"
	"codequest/internal/handlers"
	"codequest/internal/jobs"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/observability"
	"codequest/internal/repository"
	"codequest/internal/security"
	"codequest/internal/service"
)

// Version is stamped at build time
var Version = "dev"

type Repositories struct {
	Ratings   *repository.RatingRepository
	Questions *repository.QuestionRepository
	History   *repository.HistoryRepository
	Accounts  *repository.AccountRepository
	Missions  *repository.MissionRepository
}

type Services struct {
	Ratings  *service.RatingService
	Selector *service.QuestionSelector
	Missions *service.MissionService
	Answers  *service.AnswerService
	Rewards  *service.RewardService
	Accounts *service.AccountService
	Catalog  *service.CatalogService
}

// App holds every long-lived dependency of a codequest process
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *database.DB
	Bus      events.Bus
	Repos    Repositories
	Services Services

	shutdownTracing func(context.Context) error
}

// New opens the store, applies migrations and builds the services
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database connection established", "type", db.Dialect.DriverName())

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	bus, err := events.New(log, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect notification bus: %w", err)
	}

	a := &App{
		Config:          cfg,
		Log:             log,
		DB:              db,
		Bus:             bus,
		shutdownTracing: observability.InitTracing(ctx, log, cfg.Tracing, Version),
	}
	a.Repos = Repositories{
		Ratings:   repository.NewRatingRepository(db),
		Questions: repository.NewQuestionRepository(db),
		History:   repository.NewHistoryRepository(db),
		Accounts:  repository.NewAccountRepository(db),
		Missions:  repository.NewMissionRepository(db),
	}

	r := a.Repos
	missions := service.NewMissionService(db, r.Missions, r.Accounts, models.DefaultMissionCatalog(), cfg.Location(), bus, cfg.Retry, log)
	a.Services = Services{
		Ratings:  service.NewRatingService(r.Ratings, log),
		Selector: service.NewQuestionSelector(r.Ratings, r.Questions, r.History, cfg.Progression, log),
		Missions: missions,
		Answers:  service.NewAnswerService(db, r.Questions, r.Ratings, r.History, r.Accounts, missions, cfg.Progression, cfg.Retry, log),
		Rewards:  service.NewRewardService(db, r.Missions, r.Accounts, bus, cfg.Retry, log),
		Accounts: service.NewAccountService(r.Accounts, log),
		Catalog:  service.NewCatalogService(db, r.Questions, log),
	}
	return a, nil
}

// Scheduler builds the background maintenance scheduler
func (a *App) Scheduler() *jobs.Scheduler {
	return jobs.NewScheduler(a.Services.Missions, a.Repos.Accounts, a.Config.Jobs, a.Log)
}

// Router builds the HTTP routes. The returned limiter must be stopped by the caller.
func (a *App) Router() (*handlers.Router, *security.RateLimiter, error) {
	verifier, err := security.NewTokenVerifier(a.Config.Auth.JWTSecret, a.Config.Auth.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: %w", err)
	}
	limiter := security.NewRateLimiter(a.Config.RateLimit.Requests, a.Config.RateLimit.Window)

	s := a.Services
	return &handlers.Router{
		DB:         a.DB,
		Middleware: handlers.NewMiddleware(verifier, limiter, a.Log),
		Progress:   handlers.NewProgressHandler(s.Ratings, s.Selector, s.Answers, a.Log),
		Missions:   handlers.NewMissionHandler(s.Missions, s.Rewards, a.Log),
		Admin:      handlers.NewAdminHandler(s.Missions, s.Accounts, a.Log),
		Log:        a.Log,
	}, limiter, nil
}

// Close releases the bus, flushes traces and closes the store
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if err := a.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	if err := a.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
