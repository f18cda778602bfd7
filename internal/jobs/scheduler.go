package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"codequest/internal/config"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/repository"
	"codequest/internal/service"
)

// Scheduler runs the periodic mission maintenance sweeps
type Scheduler struct {
	missions *service.MissionService
	accounts *repository.AccountRepository
	cfg      config.JobsConfig
	log      *logger.Logger
}

// SweepStats summarizes one generation sweep
type SweepStats struct {
	Users  int64
	Failed int64
}

func NewScheduler(missions *service.MissionService, accounts *repository.AccountRepository, cfg config.JobsConfig, log *logger.Logger) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 500
	}
	if cfg.ExpireInterval <= 0 {
		cfg.ExpireInterval = 5 * time.Minute
	}
	if cfg.GenerateInterval <= 0 {
		cfg.GenerateInterval = time.Hour
	}
	return &Scheduler{missions: missions, accounts: accounts, cfg: cfg, log: log.With("component", "scheduler")}
}

// Run sweeps once immediately, then on every interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	expireTicker := time.NewTicker(s.cfg.ExpireInterval)
	defer expireTicker.Stop()
	generateTicker := time.NewTicker(s.cfg.GenerateInterval)
	defer generateTicker.Stop()

	s.log.Info("scheduler started", "expire_interval", s.cfg.ExpireInterval, "generate_interval", s.cfg.GenerateInterval)
	s.expire(ctx)
	s.generate(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-expireTicker.C:
			s.expire(ctx)
		case <-generateTicker.C:
			s.generate(ctx)
		}
	}
}

func (s *Scheduler) expire(ctx context.Context) {
	if _, err := s.missions.ExpireMissions(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("expiry sweep failed", "error", err)
	}
}

func (s *Scheduler) generate(ctx context.Context) {
	for _, typ := range []models.MissionType{models.MissionDaily, models.MissionWeekly} {
		if _, err := s.GenerateAll(ctx, typ); err != nil && ctx.Err() == nil {
			s.log.Error("generation sweep failed", "type", typ, "error", err)
		}
	}
}

// GenerateAll creates the current period's missions for every known user.
// A failure for one user is logged and counted; it does not stop the sweep.
func (s *Scheduler) GenerateAll(ctx context.Context, typ models.MissionType) (SweepStats, error) {
	var users, failed atomic.Int64
	after := ""

	for {
		ids, err := s.accounts.ListUserIDs(ctx, after, s.cfg.PageSize)
		if err != nil {
			return SweepStats{Users: users.Load(), Failed: failed.Load()}, err
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		for _, id := range ids {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				users.Add(1)
				if _, err := s.missions.Generate(gctx, id, typ); err != nil {
					failed.Add(1)
					s.log.Warn("mission generation failed", "user_id", id, "type", typ, "error", err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return SweepStats{Users: users.Load(), Failed: failed.Load()}, err
		}

		if len(ids) < s.cfg.PageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	stats := SweepStats{Users: users.Load(), Failed: failed.Load()}
	s.log.Info("generation sweep finished", "type", typ, "users", stats.Users, "failed", stats.Failed)
	return stats, nil
}
