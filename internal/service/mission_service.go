package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"codequest/internal/apperr"
	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/events"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/observability"
	"codequest/internal/repository"
)

// EventMissionInput describes an administratively created mission
type EventMissionInput struct {
	UserID    string               `json:"userId"`
	Objective models.ObjectiveKind `json:"objective"`
	Target    int                  `json:"target"`
	Reward    models.Reward        `json:"reward"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// MissionService generates missions, applies progress and expires them
type MissionService struct {
	db       *database.DB
	missions *repository.MissionRepository
	accounts *repository.AccountRepository
	catalog  models.MissionCatalog
	loc      *time.Location
	bus      events.Bus
	retry    retrier
	log      *logger.Logger
	now      func() time.Time
}

// NewMissionService creates a new mission service
func NewMissionService(
	db *database.DB,
	missions *repository.MissionRepository,
	accounts *repository.AccountRepository,
	catalog models.MissionCatalog,
	loc *time.Location,
	bus events.Bus,
	retryCfg config.RetryConfig,
	log *logger.Logger,
) *MissionService {
	log = log.With("service", "MissionService")
	if loc == nil {
		loc = time.UTC
	}
	if bus == nil {
		bus = events.NewNoopBus()
	}
	return &MissionService{
		db:       db,
		missions: missions,
		accounts: accounts,
		catalog:  catalog,
		loc:      loc,
		bus:      bus,
		retry:    newRetrier(db, retryCfg, log),
		log:      log,
		now:      time.Now,
	}
}

// GenerateDaily ensures the user has the current day's mission set
func (s *MissionService) GenerateDaily(ctx context.Context, userID string) ([]models.Mission, error) {
	return s.Generate(ctx, userID, models.MissionDaily)
}

// GenerateWeekly ensures the user has the current ISO week's mission set
func (s *MissionService) GenerateWeekly(ctx context.Context, userID string) ([]models.Mission, error) {
	return s.Generate(ctx, userID, models.MissionWeekly)
}

// Generate ensures exactly one mission set of typ exists for the current period.
// Open missions of earlier periods are expired first. Calling it again in the
// same period changes nothing.
func (s *MissionService) Generate(ctx context.Context, userID string, typ models.MissionType) (missions []models.Mission, err error) {
	ctx, span := observability.StartSpan(ctx, "mission.generate",
		observability.AttrUserID(userID),
		attribute.String("mission.type", string(typ)),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	templates, ok := s.catalog[typ]
	if !ok {
		return nil, apperr.InvalidInput("mission type %s is not generated", typ)
	}

	now := s.now().UTC()
	period, err := models.PeriodFor(typ, now, s.loc)
	if err != nil {
		return nil, apperr.InvalidInput("%v", err)
	}

	created := 0
	err = s.retry.do(ctx, "generate_missions", func() error {
		created = 0
		return s.db.WithTx(ctx, func(tx *database.Tx) error {
			if err := s.accounts.Ensure(ctx, tx, userID); err != nil {
				return err
			}
			if _, err := s.missions.ExpireSuperseded(ctx, tx, userID, typ, period.Key, now); err != nil {
				return err
			}

			for _, tmpl := range templates {
				m := &models.Mission{
					ID:        uuid.NewString(),
					UserID:    userID,
					Type:      typ,
					Slot:      tmpl.Slot,
					PeriodKey: period.Key,
					Objective: tmpl.Objective,
					Target:    tmpl.TargetFor(userID, period.Key),
					Status:    models.StatusPending,
					CreatedAt: now,
					ExpiresAt: period.End,
					UpdatedAt: now,
				}
				inserted, err := s.missions.Insert(ctx, tx, m)
				if err != nil {
					return err
				}
				if !inserted {
					continue
				}
				reward := tmpl.Reward
				reward.MissionID = m.ID
				if err := s.missions.InsertReward(ctx, tx, reward); err != nil {
					return err
				}
				created++
			}

			list, err := s.missions.ListByPeriod(ctx, tx, userID, typ, period.Key)
			missions = list
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if created > 0 {
		s.log.Info("missions generated", "user_id", userID, "type", typ, "period", period.Key, "created", created)
	}
	return missions, nil
}

// CreateEventMission creates a one-off mission with an explicit objective, target and expiry
func (s *MissionService) CreateEventMission(ctx context.Context, in EventMissionInput) (mission *models.Mission, err error) {
	ctx, span := observability.StartSpan(ctx, "mission.create_event", observability.AttrUserID(in.UserID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	objective, err := models.ParseObjectiveKind(string(in.Objective))
	if err != nil {
		return nil, err
	}
	if in.Target <= 0 {
		return nil, apperr.InvalidInput("target must be positive")
	}
	if in.Reward.XP < 0 || in.Reward.Gems < 0 || in.Reward.Hearts < 0 {
		return nil, apperr.InvalidInput("reward amounts must not be negative")
	}
	now := s.now().UTC()
	if !in.ExpiresAt.After(now) {
		return nil, apperr.InvalidInput("expiry must be in the future")
	}

	id := uuid.NewString()
	m := &models.Mission{
		ID:        id,
		UserID:    in.UserID,
		Type:      models.MissionEvent,
		PeriodKey: id,
		Objective: objective,
		Target:    in.Target,
		Status:    models.StatusPending,
		CreatedAt: now,
		ExpiresAt: in.ExpiresAt.UTC(),
		UpdatedAt: now,
	}
	reward := in.Reward
	reward.MissionID = id

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.accounts.Ensure(ctx, tx, in.UserID); err != nil {
			return err
		}
		if _, err := s.missions.Insert(ctx, tx, m); err != nil {
			return err
		}
		return s.missions.InsertReward(ctx, tx, reward)
	})
	if err != nil {
		return nil, err
	}
	m.Reward = &reward
	s.log.Info("event mission created", "user_id", in.UserID, "mission_id", id, "objective", objective, "target", in.Target)
	return m, nil
}

// UpdateProgress applies one event to every pending, unexpired mission of the
// user counting the event's objective, all in one transaction. It returns the
// missions that changed.
func (s *MissionService) UpdateProgress(ctx context.Context, userID string, ev models.Event) (updated []models.Mission, err error) {
	ctx, span := observability.StartSpan(ctx, "mission.update_progress",
		observability.AttrUserID(userID),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.Int("event.amount", ev.Amount),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	objective, _ := ev.Kind.Objective()

	err = s.retry.do(ctx, "update_progress", func() error {
		updated = nil
		now := s.now().UTC()
		return s.db.WithTx(ctx, func(tx *database.Tx) error {
			pending, err := s.missions.ListPendingByObjective(ctx, tx, userID, objective, now)
			if err != nil {
				return err
			}
			for _, m := range pending {
				from := m.Progress
				if !m.ApplyProgress(ev.Amount) {
					continue
				}
				if err := s.missions.UpdateProgress(ctx, tx, &m, from, now); err != nil {
					return err
				}
				m.UpdatedAt = now
				updated = append(updated, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, m := range updated {
		if m.Status == models.StatusCompleted {
			s.publish(ctx, events.Notification{
				Kind:      events.KindMissionCompleted,
				UserID:    userID,
				MissionID: m.ID,
				Objective: string(m.Objective),
				At:        m.UpdatedAt,
			})
		}
	}
	return updated, nil
}

// RecordEvents applies several events in order. Each event is its own unit.
func (s *MissionService) RecordEvents(ctx context.Context, userID string, evs ...models.Event) error {
	var errs []error
	for _, ev := range evs {
		if _, err := s.UpdateProgress(ctx, userID, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// ExpireMissions expires every open mission whose expiry has passed and returns
// how many changed. Running it again finds nothing new.
func (s *MissionService) ExpireMissions(ctx context.Context) (count int64, err error) {
	ctx, span := observability.StartSpan(ctx, "mission.expire")
	defer observability.FinishSpan(span, &err)

	err = s.retry.do(ctx, "expire_missions", func() error {
		n, err := s.missions.ExpireDue(ctx, s.now().UTC())
		count = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("missions expired", "count", count)
	}
	span.SetAttributes(attribute.Int64("missions.expired", count))
	return count, nil
}

// ListActive ensures the daily and weekly sets exist, then returns the user's
// open missions grouped by type
func (s *MissionService) ListActive(ctx context.Context, userID string) (map[models.MissionType][]models.Mission, error) {
	if _, err := s.GenerateDaily(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.GenerateWeekly(ctx, userID); err != nil {
		return nil, err
	}

	missions, err := s.missions.ListActive(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	grouped := lo.GroupBy(missions, func(m models.Mission) models.MissionType { return m.Type })
	for _, typ := range []models.MissionType{models.MissionDaily, models.MissionWeekly} {
		if _, ok := grouped[typ]; !ok {
			grouped[typ] = []models.Mission{}
		}
	}
	return grouped, nil
}

func (s *MissionService) publish(ctx context.Context, n events.Notification) {
	if err := s.bus.Publish(ctx, n); err != nil {
		s.log.Warn("publish notification failed", "kind", n.Kind, "mission_id", n.MissionID, "error", err)
	}
}
