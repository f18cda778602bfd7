package service

import (
	"context"
	"strings"
	"time"

	"codequest/internal/apperr"
	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/events"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/observability"
	"codequest/internal/repository"
)

// RewardService pays out mission rewards exactly once
type RewardService struct {
	db       *database.DB
	missions *repository.MissionRepository
	accounts *repository.AccountRepository
	bus      events.Bus
	retry    retrier
	log      *logger.Logger
	now      func() time.Time
}

// NewRewardService creates a new reward service
func NewRewardService(
	db *database.DB,
	missions *repository.MissionRepository,
	accounts *repository.AccountRepository,
	bus events.Bus,
	retryCfg config.RetryConfig,
	log *logger.Logger,
) *RewardService {
	log = log.With("service", "RewardService")
	if bus == nil {
		bus = events.NewNoopBus()
	}
	return &RewardService{
		db:       db,
		missions: missions,
		accounts: accounts,
		bus:      bus,
		retry:    newRetrier(db, retryCfg, log),
		log:      log,
		now:      time.Now,
	}
}

// Claim moves a COMPLETED mission to CLAIMED and credits its reward to the
// user's account in the same transaction. Every other status fails with an
// InvalidState error whose code names the blocking status.
func (s *RewardService) Claim(ctx context.Context, userID, missionID string) (reward *models.Reward, err error) {
	ctx, span := observability.StartSpan(ctx, "reward.claim",
		observability.AttrUserID(userID),
		observability.AttrMissionID(missionID),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(userID) == "" || strings.TrimSpace(missionID) == "" {
		return nil, apperr.InvalidInput("user id and mission id are required")
	}

	var expiredNow bool
	err = s.retry.do(ctx, "claim_reward", func() error {
		expiredNow = false
		r, expired, err := s.claimOnce(ctx, userID, missionID)
		reward, expiredNow = r, expired
		return err
	})
	if err != nil {
		return nil, err
	}
	if expiredNow {
		s.log.Info("claim on lapsed mission expired it", "user_id", userID, "mission_id", missionID)
		return nil, apperr.InvalidState(apperr.CodeExpired, "mission has expired")
	}

	s.log.Info("reward claimed", "user_id", userID, "mission_id", missionID,
		"xp", reward.XP, "gems", reward.Gems, "hearts", reward.Hearts)
	if err := s.bus.Publish(ctx, events.Notification{
		Kind:      events.KindRewardClaimed,
		UserID:    userID,
		MissionID: missionID,
		Reward:    reward,
		At:        s.now().UTC(),
	}); err != nil {
		s.log.Warn("publish notification failed", "mission_id", missionID, "error", err)
	}
	return reward, nil
}

// claimOnce runs one claim attempt. A COMPLETED mission past its expiry is
// expired and committed; the caller then reports it as expired.
func (s *RewardService) claimOnce(ctx context.Context, userID, missionID string) (*models.Reward, bool, error) {
	var reward *models.Reward
	var expired bool

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		now := s.now().UTC()

		m, err := s.missions.GetForUpdate(ctx, tx, missionID)
		if err != nil {
			return err
		}
		if m == nil || m.UserID != userID {
			return apperr.NotFound("mission %s not found", missionID)
		}

		if !m.Status.CanTransition(models.StatusClaimed) {
			switch m.Status {
			case models.StatusPending:
				return apperr.InvalidState(apperr.CodeNotCompleted, "mission is not completed yet")
			case models.StatusClaimed:
				return apperr.InvalidState(apperr.CodeAlreadyClaimed, "mission reward was already claimed")
			default:
				return apperr.InvalidState(apperr.CodeExpired, "mission has expired")
			}
		}

		if m.Expired(now) {
			if _, err := s.missions.ExpireOne(ctx, tx, m.ID, now); err != nil {
				return err
			}
			expired = true
			return nil
		}

		if err := s.missions.MarkClaimed(ctx, tx, m.ID, now); err != nil {
			return err
		}

		reward, err = s.missions.GetReward(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		if reward == nil {
			reward = &models.Reward{MissionID: m.ID}
		}
		return s.accounts.Credit(ctx, tx, userID, reward.XP, reward.Gems, reward.Hearts)
	})
	return reward, expired, err
}
