package service

import (
	"context"
	"fmt"
	"strings"

	"codequest/internal/apperr"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/observability"
	"codequest/internal/repository"
)

// RatingService exposes user ability reads and the administrative override
type RatingService struct {
	ratings *repository.RatingRepository
	log     *logger.Logger
}

// NewRatingService creates a new rating service
func NewRatingService(ratings *repository.RatingRepository, log *logger.Logger) *RatingService {
	return &RatingService{ratings: ratings, log: log.With("service", "RatingService")}
}

// GetAbility returns every skill rating of the user with summary stats
func (s *RatingService) GetAbility(ctx context.Context, userID string) (summary *models.AbilitySummary, err error) {
	ctx, span := observability.StartSpan(ctx, "rating.get_ability", observability.AttrUserID(userID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	ratings, err := s.ratings.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := models.Summarize(userID, ratings)
	return &sum, nil
}

// GetRating returns the rating for one skill, creating the default on first use
func (s *RatingService) GetRating(ctx context.Context, userID, skillID string) (*models.SkillRating, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	return s.ratings.Get(ctx, userID, models.NormalizeSkill(skillID))
}

// SetRating overrides a rating. Values outside the rating scale are rejected.
func (s *RatingService) SetRating(ctx context.Context, userID, skillID string, rating float64) (result *models.SkillRating, err error) {
	ctx, span := observability.StartSpan(ctx, "rating.set", observability.AttrUserID(userID), observability.AttrSkillID(skillID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	if !models.ValidRating(rating) {
		return nil, apperr.InvalidInput("rating must be between %.0f and %.0f", models.MinRating, models.MaxRating)
	}
	skillID = models.NormalizeSkill(skillID)

	if err := s.ratings.Set(ctx, nil, userID, skillID, rating); err != nil {
		return nil, fmt.Errorf("override rating: %w", err)
	}
	s.log.Info("rating overridden", "user_id", userID, "skill_id", skillID, "rating", rating)
	return s.ratings.Get(ctx, userID, skillID)
}
