package service

import (
	"context"
	"strings"

	"codequest/internal/apperr"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/repository"
)

// AccountService reads currency totals and records the current day streak
type AccountService struct {
	accounts *repository.AccountRepository
	log      *logger.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accounts *repository.AccountRepository, log *logger.Logger) *AccountService {
	return &AccountService{accounts: accounts, log: log.With("service", "AccountService")}
}

// Get returns the user's account, creating an empty one on first use
func (s *AccountService) Get(ctx context.Context, userID string) (*models.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	return s.accounts.Get(ctx, nil, userID)
}

// SetStreak records the user's current day streak as reported by the account service
func (s *AccountService) SetStreak(ctx context.Context, userID string, days int) (*models.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	if days < 0 {
		return nil, apperr.InvalidInput("streak must not be negative")
	}
	if err := s.accounts.SetStreak(ctx, userID, days); err != nil {
		return nil, err
	}
	s.log.Info("day streak updated", "user_id", userID, "days", days)
	return s.accounts.Get(ctx, nil, userID)
}
