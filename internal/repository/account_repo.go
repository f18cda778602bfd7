package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codequest/internal/database"
	"codequest/internal/models"
)

// AccountRepository stores currency totals and the current day streak
type AccountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Ensure creates an empty account if the user has none
func (r *AccountRepository) Ensure(ctx context.Context, q database.DBTX, userID string) error {
	q = pick(r.db, q)
	query := q.GetDialect().InsertIgnore(`
		INSERT INTO accounts (user_id, xp, gems, hearts, day_streak, updated_at)
		VALUES (?, 0, 0, 0, 0, ?)
	`)
	if _, err := q.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

// Get returns the account, creating an empty one on first use
func (r *AccountRepository) Get(ctx context.Context, q database.DBTX, userID string) (*models.Account, error) {
	q = pick(r.db, q)
	if err := r.Ensure(ctx, q, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, xp, gems, hearts, day_streak, updated_at
		FROM accounts
		WHERE user_id = ?
	`
	a := &models.Account{}
	err := q.QueryRowContext(ctx, query, userID).Scan(&a.UserID, &a.XP, &a.Gems, &a.Hearts, &a.DayStreak, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// Credit adds to the account totals in place
func (r *AccountRepository) Credit(ctx context.Context, q database.DBTX, userID string, xp, gems, hearts int) error {
	q = pick(r.db, q)
	if err := r.Ensure(ctx, q, userID); err != nil {
		return err
	}
	query := `
		UPDATE accounts
		SET xp = xp + ?, gems = gems + ?, hearts = hearts + ?, updated_at = ?
		WHERE user_id = ?
	`
	if _, err := q.ExecContext(ctx, query, xp, gems, hearts, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

// SetStreak records the user's current day streak
func (r *AccountRepository) SetStreak(ctx context.Context, userID string, days int) error {
	if err := r.Ensure(ctx, nil, userID); err != nil {
		return err
	}
	query := `UPDATE accounts SET day_streak = ?, updated_at = ? WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, days, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to set streak: %w", err)
	}
	return nil
}

// ListUserIDs pages through known users in id order, starting after afterID
func (r *AccountRepository) ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	query := `SELECT user_id FROM accounts WHERE user_id > ? ORDER BY user_id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
