package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codequest/internal/database"
	"codequest/internal/models"
)

// RatingRepository handles skill rating database operations
type RatingRepository struct {
	db *database.DB
}

// NewRatingRepository creates a new rating repository
func NewRatingRepository(db *database.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Ensure creates the default rating row if it does not exist yet
func (r *RatingRepository) Ensure(ctx context.Context, q database.DBTX, userID, skillID string) error {
	q = pick(r.db, q)
	query := q.GetDialect().InsertIgnore(`
		INSERT INTO skill_ratings (user_id, skill_id, rating, answered_count, updated_at)
		VALUES (?, ?, ?, 0, ?)
	`)
	if _, err := q.ExecContext(ctx, query, userID, skillID, models.DefaultRating, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to ensure rating: %w", err)
	}
	return nil
}

// Get returns the rating for a user and skill, creating the default one on first use
func (r *RatingRepository) Get(ctx context.Context, userID, skillID string) (*models.SkillRating, error) {
	if err := r.Ensure(ctx, nil, userID, skillID); err != nil {
		return nil, err
	}
	return r.scanOne(ctx, r.db, userID, skillID, "")
}

// GetForUpdate reads the rating inside tx, locking the row where the engine supports it
func (r *RatingRepository) GetForUpdate(ctx context.Context, tx database.DBTX, userID, skillID string) (*models.SkillRating, error) {
	if err := r.Ensure(ctx, tx, userID, skillID); err != nil {
		return nil, err
	}
	return r.scanOne(ctx, tx, userID, skillID, tx.GetDialect().ForUpdate())
}

func (r *RatingRepository) scanOne(ctx context.Context, q database.DBTX, userID, skillID, suffix string) (*models.SkillRating, error) {
	query := `
		SELECT user_id, skill_id, rating, answered_count, updated_at
		FROM skill_ratings
		WHERE user_id = ? AND skill_id = ?` + suffix

	rating := &models.SkillRating{}
	err := q.QueryRowContext(ctx, query, userID, skillID).Scan(
		&rating.UserID,
		&rating.SkillID,
		&rating.Rating,
		&rating.AnsweredCount,
		&rating.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	return rating, nil
}

// RecordAnswer stores the new rating and counts the answer
func (r *RatingRepository) RecordAnswer(ctx context.Context, tx database.DBTX, userID, skillID string, rating float64) error {
	query := `
		UPDATE skill_ratings
		SET rating = ?, answered_count = answered_count + 1, updated_at = ?
		WHERE user_id = ? AND skill_id = ?
	`
	_, err := pick(r.db, tx).ExecContext(ctx, query, models.ClampRating(rating), time.Now().UTC(), userID, skillID)
	if err != nil {
		return fmt.Errorf("failed to record rating: %w", err)
	}
	return nil
}

// Set overwrites the rating, clamped to the valid range
func (r *RatingRepository) Set(ctx context.Context, q database.DBTX, userID, skillID string, rating float64) error {
	q = pick(r.db, q)
	if err := r.Ensure(ctx, q, userID, skillID); err != nil {
		return err
	}
	query := `UPDATE skill_ratings SET rating = ?, updated_at = ? WHERE user_id = ? AND skill_id = ?`
	if _, err := q.ExecContext(ctx, query, models.ClampRating(rating), time.Now().UTC(), userID, skillID); err != nil {
		return fmt.Errorf("failed to set rating: %w", err)
	}
	return nil
}

// ListForUser returns every skill rating of a user, ordered by skill
func (r *RatingRepository) ListForUser(ctx context.Context, userID string) ([]models.SkillRating, error) {
	query := `
		SELECT user_id, skill_id, rating, answered_count, updated_at
		FROM skill_ratings
		WHERE user_id = ?
		ORDER BY skill_id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.SkillRating
	for rows.Next() {
		var sr models.SkillRating
		if err := rows.Scan(&sr.UserID, &sr.SkillID, &sr.Rating, &sr.AnsweredCount, &sr.UpdatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, sr)
	}
	return ratings, rows.Err()
}
