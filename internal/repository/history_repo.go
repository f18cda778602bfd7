package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codequest/internal/database"
	"codequest/internal/models"
)

// HistoryRepository tracks per-user question attempts
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// GetForUpdate returns the user's record on a question inside tx, creating an
// empty one first so the row can be locked
func (r *HistoryRepository) GetForUpdate(ctx context.Context, tx database.DBTX, userID string, questionID int64) (*models.QuestionHistory, error) {
	ensure := tx.GetDialect().InsertIgnore(`
		INSERT INTO question_history (user_id, question_id, attempts, correct, last_correct, last_seen_at)
		VALUES (?, ?, 0, 0, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, ensure, userID, questionID, false, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to ensure history: %w", err)
	}
	return r.get(ctx, tx, userID, questionID, tx.GetDialect().ForUpdate())
}

// Get returns the user's record on a question, or nil when never attempted
func (r *HistoryRepository) Get(ctx context.Context, userID string, questionID int64) (*models.QuestionHistory, error) {
	return r.get(ctx, r.db, userID, questionID, "")
}

func (r *HistoryRepository) get(ctx context.Context, q database.DBTX, userID string, questionID int64, suffix string) (*models.QuestionHistory, error) {
	query := `
		SELECT user_id, question_id, attempts, correct, last_correct, last_seen_at
		FROM question_history
		WHERE user_id = ? AND question_id = ?` + suffix

	h := &models.QuestionHistory{}
	err := q.QueryRowContext(ctx, query, userID, questionID).Scan(
		&h.UserID,
		&h.QuestionID,
		&h.Attempts,
		&h.Correct,
		&h.LastCorrect,
		&h.LastSeenAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return h, nil
}

// Save writes back a record previously read with GetForUpdate
func (r *HistoryRepository) Save(ctx context.Context, tx database.DBTX, h *models.QuestionHistory) error {
	query := `
		UPDATE question_history
		SET attempts = ?, correct = ?, last_correct = ?, last_seen_at = ?
		WHERE user_id = ? AND question_id = ?
	`
	_, err := pick(r.db, tx).ExecContext(ctx, query, h.Attempts, h.Correct, h.LastCorrect, h.LastSeenAt.UTC(), h.UserID, h.QuestionID)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// ListSeenForSkill returns every attempted question of a skill with its tags
func (r *HistoryRepository) ListSeenForSkill(ctx context.Context, userID, skillID string) ([]models.SeenQuestion, error) {
	query := `
		SELECT h.user_id, h.question_id, h.attempts, h.correct, h.last_correct, h.last_seen_at, q.tags
		FROM question_history h
		JOIN questions q ON q.id = h.question_id
		WHERE h.user_id = ? AND q.skill_id = ? AND h.attempts > 0
	`
	rows, err := r.db.QueryContext(ctx, query, userID, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var seen []models.SeenQuestion
	for rows.Next() {
		var s models.SeenQuestion
		var tags string
		if err := rows.Scan(&s.UserID, &s.QuestionID, &s.Attempts, &s.Correct, &s.LastCorrect, &s.LastSeenAt, &tags); err != nil {
			return nil, err
		}
		s.Tags = models.SplitTags(tags)
		seen = append(seen, s)
	}
	return seen, rows.Err()
}
