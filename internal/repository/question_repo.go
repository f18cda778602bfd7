package repository

import (
	"context"
	"database/sql"
	"fmt"

	"codequest/internal/database"
	"codequest/internal/models"
)

// QuestionRepository reads and loads catalog questions
type QuestionRepository struct {
	db *database.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *database.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = `id, skill_id, difficulty, tier, tags, prompt, answer`

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	q := &models.Question{}
	var tier int
	var tags string
	if err := row.Scan(&q.ID, &q.SkillID, &q.Difficulty, &tier, &tags, &q.Prompt, &q.Answer); err != nil {
		return nil, err
	}
	q.Tier = models.Tier(tier)
	q.Tags = models.SplitTags(tags)
	return q, nil
}

// GetByID retrieves a question, or nil when it does not exist
func (r *QuestionRepository) GetByID(ctx context.Context, q database.DBTX, id int64) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE id = ?`
	question, err := scanQuestion(pick(r.db, q).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

// ListBySkill returns the questions of a skill whose difficulty lies in [minDifficulty, maxDifficulty]
func (r *QuestionRepository) ListBySkill(ctx context.Context, skillID string, minDifficulty, maxDifficulty float64) ([]models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions
		WHERE skill_id = ? AND difficulty >= ? AND difficulty <= ?
		ORDER BY difficulty, id
	`
	return r.list(ctx, query, skillID, minDifficulty, maxDifficulty)
}

// ListAll returns the whole catalog ordered by skill and id
func (r *QuestionRepository) ListAll(ctx context.Context) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions ORDER BY skill_id, id`
	return r.list(ctx, query)
}

func (r *QuestionRepository) list(ctx context.Context, query string, args ...any) ([]models.Question, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// Upsert inserts the question or replaces the stored fields of an existing id.
// It reports whether a new row was created.
func (r *QuestionRepository) Upsert(ctx context.Context, tx database.DBTX, q *models.Question) (bool, error) {
	tx = pick(r.db, tx)

	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE id = ?`, q.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check question: %w", err)
	}

	if exists > 0 {
		query := `
			UPDATE questions
			SET skill_id = ?, difficulty = ?, tier = ?, tags = ?, prompt = ?, answer = ?
			WHERE id = ?
		`
		_, err = tx.ExecContext(ctx, query, q.SkillID, q.Difficulty, int(q.Tier), models.JoinTags(q.Tags), q.Prompt, q.Answer, q.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update question %d: %w", q.ID, err)
		}
		return false, nil
	}

	query := `
		INSERT INTO questions (id, skill_id, difficulty, tier, tags, prompt, answer)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query, q.ID, q.SkillID, q.Difficulty, int(q.Tier), models.JoinTags(q.Tags), q.Prompt, q.Answer)
	if err != nil {
		return false, fmt.Errorf("failed to insert question %d: %w", q.ID, err)
	}
	return true, nil
}
