package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codequest/internal/apperr"
	"codequest/internal/database"
	"codequest/internal/models"
)

// MissionRepository handles mission and reward database operations
type MissionRepository struct {
	db *database.DB
}

// NewMissionRepository creates a new mission repository
func NewMissionRepository(db *database.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

const missionColumns = `m.id, m.user_id, m.type, m.slot, m.period_key, m.objective, m.target, m.progress,
		       m.status, m.created_at, m.expires_at, m.claimed_at, m.updated_at`

func scanMission(row interface{ Scan(...any) error }, extra ...any) (*models.Mission, error) {
	m := &models.Mission{}
	var claimedAt sql.NullTime
	dest := []any{
		&m.ID, &m.UserID, &m.Type, &m.Slot, &m.PeriodKey, &m.Objective, &m.Target, &m.Progress,
		&m.Status, &m.CreatedAt, &m.ExpiresAt, &claimedAt, &m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		m.ClaimedAt = &t
	}
	return m, nil
}

// Insert stores a new mission unless one already exists for its
// (user, type, slot, period). It reports whether the row was created.
func (r *MissionRepository) Insert(ctx context.Context, tx database.DBTX, m *models.Mission) (bool, error) {
	tx = pick(r.db, tx)
	query := tx.GetDialect().InsertIgnore(`
		INSERT INTO missions (id, user_id, type, slot, period_key, objective, target, progress,
		                      status, created_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	result, err := tx.ExecContext(ctx, query,
		m.ID, m.UserID, string(m.Type), m.Slot, m.PeriodKey, string(m.Objective), m.Target, m.Progress,
		string(m.Status), m.CreatedAt.UTC(), m.ExpiresAt.UTC(), m.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert mission: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertReward attaches the reward to a newly created mission
func (r *MissionRepository) InsertReward(ctx context.Context, tx database.DBTX, reward models.Reward) error {
	query := `INSERT INTO rewards (mission_id, xp, gems, hearts) VALUES (?, ?, ?, ?)`
	if _, err := pick(r.db, tx).ExecContext(ctx, query, reward.MissionID, reward.XP, reward.Gems, reward.Hearts); err != nil {
		return fmt.Errorf("failed to insert reward: %w", err)
	}
	return nil
}

// GetReward returns the reward of a mission, or nil if it has none
func (r *MissionRepository) GetReward(ctx context.Context, q database.DBTX, missionID string) (*models.Reward, error) {
	reward := &models.Reward{MissionID: missionID}
	query := `SELECT xp, gems, hearts FROM rewards WHERE mission_id = ?`
	err := pick(r.db, q).QueryRowContext(ctx, query, missionID).Scan(&reward.XP, &reward.Gems, &reward.Hearts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return reward, nil
}

// GetByID retrieves a mission without its reward, or nil when it does not exist
func (r *MissionRepository) GetByID(ctx context.Context, q database.DBTX, id string) (*models.Mission, error) {
	return r.getByID(ctx, pick(r.db, q), id, "")
}

// GetForUpdate retrieves a mission inside tx with a row lock
func (r *MissionRepository) GetForUpdate(ctx context.Context, tx database.DBTX, id string) (*models.Mission, error) {
	return r.getByID(ctx, tx, id, tx.GetDialect().ForUpdate())
}

func (r *MissionRepository) getByID(ctx context.Context, q database.DBTX, id, suffix string) (*models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions m WHERE m.id = ?` + suffix
	m, err := scanMission(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return m, nil
}

// ListActive returns the user's open, unexpired missions with their rewards
func (r *MissionRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]models.Mission, error) {
	query := `
		SELECT ` + missionColumns + `, COALESCE(w.xp, 0), COALESCE(w.gems, 0), COALESCE(w.hearts, 0)
		FROM missions m
		LEFT JOIN rewards w ON w.mission_id = m.id
		WHERE m.user_id = ? AND m.status IN ('PENDING', 'COMPLETED') AND m.expires_at > ?
		ORDER BY m.type, m.slot, m.created_at
	`
	return r.listWithRewards(ctx, query, userID, now.UTC())
}

// ListByPeriod returns the user's missions of one type and period with their rewards
func (r *MissionRepository) ListByPeriod(ctx context.Context, q database.DBTX, userID string, typ models.MissionType, periodKey string) ([]models.Mission, error) {
	query := `
		SELECT ` + missionColumns + `, COALESCE(w.xp, 0), COALESCE(w.gems, 0), COALESCE(w.hearts, 0)
		FROM missions m
		LEFT JOIN rewards w ON w.mission_id = m.id
		WHERE m.user_id = ? AND m.type = ? AND m.period_key = ?
		ORDER BY m.slot
	`
	return r.listWithRewardsOn(ctx, pick(r.db, q), query, userID, string(typ), periodKey)
}

func (r *MissionRepository) listWithRewards(ctx context.Context, query string, args ...any) ([]models.Mission, error) {
	return r.listWithRewardsOn(ctx, r.db, query, args...)
}

func (r *MissionRepository) listWithRewardsOn(ctx context.Context, q database.DBTX, query string, args ...any) ([]models.Mission, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []models.Mission
	for rows.Next() {
		reward := &models.Reward{}
		m, err := scanMission(rows, &reward.XP, &reward.Gems, &reward.Hearts)
		if err != nil {
			return nil, err
		}
		reward.MissionID = m.ID
		m.Reward = reward
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

// ListPendingByObjective locks the user's pending, unexpired missions counting objective
func (r *MissionRepository) ListPendingByObjective(ctx context.Context, tx database.DBTX, userID string, objective models.ObjectiveKind, now time.Time) ([]models.Mission, error) {
	query := `
		SELECT ` + missionColumns + `
		FROM missions m
		WHERE m.user_id = ? AND m.objective = ? AND m.status = 'PENDING' AND m.expires_at > ?
		ORDER BY m.id` + tx.GetDialect().ForUpdate()

	rows, err := tx.QueryContext(ctx, query, userID, string(objective), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending missions: %w", err)
	}
	defer rows.Close()

	var missions []models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, *m)
	}
	return missions, rows.Err()
}

// UpdateProgress writes new progress and status if the row still holds the
// values the caller read. A lost race returns apperr.ErrConflict.
func (r *MissionRepository) UpdateProgress(ctx context.Context, tx database.DBTX, m *models.Mission, fromProgress int, now time.Time) error {
	query := `
		UPDATE missions
		SET progress = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING' AND progress = ?
	`
	result, err := pick(r.db, tx).ExecContext(ctx, query, m.Progress, string(m.Status), now.UTC(), m.ID, fromProgress)
	if err != nil {
		return fmt.Errorf("failed to update mission progress: %w", err)
	}
	return expectOneRow(result, "mission %s changed concurrently", m.ID)
}

// MarkClaimed moves a COMPLETED mission to CLAIMED. A lost race returns apperr.ErrConflict.
func (r *MissionRepository) MarkClaimed(ctx context.Context, tx database.DBTX, id string, now time.Time) error {
	query := `
		UPDATE missions
		SET status = 'CLAIMED', claimed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'COMPLETED' AND claimed_at IS NULL
	`
	result, err := pick(r.db, tx).ExecContext(ctx, query, now.UTC(), now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to claim mission: %w", err)
	}
	return expectOneRow(result, "mission %s is no longer claimable", id)
}

// ExpireOne expires a single open mission and reports whether it changed
func (r *MissionRepository) ExpireOne(ctx context.Context, tx database.DBTX, id string, now time.Time) (bool, error) {
	query := `
		UPDATE missions
		SET status = 'EXPIRED', updated_at = ?
		WHERE id = ? AND status IN ('PENDING', 'COMPLETED')
	`
	result, err := pick(r.db, tx).ExecContext(ctx, query, now.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to expire mission: %w", err)
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// ExpireSuperseded expires the user's open missions of typ from other periods
func (r *MissionRepository) ExpireSuperseded(ctx context.Context, tx database.DBTX, userID string, typ models.MissionType, periodKey string, now time.Time) (int64, error) {
	query := `
		UPDATE missions
		SET status = 'EXPIRED', updated_at = ?
		WHERE user_id = ? AND type = ? AND period_key <> ? AND status IN ('PENDING', 'COMPLETED')
	`
	result, err := pick(r.db, tx).ExecContext(ctx, query, now.UTC(), userID, string(typ), periodKey)
	if err != nil {
		return 0, fmt.Errorf("failed to expire superseded missions: %w", err)
	}
	return result.RowsAffected()
}

// ExpireDue expires every open mission whose expiry has passed and returns the count
func (r *MissionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE missions
		SET status = 'EXPIRED', updated_at = ?
		WHERE status IN ('PENDING', 'COMPLETED') AND expires_at <= ?
	`
	result, err := r.db.ExecContext(ctx, query, now.UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire missions: %w", err)
	}
	return result.RowsAffected()
}

func expectOneRow(result sql.Result, format string, args ...any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return apperr.Conflict(format, args...)
	}
	return nil
}
