package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "codequest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PingContext(ctx))

	tables := []string{"skill_ratings", "questions", "question_history", "accounts", "missions", "rewards"}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	// Running again is a no-op
	require.NoError(t, db.RunMigrations())
	pending, err := db.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("commits on success", func(t *testing.T) {
		err := db.WithTx(ctx, func(tx *Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO accounts (user_id, updated_at) VALUES (?, ?)", "u1", now)
			return err
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE user_id = ?", "u1").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithTx(ctx, func(tx *Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO accounts (user_id, updated_at) VALUES (?, ?)", "u2", now); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var count int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts WHERE user_id = ?", "u2").Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("insert ignore skips duplicates", func(t *testing.T) {
		q := db.Dialect.InsertIgnore("INSERT INTO accounts (user_id, updated_at) VALUES (?, ?)")
		res, err := db.ExecContext(ctx, q, "u1", now)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

// TestConcurrentWriters checks that immediate transactions serialize instead of failing
func TestConcurrentWriters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO accounts (user_id, updated_at) VALUES (?, ?)", "shared", time.Now().UTC())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.WithTx(ctx, func(tx *Tx) error {
				var xp int
				if err := tx.QueryRowContext(ctx, "SELECT xp FROM accounts WHERE user_id = ?", "shared").Scan(&xp); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, "UPDATE accounts SET xp = ? WHERE user_id = ?", xp+1, "shared")
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var xp int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT xp FROM accounts WHERE user_id = ?", "shared").Scan(&xp))
	assert.Equal(t, 20, xp)
}
