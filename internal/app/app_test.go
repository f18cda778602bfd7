package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codequest/internal/config"
	"codequest/internal/logger"
)

func TestNewWiresEverything(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.Auth.JWTSecret = "test-secret"

	a, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	pending, err := a.DB.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	router, limiter, err := a.Router()
	require.NoError(t, err)
	defer limiter.Stop()

	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NotNil(t, a.Scheduler())
}

func TestRouterRequiresSecret(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")

	a, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	_, _, err = a.Router()
	assert.Error(t, err)
}
