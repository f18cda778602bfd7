package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/events"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/repository"
	"codequest/internal/security"
	"codequest/internal/service"
)

type apiEnv struct {
	server    *httptest.Server
	verifier  *security.TokenVerifier
	questions *repository.QuestionRepository
}

func newAPIEnv(t *testing.T, limiter *security.RateLimiter) *apiEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Retry.BaseDelay = time.Millisecond
	log := logger.NewNop()
	bus := events.NewNoopBus()

	ratings := repository.NewRatingRepository(db)
	questions := repository.NewQuestionRepository(db)
	history := repository.NewHistoryRepository(db)
	accounts := repository.NewAccountRepository(db)
	missions := repository.NewMissionRepository(db)

	missionSvc := service.NewMissionService(db, missions, accounts, models.DefaultMissionCatalog(), time.UTC, bus, cfg.Retry, log)
	answerSvc := service.NewAnswerService(db, questions, ratings, history, accounts, missionSvc, cfg.Progression, cfg.Retry, log)

	verifier, err := security.NewTokenVerifier("test-secret", "codequest")
	require.NoError(t, err)

	router := &Router{
		DB:         db,
		Middleware: NewMiddleware(verifier, limiter, log),
		Progress: NewProgressHandler(
			service.NewRatingService(ratings, log),
			service.NewQuestionSelector(ratings, questions, history, cfg.Progression, log),
			answerSvc,
			log,
		),
		Missions: NewMissionHandler(missionSvc, service.NewRewardService(db, missions, accounts, bus, cfg.Retry, log), log),
		Admin:    NewAdminHandler(missionSvc, service.NewAccountService(accounts, log), log),
		Log:      log,
	}

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return &apiEnv{server: srv, verifier: verifier, questions: questions}
}

func (e *apiEnv) token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	tok, err := e.verifier.Sign(userID, admin, time.Hour)
	require.NoError(t, err)
	return tok
}

// call sends a request and decodes the JSON response into out when non-nil
func (e *apiEnv) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t, nil)
	var body map[string]string
	assert.Equal(t, http.StatusOK, env.call(t, "GET", "/healthz", "", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAuthentication(t *testing.T) {
	env := newAPIEnv(t, nil)

	var body errorBody
	assert.Equal(t, http.StatusUnauthorized, env.call(t, "GET", "/api/users/u1/ability", "", nil, &body))
	assert.Equal(t, "unauthorized", body.Error.Code)

	assert.Equal(t, http.StatusUnauthorized, env.call(t, "GET", "/api/users/u1/ability", "garbage", nil, nil))

	body = errorBody{}
	assert.Equal(t, http.StatusForbidden, env.call(t, "GET", "/api/users/u1/ability", env.token(t, "u2", false), nil, &body))
	assert.Equal(t, "forbidden", body.Error.Code)

	// Admins may act on anyone
	assert.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/ability", env.token(t, "ops", true), nil, nil))

	assert.Equal(t, http.StatusForbidden, env.call(t, "POST", "/api/admin/missions/expire", env.token(t, "u1", false), nil, nil))
}

func TestAbilityEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	user := env.token(t, "u1", false)
	admin := env.token(t, "ops", true)

	var summary models.AbilitySummary
	require.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/ability", user, nil, &summary))
	assert.Equal(t, "u1", summary.UserID)

	assert.Equal(t, http.StatusForbidden,
		env.call(t, "POST", "/api/users/u1/ability", user, map[string]any{"skillId": "loops", "eloRating": 1500}, nil))

	var errBody errorBody
	assert.Equal(t, http.StatusBadRequest,
		env.call(t, "POST", "/api/users/u1/ability", admin, map[string]any{"skillId": "loops", "eloRating": 3000}, &errBody))
	assert.Equal(t, "invalid_input", errBody.Error.Code)

	assert.Equal(t, http.StatusBadRequest,
		env.call(t, "POST", "/api/users/u1/ability", admin, map[string]any{"skillId": "loops"}, nil))

	var rating models.SkillRating
	require.Equal(t, http.StatusOK,
		env.call(t, "POST", "/api/users/u1/ability", admin, map[string]any{"skillId": "loops", "eloRating": 1500}, &rating))
	assert.Equal(t, 1500.0, rating.Rating)

	summary = models.AbilitySummary{}
	require.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/ability", user, nil, &summary))
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, 1500.0, summary.Average)
}

func TestQuestionAndAnswerFlow(t *testing.T) {
	env := newAPIEnv(t, nil)
	user := env.token(t, "u1", false)

	var next struct {
		Available bool            `json:"available"`
		Question  json.RawMessage `json:"question"`
	}
	require.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/next-question?skill=loops", user, nil, &next))
	assert.False(t, next.Available)

	_, err := env.questions.Upsert(context.Background(), nil, &models.Question{
		ID: 7, SkillID: "loops", Difficulty: 1200, Prompt: "p", Answer: "secret",
	})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/next-question?skill=loops", user, nil, &next))
	assert.True(t, next.Available)
	assert.Contains(t, string(next.Question), `"id":7`)
	assert.NotContains(t, string(next.Question), "secret")

	var result service.AnswerResult
	require.Equal(t, http.StatusOK, env.call(t, "POST", "/api/users/u1/answers", user,
		map[string]any{"questionId": 7, "isCorrect": true, "timeSpent": 20}, &result))
	assert.Equal(t, int64(7), result.QuestionID)
	assert.Equal(t, 1212.0, result.NewRating)
	assert.Equal(t, 30, result.XPEarned)

	var errBody errorBody
	assert.Equal(t, http.StatusNotFound, env.call(t, "POST", "/api/users/u1/answers", user,
		map[string]any{"questionId": 99, "isCorrect": true}, &errBody))
	assert.Equal(t, "not_found", errBody.Error.Code)

	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/users/u1/answers", user,
		map[string]any{"questionId": 7}, nil))
	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/users/u1/answers", user,
		map[string]any{"questionId": 7, "isCorrect": true, "extra": 1}, nil))
}

func TestMissionFlow(t *testing.T) {
	env := newAPIEnv(t, nil)
	user := env.token(t, "u1", false)

	var listed missionsResponse
	require.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/missions", user, nil, &listed))
	require.Len(t, listed.Missions[models.MissionDaily], 3)
	require.Len(t, listed.Missions[models.MissionWeekly], 3)

	var answer models.Mission
	for _, m := range listed.Missions[models.MissionDaily] {
		if m.Objective == models.ObjectiveAnswerQuestions {
			answer = m
		}
	}
	require.NotEmpty(t, answer.ID)
	require.NotNil(t, answer.Reward)
	claimPath := "/api/users/u1/missions/" + answer.ID + "/claim"

	var errBody errorBody
	assert.Equal(t, http.StatusConflict, env.call(t, "POST", claimPath, user, nil, &errBody))
	assert.Equal(t, "not_completed", errBody.Error.Code)

	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/users/u1/mission-events", user,
		map[string]any{"kind": "DANCED", "amount": 1}, nil))
	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/users/u1/mission-events", user,
		map[string]any{"kind": "QUESTION_ANSWERED", "amount": 0}, nil))

	var ack eventResponse
	require.Equal(t, http.StatusOK, env.call(t, "POST", "/api/users/u1/mission-events", user,
		map[string]any{"kind": "question_answered", "amount": answer.Target}, &ack))
	assert.True(t, ack.Accepted)
	require.Len(t, ack.Updated, 1)
	assert.Equal(t, models.StatusCompleted, ack.Updated[0].Status)

	var claimed claimResponse
	require.Equal(t, http.StatusOK, env.call(t, "POST", claimPath, user, nil, &claimed))
	assert.True(t, claimed.Claimed)
	require.NotNil(t, claimed.Reward)
	assert.Equal(t, answer.Reward.XP, claimed.Reward.XP)

	errBody = errorBody{}
	assert.Equal(t, http.StatusConflict, env.call(t, "POST", claimPath, user, nil, &errBody))
	assert.Equal(t, "already_claimed", errBody.Error.Code)

	assert.Equal(t, http.StatusForbidden, env.call(t, "POST", claimPath, env.token(t, "u2", false), nil, nil))
	assert.Equal(t, http.StatusNotFound,
		env.call(t, "POST", "/api/users/u2/missions/"+answer.ID+"/claim", env.token(t, "u2", false), nil, nil))
}

func TestAdminEndpoints(t *testing.T) {
	env := newAPIEnv(t, nil)
	admin := env.token(t, "ops", true)

	var generated struct {
		Type     models.MissionType `json:"type"`
		Missions []models.Mission   `json:"missions"`
	}
	require.Equal(t, http.StatusOK, env.call(t, "POST", "/api/admin/users/u1/missions/generate?type=weekly", admin, nil, &generated))
	assert.Equal(t, models.MissionWeekly, generated.Type)
	assert.Len(t, generated.Missions, 3)

	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/admin/users/u1/missions/generate?type=monthly", admin, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/admin/users/u1/missions/generate?type=event", admin, nil, nil))

	var mission models.Mission
	require.Equal(t, http.StatusCreated, env.call(t, "POST", "/api/admin/users/u1/missions/event", admin, map[string]any{
		"objective": "FIX_MISTAKES",
		"target":    2,
		"reward":    map[string]int{"xp": 50, "gems": 10, "hearts": 1},
		"expiresAt": time.Now().Add(48 * time.Hour).UTC(),
	}, &mission))
	assert.Equal(t, models.MissionEvent, mission.Type)
	require.NotNil(t, mission.Reward)
	assert.Equal(t, 50, mission.Reward.XP)

	assert.Equal(t, http.StatusBadRequest, env.call(t, "POST", "/api/admin/users/u1/missions/event", admin, map[string]any{
		"objective": "FIX_MISTAKES",
		"target":    2,
		"expiresAt": time.Now().Add(-time.Hour).UTC(),
	}, nil))

	var account models.Account
	require.Equal(t, http.StatusOK, env.call(t, "PUT", "/api/admin/users/u1/streak", admin, map[string]int{"dayStreak": 9}, &account))
	assert.Equal(t, 9, account.DayStreak)
	assert.Equal(t, http.StatusBadRequest, env.call(t, "PUT", "/api/admin/users/u1/streak", admin, map[string]int{"dayStreak": -1}, nil))

	var expired map[string]int64
	require.Equal(t, http.StatusOK, env.call(t, "POST", "/api/admin/missions/expire", admin, nil, &expired))
	assert.Equal(t, int64(0), expired["expired"])
}

func TestRateLimit(t *testing.T) {
	limiter := security.NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newAPIEnv(t, limiter)
	user := env.token(t, "u1", false)

	ev := map[string]any{"kind": "LESSON_COMPLETED", "amount": 1}
	assert.Equal(t, http.StatusOK, env.call(t, "POST", "/api/users/u1/mission-events", user, ev, nil))

	var errBody errorBody
	assert.Equal(t, http.StatusTooManyRequests, env.call(t, "POST", "/api/users/u1/mission-events", user, ev, &errBody))
	assert.Equal(t, "rate_limited", errBody.Error.Code)

	// Reads are not limited
	assert.Equal(t, http.StatusOK, env.call(t, "GET", "/api/users/u1/ability", user, nil, nil))
}
