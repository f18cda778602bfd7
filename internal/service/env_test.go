package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/events"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/repository"
)

type recordingBus struct {
	mu   sync.Mutex
	sent []events.Notification
}

func (b *recordingBus) Publish(_ context.Context, n events.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, n)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, func(events.Notification)) error { return nil }
func (b *recordingBus) Close() error                                               { return nil }

func (b *recordingBus) kinds() []events.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Kind, 0, len(b.sent))
	for _, n := range b.sent {
		out = append(out, n.Kind)
	}
	return out
}

type testEnv struct {
	db        *database.DB
	cfg       *config.Config
	bus       *recordingBus
	ratings   *repository.RatingRepository
	questions *repository.QuestionRepository
	history   *repository.HistoryRepository
	accounts  *repository.AccountRepository
	missions  *repository.MissionRepository

	ratingSvc  *RatingService
	selector   *QuestionSelector
	missionSvc *MissionService
	answerSvc  *AnswerService
	rewardSvc  *RewardService
	catalogSvc *CatalogService
	accountSvc *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "codequest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxAttempts = 10
	log := logger.NewNop()

	env := &testEnv{
		db:        db,
		cfg:       cfg,
		bus:       &recordingBus{},
		ratings:   repository.NewRatingRepository(db),
		questions: repository.NewQuestionRepository(db),
		history:   repository.NewHistoryRepository(db),
		accounts:  repository.NewAccountRepository(db),
		missions:  repository.NewMissionRepository(db),
	}
	env.ratingSvc = NewRatingService(env.ratings, log)
	env.selector = NewQuestionSelector(env.ratings, env.questions, env.history, cfg.Progression, log)
	env.missionSvc = NewMissionService(db, env.missions, env.accounts, models.DefaultMissionCatalog(), time.UTC, env.bus, cfg.Retry, log)
	env.answerSvc = NewAnswerService(db, env.questions, env.ratings, env.history, env.accounts, env.missionSvc, cfg.Progression, cfg.Retry, log)
	env.rewardSvc = NewRewardService(db, env.missions, env.accounts, env.bus, cfg.Retry, log)
	env.catalogSvc = NewCatalogService(db, env.questions, log)
	env.accountSvc = NewAccountService(env.accounts, log)
	return env
}

// setClock pins every time-dependent service to now
func (e *testEnv) setClock(now time.Time) {
	clock := func() time.Time { return now }
	e.missionSvc.now = clock
	e.answerSvc.now = clock
	e.rewardSvc.now = clock
}

func (e *testEnv) addQuestions(t *testing.T, qs ...models.Question) {
	t.Helper()
	for i := range qs {
		_, err := e.questions.Upsert(context.Background(), nil, &qs[i])
		require.NoError(t, err)
	}
}

// completedMission generates the daily set and drives the first mission to COMPLETED
func (e *testEnv) completedMission(t *testing.T, userID string) models.Mission {
	t.Helper()
	ctx := context.Background()
	set, err := e.missionSvc.GenerateDaily(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, set)

	m := set[0]
	ev := eventFor(t, m.Objective, m.Target)
	updated, err := e.missionSvc.UpdateProgress(ctx, userID, ev)
	require.NoError(t, err)
	for _, u := range updated {
		if u.ID == m.ID {
			require.Equal(t, models.StatusCompleted, u.Status)
			return u
		}
	}
	t.Fatalf("mission %s was not updated", m.ID)
	return models.Mission{}
}

func eventFor(t *testing.T, objective models.ObjectiveKind, amount int) models.Event {
	t.Helper()
	for _, k := range []models.EventKind{
		models.EventQuestionAnswered, models.EventXPGained, models.EventLessonCompleted,
		models.EventMistakeFixed, models.EventStreakUpdated,
	} {
		if o, _ := k.Objective(); o == objective {
			return models.Event{Kind: k, Amount: amount}
		}
	}
	t.Fatalf("no event for objective %s", objective)
	return models.Event{}
}
