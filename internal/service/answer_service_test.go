package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codequest/internal/apperr"
	"codequest/internal/models"
)

type recordingProgress struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func (r *recordingProgress) RecordEvents(_ context.Context, userID string, evs ...models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string][]models.Event{}
	}
	r.events[userID] = append(r.events[userID], evs...)
	return nil
}

func TestAnswerServiceSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestions(t,
		models.Question{ID: 1, SkillID: "loops", Difficulty: 1200, Tier: models.TierMedium},
		models.Question{ID: 2, SkillID: "loops", Difficulty: 1500},
	)

	t.Run("correct answer at even odds", func(t *testing.T) {
		res, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u1", QuestionID: 1, IsCorrect: true, TimeSpent: 20})
		require.NoError(t, err)

		assert.InDelta(t, 1212.0, res.NewRating, 1e-9)
		assert.Equal(t, models.DefaultRating, res.PreviousRating)
		assert.Equal(t, 1200.0, res.QuestionDifficulty)
		assert.Equal(t, 30, res.XPEarned, "base 20 plus the fast bonus")
		assert.Equal(t, 1.0, res.Mastery)

		rating, err := env.ratings.Get(ctx, "u1", "loops")
		require.NoError(t, err)
		assert.InDelta(t, 1212.0, rating.Rating, 1e-9)
		assert.Equal(t, 1, rating.AnsweredCount)

		account, err := env.accountSvc.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(30), account.XP)
	})

	t.Run("streak multiplier applies", func(t *testing.T) {
		_, err := env.accountSvc.SetStreak(ctx, "u2", 10)
		require.NoError(t, err)

		res, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u2", QuestionID: 1, IsCorrect: false, TimeSpent: 100})
		require.NoError(t, err)
		assert.Equal(t, 30, res.XPEarned)
		assert.Less(t, res.NewRating, models.DefaultRating)
	})

	t.Run("history accumulates and detects fixed mistakes", func(t *testing.T) {
		_, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u3", QuestionID: 2, IsCorrect: false, TimeSpent: 40})
		require.NoError(t, err)
		res, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u3", QuestionID: 2, IsCorrect: true, TimeSpent: 40})
		require.NoError(t, err)
		assert.True(t, res.MistakeFixed)
		assert.Equal(t, 0.5, res.Mastery)

		h, err := env.history.Get(ctx, "u3", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, h.Attempts)
		assert.Equal(t, 1, h.Correct)
		assert.True(t, h.LastCorrect)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u1", QuestionID: 404, IsCorrect: true})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("validation happens before any change", func(t *testing.T) {
		tests := []AnswerInput{
			{UserID: "", QuestionID: 1},
			{UserID: "u9", QuestionID: 0},
			{UserID: "u9", QuestionID: 1, TimeSpent: -1},
		}
		for _, in := range tests {
			_, err := env.answerSvc.Submit(ctx, in)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		}
		ratings, err := env.ratings.ListForUser(ctx, "u9")
		require.NoError(t, err)
		assert.Empty(t, ratings)
	})
}

func TestAnswerServiceDerivesMissionEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestions(t, models.Question{ID: 7, SkillID: "general", Difficulty: 1000})

	progress := &recordingProgress{}
	env.answerSvc.progress = progress

	_, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u1", QuestionID: 7, IsCorrect: false, TimeSpent: 100})
	require.NoError(t, err)
	_, err = env.answerSvc.Submit(ctx, AnswerInput{UserID: "u1", QuestionID: 7, IsCorrect: true, TimeSpent: 10})
	require.NoError(t, err)

	got := progress.events["u1"]
	assert.Equal(t, []models.Event{
		{Kind: models.EventQuestionAnswered, Amount: 1},
		{Kind: models.EventXPGained, Amount: 15},
		{Kind: models.EventQuestionAnswered, Amount: 1},
		{Kind: models.EventXPGained, Amount: 25},
		{Kind: models.EventMistakeFixed, Amount: 1},
	}, got)
}

func TestAnswerServiceFeedsMissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	env.setClock(now)
	env.addQuestions(t, models.Question{ID: 1, SkillID: "general", Difficulty: 1200})

	set, err := env.missionSvc.GenerateDaily(ctx, "u1")
	require.NoError(t, err)

	_, err = env.answerSvc.Submit(ctx, AnswerInput{UserID: "u1", QuestionID: 1, IsCorrect: true, TimeSpent: 100})
	require.NoError(t, err)

	for _, m := range set {
		got, err := env.missions.GetByID(ctx, nil, m.ID)
		require.NoError(t, err)
		switch m.Objective {
		case models.ObjectiveAnswerQuestions:
			assert.Equal(t, 1, got.Progress)
		case models.ObjectiveEarnXP:
			assert.Equal(t, 20, got.Progress)
		default:
			assert.Equal(t, 0, got.Progress)
		}
	}
}

func TestAnswerServiceConcurrentSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestions(t, models.Question{ID: 1, SkillID: "loops", Difficulty: 1200})
	env.answerSvc.progress = nil

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.answerSvc.Submit(ctx, AnswerInput{UserID: "u1", QuestionID: 1, IsCorrect: true, TimeSpent: 100})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rating, err := env.ratings.Get(ctx, "u1", "loops")
	require.NoError(t, err)
	assert.Equal(t, n, rating.AnsweredCount)

	h, err := env.history.Get(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, n, h.Attempts)

	// Replaying the same sequence serially must give the same rating
	want := models.DefaultRating
	est := NewEstimator(env.cfg.Progression.KFactor)
	for i := 0; i < n; i++ {
		want = est.Update(want, 1200, true)
	}
	assert.InDelta(t, want, rating.Rating, 1e-6)

	account, err := env.accountSvc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(n*20), account.XP)
}
