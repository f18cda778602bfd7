package service

import (
	"context"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"codequest/internal/apperr"
	"codequest/internal/config"
	"codequest/internal/database"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/observability"
	"codequest/internal/repository"
)

// ProgressRecorder receives the mission events derived from an answer
type ProgressRecorder interface {
	RecordEvents(ctx context.Context, userID string, evs ...models.Event) error
}

// AnswerInput is one submitted answer. TimeSpent is in seconds.
type AnswerInput struct {
	UserID     string
	QuestionID int64
	IsCorrect  bool
	TimeSpent  float64
}

// AnswerResult is what the caller surfaces after an answer
type AnswerResult struct {
	QuestionID         int64   `json:"questionId"`
	SkillID            string  `json:"skillId"`
	Correct            bool    `json:"isCorrect"`
	XPEarned           int     `json:"xpEarned"`
	PreviousRating     float64 `json:"previousRating"`
	NewRating          float64 `json:"newRating"`
	QuestionDifficulty float64 `json:"questionDifficulty"`
	Mastery            float64 `json:"mastery"`
	MistakeFixed       bool    `json:"mistakeFixed"`
}

// AnswerService processes submitted answers
type AnswerService struct {
	db        *database.DB
	questions *repository.QuestionRepository
	ratings   *repository.RatingRepository
	history   *repository.HistoryRepository
	accounts  *repository.AccountRepository
	progress  ProgressRecorder
	estimator Estimator
	retry     retrier
	log       *logger.Logger
	now       func() time.Time
}

// NewAnswerService creates a new answer service. progress may be nil.
func NewAnswerService(
	db *database.DB,
	questions *repository.QuestionRepository,
	ratings *repository.RatingRepository,
	history *repository.HistoryRepository,
	accounts *repository.AccountRepository,
	progress ProgressRecorder,
	cfg config.ProgressionConfig,
	retryCfg config.RetryConfig,
	log *logger.Logger,
) *AnswerService {
	log = log.With("service", "AnswerService")
	return &AnswerService{
		db:        db,
		questions: questions,
		ratings:   ratings,
		history:   history,
		accounts:  accounts,
		progress:  progress,
		estimator: NewEstimator(cfg.KFactor),
		retry:     newRetrier(db, retryCfg, log),
		log:       log,
		now:       time.Now,
	}
}

// Submit records an answer: rating, history, XP and account credit change
// together in one transaction. Mission events are applied after the commit.
func (s *AnswerService) Submit(ctx context.Context, in AnswerInput) (result *AnswerResult, err error) {
	ctx, span := observability.StartSpan(ctx, "answer.submit",
		observability.AttrUserID(in.UserID),
		attribute.Int64("question.id", in.QuestionID),
		attribute.Bool("answer.correct", in.IsCorrect),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}
	if in.QuestionID <= 0 {
		return nil, apperr.InvalidInput("question id must be positive")
	}
	if in.TimeSpent < 0 || math.IsNaN(in.TimeSpent) {
		return nil, apperr.InvalidInput("time spent must not be negative")
	}

	err = s.retry.do(ctx, "submit_answer", func() error {
		r, err := s.submitOnce(ctx, in)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("answer recorded",
		"user_id", in.UserID,
		"question_id", in.QuestionID,
		"correct", in.IsCorrect,
		"xp", result.XPEarned,
		"rating", result.NewRating,
	)
	s.recordProgress(ctx, in.UserID, result)
	return result, nil
}

func (s *AnswerService) submitOnce(ctx context.Context, in AnswerInput) (*AnswerResult, error) {
	var result *AnswerResult
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		now := s.now().UTC()

		question, err := s.questions.GetByID(ctx, tx, in.QuestionID)
		if err != nil {
			return err
		}
		if question == nil {
			return apperr.NotFound("question %d not found", in.QuestionID)
		}
		skillID := models.NormalizeSkill(question.SkillID)

		rating, err := s.ratings.GetForUpdate(ctx, tx, in.UserID, skillID)
		if err != nil {
			return err
		}
		newRating := s.estimator.Update(rating.Rating, question.Difficulty, in.IsCorrect)
		if err := s.ratings.RecordAnswer(ctx, tx, in.UserID, skillID, newRating); err != nil {
			return err
		}

		hist, err := s.history.GetForUpdate(ctx, tx, in.UserID, question.ID)
		if err != nil {
			return err
		}
		fixed := hist.Record(in.IsCorrect, now)
		if err := s.history.Save(ctx, tx, hist); err != nil {
			return err
		}

		account, err := s.accounts.Get(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		xp := CalculateXP(question.EffectiveTier(), account.DayStreak, in.IsCorrect, in.TimeSpent)
		if err := s.accounts.Credit(ctx, tx, in.UserID, xp, 0, 0); err != nil {
			return err
		}

		result = &AnswerResult{
			QuestionID:         question.ID,
			SkillID:            skillID,
			Correct:            in.IsCorrect,
			XPEarned:           xp,
			PreviousRating:     rating.Rating,
			NewRating:          newRating,
			QuestionDifficulty: question.Difficulty,
			Mastery:            hist.Mastery(),
			MistakeFixed:       fixed,
		}
		return nil
	})
	return result, err
}

// recordProgress feeds mission progress. The answer is already committed, so
// failures are logged only.
func (s *AnswerService) recordProgress(ctx context.Context, userID string, r *AnswerResult) {
	if s.progress == nil {
		return
	}
	evs := []models.Event{{Kind: models.EventQuestionAnswered, Amount: 1}}
	if r.XPEarned > 0 {
		evs = append(evs, models.Event{Kind: models.EventXPGained, Amount: r.XPEarned})
	}
	if r.MistakeFixed {
		evs = append(evs, models.Event{Kind: models.EventMistakeFixed, Amount: 1})
	}
	if err := s.progress.RecordEvents(ctx, userID, evs...); err != nil {
		s.log.Warn("mission progress from answer failed", "user_id", userID, "error", err)
	}
}
