package service

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"codequest/internal/apperr"
	"codequest/internal/config"
	"codequest/internal/logger"
	"codequest/internal/models"
	"codequest/internal/observability"
	"codequest/internal/repository"
)

// QuestionSelector picks the next question for a user in a skill
type QuestionSelector struct {
	ratings   *repository.RatingRepository
	questions *repository.QuestionRepository
	history   *repository.HistoryRepository
	cfg       config.ProgressionConfig
	log       *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewQuestionSelector creates a new question selector
func NewQuestionSelector(
	ratings *repository.RatingRepository,
	questions *repository.QuestionRepository,
	history *repository.HistoryRepository,
	cfg config.ProgressionConfig,
	log *logger.Logger,
) *QuestionSelector {
	seed := uint64(time.Now().UnixNano())
	return &QuestionSelector{
		ratings:   ratings,
		questions: questions,
		history:   history,
		cfg:       cfg,
		log:       log.With("service", "QuestionSelector"),
		rng:       rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// WithRand replaces the tie-break source, for deterministic tests
func (s *QuestionSelector) WithRand(r *rand.Rand) *QuestionSelector {
	s.mu.Lock()
	s.rng = r
	s.mu.Unlock()
	return s
}

// Next returns the next question, or nil when the skill has no questions at all
func (s *QuestionSelector) Next(ctx context.Context, userID, skillID string) (question *models.Question, err error) {
	skillID = models.NormalizeSkill(skillID)
	ctx, span := observability.StartSpan(ctx, "selector.next", observability.AttrUserID(userID), observability.AttrSkillID(skillID))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(userID) == "" {
		return nil, apperr.InvalidInput("user id is required")
	}

	rating, err := s.ratings.Get(ctx, userID, skillID)
	if err != nil {
		return nil, err
	}

	pool, err := s.questions.ListBySkill(ctx, skillID, rating.Rating-s.cfg.MaxBand, rating.Rating+s.cfg.MaxBand)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		pool, err = s.questions.ListBySkill(ctx, skillID, -math.MaxFloat32, math.MaxFloat32)
		if err != nil {
			return nil, err
		}
	}
	if len(pool) == 0 {
		s.log.Debug("no questions available", "user_id", userID, "skill_id", skillID)
		return nil, nil
	}

	seen, err := s.history.ListSeenForSkill(ctx, userID, skillID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	picked := selectQuestion(pool, seen, rating.Rating, s.cfg, s.rng)
	s.mu.Unlock()
	return picked, nil
}

// selectQuestion applies band widening, mastery exclusion and ranking to pool
func selectQuestion(pool []models.Question, seen []models.SeenQuestion, rating float64, cfg config.ProgressionConfig, rng *rand.Rand) *models.Question {
	if len(pool) == 0 {
		return nil
	}
	history := lo.KeyBy(seen, func(h models.SeenQuestion) int64 { return h.QuestionID })

	candidates := bandCandidates(pool, history, rating, cfg)
	best := rankCandidates(candidates, history, weakTags(seen, cfg.WeakThreshold))
	picked := best[rng.IntN(len(best))]
	return &picked
}

// bandCandidates widens the band around rating until it holds an unmastered
// question. When every question is mastered it falls back to the first non-empty band.
func bandCandidates(pool []models.Question, history map[int64]models.SeenQuestion, rating float64, cfg config.ProgressionConfig) []models.Question {
	mastered := func(q models.Question) bool {
		h, ok := history[q.ID]
		return ok && h.Mastery() >= cfg.MasteredThreshold
	}
	farthest := lo.Max(lo.Map(pool, func(q models.Question, _ int) float64 {
		return math.Abs(q.Difficulty - rating)
	}))

	step := cfg.BandStep
	if step <= 0 {
		step = cfg.BandWidth
	}

	var fallback []models.Question
	for width := cfg.BandWidth; ; width += step {
		inBand := lo.Filter(pool, func(q models.Question, _ int) bool {
			return math.Abs(q.Difficulty-rating) <= width
		})
		if open := lo.Reject(inBand, func(q models.Question, _ int) bool { return mastered(q) }); len(open) > 0 {
			return open
		}
		if fallback == nil && len(inBand) > 0 {
			fallback = inBand
		}
		if width >= farthest {
			break
		}
	}
	return fallback
}

// rankCandidates returns the best-ranked group: unseen questions (weak-topic
// ones first), otherwise the seen questions with the lowest mastery
func rankCandidates(candidates []models.Question, history map[int64]models.SeenQuestion, weak map[string]bool) []models.Question {
	unseen := lo.Filter(candidates, func(q models.Question, _ int) bool {
		_, ok := history[q.ID]
		return !ok
	})
	if len(unseen) > 0 {
		boosted := lo.Filter(unseen, func(q models.Question, _ int) bool {
			return lo.SomeBy(q.Tags, func(tag string) bool { return weak[tag] })
		})
		if len(boosted) > 0 {
			return boosted
		}
		return unseen
	}

	lowest := lo.Min(lo.Map(candidates, func(q models.Question, _ int) float64 {
		return history[q.ID].Mastery()
	}))
	return lo.Filter(candidates, func(q models.Question, _ int) bool {
		return history[q.ID].Mastery() == lowest
	})
}

// weakTags collects the tags of seen questions whose mastery is below threshold
func weakTags(seen []models.SeenQuestion, threshold float64) map[string]bool {
	weak := map[string]bool{}
	for _, h := range seen {
		if h.Mastery() < threshold {
			for _, tag := range h.Tags {
				weak[tag] = true
			}
		}
	}
	return weak
}
