package service

import (
	"math"

	"codequest/internal/models"
)

// DefaultKFactor is the rating adjustment strength used when none is configured
const DefaultKFactor = 24.0

// Estimator is an Elo-style ability estimator. Question difficulty is fixed;
// only the user side moves.
type Estimator struct {
	K float64
}

// NewEstimator returns an estimator with adjustment strength k
func NewEstimator(k float64) Estimator {
	if k <= 0 {
		k = DefaultKFactor
	}
	return Estimator{K: k}
}

// Expected returns the probability that a user rated rUser answers a question
// rated rQuestion correctly
func (e Estimator) Expected(rUser, rQuestion float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rQuestion-rUser)/400))
}

// Update returns the user's new rating after one answer, clamped to the rating scale
func (e Estimator) Update(rUser, rQuestion float64, correct bool) float64 {
	var score float64
	if correct {
		score = 1.0
	}
	next := rUser + e.K*(score-e.Expected(rUser, rQuestion))
	return models.ClampRating(next)
}
