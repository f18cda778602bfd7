package service

import (
	"math"

	"codequest/internal/models"
)

// BaseXP is the XP for a question before multipliers: 10 + tier*5
func BaseXP(tier models.Tier) int {
	return 10 + int(tier)*5
}

// StreakMultiplier is a step function of the current day streak
func StreakMultiplier(dayStreak int) float64 {
	switch {
	case dayStreak >= 14:
		return 2.0
	case dayStreak >= 7:
		return 1.5
	case dayStreak >= 3:
		return 1.25
	default:
		return 1.0
	}
}

// TimeBonus rewards fast correct answers: +10 under 30, else +5 under 60
func TimeBonus(correct bool, timeSpent float64) int {
	if !correct {
		return 0
	}
	switch {
	case timeSpent < 30:
		return 10
	case timeSpent < 60:
		return 5
	default:
		return 0
	}
}

// CalculateXP combines base XP, the streak multiplier and the time bonus.
// The bonus is added after the multiplier.
func CalculateXP(tier models.Tier, dayStreak int, correct bool, timeSpent float64) int {
	xp := int(math.Round(float64(BaseXP(tier)) * StreakMultiplier(dayStreak)))
	return xp + TimeBonus(correct, timeSpent)
}
