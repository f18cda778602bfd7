package models

import (
	"math"
	"time"
)

// Rating scale shared by users and questions
const (
	DefaultRating = 1200.0
	MinRating     = 400.0
	MaxRating     = 2800.0

	// DefaultSkill is used when a caller does not name a skill
	DefaultSkill = "general"
)

// SkillRating is a user's estimated ability in one skill
type SkillRating struct {
	UserID        string    `json:"userId"`
	SkillID       string    `json:"skillId"`
	Rating        float64   `json:"eloRating"`
	AnsweredCount int       `json:"answeredCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AbilitySummary aggregates a user's ratings across skills
type AbilitySummary struct {
	UserID   string        `json:"userId"`
	Skills   []SkillRating `json:"skills"`
	Count    int           `json:"skillCount"`
	Average  float64       `json:"averageRating"`
	Answered int           `json:"answered"`
}

// ClampRating keeps r inside [MinRating, MaxRating]
func ClampRating(r float64) float64 {
	return math.Max(MinRating, math.Min(MaxRating, r))
}

// ValidRating reports whether r may be stored as-is
func ValidRating(r float64) bool {
	return !math.IsNaN(r) && r >= MinRating && r <= MaxRating
}

// NormalizeSkill maps an empty skill id to DefaultSkill
func NormalizeSkill(skillID string) string {
	if skillID == "" {
		return DefaultSkill
	}
	return skillID
}

// Summarize builds the summary statistics for a set of ratings
func Summarize(userID string, ratings []SkillRating) AbilitySummary {
	s := AbilitySummary{UserID: userID, Skills: ratings, Count: len(ratings)}
	if s.Skills == nil {
		s.Skills = []SkillRating{}
	}
	if len(ratings) == 0 {
		s.Average = DefaultRating
		return s
	}
	var total float64
	for _, r := range ratings {
		total += r.Rating
		s.Answered += r.AnsweredCount
	}
	s.Average = math.Round(total/float64(len(ratings))*100) / 100
	return s
}
