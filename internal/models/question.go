package models

import (
	"strings"
	"time"
)

// Tier is the authored difficulty tier of a question
type Tier int

const (
	TierEasy   Tier = 1
	TierMedium Tier = 2
	TierHard   Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierEasy:
		return "EASY"
	case TierMedium:
		return "MEDIUM"
	case TierHard:
		return "HARD"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the authored tiers
func (t Tier) Valid() bool {
	return t >= TierEasy && t <= TierHard
}

// TierForDifficulty derives a tier from a difficulty rating
func TierForDifficulty(difficulty float64) Tier {
	switch {
	case difficulty < 1100:
		return TierEasy
	case difficulty < 1600:
		return TierMedium
	default:
		return TierHard
	}
}

// Question is a catalog entry. It is read-only to the progression core.
type Question struct {
	ID         int64    `json:"id"`
	SkillID    string   `json:"skillId"`
	Difficulty float64  `json:"difficulty"`
	Tier       Tier     `json:"tier,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
	Answer     string   `json:"-"`
}

// EffectiveTier returns the authored tier, or one derived from difficulty
func (q *Question) EffectiveTier() Tier {
	if q.Tier.Valid() {
		return q.Tier
	}
	return TierForDifficulty(q.Difficulty)
}

// JoinTags encodes tags for storage
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

// SplitTags decodes stored tags
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// QuestionHistory is a user's cumulative record on one question
type QuestionHistory struct {
	UserID      string    `json:"userId"`
	QuestionID  int64     `json:"questionId"`
	Attempts    int       `json:"attempts"`
	Correct     int       `json:"correct"`
	LastCorrect bool      `json:"lastCorrect"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// Mastery is the success rate in [0,1]; zero when never attempted
func (h QuestionHistory) Mastery() float64 {
	if h.Attempts == 0 {
		return 0
	}
	return float64(h.Correct) / float64(h.Attempts)
}

// Record applies one attempt and reports whether it fixed a previous mistake
func (h *QuestionHistory) Record(correct bool, at time.Time) (mistakeFixed bool) {
	mistakeFixed = correct && h.Attempts > 0 && !h.LastCorrect
	h.Attempts++
	if correct {
		h.Correct++
	}
	h.LastCorrect = correct
	h.LastSeenAt = at
	return mistakeFixed
}

// SeenQuestion pairs a history row with the tags of its question
type SeenQuestion struct {
	QuestionHistory
	Tags []string
}
