package models

import (
	"strings"
	"time"

	"codequest/internal/apperr"
)

// MissionType groups missions by their period
type MissionType string

const (
	MissionDaily  MissionType = "DAILY"
	MissionWeekly MissionType = "WEEKLY"
	MissionEvent  MissionType = "EVENT"
)

// ParseMissionType accepts any letter case
func ParseMissionType(s string) (MissionType, error) {
	switch t := MissionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case MissionDaily, MissionWeekly, MissionEvent:
		return t, nil
	}
	return "", apperr.InvalidInput("unknown mission type %q", s)
}

// MissionStatus is the lifecycle state of a mission
type MissionStatus string

const (
	StatusPending   MissionStatus = "PENDING"
	StatusCompleted MissionStatus = "COMPLETED"
	StatusClaimed   MissionStatus = "CLAIMED"
	StatusExpired   MissionStatus = "EXPIRED"
)

// CanTransition encodes the lifecycle:
// PENDING -> COMPLETED -> CLAIMED, and PENDING|COMPLETED -> EXPIRED.
func (s MissionStatus) CanTransition(to MissionStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusCompleted || to == StatusExpired
	case StatusCompleted:
		return to == StatusClaimed || to == StatusExpired
	default:
		return false
	}
}

// ObjectiveKind is the closed set of things a mission can count
type ObjectiveKind string

const (
	ObjectiveAnswerQuestions ObjectiveKind = "ANSWER_QUESTIONS"
	ObjectiveEarnXP          ObjectiveKind = "EARN_XP"
	ObjectiveCompleteLessons ObjectiveKind = "COMPLETE_LESSONS"
	ObjectiveFixMistakes     ObjectiveKind = "FIX_MISTAKES"
	ObjectiveExtendStreak    ObjectiveKind = "EXTEND_STREAK"
)

// ObjectiveKinds lists every objective kind
var ObjectiveKinds = []ObjectiveKind{
	ObjectiveAnswerQuestions,
	ObjectiveEarnXP,
	ObjectiveCompleteLessons,
	ObjectiveFixMistakes,
	ObjectiveExtendStreak,
}

// ParseObjectiveKind accepts any letter case and rejects unknown kinds
func ParseObjectiveKind(s string) (ObjectiveKind, error) {
	k := ObjectiveKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ObjectiveKinds {
		if k == known {
			return k, nil
		}
	}
	return "", apperr.InvalidInput("unknown objective kind %q", s)
}

// EventKind is the closed set of gameplay events that drive mission progress
type EventKind string

const (
	EventQuestionAnswered EventKind = "QUESTION_ANSWERED"
	EventXPGained         EventKind = "XP_GAINED"
	EventLessonCompleted  EventKind = "LESSON_COMPLETED"
	EventMistakeFixed     EventKind = "MISTAKE_FIXED"
	EventStreakUpdated    EventKind = "STREAK_UPDATED"
)

// Objective returns the objective kind an event advances
func (k EventKind) Objective() (ObjectiveKind, bool) {
	switch k {
	case EventQuestionAnswered:
		return ObjectiveAnswerQuestions, true
	case EventXPGained:
		return ObjectiveEarnXP, true
	case EventLessonCompleted:
		return ObjectiveCompleteLessons, true
	case EventMistakeFixed:
		return ObjectiveFixMistakes, true
	case EventStreakUpdated:
		return ObjectiveExtendStreak, true
	}
	return "", false
}

// ParseEventKind accepts any letter case and rejects kinds no objective counts
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := k.Objective(); !ok {
		return "", apperr.InvalidInput("unknown event kind %q", s)
	}
	return k, nil
}

// Event is a gameplay occurrence with an event-specific magnitude
type Event struct {
	Kind   EventKind `json:"kind"`
	Amount int       `json:"amount"`
}

// Validate rejects unknown kinds and non-positive amounts
func (e Event) Validate() error {
	if _, ok := e.Kind.Objective(); !ok {
		return apperr.InvalidInput("unknown event kind %q", string(e.Kind))
	}
	if e.Amount <= 0 {
		return apperr.InvalidInput("event amount must be positive, got %d", e.Amount)
	}
	return nil
}

// Reward is paid out once when a completed mission is claimed
type Reward struct {
	MissionID string `json:"missionId,omitempty" yaml:"-"`
	XP        int    `json:"xp" yaml:"xp"`
	Gems      int    `json:"gems" yaml:"gems"`
	Hearts    int    `json:"hearts" yaml:"hearts"`
}

// Empty reports whether the reward pays nothing
func (r Reward) Empty() bool {
	return r.XP == 0 && r.Gems == 0 && r.Hearts == 0
}

// Mission is a time-boxed countable goal
type Mission struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Type      MissionType   `json:"type"`
	Slot      int           `json:"slot"`
	PeriodKey string        `json:"periodKey"`
	Objective ObjectiveKind `json:"objective"`
	Target    int           `json:"target"`
	Progress  int           `json:"progress"`
	Status    MissionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	ClaimedAt *time.Time    `json:"claimedAt,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Reward    *Reward       `json:"reward,omitempty"`
}

// Expired reports whether the expiry time has passed at now
func (m *Mission) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// IsActive reports whether the mission is open (PENDING or COMPLETED) and unexpired
func (m *Mission) IsActive(now time.Time) bool {
	return (m.Status == StatusPending || m.Status == StatusCompleted) && !m.Expired(now)
}

// ApplyProgress advances a pending mission by amount, clamped to the target.
// It reports whether the mission changed.
func (m *Mission) ApplyProgress(amount int) bool {
	if m.Status != StatusPending || amount <= 0 {
		return false
	}
	// compare against the remaining gap so huge amounts cannot overflow
	next := m.Target
	if remaining := m.Target - m.Progress; amount < remaining {
		next = m.Progress + amount
	}
	if next <= m.Progress {
		return false
	}
	if next == m.Target && !m.Status.CanTransition(StatusCompleted) {
		return false
	}
	m.Progress = next
	if m.Progress == m.Target {
		m.Status = StatusCompleted
	}
	return true
}
