package models

import "time"

// Account holds a user's currency totals and current day streak
type Account struct {
	UserID    string    `json:"userId"`
	XP        int64     `json:"xp"`
	Gems      int64     `json:"gems"`
	Hearts    int64     `json:"hearts"`
	DayStreak int       `json:"dayStreak"`
	UpdatedAt time.Time `json:"updatedAt"`
}
