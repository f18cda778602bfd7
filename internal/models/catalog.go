package models

import (
	"fmt"
	"hash/fnv"
	"time"
)

// MissionTemplate describes one slot of a generated mission set
type MissionTemplate struct {
	Slot      int           `yaml:"slot"`
	Objective ObjectiveKind `yaml:"objective"`
	Targets   []int         `yaml:"targets"`
	Reward    Reward        `yaml:"reward"`
}

// TargetFor picks a target variant for the user and period.
// The same inputs always produce the same target.
func (t MissionTemplate) TargetFor(userID, periodKey string) int {
	if len(t.Targets) == 1 {
		return t.Targets[0]
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%d", userID, periodKey, t.Slot)
	return t.Targets[int(h.Sum32()%uint32(len(t.Targets)))]
}

// MissionCatalog holds the templates generated for each periodic mission type
type MissionCatalog map[MissionType][]MissionTemplate

// DefaultMissionCatalog returns the built-in daily and weekly templates
func DefaultMissionCatalog() MissionCatalog {
	return MissionCatalog{
		MissionDaily: {
			{Slot: 0, Objective: ObjectiveAnswerQuestions, Targets: []int{5, 10, 15}, Reward: Reward{XP: 20, Gems: 5}},
			{Slot: 1, Objective: ObjectiveEarnXP, Targets: []int{30, 50, 80}, Reward: Reward{XP: 15, Gems: 5}},
			{Slot: 2, Objective: ObjectiveFixMistakes, Targets: []int{2, 3}, Reward: Reward{XP: 25, Gems: 5, Hearts: 1}},
		},
		MissionWeekly: {
			{Slot: 0, Objective: ObjectiveCompleteLessons, Targets: []int{3, 5}, Reward: Reward{XP: 100, Gems: 30}},
			{Slot: 1, Objective: ObjectiveEarnXP, Targets: []int{300, 500}, Reward: Reward{XP: 80, Gems: 25}},
			{Slot: 2, Objective: ObjectiveExtendStreak, Targets: []int{5, 7}, Reward: Reward{XP: 120, Gems: 40, Hearts: 2}},
		},
	}
}

// Validate checks every template has a known objective and positive targets
func (c MissionCatalog) Validate() error {
	for typ, templates := range c {
		if typ != MissionDaily && typ != MissionWeekly {
			return fmt.Errorf("catalog: type %s is not generated", typ)
		}
		slots := make(map[int]bool, len(templates))
		for _, t := range templates {
			if _, err := ParseObjectiveKind(string(t.Objective)); err != nil {
				return fmt.Errorf("catalog %s slot %d: %w", typ, t.Slot, err)
			}
			if slots[t.Slot] {
				return fmt.Errorf("catalog %s: duplicate slot %d", typ, t.Slot)
			}
			slots[t.Slot] = true
			if len(t.Targets) == 0 {
				return fmt.Errorf("catalog %s slot %d: no targets", typ, t.Slot)
			}
			for _, target := range t.Targets {
				if target <= 0 {
					return fmt.Errorf("catalog %s slot %d: target must be positive", typ, t.Slot)
				}
			}
		}
	}
	return nil
}

// Period is the time window a periodic mission set belongs to
type Period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// PeriodFor returns the day or ISO week containing now, in loc.
// Start and End are returned in UTC.
func PeriodFor(typ MissionType, now time.Time, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch typ {
	case MissionDaily:
		return Period{
			Key:   midnight.Format("2006-01-02"),
			Start: midnight.UTC(),
			End:   midnight.AddDate(0, 0, 1).UTC(),
		}, nil
	case MissionWeekly:
		// ISO weeks start on Monday
		offset := (int(midnight.Weekday()) + 6) % 7
		monday := midnight.AddDate(0, 0, -offset)
		year, week := monday.ISOWeek()
		return Period{
			Key:   fmt.Sprintf("%04d-W%02d", year, week),
			Start: monday.UTC(),
			End:   monday.AddDate(0, 0, 7).UTC(),
		}, nil
	}
	return Period{}, fmt.Errorf("mission type %s has no period", typ)
}
