// Package progression computes points, levels, streaks and badge
// eligibility, and applies them to stored students.
package progression

import (
	"time"

	"github.com/abhisek/speakquest/internal/store"
)

// PointsPerLevel is the experience needed per level.
const PointsPerLevel = 100

// Proficiency labels.
const (
	ProficiencyBeginner     = "beginner"
	ProficiencyIntermediate = "intermediate"
	ProficiencyAdvanced     = "advanced"
)

// LevelFor returns the level for an experience total: floor(xp/100)+1.
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/PointsPerLevel + 1
}

// ProficiencyFor maps a level to its proficiency label.
func ProficiencyFor(level int) string {
	switch {
	case level >= 6:
		return ProficiencyAdvanced
	case level >= 3:
		return ProficiencyIntermediate
	default:
		return ProficiencyBeginner
	}
}

// ApplyCompletionReward adds points to both totals and raises the level
// when the new experience total warrants it. The level never decreases.
func ApplyCompletionReward(s store.Student, points int, _ string) store.Student {
	s.TotalPoints += points
	s.ExperiencePoints += points
	if lvl := LevelFor(s.ExperiencePoints); lvl > s.CurrentLevel {
		s.CurrentLevel = lvl
	}
	return s
}

// UpdateStreak advances the daily streak. Same calendar day leaves it
// unchanged, the previous day extends it, anything else restarts at 1.
// Calendar days are taken in now's location.
func UpdateStreak(s store.Student, now time.Time) store.Student {
	today := civilDay(now, now.Location())
	if s.LastActivityAt != nil {
		last := civilDay(*s.LastActivityAt, now.Location())
		switch {
		case last.Equal(today):
			if s.StreakDays < 1 {
				s.StreakDays = 1
			}
			s.LastActivityAt = &now
			return s
		case last.AddDate(0, 0, 1).Equal(today):
			s.StreakDays++
			s.LastActivityAt = &now
			return s
		}
	}
	s.StreakDays = 1
	s.LastActivityAt = &now
	return s
}

func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
