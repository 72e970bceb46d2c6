// Package analytics derives per-skill trends and weaknesses from a
// student's stored history.
package analytics

import "time"

// Skill areas analyzed, in report order before severity sorting.
const (
	SkillFluency       = "fluency"
	SkillPronunciation = "pronunciation"
	SkillConfidence    = "confidence"
	SkillVocabulary    = "vocabulary"
)

// Skills is the fixed set of analyzed skill areas.
var Skills = []string{SkillFluency, SkillPronunciation, SkillConfidence, SkillVocabulary}

// Trend labels.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Weakness levels, most severe first.
const (
	WeaknessCritical = "critical"
	WeaknessModerate = "moderate"
	WeaknessMinor    = "minor"
	WeaknessNone     = "none"
)

// Overall proficiency tiers.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// VocabularyGapBasic is reported when a recent conversation scored low
// on vocabulary.
const VocabularyGapBasic = "basic conversational vocabulary"

// SkillAnalysis is the computed state of one skill area.
type SkillAnalysis struct {
	SkillArea           string   `json:"skillArea"`
	CurrentScore        float64  `json:"currentScore"`
	AverageScore        float64  `json:"averageScore"`
	Trend               string   `json:"trend"`
	ActivitiesCompleted int      `json:"activitiesCompleted"`
	WeaknessLevel       string   `json:"weaknessLevel"`
	Recommendations     []string `json:"recommendations"`
}

// WeaknessAnalysis aggregates all skill analyses for a student. It is
// recomputed on every request and never stored.
type WeaknessAnalysis struct {
	StudentID         string          `json:"studentId"`
	Skills            []SkillAnalysis `json:"skills"`
	PrimaryWeakness   string          `json:"primaryWeakness,omitempty"`
	SecondaryWeakness string          `json:"secondaryWeakness,omitempty"`
	OverallLevel      string          `json:"overallLevel"`
	GrammarIssues     []string        `json:"grammarIssues"`
	VocabularyGaps    []string        `json:"vocabularyGaps"`
	FocusAreas        []string        `json:"focusAreas"`
	AnalyzedAt        time.Time       `json:"analyzedAt"`
}

// Skill returns the analysis for area.
func (w *WeaknessAnalysis) Skill(area string) (SkillAnalysis, bool) {
	for _, s := range w.Skills {
		if s.SkillArea == area {
			return s, true
		}
	}
	return SkillAnalysis{}, false
}

// severityRank orders weakness levels for sorting.
func severityRank(level string) int {
	switch level {
	case WeaknessCritical:
		return 0
	case WeaknessModerate:
		return 1
	case WeaknessMinor:
		return 2
	default:
		return 3
	}
}
