package practice

import (
	"encoding/json"
	"errors"

	"github.com/abhisek/speakquest/internal/analytics"
)

// ErrIncompleteContent is returned when a model reply parses but does
// not carry enough usable items.
var ErrIncompleteContent = errors.New("generated content is incomplete")

// GeneratedPractice is one ready-to-play practice item.
type GeneratedPractice struct {
	ID               string
	Title            string
	Kind             string
	SkillArea        string
	Difficulty       string
	PointsReward     int
	EstimatedMinutes int
	Content          Content
	Reasoning        string
	TargetWeaknesses []string
}

type practiceJSON struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Kind             string          `json:"kind"`
	SkillArea        string          `json:"skillArea"`
	Difficulty       string          `json:"difficulty"`
	PointsReward     int             `json:"pointsReward"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
	Content          json.RawMessage `json:"content"`
	Reasoning        string          `json:"reasoning"`
	TargetWeaknesses []string        `json:"targetWeaknesses"`
}

func (p GeneratedPractice) MarshalJSON() ([]byte, error) {
	content := json.RawMessage("null")
	if p.Content != nil {
		var err error
		if content, err = EncodeContent(p.Content); err != nil {
			return nil, err
		}
	}
	return json.Marshal(practiceJSON{
		ID:               p.ID,
		Title:            p.Title,
		Kind:             p.Kind,
		SkillArea:        p.SkillArea,
		Difficulty:       p.Difficulty,
		PointsReward:     p.PointsReward,
		EstimatedMinutes: p.EstimatedMinutes,
		Content:          content,
		Reasoning:        p.Reasoning,
		TargetWeaknesses: p.TargetWeaknesses,
	})
}

func (p *GeneratedPractice) UnmarshalJSON(b []byte) error {
	var j practiceJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	content, err := DecodeContent(j.Content)
	if err != nil {
		return err
	}
	*p = GeneratedPractice{
		ID:               j.ID,
		Title:            j.Title,
		Kind:             j.Kind,
		SkillArea:        j.SkillArea,
		Difficulty:       j.Difficulty,
		PointsReward:     j.PointsReward,
		EstimatedMinutes: j.EstimatedMinutes,
		Content:          content,
		Reasoning:        j.Reasoning,
		TargetWeaknesses: j.TargetWeaknesses,
	}
	return nil
}

// DifficultyFor picks a practice difficulty from the overall level and
// the skill's weakness level.
func DifficultyFor(overall, weakness string) string {
	switch {
	case weakness == analytics.WeaknessCritical:
		return analytics.LevelBeginner
	case weakness == analytics.WeaknessModerate && overall == analytics.LevelAdvanced:
		return analytics.LevelIntermediate
	}
	switch overall {
	case analytics.LevelBeginner, analytics.LevelIntermediate, analytics.LevelAdvanced:
		return overall
	default:
		return analytics.LevelBeginner
	}
}

// downgrade lowers a difficulty one notch.
func downgrade(difficulty string) string {
	if difficulty == analytics.LevelAdvanced {
		return analytics.LevelIntermediate
	}
	return analytics.LevelBeginner
}

// Point budgets per difficulty.
const (
	pointsBeginner     = 30
	pointsIntermediate = 50
	pointsAdvanced     = 80

	// quizBaseQuestions is the question count covered by the base budget.
	quizBaseQuestions      = 4
	pointsPerExtraQuestion = 10
)

// PointsFor is the reward budget for a practice.
func PointsFor(difficulty string) int {
	switch difficulty {
	case analytics.LevelAdvanced:
		return pointsAdvanced
	case analytics.LevelIntermediate:
		return pointsIntermediate
	default:
		return pointsBeginner
	}
}

// quizPoints adds the per-question bonus beyond the base count.
func quizPoints(difficulty string, questions int) int {
	return PointsFor(difficulty) + max(0, questions-quizBaseQuestions)*pointsPerExtraQuestion
}
