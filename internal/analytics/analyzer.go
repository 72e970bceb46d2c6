package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/store"
)

const (
	// historyLimit is the number of recent completions read per skill.
	historyLimit = 10

	// evaluatedSessionLimit is the number of recent evaluated
	// conversations scanned for grammar issues.
	evaluatedSessionLimit = 5

	// vocabularyGapScore is the vocabulary sub-score below which a gap
	// is reported.
	vocabularyGapScore = 70

	maxFocusAreas = 5
)

// Analyzer computes weakness reports from stored history. It only reads.
type Analyzer struct {
	repos store.Repos
	now   func() time.Time
	log   *zap.Logger
}

// NewAnalyzer creates an Analyzer over repos.
func NewAnalyzer(repos store.Repos, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{repos: repos, now: time.Now, log: log.Named("analytics")}
}

// Analyze builds the weakness report for a student. An unknown student
// fails with store.ErrNotFound.
func (a *Analyzer) Analyze(ctx context.Context, studentID string) (*WeaknessAnalysis, error) {
	if _, err := a.repos.Students().Get(ctx, studentID); err != nil {
		return nil, err
	}

	skills := make([]SkillAnalysis, 0, len(Skills))
	for _, area := range Skills {
		sa, err := a.analyzeSkill(ctx, studentID, area)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", area, err)
		}
		skills = append(skills, sa)
	}

	issues, gaps, err := a.conversationFindings(ctx, studentID)
	if err != nil {
		return nil, err
	}

	w := Aggregate(skills, issues, gaps)
	w.StudentID = studentID
	w.AnalyzedAt = a.now()

	a.log.Debug("analysis computed",
		zap.String("student_id", studentID),
		zap.String("primary", w.PrimaryWeakness),
		zap.String("overall", w.OverallLevel),
		zap.Int("grammar_issues", len(w.GrammarIssues)))
	return w, nil
}

func (a *Analyzer) analyzeSkill(ctx context.Context, studentID, area string) (SkillAnalysis, error) {
	recent, err := a.repos.Completions().RecentBySkill(ctx, studentID, area, historyLimit)
	if err != nil {
		return SkillAnalysis{}, err
	}
	total, err := a.repos.Completions().CountBySkill(ctx, studentID, area)
	if err != nil {
		return SkillAnalysis{}, err
	}

	var current float64
	progress, err := a.repos.Skills().Get(ctx, studentID, area)
	switch {
	case err == nil:
		current = progress.CurrentScore
	case !errors.Is(err, store.ErrNotFound):
		return SkillAnalysis{}, err
	}

	scores := make([]float64, len(recent))
	for i, c := range recent {
		scores[i] = c.Score
	}

	avg := current
	if len(scores) > 0 {
		avg = mean(scores)
	}
	trend := Trend(scores)
	prior := total - min(len(scores), TrendWindow)
	level := WeaknessFor(avg, trend, prior)

	return SkillAnalysis{
		SkillArea:           area,
		CurrentScore:        current,
		AverageScore:        avg,
		Trend:               trend,
		ActivitiesCompleted: total,
		WeaknessLevel:       level,
		Recommendations:     RecommendationsFor(area, level),
	}, nil
}

// conversationFindings scans recent evaluated conversations for grammar
// issue categories and vocabulary gaps.
func (a *Analyzer) conversationFindings(ctx context.Context, studentID string) (issues, gaps []string, err error) {
	sessions, err := a.repos.Sessions().RecentEvaluated(ctx, studentID, evaluatedSessionLimit)
	if err != nil {
		return nil, nil, err
	}

	lowVocabulary := false
	for _, s := range sessions {
		var ev gateway.Evaluation
		if err := json.Unmarshal(s.Evaluation, &ev); err != nil {
			a.log.Warn("skipping unreadable evaluation", zap.String("session_id", s.ID), zap.Error(err))
			continue
		}
		for _, m := range ev.GrammarMistakes {
			if cat := ClassifyGrammarIssue(m.Explanation); cat != "" && !slices.Contains(issues, cat) {
				issues = append(issues, cat)
			}
		}
		if ev.VocabularyScore < vocabularyGapScore {
			lowVocabulary = true
		}
	}
	if lowVocabulary {
		gaps = []string{VocabularyGapBasic}
	}
	return issues, gaps, nil
}

// Aggregate orders skill analyses by severity and derives the summary
// fields. skills must contain one entry per analyzed area.
func Aggregate(skills []SkillAnalysis, issues, gaps []string) *WeaknessAnalysis {
	sorted := slices.Clone(skills)
	slices.SortStableFunc(sorted, func(x, y SkillAnalysis) int {
		return severityRank(x.WeaknessLevel) - severityRank(y.WeaknessLevel)
	})

	var critical, moderate []string
	var total float64
	for _, s := range sorted {
		switch s.WeaknessLevel {
		case WeaknessCritical:
			critical = append(critical, s.SkillArea)
		case WeaknessModerate:
			moderate = append(moderate, s.SkillArea)
		}
		total += s.AverageScore
	}

	w := &WeaknessAnalysis{
		Skills:         sorted,
		GrammarIssues:  nonNil(issues),
		VocabularyGaps: nonNil(gaps),
	}
	if len(sorted) > 0 {
		w.OverallLevel = OverallLevel(total / float64(len(sorted)))
	} else {
		w.OverallLevel = LevelBeginner
	}

	switch {
	case len(critical) > 0:
		w.PrimaryWeakness = critical[0]
	case len(moderate) > 0:
		w.PrimaryWeakness = moderate[0]
	}
	// With a single moderate skill and no criticals, secondary repeats
	// primary. Kept as observed.
	switch {
	case len(critical) >= 2:
		w.SecondaryWeakness = critical[1]
	case len(moderate) > 0:
		w.SecondaryWeakness = moderate[0]
	}

	focus := []string{}
	for _, area := range append(slices.Clone(critical), moderate...) {
		focus = append(focus, "improve "+area)
	}
	for _, issue := range w.GrammarIssues {
		focus = append(focus, "practice "+issue)
	}
	for _, gap := range w.VocabularyGaps {
		focus = append(focus, "build "+gap)
	}
	if len(focus) > maxFocusAreas {
		focus = focus[:maxFocusAreas]
	}
	w.FocusAreas = focus
	return w
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
