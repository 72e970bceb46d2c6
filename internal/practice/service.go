package practice

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/speakquest/internal/analytics"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/store"
)

// Result is a generation run and the analysis it was based on.
type Result struct {
	Analysis  *analytics.WeaknessAnalysis `json:"analysis"`
	Practices []GeneratedPractice         `json:"practices"`
}

// Recommendations combine a student's profile, analysis, suggested
// practices and a short action plan.
type Recommendations struct {
	Student    *store.Student              `json:"student"`
	Analysis   *analytics.WeaknessAnalysis `json:"analysis"`
	Practices  []GeneratedPractice         `json:"practices"`
	ActionPlan string                      `json:"actionPlan"`
}

// Service analyzes a student and generates practices for them.
type Service struct {
	store     *store.Store
	analyzer  *analytics.Analyzer
	generator *Generator
	log       *zap.Logger
}

func NewService(st *store.Store, analyzer *analytics.Analyzer, generator *Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, analyzer: analyzer, generator: generator, log: log.Named("practice")}
}

// GenerateForStudent analyzes the student, generates practices and
// stores each one as an activity.
func (s *Service) GenerateForStudent(ctx context.Context, studentID string) (*Result, error) {
	student, analysis, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}

	practices, err := s.generator.Generate(llm.WithStudent(ctx, studentID), student.FirstName, student.Grade, analysis)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(r store.Repos) error {
		for _, p := range practices {
			content, err := EncodeContent(p.Content)
			if err != nil {
				return err
			}
			if err := r.Activities().Create(ctx, &store.Activity{
				ID:           p.ID,
				Title:        p.Title,
				Kind:         p.Kind,
				SkillArea:    p.SkillArea,
				Difficulty:   p.Difficulty,
				PointsReward: p.PointsReward,
				Content:      content,
			}); err != nil {
				return fmt.Errorf("store practice %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("practices stored", zap.String("student_id", studentID), zap.Int("count", len(practices)))
	return &Result{Analysis: analysis, Practices: practices}, nil
}

// Recommend builds recommendations without storing the practices.
func (s *Service) Recommend(ctx context.Context, studentID string) (*Recommendations, error) {
	student, analysis, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	practices, err := s.generator.Generate(llm.WithStudent(ctx, studentID), student.FirstName, student.Grade, analysis)
	if err != nil {
		return nil, err
	}
	return &Recommendations{
		Student:    student,
		Analysis:   analysis,
		Practices:  practices,
		ActionPlan: ActionPlan(analysis, practices),
	}, nil
}

// load reads the profile and computes the analysis concurrently.
func (s *Service) load(ctx context.Context, studentID string) (*store.Student, *analytics.WeaknessAnalysis, error) {
	var (
		student  *store.Student
		analysis *analytics.WeaknessAnalysis
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		student, err = s.store.Students().Get(egCtx, studentID)
		return err
	})
	eg.Go(func() error {
		var err error
		analysis, err = s.analyzer.Analyze(egCtx, studentID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return student, analysis, nil
}

// ActionPlan renders a short numbered plan from an analysis and the
// practices generated for it.
func ActionPlan(a *analytics.WeaknessAnalysis, practices []GeneratedPractice) string {
	var steps []string
	for _, p := range practices {
		steps = append(steps, fmt.Sprintf("Play %q (%s, about %d min) for %d points.",
			p.Title, p.Difficulty, p.EstimatedMinutes, p.PointsReward))
	}
	for _, f := range a.FocusAreas {
		steps = append(steps, "Keep working to "+f+".")
	}
	if len(steps) == 0 {
		return "You're doing great in every skill! Try a new conversation scenario to keep growing."
	}

	var b strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return strings.TrimRight(b.String(), "\n")
}
