package practice

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/speakquest/internal/analytics"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/store"
)

// ContentModel produces structured content. *gateway.Gateway implements it.
type ContentModel interface {
	GenerateJSON(ctx context.Context, purpose, system, prompt string, schema *llm.Schema, temperature float64, maxTokens int, v any) error
}

// Item counts.
const (
	vocabularyWords     = 6
	minVocabularyWords  = 3
	minPronunciation    = 5
	maxPronunciation    = 7
	starterQuestions    = 3
	minQuizQuestions    = 4
	maxQuizQuestions    = 5
	minQuizOptions      = 2
	generateTemperature = 0.7
	generateMaxTokens   = 1200
)

const systemPrompt = `You create English practice activities for children learning English as a second language.
Keep language age-appropriate, positive and concrete. Respond with a single JSON object and nothing else.`

// Generator builds practices for a student from a weakness analysis.
type Generator struct {
	model ContentModel
	newID func() string
	log   *zap.Logger
}

// NewGenerator creates a Generator over model.
func NewGenerator(model ContentModel, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{model: model, newID: uuid.NewString, log: log.Named("practice")}
}

// student is the per-request context shared by all rules.
type student struct {
	name  string
	grade int
}

// Generate produces up to three practices: one for the primary weakness,
// one for the secondary weakness and a grammar quiz when grammar issues
// were found. Model calls run concurrently; results keep rule order. Any
// failure fails the whole request.
func (g *Generator) Generate(ctx context.Context, name string, grade int, a *analytics.WeaknessAnalysis) ([]GeneratedPractice, error) {
	st := student{name: name, grade: grade}

	var rules []func(context.Context) (GeneratedPractice, error)
	if a.PrimaryWeakness != "" {
		area := a.PrimaryWeakness
		rules = append(rules, func(ctx context.Context) (GeneratedPractice, error) {
			return g.forSkill(ctx, st, a, area, "primary")
		})
	}
	if a.SecondaryWeakness != "" {
		area := a.SecondaryWeakness
		rules = append(rules, func(ctx context.Context) (GeneratedPractice, error) {
			return g.forSkill(ctx, st, a, area, "secondary")
		})
	}
	if len(a.GrammarIssues) > 0 {
		rules = append(rules, func(ctx context.Context) (GeneratedPractice, error) {
			return g.grammarQuiz(ctx, st, a)
		})
	}

	out := make([]GeneratedPractice, len(rules))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, rule := range rules {
		eg.Go(func() error {
			p, err := rule(egCtx)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.log.Debug("practices generated", zap.Int("count", len(out)), zap.String("primary", a.PrimaryWeakness))
	return out, nil
}

// forSkill dispatches to the generator for area. Unknown areas use the
// vocabulary generator.
func (g *Generator) forSkill(ctx context.Context, st student, a *analytics.WeaknessAnalysis, area, rank string) (GeneratedPractice, error) {
	sa, ok := a.Skill(area)
	if !ok {
		sa = analytics.SkillAnalysis{SkillArea: area, WeaknessLevel: analytics.WeaknessNone, Trend: analytics.TrendStable}
	}
	difficulty := DifficultyFor(a.OverallLevel, sa.WeaknessLevel)
	reasoning := fmt.Sprintf("%s is your %s focus: average score %.0f, %s trend, %s weakness.",
		titleCase(area), rank, sa.AverageScore, sa.Trend, sa.WeaknessLevel)

	var (
		p   GeneratedPractice
		err error
	)
	switch area {
	case analytics.SkillPronunciation:
		p, err = g.pronunciation(ctx, st, sa, difficulty)
	case analytics.SkillFluency:
		p, err = g.fluency(ctx, st, sa, difficulty, a.GrammarIssues)
	case analytics.SkillConfidence:
		p = g.confidence(st, difficulty)
	default:
		p, err = g.vocabulary(ctx, st, sa, difficulty)
	}
	if err != nil {
		return GeneratedPractice{}, fmt.Errorf("generate %s practice: %w", area, err)
	}

	p.ID = g.newID()
	p.SkillArea = area
	p.Reasoning = reasoning
	p.TargetWeaknesses = []string{area}
	return p, nil
}

func skillPrompt(st student, sa analytics.SkillAnalysis, difficulty, task string) string {
	return fmt.Sprintf(`Student: %s, grade %d.
Skill: %s. Recent average score: %.0f/100, trend: %s.
Difficulty: %s.

%s`, st.name, st.grade, sa.SkillArea, sa.AverageScore, sa.Trend, difficulty, task)
}

func (g *Generator) vocabulary(ctx context.Context, st student, sa analytics.SkillAnalysis, difficulty string) (GeneratedPractice, error) {
	task := fmt.Sprintf(`Create %d useful everyday English words for this student.
Return {"words": [{"word", "definition", "example", "category"}]} where the definition is one simple sentence,
the example uses the word in a sentence about school, home or play, and category names the topic.`, vocabularyWords)

	var c VocabularyContent
	if err := g.model.GenerateJSON(ctx, llm.PurposePractice, systemPrompt, skillPrompt(st, sa, difficulty, task),
		vocabularySchema, generateTemperature, generateMaxTokens, &c); err != nil {
		return GeneratedPractice{}, err
	}

	c.Words = slices.DeleteFunc(c.Words, func(w VocabularyWord) bool { return strings.TrimSpace(w.Word) == "" })
	if len(c.Words) < minVocabularyWords {
		return GeneratedPractice{}, fmt.Errorf("%w: %d vocabulary words", ErrIncompleteContent, len(c.Words))
	}
	c.Words = c.Words[:min(len(c.Words), vocabularyWords)]

	return GeneratedPractice{
		Title:            "Word Explorer",
		Kind:             store.KindVocabulary,
		Difficulty:       difficulty,
		PointsReward:     PointsFor(difficulty),
		EstimatedMinutes: len(c.Words) + 2,
		Content:          c,
	}, nil
}

func (g *Generator) pronunciation(ctx context.Context, st student, sa analytics.SkillAnalysis, difficulty string) (GeneratedPractice, error) {
	task := fmt.Sprintf(`Create %d to %d words or short phrases for pronunciation practice and name the sounds they train.
Return {"targets": [..], "focusSounds": [..]} where focusSounds are written like "th" or "short i".`,
		minPronunciation, maxPronunciation)

	var c PronunciationContent
	if err := g.model.GenerateJSON(ctx, llm.PurposePractice, systemPrompt, skillPrompt(st, sa, difficulty, task),
		pronunciationSchema, generateTemperature, generateMaxTokens, &c); err != nil {
		return GeneratedPractice{}, err
	}

	c.Targets = compact(c.Targets)
	c.FocusSounds = compact(c.FocusSounds)
	if len(c.Targets) < minPronunciation {
		return GeneratedPractice{}, fmt.Errorf("%w: %d pronunciation targets", ErrIncompleteContent, len(c.Targets))
	}
	if len(c.FocusSounds) == 0 {
		return GeneratedPractice{}, fmt.Errorf("%w: no focus sounds", ErrIncompleteContent)
	}
	c.Targets = c.Targets[:min(len(c.Targets), maxPronunciation)]

	return GeneratedPractice{
		Title:            "Sound Lab",
		Kind:             store.KindPronunciation,
		Difficulty:       difficulty,
		PointsReward:     PointsFor(difficulty),
		EstimatedMinutes: len(c.Targets),
		Content:          c,
	}, nil
}

func (g *Generator) fluency(ctx context.Context, st student, sa analytics.SkillAnalysis, difficulty string, issues []string) (GeneratedPractice, error) {
	task := fmt.Sprintf(`Create a short conversation practice.
Return {"scenario": "<snake_case scenario id such as ordering_food>", "starterQuestions": [%d questions], "grammarTarget": "<grammar point or empty string>"}.`,
		starterQuestions)
	if len(issues) > 0 {
		task += "\nThe student struggles with: " + strings.Join(issues, ", ") + ". Pick one as the grammar target."
	}

	var c FluencyContent
	if err := g.model.GenerateJSON(ctx, llm.PurposePractice, systemPrompt, skillPrompt(st, sa, difficulty, task),
		fluencySchema, generateTemperature, generateMaxTokens, &c); err != nil {
		return GeneratedPractice{}, err
	}

	c.Scenario = strings.TrimSpace(c.Scenario)
	c.StarterQuestions = compact(c.StarterQuestions)
	c.GrammarTarget = strings.TrimSpace(c.GrammarTarget)
	if c.Scenario == "" || len(c.StarterQuestions) < starterQuestions {
		return GeneratedPractice{}, fmt.Errorf("%w: fluency scenario with %d questions", ErrIncompleteContent, len(c.StarterQuestions))
	}
	c.StarterQuestions = c.StarterQuestions[:starterQuestions]

	return GeneratedPractice{
		Title:            "Chat Challenge",
		Kind:             store.KindFluency,
		Difficulty:       difficulty,
		PointsReward:     PointsFor(difficulty),
		EstimatedMinutes: 5,
		Content:          c,
	}, nil
}

// confidence needs no model call. It always eases difficulty one notch.
func (g *Generator) confidence(st student, difficulty string) GeneratedPractice {
	difficulty = downgrade(difficulty)
	return GeneratedPractice{
		Title:            "Brave Speaker",
		Kind:             store.KindConfidence,
		Difficulty:       difficulty,
		PointsReward:     PointsFor(difficulty),
		EstimatedMinutes: 5,
		Content: ConfidenceContent{
			Scenario: "show_and_tell",
			Prompts: []string{
				"Tell me about your favorite toy or game.",
				"What is one thing you are good at?",
				"Describe your best day ever.",
			},
			Encouragement: fmt.Sprintf("You can do it, %s! Every word you say makes you a stronger speaker.", st.name),
		},
	}
}

func (g *Generator) grammarQuiz(ctx context.Context, st student, a *analytics.WeaknessAnalysis) (GeneratedPractice, error) {
	difficulty := DifficultyFor(a.OverallLevel, analytics.WeaknessNone)
	prompt := fmt.Sprintf(`Student: %s, grade %d. Difficulty: %s.
Grammar issues seen in recent conversations: %s.

Create %d to %d multiple-choice questions covering these issues.
Return {"questions": [{"question", "options", "answer", "explanation", "issue"}]} where options has 3 or 4 choices,
answer is exactly one of the options, explanation is one child-friendly sentence, and issue names the grammar issue.`,
		st.name, st.grade, difficulty, strings.Join(a.GrammarIssues, ", "), minQuizQuestions, maxQuizQuestions)

	var c GrammarQuizContent
	if err := g.model.GenerateJSON(ctx, llm.PurposePractice, systemPrompt, prompt,
		grammarQuizSchema, generateTemperature, generateMaxTokens, &c); err != nil {
		return GeneratedPractice{}, fmt.Errorf("generate grammar quiz: %w", err)
	}

	c.Questions = slices.DeleteFunc(c.Questions, func(q QuizQuestion) bool {
		return strings.TrimSpace(q.Question) == "" || len(q.Options) < minQuizOptions || !slices.Contains(q.Options, q.Answer)
	})
	if len(c.Questions) < minQuizQuestions {
		return GeneratedPractice{}, fmt.Errorf("generate grammar quiz: %w: %d valid questions", ErrIncompleteContent, len(c.Questions))
	}
	c.Questions = c.Questions[:min(len(c.Questions), maxQuizQuestions)]
	c.Issues = slices.Clone(a.GrammarIssues)

	return GeneratedPractice{
		ID:               g.newID(),
		Title:            "Grammar Quest",
		Kind:             store.KindGrammar,
		SkillArea:        store.KindGrammar,
		Difficulty:       difficulty,
		PointsReward:     quizPoints(difficulty, len(c.Questions)),
		EstimatedMinutes: 2 * len(c.Questions),
		Content:          c,
		Reasoning:        "Recent conversations showed grammar slips in: " + strings.Join(a.GrammarIssues, ", ") + ".",
		TargetWeaknesses: slices.Clone(a.GrammarIssues),
	}, nil
}

func compact(xs []string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
