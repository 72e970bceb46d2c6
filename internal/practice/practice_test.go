package practice

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/speakquest/internal/analytics"
	"github.com/abhisek/speakquest/internal/gateway"
	"github.com/abhisek/speakquest/internal/llm"
	"github.com/abhisek/speakquest/internal/store"
)

const (
	vocabularyReply = `{"words":[
{"word":"apple","definition":"A round fruit.","example":"I eat an apple.","category":"food"},
{"word":"bread","definition":"A baked food.","example":"Bread is soft.","category":"food"},
{"word":"chair","definition":"You sit on it.","example":"My chair is blue.","category":"home"},
{"word":"desk","definition":"A table for work.","example":"My desk is tidy.","category":"school"},
{"word":"eraser","definition":"It removes pencil.","example":"Use the eraser.","category":"school"},
{"word":"friend","definition":"Someone you like.","example":"She is my friend.","category":"people"},
{"word":"garden","definition":"Land with plants.","example":"We play in the garden.","category":"home"}]}`

	pronunciationReply = `{"targets":["think","three","bath","this","that","mother"],"focusSounds":["th"]}`

	fluencyReply = "Sure! Here you go:\n```json\n" +
		`{"scenario":"ordering_food","starterQuestions":["What do you like to eat?","Do you like pizza?","What do you drink?","Extra?"],"grammarTarget":""}` +
		"\n```"

	quizReply = `{"questions":[
{"question":"She ___ to school.","options":["go","goes"],"answer":"goes","explanation":"Use goes with she.","issue":"subject-verb agreement"},
{"question":"I ___ a cat yesterday.","options":["see","saw"],"answer":"saw","explanation":"Past tense.","issue":"verb tenses"},
{"question":"___ apple","options":["a","an"],"answer":"an","explanation":"Vowel sound.","issue":"articles"},
{"question":"two ___","options":["cat","cats"],"answer":"cats","explanation":"Plural.","issue":"singular/plural"},
{"question":"He ___ happy.","options":["is","are"],"answer":"is","explanation":"Use is with he.","issue":"subject-verb agreement"}]}`
)

// bySchema answers each request according to the schema it carries.
func bySchema(replies map[string]string) func(llm.Request) llm.MockResponse {
	return func(req llm.Request) llm.MockResponse {
		if req.Schema == nil {
			return llm.MockResponse{Err: fmt.Errorf("unexpected request without schema")}
		}
		reply, ok := replies[req.Schema.Name]
		if !ok {
			return llm.MockResponse{Err: fmt.Errorf("no reply for %s", req.Schema.Name)}
		}
		return llm.MockText(reply)
	}
}

func newGenerator(mock *llm.MockProvider) *Generator {
	g := NewGenerator(gateway.New(mock, time.Second, nil), nil)
	n := 0
	g.newID = func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}
	return g
}

func analysis(overall string, issues []string, skills ...analytics.SkillAnalysis) *analytics.WeaknessAnalysis {
	a := analytics.Aggregate(skills, issues, nil)
	a.OverallLevel = overall
	return a
}

func sk(area, level string, avg float64) analytics.SkillAnalysis {
	return analytics.SkillAnalysis{SkillArea: area, WeaknessLevel: level, AverageScore: avg, Trend: analytics.TrendStable}
}

func TestDifficultyFor(t *testing.T) {
	levels := []string{analytics.LevelBeginner, analytics.LevelIntermediate, analytics.LevelAdvanced}
	for _, overall := range levels {
		assert.Equal(t, analytics.LevelBeginner, DifficultyFor(overall, analytics.WeaknessCritical), overall)
	}

	tests := []struct {
		overall, weakness, want string
	}{
		{analytics.LevelAdvanced, analytics.WeaknessModerate, analytics.LevelIntermediate},
		{analytics.LevelIntermediate, analytics.WeaknessModerate, analytics.LevelIntermediate},
		{analytics.LevelAdvanced, analytics.WeaknessMinor, analytics.LevelAdvanced},
		{analytics.LevelBeginner, analytics.WeaknessNone, analytics.LevelBeginner},
		{"", analytics.WeaknessNone, analytics.LevelBeginner},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DifficultyFor(tt.overall, tt.weakness), "%s/%s", tt.overall, tt.weakness)
	}

	assert.Equal(t, analytics.LevelIntermediate, downgrade(analytics.LevelAdvanced))
	assert.Equal(t, analytics.LevelBeginner, downgrade(analytics.LevelIntermediate))
	assert.Equal(t, analytics.LevelBeginner, downgrade(analytics.LevelBeginner))
}

func TestPoints(t *testing.T) {
	assert.Equal(t, 30, PointsFor(analytics.LevelBeginner))
	assert.Equal(t, 50, PointsFor(analytics.LevelIntermediate))
	assert.Equal(t, 80, PointsFor(analytics.LevelAdvanced))
	assert.Equal(t, 30, PointsFor("unknown"))

	assert.Equal(t, 50, quizPoints(analytics.LevelIntermediate, 4))
	assert.Equal(t, 40, quizPoints(analytics.LevelBeginner, 5))
}

func TestContentDocument(t *testing.T) {
	raw, err := EncodeContent(FluencyContent{Scenario: "zoo", StarterQuestions: []string{"Hi?"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"fluency","scenario":"zoo","starterQuestions":["Hi?"]}`, string(raw))

	c, err := DecodeContent(raw)
	require.NoError(t, err)
	assert.Equal(t, FluencyContent{Scenario: "zoo", StarterQuestions: []string{"Hi?"}}, c)

	_, err = DecodeContent(json.RawMessage(`{"type":"karaoke"}`))
	assert.Error(t, err)
}

func TestGenerate_RuleOrder(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Fallback = bySchema(map[string]string{
		pronunciationSchema.Name: pronunciationReply,
		vocabularySchema.Name:    vocabularyReply,
		grammarQuizSchema.Name:   quizReply,
	})
	g := newGenerator(mock)

	a := analysis(analytics.LevelIntermediate, []string{analytics.GrammarAgreement, analytics.GrammarArticles},
		sk(analytics.SkillFluency, analytics.WeaknessNone, 80),
		sk(analytics.SkillPronunciation, analytics.WeaknessCritical, 40),
		sk(analytics.SkillConfidence, analytics.WeaknessMinor, 72),
		sk(analytics.SkillVocabulary, analytics.WeaknessCritical, 45),
	)
	require.Equal(t, analytics.SkillPronunciation, a.PrimaryWeakness)
	require.Equal(t, analytics.SkillVocabulary, a.SecondaryWeakness)

	got, err := g.Generate(context.Background(), "Mia", 3, a)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3, mock.CallCount())

	assert.Equal(t, store.KindPronunciation, got[0].Kind)
	assert.Equal(t, store.KindVocabulary, got[1].Kind)
	assert.Equal(t, store.KindGrammar, got[2].Kind)

	for _, p := range got[:2] {
		assert.Equal(t, analytics.LevelBeginner, p.Difficulty, "critical skills play at beginner")
		assert.Equal(t, 30, p.PointsReward)
		assert.NotEmpty(t, p.Reasoning)
	}
	assert.Equal(t, []string{analytics.SkillPronunciation}, got[0].TargetWeaknesses)

	words := got[1].Content.(VocabularyContent).Words
	assert.Len(t, words, 6, "trimmed to six words")

	quiz := got[2].Content.(GrammarQuizContent)
	assert.Len(t, quiz.Questions, 5)
	assert.Equal(t, analytics.LevelIntermediate, got[2].Difficulty)
	assert.Equal(t, 60, got[2].PointsReward)
	assert.Equal(t, []string{analytics.GrammarAgreement, analytics.GrammarArticles}, got[2].TargetWeaknesses)

	for _, call := range mock.Calls {
		require.Len(t, call.Messages, 1)
		assert.Contains(t, call.Messages[0].Content, "Mia")
		assert.Contains(t, call.Messages[0].Content, "grade 3")
	}
}

func TestGenerate_FluencyFromFencedReply(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Fallback = func(llm.Request) llm.MockResponse { return llm.MockText(fluencyReply) }
	g := newGenerator(mock)

	a := analysis(analytics.LevelAdvanced, nil,
		sk(analytics.SkillFluency, analytics.WeaknessModerate, 58),
		sk(analytics.SkillVocabulary, analytics.WeaknessNone, 90),
	)

	got, err := g.Generate(context.Background(), "Leo", 5, a)
	require.NoError(t, err)
	// A single moderate skill is both primary and secondary.
	require.Len(t, got, 2)
	assert.Equal(t, 2, mock.CallCount())

	fc := got[0].Content.(FluencyContent)
	assert.Equal(t, "ordering_food", fc.Scenario)
	assert.Len(t, fc.StarterQuestions, 3)
	assert.Equal(t, analytics.LevelIntermediate, got[0].Difficulty)
	assert.Equal(t, 50, got[0].PointsReward)
}

func TestGenerate_ConfidenceNeedsNoModel(t *testing.T) {
	mock := llm.NewMockProvider()
	g := newGenerator(mock)

	a := analysis(analytics.LevelIntermediate, nil,
		sk(analytics.SkillConfidence, analytics.WeaknessCritical, 30),
		sk(analytics.SkillFluency, analytics.WeaknessNone, 90),
	)
	got, err := g.Generate(context.Background(), "Ava", 2, a)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, mock.CallCount())

	assert.Equal(t, store.KindConfidence, got[0].Kind)
	assert.Equal(t, analytics.LevelBeginner, got[0].Difficulty)
	cc := got[0].Content.(ConfidenceContent)
	assert.Contains(t, cc.Encouragement, "Ava")
	assert.NotEmpty(t, cc.Prompts)
}

func TestGenerate_UnknownSkillUsesVocabulary(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText(vocabularyReply))
	g := newGenerator(mock)

	a := &analytics.WeaknessAnalysis{PrimaryWeakness: "reading", OverallLevel: analytics.LevelBeginner}
	got, err := g.Generate(context.Background(), "Mia", 3, a)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, store.KindVocabulary, got[0].Kind)
	assert.Equal(t, "reading", got[0].SkillArea)
}

func TestGenerate_Failures(t *testing.T) {
	a := analysis(analytics.LevelBeginner, nil, sk(analytics.SkillPronunciation, analytics.WeaknessCritical, 20))

	t.Run("no json propagates", func(t *testing.T) {
		g := newGenerator(llm.NewMockProvider(llm.MockText("I'd rather not.")))
		_, err := g.Generate(context.Background(), "Mia", 3, a)
		assert.ErrorIs(t, err, llm.ErrNoJSON)
	})

	t.Run("too few targets", func(t *testing.T) {
		g := newGenerator(llm.NewMockProvider(llm.MockText(`{"targets":["cat","hat"],"focusSounds":["a"]}`)))
		_, err := g.Generate(context.Background(), "Mia", 3, a)
		assert.ErrorIs(t, err, ErrIncompleteContent)
	})

	t.Run("quiz drops invalid questions", func(t *testing.T) {
		reply := `{"questions":[
{"question":"q1","options":["a","b"],"answer":"a","explanation":"","issue":""},
{"question":"q2","options":["a","b"],"answer":"c","explanation":"","issue":""},
{"question":"q3","options":["a"],"answer":"a","explanation":"","issue":""},
{"question":"q4","options":["a","b"],"answer":"b","explanation":"","issue":""}]}`
		g := newGenerator(llm.NewMockProvider(llm.MockText(reply)))
		qa := analysis(analytics.LevelBeginner, []string{analytics.GrammarArticles}, sk(analytics.SkillFluency, analytics.WeaknessNone, 90))
		_, err := g.Generate(context.Background(), "Mia", 3, qa)
		assert.ErrorIs(t, err, ErrIncompleteContent)
	})
}

func TestActionPlan(t *testing.T) {
	a := &analytics.WeaknessAnalysis{FocusAreas: []string{"improve fluency"}}
	plan := ActionPlan(a, []GeneratedPractice{{Title: "Chat Challenge", Difficulty: "beginner", EstimatedMinutes: 5, PointsReward: 30}})
	lines := strings.Split(plan, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `1. Play "Chat Challenge" (beginner, about 5 min) for 30 points.`, lines[0])
	assert.Equal(t, "2. Keep working to improve fluency.", lines[1])

	assert.Contains(t, ActionPlan(&analytics.WeaknessAnalysis{}, nil), "doing great")
}

func TestGenerateForStudent_CriticalFluency(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "practice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	require.NoError(t, st.Students().Create(ctx, &store.Student{ID: "s1", FirstName: "Mia", Grade: 3}))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seq := 0
	record := func(area string, scores ...float64) {
		require.NoError(t, st.Activities().Create(ctx, &store.Activity{ID: "act-" + area, Title: area, Kind: area, SkillArea: area}))
		for _, score := range scores {
			seq++
			require.NoError(t, st.Completions().Append(ctx, &store.Completion{
				ID: fmt.Sprintf("c%d", seq), StudentID: "s1", ActivityID: "act-" + area,
				SkillArea: area, ActivityKind: area, Score: score, Completed: score >= 60,
				CreatedAt: base.Add(time.Duration(seq) * time.Minute),
			}))
		}
	}
	record(analytics.SkillFluency, 40, 45, 42)
	record(analytics.SkillPronunciation, 90, 90, 90)
	record(analytics.SkillConfidence, 85, 85, 85)
	record(analytics.SkillVocabulary, 95, 95, 95)

	mock := llm.NewMockProvider(llm.MockText(fluencyReply))
	svc := NewService(st, analytics.NewAnalyzer(st.Repos, nil), newGenerator(mock), nil)

	res, err := svc.GenerateForStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, analytics.SkillFluency, res.Analysis.PrimaryWeakness)

	require.Len(t, res.Practices, 1)
	p := res.Practices[0]
	assert.Equal(t, store.KindFluency, p.Kind)
	assert.Equal(t, analytics.LevelBeginner, p.Difficulty)

	act, err := st.Activities().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.KindFluency, act.Kind)
	assert.Equal(t, 30, act.PointsReward)
	c, err := DecodeContent(act.Content)
	require.NoError(t, err)
	assert.Equal(t, "ordering_food", c.(FluencyContent).Scenario)

	call, _ := mock.LastCall()
	assert.Contains(t, call.Messages[0].Content, "beginner")

	_, err = svc.GenerateForStudent(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
