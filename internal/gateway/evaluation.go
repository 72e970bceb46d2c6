package gateway

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/llm"
)

// Conversation quality labels.
const (
	QualityExcellent        = "excellent"
	QualityGood             = "good"
	QualityNeedsImprovement = "needs_improvement"
)

// Evaluation is the assessment attached to a conversation session once it
// ends.
type Evaluation struct {
	GrammarScore        float64          `json:"grammarScore"`
	VocabularyScore     float64          `json:"vocabularyScore"`
	CoherenceScore      float64          `json:"coherenceScore"`
	FluencyScore        float64          `json:"fluencyScore"`
	OverallScore        float64          `json:"overallScore"`
	Strengths           []string         `json:"strengths"`
	Improvements        []string         `json:"improvements"`
	Suggestions         []string         `json:"suggestions"`
	GrammarMistakes     []GrammarMistake `json:"grammarMistakes"`
	VocabularyUsed      []string         `json:"vocabularyUsed"`
	ConversationQuality string           `json:"conversationQuality"`
}

type GrammarMistake struct {
	Mistake     string `json:"mistake"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// DefaultEvaluation is the neutral assessment used when the model call or
// its reply fails.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		GrammarScore:        70,
		VocabularyScore:     70,
		CoherenceScore:      70,
		FluencyScore:        70,
		OverallScore:        70,
		Strengths:           []string{"You kept the conversation going", "You tried new words"},
		Improvements:        []string{"Try using longer sentences"},
		Suggestions:         []string{"Practice speaking a little every day"},
		GrammarMistakes:     []GrammarMistake{},
		VocabularyUsed:      []string{},
		ConversationQuality: QualityGood,
	}
}

var evaluationSchema = &llm.Schema{
	Name:        "conversation-evaluation",
	Description: "Assessment of a child's English practice conversation",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"grammarScore":    scoreSchema(),
			"vocabularyScore": scoreSchema(),
			"coherenceScore":  scoreSchema(),
			"fluencyScore":    scoreSchema(),
			"overallScore":    scoreSchema(),
			"strengths":       stringArray(),
			"improvements":    stringArray(),
			"suggestions":     stringArray(),
			"grammarMistakes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"mistake":     map[string]any{"type": "string"},
						"correction":  map[string]any{"type": "string"},
						"explanation": map[string]any{"type": "string"},
					},
					"required": []any{"mistake", "correction", "explanation"},
				},
			},
			"vocabularyUsed": stringArray(),
			"conversationQuality": map[string]any{
				"type": "string",
				"enum": []any{QualityExcellent, QualityGood, QualityNeedsImprovement},
			},
		},
		"required": []any{
			"grammarScore", "vocabularyScore", "coherenceScore", "fluencyScore", "overallScore",
			"strengths", "improvements", "suggestions", "grammarMistakes", "vocabularyUsed",
			"conversationQuality",
		},
	},
}

func scoreSchema() map[string]any {
	return map[string]any{"type": "number"}
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// EvaluateConversation asks the model to assess the conversation. It never
// fails: any transport or parse error yields DefaultEvaluation.
func (g *Gateway) EvaluateConversation(ctx context.Context, studentMessages, aiMessages []string, difficulty string, grade int) Evaluation {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, llm.PurposeEvaluation), llm.Request{
		System:      evaluationSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: evaluationPrompt(studentMessages, aiMessages, difficulty, grade)}},
		Schema:      evaluationSchema,
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		g.log.Warn("evaluation failed, using default", zap.Error(err))
		return DefaultEvaluation()
	}

	var eval Evaluation
	if err := llm.DecodeJSON(resp.Text(), nil, &eval); err != nil {
		g.log.Warn("evaluation reply unparseable, using default", zap.Error(err))
		return DefaultEvaluation()
	}
	return normalize(eval)
}

const evaluationSystemPrompt = `You are an encouraging English teacher assessing a child's spoken practice conversation.
Respond with a single JSON object and nothing else.`

func evaluationPrompt(studentMessages, aiMessages []string, difficulty string, grade int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate this %s-level conversation by a grade %d student.\n\n", difficulty, grade)

	b.WriteString("Student said:\n")
	for i, m := range studentMessages {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}
	b.WriteString("\nPartner said:\n")
	for i, m := range aiMessages {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m)
	}

	b.WriteString(`
Score only the student's messages. Return JSON with:
- grammarScore, vocabularyScore, coherenceScore, fluencyScore, overallScore: numbers 0-100
- strengths, improvements, suggestions: short child-friendly sentences
- grammarMistakes: [{"mistake", "correction", "explanation"}] naming the grammar rule in the explanation
- vocabularyUsed: notable words the student used
- conversationQuality: "excellent", "good" or "needs_improvement"`)
	return b.String()
}

// normalize clamps scores to 0-100, fills nil lists and derives a quality
// label when the model returned an unknown one.
func normalize(e Evaluation) Evaluation {
	for _, s := range []*float64{&e.GrammarScore, &e.VocabularyScore, &e.CoherenceScore, &e.FluencyScore, &e.OverallScore} {
		*s = clampScore(*s)
	}
	for _, l := range []*[]string{&e.Strengths, &e.Improvements, &e.Suggestions, &e.VocabularyUsed} {
		if *l == nil {
			*l = []string{}
		}
	}
	if e.GrammarMistakes == nil {
		e.GrammarMistakes = []GrammarMistake{}
	}

	switch e.ConversationQuality {
	case QualityExcellent, QualityGood, QualityNeedsImprovement:
	default:
		e.ConversationQuality = qualityFor(e.OverallScore)
	}
	return e
}

func qualityFor(overall float64) string {
	switch {
	case overall >= 85:
		return QualityExcellent
	case overall >= 60:
		return QualityGood
	default:
		return QualityNeedsImprovement
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
