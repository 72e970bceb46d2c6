package practice

import "github.com/abhisek/speakquest/internal/llm"

func stringList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

func object(props map[string]any, required ...any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

var vocabularySchema = &llm.Schema{
	Name:        "practice-vocabulary",
	Description: "Vocabulary words for a child's English practice",
	Definition: object(map[string]any{
		"words": map[string]any{
			"type": "array",
			"items": object(map[string]any{
				"word":       map[string]any{"type": "string"},
				"definition": map[string]any{"type": "string"},
				"example":    map[string]any{"type": "string"},
				"category":   map[string]any{"type": "string"},
			}, "word", "definition", "example", "category"),
		},
	}, "words"),
}

var pronunciationSchema = &llm.Schema{
	Name:        "practice-pronunciation",
	Description: "Pronunciation targets and focus sounds",
	Definition: object(map[string]any{
		"targets":     stringList(),
		"focusSounds": stringList(),
	}, "targets", "focusSounds"),
}

var fluencySchema = &llm.Schema{
	Name:        "practice-fluency",
	Description: "A guided conversation scenario with starter questions",
	Definition: object(map[string]any{
		"scenario":         map[string]any{"type": "string"},
		"starterQuestions": stringList(),
		"grammarTarget":    map[string]any{"type": "string"},
	}, "scenario", "starterQuestions", "grammarTarget"),
}

var grammarQuizSchema = &llm.Schema{
	Name:        "practice-grammar-quiz",
	Description: "Multiple-choice grammar questions with explanations",
	Definition: object(map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": object(map[string]any{
				"question":    map[string]any{"type": "string"},
				"options":     stringList(),
				"answer":      map[string]any{"type": "string"},
				"explanation": map[string]any{"type": "string"},
				"issue":       map[string]any{"type": "string"},
			}, "question", "options", "answer", "explanation", "issue"),
		},
	}, "questions"),
}
