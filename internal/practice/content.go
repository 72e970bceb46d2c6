// Package practice turns a weakness analysis into ready-to-play practice
// activities.
package practice

import (
	"encoding/json"
	"fmt"
)

// Content type tags.
const (
	ContentVocabulary    = "vocabulary"
	ContentPronunciation = "pronunciation"
	ContentFluency       = "fluency"
	ContentConfidence    = "confidence"
	ContentGrammarQuiz   = "grammar_quiz"
)

// Content is the playable body of a practice. Each variant is one "type"
// in the stored document.
type Content interface {
	ContentType() string
}

type VocabularyWord struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
	Example    string `json:"example"`
	Category   string `json:"category"`
}

type VocabularyContent struct {
	Words []VocabularyWord `json:"words"`
}

type PronunciationContent struct {
	Targets     []string `json:"targets"`
	FocusSounds []string `json:"focusSounds"`
}

// FluencyContent is a guided conversation. GrammarTarget may be empty.
type FluencyContent struct {
	Scenario         string   `json:"scenario"`
	StarterQuestions []string `json:"starterQuestions"`
	GrammarTarget    string   `json:"grammarTarget,omitempty"`
}

type ConfidenceContent struct {
	Scenario      string   `json:"scenario"`
	Prompts       []string `json:"prompts"`
	Encouragement string   `json:"encouragement"`
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Issue       string   `json:"issue"`
}

type GrammarQuizContent struct {
	Issues    []string       `json:"issues"`
	Questions []QuizQuestion `json:"questions"`
}

func (VocabularyContent) ContentType() string    { return ContentVocabulary }
func (PronunciationContent) ContentType() string { return ContentPronunciation }
func (FluencyContent) ContentType() string       { return ContentFluency }
func (ConfidenceContent) ContentType() string    { return ContentConfidence }
func (GrammarQuizContent) ContentType() string   { return ContentGrammarQuiz }

// EncodeContent renders c as a document tagged with its type.
func EncodeContent(c Content) (json.RawMessage, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", c.ContentType(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s content: %w", c.ContentType(), err)
	}
	tag, _ := json.Marshal(c.ContentType())
	fields["type"] = tag
	return json.Marshal(fields)
}

// DecodeContent parses a tagged content document.
func DecodeContent(raw json.RawMessage) (Content, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	var c Content
	var err error
	switch head.Type {
	case ContentVocabulary:
		var v VocabularyContent
		err = json.Unmarshal(raw, &v)
		c = v
	case ContentPronunciation:
		var v PronunciationContent
		err = json.Unmarshal(raw, &v)
		c = v
	case ContentFluency:
		var v FluencyContent
		err = json.Unmarshal(raw, &v)
		c = v
	case ContentConfidence:
		var v ConfidenceContent
		err = json.Unmarshal(raw, &v)
		c = v
	case ContentGrammarQuiz:
		var v GrammarQuizContent
		err = json.Unmarshal(raw, &v)
		c = v
	default:
		return nil, fmt.Errorf("unknown content type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s content: %w", head.Type, err)
	}
	return c, nil
}
