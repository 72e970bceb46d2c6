// Package conversation runs spoken-practice sessions: the opening line,
// turn-by-turn chat with the model and the final evaluation.
package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/speakquest/internal/gateway"
)

var (
	// ErrNotOwner is returned when the caller does not own the session.
	ErrNotOwner = errors.New("session belongs to another student")

	// ErrNotActive is returned for turns on a session that has ended.
	ErrNotActive = errors.New("session is not active")

	// ErrEmptyMessage is returned for blank student messages.
	ErrEmptyMessage = errors.New("message is empty")
)

// Difficulty levels.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

const (
	chatTemperature = 0.8
	chatMaxTokens   = 150

	defaultTurnLimit = 10
	defaultScenario  = "everyday"
)

// TurnLimit is the turn count at which a session completes.
func TurnLimit(difficulty string) int {
	switch difficulty {
	case DifficultyBeginner:
		return 8
	case DifficultyIntermediate:
		return 12
	case DifficultyAdvanced:
		return 16
	default:
		return defaultTurnLimit
	}
}

// StartInput opens a session.
type StartInput struct {
	ActivityID string
	Scenario   string
	Difficulty string
}

// TurnResult is the reply to one student message.
type TurnResult struct {
	AIResponse string `json:"aiResponse"`
	TurnCount  int    `json:"turnCount"`
	ShouldEnd  bool   `json:"shouldEnd"`
}

// EndResult is the evaluation of a finished session. AlreadyEvaluated is
// set when the stored evaluation was returned without a model call.
type EndResult struct {
	Evaluation       gateway.Evaluation `json:"evaluation"`
	PointsEarned     int                `json:"pointsEarned"`
	AlreadyEvaluated bool               `json:"alreadyEvaluated"`
}

// openers are the first lines keyed by scenario then difficulty. %s is
// the student's first name.
var openers = map[string]map[string]string{
	"restaurant": {
		DifficultyBeginner:     "Hi %s! Welcome to our restaurant. What would you like to eat?",
		DifficultyIntermediate: "Good evening, %s! Here is the menu. Have you decided what you'd like to order?",
		DifficultyAdvanced:     "Welcome back, %s! Our chef has a few specials tonight. Would you like to hear about them before you order?",
	},
	"school": {
		DifficultyBeginner:     "Hello %s! What is your favorite subject at school?",
		DifficultyIntermediate: "Hi %s! How was school today? Did you learn anything interesting?",
		DifficultyAdvanced:     "Hi %s! If you could add one new subject to your school, what would it be and why?",
	},
	"shopping": {
		DifficultyBeginner:     "Hi %s! Welcome to the store. What do you want to buy today?",
		DifficultyIntermediate: "Hello %s! Are you looking for something special today? I can help you find it.",
		DifficultyAdvanced:     "Good afternoon, %s! We have a big sale this week. What are you shopping for, and what's your budget?",
	},
	"travel": {
		DifficultyBeginner:     "Hi %s! Where do you want to go on holiday?",
		DifficultyIntermediate: "Hello %s! Welcome to the airport help desk. Where are you flying to today?",
		DifficultyAdvanced:     "Hi %s! Tell me about the most amazing place you have ever visited, or would love to visit.",
	},
	"hobbies": {
		DifficultyBeginner:     "Hi %s! What do you like to do for fun?",
		DifficultyIntermediate: "Hello %s! What hobbies do you enjoy after school, and how did you get started?",
		DifficultyAdvanced:     "Hi %s! If you could master any hobby in one day, which would you pick and what would you do first?",
	},
}

var defaultOpeners = map[string]string{
	DifficultyBeginner:     "Hi %s! Let's talk. How are you today?",
	DifficultyIntermediate: "Hello %s! Tell me about something fun you did this week.",
	DifficultyAdvanced:     "Hi %s! What's something you've been thinking about lately? I'd love to hear your ideas.",
}

// OpeningLine returns the deterministic first line for a session.
func OpeningLine(scenario, difficulty, firstName string) string {
	byLevel, ok := openers[strings.ToLower(scenario)]
	if !ok {
		byLevel = defaultOpeners
	}
	tmpl, ok := byLevel[difficulty]
	if !ok {
		tmpl = byLevel[DifficultyBeginner]
	}
	return fmt.Sprintf(tmpl, firstName)
}

// systemPrompt frames the model as a friendly partner for the scenario.
func systemPrompt(difficulty string, grade int, scenario, firstName string) string {
	var style string
	switch difficulty {
	case DifficultyBeginner:
		style = "Use very short, simple sentences and common words. Ask one easy question at a time."
	case DifficultyAdvanced:
		style = "Use natural, rich language and ask open questions that invite longer answers."
	default:
		style = "Use clear everyday language and ask follow-up questions."
	}
	return fmt.Sprintf(`You are a friendly English conversation partner for %s, a grade %d student.
The conversation scenario is %q and the difficulty is %s.
%s
Stay in the scenario, keep replies to two or three sentences and be encouraging.
If the student makes a mistake, gently model the correct form in your reply instead of correcting them directly.`,
		firstName, grade, scenario, difficulty, style)
}
