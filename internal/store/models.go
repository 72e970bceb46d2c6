package store

import (
	"encoding/json"
	"time"
)

// Session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// Message roles in a conversation log.
const (
	RoleStudent = "student"
	RoleAI      = "ai"
)

// Activity kinds.
const (
	KindVocabulary    = "vocabulary"
	KindPronunciation = "pronunciation"
	KindFluency       = "fluency"
	KindConfidence    = "confidence"
	KindGrammar       = "grammar"
	KindDialogue      = "dialogue"
	KindStorytelling  = "storytelling"
	KindPeerHelp      = "peer_help"
)

// Student is the learner profile and gamification counters.
type Student struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"firstName"`
	Grade            int        `json:"grade"`
	Age              int        `json:"age"`
	TotalPoints      int        `json:"totalPoints"`
	CurrentLevel     int        `json:"currentLevel"`
	ExperiencePoints int        `json:"experiencePoints"`
	StreakDays       int        `json:"streakDays"`
	LastActivityAt   *time.Time `json:"lastActivityAt"`
	Proficiency      string     `json:"proficiencyLevel"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Activity is a playable practice item. Content is the tagged-union JSON
// document decoded by the practice package.
type Activity struct {
	ID           string
	Title        string
	Kind         string
	SkillArea    string
	Difficulty   string
	PointsReward int
	Content      json.RawMessage
	CreatedAt    time.Time
}

// Completion is one finished attempt at an activity. Completions are
// append-only.
type Completion struct {
	ID            string
	StudentID     string
	ActivityID    string
	SkillArea     string
	ActivityKind  string
	Score         float64
	PointsEarned  int
	TimeSpentSecs int
	Completed     bool
	Submission    json.RawMessage
	Feedback      json.RawMessage
	CreatedAt     time.Time
}

// SkillProgress is the long-run running mean for one skill area.
type SkillProgress struct {
	StudentID           string
	SkillArea           string
	CurrentScore        float64
	ActivitiesCompleted int
	UpdatedAt           time.Time
}

// Message is one line of a conversation log.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation session. Evaluation is nil until the session
// has been ended.
type Session struct {
	ID           string          `json:"id"`
	StudentID    string          `json:"studentId"`
	ActivityID   string          `json:"activityId"`
	Scenario     string          `json:"scenario"`
	Difficulty   string          `json:"difficultyLevel"`
	Status       string          `json:"status"`
	TurnCount    int             `json:"turnCount"`
	Messages     []Message       `json:"messages"`
	Evaluation   json.RawMessage `json:"evaluation"`
	PointsEarned int             `json:"pointsEarned"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	EndedAt      *time.Time      `json:"endedAt"`
}

// Badge is a catalog entry. Criteria is the {"type":..,"value":..} document.
type Badge struct {
	ID          string
	Name        string
	Description string
	Criteria    json.RawMessage
	PointsCost  int
	Rare        bool
	Active      bool
}

// StudentBadge records possession. EarnedAt is nil when earned-at
// tracking is disabled.
type StudentBadge struct {
	StudentID string
	BadgeID   string
	EarnedAt  *time.Time
}

// CompletionStats are aggregate counters over a student's completions.
type CompletionStats struct {
	Total         int
	ByKind        map[string]int
	TimeSpentSecs map[string]int
	AvgScore      map[string]float64
}

// LLMRequestEventData captures a single model request.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	StudentID    string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLMRequestEventData.
type LLMRequestEvent struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// QueryOpts filters event queries.
type QueryOpts struct {
	Limit   int       // 0 = unlimited
	Purpose string    // exact match when set
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// PurposeUsage is token and latency usage grouped by model and purpose.
type PurposeUsage struct {
	Model        string
	Purpose      string
	Requests     int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs float64
}
