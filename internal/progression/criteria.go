package progression

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/speakquest/internal/store"
)

// Counters are the per-student totals badge criteria are checked against.
type Counters struct {
	TotalPoints           int
	StreakDays            int
	ActivitiesCompleted   int
	SpeakingMinutes       int
	PronunciationAccuracy float64
	DialogueActivities    int
	StoriesCreated        int
	PeerHelp              int
}

// speakingKinds are the activity kinds that count as speaking time.
var speakingKinds = []string{
	store.KindPronunciation, store.KindFluency, store.KindConfidence,
	store.KindDialogue, store.KindStorytelling,
}

// CountersFor assembles counters from a student, their completion stats
// and the number of evaluated conversations.
func CountersFor(s store.Student, stats *store.CompletionStats, conversations int) Counters {
	c := Counters{
		TotalPoints:        s.TotalPoints,
		StreakDays:         s.StreakDays,
		DialogueActivities: conversations,
	}
	if stats == nil {
		return c
	}

	c.ActivitiesCompleted = stats.Total
	secs := 0
	for _, k := range speakingKinds {
		secs += stats.TimeSpentSecs[k]
	}
	c.SpeakingMinutes = secs / 60
	c.PronunciationAccuracy = stats.AvgScore[store.KindPronunciation]
	c.DialogueActivities += stats.ByKind[store.KindDialogue]
	c.StoriesCreated = stats.ByKind[store.KindStorytelling]
	c.PeerHelp = stats.ByKind[store.KindPeerHelp]
	return c
}

// Criteria is a machine-checkable badge condition. Each variant is one
// "type" in the stored {"type":..,"value":..} document.
type Criteria interface {
	Type() string
	Satisfied(c Counters) bool
}

type TotalPoints struct{ Value int }
type StreakDays struct{ Value int }
type ActivitiesCompleted struct{ Value int }

// TotalSpeakingTime is measured in minutes.
type TotalSpeakingTime struct{ Value int }

// PronunciationAccuracy is a 0-100 average score over pronunciation work.
type PronunciationAccuracy struct{ Value float64 }

type DialogueActivities struct{ Value int }
type StoriesCreated struct{ Value int }
type PeerHelp struct{ Value int }

func (TotalPoints) Type() string           { return "total_points" }
func (StreakDays) Type() string            { return "streak_days" }
func (ActivitiesCompleted) Type() string   { return "activities_completed" }
func (TotalSpeakingTime) Type() string     { return "total_speaking_time" }
func (PronunciationAccuracy) Type() string { return "pronunciation_accuracy" }
func (DialogueActivities) Type() string    { return "dialogue_activities" }
func (StoriesCreated) Type() string        { return "stories_created" }
func (PeerHelp) Type() string              { return "peer_help" }

func (k TotalPoints) Satisfied(c Counters) bool         { return c.TotalPoints >= k.Value }
func (k StreakDays) Satisfied(c Counters) bool          { return c.StreakDays >= k.Value }
func (k ActivitiesCompleted) Satisfied(c Counters) bool { return c.ActivitiesCompleted >= k.Value }
func (k TotalSpeakingTime) Satisfied(c Counters) bool   { return c.SpeakingMinutes >= k.Value }
func (k DialogueActivities) Satisfied(c Counters) bool  { return c.DialogueActivities >= k.Value }
func (k StoriesCreated) Satisfied(c Counters) bool      { return c.StoriesCreated >= k.Value }
func (k PeerHelp) Satisfied(c Counters) bool            { return c.PeerHelp >= k.Value }

func (k PronunciationAccuracy) Satisfied(c Counters) bool {
	return c.PronunciationAccuracy >= k.Value
}

type criteriaDoc struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// ParseCriteria decodes a stored criteria document.
func ParseCriteria(raw json.RawMessage) (Criteria, error) {
	var doc criteriaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode badge criteria: %w", err)
	}

	v := int(doc.Value)
	switch doc.Type {
	case "total_points":
		return TotalPoints{Value: v}, nil
	case "streak_days":
		return StreakDays{Value: v}, nil
	case "activities_completed":
		return ActivitiesCompleted{Value: v}, nil
	case "total_speaking_time":
		return TotalSpeakingTime{Value: v}, nil
	case "pronunciation_accuracy":
		return PronunciationAccuracy{Value: doc.Value}, nil
	case "dialogue_activities":
		return DialogueActivities{Value: v}, nil
	case "stories_created":
		return StoriesCreated{Value: v}, nil
	case "peer_help":
		return PeerHelp{Value: v}, nil
	default:
		return nil, fmt.Errorf("unknown badge criteria type %q", doc.Type)
	}
}

// MarshalCriteria encodes a criteria value into its stored document.
func MarshalCriteria(c Criteria) json.RawMessage {
	var v float64
	switch k := c.(type) {
	case TotalPoints:
		v = float64(k.Value)
	case StreakDays:
		v = float64(k.Value)
	case ActivitiesCompleted:
		v = float64(k.Value)
	case TotalSpeakingTime:
		v = float64(k.Value)
	case PronunciationAccuracy:
		v = k.Value
	case DialogueActivities:
		v = float64(k.Value)
	case StoriesCreated:
		v = float64(k.Value)
	case PeerHelp:
		v = float64(k.Value)
	}
	b, _ := json.Marshal(criteriaDoc{Type: c.Type(), Value: v})
	return b
}

// EligibleBadges returns the active badges not in owned whose criteria
// hold for c. Badges with unreadable criteria are skipped and reported
// in invalid.
func EligibleBadges(badges []store.Badge, owned map[string]bool, c Counters) (earned []store.Badge, invalid []error) {
	for _, b := range badges {
		if !b.Active || owned[b.ID] {
			continue
		}
		crit, err := ParseCriteria(b.Criteria)
		if err != nil {
			invalid = append(invalid, fmt.Errorf("badge %s: %w", b.ID, err))
			continue
		}
		if crit.Satisfied(c) {
			earned = append(earned, b)
		}
	}
	return earned, invalid
}
