package progression

import "github.com/abhisek/speakquest/internal/store"

// DefaultBadges is the seed badge catalog.
func DefaultBadges() []store.Badge {
	badge := func(id, name, desc string, c Criteria, cost int, rare bool) store.Badge {
		return store.Badge{
			ID: id, Name: name, Description: desc, Criteria: MarshalCriteria(c),
			PointsCost: cost, Rare: rare, Active: true,
		}
	}
	return []store.Badge{
		badge("first-steps", "First Steps", "Complete your first activity", ActivitiesCompleted{Value: 1}, 0, false),
		badge("busy-bee", "Busy Bee", "Complete 25 activities", ActivitiesCompleted{Value: 25}, 0, false),
		badge("point-collector", "Point Collector", "Earn 150 points", TotalPoints{Value: 150}, 0, false),
		badge("point-champion", "Point Champion", "Earn 1000 points", TotalPoints{Value: 1000}, 0, true),
		badge("three-day-streak", "On a Roll", "Practice 3 days in a row", StreakDays{Value: 3}, 0, false),
		badge("week-streak", "Week Warrior", "Practice 7 days in a row", StreakDays{Value: 7}, 0, true),
		badge("chatterbox", "Chatterbox", "Speak for 30 minutes in total", TotalSpeakingTime{Value: 30}, 0, false),
		badge("clear-voice", "Clear Voice", "Average 85% in pronunciation", PronunciationAccuracy{Value: 85}, 0, true),
		badge("conversation-star", "Conversation Star", "Finish 5 conversations", DialogueActivities{Value: 5}, 0, false),
		badge("storyteller", "Storyteller", "Create 3 stories", StoriesCreated{Value: 3}, 0, false),
		badge("helping-hand", "Helping Hand", "Help a classmate 3 times", PeerHelp{Value: 3}, 0, false),
	}
}
