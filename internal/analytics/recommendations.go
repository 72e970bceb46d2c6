package analytics

// recommendations is the fixed advice table keyed by skill area and
// weakness level.
var recommendations = map[string]map[string][]string{
	SkillFluency: {
		WeaknessCritical: {
			"Practice short, simple sentences about your day",
			"Try a beginner conversation every day for 5 minutes",
			"Repeat after example dialogues to build rhythm",
		},
		WeaknessModerate: {
			"Talk about a favorite topic for one minute without stopping",
			"Practice linking words like 'and', 'but' and 'because'",
		},
		WeaknessMinor: {
			"Challenge yourself with longer conversations",
			"Tell a short story from start to finish",
		},
		WeaknessNone: {
			"Great fluency! Try an advanced conversation scenario",
		},
	},
	SkillPronunciation: {
		WeaknessCritical: {
			"Listen and repeat single words slowly",
			"Focus on one tricky sound at a time",
			"Record yourself and compare with the example",
		},
		WeaknessModerate: {
			"Practice word stress in longer words",
			"Read tongue twisters out loud",
		},
		WeaknessMinor: {
			"Work on intonation in questions",
			"Practice full sentences at natural speed",
		},
		WeaknessNone: {
			"Excellent pronunciation! Help a friend practice",
		},
	},
	SkillConfidence: {
		WeaknessCritical: {
			"Start with fun, low-pressure speaking games",
			"Answer simple questions about things you like",
			"Remember that mistakes help you learn",
		},
		WeaknessModerate: {
			"Share your opinion on an easy topic",
			"Practice introducing yourself",
		},
		WeaknessMinor: {
			"Try speaking in front of family or friends",
			"Ask questions during conversations",
		},
		WeaknessNone: {
			"You speak with confidence! Try leading a conversation",
		},
	},
	SkillVocabulary: {
		WeaknessCritical: {
			"Learn 3 new everyday words each day",
			"Use picture cards to remember new words",
			"Practice words for food, family and school",
		},
		WeaknessModerate: {
			"Use new words in your own sentences",
			"Learn words that describe feelings",
		},
		WeaknessMinor: {
			"Try synonyms for common words like 'good' and 'big'",
			"Read a short story and find new words",
		},
		WeaknessNone: {
			"Amazing vocabulary! Explore words from new topics",
		},
	},
}

// RecommendationsFor returns a copy of the advice for a skill and level.
func RecommendationsFor(skill, level string) []string {
	recs := recommendations[skill][level]
	if recs == nil {
		recs = recommendations[SkillVocabulary][level]
	}
	return append([]string(nil), recs...)
}
