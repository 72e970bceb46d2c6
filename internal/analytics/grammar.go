package analytics

import "strings"

// Canonical grammar issue categories.
const (
	GrammarVerbTenses   = "verb tenses"
	GrammarAgreement    = "subject-verb agreement"
	GrammarPronouns     = "pronoun usage"
	GrammarArticles     = "articles"
	GrammarPlurals      = "singular/plural"
	GrammarPrepositions = "prepositions"
)

type grammarRule struct {
	category string
	keywords []string
}

// grammarRules are checked in order; the first match wins. Agreement is
// checked before tenses because its explanations usually mention verbs.
var grammarRules = []grammarRule{
	{GrammarAgreement, []string{"agreement", "subject-verb", "subject verb", "agree"}},
	{GrammarVerbTenses, []string{"tense", "past", "present", "future", "verb form", "participle"}},
	{GrammarPronouns, []string{"pronoun"}},
	{GrammarArticles, []string{"article", `"a"`, `"an"`, `"the"`}},
	{GrammarPlurals, []string{"plural", "singular"}},
	{GrammarPrepositions, []string{"preposition"}},
}

// ClassifyGrammarIssue maps a mistake explanation to a canonical
// category. It returns "" when no rule matches.
func ClassifyGrammarIssue(explanation string) string {
	text := strings.ToLower(explanation)
	for _, r := range grammarRules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return ""
}
