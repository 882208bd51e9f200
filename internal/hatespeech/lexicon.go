package hatespeech

import "strings"

// Categories assigned by the rule-based detector.
const (
	CategoryRacism       = "racism"
	CategorySexism       = "sexism"
	CategoryHomophobia   = "homophobia"
	CategoryIslamophobia = "islamophobia"
	CategoryAbleism      = "ableism"
	CategoryGeneral      = "general_hate"
)

const defaultLanguage = "en"

// Term lists per language, in match-priority order.
var lexicon = map[string][]string{
	"en": {
		"hate", "kill", "die", "murder", "racist", "sexist", "idiot", "stupid", "ugly", "fat",
		"retard", "cripple", "bitch", "whore", "slut", "faggot", "nigger", "chink", "spic", "kike",
		"terrorist",
	},
	"te": {
		"దుర్మార్గుడు", "నీచుడు", "పిచ్చి", "వెధవ", "లంజ", "దెంగ", "పూకు",
		"మొడ్డ", "లవడ", "గాడిద", "కుక్క", "పంది", "చచ్చిపో", "చంపేస్తా",
	},
}

var termCategory = map[string]string{
	"racist": CategoryRacism, "nigger": CategoryRacism, "chink": CategoryRacism, "spic": CategoryRacism, "kike": CategoryRacism,
	"sexist": CategorySexism, "bitch": CategorySexism, "whore": CategorySexism, "slut": CategorySexism,
	"faggot":    CategoryHomophobia,
	"terrorist": CategoryIslamophobia,
	"retard":    CategoryAbleism, "cripple": CategoryAbleism,
}

// Terms returns the list used for language, or the English list when the
// language has none.
func Terms(language string) []string {
	if terms, ok := lexicon[strings.ToLower(language)]; ok {
		return terms
	}
	return lexicon[defaultLanguage]
}

// SupportedLanguages lists the languages with their own term list.
func SupportedLanguages() []string {
	return []string{"en", "te"}
}

func categoryOf(term string) string {
	if c, ok := termCategory[term]; ok {
		return c
	}
	return CategoryGeneral
}
