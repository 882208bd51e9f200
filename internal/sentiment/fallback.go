package sentiment

import (
	"math"
	"strings"
	"unicode"
)

var positiveWords = wordSet(
	"good", "great", "awesome", "excellent", "amazing", "love", "happy", "wonderful", "fantastic", "beautiful",
	"best", "perfect", "joy", "excited", "glad", "positive", "nice", "thank", "thanks", "appreciate",
)

var negativeWords = wordSet(
	"bad", "terrible", "awful", "horrible", "hate", "sad", "worst", "poor", "disappointed", "negative",
	"angry", "upset", "annoyed", "frustrating", "useless", "waste", "problem", "fail", "failure", "wrong",
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Fallback scores text against fixed positive and negative word lists. Each
// listed word counts once however often it repeats. It is deterministic for
// a given input.
func Fallback(text string) Result {
	tokens := Tokenize(text)

	var pos, neg int
	var matched []string
	counted := make(map[string]struct{})
	for _, tok := range tokens {
		if _, dup := counted[tok]; dup {
			continue
		}
		counted[tok] = struct{}{}
		if _, ok := positiveWords[tok]; ok {
			pos++
			matched = append(matched, tok)
		} else if _, ok := negativeWords[tok]; ok {
			neg++
			matched = append(matched, tok)
		}
	}

	if pos == 0 && neg == 0 {
		return Result{Score: 50, Label: Neutral, Keywords: keywords(nil, tokens)}
	}

	score := int(math.Round(float64(pos) / float64(pos+neg) * 100))
	return Result{Score: score, Label: labelFor(score), Keywords: keywords(matched, tokens)}
}

func labelFor(score int) Label {
	switch {
	case score >= 60:
		return Positive
	case score <= 40:
		return Negative
	default:
		return Neutral
	}
}

// keywords takes distinct matched words first, then pads with distinct
// tokens longer than four characters.
func keywords(matched, tokens []string) []string {
	out := make([]string, 0, maxKeywords)
	seen := make(map[string]struct{}, maxKeywords)
	add := func(w string) bool {
		if _, dup := seen[w]; dup {
			return false
		}
		seen[w] = struct{}{}
		out = append(out, w)
		return len(out) == maxKeywords
	}

	for _, w := range matched {
		if add(w) {
			return out
		}
	}
	for _, w := range tokens {
		if len([]rune(w)) > 4 && add(w) {
			return out
		}
	}
	return out
}

// Tokenize lower-cases text and splits it into word tokens. Apostrophes
// inside a word are kept so contractions stay whole.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.M, r) || r == '\'')
	})

	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
