package moderation

import (
	"fmt"
	"math"
	"strings"

	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/sentiment"
)

// Verdict thresholds shared by the fused and rule-based paths.
const (
	removeBelow = 40
	flagBelow   = 70
)

var (
	violentTerms  = []string{"kill", "murder", "shoot", "attack", "bomb", "terrorist", "die", "death"}
	sexualTerms   = []string{"porn", "sex", "nude", "naked", "xxx", "fuck", "cock", "pussy", "dick", "ass"}
	selfHarmTerms = []string{"suicide", "kill myself", "end my life", "cut myself", "self-harm"}
	illegalTerms  = []string{"drugs", "cocaine", "heroin", "illegal", "steal", "robbery", "hack", "pirate"}
)

// Reasons used by the rule-based path.
const (
	ReasonSelfHarm       = "Content related to self-harm"
	ReasonViolent        = "Violent content detected"
	ReasonSexual         = "Sexual content detected"
	ReasonIllegal        = "Content related to illegal activities"
	ReasonViolatesPolicy = "Content violates community guidelines"
	ReasonMayViolate     = "Content may violate community guidelines"
)

// FallbackVerdict moderates text with term lists when the harmful-content
// model call cannot be used. Each term counts once as a substring match.
func FallbackVerdict(text string, hate hatespeech.Result, sent sentiment.Result) Result {
	lowered := strings.ToLower(text)

	if countTerms(lowered, selfHarmTerms) > 0 {
		return Result{Status: StatusRemoved, Reason: ReasonSelfHarm, Score: 0}
	}

	violent := countTerms(lowered, violentTerms)
	sexual := countTerms(lowered, sexualTerms)
	illegal := countTerms(lowered, illegalTerms)

	score := 100.0
	if hate.IsHateSpeech {
		score -= float64(hate.Confidence) / 2
	}
	if sent.Label == sentiment.Negative {
		score -= float64(100-sent.Score) / 3
	}
	score -= float64(violent*10 + sexual*15 + illegal*12)
	score = clamp(score)

	switch {
	case score < removeBelow:
		reason := ReasonViolatesPolicy
		switch {
		case violent > 0:
			reason = ReasonViolent
		case sexual > 0:
			reason = ReasonSexual
		case illegal > 0:
			reason = ReasonIllegal
		case hate.IsHateSpeech:
			reason = hateReason(hate.Category, "general")
		}
		return Result{Status: StatusRemoved, Reason: reason, Score: score}
	case score < flagBelow:
		return Result{Status: StatusFlagged, Reason: ReasonMayViolate, Score: score}
	default:
		return Result{Status: StatusApproved, Score: score}
	}
}

func countTerms(lowered string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			n++
		}
	}
	return n
}

func hateReason(category, fallback string) string {
	if category == "" {
		category = fallback
	}
	return fmt.Sprintf("Hate speech detected (%s)", category)
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}
