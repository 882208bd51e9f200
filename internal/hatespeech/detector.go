// Package hatespeech classifies user text as hate speech.
package hatespeech

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/wolfman30/loop-safety/internal/llm"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Threshold at or above which the rule-based confidence counts as hate speech.
const fallbackThreshold = 50

var languageCodePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})?$`)

// Result is the outcome of hate-speech detection. Category is set only when
// IsHateSpeech is true.
type Result struct {
	IsHateSpeech bool   `json:"isHateSpeech"`
	Confidence   int    `json:"confidence"`
	Category     string `json:"category,omitempty"`
	Language     string `json:"language"`
}

// Detector asks the language model for a hate-speech judgment and falls back
// to per-language term lists.
type Detector struct {
	gateway llm.Gateway
	logger  *logging.Logger
}

// NewDetector builds a Detector. A nil gateway means rule-based only.
func NewDetector(gateway llm.Gateway, logger *logging.Logger) *Detector {
	if gateway == nil {
		gateway = llm.Disabled{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{gateway: gateway, logger: logger}
}

type modelJudgment struct {
	IsHateSpeech *bool    `json:"isHateSpeech" validate:"required"`
	Confidence   *float64 `json:"confidence" validate:"required,min=0,max=100"`
	Category     string   `json:"category"`
}

func judgmentPrompt(text string) string {
	return fmt.Sprintf(`Analyze the text between the markers for hate speech, offensive content, or abusive language.
Respond with a JSON object containing:
1. isHateSpeech: boolean (true if hate speech is detected)
2. confidence: number from 0 to 100 representing confidence in the detection
3. category: string describing the type of hate speech if detected (e.g., "racism", "sexism", etc.)

The text is given as a JSON string literal.
<text>
%s
</text>

JSON response:`, llm.QuoteText(text))
}

func languagePrompt(text string) string {
	return fmt.Sprintf(`Identify the language of the text between the markers. Respond with just the language code (e.g., "en" for English, "te" for Telugu, etc.).

The text is given as a JSON string literal.
<text>
%s
</text>

Language code:`, llm.QuoteText(text))
}

// Detect never fails; any model problem degrades to Fallback using the
// detected language.
func (d *Detector) Detect(ctx context.Context, text string) Result {
	language := d.DetectLanguage(ctx, text)

	raw, err := d.gateway.Generate(ctx, judgmentPrompt(text))
	if err != nil {
		d.logger.Warn("hate speech model call failed, using term lists", "error", err, "language", language)
		return Fallback(text, language)
	}

	parsed, err := llm.Decode[modelJudgment](raw)
	if err != nil {
		d.logger.Warn("hate speech model output unusable, using term lists", "error", err, "language", language)
		return Fallback(text, language)
	}
	return normalize(parsed, language)
}

// DetectLanguage returns a lower-case language code, or "en" when the model
// fails or answers with something that is not a code.
func (d *Detector) DetectLanguage(ctx context.Context, text string) string {
	raw, err := d.gateway.Generate(ctx, languagePrompt(text))
	if err != nil {
		d.logger.Debug("language detection failed, defaulting to english", "error", err)
		return defaultLanguage
	}

	code := strings.ToLower(strings.Trim(llm.StripFences(raw), " \t\r\n\"'`.:"))
	code = strings.ReplaceAll(code, "_", "-")
	if !languageCodePattern.MatchString(code) {
		d.logger.Debug("language detection returned non-code, defaulting to english", "raw", raw)
		return defaultLanguage
	}
	return code
}

// normalize applies the rule-based invariants to a model judgment.
func normalize(m modelJudgment, language string) Result {
	res := Result{
		IsHateSpeech: *m.IsHateSpeech,
		Confidence:   int(math.Round(*m.Confidence)),
		Language:     language,
	}
	if res.IsHateSpeech {
		res.Category = strings.ToLower(strings.TrimSpace(m.Category))
		if res.Category == "" || res.Category == "none" {
			res.Category = CategoryGeneral
		}
	}
	return res
}

// Fallback counts listed terms found anywhere in the lower-cased text. Each
// term counts once and matches as a plain substring.
func Fallback(text, language string) Result {
	lowered := strings.ToLower(text)

	count := 0
	category := ""
	for _, term := range Terms(language) {
		if !strings.Contains(lowered, term) {
			continue
		}
		count++
		if category == "" {
			category = categoryOf(term)
		}
	}

	confidence := count * 25
	if confidence > 100 {
		confidence = 100
	}
	res := Result{
		IsHateSpeech: confidence >= fallbackThreshold,
		Confidence:   confidence,
		Language:     language,
	}
	if res.IsHateSpeech {
		res.Category = category
	}
	return res
}
