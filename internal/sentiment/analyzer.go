// Package sentiment scores the polarity of user text.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wolfman30/loop-safety/internal/llm"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Label is the polarity bucket of a Result.
type Label string

const (
	Positive Label = "positive"
	Neutral  Label = "neutral"
	Negative Label = "negative"
)

const maxKeywords = 5

// Result is the outcome of a sentiment analysis.
type Result struct {
	Score    int      `json:"score"`
	Label    Label    `json:"label"`
	Keywords []string `json:"keywords"`
}

// Analyzer asks the language model for a sentiment judgment and falls back to
// word lists when the model is unavailable or its answer cannot be used.
type Analyzer struct {
	gateway llm.Gateway
	logger  *logging.Logger
}

// NewAnalyzer builds an Analyzer. A nil gateway means rule-based only.
func NewAnalyzer(gateway llm.Gateway, logger *logging.Logger) *Analyzer {
	if gateway == nil {
		gateway = llm.Disabled{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{gateway: gateway, logger: logger}
}

type modelSentiment struct {
	Score    *float64 `json:"score" validate:"required,min=0,max=100"`
	Label    string   `json:"label" validate:"required,oneof=positive neutral negative"`
	Keywords []string `json:"keywords"`
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`Analyze the sentiment of the text between the markers and respond with a JSON object containing:
1. score: A number from 0 to 100 representing the positivity (higher is more positive)
2. label: One of "positive", "neutral", or "negative"
3. keywords: An array of up to 5 key words or phrases that influenced the sentiment

The text is given as a JSON string literal.
<text>
%s
</text>

JSON response:`, llm.QuoteText(text))
}

// Analyze never fails; any model problem degrades to Fallback.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	raw, err := a.gateway.Generate(ctx, buildPrompt(text))
	if err != nil {
		a.logger.Warn("sentiment model call failed, using word lists", "error", err)
		return Fallback(text)
	}

	parsed, err := llm.Decode[modelSentiment](raw)
	if err != nil {
		a.logger.Warn("sentiment model output unusable, using word lists", "error", err)
		return Fallback(text)
	}
	return fromModel(parsed)
}

func fromModel(m modelSentiment) Result {
	keywords := make([]string, 0, maxKeywords)
	seen := make(map[string]struct{}, maxKeywords)
	for _, kw := range m.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return Result{
		Score:    int(math.Round(*m.Score)),
		Label:    Label(m.Label),
		Keywords: keywords,
	}
}
