package moderation

import (
	"context"
	"time"

	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/sentiment"
)

// Status is the three-way moderation verdict.
type Status string

const (
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
	StatusRemoved  Status = "removed"
)

// Path records which decision route produced a verdict.
type Path string

const (
	PathVeto       Path = "veto"
	PathGenerative Path = "generative"
	PathFallback   Path = "fallback"
)

// Result is the moderation verdict returned to callers.
type Result struct {
	Status Status  `json:"status"`
	Reason string  `json:"reason,omitempty"`
	Score  float64 `json:"score"`
}

// Harm is the normalized answer to the broad harmful-content question.
type Harm struct {
	IsHarmful bool   `json:"isHarmful"`
	Category  string `json:"category,omitempty"`
	Severity  int    `json:"severity,omitempty"`
}

// Request is one piece of content to moderate. AccountID and Kind are only
// carried through to the decision record.
type Request struct {
	Text      string
	ImageRef  string
	AccountID string
	Kind      string
}

// Evaluation is a verdict together with the signals that produced it.
type Evaluation struct {
	Result     Result
	Path       Path
	HateSpeech hatespeech.Result
	Sentiment  sentiment.Result
	// Harm is nil when the harmful-content call failed.
	Harm *Harm
}

// Decision is what gets written to the moderation audit trail.
type Decision struct {
	AccountID      string
	Kind           string
	Status         Status
	Score          float64
	Reason         string
	Path           Path
	HateConfidence int
	HateCategory   string
	SentimentLabel string
	Keywords       []string
	ImageRef       string
	DecidedAt      time.Time
}

// HateDetector is the hate-speech signal source.
type HateDetector interface {
	Detect(ctx context.Context, text string) hatespeech.Result
}

// SentimentAnalyzer is the sentiment signal source.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) sentiment.Result
}

// Recorder persists moderation decisions.
type Recorder interface {
	RecordDecision(ctx context.Context, d Decision) error
}

// VerdictObserver counts verdicts.
type VerdictObserver interface {
	ObserveVerdict(status, path string)
}
