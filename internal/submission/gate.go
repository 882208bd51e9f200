// Package submission gates user posts, comments, shares and direct messages
// through moderation and the violation policy.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/moderation"
	"github.com/wolfman30/loop-safety/internal/review"
	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

var (
	// ErrAccountRestricted is returned for suspended or terminated accounts.
	ErrAccountRestricted = errors.New("submission: account is suspended or terminated")
	// ErrInvalidSubmission is returned for malformed submissions.
	ErrInvalidSubmission = errors.New("submission: invalid submission")
)

// Kind is the type of user content being submitted.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
	KindShare   Kind = "share"
	KindMessage Kind = "message"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPost, KindComment, KindShare, KindMessage:
		return true
	}
	return false
}

// Rejection reasons.
const (
	ReasonPostRemoved = "Content violates community guidelines and has been removed."
	ReasonCommentHate = "Your comment contains hate speech and has been removed."
	ReasonShareHate   = "Your share contains hate speech and has been removed."
	ReasonMessageHate = "Message contains hate speech and cannot be sent"
)

// Direct messages are blocked only above this hate confidence.
const messageHateCeiling = 80

// Submission is one piece of user content.
type Submission struct {
	AccountID string
	Kind      Kind
	Text      string
	ImageRef  string
}

// Decision is the gate's answer for a submission.
type Decision struct {
	ID              string             `json:"id"`
	Accepted        bool               `json:"accepted"`
	Reason          string             `json:"reason,omitempty"`
	Moderation      *moderation.Result `json:"moderation,omitempty"`
	HateSpeech      hatespeech.Result  `json:"hateSpeech"`
	Sentiment       sentiment.Result   `json:"sentiment"`
	Punishment      *safety.Outcome    `json:"punishment,omitempty"`
	QueuedForReview bool               `json:"queuedForReview"`
}

// Evaluator produces a moderation verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, req moderation.Request) moderation.Evaluation
}

// AccountReader loads account standing.
type AccountReader interface {
	Get(ctx context.Context, accountID string) (safety.Record, error)
}

// ViolationHandler applies the punishment policy.
type ViolationHandler interface {
	HandleHateSpeechViolation(ctx context.Context, accountID, text, language string) (safety.Outcome, error)
}

// ReviewPublisher queues flagged content for human review.
type ReviewPublisher interface {
	Enqueue(ctx context.Context, item review.Item) error
}

// Observer counts gate outcomes.
type Observer interface {
	ObserveSubmission(kind string, accepted bool)
	ObservePolicyError()
}

// Gate combines moderation with the violation policy.
type Gate struct {
	accounts  AccountReader
	moderator Evaluator
	hate      moderation.HateDetector
	sent      moderation.SentimentAnalyzer
	policy    ViolationHandler
	reviews   ReviewPublisher
	observer  Observer
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithReviewPublisher queues flagged posts, comments and shares.
func WithReviewPublisher(p ReviewPublisher) Option {
	return func(g *Gate) { g.reviews = p }
}

// WithObserver reports gate outcomes.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// WithClock overrides the review timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate builds a Gate. Direct messages skip the full moderator and use
// hate and sent directly.
func NewGate(accounts AccountReader, moderator Evaluator, hate moderation.HateDetector, sent moderation.SentimentAnalyzer, policy ViolationHandler, logger *logging.Logger, opts ...Option) *Gate {
	if accounts == nil || moderator == nil || hate == nil || sent == nil || policy == nil {
		panic("submission: accounts, moderator, detectors and policy are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gate{
		accounts:  accounts,
		moderator: moderator,
		hate:      hate,
		sent:      sent,
		policy:    policy,
		logger:    logger.Component("submission"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit decides whether s may be published. Errors are returned only for
// invalid input and account lookup failures; analysis never fails.
func (g *Gate) Submit(ctx context.Context, s Submission) (Decision, error) {
	s.AccountID = strings.TrimSpace(s.AccountID)
	s.ImageRef = strings.TrimSpace(s.ImageRef)
	if s.AccountID == "" || !s.Kind.Valid() || strings.TrimSpace(s.Text) == "" {
		return Decision{}, ErrInvalidSubmission
	}

	record, err := g.accounts.Get(ctx, s.AccountID)
	if err != nil {
		return Decision{}, fmt.Errorf("submission: load account: %w", err)
	}
	if record.Restricted() {
		return Decision{}, ErrAccountRestricted
	}

	d := Decision{ID: uuid.NewString()}
	if s.Kind == KindMessage {
		g.screenMessage(ctx, s, &d)
	} else {
		g.screenContent(ctx, s, &d)
	}

	if d.HateSpeech.IsHateSpeech {
		g.punish(ctx, s, &d)
	}
	if g.observer != nil {
		g.observer.ObserveSubmission(string(s.Kind), d.Accepted)
	}
	g.logger.Info("submission screened",
		"submission_id", d.ID,
		"account_id", s.AccountID,
		"kind", s.Kind,
		"accepted", d.Accepted,
		"queued_for_review", d.QueuedForReview,
	)
	return d, nil
}

func (g *Gate) screenMessage(ctx context.Context, s Submission, d *Decision) {
	d.HateSpeech = g.hate.Detect(ctx, s.Text)
	d.Sentiment = g.sent.Analyze(ctx, s.Text)
	if d.HateSpeech.IsHateSpeech && d.HateSpeech.Confidence > messageHateCeiling {
		d.Reason = ReasonMessageHate
		return
	}
	d.Accepted = true
}

func (g *Gate) screenContent(ctx context.Context, s Submission, d *Decision) {
	ev := g.moderator.Evaluate(ctx, moderation.Request{
		Text:      s.Text,
		ImageRef:  s.ImageRef,
		AccountID: s.AccountID,
		Kind:      string(s.Kind),
	})
	d.Moderation = &ev.Result
	d.HateSpeech = ev.HateSpeech
	d.Sentiment = ev.Sentiment

	switch {
	case s.Kind == KindComment && ev.HateSpeech.IsHateSpeech:
		d.Reason = ReasonCommentHate
	case s.Kind == KindShare && ev.HateSpeech.IsHateSpeech:
		d.Reason = ReasonShareHate
	case ev.Result.Status == moderation.StatusRemoved:
		d.Reason = ReasonPostRemoved
	case ev.Result.Status == moderation.StatusFlagged:
		d.Accepted = true
		d.QueuedForReview = g.queueForReview(ctx, s, d.ID, ev.Result)
	default:
		d.Accepted = true
	}
}

func (g *Gate) queueForReview(ctx context.Context, s Submission, id string, verdict moderation.Result) bool {
	if g.reviews == nil {
		return false
	}
	err := g.reviews.Enqueue(ctx, review.Item{
		ID:        id,
		AccountID: s.AccountID,
		Kind:      string(s.Kind),
		Text:      s.Text,
		ImageRef:  s.ImageRef,
		Reason:    verdict.Reason,
		Score:     verdict.Score,
		FlaggedAt: g.now().UTC(),
	})
	if err != nil {
		g.logger.Error("failed to queue content for review", "error", err, "submission_id", id)
		return false
	}
	return true
}

func (g *Gate) punish(ctx context.Context, s Submission, d *Decision) {
	outcome, err := g.policy.HandleHateSpeechViolation(ctx, s.AccountID, s.Text, d.HateSpeech.Language)
	if err != nil {
		g.logger.Error("failed to apply violation policy", "error", err, "account_id", s.AccountID)
		if g.observer != nil {
			g.observer.ObservePolicyError()
		}
		return
	}
	d.Punishment = &outcome
}
