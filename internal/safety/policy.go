package safety

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/loop-safety/internal/notify"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

var tracer = otel.Tracer("loop-safety.internal.safety")

// DefaultSuspension is how long a second violation suspends an account.
const DefaultSuspension = 4 * 24 * time.Hour

// Action is the punishment applied for a violation.
type Action string

const (
	ActionWarning     Action = "warning"
	ActionSuspension  Action = "suspension"
	ActionTermination Action = "termination"
)

// Messages sent to the account holder.
const (
	MessageWarning     = "Your recent post contained hate speech, which violates our community guidelines. This is your first warning."
	MessageSuspension  = "Your account has been suspended for 4 days due to repeated hate speech violations."
	MessageTermination = "Your account has been permanently terminated due to repeated hate speech violations."
)

// Notifier receives the user notification for each punishment.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// ActionObserver counts punishments.
type ActionObserver interface {
	ObserveViolation(action string)
}

// Outcome is the result of handling one violation.
type Outcome struct {
	Action    Action    `json:"action"`
	Message   string    `json:"message"`
	Record    Record    `json:"record"`
	Violation Violation `json:"-"`
}

// Policy escalates hate-speech violations.
type Policy struct {
	repo       Repository
	notifier   Notifier
	observer   ActionObserver
	logger     *logging.Logger
	suspension time.Duration
	now        func() time.Time
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithClock overrides the time source used for violation and suspension
// timestamps.
func WithClock(now func() time.Time) PolicyOption {
	return func(p *Policy) { p.now = now }
}

// WithSuspension overrides the suspension length.
func WithSuspension(d time.Duration) PolicyOption {
	return func(p *Policy) {
		if d > 0 {
			p.suspension = d
		}
	}
}

// WithObserver reports each action to o.
func WithObserver(o ActionObserver) PolicyOption {
	return func(p *Policy) { p.observer = o }
}

// NewPolicy creates a Policy. A nil notifier skips notifications.
func NewPolicy(repo Repository, notifier Notifier, logger *logging.Logger, opts ...PolicyOption) *Policy {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Policy{
		repo:       repo,
		notifier:   notifier,
		logger:     logger,
		suspension: DefaultSuspension,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleHateSpeechViolation logs the violation and applies the punishment
// for the account's new warning count: a warning on the first, a suspension
// on the second and termination from the third on.
func (p *Policy) HandleHateSpeechViolation(ctx context.Context, accountID, text, language string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "safety.handle_violation")
	defer span.End()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Outcome{}, ErrInvalidAccountID
	}

	now := p.now().UTC()
	v := Violation{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Content:   text,
		Type:      ViolationHateSpeech,
		Language:  language,
		CreatedAt: now,
	}
	rec, err := p.repo.ApplyViolation(ctx, v, ViolationPenalty)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("safety: handle violation: %w", err)
	}

	out := Outcome{Violation: v}
	switch {
	case rec.WarningCount <= 1:
		out.Action, out.Message = ActionWarning, MessageWarning
	case rec.WarningCount == 2:
		out.Action, out.Message = ActionSuspension, MessageSuspension
		rec, err = p.repo.Suspend(ctx, accountID, now.Add(p.suspension))
	default:
		out.Action, out.Message = ActionTermination, MessageTermination
		rec, err = p.repo.Terminate(ctx, accountID, now)
	}
	if err != nil {
		span.RecordError(err)
		return Outcome{}, fmt.Errorf("safety: apply %s: %w", out.Action, err)
	}
	out.Record = rec

	span.SetAttributes(
		attribute.String("safety.action", string(out.Action)),
		attribute.Int("safety.warning_count", rec.WarningCount),
	)
	p.logger.Info("hate speech violation handled",
		"account_id", accountID,
		"action", out.Action,
		"warning_count", rec.WarningCount,
		"safety_score", rec.SafetyScore,
	)
	if p.observer != nil {
		p.observer.ObserveViolation(string(out.Action))
	}

	if p.notifier != nil {
		n := notify.Notification{AccountID: accountID, Type: string(out.Action), Message: out.Message, CreatedAt: now}
		if err := p.notifier.Notify(ctx, n); err != nil {
			p.logger.Error("failed to send violation notification", "error", err, "account_id", accountID, "action", out.Action)
		}
	}
	return out, nil
}
