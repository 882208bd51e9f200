// Package moderation fuses hate-speech, sentiment and harmful-content signals
// into a single approved/flagged/removed verdict.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/loop-safety/internal/hatespeech"
	"github.com/wolfman30/loop-safety/internal/llm"
	"github.com/wolfman30/loop-safety/internal/sentiment"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

var tracer = otel.Tracer("loop-safety.internal.moderation")

// Decision thresholds for the model-backed path.
const (
	hateVetoConfidence = 80
	removeSeverity     = 7
	flagSeverity       = 4
	flaggedHarmScore   = 50
)

// Reasons used by the model-backed path.
const (
	ReasonMultipleViolations = "Multiple policy violations detected"
	ReasonPotentialViolation = "Potentially violates community guidelines"
)

// Moderator is the content-safety orchestrator.
type Moderator struct {
	hate     HateDetector
	sent     SentimentAnalyzer
	gateway  llm.Gateway
	recorder Recorder
	observer VerdictObserver
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Moderator.
type Option func(*Moderator)

// WithRecorder writes every decision to r.
func WithRecorder(r Recorder) Option {
	return func(m *Moderator) { m.recorder = r }
}

// WithObserver reports every verdict to o.
func WithObserver(o VerdictObserver) Option {
	return func(m *Moderator) { m.observer = o }
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Moderator) { m.now = now }
}

// NewModerator wires the signal sources. A nil gateway disables the
// harmful-content model call.
func NewModerator(hate HateDetector, sent SentimentAnalyzer, gateway llm.Gateway, logger *logging.Logger, opts ...Option) *Moderator {
	if gateway == nil {
		gateway = llm.Disabled{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Moderator{
		hate:    hate,
		sent:    sent,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type modelHarm struct {
	IsHarmful *bool    `json:"isHarmful" validate:"required"`
	Category  string   `json:"category"`
	Severity  *float64 `json:"severity" validate:"omitempty,min=1,max=10"`
}

func harmPrompt(text string) string {
	return fmt.Sprintf(`Analyze the content between the markers for harmful, inappropriate, or policy-violating material.
Check for: violence, self-harm, sexual content, harassment, misinformation, spam, illegal activities.

Respond with a JSON object containing:
1. isHarmful: boolean (true if harmful content is detected)
2. category: string describing the type of harmful content if detected
3. severity: number from 1-10 (10 being most severe)

The content is given as a JSON string literal.
<content>
%s
</content>

JSON response:`, llm.QuoteText(text))
}

// Moderate returns a verdict for text. It never fails.
func (m *Moderator) Moderate(ctx context.Context, text, imageRef string) Result {
	return m.Evaluate(ctx, Request{Text: text, ImageRef: imageRef}).Result
}

// Evaluate runs the three signals concurrently and fuses them. The
// precedence is: hate veto, severe harm, moderate harm, fused score. Any
// harmful-content failure switches to FallbackVerdict.
func (m *Moderator) Evaluate(ctx context.Context, req Request) Evaluation {
	ctx, span := tracer.Start(ctx, "moderation.evaluate")
	defer span.End()

	var (
		ev   Evaluation
		harm Harm
	)
	var g errgroup.Group
	g.Go(func() error {
		ev.HateSpeech = m.hate.Detect(ctx, req.Text)
		return nil
	})
	g.Go(func() error {
		ev.Sentiment = m.sent.Analyze(ctx, req.Text)
		return nil
	})
	g.Go(func() error {
		var err error
		harm, err = m.assessHarm(ctx, req.Text)
		return err
	})
	harmErr := g.Wait()
	if harmErr == nil {
		ev.Harm = &harm
	}

	if req.ImageRef != "" {
		m.logger.Debug("image reference not scored", "image_ref", req.ImageRef)
	}

	switch {
	case ev.HateSpeech.IsHateSpeech && ev.HateSpeech.Confidence > hateVetoConfidence:
		ev.Path = PathVeto
		ev.Result = Result{Status: StatusRemoved, Reason: hateReason(ev.HateSpeech.Category, "general"), Score: 0}
	case harmErr != nil:
		m.logger.Warn("harmful content check failed, using rule-based moderation", "error", harmErr)
		ev.Path = PathFallback
		ev.Result = FallbackVerdict(req.Text, ev.HateSpeech, ev.Sentiment)
	default:
		ev.Path = PathGenerative
		ev.Result = fuse(ev.HateSpeech, ev.Sentiment, harm)
	}

	span.SetAttributes(
		attribute.String("moderation.status", string(ev.Result.Status)),
		attribute.String("moderation.path", string(ev.Path)),
		attribute.Float64("moderation.score", ev.Result.Score),
	)
	if m.observer != nil {
		m.observer.ObserveVerdict(string(ev.Result.Status), string(ev.Path))
	}
	m.record(ctx, req, ev)
	return ev
}

func (m *Moderator) assessHarm(ctx context.Context, text string) (Harm, error) {
	raw, err := m.gateway.Generate(ctx, harmPrompt(text))
	if err != nil {
		return Harm{}, err
	}
	parsed, err := llm.Decode[modelHarm](raw)
	if err != nil {
		return Harm{}, err
	}
	if !*parsed.IsHarmful {
		return Harm{}, nil
	}
	if parsed.Severity == nil {
		return Harm{}, &llm.DecodeError{Stage: llm.StageValidate, Raw: raw, Err: errors.New("harmful verdict without severity")}
	}

	h := Harm{IsHarmful: true, Severity: int(math.Round(*parsed.Severity))}
	h.Category = strings.ToLower(strings.TrimSpace(parsed.Category))
	if h.Category == "" {
		h.Category = "unspecified"
	}
	return h, nil
}

// fuse applies the model-backed decision rules once the hate veto has not
// fired.
func fuse(hate hatespeech.Result, sent sentiment.Result, harm Harm) Result {
	if harm.IsHarmful && harm.Severity >= removeSeverity {
		return Result{Status: StatusRemoved, Reason: fmt.Sprintf("Harmful content detected (%s)", harm.Category), Score: 0}
	}
	if harm.IsHarmful && harm.Severity >= flagSeverity {
		return Result{Status: StatusFlagged, Reason: fmt.Sprintf("Potentially harmful content (%s)", harm.Category), Score: flaggedHarmScore}
	}

	score := 100.0
	if hate.IsHateSpeech {
		score -= float64(hate.Confidence) / 2
	}
	if sent.Label == sentiment.Negative && sent.Score < 30 {
		score -= float64(30 - sent.Score)
	}
	if harm.IsHarmful {
		score -= float64(harm.Severity * 5)
	}
	score = clamp(score)

	switch {
	case score < removeBelow:
		return Result{Status: StatusRemoved, Reason: ReasonMultipleViolations, Score: score}
	case score < flagBelow:
		return Result{Status: StatusFlagged, Reason: ReasonPotentialViolation, Score: score}
	default:
		return Result{Status: StatusApproved, Score: score}
	}
}

func (m *Moderator) record(ctx context.Context, req Request, ev Evaluation) {
	if m.recorder == nil {
		return
	}
	d := Decision{
		AccountID:      req.AccountID,
		Kind:           req.Kind,
		Status:         ev.Result.Status,
		Score:          ev.Result.Score,
		Reason:         ev.Result.Reason,
		Path:           ev.Path,
		HateConfidence: ev.HateSpeech.Confidence,
		HateCategory:   ev.HateSpeech.Category,
		SentimentLabel: string(ev.Sentiment.Label),
		Keywords:       ev.Sentiment.Keywords,
		ImageRef:       req.ImageRef,
		DecidedAt:      m.now().UTC(),
	}
	if err := m.recorder.RecordDecision(ctx, d); err != nil {
		m.logger.Error("failed to record moderation decision", "error", err, "status", d.Status)
	}
}
