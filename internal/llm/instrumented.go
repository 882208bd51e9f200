package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("loop-safety.internal.llm")

// Call outcomes reported to a CallObserver.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeMalformed   = "malformed"
	OutcomeError       = "error"
)

// CallObserver receives one observation per gateway call.
type CallObserver interface {
	ObserveLLMCall(provider, outcome string, seconds float64)
}

// InstrumentedGateway traces and measures calls to next.
type InstrumentedGateway struct {
	next     Gateway
	provider string
	observer CallObserver
}

// NewInstrumentedGateway wraps next. A nil observer only records spans.
func NewInstrumentedGateway(next Gateway, provider string, observer CallObserver) *InstrumentedGateway {
	return &InstrumentedGateway{next: next, provider: provider, observer: observer}
}

// Generate implements Gateway.
func (g *InstrumentedGateway) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", g.provider),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	start := time.Now()
	out, err := g.next.Generate(ctx, prompt)
	outcome := Outcome(err)
	if g.observer != nil {
		g.observer.ObserveLLMCall(g.provider, outcome, time.Since(start).Seconds())
	}

	span.SetAttributes(attribute.String("llm.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.completion_chars", len(out)))
	return out, nil
}

// Outcome classifies a gateway error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrModelUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, ErrMalformedOutput):
		return OutcomeMalformed
	default:
		return OutcomeError
	}
}
