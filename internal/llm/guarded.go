package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

// GuardOptions bounds how a gateway is called.
type GuardOptions struct {
	Name          string
	Timeout       time.Duration
	MaxConcurrent int64
	// Breaker trips after MinRequests calls in an Interval when the failure
	// ratio reaches FailureRatio, and half-opens after OpenTimeout.
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	OpenTimeout  time.Duration
}

func (o GuardOptions) withDefaults() GuardOptions {
	if o.Name == "" {
		o.Name = "llm"
	}
	if o.Timeout <= 0 {
		o.Timeout = 8 * time.Second
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 16
	}
	if o.MinRequests == 0 {
		o.MinRequests = 10
	}
	if o.FailureRatio <= 0 {
		o.FailureRatio = 0.6
	}
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	return o
}

// GuardedGateway applies a per-call timeout, a concurrency cap and a circuit
// breaker. Every failure it produces matches ErrModelUnavailable.
type GuardedGateway struct {
	next    Gateway
	timeout time.Duration
	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedGateway wraps next.
func NewGuardedGateway(next Gateway, opts GuardOptions, logger *logging.Logger) *GuardedGateway {
	opts = opts.withDefaults()
	if logger == nil {
		logger = logging.Default()
	}

	settings := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= opts.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &GuardedGateway{
		next:    next,
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate implements Gateway.
func (g *GuardedGateway) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for capacity: %w", ErrModelUnavailable, err)
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(callCtx, prompt)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return "", fmt.Errorf("%w: circuit open: %w", ErrModelUnavailable, err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			return "", fmt.Errorf("%w: timed out after %s", ErrModelUnavailable, g.timeout)
		case errors.Is(err, ErrMalformedOutput):
			return "", err
		default:
			return "", Unavailable("guarded", err)
		}
	}
	return result.(string), nil
}

// State reports the breaker state, for health output.
func (g *GuardedGateway) State() string {
	return g.breaker.State().String()
}
