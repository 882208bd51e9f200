package llm

import (
	"context"
	"errors"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

// FallbackGateway sends prompts to primary and, when it is unavailable, to
// secondary. Malformed output is not retried elsewhere.
type FallbackGateway struct {
	primary   Gateway
	secondary Gateway
	logger    *logging.Logger
}

// NewFallbackGateway returns primary unchanged when secondary is nil.
func NewFallbackGateway(primary, secondary Gateway, logger *logging.Logger) Gateway {
	if secondary == nil {
		return primary
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackGateway{primary: primary, secondary: secondary, logger: logger}
}

// Generate implements Gateway.
func (g *FallbackGateway) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.primary.Generate(ctx, prompt)
	if err == nil || !errors.Is(err, ErrModelUnavailable) || ctx.Err() != nil {
		return out, err
	}

	g.logger.Warn("primary llm unavailable, using secondary provider", "error", err)
	out, secondaryErr := g.secondary.Generate(ctx, prompt)
	if secondaryErr != nil {
		g.logger.Error("secondary llm also failed",
			"primary_error", err.Error(),
			"secondary_error", secondaryErr.Error(),
		)
		return "", secondaryErr
	}
	return out, nil
}
