// Package llm wraps text-completion providers behind a single prompt-in,
// text-out Gateway and decodes their untrusted output into typed values.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable marks transport, timeout and capacity failures.
	ErrModelUnavailable = errors.New("llm: model unavailable")
	// ErrMalformedOutput marks completions that do not match the expected shape.
	ErrMalformedOutput = errors.New("llm: malformed model output")
)

// Gateway returns a completion for a prompt. Implementations do not retry.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GatewayFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Disabled is the gateway used when no provider is configured. Every call
// fails with ErrModelUnavailable so callers take their rule-based paths.
type Disabled struct{}

// Generate always fails.
func (Disabled) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: no provider configured", ErrModelUnavailable)
}

// Unavailable wraps err as ErrModelUnavailable unless it already is one.
func Unavailable(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrModelUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrModelUnavailable, provider, err)
}

// QuoteText renders user text as a JSON string literal so quotes and newlines
// stay inside the prompt's delimiters.
func QuoteText(text string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(text); err != nil {
		return `""`
	}
	return strings.TrimRight(buf.String(), "\n")
}
