// Package metrics records token-usage counters for traced inference calls.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Tokens holds the genai token counters. Counter creation degrades to
// no-op instruments so a metrics backend failure never disables tracing.
type Tokens struct {
	prompt     metric.Int64Counter
	completion metric.Int64Counter
	total      metric.Int64Counter
}

// NewTokens creates the token counters on the given meter.
func NewTokens(meter metric.Meter, logger *slog.Logger) *Tokens {
	if logger == nil {
		logger = slog.Default()
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name,
			metric.WithDescription(desc),
			metric.WithUnit("{tokens}"))
		if err != nil {
			logger.Warn("metrics: counter unavailable, recording disabled", "counter", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}
	return &Tokens{
		prompt:     counter("genai.token.prompt", "The number of prompt tokens used"),
		completion: counter("genai.token.completion", "The number of completion tokens used"),
		total:      counter("genai.token.total", "The total number of tokens used"),
	}
}

// RecordTokens adds one call's token usage, dimensioned by provider and
// model. Zero counts are still recorded so call volume stays visible.
func (t *Tokens) RecordTokens(ctx context.Context, provider, modelName string, prompt, completion, total int64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", modelName),
	)
	t.prompt.Add(ctx, prompt, attrs)
	t.completion.Add(ctx, completion, attrs)
	t.total.Add(ctx, total, attrs)
}
