package scopes

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// Detach copies the ambient tracing state — current span context and all
// baggage, scopes included — by value into a fresh context that is not
// tied to the caller's cancellation or deadline. Work spawned with it
// parents correctly under the calling trace without sharing a mutable
// context reference across goroutines.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		out = trace.ContextWithSpan(out, span)
	}
	out = baggage.ContextWithBaggage(out, baggage.FromContext(ctx))
	if wt := WorkflowType(ctx); wt != "" {
		out = WithWorkflowType(out, wt)
	}
	return out
}

type bridgeResult struct {
	value any
	err   error
	panic any
}

// Run executes fn on a dedicated goroutine with the caller's tracing state
// propagated by value, and marshals the result, error, or panic back. A
// panic inside fn is re-raised in the caller, never swallowed. This is the
// one place the tracing layer spawns a goroutine of its own: a one-shot
// worker per call, used where blocking work must be driven from a call
// site that cannot host it inline.
func Run(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	ch := make(chan bridgeResult, 1)
	detached := Detach(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- bridgeResult{panic: r}
			}
		}()
		v, err := fn(detached)
		ch <- bridgeResult{value: v, err: err}
	}()

	select {
	case res := <-ch:
		if res.panic != nil {
			panic(res.panic)
		}
		return res.value, res.err
	case <-ctx.Done():
		// The caller gave up; the worker keeps its own detached context and
		// finishes (and closes its spans) on its own.
		return nil, fmt.Errorf("scopes: bridged call abandoned: %w", ctx.Err())
	}
}
