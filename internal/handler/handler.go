// Package handler drives the span lifecycle around intercepted calls: it
// decides whether a call gets a span, opens the workflow root when needed,
// stamps the common attributes every span carries, and closes the span with
// a classified status no matter how the call ends.
package handler

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/tsuiseki/internal/model"
	"github.com/ashita-ai/tsuiseki/internal/scopes"
)

// SpanHandler customizes the tracing lifecycle for a family of wrapper
// methods. All hooks are optional in spirit; Default provides no-op
// behavior to embed.
type SpanHandler interface {
	// PreTracing runs before any span decision and may enrich the context.
	PreTracing(ctx context.Context, rec *model.CallRecord) context.Context

	// PostTracing runs after the call and all span bookkeeping, on every
	// path that PreTracing ran on.
	PostTracing(ctx context.Context, rec *model.CallRecord)

	// SkipSpan suppresses the span entirely; the call passes through.
	SkipSpan(ctx context.Context, rec *model.CallRecord) bool

	// SkipProcessors suppresses attribute and event population while
	// keeping the span itself.
	SkipProcessors(ctx context.Context, rec *model.CallRecord) bool

	// PreTask runs with the open span before the wrapped call.
	PreTask(ctx context.Context, span trace.Span, rec *model.CallRecord)

	// PostTask runs with the open span after population, before End.
	PostTask(ctx context.Context, span trace.Span, rec *model.CallRecord)
}

// Default is the standard lifecycle: trace everything, populate everything.
type Default struct{}

func (Default) PreTracing(ctx context.Context, _ *model.CallRecord) context.Context { return ctx }
func (Default) PostTracing(context.Context, *model.CallRecord)                      {}
func (Default) SkipSpan(context.Context, *model.CallRecord) bool                    { return false }
func (Default) SkipProcessors(context.Context, *model.CallRecord) bool              { return false }
func (Default) PreTask(context.Context, trace.Span, *model.CallRecord)              {}
func (Default) PostTask(context.Context, trace.Span, *model.CallRecord)             {}

// NonFramework is the lifecycle for direct model-API calls (raw SDK
// clients). When a framework integration already has a workflow in
// progress, the framework's spans are authoritative: the raw call keeps a
// thin span with a ".modelapi" span.type and no entity/event population.
type NonFramework struct {
	Default
}

func (NonFramework) SkipProcessors(ctx context.Context, _ *model.CallRecord) bool {
	return frameworkInProgress(ctx)
}

// frameworkInProgress reports whether an enclosing workflow span belongs to
// a recognized framework rather than plain application code.
func frameworkInProgress(ctx context.Context) bool {
	wt := scopes.WorkflowType(ctx)
	return wt != "" && wt != model.WorkflowGeneric
}

// Handler registry keys used by the built-in catalog.
const (
	KeyDefault      = "default"
	KeyNonFramework = "non_framework"
)

// DefaultHandlers is the registry Setup starts from; user handlers are
// merged over it.
func DefaultHandlers() map[string]SpanHandler {
	return map[string]SpanHandler{
		KeyDefault:      Default{},
		KeyNonFramework: NonFramework{},
	}
}
