package model

import (
	"context"
	"strings"
)

// InvokeFunc executes the wrapped call. The tracing pipeline calls it
// exactly once per non-skipped call, between pre and post bookkeeping.
type InvokeFunc func(ctx context.Context) (any, error)

// TraceFunc is the span-lifecycle wrapper: it receives the resolved catalog
// entry and a fresh CallRecord, runs the wrapped call via invoke, and
// returns its result and error unchanged.
type TraceFunc func(ctx context.Context, m *WrapperMethod, rec *CallRecord, invoke InvokeFunc) (any, error)

// RestoreFunc undoes one installed interception target.
type RestoreFunc func()

// InstallFunc routes an integration's call surface through the given
// wrapper, binding the resolved catalog entry alongside it so setup-time
// resolution (scope names, handler overrides, skip flags) reaches the
// pipeline at call time. It is the only place foreign code is touched;
// everything else in the pipeline operates on CallRecord. A nil
// InstallFunc on a catalog entry means the integration is not linked into
// this binary and the target is skipped at install time.
type InstallFunc func(m *WrapperMethod, tf TraceFunc) (RestoreFunc, error)

// WrapperMethod is one declarative interception target: where the call
// lives, how to name the span, which span handler drives its lifecycle,
// and how to populate its attributes and events. Loaded once at setup
// time and read-only thereafter.
type WrapperMethod struct {
	Package string
	Object  string
	Method  string

	// SpanName overrides the Package.Object.Method default.
	SpanName string

	// SpanHandler is the handler-registry key; empty means "default".
	SpanHandler string

	// OutputProcessor describes entity and event population for this call
	// shape. May be nil for pure scope-producing methods.
	OutputProcessor *OutputProcessor

	// SkipSpan marks the target pass-through: the call is executed without
	// opening a span (an outer framework wrapper produces the authoritative
	// one).
	SkipSpan bool

	// Async marks targets whose wrapped call suspends (streaming or
	// long-poll shapes). Informational; the wrapper adds no suspension of
	// its own either way.
	Async bool

	// ScopeName, when set, makes this a scope-producing method: a scope
	// with this name is active for the duration of the call.
	ScopeName string

	// ScopeValues, when set, supplies several scopes computed from the
	// call record. Overrides ScopeName.
	ScopeValues func(*CallRecord) map[string]string

	// Install hooks this entry into the integration's call surface.
	Install InstallFunc
}

// QualifiedName is the Package.Object.Method path, with empty segments
// elided.
func (m *WrapperMethod) QualifiedName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Package, m.Object, m.Method} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// DisplayName is the span name: SpanName if set, else the qualified path.
func (m *WrapperMethod) DisplayName() string {
	if m.SpanName != "" {
		return m.SpanName
	}
	return m.QualifiedName()
}
