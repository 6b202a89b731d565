// Package scopes is the context and scope store: session-style key/value
// tags that ride the ambient context.Context (as OTel baggage) and are
// stamped onto every span opened while active, plus the context plumbing
// the span pipeline needs (workflow markers, HTTP boundary extraction,
// cross-goroutine handoff).
//
// Scope operations never return errors to calling code: any internal
// failure degrades to "no scope attached" with a warning log. Tracing must
// not become an outage vector for the application it observes.
package scopes

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/baggage"
)

// Prefix namespaces scope baggage members so foreign baggage is untouched.
const Prefix = "tsuiseki.scope."

type contextKey string

const (
	keyNewWorkflow  contextKey = "new_workflow"
	keyWorkflowType contextKey = "workflow_type"
)

// Token undoes one Set/SetAll/ExtractHTTPHeaders. It records, per touched
// baggage key, the exact member it replaced (or its absence), so removal
// restores the pre-state precisely instead of popping a stack. Tokens from
// unrelated call sites can be removed in any order.
type Token struct {
	entries []tokenEntry
}

type tokenEntry struct {
	key  string
	prev baggage.Member
	had  bool
}

// Zero reports whether the token carries nothing to undo.
func (t Token) Zero() bool { return len(t.entries) == 0 }

// Set adds one scope tag to the context. An empty value generates a random
// identifier. The returned context carries the scope; the token removes
// exactly this addition later.
func Set(ctx context.Context, name, value string) (context.Context, Token) {
	return SetAll(ctx, map[string]string{name: value})
}

// SetAll adds several scope tags at once under a single token.
func SetAll(ctx context.Context, values map[string]string) (context.Context, Token) {
	if len(values) == 0 {
		return ctx, Token{}
	}
	bag := baggage.FromContext(ctx)
	tok := Token{entries: make([]tokenEntry, 0, len(values))}
	for name, value := range values {
		if name == "" {
			continue
		}
		if value == "" {
			value = uuid.NewString()
		}
		key := Prefix + name
		prev := bag.Member(key)
		had := prev.Key() != ""
		member, err := baggage.NewMemberRaw(key, value)
		if err != nil {
			slog.Warn("scopes: invalid scope, skipping", "scope", name, "error", err)
			continue
		}
		next, err := bag.SetMember(member)
		if err != nil {
			slog.Warn("scopes: failed to attach scope", "scope", name, "error", err)
			continue
		}
		bag = next
		tok.entries = append(tok.entries, tokenEntry{key: key, prev: prev, had: had})
	}
	return baggage.ContextWithBaggage(ctx, bag), tok
}

// Remove reverts the context to its state before the token's scopes were
// added. Scopes added by unrelated tokens survive, even when they were
// added later.
func Remove(ctx context.Context, tok Token) context.Context {
	if tok.Zero() {
		return ctx
	}
	bag := baggage.FromContext(ctx)
	for i := len(tok.entries) - 1; i >= 0; i-- {
		e := tok.entries[i]
		if e.had {
			next, err := bag.SetMember(e.prev)
			if err != nil {
				slog.Warn("scopes: failed to restore scope", "key", e.key, "error", err)
				continue
			}
			bag = next
		} else {
			bag = bag.DeleteMember(e.key)
		}
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// All returns the active scope name to value pairs.
func All(ctx context.Context) map[string]string {
	out := map[string]string{}
	for _, m := range baggage.FromContext(ctx).Members() {
		key := m.Key()
		if len(key) > len(Prefix) && key[:len(Prefix)] == Prefix {
			out[key[len(Prefix):]] = m.Value()
		}
	}
	return out
}

// With runs fn with the scope active and guarantees removal on every exit
// path, including panics. Set/Remove are the manual form; this is the
// primitive the wrapper pipeline uses.
func With(ctx context.Context, name, value string, fn func(context.Context) error) error {
	scoped, tok := Set(ctx, name, value)
	defer Remove(scoped, tok)
	return fn(scoped)
}

// MarkNewWorkflow marks the context so the next traced call opens a fresh
// workflow root even though a parent span may already be recorded (inbound
// request boundaries).
func MarkNewWorkflow(ctx context.Context) context.Context {
	return context.WithValue(ctx, keyNewWorkflow, true)
}

// ClearNewWorkflow removes the marker once consumed.
func ClearNewWorkflow(ctx context.Context) context.Context {
	return context.WithValue(ctx, keyNewWorkflow, false)
}

// NewWorkflowRequested reports whether MarkNewWorkflow is pending.
func NewWorkflowRequested(ctx context.Context) bool {
	v, _ := ctx.Value(keyNewWorkflow).(bool)
	return v
}

// WithWorkflowType records the workflow entity type of the framework span
// currently in progress; nested SDK-level wrappers consult it to demote
// themselves.
func WithWorkflowType(ctx context.Context, workflowType string) context.Context {
	return context.WithValue(ctx, keyWorkflowType, workflowType)
}

// WorkflowType returns the in-progress workflow type, or "".
func WorkflowType(ctx context.Context) string {
	v, _ := ctx.Value(keyWorkflowType).(string)
	return v
}
