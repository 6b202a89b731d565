// Package model defines the data types shared by the tracing pipeline:
// the normalized call record handed to extraction callbacks, the
// declarative wrapper-method catalog entries, and the span attribute and
// event schema constants other tooling depends on.
package model

// CallRecord is the normalized view of one intercepted call. It is created
// fresh per call and never persisted beyond span population.
type CallRecord struct {
	// Instance is the object the method was invoked on (a client, a
	// retriever, an agent), or nil for free functions.
	Instance any

	// Args holds positional call arguments in order.
	Args []any

	// Kwargs holds named call arguments (model, messages, temperature...).
	// Adapters populate this from their own call shapes.
	Kwargs map[string]any

	// Result is the wrapped call's return value, nil until the call
	// completes and nil on error paths that produced no value.
	Result any

	// Err is the error the wrapped call returned, if any.
	Err error

	// Method is the resolved catalog entry for this call. Read-only.
	Method *WrapperMethod
}

// Kwarg returns the named argument or nil.
func (r *CallRecord) Kwarg(name string) any {
	if r == nil || r.Kwargs == nil {
		return nil
	}
	return r.Kwargs[name]
}

// KwargString returns the named argument as a string, or "" when absent or
// not a string.
func (r *CallRecord) KwargString(name string) string {
	s, _ := r.Kwarg(name).(string)
	return s
}
