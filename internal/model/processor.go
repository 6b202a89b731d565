package model

// ExtractorFunc pulls one value out of a call record. Returning a nil value
// (or an error) means "no value for this field"; the populator logs the
// error and moves on — extraction never aborts span population.
type ExtractorFunc func(*CallRecord) (any, error)

// AttributeSpec names one attribute and the accessor that supplies it.
// An empty Key is allowed on event attributes: the accessor then returns a
// map whose entries are merged into the event wholesale (usage blocks).
type AttributeSpec struct {
	Key      string
	Accessor ExtractorFunc
}

// EntitySpec describes one participant entity as an ordered list of
// attribute accessors. The populated attributes land under entity.<N>.*;
// an entity none of whose accessors yield a value is omitted and does not
// consume a slot.
type EntitySpec struct {
	Attributes []AttributeSpec
}

// EventSpec describes one span event by name and attribute accessors.
type EventSpec struct {
	Name       string
	Attributes []AttributeSpec
}

// OutputProcessor declares how to turn a CallRecord into span attributes
// and events for one call shape. Declared once per integration, read-only.
type OutputProcessor struct {
	// SpanType becomes the span.type attribute (inference, retrieval,
	// agentic.invocation, ...).
	SpanType string

	// SpanSubtype, when non-empty, becomes span.subtype.
	SpanSubtype string

	// Entities in declaration order; numbering starts at 1 (or after the
	// pre-populated workflow entities on a root span) and is contiguous
	// over the entities that actually produced values.
	Entities []EntitySpec

	// Events in declaration order. The populator enforces the fixed
	// data.input, data.output, metadata ordering regardless of declaration
	// order, and drops an empty metadata event entirely.
	Events []EventSpec

	// ShouldSkip, when set, marks a call redundant at runtime (an inner
	// SDK call already covered by an outer framework span).
	ShouldSkip func(*CallRecord) bool

	// Status, when set, probes a non-error result for an embedded error
	// indicator. It returns "success" or an error code; anything other
	// than "success" marks the span status error. An explicit call error
	// always takes priority and short-circuits this probe.
	Status ExtractorFunc
}

// HasEvent reports whether the processor declares the named event.
func (p *OutputProcessor) HasEvent(name string) bool {
	for _, e := range p.Events {
		if e.Name == name {
			return true
		}
	}
	return false
}
