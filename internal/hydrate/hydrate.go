// Package hydrate is the attribute/event populator: it turns a CallRecord
// plus an OutputProcessor declaration into span attributes (entity.N.*,
// span.type) and span events (data.input, data.output, metadata) in the
// fixed schema downstream tooling consumes.
//
// Population is strictly best-effort: every extraction callback failure is
// caught locally, logged, and treated as "no value for this field". The
// populator mutates only the span it is given and never returns an error
// to the wrapper.
package hydrate

import (
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// Result summarizes what population found, for the handler to finish
// status classification and metrics without re-extracting.
type Result struct {
	// EntityCount is the number of entity groups actually populated.
	EntityCount int

	// DetectedError is set when an accessor reported an embedded error
	// (a 200-with-error-payload shape) via model.SpanError.
	DetectedError bool

	// ErrorMessage carries the first embedded-error message, if any.
	ErrorMessage string

	// Metadata holds the attributes of the emitted metadata event, empty
	// when the event was omitted.
	Metadata map[string]any
}

// Populate writes the processor's entities and events onto the span.
// Entity numbering starts at startIndex+1; on a workflow root the caller
// passes the number of pre-populated workflow entities. Entities that
// yield no usable value are skipped without consuming a slot, so the
// numbering stays contiguous and entity.count matches what is present.
func Populate(logger *slog.Logger, span trace.Span, rec *model.CallRecord, proc *model.OutputProcessor, startIndex int) Result {
	res := Result{}
	if proc == nil || span == nil {
		return res
	}
	if logger == nil {
		logger = slog.Default()
	}

	if proc.SpanType != "" {
		span.SetAttributes(attribute.String(model.AttrSpanType, proc.SpanType))
	}
	if proc.SpanSubtype != "" {
		span.SetAttributes(attribute.String(model.AttrSpanSubtype, proc.SpanSubtype))
	}

	res.EntityCount = populateEntities(logger, span, rec, proc, startIndex)
	if total := startIndex + res.EntityCount; total > 0 {
		span.SetAttributes(attribute.Int(model.AttrEntityCount, total))
	}

	populateEvents(logger, span, rec, proc, &res)
	return res
}

func populateEntities(logger *slog.Logger, span trace.Span, rec *model.CallRecord, proc *model.OutputProcessor, startIndex int) int {
	populated := 0
	for _, entity := range proc.Entities {
		staged := make([]attribute.KeyValue, 0, len(entity.Attributes))
		index := startIndex + populated + 1
		for _, spec := range entity.Attributes {
			if spec.Accessor == nil || spec.Key == "" {
				continue
			}
			v, err := spec.Accessor(rec)
			if err != nil {
				logger.Warn("hydrate: entity accessor failed",
					"attribute", spec.Key, "error", err)
				continue
			}
			if kv, ok := toAttribute(model.EntityAttr(index, spec.Key), v); ok {
				staged = append(staged, kv)
			}
		}
		if len(staged) == 0 {
			// Nothing usable: the entity is omitted and its slot is reused.
			continue
		}
		span.SetAttributes(staged...)
		populated++
	}
	return populated
}

// eventRank enforces the fixed data.input, data.output, metadata order
// regardless of declaration order.
func eventRank(name string) int {
	switch name {
	case model.EventInput:
		return 0
	case model.EventOutput:
		return 1
	case model.EventMetadata:
		return 2
	}
	return 3
}

func populateEvents(logger *slog.Logger, span trace.Span, rec *model.CallRecord, proc *model.OutputProcessor, res *Result) {
	events := make([]model.EventSpec, len(proc.Events))
	copy(events, proc.Events)
	sort.SliceStable(events, func(i, j int) bool {
		return eventRank(events[i].Name) < eventRank(events[j].Name)
	})

	for _, ev := range events {
		attrs := map[string]any{}
		for _, spec := range ev.Attributes {
			if spec.Accessor == nil {
				continue
			}
			v, err := spec.Accessor(rec)
			if err != nil {
				var spanErr *model.SpanError
				if errors.As(err, &spanErr) {
					res.DetectedError = true
					if res.ErrorMessage == "" {
						res.ErrorMessage = spanErr.Message
					}
					if spec.Key != "" && spanErr.Code != "" {
						attrs[spec.Key] = spanErr.Code
					}
					continue
				}
				logger.Warn("hydrate: event accessor failed",
					"event", ev.Name, "attribute", spec.Key, "error", err)
				continue
			}
			if !usable(v) {
				continue
			}
			if spec.Key == "" {
				// Keyless accessors return a map merged into the event
				// wholesale (usage blocks).
				if m, ok := v.(map[string]any); ok {
					for k, mv := range m {
						if mv != nil {
							attrs[k] = mv
						}
					}
				}
				continue
			}
			attrs[spec.Key] = v
		}

		// An embedded error is the output: when no response text was
		// extracted, its message fills the response attribute next to the
		// error code.
		if ev.Name == model.EventOutput && res.DetectedError && res.ErrorMessage != "" {
			if _, ok := attrs[model.AttrResponse]; !ok {
				attrs[model.AttrResponse] = res.ErrorMessage
			}
		}

		// Presence of the metadata event is itself a signal; never emit it
		// empty.
		if ev.Name == model.EventMetadata {
			if len(attrs) == 0 {
				continue
			}
			res.Metadata = attrs
		}

		kvs := make([]attribute.KeyValue, 0, len(attrs))
		for k, v := range attrs {
			if kv, ok := toAttribute(k, v); ok {
				kvs = append(kvs, kv)
			}
		}
		sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
		span.AddEvent(ev.Name, trace.WithAttributes(kvs...))
	}
}

// toAttribute converts an extracted value to a span attribute. Unsupported
// shapes are rendered as JSON rather than dropped.
func toAttribute(key string, v any) (attribute.KeyValue, bool) {
	switch t := v.(type) {
	case nil:
		return attribute.KeyValue{}, false
	case string:
		if t == "" {
			return attribute.KeyValue{}, false
		}
		return attribute.String(key, t), true
	case []string:
		if len(t) == 0 {
			return attribute.KeyValue{}, false
		}
		return attribute.StringSlice(key, t), true
	case bool:
		return attribute.Bool(key, t), true
	case int:
		return attribute.Int(key, t), true
	case int32:
		return attribute.Int64(key, int64(t)), true
	case int64:
		return attribute.Int64(key, t), true
	case uint64:
		return attribute.Int64(key, int64(t)), true
	case float32:
		return attribute.Float64(key, float64(t)), true
	case float64:
		return attribute.Float64(key, t), true
	case []any:
		ss := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				ss = append(ss, s)
			} else {
				ss = append(ss, JSONString(item))
			}
		}
		if len(ss) == 0 {
			return attribute.KeyValue{}, false
		}
		return attribute.StringSlice(key, ss), true
	default:
		return attribute.String(key, JSONString(v)), true
	}
}
