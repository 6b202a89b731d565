// Package export provides the span exporters selected by configuration:
// a JSON-lines file exporter (the default), console, an in-memory exporter
// for tests, OTLP over HTTP, and a local SQLite archive.
package export

import (
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanRecord is the serialized span shape shared by the file and sqlite
// exporters.
type spanRecord struct {
	TraceID       string         `json:"trace_id"`
	SpanID        string         `json:"span_id"`
	ParentSpanID  string         `json:"parent_span_id,omitempty"`
	Name          string         `json:"name"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Status        string         `json:"status"`
	StatusMessage string         `json:"status_message,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Events        []eventRecord  `json:"events,omitempty"`
}

type eventRecord struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func toRecord(s sdktrace.ReadOnlySpan) spanRecord {
	rec := spanRecord{
		TraceID:       s.SpanContext().TraceID().String(),
		SpanID:        s.SpanContext().SpanID().String(),
		Name:          s.Name(),
		StartTime:     s.StartTime(),
		EndTime:       s.EndTime(),
		Status:        s.Status().Code.String(),
		StatusMessage: s.Status().Description,
	}
	if s.Parent().IsValid() {
		rec.ParentSpanID = s.Parent().SpanID().String()
	}
	if attrs := s.Attributes(); len(attrs) > 0 {
		rec.Attributes = make(map[string]any, len(attrs))
		for _, kv := range attrs {
			rec.Attributes[string(kv.Key)] = kv.Value.AsInterface()
		}
	}
	for _, ev := range s.Events() {
		er := eventRecord{Name: ev.Name, Timestamp: ev.Time}
		if len(ev.Attributes) > 0 {
			er.Attributes = make(map[string]any, len(ev.Attributes))
			for _, kv := range ev.Attributes {
				er.Attributes[string(kv.Key)] = kv.Value.AsInterface()
			}
		}
		rec.Events = append(rec.Events, er)
	}
	return rec
}
