package hydrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

func recordSpan(t *testing.T, fn func(span trace.Span)) sdktrace.ReadOnlySpan {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	fn(span)
	span.End()
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrMap(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func eventAttrMap(e sdktrace.Event) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range e.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestPopulateEntityContiguity(t *testing.T) {
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "type", Accessor: Const("inference.openai")},
				{Key: "provider_name", Accessor: Const("api.openai.com")},
			}},
			// This entity yields nothing and must not consume a slot.
			{Attributes: []model.AttributeSpec{
				{Key: "type", Accessor: Const(nil)},
				{Key: "name", Accessor: Const("")},
			}},
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: Const("gpt-4o")},
				{Key: "type", Accessor: Const("model.llm.gpt-4o")},
			}},
		},
	}

	var res Result
	got := recordSpan(t, func(span trace.Span) {
		res = Populate(nil, span, &model.CallRecord{}, proc, 0)
	})

	assert.Equal(t, 2, res.EntityCount)
	attrs := attrMap(got)
	assert.Equal(t, "inference", attrs["span.type"].AsString())
	assert.Equal(t, int64(2), attrs["entity.count"].AsInt64())
	assert.Equal(t, "inference.openai", attrs["entity.1.type"].AsString())
	assert.Equal(t, "model.llm.gpt-4o", attrs["entity.2.type"].AsString())
	_, hasThird := attrs["entity.3.type"]
	assert.False(t, hasThird, "skipped entity must not leave a numbering gap")
}

func TestPopulateStartIndexOffsetsNumbering(t *testing.T) {
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{{Key: "type", Accessor: Const("inference.openai")}}},
		},
	}
	got := recordSpan(t, func(span trace.Span) {
		Populate(nil, span, &model.CallRecord{}, proc, 2)
	})
	attrs := attrMap(got)
	assert.Equal(t, "inference.openai", attrs["entity.3.type"].AsString())
	assert.Equal(t, int64(3), attrs["entity.count"].AsInt64())
}

func TestPopulateEventOrderAndMetadataOmission(t *testing.T) {
	// Declared out of order on purpose; metadata yields nothing.
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Events: []model.EventSpec{
			{Name: model.EventMetadata, Attributes: []model.AttributeSpec{
				{Key: model.AttrCompletionTokens, Accessor: Const(nil)},
			}},
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: Const(RoleMessage("assistant", "hi"))},
			}},
			{Name: model.EventInput, Attributes: []model.AttributeSpec{
				{Key: model.AttrInput, Accessor: Const([]string{RoleMessage("user", "hello")})},
			}},
		},
	}
	got := recordSpan(t, func(span trace.Span) {
		Populate(nil, span, &model.CallRecord{}, proc, 0)
	})

	events := got.Events()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventInput, events[0].Name)
	assert.Equal(t, model.EventOutput, events[1].Name)
}

func TestPopulateMetadataEmittedWithUsage(t *testing.T) {
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Events: []model.EventSpec{
			{Name: model.EventInput, Attributes: []model.AttributeSpec{
				{Key: model.AttrInput, Accessor: Const([]string{RoleMessage("user", "q")})},
			}},
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: Const(RoleMessage("assistant", "a"))},
			}},
			{Name: model.EventMetadata, Attributes: []model.AttributeSpec{
				{Accessor: Const(map[string]any{
					model.AttrPromptTokens:     int64(12),
					model.AttrCompletionTokens: int64(5),
					model.AttrTotalTokens:      int64(17),
				})},
				{Key: model.AttrFinishReason, Accessor: Const("stop")},
				{Key: model.AttrFinishType, Accessor: Const("success")},
			}},
		},
	}

	var res Result
	got := recordSpan(t, func(span trace.Span) {
		res = Populate(nil, span, &model.CallRecord{}, proc, 0)
	})

	events := got.Events()
	require.Len(t, events, 3)
	assert.Equal(t, model.EventInput, events[0].Name)
	assert.Equal(t, model.EventOutput, events[1].Name)
	assert.Equal(t, model.EventMetadata, events[2].Name)

	meta := eventAttrMap(events[2])
	assert.Equal(t, int64(5), meta["completion_tokens"].AsInt64())
	assert.Equal(t, int64(12), meta["prompt_tokens"].AsInt64())
	assert.Equal(t, int64(17), meta["total_tokens"].AsInt64())
	assert.Equal(t, "stop", meta["finish_reason"].AsString())
	assert.Equal(t, "success", meta["finish_type"].AsString())

	assert.Equal(t, int64(17), res.Metadata[model.AttrTotalTokens])
}

func TestPopulateAccessorFailureIsLocal(t *testing.T) {
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "type", Accessor: func(*model.CallRecord) (any, error) {
					return nil, errors.New("bad shape")
				}},
				{Key: "name", Accessor: Const("still-here")},
			}},
		},
		Events: []model.EventSpec{
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: func(*model.CallRecord) (any, error) {
					return nil, errors.New("broken extractor")
				}},
			}},
		},
	}

	got := recordSpan(t, func(span trace.Span) {
		Populate(nil, span, &model.CallRecord{}, proc, 0)
	})

	attrs := attrMap(got)
	assert.Equal(t, "still-here", attrs["entity.1.name"].AsString())
	require.Len(t, got.Events(), 1)
	assert.Empty(t, got.Events()[0].Attributes)
}

func TestPopulateSpanErrorSetsErrorCode(t *testing.T) {
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Events: []model.EventSpec{
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrErrorCode, Accessor: func(*model.CallRecord) (any, error) {
					return nil, &model.SpanError{Code: "invalid_api_key", Message: "bad key"}
				}},
			}},
		},
	}

	var res Result
	got := recordSpan(t, func(span trace.Span) {
		res = Populate(nil, span, &model.CallRecord{}, proc, 0)
	})

	assert.True(t, res.DetectedError)
	assert.Equal(t, "bad key", res.ErrorMessage)
	out := eventAttrMap(got.Events()[0])
	assert.Equal(t, "invalid_api_key", out["error_code"].AsString())
	assert.Equal(t, "bad key", out["response"].AsString(),
		"error message fills the response when none was extracted")
}

func TestPopulateSpanErrorKeepsExtractedResponse(t *testing.T) {
	proc := &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Events: []model.EventSpec{
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: Const("partial output")},
				{Key: model.AttrErrorCode, Accessor: func(*model.CallRecord) (any, error) {
					return nil, &model.SpanError{Code: "overloaded", Message: "server busy"}
				}},
			}},
		},
	}

	got := recordSpan(t, func(span trace.Span) {
		Populate(nil, span, &model.CallRecord{}, proc, 0)
	})

	out := eventAttrMap(got.Events()[0])
	assert.Equal(t, "partial output", out["response"].AsString())
	assert.Equal(t, "overloaded", out["error_code"].AsString())
}

func TestNested(t *testing.T) {
	type usage struct {
		PromptTokens int
		TotalTokens  int
	}
	type choice struct{ FinishReason string }
	type resp struct {
		Usage   usage
		Choices []choice
	}
	r := resp{Usage: usage{PromptTokens: 3, TotalTokens: 9}, Choices: []choice{{FinishReason: "stop"}}}

	assert.Equal(t, 3, Nested(r, "usage", "prompt_tokens"))
	assert.Equal(t, "stop", Nested(r, "choices", "0", "finish_reason"))
	assert.Nil(t, Nested(r, "choices", "4", "finish_reason"))
	assert.Nil(t, Nested(r, "missing", "path"))
	assert.Nil(t, Nested(nil, "anything"))

	m := map[string]any{"usage": map[string]any{"total_tokens": 7}}
	assert.Equal(t, 7, Nested(m, "usage", "total_tokens"))
}

func TestAliasAndFirstOf(t *testing.T) {
	rec := &model.CallRecord{Kwargs: map[string]any{"model_name": "gpt-4o"}}
	v, err := Alias("model", "model_name")(rec)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", v)

	v, err = FirstOf(
		func(*model.CallRecord) (any, error) { return nil, errors.New("nope") },
		Const(""),
		Const("fallback"),
	)(rec)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}
