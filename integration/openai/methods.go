package openai

import (
	"errors"

	"github.com/ashita-ai/tsuiseki/internal/catalog"
	"github.com/ashita-ai/tsuiseki/internal/finish"
	"github.com/ashita-ai/tsuiseki/internal/hydrate"
	"github.com/ashita-ai/tsuiseki/internal/model"
)

var chatHook = &catalog.Hook{}

func init() {
	catalog.Register(*chatMethod())
}

func chatMethod() *model.WrapperMethod {
	return &model.WrapperMethod{
		Package:         "openai",
		Object:          "ChatCompletions",
		Method:          "Create",
		SpanHandler:     "non_framework",
		OutputProcessor: chatProcessor(),
		Install:         chatHook.Installer(),
	}
}

func chatProcessor() *model.OutputProcessor {
	return &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "type", Accessor: hydrate.Const("inference.openai")},
				{Key: "provider_name", Accessor: providerName},
				{Key: "inference_endpoint", Accessor: inferenceEndpoint},
			}},
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: hydrate.Alias("model", "model_name")},
				{Key: "type", Accessor: modelType},
			}},
		},
		Events: []model.EventSpec{
			{Name: model.EventInput, Attributes: []model.AttributeSpec{
				{Key: model.AttrInput, Accessor: inputMessages},
			}},
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: outputMessage},
				{Key: model.AttrErrorCode, Accessor: errorCode},
			}},
			{Name: model.EventMetadata, Attributes: []model.AttributeSpec{
				{Accessor: usage},
				{Key: model.AttrFinishReason, Accessor: finishReason},
				{Key: model.AttrFinishType, Accessor: finishType},
			}},
		},
	}
}

func client(rec *model.CallRecord) *Client {
	c, _ := rec.Instance.(*Client)
	return c
}

func response(rec *model.CallRecord) *ChatResponse {
	r, _ := rec.Result.(*ChatResponse)
	return r
}

func providerName(rec *model.CallRecord) (any, error) {
	if c := client(rec); c != nil {
		return c.endpointHost(), nil
	}
	return nil, nil
}

func inferenceEndpoint(rec *model.CallRecord) (any, error) {
	if c := client(rec); c != nil {
		return c.baseURL, nil
	}
	return nil, nil
}

func modelType(rec *model.CallRecord) (any, error) {
	if m := rec.KwargString("model"); m != "" {
		return "model.llm." + m, nil
	}
	return nil, nil
}

func inputMessages(rec *model.CallRecord) (any, error) {
	msgs, _ := rec.Kwarg("messages").([]Message)
	if len(msgs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, hydrate.RoleMessage(m.Role, m.Content))
	}
	return out, nil
}

func outputMessage(rec *model.CallRecord) (any, error) {
	r := response(rec)
	if r == nil || len(r.Choices) == 0 {
		return nil, nil
	}
	msg := r.Choices[0].Message
	return hydrate.RoleMessage(msg.Role, msg.Content), nil
}

// errorCode surfaces an API error payload as the output event's
// error_code, marking the span as failed even when the transport
// succeeded.
func errorCode(rec *model.CallRecord) (any, error) {
	var apiErr *APIError
	if errors.As(rec.Err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = apiErr.Type
		}
		return nil, &model.SpanError{Code: code, Message: apiErr.Message}
	}
	return nil, nil
}

func usage(rec *model.CallRecord) (any, error) {
	r := response(rec)
	if r == nil {
		return nil, nil
	}
	return map[string]any{
		model.AttrPromptTokens:     int64(r.Usage.PromptTokens),
		model.AttrCompletionTokens: int64(r.Usage.CompletionTokens),
		model.AttrTotalTokens:      int64(r.Usage.TotalTokens),
	}, nil
}

func rawFinishReason(rec *model.CallRecord) string {
	if r := response(rec); r != nil && len(r.Choices) > 0 {
		return r.Choices[0].FinishReason
	}
	return ""
}

func finishReason(rec *model.CallRecord) (any, error) {
	reason, _ := finish.Classify(rec, rawFinishReason(rec))
	return reason, nil
}

func finishType(rec *model.CallRecord) (any, error) {
	_, ftype := finish.Classify(rec, rawFinishReason(rec))
	return ftype.String(), nil
}
