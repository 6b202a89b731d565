package anthropic

import (
	"errors"
	"strings"

	"github.com/ashita-ai/tsuiseki/internal/catalog"
	"github.com/ashita-ai/tsuiseki/internal/finish"
	"github.com/ashita-ai/tsuiseki/internal/hydrate"
	"github.com/ashita-ai/tsuiseki/internal/model"
)

var messagesHook = &catalog.Hook{}

func init() {
	catalog.Register(*messagesMethod())
}

func messagesMethod() *model.WrapperMethod {
	return &model.WrapperMethod{
		Package:         "anthropic",
		Object:          "Messages",
		Method:          "Create",
		SpanHandler:     "non_framework",
		OutputProcessor: messagesProcessor(),
		Install:         messagesHook.Installer(),
	}
}

func messagesProcessor() *model.OutputProcessor {
	return &model.OutputProcessor{
		SpanType: model.SpanTypeInference,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "type", Accessor: hydrate.Const("inference.anthropic")},
				{Key: "provider_name", Accessor: providerName},
			}},
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: hydrate.Alias("model")},
				{Key: "type", Accessor: modelType},
			}},
		},
		Events: []model.EventSpec{
			{Name: model.EventInput, Attributes: []model.AttributeSpec{
				{Key: model.AttrInput, Accessor: inputMessages},
			}},
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: outputText},
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

func response(rec *model.CallRecord) *MessagesResponse {
	r, _ := rec.Result.(*MessagesResponse)
	return r
}

func providerName(rec *model.CallRecord) (any, error) {
	if c, ok := rec.Instance.(*Client); ok {
		return c.endpointHost(), nil
	}
	return nil, nil
}

func modelType(rec *model.CallRecord) (any, error) {
	if m := rec.KwargString("model"); m != "" {
		return "model.llm." + m, nil
	}
	return nil, nil
}

// inputMessages prepends the system prompt so the input event shows the
// full conversation the model saw.
func inputMessages(rec *model.CallRecord) (any, error) {
	msgs, _ := rec.Kwarg("messages").([]Message)
	out := make([]string, 0, len(msgs)+1)
	if sys := rec.KwargString("system"); sys != "" {
		out = append(out, hydrate.RoleMessage("system", sys))
	}
	for _, m := range msgs {
		out = append(out, hydrate.RoleMessage(m.Role, m.Content))
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func outputText(rec *model.CallRecord) (any, error) {
	r := response(rec)
	if r == nil || len(r.Content) == 0 {
		return nil, nil
	}
	var parts []string
	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	role := r.Role
	if role == "" {
		role = "assistant"
	}
	return hydrate.RoleMessage(role, strings.Join(parts, "\n")), nil
}

func errorCode(rec *model.CallRecord) (any, error) {
	var apiErr *APIError
	if errors.As(rec.Err, &apiErr) {
		return nil, &model.SpanError{Code: apiErr.Type, Message: apiErr.Message}
	}
	return nil, nil
}

func usage(rec *model.CallRecord) (any, error) {
	r := response(rec)
	if r == nil {
		return nil, nil
	}
	return map[string]any{
		model.AttrPromptTokens:     int64(r.Usage.InputTokens),
		model.AttrCompletionTokens: int64(r.Usage.OutputTokens),
		model.AttrTotalTokens:      int64(r.Usage.InputTokens + r.Usage.OutputTokens),
	}, nil
}

func rawStopReason(rec *model.CallRecord) string {
	if r := response(rec); r != nil {
		return r.StopReason
	}
	return ""
}

func finishReason(rec *model.CallRecord) (any, error) {
	reason, _ := finish.Classify(rec, rawStopReason(rec))
	return reason, nil
}

func finishType(rec *model.CallRecord) (any, error) {
	_, ftype := finish.Classify(rec, rawStopReason(rec))
	return ftype.String(), nil
}
