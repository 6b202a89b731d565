package mcp

import (
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/tsuiseki/internal/catalog"
	"github.com/ashita-ai/tsuiseki/internal/hydrate"
	"github.com/ashita-ai/tsuiseki/internal/model"
)

var callToolHook = &catalog.Hook{}

func init() {
	catalog.Register(*callToolMethod())
}

func callToolMethod() *model.WrapperMethod {
	return &model.WrapperMethod{
		Package:         "mcp",
		Object:          "Client",
		Method:          "CallTool",
		OutputProcessor: callToolProcessor(),
		Install:         callToolHook.Installer(),
	}
}

func callToolProcessor() *model.OutputProcessor {
	return &model.OutputProcessor{
		SpanType: model.SpanTypeToolInvoke,
		Entities: []model.EntitySpec{
			{Attributes: []model.AttributeSpec{
				{Key: "name", Accessor: hydrate.Alias("name")},
				{Key: "type", Accessor: hydrate.Const("tool.mcp")},
				{Key: "deployment", Accessor: serverName},
			}},
		},
		Events: []model.EventSpec{
			{Name: model.EventInput, Attributes: []model.AttributeSpec{
				{Key: model.AttrInput, Accessor: arguments},
			}},
			{Name: model.EventOutput, Attributes: []model.AttributeSpec{
				{Key: model.AttrResponse, Accessor: resultText},
				{Key: model.AttrErrorCode, Accessor: toolError},
			}},
		},
	}
}

func serverName(rec *model.CallRecord) (any, error) {
	if c, ok := rec.Instance.(*Client); ok && c.server != "" {
		return c.server, nil
	}
	return nil, nil
}

func arguments(rec *model.CallRecord) (any, error) {
	args := rec.Kwarg("arguments")
	if args == nil {
		return nil, nil
	}
	return hydrate.JSONString(args), nil
}

func result(rec *model.CallRecord) *mcplib.CallToolResult {
	r, _ := rec.Result.(*mcplib.CallToolResult)
	return r
}

func resultText(rec *model.CallRecord) (any, error) {
	r := result(rec)
	if r == nil {
		return nil, nil
	}
	var parts []string
	for _, content := range r.Content {
		if tc, ok := content.(mcplib.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts, nil
}

// toolError marks the span failed when the server reported a tool-level
// error inside a successful transport response.
func toolError(rec *model.CallRecord) (any, error) {
	if r := result(rec); r != nil && r.IsError {
		msg, _ := resultText(rec)
		text, _ := msg.(string)
		return nil, &model.SpanError{Code: "tool_error", Message: text}
	}
	return nil, nil
}
